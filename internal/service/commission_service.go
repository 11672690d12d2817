package service

import (
	"context"
	"errors"
	"time"

	"referral-ledger/config"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const topReferrersMax = 10

// CommissionServiceImpl implements ports.CommissionService.
type CommissionServiceImpl struct {
	accountRepo    ports.AccountRepository
	commissionRepo ports.CommissionRepository
	transactor     ports.DBTransactor
	referralCfg    config.ReferralConfig
	log            zerolog.Logger
}

// NewCommissionService creates a new CommissionServiceImpl.
func NewCommissionService(
	accountRepo ports.AccountRepository,
	commissionRepo ports.CommissionRepository,
	transactor ports.DBTransactor,
	referralCfg config.ReferralConfig,
	log zerolog.Logger,
) *CommissionServiceImpl {
	return &CommissionServiceImpl{
		accountRepo:    accountRepo,
		commissionRepo: commissionRepo,
		transactor:     transactor,
		referralCfg:    referralCfg,
		log:            log,
	}
}

// RecordCommission credits the referrer for one subscription payment.
// The (subscription_id, referred_user_id) unique key carries idempotency:
// however many times the provider redelivers the event, the wallet is
// credited exactly once.
func (s *CommissionServiceImpl) RecordCommission(ctx context.Context, input ports.CommissionInput) (*domain.Commission, error) {
	referred, err := s.accountRepo.GetByID(ctx, input.ReferredUserID)
	if err != nil {
		return nil, err
	}
	if referred == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	if referred.InvitedBy == nil {
		// No referrer, nothing to credit.
		return nil, nil
	}
	referrerID := *referred.InvitedBy

	// Fast path: a replayed delivery finds the existing record.
	existing, err := s.commissionRepo.GetBySubscription(ctx, input.SubscriptionID, input.ReferredUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Debug().
			Str("subscription_id", input.SubscriptionID).
			Str("commission_id", existing.ID.String()).
			Msg("commission already recorded, skipping")
		return existing, nil
	}

	rateBps := s.referralCfg.CommissionRateBps
	amount := domain.CalculateCommission(input.Amount, rateBps)
	now := time.Now().UTC()

	commission := &domain.Commission{
		ID:                 uuid.New(),
		ReferrerID:         referrerID,
		ReferredUserID:     input.ReferredUserID,
		SubscriptionID:     input.SubscriptionID,
		PlanID:             input.PlanID,
		SubscriptionAmount: input.Amount,
		CommissionAmount:   amount,
		CommissionRate:     s.referralCfg.CommissionRate(),
		Currency:           input.Currency,
		Status:             domain.CommissionStatusPending,
		ProviderEventRef:   input.EventRef,
		CreatedAt:          now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.commissionRepo.Create(ctx, dbTx, commission); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// A concurrent delivery won the insert race.
			return s.commissionRepo.GetBySubscription(ctx, input.SubscriptionID, input.ReferredUserID)
		}
		return nil, err
	}

	if amount > 0 {
		if err := s.accountRepo.CreditWallet(ctx, dbTx, referrerID, amount); err != nil {
			return nil, err
		}
	}
	if err := s.commissionRepo.MarkPaid(ctx, dbTx, commission.ID, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}

	commission.Status = domain.CommissionStatusPaid
	commission.PaidAt = &now

	s.log.Info().
		Str("referrer_id", referrerID.String()).
		Str("subscription_id", input.SubscriptionID).
		Int64("amount", amount).
		Msg("commission credited")

	return commission, nil
}

// ListByReferrer returns a page of the referrer's commission history.
func (s *CommissionServiceImpl) ListByReferrer(ctx context.Context, params ports.CommissionListParams) ([]ports.CommissionDetail, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return s.commissionRepo.ListByReferrer(ctx, params)
}

// AdminStats aggregates the ledger for the admin dashboard.
func (s *CommissionServiceImpl) AdminStats(ctx context.Context) (*ports.CommissionAdminStats, error) {
	byStatus, err := s.commissionRepo.GetStats(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	top, err := s.commissionRepo.TopReferrers(ctx, topReferrersMax)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return &ports.CommissionAdminStats{
		ByStatus:     byStatus,
		TopReferrers: top,
	}, nil
}
