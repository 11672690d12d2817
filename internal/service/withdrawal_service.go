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

// WithdrawalServiceImpl implements ports.WithdrawalService.
//
// The amount of a request is held from the wallet at creation time and
// flows exactly one of two ways: into total_withdrawn on approval, or
// back into the balance on rejection/cancellation. The conditional
// status transitions in the repository pick a single winner when two
// operations race over the same request.
type WithdrawalServiceImpl struct {
	accountRepo    ports.AccountRepository
	withdrawalRepo ports.WithdrawalRepository
	transactor     ports.DBTransactor
	referralCfg    config.ReferralConfig
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	accountRepo ports.AccountRepository,
	withdrawalRepo ports.WithdrawalRepository,
	transactor ports.DBTransactor,
	referralCfg config.ReferralConfig,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		accountRepo:    accountRepo,
		withdrawalRepo: withdrawalRepo,
		transactor:     transactor,
		referralCfg:    referralCfg,
		log:            log,
	}
}

// Create opens a withdrawal request, holding the amount from the wallet.
func (s *WithdrawalServiceImpl) Create(ctx context.Context, userID uuid.UUID, amount int64) (*domain.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if amount < s.referralCfg.MinWithdrawalAmount {
		return nil, apperror.ErrBelowMinimum(s.referralCfg.MinWithdrawalAmount)
	}

	account, err := s.accountRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	if !account.HasPaymentInfo() {
		return nil, apperror.ErrPaymentInfoMissing()
	}

	// Pre-check for a friendlier error; the partial unique index is the
	// actual guard against concurrent creates.
	open, err := s.withdrawalRepo.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if open != nil {
		return nil, apperror.ErrDuplicatePending()
	}

	request := &domain.WithdrawalRequest{
		ID:             uuid.New(),
		UserID:         userID,
		Amount:         amount,
		Currency:       account.Wallet.Currency,
		Status:         domain.WithdrawalStatusPending,
		PaymentMethod:  account.PaymentInfo.PreferredMethod,
		PaymentDetails: account.PaymentInfo.Details,
		CreatedAt:      time.Now().UTC(),
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	held, err := s.accountRepo.HoldBalance(ctx, dbTx, userID, amount)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !held {
		return nil, apperror.ErrInsufficientBalance()
	}

	if err := s.withdrawalRepo.Create(ctx, dbTx, request); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// Rollback returns the held amount.
			return nil, apperror.ErrDuplicatePending()
		}
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("request_id", request.ID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("withdrawal request created")

	return request, nil
}

// Approve completes a pending request after the operator transferred the
// funds externally. The held amount moves into total_withdrawn.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, requestID, adminID uuid.UUID, transactionID string) (*domain.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if request == nil {
		return nil, apperror.ErrNotFound("Withdrawal request")
	}

	now := time.Now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.withdrawalRepo.MarkCompleted(ctx, dbTx, requestID, adminID, transactionID, now)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(request.Status))
	}

	if err := s.accountRepo.AddTotalWithdrawn(ctx, dbTx, request.UserID, request.Amount); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("admin_id", adminID.String()).
		Int64("amount", request.Amount).
		Msg("withdrawal approved")

	request.Status = domain.WithdrawalStatusCompleted
	request.ProcessedAt = &now
	request.ProcessedBy = &adminID
	request.TransactionID = &transactionID
	return request, nil
}

// Reject declines a pending request and refunds the held amount.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, requestID, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if request == nil {
		return nil, apperror.ErrNotFound("Withdrawal request")
	}

	now := time.Now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.withdrawalRepo.MarkRejected(ctx, dbTx, requestID, adminID, reason, now)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(request.Status))
	}

	if err := s.accountRepo.ReleaseBalance(ctx, dbTx, request.UserID, request.Amount); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("admin_id", adminID.String()).
		Str("reason", reason).
		Msg("withdrawal rejected")

	request.Status = domain.WithdrawalStatusRejected
	request.ProcessedAt = &now
	request.ProcessedBy = &adminID
	request.RejectionReason = &reason
	return request, nil
}

// Cancel lets the owner withdraw a still-pending request. The held amount
// is refunded.
func (s *WithdrawalServiceImpl) Cancel(ctx context.Context, requestID, ownerID uuid.UUID) error {
	request, err := s.withdrawalRepo.GetByID(ctx, requestID)
	if err != nil {
		return apperror.InternalError(err)
	}
	// Requests of other users are reported as missing, not forbidden.
	if request == nil || request.UserID != ownerID {
		return apperror.ErrNotFound("Withdrawal request")
	}

	now := time.Now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.withdrawalRepo.MarkCancelled(ctx, dbTx, requestID, now)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !ok {
		return apperror.ErrInvalidState(string(request.Status))
	}

	if err := s.accountRepo.ReleaseBalance(ctx, dbTx, request.UserID, request.Amount); err != nil {
		return apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(err)
	}

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("user_id", ownerID.String()).
		Msg("withdrawal cancelled")

	return nil
}

// ListByUser returns a page of the user's withdrawal history.
func (s *WithdrawalServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.withdrawalRepo.ListByUser(ctx, userID, page, pageSize)
}

// ListAll returns a page across all users for the admin view.
func (s *WithdrawalServiceImpl) ListAll(ctx context.Context, params ports.WithdrawalListParams) ([]ports.WithdrawalDetail, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return s.withdrawalRepo.List(ctx, params)
}
