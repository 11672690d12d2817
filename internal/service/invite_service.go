package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"referral-ledger/config"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// codeAlphabet excludes 0/O and 1/I to keep codes readable when shared aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeSuffixLen    = 6
	codePrefixMaxLen = 5
	recentInvitesMax = 10
)

// InviteServiceImpl implements ports.InviteService.
type InviteServiceImpl struct {
	accountRepo    ports.AccountRepository
	redemptionRepo ports.RedemptionRepository
	commissionRepo ports.CommissionRepository
	transactor     ports.DBTransactor
	referralCfg    config.ReferralConfig
	log            zerolog.Logger
}

// NewInviteService creates a new InviteServiceImpl.
func NewInviteService(
	accountRepo ports.AccountRepository,
	redemptionRepo ports.RedemptionRepository,
	commissionRepo ports.CommissionRepository,
	transactor ports.DBTransactor,
	referralCfg config.ReferralConfig,
	log zerolog.Logger,
) *InviteServiceImpl {
	return &InviteServiceImpl{
		accountRepo:    accountRepo,
		redemptionRepo: redemptionRepo,
		commissionRepo: commissionRepo,
		transactor:     transactor,
		referralCfg:    referralCfg,
		log:            log,
	}
}

// GetOrCreateCode returns the account's invite code, generating and
// persisting one on first request.
func (s *InviteServiceImpl) GetOrCreateCode(ctx context.Context, accountID uuid.UUID) (*ports.InviteCodeInfo, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}

	if account.InviteCode != nil {
		return s.codeInfo(*account.InviteCode), nil
	}

	// Generate until the code survives both the pre-check and the unique
	// index. The index is the real guard; the pre-check just skips a
	// doomed insert.
	for attempt := 0; attempt < s.referralCfg.InviteCodeAttempts; attempt++ {
		code, err := generateInviteCode(account.DisplayName)
		if err != nil {
			return nil, apperror.InternalError(err)
		}

		exists, err := s.accountRepo.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if exists {
			continue
		}

		set, err := s.accountRepo.SetInviteCode(ctx, accountID, code)
		if err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				continue
			}
			return nil, apperror.InternalError(err)
		}
		if !set {
			// A concurrent first request claimed a code between our read
			// and the guarded write. Return the code that won.
			account, err = s.accountRepo.GetByID(ctx, accountID)
			if err != nil {
				return nil, apperror.InternalError(err)
			}
			if account != nil && account.InviteCode != nil {
				return s.codeInfo(*account.InviteCode), nil
			}
			continue
		}

		s.log.Info().
			Str("account_id", accountID.String()).
			Str("invite_code", code).
			Msg("invite code generated")

		return s.codeInfo(code), nil
	}

	return nil, apperror.ErrGenerationExhausted()
}

// Redeem applies an invite code for the redeemer: links the inviter,
// grants the welcome bonus, and bumps the inviter's counter, all in one
// transaction.
func (s *InviteServiceImpl) Redeem(ctx context.Context, redeemerID uuid.UUID, rawCode string) (*ports.RedemptionResult, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		return nil, apperror.ErrInvalidCode()
	}

	redeemer, err := s.accountRepo.GetByID(ctx, redeemerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if redeemer == nil {
		return nil, apperror.ErrNotFound("Account")
	}

	// Repeating the same code reports the redemption itself, before the
	// single-inviter rule gets a say.
	redeemed, err := s.redemptionRepo.Exists(ctx, code, redeemerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if redeemed {
		return nil, apperror.ErrAlreadyRedeemed()
	}

	if redeemer.InvitedBy != nil {
		return nil, apperror.ErrAlreadyInvited()
	}

	inviter, err := s.accountRepo.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if inviter == nil {
		return nil, apperror.ErrInvalidCode()
	}
	if inviter.ID == redeemerID {
		return nil, apperror.ErrSelfReferral()
	}

	bonus := s.referralCfg.WelcomeBonusCredits
	rate := s.referralCfg.CommissionRate()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The conditional update loses against a concurrent redemption; the
	// loser sees zero rows and the wallet stays untouched.
	linked, err := s.accountRepo.SetInvitedBy(ctx, dbTx, redeemerID, inviter.ID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !linked {
		return nil, apperror.ErrAlreadyInvited()
	}

	redemption := &domain.InvitationRedemption{
		ID:                  uuid.New(),
		InviteCode:          code,
		InviterID:           inviter.ID,
		RedeemedBy:          redeemerID,
		InviterRewardRate:   rate,
		InviteeBonusCredits: bonus,
		RedeemedAt:          time.Now().UTC(),
	}
	if err := s.redemptionRepo.Create(ctx, dbTx, redemption); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyRedeemed()
		}
		return nil, apperror.InternalError(err)
	}

	if bonus > 0 {
		if err := s.accountRepo.AddPremiumCredits(ctx, dbTx, redeemerID, bonus); err != nil {
			return nil, apperror.InternalError(err)
		}
	}
	if err := s.accountRepo.IncrementTotalInvites(ctx, dbTx, inviter.ID); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("redeemer_id", redeemerID.String()).
		Str("inviter_id", inviter.ID.String()).
		Str("invite_code", code).
		Msg("invite code redeemed")

	return &ports.RedemptionResult{
		InviterID:      inviter.ID,
		BonusCredits:   bonus,
		CreditsBalance: redeemer.PremiumCredits + bonus,
		CommissionRate: rate,
	}, nil
}

// Stats summarizes the account's referral activity.
func (s *InviteServiceImpl) Stats(ctx context.Context, accountID uuid.UUID) (*ports.InviteStats, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}

	recent, err := s.redemptionRepo.ListByInviter(ctx, accountID, recentInvitesMax)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	earned, err := s.commissionRepo.SumPaidByReferrer(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	return &ports.InviteStats{
		InviteCode:        account.InviteCode,
		TotalInvites:      account.TotalInvites,
		PremiumCredits:    account.PremiumCredits,
		Wallet:            account.Wallet,
		CommissionRate:    s.referralCfg.CommissionRate(),
		CommissionsEarned: earned,
		RecentInvites:     recent,
	}, nil
}

func (s *InviteServiceImpl) codeInfo(code string) *ports.InviteCodeInfo {
	rate := s.referralCfg.CommissionRate()
	return &ports.InviteCodeInfo{
		InviteCode: code,
		ShareMessage: fmt.Sprintf(
			"Use my invite code %s to sign up and we both get rewarded!", code),
		CommissionRate: rate,
	}
}

// generateInviteCode builds PREFIX-XXXXXX from the display name and a
// random suffix.
func generateInviteCode(displayName string) (string, error) {
	prefix := codePrefix(displayName)

	suffix := make([]byte, codeSuffixLen)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generating code suffix: %w", err)
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}

	return prefix + "-" + string(suffix), nil
}

// codePrefix keeps the leading ASCII letters and digits of the display
// name, uppercased. Names with no usable characters fall back to "USER".
func codePrefix(displayName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(displayName) {
		if b.Len() >= codePrefixMaxLen {
			break
		}
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "USER"
	}
	return b.String()
}
