package service

import (
	"context"

	"referral-ledger/config"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const recentCommissionsMax = 20

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	accountRepo    ports.AccountRepository
	commissionRepo ports.CommissionRepository
	withdrawalRepo ports.WithdrawalRepository
	referralCfg    config.ReferralConfig
	log            zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	accountRepo ports.AccountRepository,
	commissionRepo ports.CommissionRepository,
	withdrawalRepo ports.WithdrawalRepository,
	referralCfg config.ReferralConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		accountRepo:    accountRepo,
		commissionRepo: commissionRepo,
		withdrawalRepo: withdrawalRepo,
		referralCfg:    referralCfg,
		log:            log,
	}
}

// Overview assembles the wallet screen: balance, recent earnings and any
// open withdrawal request.
func (s *WalletServiceImpl) Overview(ctx context.Context, accountID uuid.UUID) (*ports.WalletOverview, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}

	recent, err := s.commissionRepo.ListRecentPaid(ctx, accountID, recentCommissionsMax)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	var pending []domain.WithdrawalRequest
	open, err := s.withdrawalRepo.GetOpenByUser(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if open != nil {
		pending = append(pending, *open)
	}

	return &ports.WalletOverview{
		Wallet:              account.Wallet,
		RecentCommissions:   recent,
		PendingWithdrawals:  pending,
		MinWithdrawalAmount: s.referralCfg.MinWithdrawalAmount,
	}, nil
}

// UpdatePaymentInfo validates and stores the account's payout preference.
func (s *WalletServiceImpl) UpdatePaymentInfo(ctx context.Context, accountID uuid.UUID, info domain.PaymentInfo) error {
	switch info.PreferredMethod {
	case domain.PaymentMethodBankTransfer:
		if info.Details.AccountHolderName == "" || info.Details.AccountNumber == "" {
			return apperror.Validation("Bank transfers require an account holder name and account number")
		}
	case domain.PaymentMethodPayPal:
		if info.Details.PayPalEmail == "" {
			return apperror.Validation("PayPal payouts require a PayPal email")
		}
	default:
		return apperror.Validation("Unsupported payment method")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return apperror.InternalError(err)
	}
	if account == nil {
		return apperror.ErrNotFound("Account")
	}

	if err := s.accountRepo.UpdatePaymentInfo(ctx, accountID, info); err != nil {
		return apperror.InternalError(err)
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("method", string(info.PreferredMethod)).
		Msg("payment info updated")

	return nil
}
