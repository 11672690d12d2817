package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, display_name, email, password_hash, role, provider_customer_id,
		invite_code, invited_by, total_invites, premium_credits,
		wallet_balance, wallet_currency, wallet_total_earned, wallet_total_withdrawn,
		payment_method, payment_details,
		subscription_plan_id, subscription_status, subscription_period_end, subscription_cancel_at_period_end,
		created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account into the database.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, display_name, email, password_hash, role, provider_customer_id,
			invite_code, invited_by, total_invites, premium_credits,
			wallet_balance, wallet_currency, wallet_total_earned, wallet_total_withdrawn,
			payment_method, payment_details,
			subscription_plan_id, subscription_status, subscription_period_end, subscription_cancel_at_period_end,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	paymentMethod, paymentDetails, err := marshalPaymentInfo(a.PaymentInfo)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.DisplayName, a.Email, a.PasswordHash, a.Role, a.ProviderCustomerID,
		a.InviteCode, a.InvitedBy, a.TotalInvites, a.PremiumCredits,
		a.Wallet.Balance, a.Wallet.Currency, a.Wallet.TotalEarned, a.Wallet.TotalWithdrawn,
		paymentMethod, paymentDetails,
		a.Subscription.PlanID, a.Subscription.Status, a.Subscription.CurrentPeriodEnd, a.Subscription.CancelAtPeriodEnd,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by its UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail fetches an account by email address.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// GetByInviteCode fetches the account owning the given invite code.
func (r *AccountRepo) GetByInviteCode(ctx context.Context, code string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE invite_code = $1`
	return r.getOne(ctx, query, code)
}

// GetByCustomerID fetches the account linked to a provider customer reference.
func (r *AccountRepo) GetByCustomerID(ctx context.Context, customerID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider_customer_id = $1`
	return r.getOne(ctx, query, customerID)
}

func (r *AccountRepo) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// InviteCodeExists reports whether any account owns the given code.
func (r *AccountRepo) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE invite_code = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invite code: %w", err)
	}
	return exists, nil
}

// SetInviteCode persists a freshly generated code, only if the account has
// none yet. The IS NULL guard keeps first-time generation idempotent: a
// concurrent winner's code is never overwritten, and the loser sees zero
// rows.
func (r *AccountRepo) SetInviteCode(ctx context.Context, id uuid.UUID, code string) (bool, error) {
	query := `UPDATE accounts SET invite_code = $1, updated_at = NOW()
		WHERE id = $2 AND invite_code IS NULL`

	tag, err := r.pool.Exec(ctx, query, code, id)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ports.ErrDuplicate
		}
		return false, fmt.Errorf("set invite code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetInvitedBy links the account to its inviter, only if no inviter is set.
// The id <> inviter guard rejects accounts pointing at themselves.
func (r *AccountRepo) SetInvitedBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, inviterID uuid.UUID) (bool, error) {
	query := `UPDATE accounts SET invited_by = $1, updated_at = NOW()
		WHERE id = $2 AND invited_by IS NULL AND id <> $1`

	tag, err := tx.Exec(ctx, query, inviterID, id)
	if err != nil {
		return false, fmt.Errorf("set invited by: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddPremiumCredits atomically increments the account's premium credits.
func (r *AccountRepo) AddPremiumCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64) error {
	query := `UPDATE accounts SET premium_credits = premium_credits + $1, updated_at = NOW() WHERE id = $2`

	if _, err := tx.Exec(ctx, query, credits, id); err != nil {
		return fmt.Errorf("add premium credits: %w", err)
	}
	return nil
}

// IncrementTotalInvites atomically bumps the inviter's redemption counter.
func (r *AccountRepo) IncrementTotalInvites(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE accounts SET total_invites = total_invites + 1, updated_at = NOW() WHERE id = $1`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("increment total invites: %w", err)
	}
	return nil
}

// CreditWallet atomically adds amount to the balance and lifetime earnings.
func (r *AccountRepo) CreditWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	query := `UPDATE accounts
		SET wallet_balance = wallet_balance + $1,
		    wallet_total_earned = wallet_total_earned + $1,
		    updated_at = NOW()
		WHERE id = $2`

	if _, err := tx.Exec(ctx, query, amount, id); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// HoldBalance decrements the balance only if it covers the amount. The
// check and the decrement are one statement, so two concurrent holds
// cannot both succeed against the same funds.
func (r *AccountRepo) HoldBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (bool, error) {
	query := `UPDATE accounts
		SET wallet_balance = wallet_balance - $1, updated_at = NOW()
		WHERE id = $2 AND wallet_balance >= $1`

	tag, err := tx.Exec(ctx, query, amount, id)
	if err != nil {
		return false, fmt.Errorf("hold balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseBalance refunds a previously held amount back into the balance.
func (r *AccountRepo) ReleaseBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	query := `UPDATE accounts SET wallet_balance = wallet_balance + $1, updated_at = NOW() WHERE id = $2`

	if _, err := tx.Exec(ctx, query, amount, id); err != nil {
		return fmt.Errorf("release balance: %w", err)
	}
	return nil
}

// AddTotalWithdrawn records a completed payout against lifetime withdrawals.
func (r *AccountRepo) AddTotalWithdrawn(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	query := `UPDATE accounts SET wallet_total_withdrawn = wallet_total_withdrawn + $1, updated_at = NOW() WHERE id = $2`

	if _, err := tx.Exec(ctx, query, amount, id); err != nil {
		return fmt.Errorf("add total withdrawn: %w", err)
	}
	return nil
}

// UpdatePaymentInfo replaces the account's payout preference.
func (r *AccountRepo) UpdatePaymentInfo(ctx context.Context, id uuid.UUID, info domain.PaymentInfo) error {
	query := `UPDATE accounts SET payment_method = $1, payment_details = $2, updated_at = NOW() WHERE id = $3`

	details, err := json.Marshal(info.Details)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, string(info.PreferredMethod), details, id); err != nil {
		return fmt.Errorf("update payment info: %w", err)
	}
	return nil
}

// UpdateSubscription replaces the account's subscription snapshot.
func (r *AccountRepo) UpdateSubscription(ctx context.Context, id uuid.UUID, sub domain.SubscriptionState) error {
	query := `UPDATE accounts
		SET subscription_plan_id = $1, subscription_status = $2,
		    subscription_period_end = $3, subscription_cancel_at_period_end = $4,
		    updated_at = NOW()
		WHERE id = $5`

	if _, err := r.pool.Exec(ctx, query, sub.PlanID, sub.Status, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, id); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// SetProviderCustomerID links the account to its payment provider customer.
func (r *AccountRepo) SetProviderCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	query := `UPDATE accounts SET provider_customer_id = $1, updated_at = NOW() WHERE id = $2`

	if _, err := r.pool.Exec(ctx, query, customerID, id); err != nil {
		return fmt.Errorf("set provider customer id: %w", err)
	}
	return nil
}

func marshalPaymentInfo(info *domain.PaymentInfo) (*string, []byte, error) {
	if info == nil {
		return nil, nil, nil
	}
	details, err := json.Marshal(info.Details)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payment details: %w", err)
	}
	method := string(info.PreferredMethod)
	return &method, details, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a              domain.Account
		paymentMethod  *string
		paymentDetails []byte
	)
	err := row.Scan(
		&a.ID, &a.DisplayName, &a.Email, &a.PasswordHash, &a.Role, &a.ProviderCustomerID,
		&a.InviteCode, &a.InvitedBy, &a.TotalInvites, &a.PremiumCredits,
		&a.Wallet.Balance, &a.Wallet.Currency, &a.Wallet.TotalEarned, &a.Wallet.TotalWithdrawn,
		&paymentMethod, &paymentDetails,
		&a.Subscription.PlanID, &a.Subscription.Status, &a.Subscription.CurrentPeriodEnd, &a.Subscription.CancelAtPeriodEnd,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentMethod != nil {
		info := domain.PaymentInfo{PreferredMethod: domain.PaymentMethod(*paymentMethod)}
		if len(paymentDetails) > 0 {
			if err := json.Unmarshal(paymentDetails, &info.Details); err != nil {
				return nil, fmt.Errorf("unmarshal payment details: %w", err)
			}
		}
		a.PaymentInfo = &info
	}
	return &a, nil
}
