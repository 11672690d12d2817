package ports

import (
	"context"
	"errors"
	"time"

	"referral-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicate is returned by repositories when an insert violates a
// uniqueness constraint. Services translate it into the appropriate
// conflict error (or into an idempotent no-op for commissions).
var ErrDuplicate = errors.New("duplicate record")

// AccountRepository defines persistence operations for accounts.
// The wallet mutators are blind atomic increments executed by the store;
// HoldBalance combines the balance check and the decrement in a single
// conditional statement so concurrent holds cannot both pass a stale check.
// Methods accepting pgx.Tx participate in multi-row atomic units.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByInviteCode(ctx context.Context, code string) (*domain.Account, error)
	GetByCustomerID(ctx context.Context, customerID string) (*domain.Account, error)

	InviteCodeExists(ctx context.Context, code string) (bool, error)
	// SetInviteCode persists a freshly generated code, only if the account
	// has none yet. Returns false when a concurrent first request already
	// claimed a code for this account; returns ErrDuplicate when another
	// account owns the code.
	SetInviteCode(ctx context.Context, id uuid.UUID, code string) (bool, error)
	// SetInvitedBy sets the inviter only if none is set yet.
	// Returns false if invited_by was already populated.
	SetInvitedBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, inviterID uuid.UUID) (bool, error)
	AddPremiumCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64) error
	IncrementTotalInvites(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// CreditWallet atomically adds amount to balance and total_earned.
	CreditWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error
	// HoldBalance atomically decrements balance if it covers amount.
	// Returns false when the balance is insufficient.
	HoldBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (bool, error)
	// ReleaseBalance refunds a previously held amount back into balance.
	ReleaseBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error
	// AddTotalWithdrawn records a completed payout.
	AddTotalWithdrawn(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error

	UpdatePaymentInfo(ctx context.Context, id uuid.UUID, info domain.PaymentInfo) error
	UpdateSubscription(ctx context.Context, id uuid.UUID, sub domain.SubscriptionState) error
	SetProviderCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// RedemptionRepository persists invite-code redemptions.
type RedemptionRepository interface {
	// Create inserts a redemption. Returns ErrDuplicate when the
	// (invite_code, redeemed_by) pair already exists.
	Create(ctx context.Context, tx pgx.Tx, redemption *domain.InvitationRedemption) error
	Exists(ctx context.Context, code string, redeemedBy uuid.UUID) (bool, error)
	// ListByInviter returns recent redemptions of the inviter's code,
	// newest first, with the redeemer's display name joined in.
	ListByInviter(ctx context.Context, inviterID uuid.UUID, limit int) ([]RedemptionDetail, error)
}

// RedemptionDetail is a redemption with redeemer identity for display.
type RedemptionDetail struct {
	domain.InvitationRedemption
	RedeemerName string
}

// CommissionRepository persists the commission ledger.
type CommissionRepository interface {
	// Create inserts a commission. Returns ErrDuplicate when a commission
	// for (subscription_id, referred_user_id) already exists.
	Create(ctx context.Context, tx pgx.Tx, commission *domain.Commission) error
	GetBySubscription(ctx context.Context, subscriptionID string, referredUserID uuid.UUID) (*domain.Commission, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error
	ListByReferrer(ctx context.Context, params CommissionListParams) ([]CommissionDetail, int64, error)
	// ListRecentPaid returns the newest paid commissions for the wallet view.
	ListRecentPaid(ctx context.Context, referrerID uuid.UUID, limit int) ([]CommissionDetail, error)
	// SumPaidByReferrer totals paid commission amounts for one referrer.
	SumPaidByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)
	GetStats(ctx context.Context) ([]CommissionStatusStat, error)
	TopReferrers(ctx context.Context, limit int) ([]ReferrerStat, error)
}

// CommissionListParams holds filter + pagination for commission listings.
type CommissionListParams struct {
	ReferrerID uuid.UUID
	Status     *domain.CommissionStatus
	Page       int
	PageSize   int
}

// CommissionDetail is a commission with the referred user's name joined in.
type CommissionDetail struct {
	domain.Commission
	ReferredUserName string
}

// CommissionStatusStat aggregates commissions per status.
type CommissionStatusStat struct {
	Status      domain.CommissionStatus
	Count       int64
	TotalAmount int64
}

// ReferrerStat is one row of the top-referrers leaderboard.
type ReferrerStat struct {
	UserID        uuid.UUID
	DisplayName   string
	Email         string
	TotalEarned   int64
	ReferralCount int64
}

// WithdrawalRepository persists withdrawal requests. Status transitions
// are conditional updates guarded by the current status, so a request
// that already left pending reports zero rows instead of silently
// overwriting a terminal state.
type WithdrawalRepository interface {
	// Create inserts a request. Returns ErrDuplicate when the user already
	// has an open (pending/processing) request.
	Create(ctx context.Context, tx pgx.Tx, request *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetOpenByUser(ctx context.Context, userID uuid.UUID) (*domain.WithdrawalRequest, error)
	// MarkCompleted transitions pending -> completed. Returns false if the
	// request was not pending.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID uuid.UUID, transactionID string, at time.Time) (bool, error)
	// MarkRejected transitions pending -> rejected.
	MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID uuid.UUID, reason string, at time.Time) (bool, error)
	// MarkCancelled transitions pending -> cancelled.
	MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error)
	List(ctx context.Context, params WithdrawalListParams) ([]WithdrawalDetail, int64, error)
}

// WithdrawalListParams holds filter + pagination for the admin listing.
type WithdrawalListParams struct {
	Status   *domain.WithdrawalStatus
	Page     int
	PageSize int
}

// WithdrawalDetail is a withdrawal request with requester identity.
type WithdrawalDetail struct {
	domain.WithdrawalRequest
	UserName  string
	UserEmail string
}

// EventRepository is the durable record of processed provider events.
type EventRepository interface {
	WasProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records a fully handled event. Re-marking the same
	// event is a no-op.
	MarkProcessed(ctx context.Context, eventID string, eventType string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
