package ports

import (
	"context"
	"time"

	"referral-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, role domain.AccountRole) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Role      domain.AccountRole
}

// WebhookVerifier checks the provider's signature header against the raw
// request body before any parsing happens.
type WebhookVerifier interface {
	// Verify returns a non-nil error for a missing, malformed, stale or
	// mismatched signature.
	Verify(payload []byte, sigHeader string) error
	// Sign produces a valid header for the payload at the given time
	// (used by tests and the provider simulator).
	Sign(payload []byte, at time.Time) string
}

// EventDedupCache is the fast-path replay check for webhook deliveries.
type EventDedupCache interface {
	// MarkSeen atomically records the event ID. Returns true if this is
	// the first sighting, false on a replay.
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// InviteCodeInfo is the user-facing view of their invite code.
type InviteCodeInfo struct {
	InviteCode     string
	ShareMessage   string
	CommissionRate float64
}

// RedemptionResult reports the outcome of a successful redemption.
type RedemptionResult struct {
	InviterID      uuid.UUID
	BonusCredits   int64 // 0 when the welcome bonus is disabled
	CreditsBalance int64
	CommissionRate float64
}

// InviteStats summarizes an inviter's referral activity.
type InviteStats struct {
	InviteCode        *string
	TotalInvites      int64
	PremiumCredits    int64
	Wallet            domain.Wallet
	CommissionRate    float64
	CommissionsEarned int64
	RecentInvites     []RedemptionDetail
}

// InviteService defines invite-code issuance and redemption.
type InviteService interface {
	GetOrCreateCode(ctx context.Context, accountID uuid.UUID) (*InviteCodeInfo, error)
	Redeem(ctx context.Context, redeemerID uuid.UUID, rawCode string) (*RedemptionResult, error)
	Stats(ctx context.Context, accountID uuid.UUID) (*InviteStats, error)
}

// CommissionInput identifies one subscription payment to credit.
type CommissionInput struct {
	ReferredUserID uuid.UUID
	SubscriptionID string
	PlanID         string
	Amount         int64  // Subscription price in whole currency units
	Currency       string
	EventRef       string // Provider invoice/event reference
}

// CommissionService defines the commission ledger.
type CommissionService interface {
	// RecordCommission credits the referrer for one billing cycle.
	// Returns (nil, nil) when the referred user has no referrer; returns
	// the existing record unchanged on replays.
	RecordCommission(ctx context.Context, input CommissionInput) (*domain.Commission, error)
	ListByReferrer(ctx context.Context, params CommissionListParams) ([]CommissionDetail, int64, error)
	AdminStats(ctx context.Context) (*CommissionAdminStats, error)
}

// CommissionAdminStats is the admin dashboard aggregate.
type CommissionAdminStats struct {
	ByStatus     []CommissionStatusStat
	TopReferrers []ReferrerStat
}

// WalletOverview is the response shape for the wallet endpoint.
type WalletOverview struct {
	Wallet              domain.Wallet
	RecentCommissions   []CommissionDetail
	PendingWithdrawals  []domain.WithdrawalRequest
	MinWithdrawalAmount int64
}

// WalletService defines wallet read operations and payout preferences.
type WalletService interface {
	Overview(ctx context.Context, accountID uuid.UUID) (*WalletOverview, error)
	UpdatePaymentInfo(ctx context.Context, accountID uuid.UUID, info domain.PaymentInfo) error
}

// WithdrawalService defines the withdrawal request state machine.
type WithdrawalService interface {
	Create(ctx context.Context, userID uuid.UUID, amount int64) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, requestID, adminID uuid.UUID, transactionID string) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, requestID, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
	Cancel(ctx context.Context, requestID, ownerID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error)
	ListAll(ctx context.Context, params WithdrawalListParams) ([]WithdrawalDetail, int64, error)
}

// WebhookProcessor verifies, deduplicates and dispatches provider events.
type WebhookProcessor interface {
	// Process handles one delivery end to end. A nil return means every
	// side effect is durably applied and the delivery may be acknowledged.
	Process(ctx context.Context, payload []byte, sigHeader string) error
}

// AuthService defines the thin account registration/login slice.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for account registration.
type RegisterRequest struct {
	DisplayName string
	Email       string
	Password    string
}
