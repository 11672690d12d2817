package dto

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for account login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// RedeemRequest is the request body for invite code redemption.
type RedeemRequest struct {
	InviteCode string `json:"invite_code" binding:"required,min=3,max=32,invite_code"`
}

// InviteCodeResponse is the response for the invite code endpoint.
type InviteCodeResponse struct {
	InviteCode     string  `json:"invite_code"`
	ShareMessage   string  `json:"share_message"`
	CommissionRate float64 `json:"commission_rate"`
}

// RedeemResponse is the response for a successful redemption.
type RedeemResponse struct {
	BonusCredits   int64   `json:"bonus_credits"`
	CreditsBalance int64   `json:"credits_balance"`
	CommissionRate float64 `json:"commission_rate"`
}

// RecentInvite is one redemption row in the stats view.
type RecentInvite struct {
	RedeemerName string `json:"redeemer_name"`
	RedeemedAt   string `json:"redeemed_at"`
}

// InviteStatsResponse is the response for the invite stats endpoint.
type InviteStatsResponse struct {
	InviteCode        *string        `json:"invite_code"`
	TotalInvites      int64          `json:"total_invites"`
	PremiumCredits    int64          `json:"premium_credits"`
	CommissionRate    float64        `json:"commission_rate"`
	CommissionsEarned int64          `json:"commissions_earned"`
	WalletBalance     int64          `json:"wallet_balance"`
	Currency          string         `json:"currency"`
	RecentInvites     []RecentInvite `json:"recent_invites"`
}

// PaymentInfoRequest is the request body for payout preferences.
type PaymentInfoRequest struct {
	PreferredMethod   string `json:"preferred_method" binding:"required,oneof=bank_transfer paypal"`
	AccountHolderName string `json:"account_holder_name,omitempty" binding:"max=100"`
	AccountNumber     string `json:"account_number,omitempty" binding:"max=64"`
	BankName          string `json:"bank_name,omitempty" binding:"max=100"`
	PayPalEmail       string `json:"paypal_email,omitempty" binding:"omitempty,email"`
}

// CommissionResponse is one commission in a listing.
type CommissionResponse struct {
	ID               string  `json:"id"`
	ReferredUserName string  `json:"referred_user_name,omitempty"`
	PlanID           string  `json:"plan_id"`
	Amount           int64   `json:"amount"`
	Rate             float64 `json:"rate"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	PaidAt           *string `json:"paid_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// WalletResponse is the response for the wallet overview endpoint.
type WalletResponse struct {
	Balance             int64                `json:"balance"`
	Currency            string               `json:"currency"`
	TotalEarned         int64                `json:"total_earned"`
	TotalWithdrawn      int64                `json:"total_withdrawn"`
	MinWithdrawalAmount int64                `json:"min_withdrawal_amount"`
	RecentCommissions   []CommissionResponse `json:"recent_commissions"`
	PendingWithdrawals  []WithdrawalResponse `json:"pending_withdrawals"`
}

// WithdrawRequest is the request body for creating a withdrawal.
type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// WithdrawalResponse is one withdrawal request in a response.
type WithdrawalResponse struct {
	ID              string  `json:"id"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	PaymentMethod   string  `json:"payment_method"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	TransactionID   *string `json:"transaction_id,omitempty"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// AdminWithdrawalResponse adds requester identity for the admin listing.
type AdminWithdrawalResponse struct {
	WithdrawalResponse
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// ApproveWithdrawalRequest is the admin approval body.
type ApproveWithdrawalRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,max=100"`
}

// RejectWithdrawalRequest is the admin rejection body.
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CommissionStatusStatResponse is one per-status aggregate row.
type CommissionStatusStatResponse struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	TotalAmount int64  `json:"total_amount"`
}

// TopReferrerResponse is one leaderboard row.
type TopReferrerResponse struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email"`
	TotalEarned   int64  `json:"total_earned"`
	ReferralCount int64  `json:"referral_count"`
}

// CommissionStatsResponse is the admin stats payload.
type CommissionStatsResponse struct {
	ByStatus     []CommissionStatusStatResponse `json:"by_status"`
	TopReferrers []TopReferrerResponse          `json:"top_referrers"`
}

// ListResponse wraps a paginated collection.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}
