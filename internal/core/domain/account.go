package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountRole separates normal users from payout operators.
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// SubscriptionStatus mirrors the payment provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Wallet is the authoritative referral-earnings balance for an account.
// Balance is mutated only through atomic increments in the store; it is
// never read-modified-written by application code.
type Wallet struct {
	Balance        int64  `json:"balance"`
	Currency       string `json:"currency"`
	TotalEarned    int64  `json:"total_earned"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
}

// PaymentMethod identifies how a user wants withdrawals paid out.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPayPal       PaymentMethod = "paypal"
)

// PaymentDetails holds method-specific payout coordinates. Only the fields
// for the preferred method are populated.
type PaymentDetails struct {
	AccountHolderName string `json:"account_holder_name,omitempty"`
	AccountNumber     string `json:"account_number,omitempty"`
	BankName          string `json:"bank_name,omitempty"`
	PayPalEmail       string `json:"paypal_email,omitempty"`
}

// PaymentInfo is the user's current payout preference.
type PaymentInfo struct {
	PreferredMethod PaymentMethod  `json:"preferred_method"`
	Details         PaymentDetails `json:"details"`
}

// SubscriptionState is the account-local snapshot of the provider-side
// subscription, kept current by the webhook processor.
type SubscriptionState struct {
	PlanID            string             `json:"plan_id,omitempty"`
	Status            SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
}

// Account is the user aggregate as seen by the referral ledger.
type Account struct {
	ID                 uuid.UUID         `json:"id"`
	DisplayName        string            `json:"display_name"`
	Email              string            `json:"email"`
	PasswordHash       string            `json:"-"` // Never expose
	Role               AccountRole       `json:"role"`
	ProviderCustomerID *string           `json:"-"` // Payment provider customer reference
	InviteCode         *string           `json:"invite_code,omitempty"` // Unique, uppercase, set on first request
	InvitedBy          *uuid.UUID        `json:"invited_by,omitempty"`  // At most one, immutable once set
	TotalInvites       int64             `json:"total_invites"`
	PremiumCredits     int64             `json:"premium_credits"` // Welcome-bonus credits, separate from wallet
	Wallet             Wallet            `json:"wallet"`
	PaymentInfo        *PaymentInfo      `json:"payment_info,omitempty"`
	Subscription       SubscriptionState `json:"subscription"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// IsAdmin returns true if the account may adjudicate withdrawals.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HasPaymentInfo returns true if a payout method is configured.
func (a *Account) HasPaymentInfo() bool {
	return a.PaymentInfo != nil && a.PaymentInfo.PreferredMethod != ""
}
