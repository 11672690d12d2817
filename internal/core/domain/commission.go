package domain

import (
	"time"

	"github.com/google/uuid"
)

// CommissionStatus represents the lifecycle state of a commission.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// Commission is an append-only ledger entry crediting a referrer for a
// referred user's subscription payment. Unique on
// (subscription_id, referred_user_id) — that pair is the idempotency key
// deduplicating repeated webhook deliveries for the same billing cycle.
type Commission struct {
	ID                 uuid.UUID        `json:"id"`
	ReferrerID         uuid.UUID        `json:"referrer_id"`
	ReferredUserID     uuid.UUID        `json:"referred_user_id"`
	SubscriptionID     string           `json:"subscription_id"`
	PlanID             string           `json:"plan_id"`
	SubscriptionAmount int64            `json:"subscription_amount"`
	CommissionAmount   int64            `json:"commission_amount"`
	CommissionRate     float64          `json:"commission_rate"`
	Currency           string           `json:"currency"`
	Status             CommissionStatus `json:"status"`
	PaidAt             *time.Time       `json:"paid_at,omitempty"`
	ProviderEventRef   string           `json:"provider_event_ref"` // Invoice/event ID from the provider
	CreatedAt          time.Time        `json:"created_at"`
}

// CalculateCommission computes the referrer's cut in integer currency
// units. rateBps is the rate in basis points (2000 = 20%). Integer
// division floors, so the referrer never earns more than the exact cut.
func CalculateCommission(subscriptionAmount int64, rateBps int64) int64 {
	return subscriptionAmount * rateBps / 10000
}
