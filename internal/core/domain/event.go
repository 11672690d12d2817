package domain

import (
	"encoding/json"
	"time"
)

// Provider event types the processor dispatches on. Unknown types are
// acknowledged without side effects.
const (
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

// ProviderEvent is the provider's webhook envelope.
type ProviderEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// InvoiceObject is the subset of the provider's invoice payload the ledger
// needs: who paid, for which subscription.
type InvoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
}

// SubscriptionObject is the subset of the provider's subscription payload
// used to keep the account's subscription snapshot current.
type SubscriptionObject struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	PriceID           string `json:"price_id"`
	CurrentPeriodEnd  int64  `json:"current_period_end"` // Unix seconds
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// ProcessedEvent is the durable record of a fully handled delivery.
// Replays of the same event ID short-circuit to an acknowledgment.
type ProcessedEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}
