package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus represents the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"
)

// ValidWithdrawalStatus reports whether s is a known status value.
func ValidWithdrawalStatus(s string) bool {
	switch WithdrawalStatus(s) {
	case WithdrawalStatusPending, WithdrawalStatusProcessing,
		WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// WithdrawalRequest is a user's payout request. The amount is held from
// the wallet balance at creation and refunded on rejection/cancellation.
// A user may have at most one request in an open state at a time.
type WithdrawalRequest struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Amount          int64            `json:"amount"` // Immutable once created
	Currency        string           `json:"currency"`
	Status          WithdrawalStatus `json:"status"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	PaymentDetails  PaymentDetails   `json:"payment_details"` // Snapshot taken at creation
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	ProcessedBy     *uuid.UUID       `json:"processed_by,omitempty"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	TransactionID   *string          `json:"transaction_id,omitempty"` // External transfer reference set on approval
	CreatedAt       time.Time        `json:"created_at"`
}

// IsOpen returns true if the request still holds wallet balance and blocks
// new withdrawal requests for the same user.
func (w *WithdrawalRequest) IsOpen() bool {
	return w.Status == WithdrawalStatusPending || w.Status == WithdrawalStatusProcessing
}

// IsTerminal returns true if the request is in a final state. Terminal
// requests are immutable; no operation may revive them.
func (w *WithdrawalRequest) IsTerminal() bool {
	return w.Status == WithdrawalStatusCompleted ||
		w.Status == WithdrawalStatusRejected ||
		w.Status == WithdrawalStatusCancelled
}
