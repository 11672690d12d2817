package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Invite Registry (INV) ----

func ErrInvalidCode() *AppError {
	return New("INV_001", "Invalid invite code", http.StatusNotFound)
}

func ErrSelfReferral() *AppError {
	return New("INV_002", "You cannot use your own invite code", http.StatusBadRequest)
}

func ErrAlreadyInvited() *AppError {
	return New("INV_003", "You have already been invited by another user", http.StatusConflict)
}

func ErrAlreadyRedeemed() *AppError {
	return New("INV_004", "You already redeemed this code", http.StatusConflict)
}

func ErrGenerationExhausted() *AppError {
	return New("INV_005", "Could not generate a unique invite code", http.StatusInternalServerError)
}

// ---- Wallet & Withdrawals (WDR) ----

func ErrInsufficientBalance() *AppError {
	return New("WDR_001", "Insufficient wallet balance", http.StatusBadRequest)
}

func ErrBelowMinimum(minimum int64) *AppError {
	return New("WDR_002", fmt.Sprintf("Minimum withdrawal amount is %d", minimum), http.StatusBadRequest)
}

func ErrDuplicatePending() *AppError {
	return New("WDR_003", "You already have a pending withdrawal request", http.StatusConflict)
}

func ErrInvalidState(current string) *AppError {
	return New("WDR_004", fmt.Sprintf("Operation not allowed for a %s withdrawal request", current), http.StatusConflict)
}

func ErrPaymentInfoMissing() *AppError {
	return New("WDR_005", "Please set up your payment information first", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("WDR_006", "Invalid amount", http.StatusBadRequest)
}

// ---- Webhook Processing (WHK) ----

func ErrInvalidWebhookSignature() *AppError {
	return New("WHK_001", "Webhook signature verification failed", http.StatusBadRequest)
}

func ErrWebhookPayload(err error) *AppError {
	return Wrap("WHK_002", "Malformed webhook payload", http.StatusBadRequest, err)
}

func ErrWebhookProcessing(err error) *AppError {
	return Wrap("WHK_003", "Webhook processing failed", http.StatusInternalServerError, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Admin privileges required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrNotFound(entity string) *AppError {
	return New("SYS_404", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// InternalError wraps an internal error as a generic SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a 400 validation error with the given message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
