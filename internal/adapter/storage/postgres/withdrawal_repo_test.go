package postgres

import (
	"context"
	"testing"
	"time"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWithdrawal() *domain.WithdrawalRequest {
	return &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Amount:        25,
		Currency:      "EUR",
		Status:        domain.WithdrawalStatusPending,
		PaymentMethod: domain.PaymentMethodPayPal,
		PaymentDetails: domain.PaymentDetails{
			PayPalEmail: "alice@example.com",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func withdrawalRow(w *domain.WithdrawalRequest) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "amount", "currency", "status", "payment_method", "payment_details",
		"processed_at", "processed_by", "rejection_reason", "transaction_id", "created_at",
	}).AddRow(
		w.ID, w.UserID, w.Amount, w.Currency, w.Status, w.PaymentMethod,
		[]byte(`{"paypal_email":"alice@example.com"}`),
		w.ProcessedAt, w.ProcessedBy, w.RejectionReason, w.TransactionID, w.CreatedAt,
	)
}

func TestWithdrawalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.UserID, w.Amount, w.Currency, w.Status, w.PaymentMethod, pgxmock.AnyArg(),
			w.ProcessedAt, w.ProcessedBy, w.RejectionReason, w.TransactionID, w.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_Create_DuplicateOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "withdrawal_requests_open_user_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.Amount, result.Amount)
	assert.Equal(t, "alice@example.com", result.PaymentDetails.PayPalEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetOpenByUser_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests").
		WithArgs(userID, domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	result, err := repo.GetOpenByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_MarkCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()
	adminID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests").
		WithArgs(domain.WithdrawalStatusCompleted, adminID, "tr_789", at, id, domain.WithdrawalStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkCompleted(context.Background(), tx, id, adminID, "tr_789", at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_MarkRejected_NotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()
	adminID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests").
		WithArgs(domain.WithdrawalStatusRejected, adminID, "invalid bank details", at, id, domain.WithdrawalStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkRejected(context.Background(), tx, id, adminID, "invalid bank details", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(w.UserID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests").
		WithArgs(w.UserID, 20, 0).
		WillReturnRows(withdrawalRow(w))

	requests, total, err := repo.ListByUser(context.Background(), w.UserID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, requests, 1)
	assert.Equal(t, w.ID, requests[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_List_StatusFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal()
	status := domain.WithdrawalStatusPending

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "amount", "currency", "status", "payment_method", "payment_details",
		"processed_at", "processed_by", "rejection_reason", "transaction_id", "created_at",
		"display_name", "email",
	}).AddRow(
		w.ID, w.UserID, w.Amount, w.Currency, w.Status, w.PaymentMethod,
		[]byte(`{"paypal_email":"alice@example.com"}`),
		w.ProcessedAt, w.ProcessedBy, w.RejectionReason, w.TransactionID, w.CreatedAt,
		"Alice", "alice@example.com",
	)
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests w").
		WithArgs(status, 20, 0).
		WillReturnRows(rows)

	details, total, err := repo.List(context.Background(), ports.WithdrawalListParams{
		Status:   &status,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, details, 1)
	assert.Equal(t, "Alice", details[0].UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
