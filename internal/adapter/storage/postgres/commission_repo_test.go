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

func newTestCommission() *domain.Commission {
	return &domain.Commission{
		ID:                 uuid.New(),
		ReferrerID:         uuid.New(),
		ReferredUserID:     uuid.New(),
		SubscriptionID:     "sub_123",
		PlanID:             "premium_6_months",
		SubscriptionAmount: 54,
		CommissionAmount:   10,
		CommissionRate:     0.20,
		Currency:           "EUR",
		Status:             domain.CommissionStatusPending,
		ProviderEventRef:   "evt_abc",
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestCommissionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	c := newTestCommission()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO commissions").
		WithArgs(c.ID, c.ReferrerID, c.ReferredUserID, c.SubscriptionID, c.PlanID,
			c.SubscriptionAmount, c.CommissionAmount, c.CommissionRate, c.Currency, c.Status,
			c.PaidAt, c.ProviderEventRef, c.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_Create_DuplicateSubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	c := newTestCommission()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO commissions").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "commissions_subscription_referred_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, c)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_GetBySubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	c := newTestCommission()

	rows := pgxmock.NewRows([]string{
		"id", "referrer_id", "referred_user_id", "subscription_id", "plan_id",
		"subscription_amount", "commission_amount", "commission_rate", "currency", "status",
		"paid_at", "provider_event_ref", "created_at",
	}).AddRow(
		c.ID, c.ReferrerID, c.ReferredUserID, c.SubscriptionID, c.PlanID,
		c.SubscriptionAmount, c.CommissionAmount, c.CommissionRate, c.Currency, c.Status,
		c.PaidAt, c.ProviderEventRef, c.CreatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM commissions").
		WithArgs(c.SubscriptionID, c.ReferredUserID).
		WillReturnRows(rows)

	result, err := repo.GetBySubscription(context.Background(), c.SubscriptionID, c.ReferredUserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(10), result.CommissionAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_GetBySubscription_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM commissions").
		WithArgs("sub_missing", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	result, err := repo.GetBySubscription(context.Background(), "sub_missing", uuid.New())
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_MarkPaid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	id := uuid.New()
	paidAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE commissions SET status").
		WithArgs(domain.CommissionStatusPaid, paidAt, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkPaid(context.Background(), tx, id, paidAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_ListByReferrer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	c := newTestCommission()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(c.ReferrerID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	rows := pgxmock.NewRows([]string{
		"id", "referrer_id", "referred_user_id", "subscription_id", "plan_id",
		"subscription_amount", "commission_amount", "commission_rate", "currency", "status",
		"paid_at", "provider_event_ref", "created_at", "display_name",
	}).AddRow(
		c.ID, c.ReferrerID, c.ReferredUserID, c.SubscriptionID, c.PlanID,
		c.SubscriptionAmount, c.CommissionAmount, c.CommissionRate, c.Currency, c.Status,
		c.PaidAt, c.ProviderEventRef, c.CreatedAt, "Bob",
	)
	mock.ExpectQuery("SELECT .+ FROM commissions c").
		WithArgs(c.ReferrerID, 20, 0).
		WillReturnRows(rows)

	details, total, err := repo.ListByReferrer(context.Background(), ports.CommissionListParams{
		ReferrerID: c.ReferrerID,
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, details, 1)
	assert.Equal(t, "Bob", details[0].ReferredUserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_SumPaidByReferrer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	referrerID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(referrerID, domain.CommissionStatusPaid).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(30)))

	total, err := repo.SumPaidByReferrer(context.Background(), referrerID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_TopReferrers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	userID := uuid.New()

	rows := pgxmock.NewRows([]string{"referrer_id", "display_name", "email", "total_earned", "referral_count"}).
		AddRow(userID, "Alice", "alice@example.com", int64(120), int64(6))
	mock.ExpectQuery("SELECT .+ FROM commissions c").
		WithArgs(domain.CommissionStatusPaid, 10).
		WillReturnRows(rows)

	stats, err := repo.TopReferrers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(120), stats[0].TotalEarned)
	assert.Equal(t, int64(6), stats[0].ReferralCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
