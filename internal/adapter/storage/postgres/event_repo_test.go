package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepo_WasProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEventRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("evt_123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	processed, err := repo.WasProcessed(context.Background(), "evt_123")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_MarkProcessed_Replay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEventRepo(mock)

	// Replayed event hits ON CONFLICT DO NOTHING: zero rows, no error.
	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("evt_123", "invoice.payment_succeeded").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = repo.MarkProcessed(context.Background(), "evt_123", "invoice.payment_succeeded")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
