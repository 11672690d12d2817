package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor on top of the connection pool.
// Services open one transaction per multi-row atomic unit (redemption,
// commission credit, withdrawal transition) and commit or roll back as a
// whole.
type Transactor struct {
	pool Pool
}

// NewTransactor wraps the pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
