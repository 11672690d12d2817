package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, amount, currency, status, payment_method, payment_details,
		processed_at, processed_by, rejection_reason, transaction_id, created_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a withdrawal request. A partial unique index on user_id
// over open statuses makes a second open request surface as
// ports.ErrDuplicate.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (id, user_id, amount, currency, status, payment_method, payment_details,
			processed_at, processed_by, rejection_reason, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	details, err := json.Marshal(w.PaymentDetails)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}

	_, err = tx.Exec(ctx, query,
		w.ID, w.UserID, w.Amount, w.Currency, w.Status, w.PaymentMethod, details,
		w.ProcessedAt, w.ProcessedBy, w.RejectionReason, w.TransactionID, w.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal request by its UUID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// GetOpenByUser fetches the user's open (pending/processing) request, if any.
func (r *WithdrawalRepo) GetOpenByUser(ctx context.Context, userID uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, userID,
		domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open withdrawal: %w", err)
	}
	return w, nil
}

// MarkCompleted transitions pending -> completed. The status guard makes
// concurrent adjudications of the same request resolve to one winner.
func (r *WithdrawalRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID uuid.UUID, transactionID string, at time.Time) (bool, error) {
	query := `UPDATE withdrawal_requests
		SET status = $1, processed_by = $2, transaction_id = $3, processed_at = $4
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query,
		domain.WithdrawalStatusCompleted, adminID, transactionID, at,
		id, domain.WithdrawalStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark withdrawal completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRejected transitions pending -> rejected.
func (r *WithdrawalRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `UPDATE withdrawal_requests
		SET status = $1, processed_by = $2, rejection_reason = $3, processed_at = $4
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query,
		domain.WithdrawalStatusRejected, adminID, reason, at,
		id, domain.WithdrawalStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark withdrawal rejected: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCancelled transitions pending -> cancelled.
func (r *WithdrawalRepo) MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE withdrawal_requests
		SET status = $1, processed_at = $2
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query,
		domain.WithdrawalStatusCancelled, at,
		id, domain.WithdrawalStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark withdrawal cancelled: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser returns a page of the user's withdrawal history, newest first.
func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	countQuery := `SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var requests []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal: %w", err)
		}
		requests = append(requests, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return requests, total, nil
}

// List returns a page across all users for the admin view, with requester
// identity joined in.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]ports.WithdrawalDetail, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("w.status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM withdrawal_requests w %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT w.id, w.user_id, w.amount, w.currency, w.status, w.payment_method, w.payment_details,
			w.processed_at, w.processed_by, w.rejection_reason, w.transaction_id, w.created_at,
			a.display_name, a.email
		FROM withdrawal_requests w
		JOIN accounts a ON a.id = w.user_id
		%s ORDER BY w.created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var details []ports.WithdrawalDetail
	for rows.Next() {
		var d ports.WithdrawalDetail
		var rawDetails []byte
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Amount, &d.Currency, &d.Status, &d.PaymentMethod, &rawDetails,
			&d.ProcessedAt, &d.ProcessedBy, &d.RejectionReason, &d.TransactionID, &d.CreatedAt,
			&d.UserName, &d.UserEmail,
		); err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal: %w", err)
		}
		if len(rawDetails) > 0 {
			if err := json.Unmarshal(rawDetails, &d.PaymentDetails); err != nil {
				return nil, 0, fmt.Errorf("unmarshal payment details: %w", err)
			}
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return details, total, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var (
		w          domain.WithdrawalRequest
		rawDetails []byte
	)
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status, &w.PaymentMethod, &rawDetails,
		&w.ProcessedAt, &w.ProcessedBy, &w.RejectionReason, &w.TransactionID, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawDetails) > 0 {
		if err := json.Unmarshal(rawDetails, &w.PaymentDetails); err != nil {
			return nil, fmt.Errorf("unmarshal payment details: %w", err)
		}
	}
	return &w, nil
}
