package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const commissionColumns = `id, referrer_id, referred_user_id, subscription_id, plan_id,
		subscription_amount, commission_amount, commission_rate, currency, status,
		paid_at, provider_event_ref, created_at`

// CommissionRepo implements ports.CommissionRepository.
type CommissionRepo struct {
	pool Pool
}

// NewCommissionRepo creates a new CommissionRepo.
func NewCommissionRepo(pool Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// Create inserts a commission. The unique index on
// (subscription_id, referred_user_id) makes replayed provider events
// surface as ports.ErrDuplicate instead of a second credit.
func (r *CommissionRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Commission) error {
	query := `INSERT INTO commissions (id, referrer_id, referred_user_id, subscription_id, plan_id,
			subscription_amount, commission_amount, commission_rate, currency, status,
			paid_at, provider_event_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.ReferrerID, c.ReferredUserID, c.SubscriptionID, c.PlanID,
		c.SubscriptionAmount, c.CommissionAmount, c.CommissionRate, c.Currency, c.Status,
		c.PaidAt, c.ProviderEventRef, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

// GetBySubscription fetches the commission recorded for a
// (subscription, referred user) pair.
func (r *CommissionRepo) GetBySubscription(ctx context.Context, subscriptionID string, referredUserID uuid.UUID) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions
		WHERE subscription_id = $1 AND referred_user_id = $2`

	c := &domain.Commission{}
	err := r.pool.QueryRow(ctx, query, subscriptionID, referredUserID).Scan(
		&c.ID, &c.ReferrerID, &c.ReferredUserID, &c.SubscriptionID, &c.PlanID,
		&c.SubscriptionAmount, &c.CommissionAmount, &c.CommissionRate, &c.Currency, &c.Status,
		&c.PaidAt, &c.ProviderEventRef, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get commission: %w", err)
	}
	return c, nil
}

// MarkPaid transitions a commission to paid.
func (r *CommissionRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error {
	query := `UPDATE commissions SET status = $1, paid_at = $2 WHERE id = $3`

	if _, err := tx.Exec(ctx, query, domain.CommissionStatusPaid, paidAt, id); err != nil {
		return fmt.Errorf("mark commission paid: %w", err)
	}
	return nil
}

// ListByReferrer returns a page of the referrer's commissions, newest first,
// with the referred user's display name joined in.
func (r *CommissionRepo) ListByReferrer(ctx context.Context, params ports.CommissionListParams) ([]ports.CommissionDetail, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("c.referrer_id = $%d", argIdx))
	args = append(args, params.ReferrerID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM commissions c %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count commissions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT c.id, c.referrer_id, c.referred_user_id, c.subscription_id, c.plan_id,
			c.subscription_amount, c.commission_amount, c.commission_rate, c.currency, c.status,
			c.paid_at, c.provider_event_ref, c.created_at, a.display_name
		FROM commissions c
		JOIN accounts a ON a.id = c.referred_user_id
		%s ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	details, err := r.queryDetails(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

// ListRecentPaid returns the newest paid commissions for the wallet view.
func (r *CommissionRepo) ListRecentPaid(ctx context.Context, referrerID uuid.UUID, limit int) ([]ports.CommissionDetail, error) {
	query := `SELECT c.id, c.referrer_id, c.referred_user_id, c.subscription_id, c.plan_id,
			c.subscription_amount, c.commission_amount, c.commission_rate, c.currency, c.status,
			c.paid_at, c.provider_event_ref, c.created_at, a.display_name
		FROM commissions c
		JOIN accounts a ON a.id = c.referred_user_id
		WHERE c.referrer_id = $1 AND c.status = $2
		ORDER BY c.created_at DESC
		LIMIT $3`

	return r.queryDetails(ctx, query, referrerID, domain.CommissionStatusPaid, limit)
}

// SumPaidByReferrer totals paid commission amounts for one referrer.
func (r *CommissionRepo) SumPaidByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(commission_amount), 0) FROM commissions
		WHERE referrer_id = $1 AND status = $2`

	var total int64
	if err := r.pool.QueryRow(ctx, query, referrerID, domain.CommissionStatusPaid).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum paid commissions: %w", err)
	}
	return total, nil
}

// GetStats aggregates commission counts and amounts per status.
func (r *CommissionRepo) GetStats(ctx context.Context) ([]ports.CommissionStatusStat, error) {
	query := `SELECT status, COUNT(*), COALESCE(SUM(commission_amount), 0)
		FROM commissions GROUP BY status ORDER BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("commission stats: %w", err)
	}
	defer rows.Close()

	var stats []ports.CommissionStatusStat
	for rows.Next() {
		var s ports.CommissionStatusStat
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan commission stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission stats: %w", err)
	}
	return stats, nil
}

// TopReferrers returns the leaderboard ordered by paid earnings.
func (r *CommissionRepo) TopReferrers(ctx context.Context, limit int) ([]ports.ReferrerStat, error) {
	query := `SELECT c.referrer_id, a.display_name, a.email,
			COALESCE(SUM(c.commission_amount), 0) AS total_earned,
			COUNT(*) AS referral_count
		FROM commissions c
		JOIN accounts a ON a.id = c.referrer_id
		WHERE c.status = $1
		GROUP BY c.referrer_id, a.display_name, a.email
		ORDER BY total_earned DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.CommissionStatusPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	defer rows.Close()

	var stats []ports.ReferrerStat
	for rows.Next() {
		var s ports.ReferrerStat
		if err := rows.Scan(&s.UserID, &s.DisplayName, &s.Email, &s.TotalEarned, &s.ReferralCount); err != nil {
			return nil, fmt.Errorf("scan referrer stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrer stats: %w", err)
	}
	return stats, nil
}

func (r *CommissionRepo) queryDetails(ctx context.Context, query string, args ...any) ([]ports.CommissionDetail, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	var details []ports.CommissionDetail
	for rows.Next() {
		var d ports.CommissionDetail
		if err := rows.Scan(
			&d.ID, &d.ReferrerID, &d.ReferredUserID, &d.SubscriptionID, &d.PlanID,
			&d.SubscriptionAmount, &d.CommissionAmount, &d.CommissionRate, &d.Currency, &d.Status,
			&d.PaidAt, &d.ProviderEventRef, &d.CreatedAt, &d.ReferredUserName,
		); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commissions: %w", err)
	}
	return details, nil
}
