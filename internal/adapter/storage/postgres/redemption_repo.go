package postgres

import (
	"context"
	"fmt"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RedemptionRepo implements ports.RedemptionRepository.
type RedemptionRepo struct {
	pool Pool
}

// NewRedemptionRepo creates a new RedemptionRepo.
func NewRedemptionRepo(pool Pool) *RedemptionRepo {
	return &RedemptionRepo{pool: pool}
}

// Create inserts a redemption. The unique index on (invite_code, redeemed_by)
// surfaces replays as ports.ErrDuplicate.
func (r *RedemptionRepo) Create(ctx context.Context, tx pgx.Tx, red *domain.InvitationRedemption) error {
	query := `INSERT INTO invitation_redemptions
			(id, invite_code, inviter_id, redeemed_by, inviter_reward_rate, invitee_bonus_credits, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		red.ID, red.InviteCode, red.InviterID, red.RedeemedBy,
		red.InviterRewardRate, red.InviteeBonusCredits, red.RedeemedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// Exists reports whether redeemedBy already redeemed the given code.
func (r *RedemptionRepo) Exists(ctx context.Context, code string, redeemedBy uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM invitation_redemptions WHERE invite_code = $1 AND redeemed_by = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code, redeemedBy).Scan(&exists); err != nil {
		return false, fmt.Errorf("check redemption: %w", err)
	}
	return exists, nil
}

// ListByInviter returns the inviter's most recent redemptions with the
// redeemer's display name joined in.
func (r *RedemptionRepo) ListByInviter(ctx context.Context, inviterID uuid.UUID, limit int) ([]ports.RedemptionDetail, error) {
	query := `SELECT r.id, r.invite_code, r.inviter_id, r.redeemed_by,
			r.inviter_reward_rate, r.invitee_bonus_credits, r.redeemed_at,
			a.display_name
		FROM invitation_redemptions r
		JOIN accounts a ON a.id = r.redeemed_by
		WHERE r.inviter_id = $1
		ORDER BY r.redeemed_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, inviterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var details []ports.RedemptionDetail
	for rows.Next() {
		var d ports.RedemptionDetail
		if err := rows.Scan(
			&d.ID, &d.InviteCode, &d.InviterID, &d.RedeemedBy,
			&d.InviterRewardRate, &d.InviteeBonusCredits, &d.RedeemedAt,
			&d.RedeemerName,
		); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemptions: %w", err)
	}
	return details, nil
}
