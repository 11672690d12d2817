package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvitationRedemption records a one-time redemption of an invite code.
// Unique on (invite_code, redeemed_by); the record is authoritative — if a
// crash leaves invited_by unset, it is re-derived from this record.
type InvitationRedemption struct {
	ID                  uuid.UUID `json:"id"`
	InviteCode          string    `json:"invite_code"`
	InviterID           uuid.UUID `json:"inviter_id"`
	RedeemedBy          uuid.UUID `json:"redeemed_by"`
	InviterRewardRate   float64   `json:"inviter_reward_rate"`   // Commission rate promised at redemption time
	InviteeBonusCredits int64     `json:"invitee_bonus_credits"` // 0 when the welcome bonus is disabled
	RedeemedAt          time.Time `json:"redeemed_at"`
}
