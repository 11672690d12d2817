package handler

import (
	"time"

	"referral-ledger/internal/adapter/http/dto"
	"referral-ledger/internal/adapter/http/middleware"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"
	"referral-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InviteHandler handles invite code endpoints.
type InviteHandler struct {
	inviteSvc ports.InviteService
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(inviteSvc ports.InviteService) *InviteHandler {
	return &InviteHandler{inviteSvc: inviteSvc}
}

// accountID pulls the authenticated account ID set by the JWT middleware.
func accountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// GetCode handles GET /api/v1/invite/code.
func (h *InviteHandler) GetCode(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	info, err := h.inviteSvc.GetOrCreateCode(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.InviteCodeResponse{
		InviteCode:     info.InviteCode,
		ShareMessage:   info.ShareMessage,
		CommissionRate: info.CommissionRate,
	})
}

// Redeem handles POST /api/v1/invite/redeem.
func (h *InviteHandler) Redeem(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.inviteSvc.Redeem(c.Request.Context(), id, req.InviteCode)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RedeemResponse{
		BonusCredits:   result.BonusCredits,
		CreditsBalance: result.CreditsBalance,
		CommissionRate: result.CommissionRate,
	})
}

// Stats handles GET /api/v1/invite/stats.
func (h *InviteHandler) Stats(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	stats, err := h.inviteSvc.Stats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	recent := make([]dto.RecentInvite, 0, len(stats.RecentInvites))
	for _, r := range stats.RecentInvites {
		recent = append(recent, dto.RecentInvite{
			RedeemerName: r.RedeemerName,
			RedeemedAt:   r.RedeemedAt.UTC().Format(time.RFC3339),
		})
	}

	response.OK(c, dto.InviteStatsResponse{
		InviteCode:        stats.InviteCode,
		TotalInvites:      stats.TotalInvites,
		PremiumCredits:    stats.PremiumCredits,
		CommissionRate:    stats.CommissionRate,
		CommissionsEarned: stats.CommissionsEarned,
		WalletBalance:     stats.Wallet.Balance,
		Currency:          stats.Wallet.Currency,
		RecentInvites:     recent,
	})
}
