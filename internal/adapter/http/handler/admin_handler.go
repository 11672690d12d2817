package handler

import (
	"referral-ledger/internal/adapter/http/dto"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"
	"referral-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the payout operator endpoints.
type AdminHandler struct {
	withdrawalSvc ports.WithdrawalService
	commissionSvc ports.CommissionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(withdrawalSvc ports.WithdrawalService, commissionSvc ports.CommissionService) *AdminHandler {
	return &AdminHandler{withdrawalSvc: withdrawalSvc, commissionSvc: commissionSvc}
}

// ListWithdrawals handles GET /api/v1/admin/withdrawals.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.WithdrawalListParams{Page: page, PageSize: pageSize}

	if s := c.Query("status"); s != "" {
		if !domain.ValidWithdrawalStatus(s) {
			response.Error(c, apperror.Validation("unknown withdrawal status"))
			return
		}
		status := domain.WithdrawalStatus(s)
		params.Status = &status
	}

	items, total, err := h.withdrawalSvc.ListAll(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.AdminWithdrawalResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.AdminWithdrawalResponse{
			WithdrawalResponse: toWithdrawalResponse(&items[i].WithdrawalRequest),
			UserName:           items[i].UserName,
			UserEmail:          items[i].UserEmail,
		})
	}

	response.OK(c, dto.ListResponse[dto.AdminWithdrawalResponse]{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	adminID, ok := accountID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal request id"))
		return
	}

	var req dto.ApproveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	request, err := h.withdrawalSvc.Approve(c.Request.Context(), requestID, adminID, req.TransactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWithdrawalResponse(request))
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	adminID, ok := accountID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal request id"))
		return
	}

	var req dto.RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	request, err := h.withdrawalSvc.Reject(c.Request.Context(), requestID, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWithdrawalResponse(request))
}

// CommissionStats handles GET /api/v1/admin/commissions/stats.
func (h *AdminHandler) CommissionStats(c *gin.Context) {
	stats, err := h.commissionSvc.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	byStatus := make([]dto.CommissionStatusStatResponse, 0, len(stats.ByStatus))
	for _, s := range stats.ByStatus {
		byStatus = append(byStatus, dto.CommissionStatusStatResponse{
			Status:      string(s.Status),
			Count:       s.Count,
			TotalAmount: s.TotalAmount,
		})
	}

	top := make([]dto.TopReferrerResponse, 0, len(stats.TopReferrers))
	for _, r := range stats.TopReferrers {
		top = append(top, dto.TopReferrerResponse{
			UserID:        r.UserID.String(),
			DisplayName:   r.DisplayName,
			Email:         r.Email,
			TotalEarned:   r.TotalEarned,
			ReferralCount: r.ReferralCount,
		})
	}

	response.OK(c, dto.CommissionStatsResponse{
		ByStatus:     byStatus,
		TopReferrers: top,
	})
}
