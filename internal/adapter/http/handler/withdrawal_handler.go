package handler

import (
	"referral-ledger/internal/adapter/http/dto"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"
	"referral-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles the user-facing withdrawal endpoints.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Create handles POST /api/v1/wallet/withdraw.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	request, err := h.withdrawalSvc.Create(c.Request.Context(), id, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWithdrawalResponse(request))
}

// List handles GET /api/v1/wallet/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	items, total, err := h.withdrawalSvc.ListByUser(c.Request.Context(), id, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.WithdrawalResponse, 0, len(items))
	for i := range items {
		out = append(out, toWithdrawalResponse(&items[i]))
	}

	response.OK(c, dto.ListResponse[dto.WithdrawalResponse]{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// Cancel handles DELETE /api/v1/wallet/withdrawals/:id.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal request id"))
		return
	}

	if err := h.withdrawalSvc.Cancel(c.Request.Context(), requestID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"cancelled": true})
}
