package handler

import (
	"math"
	"strconv"
	"time"

	"referral-ledger/internal/adapter/http/dto"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"
	"referral-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet and commission listing endpoints.
type WalletHandler struct {
	walletSvc     ports.WalletService
	commissionSvc ports.CommissionService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, commissionSvc ports.CommissionService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, commissionSvc: commissionSvc}
}

// Overview handles GET /api/v1/wallet.
func (h *WalletHandler) Overview(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	overview, err := h.walletSvc.Overview(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	recent := make([]dto.CommissionResponse, 0, len(overview.RecentCommissions))
	for i := range overview.RecentCommissions {
		recent = append(recent, toCommissionResponse(&overview.RecentCommissions[i]))
	}

	pending := make([]dto.WithdrawalResponse, 0, len(overview.PendingWithdrawals))
	for i := range overview.PendingWithdrawals {
		pending = append(pending, toWithdrawalResponse(&overview.PendingWithdrawals[i]))
	}

	response.OK(c, dto.WalletResponse{
		Balance:             overview.Wallet.Balance,
		Currency:            overview.Wallet.Currency,
		TotalEarned:         overview.Wallet.TotalEarned,
		TotalWithdrawn:      overview.Wallet.TotalWithdrawn,
		MinWithdrawalAmount: overview.MinWithdrawalAmount,
		RecentCommissions:   recent,
		PendingWithdrawals:  pending,
	})
}

// ListCommissions handles GET /api/v1/wallet/commissions.
func (h *WalletHandler) ListCommissions(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.CommissionListParams{
		ReferrerID: id,
		Page:       page,
		PageSize:   pageSize,
	}
	if s := c.Query("status"); s != "" {
		status := domain.CommissionStatus(s)
		params.Status = &status
	}

	items, total, err := h.commissionSvc.ListByReferrer(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.CommissionResponse, 0, len(items))
	for i := range items {
		out = append(out, toCommissionResponse(&items[i]))
	}

	response.OK(c, dto.ListResponse[dto.CommissionResponse]{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// UpdatePaymentInfo handles PUT /api/v1/wallet/payment-info.
func (h *WalletHandler) UpdatePaymentInfo(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req dto.PaymentInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	err := h.walletSvc.UpdatePaymentInfo(c.Request.Context(), id, domain.PaymentInfo{
		PreferredMethod: domain.PaymentMethod(req.PreferredMethod),
		Details: domain.PaymentDetails{
			AccountHolderName: req.AccountHolderName,
			AccountNumber:     req.AccountNumber,
			BankName:          req.BankName,
			PayPalEmail:       req.PayPalEmail,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"updated": true})
}

// pagination parses page/limit query params with the usual clamps.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

func toCommissionResponse(c *ports.CommissionDetail) dto.CommissionResponse {
	resp := dto.CommissionResponse{
		ID:               c.ID.String(),
		ReferredUserName: c.ReferredUserName,
		PlanID:           c.PlanID,
		Amount:           c.CommissionAmount,
		Rate:             c.CommissionRate,
		Currency:         c.Currency,
		Status:           string(c.Status),
		CreatedAt:        c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.PaidAt != nil {
		s := c.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

func toWithdrawalResponse(w *domain.WithdrawalRequest) dto.WithdrawalResponse {
	resp := dto.WithdrawalResponse{
		ID:              w.ID.String(),
		Amount:          w.Amount,
		Currency:        w.Currency,
		Status:          string(w.Status),
		PaymentMethod:   string(w.PaymentMethod),
		RejectionReason: w.RejectionReason,
		TransactionID:   w.TransactionID,
		CreatedAt:       w.CreatedAt.UTC().Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		s := w.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}
