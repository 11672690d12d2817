package handler

import (
	"io"

	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"
	"referral-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Provider-Signature"

// WebhookHandler receives payment provider deliveries.
type WebhookHandler struct {
	processor ports.WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor ports.WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive handles POST /webhook. The raw body is passed through untouched
// so the signature covers exactly the bytes the provider sent.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	if err := h.processor.Process(c.Request.Context(), payload, c.GetHeader(SignatureHeader)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"received": true})
}
