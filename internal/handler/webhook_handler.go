package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/processor"
	"github.com/ashgoren/registration-service/internal/webhook"
)

type WebhookHandler struct {
	finalizer *webhook.Finalizer
	logger    *zap.Logger
}

func NewWebhookHandler(finalizer *webhook.Finalizer, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		finalizer: finalizer,
		logger:    logger,
	}
}

// Handle acknowledges a processor webhook. 400 tells the processor
// the signature failed (it redelivers on its own schedule); 500 asks
// for redelivery after an internal failure; everything else is 200,
// including an escalated miss, where redelivery would not help.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	// Signature verification may read the body off the request again.
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	outcome, err := h.finalizer.Handle(c.Request.Context(), c.Request, body)
	switch {
	case err != nil && errors.Is(err, processor.ErrBadSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
	case err != nil:
		h.logger.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	case outcome == webhook.OutcomeEscalated:
		c.JSON(http.StatusOK, gin.H{"status": "escalated"})
	case outcome == webhook.OutcomeIgnored:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
