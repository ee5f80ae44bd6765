package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

func (h *PaymentHandler) CreateOrUpdateIntent(c *gin.Context) {
	var req service.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid intent request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	result, err := h.paymentService.CreateOrUpdateIntent(c.Request.Context(), req)
	if err != nil {
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type captureRequest struct {
	IntentID       string `json:"intent_id"`
	ExpectedAmount string `json:"expected_amount" binding:"required"`
}

func (h *PaymentHandler) Capture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid capture request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	result, err := h.paymentService.Capture(c.Request.Context(), req.IntentID, req.ExpectedAmount)
	if err != nil {
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Validation failures indicate a correctness problem, not a transient
// one, so nothing here retries. The client sees a generic message;
// the detail stays in the logs.
func (h *PaymentHandler) respondPaymentError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	h.logger.Error("payment request failed",
		zap.String("request_id", requestID),
		zap.Error(err))

	var invalidArg *domain.InvalidArgumentError
	if errors.As(err, &invalidArg) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidArg.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "Payment could not be completed. Please try again or contact support.",
		"request_id": requestID,
	})
}
