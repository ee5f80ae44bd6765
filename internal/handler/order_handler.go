package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

type savePendingRequest struct {
	OrderID string                 `json:"order_id"`
	Order   map[string]interface{} `json:"order" binding:"required"`
}

type saveFinalRequest struct {
	Order map[string]interface{} `json:"order" binding:"required"`
}

func (h *OrderHandler) SavePending(c *gin.Context) {
	var req savePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid pending order request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	id, err := h.orderService.SavePending(c.Request.Context(), req.OrderID, req.Order)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to save order",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *OrderHandler) SaveFinal(c *gin.Context) {
	orderID := c.Param("id")

	var req saveFinalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid final order request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	if err := h.orderService.SaveFinal(c.Request.Context(), orderID, req.Order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to finalize order",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// PeopleCount serves the waitlist-threshold check. The counter is
// advisory and may lag slightly behind finalized orders.
func (h *OrderHandler) PeopleCount(c *gin.Context) {
	count, err := h.orderService.PeopleCount(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read people counter", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read counter"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
