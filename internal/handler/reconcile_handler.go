package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/reconcile"
)

type ReconcileHandler struct {
	job    *reconcile.Job
	token  string
	logger *zap.Logger
}

func NewReconcileHandler(job *reconcile.Job, token string, logger *zap.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		job:    job,
		token:  token,
		logger: logger,
	}
}

// Trigger runs reconciliation on demand, guarded by a shared-secret
// bearer token.
func (h *ReconcileHandler) Trigger(c *gin.Context) {
	if err := h.authorize(c.GetHeader("Authorization")); err != nil {
		h.logger.Warn("reconciliation trigger rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.job.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("reconciliation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ReconcileHandler) authorize(header string) error {
	if h.token == "" {
		return &domain.PermissionDeniedError{Msg: "no trigger token configured"}
	}
	presented := strings.TrimPrefix(header, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) != 1 {
		return &domain.PermissionDeniedError{Msg: "trigger token mismatch"}
	}
	return nil
}
