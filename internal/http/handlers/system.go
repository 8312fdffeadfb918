package handlers

import (
	"net/http"

	"busussd/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /ok
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// GET /db-ping
func (h *Handler) DBPing(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		h.Log.Error("db ping failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": 1})
}
