package middleware

import (
	"net/http"

	"busussd/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit limits requests per client IP. USSD gateways read the body as the
// reply, so the rejection is a plain END message.
func RateLimit(store *utils.LimiterStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.Allow(ip) {
			log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			c.String(http.StatusTooManyRequests, "END Too many requests. Try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
