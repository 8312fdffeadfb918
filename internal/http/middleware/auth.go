package middleware

import (
	"net/http"
	"strings"

	"busussd/internal/domain"
	"busussd/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	authContextKey = "auth"
	roleContextKey = "userRole"
)

// BearerAuth requires a token minted by services.IssueAdminToken and stores
// the caller on the context for RequireRoles.
func BearerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "missing bearer token",
				"request_id": GetRequestID(c),
			})
			return
		}
		rc, err := services.ParseAccessToken(secret, strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "invalid token",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(authContextKey, rc)
		c.Set(roleContextKey, rc.Role)
		c.Next()
	}
}

// Caller returns the authenticated admin set by BearerAuth.
func Caller(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(authContextKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	rc, ok := v.(domain.RequestContext)
	return rc, ok
}
