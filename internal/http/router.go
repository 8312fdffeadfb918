package api

import (
	stdhttp "net/http"
	"time"

	h "busussd/internal/http/handlers"
	"busussd/internal/http/middleware"
	"busussd/internal/services"
	"busussd/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const rateWindow = 15 * time.Minute

// Options carries the router settings read from the environment.
type Options struct {
	USSDRatePer15m int
	OpsRatePer15m  int
	AdminSecret    []byte
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string
}

func NewRouter(opts Options, handler *h.Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(log), gin.Recovery())

	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		log.Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/ok", handler.Health)
	r.GET("/db-ping", handler.DBPing)

	customerLimit := utils.NewLimiterStore(opts.USSDRatePer15m, rateWindow)
	opsLimit := utils.NewLimiterStore(opts.OpsRatePer15m, rateWindow)
	r.POST("/ussd", middleware.RateLimit(customerLimit, log), handler.CustomerUSSD)
	r.POST("/ussd-ops", middleware.RateLimit(opsLimit, log), handler.OperatorUSSD)

	// Without a secret no token can be verified, so the admin API stays unmounted.
	if len(opts.AdminSecret) > 0 {
		admin := r.Group("/api/admin", middleware.CORS(opts.AllowedOrigins))
		admin.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })
		admin.Use(middleware.BearerAuth(opts.AdminSecret), middleware.RequireRoles(services.RoleAdmin))
		admin.POST("/operators", handler.CreateOperator)
		admin.POST("/buses", handler.CreateBus)
		admin.GET("/buses/:id/bookings", handler.ListBusBookings)
		admin.GET("/buses/:id/manifest", handler.BusManifest)
	} else {
		log.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}

	return r
}
