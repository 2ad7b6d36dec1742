package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"taptapgo/internal/domain"
	"taptapgo/internal/handler"
	"taptapgo/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	WalletHandler  *handler.WalletHandler
	AdminHandler   *handler.AdminHandler
	PricingHandler *handler.PricingHandler
	DB             *sql.DB
	RedisClient    redis.Cmdable
	NewRelicApp    *newrelic.Application
	JWTSecret      string
	CORSOrigins    []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware(deps.CORSOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAnnotate())
	}

	router.GET("/health", healthHandler(deps))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	staff := middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)

	// API v1 routes. Idempotency runs after Auth so keys are scoped per actor.
	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(deps.JWTSecret))
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		rides := v1.Group("/rides")
		{
			rides.POST("", middleware.RequireRole(domain.RolePassenger), deps.RideHandler.CreateRide)
			rides.POST("/estimate", deps.RideHandler.Estimate)
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.PUT("/:id/accept", middleware.RequireRole(domain.RoleDriver), deps.RideHandler.AcceptRide)
			rides.PUT("/:id/status", deps.RideHandler.UpdateStatus)
			rides.POST("/:id/rate", middleware.RequireRole(domain.RolePassenger), deps.RideHandler.RateRide)
		}

		wallet := v1.Group("/wallet", middleware.RequireRole(domain.RoleDriver))
		{
			wallet.GET("", deps.WalletHandler.GetWallet)
			wallet.POST("/withdraw", deps.WalletHandler.Withdraw)
			wallet.PUT("/payout", deps.WalletHandler.UpdatePayout)
			wallet.GET("/transactions", deps.WalletHandler.Transactions)
			wallet.GET("/retraits", deps.WalletHandler.Retraits)
		}

		pricing := v1.Group("/pricing", staff)
		{
			pricing.GET("", deps.PricingHandler.GetTariff)
			pricing.PUT("", deps.PricingHandler.UpdateTariff)
		}

		admin := v1.Group("/admin", staff)
		{
			admin.GET("/retraits", deps.AdminHandler.ListRetraits)
			admin.POST("/retraits/:id/traiter", deps.AdminHandler.Traiter)
			admin.POST("/retraits/:id/annuler", deps.AdminHandler.Annuler)
			admin.POST("/wallets/:driver_id/adjust", middleware.RequireRole(domain.RoleSuperAdmin), deps.AdminHandler.AdjustWallet)
		}
	}

	return router
}

// healthHandler reports whether the database and Redis answer.
func healthHandler(deps RouterDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if deps.RedisClient != nil {
			if err := deps.RedisClient.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
