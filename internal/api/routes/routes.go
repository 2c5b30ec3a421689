// Package routes wires HTTP handlers into the gin router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tronpay-service/tronpay_service/internal/api/handlers"
	"github.com/tronpay-service/tronpay_service/internal/api/middleware"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/di"
)

// Version is stamped at build time
var Version = "dev"

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware; order matters
	router.Use(middleware.RequestID())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	depositHandler := handlers.NewDepositHandler(container.DepositService, container.Logger)
	balanceHandler := handlers.NewBalanceHandler(container.BalanceService, container.Logger)
	adminHandler := handlers.NewAdminHandler(container.DepositService, container.UnmatchedRepo, container.Logger)
	healthHandler := handlers.NewHealthHandler(container.DB, container.RedisClient, container.ScanStateRepo, container.Logger, Version)

	// Health and metrics
	router.GET("/health", healthHandler.Readiness)
	router.GET("/health/liveness", healthHandler.Liveness)
	router.GET("/health/readiness", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		deposits := v1.Group("/deposits")
		{
			deposits.POST("/create-automated", depositHandler.CreateAutomated)
			deposits.GET("/user/:userId", depositHandler.ListByUser)
			deposits.GET("/:id", depositHandler.GetByID)
			deposits.POST("/:id/cancel", depositHandler.Cancel)
		}

		balances := v1.Group("/balances")
		{
			balances.GET("/user/:userId", balanceHandler.GetByUser)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/deposits/:id/confirm", adminHandler.ConfirmDeposit)
			admin.POST("/deposits/:id/reject", adminHandler.RejectDeposit)
			admin.GET("/unmatched-transfers", adminHandler.ListUnmatchedTransfers)
			admin.POST("/unmatched-transfers/:txHash/review", adminHandler.ReviewUnmatchedTransfer)
		}
	}

	return router
}
