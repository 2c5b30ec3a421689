package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tronpay-service/tronpay_service/internal/api/routes"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/config"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/database"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/di"
	"github.com/tronpay-service/tronpay_service/pkg/graceful"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
	"github.com/tronpay-service/tronpay_service/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	// Initialize router with DI container
	router := routes.SetupRoutes(container)

	// Start background workers
	scannerCtx, stopScanner := context.WithCancel(context.Background())
	defer stopScanner()

	if cfg.Scanner.Enabled {
		go container.ChainScanner.Start(scannerCtx)
		log.Info("Chain scanner started")
	} else {
		log.Info("Chain scanner disabled in configuration")
	}

	if cfg.Sweeper.Enabled {
		if err := container.ExpirySweeper.Start(); err != nil {
			log.Fatal("Failed to start expiry sweeper", "error", err)
		}
	} else {
		log.Info("Expiry sweeper disabled in configuration")
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Database connection metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db, log)
	shutdown.Register(shutdownFunc(func(timeout time.Duration) error {
		stopScanner()
		if cfg.Scanner.Enabled {
			container.ChainScanner.Stop()
		}
		if cfg.Sweeper.Enabled {
			container.ExpirySweeper.Stop()
		}
		return container.Close()
	}))
	shutdown.WaitForShutdown()
}

type shutdownFunc func(timeout time.Duration) error

func (f shutdownFunc) Shutdown(timeout time.Duration) error {
	return f(timeout)
}
