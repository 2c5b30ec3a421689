package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/cache"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/database"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// ScanStateReader reports the last chain scan cursor state
type ScanStateReader interface {
	Get(ctx context.Context) (*entities.TronScanState, error)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        *sqlx.DB
	redis     cache.RedisClient
	scanState ScanStateReader
	logger    *logger.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sqlx.DB, redis cache.RedisClient, scanState ScanStateReader, logger *logger.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		scanState: scanState,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness returns 200 while the process is running
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// Readiness returns 200 when downstream dependencies answer
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		checks["database"] = "unhealthy"
		healthy = false
		h.logger.Warn("Database health check failed", "error", err)
	} else {
		checks["database"] = "healthy"
	}

	if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = "unhealthy"
		healthy = false
		h.logger.Warn("Redis health check failed", "error", err)
	} else {
		checks["redis"] = "healthy"
	}

	if state, err := h.scanState.Get(ctx); err == nil && state.LastSuccessfulScan != nil {
		checks["last_successful_scan"] = state.LastSuccessfulScan.Format(time.RFC3339)
		checks["cursor_block"] = state.LastProcessedBlockNumber
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"version": h.version,
		"checks":  checks,
	})
}
