// Package chain_scanner polls the blockchain indexer for incoming USDT
// transfers and feeds them to the reconciler.
package chain_scanner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tronpay-service/tronpay_service/internal/adapters/tron"
	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/reconcile"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/cache"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
	"github.com/tronpay-service/tronpay_service/pkg/metrics"
)

const scanLockKey = "locks:chain_scanner"

// TransferSource fetches on-chain transfers into the service wallet
type TransferSource interface {
	TransfersToWallet(ctx context.Context, afterBlock int64, minTimestamp time.Time) ([]tron.Transfer, error)
}

// ScanStateStore persists the scan cursor
type ScanStateStore interface {
	Get(ctx context.Context) (*entities.TronScanState, error)
	Advance(ctx context.Context, blockNumber int64, blockTimestamp time.Time, scannedAt time.Time) error
	TouchSuccessfulScan(ctx context.Context, scannedAt time.Time) error
}

// Reconciler settles one scanned transfer
type Reconciler interface {
	Reconcile(ctx context.Context, transfer tron.Transfer) (reconcile.MatchResult, error)
}

// Config holds scanner configuration
type Config struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// DefaultConfig returns default scanner configuration
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Second,
		LockTTL:  2 * time.Minute,
	}
}

// Worker runs the periodic chain scan. Multiple replicas may run it; a
// Redis lock keeps cycles from overlapping, and every state change the
// cycle makes is idempotent, so a stale lock or crashed holder costs a
// rescan, never a double credit.
type Worker struct {
	source     TransferSource
	scanState  ScanStateStore
	reconciler Reconciler
	redis      cache.RedisClient
	cfg        *Config
	owner      string
	logger     *logger.Logger
	stopCh     chan struct{}
}

// NewWorker creates a new chain scanner worker
func NewWorker(
	source TransferSource,
	scanState ScanStateStore,
	reconciler Reconciler,
	redis cache.RedisClient,
	cfg *Config,
	logger *logger.Logger,
) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Worker{
		source:     source,
		scanState:  scanState,
		reconciler: reconciler,
		redis:      redis,
		cfg:        cfg,
		owner:      uuid.New().String(),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the scan loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting chain scanner",
		"interval", w.cfg.Interval.String(),
		"lock_ttl", w.cfg.LockTTL.String())

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Chain scanner stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Chain scanner stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// runCycle executes one scan cycle under the distributed lock. The cursor
// is advanced only after the whole cycle succeeds, so a transfer is never
// skipped by a cursor that ran ahead of a failure.
func (w *Worker) runCycle(ctx context.Context) {
	acquired, err := w.redis.AcquireLock(ctx, scanLockKey, w.owner, w.cfg.LockTTL)
	if err != nil {
		w.logger.Warn("Failed to acquire scan lock", "error", err)
		metrics.ScanCyclesTotal.WithLabelValues("lock_error").Inc()
		return
	}
	if !acquired {
		// Another replica is scanning
		metrics.ScanCyclesTotal.WithLabelValues("skipped").Inc()
		return
	}
	defer func() {
		if err := w.redis.ReleaseLock(ctx, scanLockKey, w.owner); err != nil {
			w.logger.Warn("Failed to release scan lock", "error", err)
		}
	}()

	started := time.Now()
	if err := w.scan(ctx); err != nil {
		metrics.ScanCyclesTotal.WithLabelValues("error").Inc()
		if domerrors.IsTransientScan(err) {
			w.logger.Warn("Scan cycle failed, will retry from same cursor", "error", err)
		} else {
			w.logger.Error("Scan cycle failed", "error", err)
		}
		return
	}

	metrics.ScanCyclesTotal.WithLabelValues("success").Inc()
	metrics.ScanCycleDuration.Observe(time.Since(started).Seconds())
}

func (w *Worker) scan(ctx context.Context) error {
	state, err := w.scanState.Get(ctx)
	if err != nil {
		return err
	}

	var minTimestamp time.Time
	if state.LastProcessedTimestamp != nil {
		minTimestamp = *state.LastProcessedTimestamp
	}

	transfers, err := w.source.TransfersToWallet(ctx, state.LastProcessedBlockNumber, minTimestamp)
	if err != nil {
		return err
	}

	if len(transfers) == 0 {
		if err := w.scanState.TouchSuccessfulScan(ctx, time.Now().UTC()); err != nil {
			w.logger.Warn("Failed to record successful scan time", "error", err)
		}
		return nil
	}

	for _, transfer := range transfers {
		metrics.TransfersScannedTotal.Inc()
		if _, err := w.reconciler.Reconcile(ctx, transfer); err != nil {
			// Keep the cursor where it is; the whole range rescans next
			// cycle and already-settled transfers are skipped by tx hash
			return err
		}
	}

	last := transfers[len(transfers)-1]
	if err := w.scanState.Advance(ctx, last.BlockNumber, last.BlockTimestamp, time.Now().UTC()); err != nil {
		return err
	}

	metrics.ScanCursorBlock.Set(float64(last.BlockNumber))
	w.logger.Info("Scan cycle complete",
		"transfers", len(transfers),
		"cursor_block", last.BlockNumber)
	return nil
}
