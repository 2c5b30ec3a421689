// Package expiry_sweeper expires overdue pending deposits on a schedule.
package expiry_sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// DepositExpirer expires overdue pending deposits in batches
type DepositExpirer interface {
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

// Worker runs the expiry sweep on a cron schedule
type Worker struct {
	deposits  DepositExpirer
	schedule  string
	batchSize int
	cron      *cron.Cron
	logger    *logger.Logger
}

// NewWorker creates a new expiry sweeper
func NewWorker(deposits DepositExpirer, schedule string, batchSize int, logger *logger.Logger) *Worker {
	if schedule == "" {
		schedule = "@every 30s"
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Worker{
		deposits:  deposits,
		schedule:  schedule,
		batchSize: batchSize,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start schedules the sweep
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		w.sweep(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Expiry sweeper started", "schedule", w.schedule, "batch_size", w.batchSize)
	return nil
}

// Stop stops the sweeper
func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Expiry sweeper stopped")
}

// sweep drains overdue deposits until a batch comes back short. Expiry is
// a compare-and-swap per deposit, so racing the reconciler or an admin is
// safe; whoever transitions first wins.
func (w *Worker) sweep(ctx context.Context) {
	total := 0
	for {
		expired, err := w.deposits.ExpireOverdue(ctx, w.batchSize)
		if err != nil {
			w.logger.Error("Expiry sweep failed", "error", err, "expired_so_far", total)
			return
		}
		total += expired
		if expired < w.batchSize {
			break
		}
	}

	if total > 0 {
		w.logger.Info("Expired overdue deposits", "count", total)
	}
}
