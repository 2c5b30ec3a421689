// Package di wires repositories, services, adapters and workers together.
package di

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/adapters/tron"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/balance"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/deposit"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/reconcile"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/cache"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/config"
	"github.com/tronpay-service/tronpay_service/internal/infrastructure/repositories"
	"github.com/tronpay-service/tronpay_service/internal/workers/chain_scanner"
	"github.com/tronpay-service/tronpay_service/internal/workers/expiry_sweeper"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *logger.Logger

	// Repositories
	DepositRepo   *repositories.DepositRepository
	BalanceRepo   *repositories.BalanceRepository
	ScanStateRepo *repositories.ScanStateRepository
	UnmatchedRepo *repositories.UnmatchedTransferRepository

	// External services
	RedisClient cache.RedisClient
	TronClient  *tron.Client

	// Domain services
	DepositService   *deposit.Service
	BalanceService   *balance.Service
	ReconcileService *reconcile.Service

	// Workers
	ChainScanner  *chain_scanner.Worker
	ExpirySweeper *expiry_sweeper.Worker
}

// NewContainer creates and wires all application dependencies
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	depositCfg, err := depositServiceConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Repositories
	depositRepo := repositories.NewDepositRepository(db)
	balanceRepo := repositories.NewBalanceRepository(db)
	scanStateRepo := repositories.NewScanStateRepository(db)
	unmatchedRepo := repositories.NewUnmatchedTransferRepository(db)

	// External services
	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	tronClient := tron.NewClient(cfg.Tron, log)

	// Domain services
	depositService := deposit.NewService(depositRepo, deposit.NewAllocator(), depositCfg, log)
	balanceService := balance.NewService(balanceRepo, log)
	reconcileService := reconcile.NewService(depositRepo, unmatchedRepo, log)

	// Workers
	scannerCfg := &chain_scanner.Config{
		Interval: time.Duration(cfg.Scanner.IntervalSecs) * time.Second,
		LockTTL:  time.Duration(cfg.Scanner.LockTTLSecs) * time.Second,
	}
	if scannerCfg.Interval <= 0 {
		scannerCfg.Interval = chain_scanner.DefaultConfig().Interval
	}
	if scannerCfg.LockTTL <= 0 {
		scannerCfg.LockTTL = chain_scanner.DefaultConfig().LockTTL
	}
	chainScanner := chain_scanner.NewWorker(tronClient, scanStateRepo, reconcileService, redisClient, scannerCfg, log)
	expirySweeper := expiry_sweeper.NewWorker(depositService, cfg.Sweeper.Schedule, cfg.Sweeper.BatchSize, log)

	return &Container{
		Config:           cfg,
		DB:               db,
		Logger:           log,
		DepositRepo:      depositRepo,
		BalanceRepo:      balanceRepo,
		ScanStateRepo:    scanStateRepo,
		UnmatchedRepo:    unmatchedRepo,
		RedisClient:      redisClient,
		TronClient:       tronClient,
		DepositService:   depositService,
		BalanceService:   balanceService,
		ReconcileService: reconcileService,
		ChainScanner:     chainScanner,
		ExpirySweeper:    expirySweeper,
	}, nil
}

func depositServiceConfig(cfg *config.Config) (deposit.Config, error) {
	minAmount, err := decimal.NewFromString(cfg.Deposit.MinAmount)
	if err != nil {
		return deposit.Config{}, fmt.Errorf("invalid deposit min amount %q: %w", cfg.Deposit.MinAmount, err)
	}
	maxAmount, err := decimal.NewFromString(cfg.Deposit.MaxAmount)
	if err != nil {
		return deposit.Config{}, fmt.Errorf("invalid deposit max amount %q: %w", cfg.Deposit.MaxAmount, err)
	}
	if maxAmount.LessThanOrEqual(minAmount) {
		return deposit.Config{}, fmt.Errorf("deposit max amount %s must exceed min amount %s", maxAmount, minAmount)
	}

	return deposit.Config{
		MinAmount:         minAmount,
		MaxAmount:         maxAmount,
		ExpiryWindow:      time.Duration(cfg.Deposit.ExpiryMinutes) * time.Minute,
		MaxPendingPerUser: cfg.Deposit.MaxPendingPerUser,
		MaxAttempts:       cfg.Deposit.AllocatorMaxAttempts,
		WalletAddress:     cfg.Tron.WalletAddress,
	}, nil
}

// Close releases container resources
func (c *Container) Close() error {
	if c.RedisClient != nil {
		return c.RedisClient.Close()
	}
	return nil
}
