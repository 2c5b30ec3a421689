// Package deposit implements the deposit ledger: creation with unique
// payable amount allocation, user cancellation, admin finalization and
// expiry.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
	"github.com/tronpay-service/tronpay_service/pkg/metrics"
	"github.com/tronpay-service/tronpay_service/pkg/usdt"
)

// Repository is the deposit persistence surface the service needs
type Repository interface {
	Create(ctx context.Context, deposit *entities.Deposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Deposit, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Deposit, error)
	CountPendingByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, to entities.DepositStatus) (bool, error)
	RejectIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	ConfirmAndCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash *string, confirmedBy string, confirmedAt time.Time) (bool, error)
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Deposit, error)
}

// Config carries the validated deposit limits
type Config struct {
	MinAmount         decimal.Decimal
	MaxAmount         decimal.Decimal
	ExpiryWindow      time.Duration
	MaxPendingPerUser int
	MaxAttempts       int
	WalletAddress     string
}

// Service handles the deposit lifecycle
type Service struct {
	repo      Repository
	allocator *Allocator
	cfg       Config
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates a new deposit service
func NewService(repo Repository, allocator *Allocator, cfg Config, logger *logger.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	return &Service{
		repo:      repo,
		allocator: allocator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Create opens a new pending deposit for the user. The returned deposit
// carries the exact payable amount the user must transfer on-chain, which
// is unique among all pending deposits.
//
// Uniqueness is enforced by the database, not checked up front: Create
// inserts a candidate and retries with a perturbed amount when the partial
// unique index rejects it. A check-then-insert would race with concurrent
// creates.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, requested decimal.Decimal) (*entities.Deposit, error) {
	requested = usdt.Normalize(requested)

	if requested.LessThan(s.cfg.MinAmount) || requested.GreaterThan(s.cfg.MaxAmount) {
		return nil, domerrors.AmountOutOfBoundsError(usdt.Format(s.cfg.MinAmount), usdt.Format(s.cfg.MaxAmount))
	}

	pending, err := s.repo.CountPendingByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending deposits: %w", err)
	}
	if pending >= s.cfg.MaxPendingPerUser {
		return nil, domerrors.PendingCapError(s.cfg.MaxPendingPerUser)
	}

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		now := s.now().UTC()
		deposit := &entities.Deposit{
			ID:              uuid.New(),
			UserID:          userID,
			RequestedAmount: requested,
			PayableAmount:   s.allocator.Candidate(requested, attempt),
			WalletAddress:   s.cfg.WalletAddress,
			Status:          entities.DepositStatusPending,
			ExpiresAt:       now.Add(s.cfg.ExpiryWindow),
			CreatedAt:       now,
		}

		err := s.repo.Create(ctx, deposit)
		if err == nil {
			metrics.DepositsCreatedTotal.Inc()
			s.logger.Info("Deposit created",
				"deposit_id", deposit.ID.String(),
				"user_id", userID.String(),
				"payable_amount", usdt.Format(deposit.PayableAmount),
				"attempt", attempt)
			return deposit, nil
		}
		if errors.Is(err, domerrors.ErrPayableAmountTaken) {
			metrics.AllocatorRetriesTotal.Inc()
			continue
		}
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	s.logger.Error("Payable amount allocation exhausted",
		"user_id", userID.String(),
		"requested_amount", usdt.Format(requested),
		"attempts", s.cfg.MaxAttempts)
	return nil, domerrors.CapacityExhaustedError()
}

// GetByID returns a single deposit
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*entities.Deposit, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser returns the user's deposits, newest first
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Deposit, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// Cancel cancels the user's own pending deposit. Cancelling a deposit
// that already left pending is a conflict, not an error to retry.
func (s *Service) Cancel(ctx context.Context, id, userID uuid.UUID) (*entities.Deposit, error) {
	deposit, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deposit.UserID != userID {
		return nil, domerrors.NotFoundError("DEPOSIT")
	}

	applied, err := s.repo.TransitionFromPending(ctx, id, entities.DepositStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel deposit: %w", err)
	}
	if !applied {
		return nil, domerrors.ConflictError("deposit", "no longer pending").WithDetails(map[string]interface{}{
			"deposit_id": id.String(),
		})
	}

	metrics.DepositTransitionsTotal.WithLabelValues(string(entities.DepositStatusCancelled)).Inc()
	s.logger.Info("Deposit cancelled", "deposit_id", id.String(), "user_id", userID.String())

	return s.repo.GetByID(ctx, id)
}

// Confirm finalizes a pending deposit and credits the owner's balance.
// confirmedBy is "system" for the chain scanner or the operator's
// identifier for manual confirmation. amountOverride, when set, replaces
// the payable amount as the credited amount; operators use it to settle
// a transfer that arrived slightly off.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, amountOverride *decimal.Decimal, txHash *string, confirmedBy string) (*entities.Deposit, error) {
	deposit, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	amount := deposit.PayableAmount
	if amountOverride != nil {
		amount = usdt.Normalize(*amountOverride)
		if amount.LessThanOrEqual(decimal.Zero) {
			return nil, domerrors.ValidationError("INVALID_AMOUNT", "credit amount must be positive")
		}
	}

	applied, err := s.repo.ConfirmAndCredit(ctx, id, amount, txHash, confirmedBy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domerrors.ConflictError("deposit", "no longer pending").WithDetails(map[string]interface{}{
			"deposit_id": id.String(),
		})
	}

	metrics.DepositTransitionsTotal.WithLabelValues(string(entities.DepositStatusConfirmed)).Inc()
	s.logger.Info("Deposit confirmed",
		"deposit_id", id.String(),
		"amount", usdt.Format(amount),
		"confirmed_by", confirmedBy)

	return s.repo.GetByID(ctx, id)
}

// Reject marks a pending deposit rejected with an operator-supplied reason
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*entities.Deposit, error) {
	if reason == "" {
		return nil, domerrors.ValidationError("REASON_REQUIRED", "reject reason is required")
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	applied, err := s.repo.RejectIfPending(ctx, id, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to reject deposit: %w", err)
	}
	if !applied {
		return nil, domerrors.ConflictError("deposit", "no longer pending").WithDetails(map[string]interface{}{
			"deposit_id": id.String(),
		})
	}

	metrics.DepositTransitionsTotal.WithLabelValues(string(entities.DepositStatusRejected)).Inc()
	s.logger.Info("Deposit rejected", "deposit_id", id.String(), "reason", reason)

	return s.repo.GetByID(ctx, id)
}

// ExpireOverdue transitions overdue pending deposits to expired and
// returns how many were expired. Deposits that left pending between the
// scan and the transition are skipped, not failed.
func (s *Service) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	overdue, err := s.repo.GetExpiredPending(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue deposits: %w", err)
	}

	expired := 0
	for _, deposit := range overdue {
		applied, err := s.repo.TransitionFromPending(ctx, deposit.ID, entities.DepositStatusExpired)
		if err != nil {
			return expired, fmt.Errorf("failed to expire deposit %s: %w", deposit.ID, err)
		}
		if !applied {
			continue
		}
		expired++
		metrics.DepositTransitionsTotal.WithLabelValues(string(entities.DepositStatusExpired)).Inc()
		s.logger.Info("Deposit expired",
			"deposit_id", deposit.ID.String(),
			"user_id", deposit.UserID.String(),
			"expired_at", deposit.ExpiresAt.Format(time.RFC3339))
	}

	return expired, nil
}
