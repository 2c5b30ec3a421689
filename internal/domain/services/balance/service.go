// Package balance exposes the user balance ledger.
package balance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
	"github.com/tronpay-service/tronpay_service/pkg/usdt"
)

// Repository is the balance persistence surface the service needs
type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*entities.UserBalance, error)
	Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	Unfreeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	SpendFrozen(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
}

// Service handles balance reads and the freeze lifecycle used by
// downstream spending flows
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a new balance service
func NewService(repo Repository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the user's balance, creating a zero row on first access
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*entities.UserBalance, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// Freeze moves amount from available to frozen
func (s *Service) Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	amount = usdt.Normalize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return domerrors.ValidationError("INVALID_AMOUNT", "freeze amount must be positive")
	}

	if err := s.repo.Freeze(ctx, userID, amount); err != nil {
		return err
	}

	s.logger.Info("Balance frozen", "user_id", userID.String(), "amount", usdt.Format(amount))
	return nil
}

// Unfreeze returns amount from frozen back to available
func (s *Service) Unfreeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	amount = usdt.Normalize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return domerrors.ValidationError("INVALID_AMOUNT", "unfreeze amount must be positive")
	}

	if err := s.repo.Unfreeze(ctx, userID, amount); err != nil {
		return fmt.Errorf("failed to unfreeze balance: %w", err)
	}

	s.logger.Info("Balance unfrozen", "user_id", userID.String(), "amount", usdt.Format(amount))
	return nil
}

// SpendFrozen burns amount out of the frozen bucket after an external
// payout settles
func (s *Service) SpendFrozen(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	amount = usdt.Normalize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return domerrors.ValidationError("INVALID_AMOUNT", "spend amount must be positive")
	}

	if err := s.repo.SpendFrozen(ctx, userID, amount); err != nil {
		return fmt.Errorf("failed to spend frozen balance: %w", err)
	}

	s.logger.Info("Frozen balance spent", "user_id", userID.String(), "amount", usdt.Format(amount))
	return nil
}
