package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
)

// BalanceRepository implements user balance persistence
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetOrCreate retrieves a user's balance, creating a zero row if absent
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*entities.UserBalance, error) {
	query := `
		INSERT INTO user_balances (user_id, available_balance, frozen_balance, updated_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to ensure balance row: %w", err)
	}

	var balance entities.UserBalance
	err := r.db.GetContext(ctx, &balance,
		`SELECT user_id, available_balance, frozen_balance, updated_at FROM user_balances WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &balance, nil
}

// Credit adds to a user's available balance
func (r *BalanceRepository) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		INSERT INTO user_balances (user_id, available_balance, frozen_balance, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET available_balance = user_balances.available_balance + EXCLUDED.available_balance,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, userID, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	return nil
}

// Freeze moves amount from available to frozen, conditionally on
// sufficient available balance. Used by the payment flow when a payment
// request opens against the user's balance.
func (r *BalanceRepository) Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE user_balances
		SET available_balance = available_balance - $2,
		    frozen_balance = frozen_balance + $2,
		    updated_at = $3
		WHERE user_id = $1 AND available_balance >= $2
	`

	res, err := r.db.ExecContext(ctx, query, userID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to freeze balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domerrors.ErrInsufficientBalance
	}

	return nil
}

// Unfreeze moves amount from frozen back to available (payment cancelled)
func (r *BalanceRepository) Unfreeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE user_balances
		SET available_balance = available_balance + $2,
		    frozen_balance = frozen_balance - $2,
		    updated_at = $3
		WHERE user_id = $1 AND frozen_balance >= $2
	`

	res, err := r.db.ExecContext(ctx, query, userID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to unfreeze balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domerrors.ErrInsufficientBalance
	}

	return nil
}

// SpendFrozen burns frozen balance when a payment settles
func (r *BalanceRepository) SpendFrozen(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE user_balances
		SET frozen_balance = frozen_balance - $2,
		    updated_at = $3
		WHERE user_id = $1 AND frozen_balance >= $2
	`

	res, err := r.db.ExecContext(ctx, query, userID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to spend frozen balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return domerrors.ErrInsufficientBalance
	}

	return nil
}

// Get retrieves a user's balance without creating it
func (r *BalanceRepository) Get(ctx context.Context, userID uuid.UUID) (*entities.UserBalance, error) {
	var balance entities.UserBalance
	err := r.db.GetContext(ctx, &balance,
		`SELECT user_id, available_balance, frozen_balance, updated_at FROM user_balances WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domerrors.NotFoundError("BALANCE")
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &balance, nil
}
