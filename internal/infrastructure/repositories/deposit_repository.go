package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
)

// Index names referenced when mapping unique violations to domain errors
const (
	pendingPayableAmountIndex = "uq_deposits_pending_payable_amount"
	txHashIndex               = "uq_deposits_tx_hash"
)

const depositColumns = `
	id, user_id, requested_amount, payable_amount, amount, wallet_address,
	status, expires_at, tx_hash, reject_reason, created_at, confirmed_at, confirmed_by
`

// DepositRepository implements deposit persistence over Postgres.
//
// The payable-amount uniqueness invariant among pending deposits is
// enforced by a partial unique index, not in application code, so it
// holds under concurrent allocation from multiple instances.
type DepositRepository struct {
	db *sqlx.DB
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// Create persists a new pending deposit. Returns ErrPayableAmountTaken
// when another pending deposit already holds the same payable amount;
// the allocator retries with a fresh candidate.
func (r *DepositRepository) Create(ctx context.Context, deposit *entities.Deposit) error {
	query := `
		INSERT INTO deposits (
			id, user_id, requested_amount, payable_amount, wallet_address,
			status, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		deposit.ID,
		deposit.UserID,
		deposit.RequestedAmount,
		deposit.PayableAmount,
		deposit.WalletAddress,
		deposit.Status,
		deposit.ExpiresAt,
		deposit.CreatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == pendingPayableAmountIndex {
			return domerrors.ErrPayableAmountTaken
		}
		return fmt.Errorf("failed to create deposit: %w", err)
	}

	return nil
}

// GetByID retrieves a deposit by ID
func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`

	var deposit entities.Deposit
	err := r.db.GetContext(ctx, &deposit, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domerrors.NotFoundError("DEPOSIT")
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return &deposit, nil
}

// ListByUserID retrieves all deposits for a user, newest first
func (r *DepositRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE user_id = $1 ORDER BY created_at DESC`

	var deposits []*entities.Deposit
	err := r.db.SelectContext(ctx, &deposits, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}

	return deposits, nil
}

// CountPendingByUserID counts a user's pending deposits (for the per-user cap)
func (r *DepositRepository) CountPendingByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM deposits WHERE user_id = $1 AND status = $2`

	var count int
	err := r.db.GetContext(ctx, &count, query, userID, entities.DepositStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending deposits: %w", err)
	}

	return count, nil
}

// FindPendingByPayableAmount returns pending deposits whose payable amount
// equals the given amount exactly. The partial unique index guarantees at
// most one row; returning a slice lets the reconciler detect a broken
// invariant instead of trusting it blindly.
func (r *DepositRepository) FindPendingByPayableAmount(ctx context.Context, amount decimal.Decimal) ([]*entities.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE status = $1 AND payable_amount = $2`

	var deposits []*entities.Deposit
	err := r.db.SelectContext(ctx, &deposits, query, entities.DepositStatusPending, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending deposits by payable amount: %w", err)
	}

	return deposits, nil
}

// GetByTxHash retrieves a deposit by the on-chain transaction hash
func (r *DepositRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE tx_hash = $1`

	var deposit entities.Deposit
	err := r.db.GetContext(ctx, &deposit, query, txHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domerrors.NotFoundError("DEPOSIT")
		}
		return nil, fmt.Errorf("failed to get deposit by tx hash: %w", err)
	}

	return &deposit, nil
}

// TransitionFromPending atomically moves a deposit out of pending.
// Returns false when the deposit has already left pending; the caller
// treats that as losing the race, never as an error to retry.
func (r *DepositRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, to entities.DepositStatus) (bool, error) {
	query := `
		UPDATE deposits
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	res, err := r.db.ExecContext(ctx, query, id, to, entities.DepositStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to transition deposit to %s: %w", to, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// RejectIfPending atomically rejects a pending deposit with a reason
func (r *DepositRepository) RejectIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE deposits
		SET status = $2, reject_reason = $3
		WHERE id = $1 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query, id, entities.DepositStatusRejected, reason, entities.DepositStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to reject deposit: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// ConfirmAndCredit confirms a pending deposit and credits the owner's
// available balance in a single transaction. The conditional update on
// status is the authoritative compare-and-swap: whichever of the
// reconciler, the sweeper or an admin wins applies its transition, the
// loser observes applied=false and must not credit.
func (r *DepositRepository) ConfirmAndCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash *string, confirmedBy string, confirmedAt time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	confirmQuery := `
		UPDATE deposits
		SET status = $2, amount = $3, tx_hash = $4, confirmed_at = $5, confirmed_by = $6
		WHERE id = $1 AND status = $7
		RETURNING user_id
	`

	var userID uuid.UUID
	err = tx.GetContext(ctx, &userID, confirmQuery,
		id, entities.DepositStatusConfirmed, amount, txHash, confirmedAt, confirmedBy, entities.DepositStatusPending,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Lost the race: the deposit already left pending
			return false, nil
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == txHashIndex {
			hash := ""
			if txHash != nil {
				hash = *txHash
			}
			return false, fmt.Errorf("tx hash %s already credited another deposit: %w", hash, domerrors.ErrDataIntegrity)
		}
		return false, fmt.Errorf("failed to confirm deposit: %w", err)
	}

	creditQuery := `
		INSERT INTO user_balances (user_id, available_balance, frozen_balance, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET available_balance = user_balances.available_balance + EXCLUDED.available_balance,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err = tx.ExecContext(ctx, creditQuery, userID, amount, confirmedAt); err != nil {
		return false, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	return true, nil
}

// GetExpiredPending returns pending deposits whose expiry has passed
func (r *DepositRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Deposit, error) {
	query := `SELECT ` + depositColumns + `
		FROM deposits
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`

	var deposits []*entities.Deposit
	err := r.db.SelectContext(ctx, &deposits, query, entities.DepositStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired pending deposits: %w", err)
	}

	return deposits, nil
}
