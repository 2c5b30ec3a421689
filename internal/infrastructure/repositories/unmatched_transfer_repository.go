package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
)

// UnmatchedTransferRepository stores scanned transfers that could not be
// attributed to a pending deposit, as evidence for manual review.
type UnmatchedTransferRepository struct {
	db *sqlx.DB
}

// NewUnmatchedTransferRepository creates a new unmatched transfer repository
func NewUnmatchedTransferRepository(db *sqlx.DB) *UnmatchedTransferRepository {
	return &UnmatchedTransferRepository{db: db}
}

// Record stores an unmatched transfer, keyed by tx hash. Re-observing the
// same transfer across scan cycles is a no-op.
func (r *UnmatchedTransferRepository) Record(ctx context.Context, transfer *entities.UnmatchedTransfer) error {
	query := `
		INSERT INTO unmatched_transfers (
			id, tx_hash, from_address, amount, block_number, block_timestamp, reason, reviewed, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, false, $8
		)
		ON CONFLICT (tx_hash) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		transfer.ID,
		transfer.TxHash,
		transfer.FromAddress,
		transfer.Amount,
		transfer.BlockNumber,
		transfer.BlockTimestamp,
		transfer.Reason,
		transfer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record unmatched transfer: %w", err)
	}

	return nil
}

// ExistsByTxHash reports whether a transfer was already recorded
func (r *UnmatchedTransferRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM unmatched_transfers WHERE tx_hash = $1)`,
		txHash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check unmatched transfer: %w", err)
	}

	return exists, nil
}

// ListUnreviewed returns unreviewed transfers, oldest first
func (r *UnmatchedTransferRepository) ListUnreviewed(ctx context.Context, limit int) ([]*entities.UnmatchedTransfer, error) {
	query := `
		SELECT id, tx_hash, from_address, amount, block_number, block_timestamp, reason, reviewed, reviewed_by, created_at
		FROM unmatched_transfers
		WHERE reviewed = false
		ORDER BY created_at ASC
		LIMIT $1
	`

	var transfers []*entities.UnmatchedTransfer
	if err := r.db.SelectContext(ctx, &transfers, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unmatched transfers: %w", err)
	}

	return transfers, nil
}

// MarkReviewed flags a transfer as handled by an operator
func (r *UnmatchedTransferRepository) MarkReviewed(ctx context.Context, txHash, reviewedBy string) (bool, error) {
	query := `
		UPDATE unmatched_transfers
		SET reviewed = true, reviewed_by = $2
		WHERE tx_hash = $1 AND reviewed = false
	`

	res, err := r.db.ExecContext(ctx, query, txHash, reviewedBy)
	if err != nil {
		return false, fmt.Errorf("failed to mark transfer reviewed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}
