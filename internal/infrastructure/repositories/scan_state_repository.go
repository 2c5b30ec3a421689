package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
)

// scanStateID is the primary key of the singleton cursor row
const scanStateID = 1

// ScanStateRepository owns the singleton chain scan cursor. The cursor is
// durable state: it is read once at cycle start and written once on cycle
// success, never cached in memory across cycles.
type ScanStateRepository struct {
	db *sqlx.DB
}

// NewScanStateRepository creates a new scan state repository
func NewScanStateRepository(db *sqlx.DB) *ScanStateRepository {
	return &ScanStateRepository{db: db}
}

// Get reads the cursor, creating the singleton row on first use
func (r *ScanStateRepository) Get(ctx context.Context) (*entities.TronScanState, error) {
	insert := `
		INSERT INTO tron_scan_state (id, last_processed_block_number, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, scanStateID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to ensure scan state row: %w", err)
	}

	var state entities.TronScanState
	query := `
		SELECT id, last_processed_block_number, last_processed_timestamp, last_successful_scan, updated_at
		FROM tron_scan_state
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &state, query, scanStateID); err != nil {
		return nil, fmt.Errorf("failed to get scan state: %w", err)
	}

	return &state, nil
}

// Advance moves the cursor forward after a fully successful scan cycle.
// The conditional on the current block number keeps a stale replica from
// rewinding the cursor.
func (r *ScanStateRepository) Advance(ctx context.Context, blockNumber int64, blockTimestamp time.Time, scannedAt time.Time) error {
	query := `
		UPDATE tron_scan_state
		SET last_processed_block_number = $2,
		    last_processed_timestamp = $3,
		    last_successful_scan = $4,
		    updated_at = $4
		WHERE id = $1 AND last_processed_block_number <= $2
	`

	if _, err := r.db.ExecContext(ctx, query, scanStateID, blockNumber, blockTimestamp, scannedAt); err != nil {
		return fmt.Errorf("failed to advance scan cursor: %w", err)
	}

	return nil
}

// TouchSuccessfulScan records a completed cycle that found nothing new
func (r *ScanStateRepository) TouchSuccessfulScan(ctx context.Context, scannedAt time.Time) error {
	query := `
		UPDATE tron_scan_state
		SET last_successful_scan = $2, updated_at = $2
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, scanStateID, scannedAt); err != nil {
		return fmt.Errorf("failed to touch scan state: %w", err)
	}

	return nil
}
