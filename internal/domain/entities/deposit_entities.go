package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfirmedBySystem marks deposits confirmed automatically by the chain
// scanner rather than by an operator.
const ConfirmedBySystem = "system"

// Deposit is a single user-initiated USDT top-up intent.
//
// PayableAmount is the exact amount the user must transfer on-chain. It is
// unique among all pending deposits (partial unique index) and is the only
// correlation key between an anonymous TRC20 transfer and a user: the
// service wallet address is shared, so disambiguation is entirely by amount.
type Deposit struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	RequestedAmount decimal.Decimal `db:"requested_amount" json:"requested_amount"`
	PayableAmount   decimal.Decimal `db:"payable_amount" json:"payable_amount"`
	// Amount is the amount actually credited; set only on confirmation and
	// may differ from PayableAmount on manual admin override.
	Amount        *decimal.Decimal `db:"amount" json:"amount,omitempty"`
	WalletAddress string           `db:"wallet_address" json:"wallet_address"`
	Status        DepositStatus    `db:"status" json:"status"`
	ExpiresAt     time.Time        `db:"expires_at" json:"expires_at"`
	TxHash        *string          `db:"tx_hash" json:"tx_hash,omitempty"`
	RejectReason  *string          `db:"reject_reason" json:"reject_reason,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	ConfirmedAt   *time.Time       `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ConfirmedBy   *string          `db:"confirmed_by" json:"confirmed_by,omitempty"`
}

// IsExpired reports whether a pending deposit has passed its expiry window
func (d *Deposit) IsExpired(now time.Time) bool {
	return d.Status == DepositStatusPending && now.After(d.ExpiresAt)
}

// TronScanState is the singleton chain scanner cursor. It is read at the
// start of every scan cycle and advanced only after a cycle completes
// without unrecoverable error, so a failed cycle re-scans the same range.
type TronScanState struct {
	ID                       int        `db:"id" json:"id"`
	LastProcessedBlockNumber int64      `db:"last_processed_block_number" json:"last_processed_block_number"`
	LastProcessedTimestamp   *time.Time `db:"last_processed_timestamp" json:"last_processed_timestamp,omitempty"`
	LastSuccessfulScan       *time.Time `db:"last_successful_scan" json:"last_successful_scan,omitempty"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// UnmatchedReason classifies why a scanned transfer could not be settled
type UnmatchedReason string

const (
	// UnmatchedNoMatch: no pending deposit carries this exact amount
	UnmatchedNoMatch UnmatchedReason = "no_match"
	// UnmatchedAmbiguous: more than one pending deposit matched, which the
	// partial unique index should make impossible
	UnmatchedAmbiguous UnmatchedReason = "ambiguous_match"
	// UnmatchedAlreadyFinalized: the matched deposit left pending (expired,
	// cancelled) before the transfer was observed; real funds need manual
	// reconciliation
	UnmatchedAlreadyFinalized UnmatchedReason = "already_finalized"
)

// UnmatchedTransfer is a scanned on-chain transfer that could not be
// attributed to a pending deposit. Kept as evidence for operator review;
// never silently dropped.
type UnmatchedTransfer struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	TxHash         string          `db:"tx_hash" json:"tx_hash"`
	FromAddress    string          `db:"from_address" json:"from_address"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	BlockNumber    int64           `db:"block_number" json:"block_number"`
	BlockTimestamp time.Time       `db:"block_timestamp" json:"block_timestamp"`
	Reason         UnmatchedReason `db:"reason" json:"reason"`
	Reviewed       bool            `db:"reviewed" json:"reviewed"`
	ReviewedBy     *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
