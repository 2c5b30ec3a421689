package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserBalance holds a user's spendable and frozen USDT.
//
// AvailableBalance is mutated only by the reconciler (deposit credits) and
// the payment flow (freeze/unfreeze against open payment requests). Both
// columns are guarded by non-negative CHECK constraints in the database.
type UserBalance struct {
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	AvailableBalance decimal.Decimal `db:"available_balance" json:"available_balance"`
	FrozenBalance    decimal.Decimal `db:"frozen_balance" json:"frozen_balance"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
