// Package usdt provides fixed-point helpers for USDT amounts.
//
// All deposit matching is keyed by exact amount equality, so amounts are
// carried at exactly 8 decimal places everywhere. The smallest unit
// ("unit") is 1e-8 USDT.
package usdt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimals is the fractional precision of all USDT amounts in the system.
const Decimals = 8

var unitFactor = decimal.New(1, Decimals) // 10^8

// ToUnits converts a USDT amount to integer units of 1e-8 USDT.
// Returns an error if the amount carries more than 8 decimal places,
// since truncating would break exact-amount matching.
func ToUnits(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(unitFactor)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s exceeds %d decimal places", amount.String(), Decimals)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", amount.String())
	}
	return scaled.IntPart(), nil
}

// FromUnits converts integer units of 1e-8 USDT back to a USDT amount.
func FromUnits(units int64) decimal.Decimal {
	return decimal.New(units, -Decimals)
}

// Normalize rescales an amount to exactly 8 decimal places. Amounts must
// be normalized before they are persisted or compared.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Decimals)
}

// Format renders an amount with a fixed 8-decimal fraction, the canonical
// wire representation shown to users and sent to the indexer.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(Decimals)
}
