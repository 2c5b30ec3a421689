package entities

import "fmt"

// DepositStatus represents the status of a deposit request
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
	DepositStatusRejected  DepositStatus = "rejected"
	DepositStatusCancelled DepositStatus = "cancelled"
	DepositStatusExpired   DepositStatus = "expired"
)

// ValidDepositStatuses contains all valid deposit statuses
var ValidDepositStatuses = map[DepositStatus]bool{
	DepositStatusPending:   true,
	DepositStatusConfirmed: true,
	DepositStatusRejected:  true,
	DepositStatusCancelled: true,
	DepositStatusExpired:   true,
}

// ValidDepositTransitions defines allowed status transitions. A deposit
// leaves pending exactly once; every other state is terminal.
var ValidDepositTransitions = map[DepositStatus][]DepositStatus{
	DepositStatusPending:   {DepositStatusConfirmed, DepositStatusRejected, DepositStatusCancelled, DepositStatusExpired},
	DepositStatusConfirmed: {},
	DepositStatusRejected:  {},
	DepositStatusCancelled: {},
	DepositStatusExpired:   {},
}

// IsValid checks if the status is a valid deposit status
func (s DepositStatus) IsValid() bool {
	return ValidDepositStatuses[s]
}

// CanTransitionTo checks if transition to new status is allowed
func (s DepositStatus) CanTransitionTo(newStatus DepositStatus) bool {
	allowed, exists := ValidDepositTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s DepositStatus) IsTerminal() bool {
	return s != DepositStatusPending && s.IsValid()
}

// IsPending returns true if deposit is still pending
func (s DepositStatus) IsPending() bool {
	return s == DepositStatusPending
}

// ValidateTransition validates and returns error if transition is invalid
func (s DepositStatus) ValidateTransition(newStatus DepositStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid deposit status: %s", newStatus)
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}

// Deposit configuration constants
const (
	MinDepositAmountUSDT      = 30    // Minimum deposit amount in USDT
	MaxDepositAmountUSDT      = 20000 // Maximum deposit amount in USDT
	DepositExpiryMinutes      = 10    // Minutes before a pending deposit expires
	MaxPendingDepositsPerUser = 3     // Concurrently pending deposits allowed per user
)
