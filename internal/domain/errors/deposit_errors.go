package errors

import "errors"

// Deposit and settlement error categories
var (
	// ErrAmountOutOfBounds indicates the requested amount is outside the
	// allowed deposit range
	ErrAmountOutOfBounds = errors.New("amount out of bounds")

	// ErrPendingCapReached indicates the user already has the maximum
	// number of concurrently pending deposits
	ErrPendingCapReached = errors.New("pending deposit cap reached")

	// ErrCapacityExhausted indicates the allocator could not find a free
	// payable amount within the retry budget
	ErrCapacityExhausted = errors.New("payable amount capacity exhausted")

	// ErrPayableAmountTaken indicates the candidate payable amount collided
	// with another pending deposit (partial unique index violation);
	// callers retry with a new candidate
	ErrPayableAmountTaken = errors.New("payable amount already taken")

	// ErrNotPending indicates a transition was attempted on a deposit that
	// has already left the pending state
	ErrNotPending = errors.New("deposit is not pending")

	// ErrTransientScan indicates the blockchain indexer was unreachable;
	// the scanner retries on its next cycle without advancing the cursor
	ErrTransientScan = errors.New("transient scan error")

	// ErrDataIntegrity indicates an invariant the storage layer should
	// enforce was observed broken (e.g. multiple pending deposits matched
	// one transfer); requires manual operator review
	ErrDataIntegrity = errors.New("data integrity fault")

	// ErrInsufficientBalance indicates a freeze was requested for more than
	// the user's available balance
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// CapacityExhaustedError creates the user-facing allocator exhaustion error
func CapacityExhaustedError() *DomainError {
	return &DomainError{
		Err:     ErrCapacityExhausted,
		Code:    "CAPACITY_EXHAUSTED",
		Message: "could not allocate a unique payable amount, try again or cancel an open deposit",
	}
}

// PendingCapError creates the per-user pending deposit cap error. The
// message is shown verbatim in the Mini-App, hence the Russian text.
func PendingCapError(cap int) *DomainError {
	return &DomainError{
		Err:     ErrPendingCapReached,
		Code:    "PENDING_CAP_REACHED",
		Message: "У вас уже открыто максимальное количество заявок на пополнение",
		Details: map[string]interface{}{
			"max_pending_deposits": cap,
		},
	}
}

// AmountOutOfBoundsError creates the deposit bounds validation error
func AmountOutOfBoundsError(min, max string) *DomainError {
	return &DomainError{
		Err:     ErrAmountOutOfBounds,
		Code:    "AMOUNT_OUT_OF_BOUNDS",
		Message: "deposit amount must be between " + min + " and " + max + " USDT",
		Details: map[string]interface{}{
			"min_amount": min,
			"max_amount": max,
		},
	}
}

// IsTransientScan checks if an error is a transient scan error
func IsTransientScan(err error) bool {
	return errors.Is(err, ErrTransientScan)
}

// IsDataIntegrity checks if an error is a data integrity fault
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}
