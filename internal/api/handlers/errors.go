package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	// Validation errors
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInvalidID      = "INVALID_ID"
	ErrCodeInvalidUserID  = "INVALID_USER_ID"
	ErrCodeInvalidAmount  = "INVALID_AMOUNT"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Deposit errors
	ErrCodeAmountOutOfBounds  = "AMOUNT_OUT_OF_BOUNDS"
	ErrCodePendingCapReached  = "PENDING_CAP_REACHED"
	ErrCodeCapacityExhausted  = "CAPACITY_EXHAUSTED"
	ErrCodeDepositNotPending  = "DEPOSIT_NOT_PENDING"

	// Operation errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondDomainError maps a service error to an HTTP response. Unknown
// errors deliberately collapse to a generic 500 so internals never leak.
func respondDomainError(c *gin.Context, err error) {
	var domainErr *domerrors.DomainError
	if errors.As(err, &domainErr) {
		status := domainErrorStatus(domainErr)
		respondError(c, status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}

	respondInternalError(c, "Internal server error")
}

func domainErrorStatus(err *domerrors.DomainError) int {
	switch {
	case errors.Is(err, domerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domerrors.ErrAmountOutOfBounds),
		errors.Is(err, domerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domerrors.ErrPendingCapReached),
		errors.Is(err, domerrors.ErrConflict),
		errors.Is(err, domerrors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domerrors.ErrCapacityExhausted),
		errors.Is(err, domerrors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
