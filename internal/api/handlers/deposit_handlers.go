package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tronpay-service/tronpay_service/internal/domain/services/deposit"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// DepositHandler handles deposit lifecycle endpoints
type DepositHandler struct {
	deposits *deposit.Service
	logger   *logger.Logger
}

// NewDepositHandler creates a new deposit handler
func NewDepositHandler(deposits *deposit.Service, logger *logger.Logger) *DepositHandler {
	return &DepositHandler{deposits: deposits, logger: logger}
}

// CreateAutomatedDepositRequest is the payload for opening a deposit.
// The amount is a decimal string; floats would corrupt exact-amount
// matching.
type CreateAutomatedDepositRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	RequestedAmount string `json:"requested_amount" binding:"required"`
}

// CreateAutomated opens a pending deposit with a unique payable amount
func (h *DepositHandler) CreateAutomated(c *gin.Context) {
	var req CreateAutomatedDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	userID, err := parseUUID(req.UserID)
	if err != nil {
		respondError(c, 400, ErrCodeInvalidUserID, "Invalid user ID", nil)
		return
	}

	amount, err := parseDecimal(req.RequestedAmount)
	if err != nil {
		respondError(c, 400, ErrCodeInvalidAmount, "Invalid amount", nil)
		return
	}

	dep, err := h.deposits.Create(c.Request.Context(), userID, amount)
	if err != nil {
		h.logger.Warn("Deposit creation failed",
			"user_id", userID.String(),
			"error", err,
			"request_id", getRequestID(c))
		respondDomainError(c, err)
		return
	}

	respondCreated(c, dep)
}

// ListByUser returns the user's deposits, newest first
func (h *DepositHandler) ListByUser(c *gin.Context) {
	userID, err := parseUUID(c.Param("userId"))
	if err != nil {
		respondError(c, 400, ErrCodeInvalidUserID, "Invalid user ID", nil)
		return
	}

	deposits, err := h.deposits.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list deposits",
			"user_id", userID.String(),
			"error", err,
			"request_id", getRequestID(c))
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, gin.H{"deposits": deposits})
}

// GetByID returns a single deposit
func (h *DepositHandler) GetByID(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondError(c, 400, ErrCodeInvalidID, "Invalid deposit ID", nil)
		return
	}

	dep, err := h.deposits.GetByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, dep)
}

// CancelDepositRequest identifies the requesting user for ownership checks
type CancelDepositRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Cancel cancels the user's own pending deposit
func (h *DepositHandler) Cancel(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondError(c, 400, ErrCodeInvalidID, "Invalid deposit ID", nil)
		return
	}

	var req CancelDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	userID, err := parseUUID(req.UserID)
	if err != nil {
		respondError(c, 400, ErrCodeInvalidUserID, "Invalid user ID", nil)
		return
	}

	dep, err := h.deposits.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, dep)
}
