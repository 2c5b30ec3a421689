package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/deposit"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// UnmatchedTransferStore is the review surface for unattributed transfers
type UnmatchedTransferStore interface {
	ListUnreviewed(ctx context.Context, limit int) ([]*entities.UnmatchedTransfer, error)
	MarkReviewed(ctx context.Context, txHash, reviewedBy string) (bool, error)
}

// AdminHandler handles operator endpoints for deposit finalization and
// unmatched transfer review
type AdminHandler struct {
	deposits  *deposit.Service
	unmatched UnmatchedTransferStore
	logger    *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deposits *deposit.Service, unmatched UnmatchedTransferStore, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{deposits: deposits, unmatched: unmatched, logger: logger}
}

// ConfirmDepositRequest is the manual confirmation payload. Amount, when
// present, overrides the payable amount as the credited amount.
type ConfirmDepositRequest struct {
	ConfirmedBy string  `json:"confirmed_by" binding:"required"`
	Amount      *string `json:"amount,omitempty"`
	TxHash      *string `json:"tx_hash,omitempty"`
}

// ConfirmDeposit manually confirms a pending deposit and credits the owner
func (h *AdminHandler) ConfirmDeposit(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondError(c, 400, ErrCodeInvalidID, "Invalid deposit ID", nil)
		return
	}

	var req ConfirmDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	var amountOverride *decimal.Decimal
	if req.Amount != nil {
		parsed, err := parseDecimal(*req.Amount)
		if err != nil {
			respondError(c, 400, ErrCodeInvalidAmount, "Invalid amount", nil)
			return
		}
		amountOverride = &parsed
	}

	dep, err := h.deposits.Confirm(c.Request.Context(), id, amountOverride, req.TxHash, req.ConfirmedBy)
	if err != nil {
		h.logger.Warn("Manual confirmation failed",
			"deposit_id", id.String(),
			"confirmed_by", req.ConfirmedBy,
			"error", err,
			"request_id", getRequestID(c))
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, dep)
}

// RejectDepositRequest carries the operator's reject reason
type RejectDepositRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectDeposit marks a pending deposit rejected
func (h *AdminHandler) RejectDeposit(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondError(c, 400, ErrCodeInvalidID, "Invalid deposit ID", nil)
		return
	}

	var req RejectDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	dep, err := h.deposits.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, dep)
}

// ListUnmatchedTransfers returns transfers awaiting operator review
func (h *AdminHandler) ListUnmatchedTransfers(c *gin.Context) {
	limit := parseIntParam(c, "limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	transfers, err := h.unmatched.ListUnreviewed(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list unmatched transfers",
			"error", err,
			"request_id", getRequestID(c))
		respondInternalError(c, "Failed to list unmatched transfers")
		return
	}

	respondSuccess(c, gin.H{"transfers": transfers})
}

// ReviewUnmatchedRequest identifies the reviewing operator
type ReviewUnmatchedRequest struct {
	ReviewedBy string `json:"reviewed_by" binding:"required"`
}

// ReviewUnmatchedTransfer marks an unmatched transfer as reviewed
func (h *AdminHandler) ReviewUnmatchedTransfer(c *gin.Context) {
	txHash := c.Param("txHash")
	if txHash == "" {
		respondBadRequest(c, "Missing tx hash")
		return
	}

	var req ReviewUnmatchedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	marked, err := h.unmatched.MarkReviewed(c.Request.Context(), txHash, req.ReviewedBy)
	if err != nil {
		respondInternalError(c, "Failed to mark transfer reviewed")
		return
	}
	if !marked {
		respondNotFound(c, "Unmatched transfer not found or already reviewed")
		return
	}

	respondSuccess(c, gin.H{"tx_hash": txHash, "reviewed": true})
}
