package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tronpay-service/tronpay_service/internal/domain/services/balance"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// BalanceHandler handles balance read endpoints
type BalanceHandler struct {
	balances *balance.Service
	logger   *logger.Logger
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(balances *balance.Service, logger *logger.Logger) *BalanceHandler {
	return &BalanceHandler{balances: balances, logger: logger}
}

// GetByUser returns the user's available and frozen balance
func (h *BalanceHandler) GetByUser(c *gin.Context) {
	userID, err := parseUUID(c.Param("userId"))
	if err != nil {
		respondError(c, 400, ErrCodeInvalidUserID, "Invalid user ID", nil)
		return
	}

	bal, err := h.balances.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get balance",
			"user_id", userID.String(),
			"error", err,
			"request_id", getRequestID(c))
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, bal)
}
