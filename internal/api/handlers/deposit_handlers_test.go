package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/deposit"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

// stubDepositRepo drives the deposit service through handler tests
type stubDepositRepo struct {
	pendingCount int
	createErr    error
	created      *entities.Deposit
	byID         map[uuid.UUID]*entities.Deposit
	transitionOK bool
}

func (s *stubDepositRepo) Create(ctx context.Context, d *entities.Deposit) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = d
	return nil
}

func (s *stubDepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Deposit, error) {
	if d, ok := s.byID[id]; ok {
		return d, nil
	}
	return nil, domerrors.NotFoundError("DEPOSIT")
}

func (s *stubDepositRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Deposit, error) {
	var out []*entities.Deposit
	for _, d := range s.byID {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubDepositRepo) CountPendingByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.pendingCount, nil
}

func (s *stubDepositRepo) TransitionFromPending(ctx context.Context, id uuid.UUID, to entities.DepositStatus) (bool, error) {
	if s.transitionOK {
		if d, ok := s.byID[id]; ok {
			d.Status = to
		}
	}
	return s.transitionOK, nil
}

func (s *stubDepositRepo) RejectIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return s.transitionOK, nil
}

func (s *stubDepositRepo) ConfirmAndCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash *string, confirmedBy string, confirmedAt time.Time) (bool, error) {
	return s.transitionOK, nil
}

func (s *stubDepositRepo) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Deposit, error) {
	return nil, nil
}

func newTestRouter(repo *stubDepositRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := deposit.Config{
		MinAmount:         decimal.RequireFromString("30"),
		MaxAmount:         decimal.RequireFromString("20000"),
		ExpiryWindow:      10 * time.Minute,
		MaxPendingPerUser: 3,
		MaxAttempts:       8,
		WalletAddress:     "TServiceWallet",
	}
	svc := deposit.NewService(repo, deposit.NewAllocator(), cfg, logger.NewNop())
	handler := NewDepositHandler(svc, logger.NewNop())

	router := gin.New()
	router.POST("/api/v1/deposits/create-automated", handler.CreateAutomated)
	router.GET("/api/v1/deposits/user/:userId", handler.ListByUser)
	router.POST("/api/v1/deposits/:id/cancel", handler.Cancel)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAutomated_Success(t *testing.T) {
	repo := &stubDepositRepo{}
	router := newTestRouter(repo)

	rec := postJSON(router, "/api/v1/deposits/create-automated", gin.H{
		"user_id": uuid.New().String(),
		"requested_amount": "99.97",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp entities.Deposit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entities.DepositStatusPending, resp.Status)
	assert.True(t, resp.PayableAmount.Equal(decimal.RequireFromString("99.97")))
	assert.Equal(t, "TServiceWallet", resp.WalletAddress)
}

func TestCreateAutomated_InvalidAmount(t *testing.T) {
	router := newTestRouter(&stubDepositRepo{})

	rec := postJSON(router, "/api/v1/deposits/create-automated", gin.H{
		"user_id": uuid.New().String(),
		"requested_amount": "not-a-number",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAutomated_AmountOutOfBounds(t *testing.T) {
	router := newTestRouter(&stubDepositRepo{})

	rec := postJSON(router, "/api/v1/deposits/create-automated", gin.H{
		"user_id": uuid.New().String(),
		"requested_amount": "5",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp entities.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AMOUNT_OUT_OF_BOUNDS", resp.Code)
}

func TestCreateAutomated_PendingCapConflict(t *testing.T) {
	router := newTestRouter(&stubDepositRepo{pendingCount: 3})

	rec := postJSON(router, "/api/v1/deposits/create-automated", gin.H{
		"user_id": uuid.New().String(),
		"requested_amount": "100",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp entities.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING_CAP_REACHED", resp.Code)
	assert.Contains(t, resp.Message, "максимальное количество заявок")
}

func TestCreateAutomated_CapacityExhausted(t *testing.T) {
	router := newTestRouter(&stubDepositRepo{createErr: domerrors.ErrPayableAmountTaken})

	rec := postJSON(router, "/api/v1/deposits/create-automated", gin.H{
		"user_id": uuid.New().String(),
		"requested_amount": "100",
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCancel_Success(t *testing.T) {
	userID := uuid.New()
	depositID := uuid.New()
	repo := &stubDepositRepo{
		transitionOK: true,
		byID: map[uuid.UUID]*entities.Deposit{
			depositID: {ID: depositID, UserID: userID, Status: entities.DepositStatusPending},
		},
	}
	router := newTestRouter(repo)

	rec := postJSON(router, fmt.Sprintf("/api/v1/deposits/%s/cancel", depositID), gin.H{
		"user_id": userID.String(),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp entities.Deposit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entities.DepositStatusCancelled, resp.Status)
}

func TestCancel_NotOwner(t *testing.T) {
	depositID := uuid.New()
	repo := &stubDepositRepo{
		transitionOK: true,
		byID: map[uuid.UUID]*entities.Deposit{
			depositID: {ID: depositID, UserID: uuid.New(), Status: entities.DepositStatusPending},
		},
	}
	router := newTestRouter(repo)

	rec := postJSON(router, fmt.Sprintf("/api/v1/deposits/%s/cancel", depositID), gin.H{
		"user_id": uuid.New().String(),
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListByUser_InvalidUserID(t *testing.T) {
	router := newTestRouter(&stubDepositRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deposits/user/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
