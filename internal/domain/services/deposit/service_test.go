package deposit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

type MockDepositRepo struct {
	mock.Mock
}

func (m *MockDepositRepo) Create(ctx context.Context, deposit *entities.Deposit) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *MockDepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Deposit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Deposit), args.Error(1)
}

func (m *MockDepositRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Deposit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Deposit), args.Error(1)
}

func (m *MockDepositRepo) CountPendingByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockDepositRepo) TransitionFromPending(ctx context.Context, id uuid.UUID, to entities.DepositStatus) (bool, error) {
	args := m.Called(ctx, id, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockDepositRepo) RejectIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	args := m.Called(ctx, id, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockDepositRepo) ConfirmAndCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash *string, confirmedBy string, confirmedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, amount, txHash, confirmedBy, confirmedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDepositRepo) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Deposit, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Deposit), args.Error(1)
}

func testConfig() Config {
	return Config{
		MinAmount:         decimal.RequireFromString("30"),
		MaxAmount:         decimal.RequireFromString("20000"),
		ExpiryWindow:      10 * time.Minute,
		MaxPendingPerUser: 3,
		MaxAttempts:       8,
		WalletAddress:     "TTestWalletAddress",
	}
}

func newTestService(repo *MockDepositRepo) *Service {
	return NewService(repo, NewAllocator(), testConfig(), logger.NewNop())
}

func TestCreate_Success(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	requested := decimal.RequireFromString("99.97")

	repo.On("CountPendingByUserID", mock.Anything, userID).Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Deposit")).Return(nil).Once()

	dep, err := svc.Create(context.Background(), userID, requested)
	require.NoError(t, err)

	assert.Equal(t, userID, dep.UserID)
	assert.Equal(t, entities.DepositStatusPending, dep.Status)
	assert.True(t, dep.RequestedAmount.Equal(requested))
	assert.True(t, dep.PayableAmount.Equal(requested), "first attempt pays the requested amount exactly")
	assert.Equal(t, "TTestWalletAddress", dep.WalletAddress)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), dep.ExpiresAt, 5*time.Second)
	repo.AssertExpectations(t)
}

func TestCreate_AmountBelowMinimum(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), uuid.New(), decimal.RequireFromString("29.99"))

	assert.ErrorIs(t, err, domerrors.ErrAmountOutOfBounds)
	repo.AssertNotCalled(t, "Create")
}

func TestCreate_AmountAboveMaximum(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), uuid.New(), decimal.RequireFromString("20000.01"))

	assert.ErrorIs(t, err, domerrors.ErrAmountOutOfBounds)
}

func TestCreate_BoundaryAmountsAccepted(t *testing.T) {
	for _, amount := range []string{"30", "20000"} {
		repo := new(MockDepositRepo)
		svc := newTestService(repo)

		repo.On("CountPendingByUserID", mock.Anything, mock.Anything).Return(0, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Create(context.Background(), uuid.New(), decimal.RequireFromString(amount))
		assert.NoError(t, err, "amount %s is inside the allowed range", amount)
	}
}

func TestCreate_PendingCapReached(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	userID := uuid.New()

	repo.On("CountPendingByUserID", mock.Anything, userID).Return(3, nil)

	_, err := svc.Create(context.Background(), userID, decimal.RequireFromString("100"))

	assert.ErrorIs(t, err, domerrors.ErrPendingCapReached)
	repo.AssertNotCalled(t, "Create")
}

func TestCreate_RetriesOnPayableAmountCollision(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	requested := decimal.RequireFromString("100")

	repo.On("CountPendingByUserID", mock.Anything, userID).Return(0, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(domerrors.ErrPayableAmountTaken).Twice()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	dep, err := svc.Create(context.Background(), userID, requested)
	require.NoError(t, err)

	assert.True(t, dep.RequestedAmount.Equal(requested))
	assert.True(t, dep.PayableAmount.GreaterThan(requested),
		"retried candidate must carry a perturbation")
	repo.AssertNumberOfCalls(t, "Create", 3)
}

func TestCreate_CapacityExhausted(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)

	repo.On("CountPendingByUserID", mock.Anything, mock.Anything).Return(0, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(domerrors.ErrPayableAmountTaken)

	_, err := svc.Create(context.Background(), uuid.New(), decimal.RequireFromString("100"))

	assert.ErrorIs(t, err, domerrors.ErrCapacityExhausted)
	repo.AssertNumberOfCalls(t, "Create", 8)
}

func TestCancel_Success(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	depositID := uuid.New()

	pending := &entities.Deposit{ID: depositID, UserID: userID, Status: entities.DepositStatusPending}
	cancelled := &entities.Deposit{ID: depositID, UserID: userID, Status: entities.DepositStatusCancelled}

	repo.On("GetByID", mock.Anything, depositID).Return(pending, nil).Once()
	repo.On("TransitionFromPending", mock.Anything, depositID, entities.DepositStatusCancelled).Return(true, nil)
	repo.On("GetByID", mock.Anything, depositID).Return(cancelled, nil).Once()

	dep, err := svc.Cancel(context.Background(), depositID, userID)
	require.NoError(t, err)
	assert.Equal(t, entities.DepositStatusCancelled, dep.Status)
}

func TestCancel_WrongOwner(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	depositID := uuid.New()

	repo.On("GetByID", mock.Anything, depositID).Return(&entities.Deposit{
		ID:     depositID,
		UserID: uuid.New(),
		Status: entities.DepositStatusPending,
	}, nil)

	_, err := svc.Cancel(context.Background(), depositID, uuid.New())

	assert.ErrorIs(t, err, domerrors.ErrNotFound, "other users' deposits look nonexistent")
	repo.AssertNotCalled(t, "TransitionFromPending")
}

func TestCancel_AlreadyFinalized(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	userID := uuid.New()
	depositID := uuid.New()

	repo.On("GetByID", mock.Anything, depositID).Return(&entities.Deposit{
		ID:     depositID,
		UserID: userID,
		Status: entities.DepositStatusConfirmed,
	}, nil)
	repo.On("TransitionFromPending", mock.Anything, depositID, entities.DepositStatusCancelled).Return(false, nil)

	_, err := svc.Cancel(context.Background(), depositID, userID)

	assert.ErrorIs(t, err, domerrors.ErrConflict)
}

func TestConfirm_UsesPayableAmountByDefault(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	depositID := uuid.New()
	payable := decimal.RequireFromString("100.00001234")

	pending := &entities.Deposit{ID: depositID, UserID: uuid.New(), PayableAmount: payable, Status: entities.DepositStatusPending}
	confirmed := &entities.Deposit{ID: depositID, Status: entities.DepositStatusConfirmed}

	repo.On("GetByID", mock.Anything, depositID).Return(pending, nil).Once()
	repo.On("ConfirmAndCredit", mock.Anything, depositID,
		mock.MatchedBy(func(amount decimal.Decimal) bool { return amount.Equal(payable) }),
		(*string)(nil), "ops@example.com", mock.AnythingOfType("time.Time"),
	).Return(true, nil)
	repo.On("GetByID", mock.Anything, depositID).Return(confirmed, nil).Once()

	dep, err := svc.Confirm(context.Background(), depositID, nil, nil, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, entities.DepositStatusConfirmed, dep.Status)
	repo.AssertExpectations(t)
}

func TestConfirm_AmountOverride(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	depositID := uuid.New()
	override := decimal.RequireFromString("95.5")

	pending := &entities.Deposit{ID: depositID, PayableAmount: decimal.RequireFromString("100"), Status: entities.DepositStatusPending}

	repo.On("GetByID", mock.Anything, depositID).Return(pending, nil).Once()
	repo.On("ConfirmAndCredit", mock.Anything, depositID,
		mock.MatchedBy(func(amount decimal.Decimal) bool { return amount.Equal(override) }),
		(*string)(nil), "ops@example.com", mock.AnythingOfType("time.Time"),
	).Return(true, nil)
	repo.On("GetByID", mock.Anything, depositID).Return(pending, nil).Once()

	_, err := svc.Confirm(context.Background(), depositID, &override, nil, "ops@example.com")
	require.NoError(t, err)
}

func TestConfirm_LostRace(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)
	depositID := uuid.New()

	repo.On("GetByID", mock.Anything, depositID).Return(&entities.Deposit{
		ID:            depositID,
		PayableAmount: decimal.RequireFromString("100"),
		Status:        entities.DepositStatusPending,
	}, nil)
	repo.On("ConfirmAndCredit", mock.Anything, depositID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	_, err := svc.Confirm(context.Background(), depositID, nil, nil, "ops@example.com")

	assert.ErrorIs(t, err, domerrors.ErrConflict)
}

func TestReject_RequiresReason(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)

	_, err := svc.Reject(context.Background(), uuid.New(), "")

	assert.ErrorIs(t, err, domerrors.ErrInvalidInput)
}

func TestExpireOverdue(t *testing.T) {
	repo := new(MockDepositRepo)
	svc := newTestService(repo)

	first := &entities.Deposit{ID: uuid.New(), UserID: uuid.New()}
	second := &entities.Deposit{ID: uuid.New(), UserID: uuid.New()}

	repo.On("GetExpiredPending", mock.Anything, mock.Anything, 100).Return([]*entities.Deposit{first, second}, nil)
	repo.On("TransitionFromPending", mock.Anything, first.ID, entities.DepositStatusExpired).Return(true, nil)
	// Second deposit was confirmed between the scan and the transition
	repo.On("TransitionFromPending", mock.Anything, second.ID, entities.DepositStatusExpired).Return(false, nil)

	expired, err := svc.ExpireOverdue(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired, "lost races are skipped, not counted")
}
