package chain_scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronpay-service/tronpay_service/internal/adapters/tron"
	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/internal/domain/services/reconcile"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
)

type fakeSource struct {
	transfers []tron.Transfer
	err       error
	gotAfter  int64
}

func (f *fakeSource) TransfersToWallet(ctx context.Context, afterBlock int64, minTimestamp time.Time) ([]tron.Transfer, error) {
	f.gotAfter = afterBlock
	return f.transfers, f.err
}

type fakeScanState struct {
	state        entities.TronScanState
	advancedTo   int64
	advanceCount int
	touched      bool
}

func (f *fakeScanState) Get(ctx context.Context) (*entities.TronScanState, error) {
	state := f.state
	return &state, nil
}

func (f *fakeScanState) Advance(ctx context.Context, blockNumber int64, blockTimestamp time.Time, scannedAt time.Time) error {
	f.advancedTo = blockNumber
	f.advanceCount++
	return nil
}

func (f *fakeScanState) TouchSuccessfulScan(ctx context.Context, scannedAt time.Time) error {
	f.touched = true
	return nil
}

type fakeReconciler struct {
	seen    []string
	failOn  string
	results map[string]reconcile.MatchResult
}

func (f *fakeReconciler) Reconcile(ctx context.Context, transfer tron.Transfer) (reconcile.MatchResult, error) {
	if transfer.TxHash == f.failOn {
		return "", domerrors.InternalError("settlement failed", context.DeadlineExceeded)
	}
	f.seen = append(f.seen, transfer.TxHash)
	if result, ok := f.results[transfer.TxHash]; ok {
		return result, nil
	}
	return reconcile.ResultConfirmed, nil
}

type fakeRedis struct {
	denyLock bool
	acquired int
	released int
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string, dest interface{}) error { return nil }
func (f *fakeRedis) Del(ctx context.Context, key string) error                   { return nil }
func (f *fakeRedis) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if f.denyLock {
		return false, nil
	}
	f.acquired++
	return true, nil
}
func (f *fakeRedis) ReleaseLock(ctx context.Context, key, owner string) error {
	f.released++
	return nil
}
func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Close() error                   { return nil }

func transferAt(hash string, block int64) tron.Transfer {
	return tron.Transfer{
		TxHash:         hash,
		BlockNumber:    block,
		BlockTimestamp: time.Now().UTC(),
	}
}

func newTestWorker(source *fakeSource, state *fakeScanState, rec *fakeReconciler, redis *fakeRedis) *Worker {
	return NewWorker(source, state, rec, redis, DefaultConfig(), logger.NewNop())
}

func TestRunCycle_AdvancesCursorAfterSuccess(t *testing.T) {
	source := &fakeSource{transfers: []tron.Transfer{
		transferAt("tx1", 101),
		transferAt("tx2", 102),
		transferAt("tx3", 105),
	}}
	state := &fakeScanState{state: entities.TronScanState{ID: 1, LastProcessedBlockNumber: 100}}
	rec := &fakeReconciler{}
	redis := &fakeRedis{}

	worker := newTestWorker(source, state, rec, redis)
	worker.runCycle(context.Background())

	assert.Equal(t, int64(100), source.gotAfter, "scan starts from the stored cursor")
	assert.Equal(t, []string{"tx1", "tx2", "tx3"}, rec.seen)
	assert.Equal(t, int64(105), state.advancedTo)
	assert.Equal(t, 1, redis.acquired)
	assert.Equal(t, 1, redis.released, "lock is released even on success")
}

func TestRunCycle_SkipsWhenLockHeldElsewhere(t *testing.T) {
	source := &fakeSource{transfers: []tron.Transfer{transferAt("tx1", 101)}}
	state := &fakeScanState{}
	rec := &fakeReconciler{}
	redis := &fakeRedis{denyLock: true}

	worker := newTestWorker(source, state, rec, redis)
	worker.runCycle(context.Background())

	assert.Empty(t, rec.seen, "no scan while another replica holds the lock")
	assert.Equal(t, 0, state.advanceCount)
}

func TestRunCycle_CursorHeldOnReconcileFailure(t *testing.T) {
	source := &fakeSource{transfers: []tron.Transfer{
		transferAt("tx1", 101),
		transferAt("tx2", 102),
	}}
	state := &fakeScanState{state: entities.TronScanState{ID: 1, LastProcessedBlockNumber: 100}}
	rec := &fakeReconciler{failOn: "tx2"}
	redis := &fakeRedis{}

	worker := newTestWorker(source, state, rec, redis)
	worker.runCycle(context.Background())

	assert.Equal(t, 0, state.advanceCount,
		"a failed cycle must not advance the cursor; the range rescans")
	assert.Equal(t, 1, redis.released)
}

func TestRunCycle_EmptyScanTouchesSuccessTime(t *testing.T) {
	source := &fakeSource{}
	state := &fakeScanState{state: entities.TronScanState{ID: 1, LastProcessedBlockNumber: 100}}
	rec := &fakeReconciler{}
	redis := &fakeRedis{}

	worker := newTestWorker(source, state, rec, redis)
	worker.runCycle(context.Background())

	require.True(t, state.touched)
	assert.Equal(t, 0, state.advanceCount)
}

func TestRunCycle_TransientIndexerFailure(t *testing.T) {
	source := &fakeSource{err: domerrors.ErrTransientScan}
	state := &fakeScanState{state: entities.TronScanState{ID: 1, LastProcessedBlockNumber: 100}}
	rec := &fakeReconciler{}
	redis := &fakeRedis{}

	worker := newTestWorker(source, state, rec, redis)
	worker.runCycle(context.Background())

	assert.Empty(t, rec.seen)
	assert.Equal(t, 0, state.advanceCount)
}
