package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

func TestMemoryEngineGetPutRoundTrip(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, []byte("k1"), []byte("v1"), DefaultOptions()))

	v, found, err := eng.Get(ctx, []byte("k1"), DefaultOptions())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), v)
}

func TestMemoryEngineGetMissingKeyIsNotFoundNotError(t *testing.T) {
	eng := NewMemoryEngine()
	v, found, err := eng.Get(context.Background(), []byte("absent"), DefaultOptions())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestMemoryEngineDeleteRemovesKey(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, []byte("k1"), []byte("v1"), DefaultOptions()))
	require.NoError(t, eng.Delete(ctx, []byte("k1"), DefaultOptions()))

	_, found, err := eng.Get(ctx, []byte("k1"), DefaultOptions())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryEngineScanReturnsSortedRange(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	for _, k := range []string{"c", "a", "b", "d"} {
		require.NoError(t, eng.Put(ctx, []byte(k), []byte(k+"v"), DefaultOptions()))
	}

	out, err := eng.Scan(ctx, []byte("a"), []byte("d"), 0, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []byte("a"), out[0][0])
	assert.Equal(t, []byte("b"), out[1][0])
	assert.Equal(t, []byte("c"), out[2][0])
}

func TestMemoryEngineScanRespectsLimit(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, eng.Put(ctx, []byte(k), []byte("v"), DefaultOptions()))
	}
	out, err := eng.Scan(ctx, []byte("a"), nil, 2, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemoryEngineBatchPutThenBatchGet(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	pairs := [][2][]byte{{[]byte("a"), []byte("1")}, {[]byte("b"), []byte("2")}}
	require.NoError(t, eng.BatchPut(ctx, pairs, DefaultOptions()))

	values, found, err := eng.BatchGet(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("missing")}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, found)
	assert.Equal(t, []byte("1"), values[0])
	assert.Equal(t, []byte("2"), values[1])
}

func TestMemoryEngineExecutePlanAppliesEveryOperation(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	ops := []StorageOperation{
		{Kind: OpPut, Key: []byte("a"), Value: []byte("1")},
		{Kind: OpPut, Key: []byte("b"), Value: []byte("2")},
	}
	results, err := eng.ExecutePlan(ctx, ops, DefaultOptions())
	require.NoError(t, err)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	_, found, _ := eng.Get(ctx, []byte("a"), DefaultOptions())
	assert.True(t, found)
	_, found, _ = eng.Get(ctx, []byte("b"), DefaultOptions())
	assert.True(t, found)
}

func TestTransactionReadYourWritesBeforeCommit(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, []byte("k"), []byte("base"), DefaultOptions()))

	tx, err := eng.BeginTransaction(ctx, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, []byte("k"), []byte("updated"), DefaultOptions()))

	v, found, err := tx.Get(ctx, []byte("k"), DefaultOptions())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("updated"), v)

	// base engine is unaffected until commit.
	baseVal, _, _ := eng.Get(ctx, []byte("k"), DefaultOptions())
	assert.Equal(t, []byte("base"), baseVal)
}

func TestTransactionCommitAppliesWritesAndDeletes(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, []byte("k1"), []byte("v1"), DefaultOptions()))
	require.NoError(t, eng.Put(ctx, []byte("k2"), []byte("v2"), DefaultOptions()))

	tx, err := eng.BeginTransaction(ctx, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, []byte("k1"), []byte("v1-updated"), DefaultOptions()))
	require.NoError(t, tx.Delete(ctx, []byte("k2"), DefaultOptions()))
	require.NoError(t, tx.Commit(ctx))

	v, found, err := eng.Get(ctx, []byte("k1"), DefaultOptions())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1-updated"), v)

	_, found, err = eng.Get(ctx, []byte("k2"), DefaultOptions())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTransactionRollbackDiscardsBufferedWrites(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, []byte("k"), []byte("base"), DefaultOptions()))

	tx, err := eng.BeginTransaction(ctx, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, []byte("k"), []byte("discarded"), DefaultOptions()))
	require.NoError(t, tx.Rollback(ctx))

	v, found, err := eng.Get(ctx, []byte("k"), DefaultOptions())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("base"), v)
}

func TestTransactionDoubleCommitIsConflict(t *testing.T) {
	eng := NewMemoryEngine()
	tx, err := eng.BeginTransaction(context.Background(), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	err = tx.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, engineerr.IsStorageError(err))
}

func TestMemoryEngineStatsTracksCounts(t *testing.T) {
	eng := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, []byte("a"), []byte("1"), DefaultOptions()))
	_, _, _ = eng.Get(ctx, []byte("a"), DefaultOptions())
	require.NoError(t, eng.Delete(ctx, []byte("a"), DefaultOptions()))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.KeyCount)
	assert.Equal(t, int64(1), stats.TotalPuts)
	assert.Equal(t, int64(1), stats.TotalGets)
	assert.Equal(t, int64(1), stats.TotalDeletes)
}

func TestWithRetryRetriesRetryableStorageError(t *testing.T) {
	attempts := 0
	opts := DefaultOptions()
	opts.RetryCount = 3
	opts.RetryDelay = 0

	err := WithRetry(func() error {
		attempts++
		if attempts < 3 {
			return engineerr.NewStorageError(engineerr.StorageConnection, assertErr)
		}
		return nil
	}, opts, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryDoesNotRetryNonRetryableKind(t *testing.T) {
	attempts := 0
	opts := DefaultOptions()
	opts.RetryCount = 3
	opts.RetryDelay = 0

	err := WithRetry(func() error {
		attempts++
		return engineerr.NewStorageError(engineerr.StorageNotFound, assertErr)
	}, opts, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }
