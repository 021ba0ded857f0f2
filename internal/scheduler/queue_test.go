package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/pkg/request"
)

func TestFixedQueuePopsHighestPriorityFirst(t *testing.T) {
	q := NewFixedQueue()
	q.Push(&request.Request{ID: "low", Priority: request.PriorityBackground})
	q.Push(&request.Request{ID: "sys", Priority: request.PrioritySystem})
	q.Push(&request.Request{ID: "high", Priority: request.PriorityHigh})

	r1, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "sys", r1.ID)

	r2, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "high", r2.ID)

	r3, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "low", r3.ID)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestFixedQueueWithinLevelIsFIFO(t *testing.T) {
	q := NewFixedQueue()
	q.Push(&request.Request{ID: "a", Priority: request.PriorityNormal})
	q.Push(&request.Request{ID: "b", Priority: request.PriorityNormal})

	r1, _ := q.Pop()
	r2, _ := q.Pop()
	assert.Equal(t, "a", r1.ID)
	assert.Equal(t, "b", r2.ID)
}

func TestAdaptiveQueueAgingPromotesOlderRequest(t *testing.T) {
	q := NewAdaptiveQueue()
	now := time.Now()

	r1 := &request.Request{ID: "r1", Priority: request.PriorityNormal, Type: request.TypeQuery, CreatedAt: now.Add(-12 * time.Second)}
	r2 := &request.Request{ID: "r2", Priority: request.PriorityNormal, Type: request.TypeQuery, CreatedAt: now}
	q.Push(r1)
	q.Push(r2)

	popped, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "r1", popped.ID, "the older request's aging discount must win it priority")
}

func TestAdaptiveQueueSystemNeverOutagedByBackground(t *testing.T) {
	q := NewAdaptiveQueue()
	now := time.Now()

	stale := &request.Request{ID: "stale-background", Priority: request.PriorityBackground, Type: request.TypeBatch, CreatedAt: now.Add(-10 * time.Minute)}
	fresh := &request.Request{ID: "fresh-system", Priority: request.PrioritySystem, Type: request.TypeSystem, CreatedAt: now}
	q.Push(stale)
	q.Push(fresh)

	popped, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "fresh-system", popped.ID, "System priority must never be starved out by an aged lower-priority request")
}

func TestAdaptiveQueueStatsTracksWaitTimes(t *testing.T) {
	q := NewAdaptiveQueue()
	q.Push(&request.Request{ID: "r1", Priority: request.PriorityNormal, CreatedAt: time.Now().Add(-50 * time.Millisecond)})

	_, ok := q.Pop()
	require.True(t, ok)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Greater(t, stats.AvgWaitMs, 0.0)
}
