package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/pkg/request"
)

func testConfig() Config {
	return Config{MinWorkers: 2, MaxWorkers: 4, InitialWorkers: 2, TaskQueueSize: 32, EnableTaskPriority: true}
}

func TestSubmitWithResult(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Shutdown()

	v, err := p.SubmitWithResult(func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestExecuteParallelPreservesOrder(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Shutdown()

	tasks := make([]func() (any, error), 5)
	for i := 0; i < 5; i++ {
		i := i
		tasks[i] = func() (any, error) { return i, nil }
	}
	results, err := p.ExecuteParallel(tasks)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, i, r)
	}

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.ParallelExecutions)
}

func TestTasksSubmittedGreaterOrEqualCompleted(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Shutdown()

	var done atomic.Int32
	for i := 0; i < 10; i++ {
		p.Submit(func() { done.Add(1) })
	}
	require.Eventually(t, func() bool { return done.Load() == 10 }, time.Second, 5*time.Millisecond)

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.TasksSubmitted, stats.TasksCompleted)
}

func TestSubmitPriorityCompletes(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Shutdown()

	info := TaskInfo{Priority: request.PriorityHigh, Type: request.TypeQuery}
	v, err := p.SubmitPriority(info, func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestAdjustParallelismRejectsOutOfBounds(t *testing.T) {
	p := NewPool(testConfig(), nil)
	defer p.Shutdown()

	assert.Error(t, p.AdjustParallelism(0))
	assert.Error(t, p.AdjustParallelism(100))
	assert.NoError(t, p.AdjustParallelism(3))
}
