// Package queryexec implements the Parallel Query Executor of spec §4.10:
// strategy selection (Sequential/Parallel/Mixed), a semaphore-bounded
// parallel phase dispatched onto the worker pool, and the admission
// contract gating submit_request. The semaphore comes from
// golang.org/x/sync/semaphore, the same acquire/release discipline the
// teacher's rate limiters use for bounding concurrent work.
package queryexec

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/internal/operator"
	"github.com/database-intelligence/sqlexec/internal/workerpool"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// NodeBuilder turns one plan node into an executable physical operator.
type NodeBuilder func(ctx context.Context, node types.PlanNode) (operator.Operator, error)

// Config configures parallelism bounds, admission control, and per-query
// deadlines.
type Config struct {
	MaxParallelism          int           `mapstructure:"max_parallelism"`
	DefaultParallelism      int           `mapstructure:"default_parallelism"`
	QueryTimeout            time.Duration `mapstructure:"query_timeout_s"`
	RequestQueueSize        int           `mapstructure:"request_queue_size"`
	EnableDynamicAdjustment bool          `mapstructure:"enable_dynamic_adjustment"`
	EnableResourceLimits    bool          `mapstructure:"enable_resource_limits"`
	CpuUsageThreshold       float64       `mapstructure:"cpu_usage_threshold"`
	MemoryUsageThreshold    float64       `mapstructure:"memory_usage_threshold"`
}

// DefaultConfig returns conservative defaults for a small deployment.
func DefaultConfig() Config {
	return Config{
		MaxParallelism:       8,
		DefaultParallelism:   4,
		QueryTimeout:         30 * time.Second,
		RequestQueueSize:     1000,
		CpuUsageThreshold:    0.9,
		MemoryUsageThreshold: 0.9,
	}
}

// ResourceReading is the most recent monitor sample consulted by the
// admission contract.
type ResourceReading struct {
	CpuUsage    float64
	MemoryUsage float64
}

// Stats is a point-in-time snapshot of executor-wide counters.
type Stats struct {
	TotalQueries            int64
	ParallelQueries         int64
	TotalExecutionTime      time.Duration
	AverageExecutionMs      float64
	CurrentParallelism      int
	MaxParallelismObserved  int
	QueriesTimedOut         int64
	QueriesFailed           int64
}

// Executor wraps a worker pool and a permit semaphore to run OptimizedPlans
// under one of three strategies.
type Executor struct {
	cfg    Config
	pool   *workerpool.Pool
	sem    *semaphore.Weighted
	logger *zap.Logger

	parallelism     atomic.Int64
	maxParallelism  atomic.Int64
	queueDepth      atomic.Int64
	reading         atomic.Value // ResourceReading

	totalQueries       atomic.Int64
	parallelQueries    atomic.Int64
	totalExecNanos     atomic.Int64
	queriesTimedOut    atomic.Int64
	queriesFailed      atomic.Int64
}

// NewExecutor constructs an Executor bound to pool.
func NewExecutor(cfg Config, pool *workerpool.Pool, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxParallelism <= 0 {
		cfg.MaxParallelism = 8
	}
	if cfg.DefaultParallelism <= 0 || cfg.DefaultParallelism > cfg.MaxParallelism {
		cfg.DefaultParallelism = cfg.MaxParallelism
	}
	e := &Executor{cfg: cfg, pool: pool, sem: semaphore.NewWeighted(int64(cfg.MaxParallelism)), logger: logger}
	e.parallelism.Store(int64(cfg.DefaultParallelism))
	e.maxParallelism.Store(int64(cfg.DefaultParallelism))
	e.reading.Store(ResourceReading{})
	return e
}

// SetResourceReading records the latest monitor sample consulted by
// SubmitRequest's admission contract.
func (e *Executor) SetResourceReading(r ResourceReading) {
	e.reading.Store(r)
}

// SubmitRequest implements the admission contract: reject with QueueFull if
// the request queue is at capacity, MemoryExceeded/CpuExceeded if resource
// limits are enabled and the latest reading exceeds its threshold,
// otherwise admit. Callers must call RequestCompleted once the admitted
// request finishes, to release its queue slot.
func (e *Executor) SubmitRequest() error {
	if e.cfg.RequestQueueSize > 0 && e.queueDepth.Load() >= int64(e.cfg.RequestQueueSize) {
		return engineerr.ErrQueueFull
	}
	if e.cfg.EnableResourceLimits {
		reading, _ := e.reading.Load().(ResourceReading)
		if e.cfg.MemoryUsageThreshold > 0 && reading.MemoryUsage > e.cfg.MemoryUsageThreshold {
			return engineerr.ErrMemoryExceeded
		}
		if e.cfg.CpuUsageThreshold > 0 && reading.CpuUsage > e.cfg.CpuUsageThreshold {
			return engineerr.ErrCpuExceeded
		}
	}
	e.queueDepth.Add(1)
	return nil
}

// RequestCompleted releases the queue slot SubmitRequest reserved.
func (e *Executor) RequestCompleted() {
	e.queueDepth.Add(-1)
}

// AdjustParallelism validates n against max_parallelism and atomically
// updates the current target. In-flight phases are unaffected.
func (e *Executor) AdjustParallelism(n int) error {
	if !e.cfg.EnableDynamicAdjustment {
		return engineerr.ErrInvalidParallelism
	}
	if n < 1 || n > e.cfg.MaxParallelism {
		return engineerr.ErrInvalidParallelism
	}
	e.parallelism.Store(int64(n))
	for {
		cur := e.maxParallelism.Load()
		if int64(n) <= cur || e.maxParallelism.CompareAndSwap(cur, int64(n)) {
			break
		}
	}
	return nil
}

// Stats returns a snapshot of executor-wide counters.
func (e *Executor) Stats() Stats {
	total := e.totalQueries.Load()
	var avg float64
	if total > 0 {
		avg = float64(e.totalExecNanos.Load()) / float64(total) / float64(time.Millisecond)
	}
	return Stats{
		TotalQueries:           total,
		ParallelQueries:        e.parallelQueries.Load(),
		TotalExecutionTime:     time.Duration(e.totalExecNanos.Load()),
		AverageExecutionMs:     avg,
		CurrentParallelism:     int(e.parallelism.Load()),
		MaxParallelismObserved: int(e.maxParallelism.Load()),
		QueriesTimedOut:        e.queriesTimedOut.Load(),
		QueriesFailed:          e.queriesFailed.Load(),
	}
}

// ExecutePlan runs plan under the strategy SelectStrategy chooses, enforcing
// query_timeout_s if the caller's context carries no earlier deadline.
func (e *Executor) ExecutePlan(ctx context.Context, plan *types.OptimizedPlan, build NodeBuilder) (result *types.QueryResult, err error) {
	if e.cfg.QueryTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
			defer cancel()
		}
	}

	start := time.Now()
	e.totalQueries.Add(1)
	defer func() {
		e.totalExecNanos.Add(time.Since(start).Nanoseconds())
		if err != nil {
			if err == context.DeadlineExceeded {
				e.queriesTimedOut.Add(1)
			} else {
				e.queriesFailed.Add(1)
			}
		}
	}()

	if plan.Empty() {
		return &types.QueryResult{}, nil
	}

	strategy := SelectStrategy(plan)
	if strategy != StrategySequential {
		e.parallelQueries.Add(1)
	}

	switch strategy {
	case StrategySequential:
		return e.runSequential(ctx, plan.Nodes, build)
	case StrategyParallel:
		return e.runParallel(ctx, plan.Nodes, build)
	default:
		return e.runMixed(ctx, plan.Nodes, build)
	}
}

func (e *Executor) runSequential(ctx context.Context, nodes []types.PlanNode, build NodeBuilder) (*types.QueryResult, error) {
	results := make([]*types.QueryResult, 0, len(nodes))
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op, err := build(ctx, n)
		if err != nil {
			return nil, err
		}
		r, err := op.Execute(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return types.Merge(results...), nil
}

// runParallel acquires a permit, partitions nodes into contiguous groups
// (one per unit of current parallelism), and submits each group as one
// worker-pool task.
func (e *Executor) runParallel(ctx context.Context, nodes []types.PlanNode, build NodeBuilder) (*types.QueryResult, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	parallelism := int(e.parallelism.Load())
	if parallelism <= 0 || parallelism > len(nodes) {
		parallelism = len(nodes)
	}
	groups := partitionContiguous(len(nodes), parallelism)
	return e.executeGroupsConcurrently(ctx, nodes, groups, build)
}

// runMixed walks the node-classification groups in plan order, running
// serial-mandatory runs sequentially and parallel-safe runs as one
// worker-pool task each, merging in plan order.
func (e *Executor) runMixed(ctx context.Context, nodes []types.PlanNode, build NodeBuilder) (*types.QueryResult, error) {
	safe := ClassifyNodes(nodes)
	groups := groupNodes(safe)

	results := make([]*types.QueryResult, len(groups))
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !g.parallelSafe {
			r, err := e.runSequential(ctx, nodes[g.start:g.end], build)
			if err != nil {
				return nil, err
			}
			results[i] = r
			continue
		}
		r, err := e.submitGroup(ctx, nodes[g.start:g.end], build)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return types.Merge(results...), nil
}

func (e *Executor) executeGroupsConcurrently(ctx context.Context, nodes []types.PlanNode, groups [][2]int, build NodeBuilder) (*types.QueryResult, error) {
	results := make([]*types.QueryResult, len(groups))
	errs := make([]error, len(groups))
	var wg sync.WaitGroup
	wg.Add(len(groups))
	for i, g := range groups {
		i, g := i, g
		e.pool.Submit(func() {
			defer wg.Done()
			r, err := e.runSequential(ctx, nodes[g[0]:g[1]], build)
			results[i] = r
			errs[i] = err
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			// The whole phase fails with the first error; partial results
			// are discarded per spec §7.
			return nil, err
		}
	}
	return types.Merge(results...), nil
}

func (e *Executor) submitGroup(ctx context.Context, nodes []types.PlanNode, build NodeBuilder) (*types.QueryResult, error) {
	v, err := e.pool.SubmitWithResult(func() (any, error) {
		return e.runSequential(ctx, nodes, build)
	})
	if err != nil {
		return nil, err
	}
	r, _ := v.(*types.QueryResult)
	return r, nil
}

// partitionContiguous splits [0, n) into at most k contiguous, roughly
// equal index ranges.
func partitionContiguous(n, k int) [][2]int {
	if k <= 0 {
		k = 1
	}
	if k > n {
		k = n
	}
	base := n / k
	rem := n % k
	groups := make([][2]int, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < rem {
			size++
		}
		groups = append(groups, [2]int{start, start + size})
		start += size
	}
	return groups
}
