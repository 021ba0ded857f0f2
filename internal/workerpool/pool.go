// Package workerpool implements the bounded OS-thread pool of spec §4.5:
// two intake channels (priority drained before normal), dynamic parallelism
// between configured bounds, and per-worker/per-pool statistics. The
// goroutine-plus-shutdown-channel-plus-WaitGroup shape follows the
// teacher's internal/database.PoolManager background workers.
package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/pkg/request"
)

// TaskInfo carries scheduling metadata for a priority-intake task.
type TaskInfo struct {
	ID                string
	Priority          request.Priority
	Type              request.Type
	SubmittedAt       time.Time
	EstimatedDuration time.Duration
}

type priorityTask struct {
	info TaskInfo
	fn   func()
}

// WorkerState is a worker's lifecycle state.
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerBusy
	WorkerShuttingDown
)

// WorkerInfo is an external, point-in-time view of one worker.
type WorkerInfo struct {
	ID              int
	State           WorkerState
	CurrentTaskID   string
	TasksCompleted  int64
	TotalWorkTime   time.Duration
	LastActivity    time.Time
}

type workerRecord struct {
	mu             sync.Mutex
	id             int
	state          WorkerState
	currentTaskID  string
	tasksCompleted int64
	totalWorkTime  time.Duration
	lastActivity   time.Time
}

func (w *workerRecord) snapshot() WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerInfo{
		ID:             w.id,
		State:          w.state,
		CurrentTaskID:  w.currentTaskID,
		TasksCompleted: w.tasksCompleted,
		TotalWorkTime:  w.totalWorkTime,
		LastActivity:   w.lastActivity,
	}
}

// Config configures pool sizing and queue capacity.
type Config struct {
	MinWorkers         int `mapstructure:"min_worker_threads"`
	MaxWorkers         int `mapstructure:"max_worker_threads"`
	InitialWorkers     int `mapstructure:"initial_worker_threads"`
	TaskQueueSize      int `mapstructure:"task_queue_size"`
	EnableTaskPriority bool `mapstructure:"enable_task_priority"`
}

// DefaultConfig returns reasonable bounds for a small deployment.
func DefaultConfig() Config {
	return Config{
		MinWorkers:         2,
		MaxWorkers:         16,
		InitialWorkers:     4,
		TaskQueueSize:      256,
		EnableTaskPriority: true,
	}
}

// Stats is a point-in-time snapshot of pool-wide counters.
type Stats struct {
	TasksSubmitted       int64
	TasksCompleted       int64
	ParallelExecutions   int64
	TotalExecutionTime   time.Duration
	AverageExecutionMs   float64
	CurrentParallelism   int
	ActiveWorkers        int
	IdleWorkers          int
}

// Pool is a fixed-minimum, expandable-to-maximum worker pool with a
// priority and a normal task intake.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	normalCh   chan func()
	priorityCh chan priorityTask

	mu          sync.Mutex
	workers     []*workerRecord
	parallelism int
	shutdown    atomic.Bool

	tasksSubmitted     atomic.Int64
	tasksCompleted     atomic.Int64
	parallelExecutions atomic.Int64
	totalExecNanos     atomic.Int64

	wg sync.WaitGroup
}

// NewPool constructs a Pool and starts its initial workers.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.InitialWorkers < cfg.MinWorkers {
		cfg.InitialWorkers = cfg.MinWorkers
	}
	if cfg.InitialWorkers > cfg.MaxWorkers {
		cfg.InitialWorkers = cfg.MaxWorkers
	}
	if cfg.TaskQueueSize <= 0 {
		cfg.TaskQueueSize = 256
	}

	p := &Pool{
		cfg:        cfg,
		logger:     logger,
		normalCh:   make(chan func(), cfg.TaskQueueSize),
		priorityCh: make(chan priorityTask, cfg.TaskQueueSize),
	}
	p.mu.Lock()
	for i := 0; i < cfg.InitialWorkers; i++ {
		p.startWorkerLocked()
	}
	p.parallelism = cfg.InitialWorkers
	p.mu.Unlock()
	return p
}

func (p *Pool) startWorkerLocked() {
	w := &workerRecord{id: len(p.workers), state: WorkerIdle, lastActivity: time.Now()}
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	go p.workerLoop(w)
}

// workerLoop implements the per-worker algorithm of spec §4.5: priority
// tasks are drained with a non-blocking try-receive before the worker
// blocks on the normal channel.
func (p *Pool) workerLoop(w *workerRecord) {
	defer p.wg.Done()
	for {
		if p.shutdown.Load() {
			w.mu.Lock()
			w.state = WorkerShuttingDown
			w.mu.Unlock()
			return
		}

		select {
		case pt := <-p.priorityCh:
			p.runTask(w, pt.info.ID, pt.fn)
			continue
		default:
		}

		select {
		case pt := <-p.priorityCh:
			p.runTask(w, pt.info.ID, pt.fn)
		case fn, ok := <-p.normalCh:
			if !ok {
				return
			}
			p.runTask(w, uuid.NewString(), fn)
		case <-time.After(10 * time.Millisecond):
			// Idle wait: lets the shutdown flag be observed promptly even
			// when no work arrives.
		}
	}
}

func (p *Pool) runTask(w *workerRecord, taskID string, fn func()) {
	w.mu.Lock()
	w.state = WorkerBusy
	w.currentTaskID = taskID
	w.mu.Unlock()

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("worker task panicked", zap.Any("recover", r), zap.String("task_id", taskID))
			}
		}()
		fn()
	}()
	elapsed := time.Since(start)

	w.mu.Lock()
	w.state = WorkerIdle
	w.currentTaskID = ""
	w.tasksCompleted++
	w.totalWorkTime += elapsed
	w.lastActivity = time.Now()
	w.mu.Unlock()

	p.tasksCompleted.Add(1)
	p.totalExecNanos.Add(elapsed.Nanoseconds())
}

// Submit enqueues fn on the normal channel.
func (p *Pool) Submit(fn func()) {
	p.tasksSubmitted.Add(1)
	p.normalCh <- fn
}

// SubmitWithResult enqueues fn and blocks for its return value.
func (p *Pool) SubmitWithResult(fn func() (any, error)) (any, error) {
	type reply struct {
		val any
		err error
	}
	replyCh := make(chan reply, 1)
	p.Submit(func() {
		v, err := fn()
		replyCh <- reply{val: v, err: err}
	})
	r := <-replyCh
	return r.val, r.err
}

// SubmitPriority enqueues fn on the priority channel and blocks for its
// return value.
func (p *Pool) SubmitPriority(info TaskInfo, fn func() (any, error)) (any, error) {
	type reply struct {
		val any
		err error
	}
	replyCh := make(chan reply, 1)
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	info.SubmittedAt = time.Now()
	p.tasksSubmitted.Add(1)
	p.priorityCh <- priorityTask{info: info, fn: func() {
		v, err := fn()
		replyCh <- reply{val: v, err: err}
	}}
	r := <-replyCh
	return r.val, r.err
}

// ExecuteParallel dispatches every task and gathers results in submission
// order, bumping parallel_executions once for the whole batch.
func (p *Pool) ExecuteParallel(tasks []func() (any, error)) ([]any, error) {
	p.parallelExecutions.Add(1)
	results := make([]any, len(tasks))
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, t := range tasks {
		i, t := i, t
		p.Submit(func() {
			defer wg.Done()
			v, err := t()
			results[i] = v
			errs[i] = err
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// AdjustParallelism sets the parallelism target within [min_workers,
// max_workers], starting new workers until at least n are live. It does not
// stop workers when n is below the live count.
func (p *Pool) AdjustParallelism(n int) error {
	if n < p.cfg.MinWorkers || n > p.cfg.MaxWorkers {
		return engineerr.ErrInvalidParallelism
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.workers) < n {
		p.startWorkerLocked()
	}
	// Shrinking is not forceful: excess workers exit naturally once the
	// pool is shut down. We only track the target so Stats reports intent.
	p.parallelism = n
	return nil
}

// Stats returns a snapshot of pool-wide counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := append([]*workerRecord(nil), p.workers...)
	parallelism := p.parallelism
	p.mu.Unlock()

	var active, idle int
	for _, w := range workers {
		info := w.snapshot()
		if info.State == WorkerBusy {
			active++
		} else if info.State == WorkerIdle {
			idle++
		}
	}

	completed := p.tasksCompleted.Load()
	var avg float64
	if completed > 0 {
		avg = float64(p.totalExecNanos.Load()) / float64(completed) / float64(time.Millisecond)
	}

	return Stats{
		TasksSubmitted:     p.tasksSubmitted.Load(),
		TasksCompleted:     completed,
		ParallelExecutions: p.parallelExecutions.Load(),
		TotalExecutionTime: time.Duration(p.totalExecNanos.Load()),
		AverageExecutionMs: avg,
		CurrentParallelism: parallelism,
		ActiveWorkers:      active,
		IdleWorkers:        idle,
	}
}

// Shutdown flips the shutdown flag; in-flight tasks complete, workers then
// exit after their current iteration.
func (p *Pool) Shutdown() {
	p.shutdown.Store(true)
	p.wg.Wait()
}
