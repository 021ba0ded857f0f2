// Command sqlengine wires the connection manager, cache manager, memory
// manager, worker pool, priority scheduler, execution-model selector, and
// storage engine into a single in-process demonstration run. It speaks no
// wire protocol and accepts no client connections — it exists to exercise
// the core end to end, the way the teacher's cmd/collector exercises its
// pipeline graph without embedding any business logic of its own.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/cache"
	"github.com/database-intelligence/sqlexec/internal/conn"
	"github.com/database-intelligence/sqlexec/internal/config"
	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/internal/execmodel"
	"github.com/database-intelligence/sqlexec/internal/memory"
	"github.com/database-intelligence/sqlexec/internal/operator"
	"github.com/database-intelligence/sqlexec/internal/pageio"
	"github.com/database-intelligence/sqlexec/internal/queryexec"
	"github.com/database-intelligence/sqlexec/internal/scheduler"
	"github.com/database-intelligence/sqlexec/internal/storage"
	"github.com/database-intelligence/sqlexec/internal/workerpool"
	"github.com/database-intelligence/sqlexec/pkg/request"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	connMgr := conn.NewManager(conn.DefaultConfig(), logger.Named("conn"))
	defer connMgr.Shutdown()
	connMgr.SetAcquireLimiter(conn.NewAcquireLimiter(conn.AcquireLimiterConfig{
		DefaultRPS: 50, DefaultBurst: 10, EnableAdaptive: true, MinRPS: 5, MaxRPS: 200,
	}, logger.Named("conn.ratelimit")))

	cacheMgr := cache.NewManager(cache.Config{
		PlanCacheSize:   cfg.Cache.QueryPlanCacheSize,
		ResultCacheSize: cfg.Cache.QueryPlanCacheSize,
	}, logger.Named("cache"))

	memMgr := memory.NewManager(memory.Config{
		WorkCapBytes:   int64(cfg.Memory.WorkMemoryMB) * 1024 * 1024,
		SharedCapBytes: int64(cfg.Memory.SharedMemoryMB) * 1024 * 1024,
	}, logger.Named("memory"))

	pool := workerpool.NewPool(workerpool.Config{
		MinWorkers:     cfg.WorkerPool.MinWorkerThreads,
		MaxWorkers:     cfg.WorkerPool.MaxWorkerThreads,
		InitialWorkers: cfg.WorkerPool.InitialWorkerThreads,
		TaskQueueSize:  cfg.WorkerPool.TaskQueueSize,
	}, logger.Named("workerpool"))
	defer pool.Shutdown()

	queue := scheduler.NewAdaptiveQueue()

	engine := storage.NewMemoryEngine()

	execCfg := queryexec.DefaultConfig()
	execCfg.MaxParallelism = cfg.WorkerPool.MaxParallelism
	execCfg.EnableDynamicAdjustment = cfg.WorkerPool.EnableDynamicAdjustment
	execCfg.EnableResourceLimits = true
	execCfg.MemoryUsageThreshold = cfg.WorkerPool.MemoryUsageThreshold
	executor := queryexec.NewExecutor(execCfg, pool, logger.Named("queryexec"))

	ctx := context.Background()
	seedTable(ctx, engine, logger)

	connID, err := connMgr.Acquire("demo", "analytics")
	if err != nil {
		logger.Fatal("acquire connection", zap.Error(err))
	}
	defer connMgr.Release(connID)

	req := request.New(request.PriorityNormal, request.TypeQuery, "session-1", "analytics",
		"SELECT region, SUM(amount) FROM orders WHERE region = 'west' GROUP BY region", 10*time.Second, 100)
	queue.Push(req)

	if err := executor.SubmitRequest(); err != nil {
		logger.Fatal("submit request", zap.Error(err))
	}
	defer executor.RequestCompleted()

	plan := demoPlan()
	cacheKey := req.SQL
	if cached, ok := cacheMgr.GetPlan(cacheKey); ok {
		plan = cached
	} else {
		cacheMgr.CachePlan(cacheKey, plan)
	}

	model := execmodel.SelectForPlan(&plan, 500)
	logger.Info("selected execution model", zap.String("model", model.String()))

	build := demoNodeBuilder(memMgr)

	var result *types.QueryResult
	if cached, ok := cacheMgr.GetResult(cacheKey); ok {
		result = cached
	} else {
		adapter := execmodel.NewAdapter(model)
		result, err = adapter.Execute(ctx, &plan, build)
		if err != nil {
			logger.Fatal("adapter execute", zap.Error(err))
		}
		cacheMgr.CacheResult(cacheKey, result)
	}

	fmt.Printf("columns: %v\n", result.Columns)
	for _, row := range result.Rows {
		fmt.Printf("row: %v\n", row)
	}

	planResult, err := executor.ExecutePlan(ctx, &plan, queryexec.NodeBuilder(build))
	if err != nil {
		logger.Fatal("executor execute plan", zap.Error(err))
	}
	fmt.Printf("parallel executor rows: %d\n", len(planResult.Rows))

	if _, ok := queue.Pop(); !ok {
		logger.Warn("scheduler queue unexpectedly empty")
	}

	logger.Info("run complete",
		zap.Any("cache_stats", cacheMgr.Stats()),
		zap.Any("conn_stats", connMgr.Stats()),
		zap.Any("executor_stats", executor.Stats()),
	)
}

// seedTable writes a handful of rows into the storage engine. The page
// source the demo scan reads from is built separately in demoNodeBuilder;
// storage and page-scan are kept
// deliberately separate here since spec §4.2's buffer abstraction is an
// independent collaborator from §4.11's KV engine.
func seedTable(ctx context.Context, engine storage.Engine, logger *zap.Logger) {
	rows := [][2][]byte{
		{[]byte("orders/1"), []byte("west,100")},
		{[]byte("orders/2"), []byte("east,50")},
		{[]byte("orders/3"), []byte("west,75")},
	}
	if err := engine.BatchPut(ctx, rows, storage.DefaultOptions()); err != nil {
		logger.Fatal("seed storage", zap.Error(err))
	}
}

func demoPlan() types.OptimizedPlan {
	return types.OptimizedPlan{
		Nodes: []types.PlanNode{
			{Kind: types.NodeTableScan, Table: "orders", Columns: []string{"region", "amount"}},
			{Kind: types.NodeFilter, Predicate: "region = 'west'"},
			{Kind: types.NodeAggregate, GroupBy: []string{"region"}, Aggregates: []string{"sum(amount)"}},
		},
		EstimatedCost: 12.5,
		EstimatedRows: 3,
	}
}

// demoNodeBuilder maps each plan node kind to a standalone physical
// operator reading from a fixed in-memory page source. Nodes execute
// independently and are merged by the adapters/executor, matching §4.10's
// flat plan representation rather than a nested operator tree.
func demoNodeBuilder(memMgr *memory.Manager) execmodel.NodeBuilder {
	src := pageio.NewMemorySource([][]byte{
		padRow("west", "100"), padRow("east", "50"), padRow("west", "75"),
	})
	stride := pageio.RowStride{NumCols: 2, Width: 8}

	return func(ctx context.Context, node types.PlanNode) (operator.Operator, error) {
		if _, err := memMgr.AllocateWork(4096); err != nil {
			return nil, err
		}
		switch node.Kind {
		case types.NodeTableScan:
			return &operator.Scan{
				Table:      node.Table,
				Columns:    node.Columns,
				Src:        src,
				Stride:     stride,
				AllColumns: []string{"region", "amount"},
			}, nil
		case types.NodeFilter:
			return &operator.Filter{
				Input: &operator.Scan{Src: src, Stride: stride, AllColumns: []string{"region", "amount"}},
				Pred: func(cols []string, row types.Row) bool {
					return len(row) > 0 && row[0] == "west"
				},
			}, nil
		case types.NodeAggregate:
			return &operator.Aggregate{
				Input:      &operator.Scan{Src: src, Stride: stride, AllColumns: []string{"region", "amount"}},
				GroupBy:    node.GroupBy,
				Aggregates: node.Aggregates,
			}, nil
		default:
			return nil, &engineerr.InvalidPlanError{Model: "demo", Node: node.Kind.String()}
		}
	}
}

func padRow(region, amount string) []byte {
	buf := make([]byte, 16)
	copy(buf[0:8], region)
	copy(buf[8:16], amount)
	return buf
}
