package queryexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/internal/operator"
	"github.com/database-intelligence/sqlexec/internal/workerpool"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

type rowOperator struct {
	row string
}

func (r *rowOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	return &types.QueryResult{Columns: []string{"v"}, Rows: []types.Row{{r.row}}}, nil
}

func builderByKind() NodeBuilder {
	return func(ctx context.Context, node types.PlanNode) (operator.Operator, error) {
		return &rowOperator{row: node.Kind.String()}, nil
	}
}

func newTestExecutor(t *testing.T) (*Executor, *workerpool.Pool) {
	pool := workerpool.NewPool(workerpool.Config{MinWorkers: 2, MaxWorkers: 4, InitialWorkers: 2, TaskQueueSize: 32}, nil)
	t.Cleanup(pool.Shutdown)
	cfg := DefaultConfig()
	cfg.EnableDynamicAdjustment = true
	return NewExecutor(cfg, pool, nil), pool
}

func TestClassifyNodesScenario6(t *testing.T) {
	nodes := []types.PlanNode{
		{Kind: types.NodeTableScan}, {Kind: types.NodeFilter}, {Kind: types.NodeAggregate}, {Kind: types.NodeLimit},
	}
	safe := ClassifyNodes(nodes)
	assert.Equal(t, []bool{true, true, false, false}, safe)
	assert.Equal(t, StrategyMixed, SelectStrategy(&types.OptimizedPlan{Nodes: nodes}))
}

func TestSelectStrategyEmptyOrSingleIsSequential(t *testing.T) {
	assert.Equal(t, StrategySequential, SelectStrategy(&types.OptimizedPlan{}))
	assert.Equal(t, StrategySequential, SelectStrategy(&types.OptimizedPlan{Nodes: []types.PlanNode{{Kind: types.NodeTableScan}}}))
}

func TestSelectStrategyAllParallelSafeIsParallel(t *testing.T) {
	nodes := []types.PlanNode{{Kind: types.NodeTableScan}, {Kind: types.NodeFilter}, {Kind: types.NodeProject}}
	assert.Equal(t, StrategyParallel, SelectStrategy(&types.OptimizedPlan{Nodes: nodes}))
}

func TestExecutePlanMixedOrdersParallelBeforeSerial(t *testing.T) {
	exec, _ := newTestExecutor(t)
	nodes := []types.PlanNode{
		{Kind: types.NodeTableScan}, {Kind: types.NodeFilter}, {Kind: types.NodeAggregate}, {Kind: types.NodeLimit},
	}
	out, err := exec.ExecutePlan(context.Background(), &types.OptimizedPlan{Nodes: nodes}, builderByKind())
	require.NoError(t, err)
	require.Len(t, out.Rows, 4)
	assert.Equal(t, "TableScan", out.Rows[0][0])
	assert.Equal(t, "Filter", out.Rows[1][0])
	assert.Equal(t, "Aggregate", out.Rows[2][0])
	assert.Equal(t, "Limit", out.Rows[3][0])
}

func TestSubmitRequestRejectsWhenQueueFull(t *testing.T) {
	exec, _ := newTestExecutor(t)
	exec.cfg.RequestQueueSize = 1
	require.NoError(t, exec.SubmitRequest())
	assert.ErrorIs(t, exec.SubmitRequest(), engineerr.ErrQueueFull)
	exec.RequestCompleted()
	assert.NoError(t, exec.SubmitRequest())
}

func TestSubmitRequestRejectsOnResourceLimits(t *testing.T) {
	exec, _ := newTestExecutor(t)
	exec.cfg.EnableResourceLimits = true
	exec.cfg.MemoryUsageThreshold = 0.8
	exec.SetResourceReading(ResourceReading{MemoryUsage: 0.95})
	assert.ErrorIs(t, exec.SubmitRequest(), engineerr.ErrMemoryExceeded)
}

func TestAdjustParallelismValidatesBounds(t *testing.T) {
	exec, _ := newTestExecutor(t)
	assert.Error(t, exec.AdjustParallelism(0))
	assert.Error(t, exec.AdjustParallelism(exec.cfg.MaxParallelism+1))
	assert.NoError(t, exec.AdjustParallelism(2))
	assert.Equal(t, 2, exec.Stats().CurrentParallelism)
}
