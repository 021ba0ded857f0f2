package execmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/internal/operator"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

type fixedOperator struct {
	result *types.QueryResult
}

func (f *fixedOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	return f.result, nil
}

func builderFor(row string) NodeBuilder {
	return func(ctx context.Context, node types.PlanNode) (operator.Operator, error) {
		return &fixedOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: []types.Row{{row}}}}, nil
	}
}

func TestSelectSimpleNoParallelismIsPipeline(t *testing.T) {
	plan := &types.OptimizedPlan{Nodes: []types.PlanNode{{Kind: types.NodeTableScan}}}
	f := ExtractFeatures(plan, 100)
	assert.Equal(t, ModelPipeline, Select(f))
}

func TestSelectComplexIsVolcano(t *testing.T) {
	plan := &types.OptimizedPlan{Nodes: []types.PlanNode{
		{Kind: types.NodeTableScan}, {Kind: types.NodeJoin}, {Kind: types.NodeAggregate},
	}}
	f := ExtractFeatures(plan, 100)
	assert.Equal(t, ComplexityComplex, f.Complexity)
	assert.Equal(t, ModelVolcano, Select(f))
}

func TestSelectHighParallelismIsMPP(t *testing.T) {
	plan := &types.OptimizedPlan{Nodes: []types.PlanNode{
		{Kind: types.NodeTableScan}, {Kind: types.NodeFilter}, {Kind: types.NodeProject},
		{Kind: types.NodeSort}, {Kind: types.NodeAggregate}, {Kind: types.NodeLimit},
	}}
	f := ExtractFeatures(plan, 100)
	assert.Equal(t, ParallelismHigh, f.ParallelismRequirement)
	assert.Equal(t, ModelMPP, Select(f))
}

func TestVolcanoAdapterMergesAllNodes(t *testing.T) {
	plan := &types.OptimizedPlan{Nodes: []types.PlanNode{{Kind: types.NodeTableScan}, {Kind: types.NodeFilter}}}
	a := &VolcanoAdapter{}
	out, err := a.Execute(context.Background(), plan, builderFor("x"))
	require.NoError(t, err)
	assert.Len(t, out.Rows, 2)
}

func TestVolcanoAdapterSkipsInvalidPlanNode(t *testing.T) {
	plan := &types.OptimizedPlan{Nodes: []types.PlanNode{{Kind: types.NodeTableScan}, {Kind: types.NodeJoin}}}
	calls := 0
	build := func(ctx context.Context, node types.PlanNode) (operator.Operator, error) {
		calls++
		if node.Kind == types.NodeJoin {
			return nil, &engineerr.InvalidPlanError{Model: "Volcano", Node: "Join"}
		}
		return &fixedOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: []types.Row{{"ok"}}}}, nil
	}
	a := &VolcanoAdapter{}
	out, err := a.Execute(context.Background(), plan, build)
	require.NoError(t, err)
	assert.Len(t, out.Rows, 1, "the unsupported node's result must be skipped, not included")
	assert.Equal(t, 2, calls)
}

func TestMPPAdapterMergesConcurrentTasks(t *testing.T) {
	plan := &types.OptimizedPlan{Nodes: []types.PlanNode{{Kind: types.NodeTableScan}, {Kind: types.NodeTableScan}, {Kind: types.NodeTableScan}}}
	a := &MPPAdapter{}
	out, err := a.Execute(context.Background(), plan, builderFor("x"))
	require.NoError(t, err)
	assert.Len(t, out.Rows, 3)
}

func TestEmptyPlanProducesEmptyResult(t *testing.T) {
	plan := &types.OptimizedPlan{}
	for _, a := range []Adapter{&VolcanoAdapter{}, &PipelineAdapter{}, &VectorizedAdapter{}, &MPPAdapter{}} {
		out, err := a.Execute(context.Background(), plan, builderFor("x"))
		require.NoError(t, err)
		assert.Empty(t, out.Rows)
	}
}
