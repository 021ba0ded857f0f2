// Package execmodel implements the execution-model selector and the four
// driving adapters of spec §4.8/4.9: Volcano, Pipeline, Vectorized-Batch,
// and MPP all wrap the same physical operator set with different node
// scheduling disciplines.
package execmodel

import (
	"context"

	"github.com/database-intelligence/sqlexec/internal/operator"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// Model names one of the four execution disciplines.
type Model int

const (
	ModelVolcano Model = iota
	ModelPipeline
	ModelVectorized
	ModelMPP
)

func (m Model) String() string {
	switch m {
	case ModelVolcano:
		return "Volcano"
	case ModelPipeline:
		return "Pipeline"
	case ModelVectorized:
		return "Vectorized"
	case ModelMPP:
		return "MPP"
	default:
		return "Unknown"
	}
}

// NodeBuilder turns one optimizer plan node into an executable physical
// operator. Upstream layers supply this, since only they know which storage
// source, predicate closures, and join/sort parameters a node resolves to.
type NodeBuilder func(ctx context.Context, node types.PlanNode) (operator.Operator, error)

// Adapter drives an OptimizedPlan's nodes through a NodeBuilder and merges
// their results. All four adapters share the same output discipline: run
// every node/stage/task, merge pairwise, return the merged QueryResult.
type Adapter interface {
	Execute(ctx context.Context, plan *types.OptimizedPlan, build NodeBuilder) (*types.QueryResult, error)
}

// NewAdapter constructs the adapter for m.
func NewAdapter(m Model) Adapter {
	switch m {
	case ModelPipeline:
		return &PipelineAdapter{}
	case ModelVectorized:
		return &VectorizedAdapter{BatchSize: 4}
	case ModelMPP:
		return &MPPAdapter{}
	default:
		return &VolcanoAdapter{}
	}
}
