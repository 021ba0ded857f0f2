package execmodel

import (
	"context"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// PipelineAdapter treats each node as a stage in a streaming pipeline: every
// stage consumes and emits a batch (here, a full QueryResult, since the
// underlying operators are not yet batch-native) before the next stage
// runs. Node order is preserved, matching Volcano's ordering guarantee.
type PipelineAdapter struct {
	Logger *zap.Logger
}

func (a *PipelineAdapter) Execute(ctx context.Context, plan *types.OptimizedPlan, build NodeBuilder) (*types.QueryResult, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if plan.Empty() {
		return &types.QueryResult{}, nil
	}

	stages := make([]*types.QueryResult, 0, len(plan.Nodes))
	for _, node := range plan.Nodes {
		op, err := build(ctx, node)
		if err != nil {
			if engineerr.IsInvalidPlan(err) {
				logger.Warn("pipeline: skipping unsupported node", zap.String("node", node.Kind.String()))
				continue
			}
			return nil, err
		}
		r, err := op.Execute(ctx)
		if err != nil {
			return nil, err
		}
		stages = append(stages, r)
	}
	return types.Merge(stages...), nil
}
