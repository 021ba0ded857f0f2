package execmodel

import (
	"context"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// VolcanoAdapter drives nodes one at a time in plan order on the caller's
// goroutine, pulling each node's full result before moving to the next.
// Ordering between nodes is therefore deterministic, matching spec §5's
// guarantee for Volcano and Pipeline.
type VolcanoAdapter struct {
	Logger *zap.Logger
}

func (a *VolcanoAdapter) Execute(ctx context.Context, plan *types.OptimizedPlan, build NodeBuilder) (*types.QueryResult, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if plan.Empty() {
		return &types.QueryResult{}, nil
	}

	results := make([]*types.QueryResult, 0, len(plan.Nodes))
	for _, node := range plan.Nodes {
		op, err := build(ctx, node)
		if err != nil {
			if engineerr.IsInvalidPlan(err) {
				logger.Warn("volcano: skipping unsupported node", zap.String("node", node.Kind.String()))
				continue
			}
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
