package execmodel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// MPPAdapter decomposes the plan into one parallel task per node and merges
// at the end, modeling a per-node merge boundary at every join/aggregation
// the plan happens to contain. Task completion order, and therefore
// intermediate materialization order, is unspecified; only the final merge
// is deterministic in content (not row order) per spec §5.
type MPPAdapter struct {
	Logger *zap.Logger
}

func (a *MPPAdapter) Execute(ctx context.Context, plan *types.OptimizedPlan, build NodeBuilder) (*types.QueryResult, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if plan.Empty() {
		return &types.QueryResult{}, nil
	}

	results := make([]*types.QueryResult, len(plan.Nodes))
	errs := make([]error, len(plan.Nodes))
	var wg sync.WaitGroup
	wg.Add(len(plan.Nodes))
	for i, node := range plan.Nodes {
		i, node := i, node
		go func() {
			defer wg.Done()
			op, err := build(ctx, node)
			if err != nil {
				if engineerr.IsInvalidPlan(err) {
					logger.Warn("mpp: skipping unsupported node", zap.String("node", node.Kind.String()))
					return
				}
				errs[i] = err
				return
			}
			r, err := op.Execute(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = r
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return types.Merge(results...), nil
}
