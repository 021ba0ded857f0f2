package operator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// wholeRowKey builds a de-duplication key from every cell in the row.
func wholeRowKey(row types.Row) string {
	key := ""
	for _, c := range row {
		key += c + "\x00"
	}
	return key
}

// Union concatenates Left and Right; if Distinct, rows are de-duplicated by
// their full-row key.
type Union struct {
	Left, Right Operator
	Distinct    bool
}

func (u *Union) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := u.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := u.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := types.NewQueryResult(firstNonEmpty(l.Columns, r.Columns))
	if !u.Distinct {
		out.Rows = append(out.Rows, l.Rows...)
		out.Rows = append(out.Rows, r.Rows...)
		return out, nil
	}
	seen := make(map[string]bool)
	for _, row := range l.Rows {
		k := wholeRowKey(row)
		if !seen[k] {
			seen[k] = true
			out.Rows = append(out.Rows, row)
		}
	}
	for _, row := range r.Rows {
		k := wholeRowKey(row)
		if !seen[k] {
			seen[k] = true
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

// Intersect returns Left's rows whose full-row key also appears in Right.
type Intersect struct {
	Left, Right Operator
}

func (op *Intersect) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := op.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := op.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	rightSet := make(map[string]bool, len(r.Rows))
	for _, row := range r.Rows {
		rightSet[wholeRowKey(row)] = true
	}
	out := types.NewQueryResult(l.Columns)
	for _, row := range l.Rows {
		if rightSet[wholeRowKey(row)] {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Except returns Left's rows whose full-row key does NOT appear in Right.
type Except struct {
	Left, Right Operator
}

func (op *Except) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := op.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := op.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	rightSet := make(map[string]bool, len(r.Rows))
	for _, row := range r.Rows {
		rightSet[wholeRowKey(row)] = true
	}
	out := types.NewQueryResult(l.Columns)
	for _, row := range l.Rows {
		if !rightSet[wholeRowKey(row)] {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Limit drops the first Offset rows and emits the next Limit rows.
// Limit(Limit(r, a, 0), a, 0) is idempotent for a >= 0.
type Limit struct {
	Input  Operator
	Limit  int
	Offset int
}

func (l *Limit) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := l.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := types.NewQueryResult(in.Columns)
	start := l.Offset
	if start < 0 {
		start = 0
	}
	if start > len(in.Rows) {
		start = len(in.Rows)
	}
	end := start + l.Limit
	if l.Limit < 0 || end > len(in.Rows) {
		end = len(in.Rows)
	}
	out.Rows = append(out.Rows, in.Rows[start:end]...)
	return out, nil
}

// ShardRange is one entry of a shard directory: a key range routed to a
// single node.
type ShardRange struct {
	StartKey, EndKey string
	NodeID           string
	Host             string
	Port             int
}

// ShardFetcher fetches the rows owned by one shard range.
type ShardFetcher func(ctx context.Context, shard ShardRange) (*types.QueryResult, error)

// ShardScanOperator consults a shard directory and dispatches one fetch per
// range concurrently, unioning results. A single shard's failure is logged
// and excluded rather than aborting the whole scan.
type ShardScanOperator struct {
	Directory []ShardRange
	Fetch     ShardFetcher
	Logger    *zap.Logger
}

func (s *ShardScanOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]*types.QueryResult, len(s.Directory))
	var wg sync.WaitGroup
	wg.Add(len(s.Directory))
	for i, shard := range s.Directory {
		i, shard := i, shard
		go func() {
			defer wg.Done()
			r, err := s.Fetch(ctx, shard)
			if err != nil {
				logger.Warn("shard fetch failed", zap.String("node_id", shard.NodeID), zap.Error(err))
				return
			}
			results[i] = r
		}()
	}
	wg.Wait()
	return types.Merge(results...), nil
}
