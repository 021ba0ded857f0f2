package operator

import (
	"context"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// Filter evaluates Pred per row, keeping only rows that satisfy it.
type Filter struct {
	Input Operator
	Pred  Predicate
}

func (f *Filter) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := f.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := types.NewQueryResult(in.Columns)
	for _, row := range in.Rows {
		if f.Pred == nil || f.Pred(in.Columns, row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Project reorders and subsets Input's columns to Columns.
type Project struct {
	Input   Operator
	Columns []string
}

func (p *Project) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := p.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(p.Columns) == 0 {
		return in, nil
	}
	idxs := make([]int, len(p.Columns))
	for i, want := range p.Columns {
		idxs[i] = -1
		for j, c := range in.Columns {
			if c == want {
				idxs[i] = j
				break
			}
		}
	}
	out := types.NewQueryResult(p.Columns)
	for _, row := range in.Rows {
		nr := make(types.Row, len(idxs))
		for i, idx := range idxs {
			if idx >= 0 && idx < len(row) {
				nr[i] = row[idx]
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}
