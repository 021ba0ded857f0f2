package operator

import (
	"context"
	"sort"
	"strings"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// JoinType mirrors types.JoinType for operator-level dispatch.
type JoinType = types.JoinType

const (
	JoinInner = types.JoinInner
	JoinLeft  = types.JoinLeft
	JoinRight = types.JoinRight
	JoinFull  = types.JoinFull
)

func concatColumns(left, right []string) []string {
	return append(append([]string(nil), left...), right...)
}

func concatRow(left, right types.Row) types.Row {
	out := make(types.Row, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

func nullsOf(n int) types.Row {
	return make(types.Row, n)
}

// conditionMatches implements the simplified equality condition of spec
// §4.7: if the condition text contains "=", the join predicate is equality
// on each side's first column; otherwise every pair satisfies it.
func conditionMatches(condition string, left, right types.Row) bool {
	if !strings.Contains(condition, "=") {
		return true
	}
	if len(left) == 0 || len(right) == 0 {
		return false
	}
	return left[0] == right[0]
}

// Join implements Inner/Left/Right/Full dispatch per join_type.
type Join struct {
	Left, Right Operator
	Type        JoinType
	Condition   string
}

func (j *Join) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := j.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := j.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := types.NewQueryResult(concatColumns(l.Columns, r.Columns))

	leftMatched := make([]bool, len(l.Rows))
	rightMatched := make([]bool, len(r.Rows))

	for i, lr := range l.Rows {
		for k, rr := range r.Rows {
			if conditionMatches(j.Condition, lr, rr) {
				out.Rows = append(out.Rows, concatRow(lr, rr))
				leftMatched[i] = true
				rightMatched[k] = true
			}
		}
	}

	switch j.Type {
	case JoinLeft:
		for i, lr := range l.Rows {
			if !leftMatched[i] {
				out.Rows = append(out.Rows, concatRow(lr, nullsOf(len(r.Columns))))
			}
		}
	case JoinRight:
		for k, rr := range r.Rows {
			if !rightMatched[k] {
				out.Rows = append(out.Rows, concatRow(nullsOf(len(l.Columns)), rr))
			}
		}
	case JoinFull:
		for i, lr := range l.Rows {
			if !leftMatched[i] {
				out.Rows = append(out.Rows, concatRow(lr, nullsOf(len(r.Columns))))
			}
		}
		for k, rr := range r.Rows {
			if !rightMatched[k] {
				out.Rows = append(out.Rows, concatRow(nullsOf(len(l.Columns)), rr))
			}
		}
	}
	return out, nil
}

// NestedLoopJoin is Join with the left side consumed in BatchSize chunks;
// the result is identical to Join, batching only bounds working-set size.
type NestedLoopJoin struct {
	Left, Right Operator
	Type        JoinType
	Condition   string
	BatchSize   int
}

func (j *NestedLoopJoin) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := j.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := j.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	batch := j.BatchSize
	if batch <= 0 {
		batch = len(l.Rows)
		if batch == 0 {
			batch = 1
		}
	}
	out := types.NewQueryResult(concatColumns(l.Columns, r.Columns))
	rightMatched := make([]bool, len(r.Rows))
	var leftMatchedAll []bool

	for start := 0; start < len(l.Rows); start += batch {
		end := start + batch
		if end > len(l.Rows) {
			end = len(l.Rows)
		}
		for _, lr := range l.Rows[start:end] {
			matched := false
			for k, rr := range r.Rows {
				if conditionMatches(j.Condition, lr, rr) {
					out.Rows = append(out.Rows, concatRow(lr, rr))
					rightMatched[k] = true
					matched = true
				}
			}
			leftMatchedAll = append(leftMatchedAll, matched)
		}
	}

	if j.Type == JoinLeft || j.Type == JoinFull {
		for i, lr := range l.Rows {
			if i < len(leftMatchedAll) && !leftMatchedAll[i] {
				out.Rows = append(out.Rows, concatRow(lr, nullsOf(len(r.Columns))))
			}
		}
	}
	if j.Type == JoinRight || j.Type == JoinFull {
		for k, rr := range r.Rows {
			if !rightMatched[k] {
				out.Rows = append(out.Rows, concatRow(nullsOf(len(l.Columns)), rr))
			}
		}
	}
	return out, nil
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func compositeKey(columns []string, row types.Row, keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		idx := columnIndex(columns, k)
		if idx >= 0 && idx < len(row) {
			b.WriteString(row[idx])
		}
		b.WriteByte(0)
	}
	return b.String()
}

// HashJoin builds a hash table on Left keyed by JoinKeys, then probes with
// each Right row, emitting a concatenated row per key match.
type HashJoin struct {
	Left, Right    Operator
	JoinKeys       []string
	HashTableSize  int
}

func (j *HashJoin) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := j.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := j.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := types.NewQueryResult(concatColumns(l.Columns, r.Columns))

	buckets := make(map[string][]types.Row, j.HashTableSize)
	for _, lr := range l.Rows {
		key := compositeKey(l.Columns, lr, j.JoinKeys)
		buckets[key] = append(buckets[key], lr)
	}
	for _, rr := range r.Rows {
		key := compositeKey(r.Columns, rr, j.JoinKeys)
		for _, lr := range buckets[key] {
			out.Rows = append(out.Rows, concatRow(lr, rr))
		}
	}
	return out, nil
}

// MergeJoin pre-sorts both inputs by SortKeys and merges on equal keys with
// a two-pointer scan. Keys are assumed unique per side (spec scenario 4).
type MergeJoin struct {
	Left, Right Operator
	SortKeys    []string
}

func (j *MergeJoin) Execute(ctx context.Context) (*types.QueryResult, error) {
	l, err := j.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	r, err := j.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}
	sortByKeys(l.Columns, l.Rows, j.SortKeys)
	sortByKeys(r.Columns, r.Rows, j.SortKeys)

	out := types.NewQueryResult(concatColumns(l.Columns, r.Columns))
	li, ri := 0, 0
	for li < len(l.Rows) && ri < len(r.Rows) {
		lk := compositeKey(l.Columns, l.Rows[li], j.SortKeys)
		rk := compositeKey(r.Columns, r.Rows[ri], j.SortKeys)
		switch {
		case lk == rk:
			out.Rows = append(out.Rows, concatRow(l.Rows[li], r.Rows[ri]))
			li++
			ri++
		case lk < rk:
			li++
		default:
			ri++
		}
	}
	return out, nil
}

func sortByKeys(columns []string, rows []types.Row, keys []string) {
	sort.SliceStable(rows, func(i, k int) bool {
		return compositeKey(columns, rows[i], keys) < compositeKey(columns, rows[k], keys)
	})
}
