package operator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// aggSpec is one parsed entry of an Aggregates list, e.g. "SUM(value)" or
// the column-less "COUNT".
type aggSpec struct {
	fn  string
	col string
}

func parseAggSpec(spec string) aggSpec {
	open := strings.IndexByte(spec, '(')
	if open < 0 {
		return aggSpec{fn: strings.ToUpper(spec)}
	}
	close := strings.IndexByte(spec, ')')
	if close < open {
		return aggSpec{fn: strings.ToUpper(spec[:open])}
	}
	return aggSpec{fn: strings.ToUpper(spec[:open]), col: spec[open+1 : close]}
}

// groupState accumulates one group's running aggregate values.
type groupState struct {
	keyRow types.Row
	count  int64
	sums   map[string]float64
	counts map[string]int64 // count of parseable cells per aggregated column, for AVG
	maxes  map[string]float64
	mins   map[string]float64
	seen   map[string]bool
}

func newGroupState(keyRow types.Row) *groupState {
	return &groupState{
		keyRow: keyRow,
		sums:   map[string]float64{},
		counts: map[string]int64{},
		maxes:  map[string]float64{},
		mins:   map[string]float64{},
		seen:   map[string]bool{},
	}
}

func (g *groupState) add(columns []string, row types.Row, specs []aggSpec) {
	g.count++
	for _, s := range specs {
		if s.col == "" {
			continue
		}
		idx := columnIndex(columns, s.col)
		if idx < 0 || idx >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			continue
		}
		key := s.col
		g.sums[key] += v
		g.counts[key]++
		if !g.seen[key] || v > g.maxes[key] {
			g.maxes[key] = v
		}
		if !g.seen[key] || v < g.mins[key] {
			g.mins[key] = v
		}
		g.seen[key] = true
	}
}

func (g *groupState) values(specs []aggSpec) types.Row {
	out := make(types.Row, len(specs))
	for i, s := range specs {
		switch s.fn {
		case "COUNT":
			out[i] = strconv.FormatInt(g.count, 10)
		case "SUM":
			out[i] = formatFloat(g.sums[s.col])
		case "AVG":
			if c := g.counts[s.col]; c > 0 {
				out[i] = formatFloat(g.sums[s.col] / float64(c))
			} else {
				out[i] = "0"
			}
		case "MAX":
			out[i] = formatFloat(g.maxes[s.col])
		case "MIN":
			out[i] = formatFloat(g.mins[s.col])
		default:
			out[i] = ""
		}
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func aggOutputColumns(groupBy []string, specs []aggSpec) []string {
	cols := append([]string(nil), groupBy...)
	for _, s := range specs {
		if s.col != "" {
			cols = append(cols, fmt.Sprintf("%s(%s)", s.fn, s.col))
		} else {
			cols = append(cols, s.fn)
		}
	}
	return cols
}

// runAggregate groups in's rows by GroupBy and computes Aggregates over
// each group, in first-seen group order.
func runAggregate(in *types.QueryResult, groupBy []string, aggregates []string) *types.QueryResult {
	specs := make([]aggSpec, len(aggregates))
	for i, a := range aggregates {
		specs[i] = parseAggSpec(a)
	}

	order := make([]string, 0)
	groups := make(map[string]*groupState)
	for _, row := range in.Rows {
		key := compositeKey(in.Columns, row, groupBy)
		g, ok := groups[key]
		if !ok {
			keyRow := make(types.Row, len(groupBy))
			for i, gb := range groupBy {
				if idx := columnIndex(in.Columns, gb); idx >= 0 && idx < len(row) {
					keyRow[i] = row[idx]
				}
			}
			g = newGroupState(keyRow)
			groups[key] = g
			order = append(order, key)
		}
		g.add(in.Columns, row, specs)
	}

	out := types.NewQueryResult(aggOutputColumns(groupBy, specs))
	for _, key := range order {
		g := groups[key]
		out.Rows = append(out.Rows, concatRow(g.keyRow, g.values(specs)))
	}
	return out
}

// Aggregate groups Input's rows by GroupBy and computes Aggregates.
type Aggregate struct {
	Input      Operator
	GroupBy    []string
	Aggregates []string
}

func (a *Aggregate) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := a.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return runAggregate(in, a.GroupBy, a.Aggregates), nil
}

// HashAggOperator is Aggregate with an explicit (otherwise unused) hash
// table size hint, kept to mirror the distinct operator the spec names.
type HashAggOperator struct {
	Input         Operator
	GroupBy       []string
	Aggregates    []string
	HashTableSize int
}

func (a *HashAggOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := a.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return runAggregate(in, a.GroupBy, a.Aggregates), nil
}

// GroupAggOperator sorts a copy of Input's rows by GroupBy and then runs the
// same hash-grouping pass as Aggregate, so groups come out in GroupBy order.
// Groups are not streamed one at a time: every group's state is held in
// memory together, alongside the sorted copy of the input.
type GroupAggOperator struct {
	Input      Operator
	GroupBy    []string
	Aggregates []string
}

func (a *GroupAggOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := a.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	sorted := &types.QueryResult{Columns: in.Columns, Rows: append([]types.Row(nil), in.Rows...)}
	sortByKeys(sorted.Columns, sorted.Rows, a.GroupBy)
	return runAggregate(sorted, a.GroupBy, a.Aggregates), nil
}

// DistributedAggOperator partitions rows by the hash of PartitionKeys modulo
// NumPartitions, then feeds the partitions, one after another, into a single
// shared set of group states. Partitions are not aggregated separately or
// concurrently, and no partial results are merged; the values match
// Aggregate's, with groups in first-seen order across the partition walk.
type DistributedAggOperator struct {
	Input          Operator
	GroupBy        []string
	Aggregates     []string
	PartitionKeys  []string
	NumPartitions  int
}

func (a *DistributedAggOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := a.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	n := a.NumPartitions
	if n <= 0 {
		n = 1
	}
	partitions := make([][]types.Row, n)
	for _, row := range in.Rows {
		key := compositeKey(in.Columns, row, a.PartitionKeys)
		p := int(stableHash(key) % uint64(n))
		partitions[p] = append(partitions[p], row)
	}

	specs := make([]aggSpec, len(a.Aggregates))
	for i, s := range a.Aggregates {
		specs[i] = parseAggSpec(s)
	}

	order := make([]string, 0)
	merged := make(map[string]*groupState)
	for _, rows := range partitions {
		for _, row := range rows {
			key := compositeKey(in.Columns, row, a.GroupBy)
			g, ok := merged[key]
			if !ok {
				keyRow := make(types.Row, len(a.GroupBy))
				for i, gb := range a.GroupBy {
					if idx := columnIndex(in.Columns, gb); idx >= 0 && idx < len(row) {
						keyRow[i] = row[idx]
					}
				}
				g = newGroupState(keyRow)
				merged[key] = g
				order = append(order, key)
			}
			g.add(in.Columns, row, specs)
		}
	}

	out := types.NewQueryResult(aggOutputColumns(a.GroupBy, specs))
	for _, key := range order {
		g := merged[key]
		out.Rows = append(out.Rows, concatRow(g.keyRow, g.values(specs)))
	}
	return out, nil
}

func stableHash(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
