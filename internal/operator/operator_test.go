package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

type staticOperator struct {
	result *types.QueryResult
}

func (s *staticOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	return s.result, nil
}

func rows(cells ...[]string) []types.Row {
	out := make([]types.Row, len(cells))
	for i, c := range cells {
		out[i] = types.Row(c)
	}
	return out
}

func TestAggregateCountSumAvg(t *testing.T) {
	input := &staticOperator{result: &types.QueryResult{
		Columns: []string{"id", "name", "value"},
		Rows: rows(
			[]string{"1", "Alice", "100"},
			[]string{"2", "Bob", "200"},
			[]string{"3", "Alice", "150"},
			[]string{"4", "Charlie", "300"},
			[]string{"5", "Bob", "250"},
		),
	}}
	agg := &Aggregate{Input: input, GroupBy: []string{"name"}, Aggregates: []string{"COUNT", "SUM(value)", "AVG(value)"}}
	out, err := agg.Execute(context.Background())
	require.NoError(t, err)

	got := map[string][]string{}
	for _, r := range out.Rows {
		got[r[0]] = []string{r[1], r[2], r[3]}
	}
	assert.Equal(t, []string{"2", "250", "125"}, got["Alice"])
	assert.Equal(t, []string{"2", "450", "225"}, got["Bob"])
	assert.Equal(t, []string{"1", "300", "300"}, got["Charlie"])
}

func TestAggregateSkipsUnparseableCells(t *testing.T) {
	input := &staticOperator{result: &types.QueryResult{
		Columns: []string{"g", "v"},
		Rows: rows(
			[]string{"a", "10"},
			[]string{"a", "not-a-number"},
			[]string{"a", "20"},
		),
	}}
	agg := &Aggregate{Input: input, GroupBy: []string{"g"}, Aggregates: []string{"COUNT", "SUM(v)"}}
	out, err := agg.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "3", out.Rows[0][1], "COUNT counts every row regardless of parseability")
	assert.Equal(t, "30", out.Rows[0][2], "SUM ignores the unparseable cell")
}

func TestMergeJoinScenario(t *testing.T) {
	left := &staticOperator{result: &types.QueryResult{
		Columns: []string{"id", "val"},
		Rows:    rows([]string{"1", "A"}, []string{"2", "B"}, []string{"3", "C"}),
	}}
	right := &staticOperator{result: &types.QueryResult{
		Columns: []string{"id", "val"},
		Rows:    rows([]string{"1", "X"}, []string{"2", "Y"}, []string{"4", "Z"}),
	}}
	join := &MergeJoin{Left: left, Right: right, SortKeys: []string{"id"}}
	out, err := join.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, types.Row{"1", "A", "1", "X"}, out.Rows[0])
	assert.Equal(t, types.Row{"2", "B", "2", "Y"}, out.Rows[1])
}

func TestJoinInnerSatisfiesCondition(t *testing.T) {
	left := &staticOperator{result: &types.QueryResult{Columns: []string{"id"}, Rows: rows([]string{"1"}, []string{"2"})}}
	right := &staticOperator{result: &types.QueryResult{Columns: []string{"id"}, Rows: rows([]string{"2"}, []string{"3"})}}
	j := &Join{Left: left, Right: right, Type: JoinInner, Condition: "left.id = right.id"}
	out, err := j.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, types.Row{"2", "2"}, out.Rows[0])
}

func TestJoinLeftProducesEveryLeftRow(t *testing.T) {
	left := &staticOperator{result: &types.QueryResult{Columns: []string{"id"}, Rows: rows([]string{"1"}, []string{"2"})}}
	right := &staticOperator{result: &types.QueryResult{Columns: []string{"id"}, Rows: rows([]string{"2"})}}
	j := &Join{Left: left, Right: right, Type: JoinLeft, Condition: "left.id = right.id"}
	out, err := j.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Rows, 2)
}

func TestJoinFullEmptyLeftProducesRightOnly(t *testing.T) {
	left := &staticOperator{result: &types.QueryResult{Columns: []string{"id"}}}
	right := &staticOperator{result: &types.QueryResult{Columns: []string{"id"}, Rows: rows([]string{"1"}, []string{"2"})}}
	j := &Join{Left: left, Right: right, Type: JoinFull, Condition: "left.id = right.id"}
	out, err := j.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	for _, r := range out.Rows {
		assert.Empty(t, r[0], "left side must be null for right-only rows")
	}
}

func TestSortStability(t *testing.T) {
	input := &staticOperator{result: &types.QueryResult{
		Columns: []string{"k", "seq"},
		Rows:    rows([]string{"a", "1"}, []string{"a", "2"}, []string{"b", "3"}, []string{"a", "4"}),
	}}
	s := &Sort{Input: input, OrderBy: []string{"k"}}
	out, err := s.Execute(context.Background())
	require.NoError(t, err)
	var seqForA []string
	for _, r := range out.Rows {
		if r[0] == "a" {
			seqForA = append(seqForA, r[1])
		}
	}
	assert.Equal(t, []string{"1", "2", "4"}, seqForA, "equal keys must preserve input order")
}

func TestSortEmptyInputKeepsColumns(t *testing.T) {
	input := &staticOperator{result: types.NewQueryResult([]string{"a", "b"})}
	s := &Sort{Input: input, OrderBy: []string{"a"}}
	out, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Columns)
	assert.Empty(t, out.Rows)
}

func TestTopNZeroProducesNoRows(t *testing.T) {
	input := &staticOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: rows([]string{"1"}, []string{"2"})}}
	top := &TopNOperator{Input: input, OrderBy: []string{"v"}, N: 0}
	out, err := top.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}

func TestTopNReturnsBestNInOrder(t *testing.T) {
	input := &staticOperator{result: &types.QueryResult{
		Columns: []string{"v"},
		Rows:    rows([]string{"5"}, []string{"1"}, []string{"9"}, []string{"3"}),
	}}
	top := &TopNOperator{Input: input, OrderBy: []string{"v"}, N: 2}
	out, err := top.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "1", out.Rows[0][0])
	assert.Equal(t, "3", out.Rows[1][0])
}

func TestLimitIdempotence(t *testing.T) {
	input := &staticOperator{result: &types.QueryResult{
		Columns: []string{"v"},
		Rows:    rows([]string{"1"}, []string{"2"}, []string{"3"}, []string{"4"}),
	}}
	once := &Limit{Input: input, Limit: 2, Offset: 0}
	firstResult, err := once.Execute(context.Background())
	require.NoError(t, err)

	twice := &Limit{Input: &staticOperator{result: firstResult}, Limit: 2, Offset: 0}
	secondResult, err := twice.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstResult.Rows, secondResult.Rows)
}

func TestUnionDistinctDeduplicates(t *testing.T) {
	left := &staticOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: rows([]string{"1"}, []string{"2"})}}
	right := &staticOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: rows([]string{"2"}, []string{"3"})}}
	u := &Union{Left: left, Right: right, Distinct: true}
	out, err := u.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Rows, 3)
}

func TestExceptRemovesRightMembers(t *testing.T) {
	left := &staticOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: rows([]string{"1"}, []string{"2"}, []string{"3"})}}
	right := &staticOperator{result: &types.QueryResult{Columns: []string{"v"}, Rows: rows([]string{"2"})}}
	e := &Except{Left: left, Right: right}
	out, err := e.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "1", out.Rows[0][0])
	assert.Equal(t, "3", out.Rows[1][0])
}
