package operator

import (
	"container/heap"
	"context"
	"sort"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// rowLess compares two rows by the OrderBy column list, first key
// distinguishing, ties falling through to the next key. Comparison is
// lexicographic on the cell's string form.
func rowLess(columns []string, a, b types.Row, orderBy []string) bool {
	for _, col := range orderBy {
		idx := columnIndex(columns, col)
		if idx < 0 {
			continue
		}
		av, bv := cellAt(a, idx), cellAt(b, idx)
		if av != bv {
			return av < bv
		}
	}
	return false
}

func cellAt(r types.Row, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

func stableSortRows(columns []string, rows []types.Row, orderBy []string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rowLess(columns, rows[i], rows[j], orderBy)
	})
}

// Sort is a stable, multi-column sort. An empty input yields an empty
// result carrying the input's column list.
type Sort struct {
	Input   Operator
	OrderBy []string
}

func (s *Sort) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := s.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := &types.QueryResult{Columns: in.Columns, Rows: append([]types.Row(nil), in.Rows...)}
	stableSortRows(out.Columns, out.Rows, s.OrderBy)
	return out, nil
}

// ExternalSortOperator splits Input into ChunkSize chunks, sorts each
// in-memory, then merges pairwise until one output remains. MaxMemory and
// TempDir are accepted for interface parity with the capability table but
// do not affect this in-process implementation's result.
type ExternalSortOperator struct {
	Input     Operator
	OrderBy   []string
	ChunkSize int
	MaxMemory int64
	TempDir   string
}

func (s *ExternalSortOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := s.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(in.Rows)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	var chunks [][]types.Row
	for start := 0; start < len(in.Rows); start += chunkSize {
		end := start + chunkSize
		if end > len(in.Rows) {
			end = len(in.Rows)
		}
		chunk := append([]types.Row(nil), in.Rows[start:end]...)
		stableSortRows(in.Columns, chunk, s.OrderBy)
		chunks = append(chunks, chunk)
	}

	for len(chunks) > 1 {
		var next [][]types.Row
		for i := 0; i < len(chunks); i += 2 {
			if i+1 >= len(chunks) {
				next = append(next, chunks[i])
				continue
			}
			next = append(next, mergeSorted(in.Columns, chunks[i], chunks[i+1], s.OrderBy))
		}
		chunks = next
	}

	out := &types.QueryResult{Columns: in.Columns}
	if len(chunks) == 1 {
		out.Rows = chunks[0]
	}
	return out, nil
}

func mergeSorted(columns []string, a, b []types.Row, orderBy []string) []types.Row {
	out := make([]types.Row, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if rowLess(columns, b[j], a[i], orderBy) {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// topNHeap is a max-heap on the desired sort order, so the root is always
// the current worst-ranked row and can be evicted in O(log N) once the heap
// exceeds its capacity.
type topNHeap struct {
	columns []string
	orderBy []string
	rows    []types.Row
}

func (h topNHeap) Len() int { return len(h.rows) }
func (h topNHeap) Less(i, j int) bool {
	// Reversed: a row that would sort later (is "worse") is "Less" here so
	// the standard min-heap keeps the worst row at the root.
	return rowLess(h.columns, h.rows[j], h.rows[i], h.orderBy)
}
func (h topNHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topNHeap) Push(x any)   { h.rows = append(h.rows, x.(types.Row)) }
func (h *topNHeap) Pop() any {
	old := h.rows
	n := len(old)
	item := old[n-1]
	h.rows = old[:n-1]
	return item
}

// TopNOperator keeps the N best rows under OrderBy using a bounded max-heap,
// evicting the current worst row whenever the heap exceeds N.
type TopNOperator struct {
	Input   Operator
	OrderBy []string
	N       int
}

func (t *TopNOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := t.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := &types.QueryResult{Columns: in.Columns}
	if t.N <= 0 {
		return out, nil
	}

	h := &topNHeap{columns: in.Columns, orderBy: t.OrderBy}
	for _, row := range in.Rows {
		heap.Push(h, row)
		if h.Len() > t.N {
			heap.Pop(h)
		}
	}
	out.Rows = append([]types.Row(nil), h.rows...)
	stableSortRows(out.Columns, out.Rows, t.OrderBy)
	return out, nil
}

// ParallelSortOperator chunks Input, sorts chunks concurrently across
// NumWorkers goroutines, then merges pairwise; the result is identical to
// ExternalSortOperator, parallelism only changes how chunk sorting is
// scheduled.
type ParallelSortOperator struct {
	Input      Operator
	OrderBy    []string
	NumWorkers int
	ChunkSize  int
}

func (s *ParallelSortOperator) Execute(ctx context.Context) (*types.QueryResult, error) {
	in, err := s.Input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(in.Rows)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	var starts []int
	for start := 0; start < len(in.Rows); start += chunkSize {
		starts = append(starts, start)
	}
	chunks := make([][]types.Row, len(starts))

	workers := s.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	done := make(chan int, len(starts))
	for ci, start := range starts {
		end := start + chunkSize
		if end > len(in.Rows) {
			end = len(in.Rows)
		}
		sem <- struct{}{}
		go func(ci, start, end int) {
			defer func() { <-sem }()
			chunk := append([]types.Row(nil), in.Rows[start:end]...)
			stableSortRows(in.Columns, chunk, s.OrderBy)
			chunks[ci] = chunk
			done <- ci
		}(ci, start, end)
	}
	for range starts {
		<-done
	}

	for len(chunks) > 1 {
		var next [][]types.Row
		for i := 0; i < len(chunks); i += 2 {
			if i+1 >= len(chunks) {
				next = append(next, chunks[i])
				continue
			}
			next = append(next, mergeSorted(in.Columns, chunks[i], chunks[i+1], s.OrderBy))
		}
		chunks = next
	}

	out := &types.QueryResult{Columns: in.Columns}
	if len(chunks) == 1 {
		out.Rows = chunks[0]
	}
	return out, nil
}
