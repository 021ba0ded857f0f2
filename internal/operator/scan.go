package operator

import (
	"context"
	"errors"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
	"github.com/database-intelligence/sqlexec/internal/pageio"
	"github.com/database-intelligence/sqlexec/pkg/types"
)

// projectStride converts a pageio row into a types.Row limited to the
// requested column indices. allColumns is the full column list the stride
// materializes, in order.
func projectStride(allColumns []string, r pageio.Row, wanted []string) (types.Row, bool) {
	if len(wanted) == 0 {
		return types.Row(append([]string(nil), r...)), true
	}
	out := make(types.Row, 0, len(wanted))
	for _, w := range wanted {
		idx := -1
		for i, c := range allColumns {
			if c == w {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(r) {
			return nil, false
		}
		out = append(out, r[idx])
	}
	return out, true
}

// Scan reads page ids 0..N from src, stopping at the first page-not-found,
// parsing rows with stride and projecting to columns.
type Scan struct {
	Table   string
	Columns []string
	Src     pageio.Source
	Stride  pageio.RowStride
	// AllColumns is the full, ordered column list the stride materializes.
	AllColumns []string
}

func (s *Scan) Execute(ctx context.Context) (*types.QueryResult, error) {
	out := types.NewQueryResult(projectedColumns(s.AllColumns, s.Columns))
	for pageID := int64(0); ; pageID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.Src.Fetch(pageID)
		if err != nil {
			if errors.Is(err, engineerr.ErrNotFound) {
				break
			}
			return nil, err
		}
		for _, r := range s.Stride.Rows(page) {
			row, ok := projectStride(s.AllColumns, r, s.Columns)
			if !ok {
				continue
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func projectedColumns(all, wanted []string) []string {
	if len(wanted) == 0 {
		return all
	}
	return wanted
}

// IndexScan is a Scan restricted to rows matching every equality condition
// in Conditions (column name -> expected value).
type IndexScan struct {
	Table      string
	Index      string
	Columns    []string
	AllColumns []string
	Conditions map[string]string
	Src        pageio.Source
	Stride     pageio.RowStride
}

func (s *IndexScan) Execute(ctx context.Context) (*types.QueryResult, error) {
	out := types.NewQueryResult(projectedColumns(s.AllColumns, s.Columns))
	for pageID := int64(0); ; pageID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.Src.Fetch(pageID)
		if err != nil {
			if errors.Is(err, engineerr.ErrNotFound) {
				break
			}
			return nil, err
		}
		for _, r := range s.Stride.Rows(page) {
			if !matchesConditions(s.AllColumns, r, s.Conditions) {
				continue
			}
			row, ok := projectStride(s.AllColumns, r, s.Columns)
			if !ok {
				continue
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func matchesConditions(allColumns []string, r pageio.Row, conditions map[string]string) bool {
	for col, want := range conditions {
		idx := -1
		for i, c := range allColumns {
			if c == col {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(r) || r[idx] != want {
			return false
		}
	}
	return true
}

// SeqScan is the explicit page-range variant of Scan.
type SeqScan struct {
	Table               string
	Columns, AllColumns  []string
	StartPage, EndPage   int64
	Src                  pageio.Source
	Stride               pageio.RowStride
}

func (s *SeqScan) Execute(ctx context.Context) (*types.QueryResult, error) {
	out := types.NewQueryResult(projectedColumns(s.AllColumns, s.Columns))
	for pageID := s.StartPage; pageID <= s.EndPage; pageID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.Src.Fetch(pageID)
		if err != nil {
			if errors.Is(err, engineerr.ErrNotFound) {
				break
			}
			return nil, err
		}
		for _, r := range s.Stride.Rows(page) {
			row, ok := projectStride(s.AllColumns, r, s.Columns)
			if !ok {
				continue
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// IndexKind selects which range EnhancedIndexScan consults.
type IndexKind int

const (
	IndexBTree IndexKind = iota
	IndexHash
	IndexBitmap
)

// EnhancedIndexScan dispatches on index kind, each picking a distinct page
// range, then applies the same equality-condition semantics as IndexScan.
type EnhancedIndexScan struct {
	Table      string
	Kind       IndexKind
	Columns    []string
	AllColumns []string
	Conditions map[string]string
	Src        pageio.Source
	Stride     pageio.RowStride
	// Ranges gives each kind's page range; callers populate the entry for
	// the kind they intend to use.
	Ranges map[IndexKind][2]int64
}

func (s *EnhancedIndexScan) Execute(ctx context.Context) (*types.QueryResult, error) {
	rng, ok := s.Ranges[s.Kind]
	if !ok {
		rng = [2]int64{0, 1<<62 - 1}
	}
	inner := &IndexScan{
		Table: s.Table, Index: s.Table, Columns: s.Columns, AllColumns: s.AllColumns,
		Conditions: s.Conditions, Src: boundedSource{base: s.Src, start: rng[0], end: rng[1]}, Stride: s.Stride,
	}
	return inner.Execute(ctx)
}

// boundedSource wraps a Source so Fetch returns ErrNotFound outside
// [start, end], letting the range-scan shape reuse IndexScan's loop.
type boundedSource struct {
	base       pageio.Source
	start, end int64
}

func (b boundedSource) Fetch(pageID int64) (pageio.Page, error) {
	if pageID < b.start || pageID > b.end {
		return pageio.Page{}, engineerr.ErrNotFound
	}
	return b.base.Fetch(pageID)
}

// BitmapCondition composes a row-presence bitmap query.
type BitmapCondition struct {
	Op    BitmapOp
	Left  func(allColumns []string, r pageio.Row) bool
	Right *BitmapCondition
}

// BitmapOp is the boolean composition operator for a BitmapScan condition.
type BitmapOp int

const (
	BitmapLeaf BitmapOp = iota
	BitmapAnd
	BitmapOr
	BitmapNot
)

func (c *BitmapCondition) eval(allColumns []string, r pageio.Row) bool {
	switch c.Op {
	case BitmapAnd:
		return c.Left(allColumns, r) && c.Right.eval(allColumns, r)
	case BitmapOr:
		return c.Left(allColumns, r) || c.Right.eval(allColumns, r)
	case BitmapNot:
		return !c.Left(allColumns, r)
	default:
		return c.Left(allColumns, r)
	}
}

// BitmapScan builds a row-presence bitmap by evaluating Condition per row
// across all pages, then materializes rows for set bits. The bitmap starts
// with BitmapSize entries and grows by one entry per row beyond that, so it
// is not fixed-size and no row is dropped for lack of bitmap space.
type BitmapScan struct {
	Table      string
	Columns    []string
	AllColumns []string
	Condition  *BitmapCondition
	Src        pageio.Source
	Stride     pageio.RowStride
	BitmapSize int
}

func (s *BitmapScan) Execute(ctx context.Context) (*types.QueryResult, error) {
	out := types.NewQueryResult(projectedColumns(s.AllColumns, s.Columns))
	bitmap := make([]bool, s.BitmapSize)
	rows := make([]pageio.Row, 0, s.BitmapSize)

	for pageID := int64(0); ; pageID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.Src.Fetch(pageID)
		if err != nil {
			if errors.Is(err, engineerr.ErrNotFound) {
				break
			}
			return nil, err
		}
		for _, r := range s.Stride.Rows(page) {
			idx := len(rows)
			rows = append(rows, r)
			if idx >= len(bitmap) {
				bitmap = append(bitmap, false)
			}
			if s.Condition == nil || s.Condition.eval(s.AllColumns, r) {
				bitmap[idx] = true
			}
		}
	}

	for i, set := range bitmap {
		if !set || i >= len(rows) {
			continue
		}
		row, ok := projectStride(s.AllColumns, rows[i], s.Columns)
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
