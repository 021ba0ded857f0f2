// Package types defines the data model shared by every layer of the
// execution engine: rows, query results, and the optimized plan tree that
// the executor consumes.
package types

// Row is an ordered sequence of textual cells. Typed coercion is a concern
// for layers above this one; at this layer a cell is an opaque string.
type Row []string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// QueryResult aggregates the output of a physical operator or an executed
// request.
type QueryResult struct {
	Columns       []string
	Rows          []Row
	AffectedRows  int64
	LastInsertID  *int64
}

// NewQueryResult builds a result with the given columns and no rows.
func NewQueryResult(columns []string) *QueryResult {
	return &QueryResult{Columns: append([]string(nil), columns...)}
}

// Merge concatenates rows, keeps the first non-empty column list, sums
// affected_rows, and keeps the latest non-empty last_insert_id. Merge is
// associative in row contents: merge(merge(a,b),c) == merge(a,merge(b,c)).
func Merge(results ...*QueryResult) *QueryResult {
	out := &QueryResult{}
	for _, r := range results {
		if r == nil {
			continue
		}
		if len(out.Columns) == 0 && len(r.Columns) > 0 {
			out.Columns = r.Columns
		}
		out.Rows = append(out.Rows, r.Rows...)
		out.AffectedRows += r.AffectedRows
		if r.LastInsertID != nil {
			id := *r.LastInsertID
			out.LastInsertID = &id
		}
	}
	return out
}
