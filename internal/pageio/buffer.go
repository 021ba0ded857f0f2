// Package pageio implements the opaque page-id to bytes fetch used by scan
// operators (spec §4.2). Row parsing out of page bytes uses a fixed
// row-stride convention that is constant per scan and agreed with the
// backing storage engine.
package pageio

import (
	"fmt"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

// Page is a read-through opaque byte block. Its internal serialization is
// opaque to this package; scan operators interpret Data using a row-stride
// convention they own.
type Page struct {
	ID   int64
	Data []byte
}

// Source fetches pages by id. Implementations return engineerr.ErrNotFound
// once id is out of range; scan operators treat that as end-of-range, not
// as a fatal error, during sequential scans.
type Source interface {
	Fetch(pageID int64) (Page, error)
}

// MemorySource is an in-process Source backed by a fixed slice of pages,
// used by tests and by operators running against the in-memory storage
// backend.
type MemorySource struct {
	pages [][]byte
}

// NewMemorySource builds a Source over pages, one []byte per page id
// starting at 0.
func NewMemorySource(pages [][]byte) *MemorySource {
	return &MemorySource{pages: pages}
}

// Fetch implements Source.
func (s *MemorySource) Fetch(pageID int64) (Page, error) {
	if pageID < 0 || int(pageID) >= len(s.pages) {
		return Page{}, fmt.Errorf("page %d: %w", pageID, engineerr.ErrNotFound)
	}
	return Page{ID: pageID, Data: s.pages[pageID]}, nil
}

// RowStride describes how fixed-width rows are packed into a page's bytes:
// a row occupies Width bytes per column slot, NumCols columns per row.
type RowStride struct {
	NumCols int
	Width   int
}

// Rows splits a page's bytes into rows according to the stride, trimming
// trailing NUL padding from each cell. Any trailing partial row (fewer
// bytes than one full row) is dropped rather than treated as an error —
// padding a page to a stride multiple is storage's responsibility, not
// ours.
func (s RowStride) Rows(p Page) []Row {
	rowBytes := s.NumCols * s.Width
	if rowBytes <= 0 {
		return nil
	}
	n := len(p.Data) / rowBytes
	out := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		base := i * rowBytes
		cells := make([]string, s.NumCols)
		for c := 0; c < s.NumCols; c++ {
			start := base + c*s.Width
			cells[c] = trimNul(p.Data[start : start+s.Width])
		}
		out = append(out, Row(cells))
	}
	return out
}

// Row is a page-local parsed row, kept distinct from types.Row so this
// package has no dependency on the higher-level data model.
type Row []string

func trimNul(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
