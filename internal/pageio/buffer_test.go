package pageio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

func makePage(cells ...string) []byte {
	const width = 8
	out := make([]byte, 0, len(cells)*width)
	for _, c := range cells {
		b := make([]byte, width)
		copy(b, c)
		out = append(out, b...)
	}
	return out
}

func TestMemorySourceFetch(t *testing.T) {
	src := NewMemorySource([][]byte{makePage("a", "b")})
	p, err := src.Fetch(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.ID)
}

func TestMemorySourceOutOfRangeIsNotFound(t *testing.T) {
	src := NewMemorySource([][]byte{makePage("a")})
	_, err := src.Fetch(5)
	require.ErrorIs(t, err, engineerr.ErrNotFound)
}

func TestRowStrideParsesFixedWidthRows(t *testing.T) {
	stride := RowStride{NumCols: 2, Width: 8}
	page := Page{ID: 0, Data: makePage("id1", "Alice", "id2", "Bob")}
	rows := stride.Rows(page)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"id1", "Alice"}, rows[0])
	assert.Equal(t, Row{"id2", "Bob"}, rows[1])
}
