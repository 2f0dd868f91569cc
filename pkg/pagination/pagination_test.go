package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-4))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(500))
	assert.Equal(t, 11, FetchLimit(10))
}

func TestCursorEncodingIsURLSafe(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 5, time.FixedZone("x", 3600)), ID: uuid.New()}
	encoded := EncodeCursor(c)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")

	parsed, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, c.CreatedAt.Equal(parsed.CreatedAt))
	assert.Equal(t, c.ID, parsed.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{"not-base64!", "bm8tc2VwYXJhdG9y", "eHx5"} {
		_, err = ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestTrimPage(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	key := func(c Cursor) Cursor { return c }

	page, next := TrimPage(rows, 3, key)
	assert.Len(t, page, 3)
	assert.Equal(t, EncodeCursor(rows[2]), next)

	page, next = TrimPage(rows[:3], 3, key)
	assert.Len(t, page, 3)
	assert.Empty(t, next)

	page, next = TrimPage[Cursor](nil, 3, key)
	assert.NotNil(t, page)
	assert.Empty(t, next)
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{}.Offset())
	assert.Equal(t, 20, Page{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, Page{Page: 1, Limit: MaxLimit}, Page{Page: -1, Limit: 1000}.Normalize())
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 25))
	assert.Equal(t, 1, TotalPages(1, 25))
	assert.Equal(t, 1, TotalPages(25, 25))
	assert.Equal(t, 2, TotalPages(26, 25))
}

func TestNewPageResultNeverNilItems(t *testing.T) {
	res := NewPageResult[string](nil, 0, Page{Page: 2})
	assert.NotNil(t, res.Items)
	assert.Equal(t, 0, res.Pages)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, DefaultLimit, res.Limit)
}
