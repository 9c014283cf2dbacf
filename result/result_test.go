package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirito034/DataVita/frame"
)

type lazyList struct {
	items []any
	err   error
	calls int
}

func (l *lazyList) Collect() ([]any, error) {
	l.calls++
	return l.items, l.err
}

type brokenTable struct{}

func (brokenTable) Records() ([]map[string]any, error) {
	return nil, errors.New("boom")
}

func TestFormat_TabularUnpaged(t *testing.T) {
	f := frame.New([]string{"a"}, [][]any{{1}, {2}})
	out, err := Format(f, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"a": int64(1)}, {"a": int64(2)}}, out)
}

func TestFormat_TabularPaged(t *testing.T) {
	rows := make([][]any, 250)
	for i := range rows {
		rows[i] = []any{i}
	}
	f := frame.New([]string{"n"}, rows)

	out, err := Format(f, 3, 0)
	require.NoError(t, err)
	page, ok := out.(Page)
	require.True(t, ok)
	assert.Equal(t, 250, page.TotalRecords)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	data := page.Data.([]map[string]any)
	require.Len(t, data, 50)
	assert.Equal(t, int64(200), data[0]["n"])
}

func TestFormat_PageBeyondEndIsEmpty(t *testing.T) {
	out, err := Format(&lazyList{items: []any{1, 2, 3}}, 5, 2)
	require.NoError(t, err)
	page := out.(Page)
	assert.Empty(t, page.Data)
	assert.Equal(t, 3, page.TotalRecords)
}

func TestFormat_HugePageOrPageSizeDoesNotOverflow(t *testing.T) {
	items := make([]any, 250)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name      string
		page      int
		pageSize  int
		wantLen   int
		wantFirst any
	}{
		{name: "page times size overflows", page: math.MaxInt / 50, pageSize: 100, wantLen: 0},
		{name: "max page", page: math.MaxInt, pageSize: math.MaxInt, wantLen: 0},
		{name: "first page of max size", page: 1, pageSize: math.MaxInt, wantLen: 250, wantFirst: 0},
		{name: "second page of max size", page: 2, pageSize: math.MaxInt, wantLen: 0},
		{name: "last partial page", page: 3, pageSize: 100, wantLen: 50, wantFirst: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Format(&lazyList{items: items}, tt.page, tt.pageSize)
			require.NoError(t, err)
			page := out.(Page)
			assert.Equal(t, 250, page.TotalRecords)
			data := page.Data.([]any)
			require.Len(t, data, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, data[0])
			}
		})
	}
}

func TestFormat_CollectionMaterializedOnce(t *testing.T) {
	l := &lazyList{items: []any{"x", "y"}}
	out, err := Format(l, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, out)
	assert.Equal(t, 1, l.calls)
}

func TestFormat_Errors(t *testing.T) {
	_, err := Format(brokenTable{}, 0, 0)
	assert.ErrorContains(t, err, "boom")

	_, err = Format(&lazyList{err: errors.New("lost executor")}, 1, 10)
	assert.ErrorContains(t, err, "lost executor")
}

func TestFormat_PassThroughAndScalars(t *testing.T) {
	list := []int{1, 2, 3}
	out, err := Format(list, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, list, out)

	out, err = Format(42, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	out, err = Format(nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "<nil>", out)
}

func TestNeedsStream(t *testing.T) {
	assert.False(t, NeedsStream(StreamThreshold))
	assert.True(t, NeedsStream(StreamThreshold+1))
}

func TestStreamJSON_FlushesAndDecodes(t *testing.T) {
	rec := httptest.NewRecorder()
	records := []map[string]any{{"a": 1}, {"a": 2}}

	require.NoError(t, StreamJSON(rec, records))
	assert.True(t, rec.Flushed)

	var doc struct {
		Data []map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, []map[string]int{{"a": 1}, {"a": 2}}, doc.Data)
}

func TestStreamJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StreamJSON[any](&buf, nil))
	assert.Equal(t, `{"data": []}`, buf.String())
}
