package figure

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestFigure_SavePNG(t *testing.T) {
	f := New()
	f.Title = "growth"
	require.NoError(t, f.Line([]float64{1, 2, 3}, []float64{2, 4, 8}, "series"))
	require.NoError(t, f.Scatter(nil, []float64{1, 3, 2}, ""))
	require.NoError(t, f.Bar([]string{"a", "b"}, []float64{5, 7}, "bars"))

	path := filepath.Join(t.TempDir(), "out", "cell_1_figure.png")
	require.NoError(t, f.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestFigure_EmptyStillRenders(t *testing.T) {
	f := New()
	assert.True(t, f.Empty())

	path := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, f.Save(path))
	assert.FileExists(t, path)
}

func TestFigure_InputErrors(t *testing.T) {
	f := New()

	assert.ErrorIs(t, f.Line(nil, nil, ""), ErrNoData)
	assert.Error(t, f.Line([]float64{1, 2}, []float64{1}, ""))
	assert.ErrorIs(t, f.Bar(nil, nil, ""), ErrNoData)
	assert.Error(t, f.Bar([]string{"a"}, []float64{1, 2}, ""))
	assert.True(t, f.Empty())
}

func TestFigure_DefaultXAxis(t *testing.T) {
	f := New()
	require.NoError(t, f.Line(nil, []float64{5, 6, 7}, ""))
	assert.Equal(t, []float64{0, 1, 2}, f.Series[0].X)
}
