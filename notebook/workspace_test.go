package notebook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellName(t *testing.T) {
	assert.Equal(t, "None", CellName(""))
	assert.Equal(t, "7", CellName("7"))
	assert.Equal(t, "passwd", CellName("../../etc/passwd"))
}

func TestWorkspace_Paths(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(w.Dir(), "cell_3_figure.png"), w.FigurePath("3"))
	assert.Equal(t, filepath.Join(w.Dir(), "cell_None_output.csv"), w.CSVPath(""))
}

func TestWorkspace_CellInputOutput(t *testing.T) {
	w, err := NewWorkspace(filepath.Join(t.TempDir(), "ws"))
	require.NoError(t, err)

	files, ok, err := w.ListFiles()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, files)

	out, err := w.ReadCellOutput("1")
	require.NoError(t, err)
	assert.Equal(t, NoOutputMessage, out)

	path, err := w.SaveCellInput("1", "print(1)")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))

	_, err = w.SaveCellOutput("1", "1\n")
	require.NoError(t, err)
	out, err = w.ReadCellOutput("1")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	files, ok, err = w.ListFiles()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"cell_1.js", "cell_1_output.txt"}, files)
}
