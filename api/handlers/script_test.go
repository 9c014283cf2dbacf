package handlers

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/internal/pool"
	"github.com/Kirito034/DataVita/kernel"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/sandbox"
	"github.com/Kirito034/DataVita/testutil"
	"github.com/Kirito034/DataVita/testutil/fixtures"
)

type scriptEnv struct {
	mux   *http.ServeMux
	exec  *kernel.ScriptExecutor
	store *notebook.Store
	ws    *notebook.Workspace
}

func newScriptEnv(t *testing.T) scriptEnv {
	t.Helper()
	ws, err := notebook.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	st := notebook.NewStore(notebook.WithNotebookDir(t.TempDir()))
	workers := pool.NewWorkerPool(pool.Config{MaxWorkers: 2, QueueSize: 4})
	t.Cleanup(workers.Close)

	exec := kernel.NewScriptExecutor(testutil.ExecutionConfig(), st, ws, workers, zap.NewNop())
	mux := http.NewServeMux()
	NewScriptHandler(exec, ws, zap.NewNop()).Register(mux)
	return scriptEnv{mux: mux, exec: exec, store: st, ws: ws}
}

func TestScriptHandler_Validate(t *testing.T) {
	env := newScriptEnv(t)

	w := doJSON(t, env.mux, http.MethodPost, "/api/python/validate", CodeRequest{Code: "print(1)"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[ValidateResponse](t, w)
	assert.True(t, got.Safe)
	assert.Equal(t, []string{sandbox.SafeMessage}, got.Details)

	w = doJSON(t, env.mux, http.MethodPost, "/api/python/validate", CodeRequest{Code: fixtures.ForbiddenOS})
	got = decodeData[ValidateResponse](t, w)
	assert.False(t, got.Safe)
	assert.Contains(t, got.Details, "Forbidden import: os")
}

func TestScriptHandler_ExecuteSharesState(t *testing.T) {
	env := newScriptEnv(t)

	w := doJSON(t, env.mux, http.MethodPost, "/api/python/execute", CodeRequest{Code: fixtures.DefineX, CellID: "1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.mux, http.MethodPost, "/api/python/execute", CodeRequest{Code: fixtures.PrintX, CellID: "2"})
	out := decodeData[kernel.CellOutput](t, w)
	assert.Equal(t, "5\n", out.Stdout)
	assert.Empty(t, out.Stderr)
}

func TestScriptHandler_ExecuteFailureIsReportedInStderr(t *testing.T) {
	env := newScriptEnv(t)

	w := doJSON(t, env.mux, http.MethodPost, "/api/python/execute", CodeRequest{Code: `throw new Error("boom")`, CellID: "1"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeData[kernel.CellOutput](t, w)
	assert.Equal(t, "Error: boom", out.Stderr)
	assert.Empty(t, out.Artifacts)
}

func TestScriptHandler_CellFiles(t *testing.T) {
	env := newScriptEnv(t)

	w := doJSON(t, env.mux, http.MethodGet, "/api/python/files", nil)
	files := decodeData[map[string]any](t, w)
	assert.Equal(t, notebook.NoFilesMessage, files["message"])

	w = doJSON(t, env.mux, http.MethodGet, "/api/python/cells/7/output", nil)
	assert.Equal(t, notebook.NoOutputMessage, decodeData[map[string]string](t, w)["output"])

	w = doJSON(t, env.mux, http.MethodPost, "/api/python/cells/7/input", CodeRequest{Code: "print(7)"})
	saved := decodeData[map[string]string](t, w)
	assert.Equal(t, filepath.Join(env.ws.Dir(), "cell_7.js"), saved["path"])

	w = doJSON(t, env.mux, http.MethodPost, "/api/python/cells/7/output", CellOutputRequest{Output: "7\n"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.mux, http.MethodGet, "/api/python/cells/7/output", nil)
	assert.Equal(t, "7\n", decodeData[map[string]string](t, w)["output"])

	w = doJSON(t, env.mux, http.MethodGet, "/api/python/files", nil)
	files = decodeData[map[string]any](t, w)
	assert.Equal(t, []any{"cell_7.js", "cell_7_output.txt"}, files["files"])
}

func TestScriptHandler_RejectsMalformedBody(t *testing.T) {
	env := newScriptEnv(t)

	w := doJSON(t, env.mux, http.MethodPost, "/api/python/execute", map[string]any{"source": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
