package kernel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Kirito034/DataVita/frame"
	"github.com/Kirito034/DataVita/internal/pool"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/testutil"
	"github.com/Kirito034/DataVita/testutil/fixtures"
	"github.com/Kirito034/DataVita/testutil/mocks"
)

type scriptFixture struct {
	exec  *ScriptExecutor
	store *notebook.Store
	ws    *notebook.Workspace
}

func newScriptFixture(t *testing.T, logger *zap.Logger, opts ...Option) scriptFixture {
	t.Helper()
	ws, err := notebook.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	store := notebook.NewStore()
	workers := pool.NewWorkerPool(pool.Config{MaxWorkers: 2, QueueSize: 4})
	t.Cleanup(workers.Close)
	if logger == nil {
		logger = zap.NewNop()
	}
	return scriptFixture{
		exec:  NewScriptExecutor(testutil.ExecutionConfig(), store, ws, workers, logger, opts...),
		store: store,
		ws:    ws,
	}
}

func TestScriptExecutor_StatePersistsAcrossCells(t *testing.T) {
	f := newScriptFixture(t, nil)
	ctx := testutil.TestContext(t)

	out := f.exec.Execute(ctx, "1", fixtures.DefineX)
	assert.Empty(t, out.Stderr)
	assert.Empty(t, out.Artifacts)

	out = f.exec.Execute(ctx, "2", fixtures.PrintX)
	assert.Empty(t, out.Stderr)
	assert.Equal(t, "5\n", out.Stdout)

	v, ok := f.store.Get("x")
	require.True(t, ok)
	assert.EqualValues(t, 5, v)

	cells := f.store.Cells()
	require.Len(t, cells, 2)
	assert.Equal(t, "1", cells[0].ID)
	assert.Equal(t, "5\n", cells[1].Stdout)
}

func TestScriptExecutor_DeletedBindingDoesNotResurrect(t *testing.T) {
	f := newScriptFixture(t, nil)
	ctx := testutil.TestContext(t)

	out := f.exec.Execute(ctx, "1", "globalThis.tmp = 1; delete globalThis.tmp; var kept = 2;")
	require.Empty(t, out.Stderr)

	out = f.exec.Execute(ctx, "2", "print(typeof tmp, kept);")
	assert.Empty(t, out.Stderr)
	assert.Equal(t, "undefined 2\n", out.Stdout)

	_, ok := f.store.Get("tmp")
	assert.False(t, ok)
}

func TestScriptExecutor_FunctionsDoNotSurvive(t *testing.T) {
	f := newScriptFixture(t, nil)
	ctx := testutil.TestContext(t)

	out := f.exec.Execute(ctx, "1", "function double(n) { return n * 2; } var four = double(2);")
	require.Empty(t, out.Stderr)

	out = f.exec.Execute(ctx, "2", "print(typeof double, four);")
	assert.Equal(t, "undefined 4\n", out.Stdout)
}

func TestScriptExecutor_ValidationRejects(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := mocks.NewMockRecorder()
	f := newScriptFixture(t, zap.New(core), WithRecorder(rec))

	out := f.exec.Execute(testutil.TestContext(t), "1", fixtures.ForbiddenOS)

	assert.Empty(t, out.Stdout)
	assert.Empty(t, out.Artifacts)
	lines := strings.Split(out.Stderr, "\n")
	assert.Contains(t, lines, "Forbidden import: os")
	assert.Contains(t, lines, "Potentially unsafe attribute access: os.exit")
	assert.Empty(t, f.store.Cells())
	assert.Equal(t, []string{StatusRejected}, rec.Statuses())
	assert.Equal(t, 1, logs.FilterMessage("cell rejected by validator").Len())

	ok, details := f.exec.Validate("print(1)")
	assert.True(t, ok)
	assert.Equal(t, []string{"Code is safe."}, details)
}

func TestScriptExecutor_FailedCellLeavesStateUntouched(t *testing.T) {
	rec := mocks.NewMockRecorder()
	f := newScriptFixture(t, nil, WithRecorder(rec))
	ctx := testutil.TestContext(t)

	out := f.exec.Execute(ctx, "1", `var y = 1; print("partial"); throw new Error("boom");`)

	assert.Equal(t, "Error: boom", out.Stderr)
	assert.Empty(t, out.Stdout)
	_, ok := f.store.Get("y")
	assert.False(t, ok)
	assert.Empty(t, f.store.Cells())

	out = f.exec.Execute(ctx, "2", "missing + 1;")
	assert.Contains(t, out.Stderr, "ReferenceError")
	assert.Contains(t, out.Stderr, "missing")

	st := f.exec.Stats()
	assert.Equal(t, int64(2), st.TotalExecutions)
	assert.Equal(t, int64(2), st.FailedExecutions)
	assert.Equal(t, []string{StatusFailed, StatusFailed}, rec.Statuses())
}

func TestScriptExecutor_Timeout(t *testing.T) {
	rec := mocks.NewMockRecorder()
	f := newScriptFixture(t, nil, WithRecorder(rec))
	ctx := testutil.TestContextWithTimeout(t, 200*time.Millisecond)

	start := time.Now()
	out := f.exec.Execute(ctx, "loop", fixtures.InfiniteLoop)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "execution exceeded the job time limit", out.Stderr)
	assert.Equal(t, int64(1), f.exec.Stats().TimeoutExecutions)
	assert.Equal(t, []string{StatusTimeout}, rec.Statuses())
	assert.Empty(t, f.store.Cells())
}

func TestScriptExecutor_CapturesStreams(t *testing.T) {
	f := newScriptFixture(t, nil)

	out := f.exec.Execute(testutil.TestContext(t), "io", `console.log("hi", {a: 1}); console.error("careful");`)

	assert.Equal(t, "hi {\"a\":1}\n", out.Stdout)
	assert.Equal(t, "careful\n", out.Stderr)
	cell, ok := f.store.Cell("io")
	require.True(t, ok)
	assert.Equal(t, "careful\n", cell.Stderr)
}

func TestScriptExecutor_PlotShowWritesArtifact(t *testing.T) {
	f := newScriptFixture(t, nil)

	out := f.exec.Execute(testutil.TestContext(t), "p", fixtures.PlotLine)

	require.Empty(t, out.Stderr)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, notebook.ArtifactImage, out.Artifacts[0].Type)
	assert.Equal(t, f.ws.FigurePath("p"), out.Artifacts[0].Path)
	info, err := os.Stat(out.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestScriptExecutor_RerunOverwritesFigure(t *testing.T) {
	f := newScriptFixture(t, nil)
	ctx := testutil.TestContext(t)

	first := f.exec.Execute(ctx, "p", fixtures.PlotLine)
	require.Len(t, first.Artifacts, 1)
	second := f.exec.Execute(ctx, "p", "plt.bar(['a', 'b', 'c'], [3, 1, 2]); plt.show();")
	require.Len(t, second.Artifacts, 1)
	assert.Equal(t, first.Artifacts[0].Path, second.Artifacts[0].Path)

	matches, err := filepath.Glob(filepath.Join(f.ws.Dir(), "cell_p_*.png"))
	require.NoError(t, err)
	assert.Equal(t, []string{f.ws.FigurePath("p")}, matches)

	cells := f.store.Cells()
	require.Len(t, cells, 1)
	assert.Equal(t, second.Artifacts, cells[0].Artifacts)
}

func TestScriptExecutor_ProcessStreamsUntouched(t *testing.T) {
	f := newScriptFixture(t, nil)
	ctx := testutil.TestContext(t)
	stdout, stderr := os.Stdout, os.Stderr

	out := f.exec.Execute(ctx, "1", `print("before"); throw new Error("midway");`)
	assert.Equal(t, "Error: midway", out.Stderr)
	assert.Same(t, stdout, os.Stdout)
	assert.Same(t, stderr, os.Stderr)

	out = f.exec.Execute(ctx, "2", `print("after");`)
	assert.Equal(t, "after\n", out.Stdout)
	assert.NotContains(t, out.Stdout, "before")
}

func TestScriptExecutor_DataFrameRoundTrip(t *testing.T) {
	f := newScriptFixture(t, nil)
	ctx := testutil.TestContext(t)

	out := f.exec.Execute(ctx, "c", `var df = pd.DataFrame([{a: 1, b: "x"}, {a: 2, b: "y"}]); df.to_csv();`)
	require.Empty(t, out.Stderr)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, notebook.ArtifactCSV, out.Artifacts[0].Type)
	assert.Equal(t, f.ws.CSVPath("c"), out.Artifacts[0].Path)

	data, err := os.ReadFile(out.Artifacts[0].Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "a,b\n"))

	v, ok := f.store.Get("df")
	require.True(t, ok)
	df, ok := v.(*frame.Frame)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, df.Columns)

	out = f.exec.Execute(ctx, "d", `print(df.length, df.sum("a"));`)
	assert.Empty(t, out.Stderr)
	assert.Equal(t, "2 3\n", out.Stdout)
}

func TestScriptExecutor_ReadCSVFromWorkspace(t *testing.T) {
	f := newScriptFixture(t, nil)
	fixtures.WriteSalesCSV(t, f.ws.Dir(), "sales.csv")

	out := f.exec.Execute(testutil.TestContext(t), "r", `var sales = pd.read_csv("sales.csv"); print(sales.columns.join("|"), sales.length);`)
	assert.Empty(t, out.Stderr)
	assert.Equal(t, "region|product|amount 4\n", out.Stdout)

	out = f.exec.Execute(testutil.TestContext(t), "m", `pd.read_csv("nope.csv");`)
	assert.Contains(t, out.Stderr, "No such file or directory: 'nope.csv'")
}

func TestScriptExecutor_RequireModules(t *testing.T) {
	f := newScriptFixture(t, nil)

	out := f.exec.Execute(testutil.TestContext(t), "m", `const p = require("plot"); print(typeof p.show);`)
	assert.Empty(t, out.Stderr)
	assert.Equal(t, "function\n", out.Stdout)

	out = f.exec.Execute(testutil.TestContext(t), "n", `require("lodash");`)
	assert.Contains(t, out.Stderr, "Cannot find module 'lodash'")
}

func TestScriptExecutor_SavesFigureToWorkspacePath(t *testing.T) {
	f := newScriptFixture(t, nil)

	out := f.exec.Execute(testutil.TestContext(t), "s", `plt.bar(["a", "b"], [1, 2]); var saved = plt.savefig("charts/bars.png");`)
	require.Empty(t, out.Stderr)
	assert.Empty(t, out.Artifacts)

	_, err := os.Stat(filepath.Join(f.ws.Dir(), "charts", "bars.png"))
	assert.NoError(t, err)
}

func TestRecorders_FanOut(t *testing.T) {
	a, b := mocks.NewMockRecorder(), mocks.NewMockRecorder()
	rs := Recorders{a, nil, b}

	rs.RecordExecution(DialectScript, StatusSuccess, time.Millisecond)

	assert.Len(t, a.Calls(), 1)
	assert.Equal(t, mocks.Execution{Dialect: DialectScript, Status: StatusSuccess, Duration: time.Millisecond}, b.Calls()[0])
}
