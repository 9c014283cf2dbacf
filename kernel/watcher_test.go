package kernel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/testutil"
	"github.com/Kirito034/DataVita/testutil/mocks"
)

func TestScriptWatcher_PollRunsNewAndChangedFiles(t *testing.T) {
	dir := t.TempDir()
	runner := mocks.NewMockFileRunner("ok", "")
	w := NewScriptWatcher(dir, time.Hour, runner, zap.NewNop())
	ctx := testutil.TestContext(t)

	testutil.WriteFile(t, dir, "b.js", "var result = 1;")
	testutil.WriteFile(t, dir, "a.js", "var result = 2;")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	assert.Equal(t, []string{"a.js", "b.js"}, w.Poll(ctx))
	assert.Empty(t, w.Poll(ctx))

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "b.js"), later, later))
	assert.Equal(t, []string{"b.js"}, w.Poll(ctx))

	assert.Equal(t, []string{"a.js", "b.js", "b.js"}, runner.Files())
}

func TestScriptWatcher_FailuresDoNotStopPolling(t *testing.T) {
	dir := t.TempDir()
	runner := mocks.NewMockFileRunner("", "Error: boom")
	w := NewScriptWatcher(dir, time.Hour, runner, nil)

	testutil.WriteFile(t, dir, "bad.js", "throw new Error('boom');")
	assert.Equal(t, []string{"bad.js"}, w.Poll(testutil.TestContext(t)))

	testutil.WriteFile(t, dir, "next.js", "var result = 1;")
	assert.Equal(t, []string{"next.js"}, w.Poll(testutil.TestContext(t)))
}

func TestScriptWatcher_StartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	runner := mocks.NewMockFileRunner("ok", "")
	w := NewScriptWatcher(dir, 20*time.Millisecond, runner, zap.NewNop())

	require.NoError(t, w.Start(testutil.TestContext(t)))
	assert.Error(t, w.Start(testutil.TestContext(t)))
	assert.Equal(t, dir, w.Dir())

	testutil.WriteFile(t, dir, "job.js", "var result = 1;")
	testutil.AssertEventuallyTrue(t, func() bool { return len(runner.Files()) == 1 }, 2*time.Second)

	w.Stop()
	w.Stop()
	assert.Equal(t, []string{"job.js"}, runner.Files())
}

func TestScriptWatcher_MissingDirectory(t *testing.T) {
	w := NewScriptWatcher(filepath.Join(t.TempDir(), "absent"), 0, mocks.NewMockFileRunner("", ""), nil)
	assert.Nil(t, w.Poll(testutil.TestContext(t)))
}
