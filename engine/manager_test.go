package engine

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) ObserveEngineSession(event string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestManager_SessionIsReused(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs := &recordingObserver{}
	m := NewManager(testEngineConfig(t), zap.New(core), WithObserver(obs))
	defer m.Stop()

	ctx := context.Background()
	first := m.Session(ctx)
	require.NotNil(t, first)
	second := m.Session(ctx)
	assert.Same(t, first, second)

	assert.Equal(t, 1, logs.FilterMessage("initializing engine session").Len())
	assert.Equal(t, 1, logs.FilterMessage("reusing engine session").Len())

	st := m.Stats()
	assert.Equal(t, int64(1), st.Initializations)
	assert.Equal(t, int64(1), st.Reuses)
	assert.True(t, st.Active)
	assert.Equal(t, []string{EventInit, EventReuse}, obs.events)
}

func TestManager_ConcurrentCallersShareOneSession(t *testing.T) {
	m := NewManager(testEngineConfig(t), zap.NewNop())
	defer m.Stop()

	const callers = 8
	sessions := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = m.Session(context.Background())
		}(i)
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, int64(1), m.Stats().Initializations)
}

func TestManager_FailedConstructionReturnsNil(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := testEngineConfig(t)
	cfg.Master = "mesos://nowhere"
	m := NewManager(cfg, zap.New(core))

	assert.Nil(t, m.Session(context.Background()))
	assert.Nil(t, m.Session(context.Background()))

	st := m.Stats()
	assert.Equal(t, int64(2), st.Failures)
	assert.False(t, st.Active)
	assert.Equal(t, 2, logs.FilterMessage("failed to initialize engine session").Len())
}

func TestManager_StopClearsSessionAndTempDir(t *testing.T) {
	cfg := testEngineConfig(t)
	m := NewManager(cfg, zap.NewNop())
	ctx := context.Background()

	s := m.Session(ctx)
	require.NotNil(t, s)
	db, err := m.Analytics(ctx)
	require.NoError(t, err)

	m.Stop()
	assert.True(t, s.Stopped())
	assert.Error(t, db.PingContext(ctx))
	_, err = os.Stat(cfg.TempDir)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, m.Stats().Active)

	m.Stop()
	assert.Equal(t, int64(1), m.Stats().Stops)

	next := m.Session(ctx)
	require.NotNil(t, next)
	assert.NotSame(t, s, next)
	m.Stop()
}

func TestManager_StopRetriesTempDirRemoval(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := testEngineConfig(t)
	cfg.CleanupRetries = 3

	calls := 0
	m := NewManager(cfg, zap.New(core), WithRemoveFunc(func(string) error {
		calls++
		return errors.New("directory busy")
	}))

	m.Stop()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, logs.FilterMessage("removing engine temp directory").Len())
	assert.Equal(t, 1, logs.FilterMessage("giving up on engine temp directory").Len())
}

func TestManager_StopSucceedsOnRetry(t *testing.T) {
	cfg := testEngineConfig(t)
	calls := 0
	m := NewManager(cfg, zap.NewNop(), WithRemoveFunc(func(dir string) error {
		calls++
		if calls < 2 {
			return errors.New("directory busy")
		}
		return os.RemoveAll(dir)
	}))

	m.Stop()
	assert.Equal(t, 2, calls)
}

func TestManager_AnalyticsIsLazyAndShared(t *testing.T) {
	m := NewManager(testEngineConfig(t), zap.NewNop())
	defer m.Stop()
	ctx := context.Background()

	a, err := m.Analytics(ctx)
	require.NoError(t, err)
	b, err := m.Analytics(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = a.ExecContext(ctx, "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	_, err = b.ExecContext(ctx, "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
}

func TestManager_AcquireBoundsConcurrentJobs(t *testing.T) {
	cfg := testEngineConfig(t)
	cfg.MaxConcurrentJobs = 1
	m := NewManager(cfg, zap.NewNop())

	release, err := m.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	again, err := m.Acquire(context.Background())
	require.NoError(t, err)
	again()
}

func TestManager_StopWaitsForRunningJobs(t *testing.T) {
	cfg := testEngineConfig(t)
	cfg.MaxConcurrentJobs = 2
	m := NewManager(cfg, zap.NewNop())
	ctx := context.Background()

	release, err := m.Acquire(ctx)
	require.NoError(t, err)
	s := m.Session(ctx)
	require.NotNil(t, s)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was still running")
	case <-time.After(100 * time.Millisecond):
	}
	assert.False(t, s.Stopped())
	_, err = s.SQL(ctx, "SELECT 1")
	assert.NoError(t, err)

	release()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not finish after the job released its slot")
	}
	assert.True(t, s.Stopped())
	assert.False(t, m.Stats().Active)
}

func TestManager_StopContextLeavesSessionWhenCancelled(t *testing.T) {
	m := NewManager(testEngineConfig(t), zap.NewNop())
	defer m.Stop()
	ctx := context.Background()

	release, err := m.Acquire(ctx)
	require.NoError(t, err)
	s := m.Session(ctx)
	require.NotNil(t, s)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = m.StopContext(short)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Stopped())
	assert.True(t, m.Stats().Active)
	assert.Equal(t, int64(0), m.Stats().Stops)
	release()
}
