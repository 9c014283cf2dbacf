package pool

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunReturnsTaskError(t *testing.T) {
	p := NewWorkerPool(Config{MaxWorkers: 2, QueueSize: 4})
	defer p.Close()

	want := errors.New("bad cell")
	err := p.Run(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = p.Run(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)

	st := p.Stats()
	assert.Equal(t, int64(2), st.Submitted)
	assert.Equal(t, int64(1), st.Completed)
	assert.Equal(t, int64(1), st.Failed)
}

func TestWorkerPool_PanicIsRecovered(t *testing.T) {
	var handled atomic.Value
	p := NewWorkerPool(Config{MaxWorkers: 1, QueueSize: 1, PanicHandler: func(v any) { handled.Store(v) }})
	defer p.Close()

	err := p.Run(context.Background(), func(context.Context) error { panic("kaboom") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Equal(t, "kaboom", handled.Load())

	// 工作协程在 panic 后仍然可用
	assert.NoError(t, p.Run(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, int64(1), p.Stats().Panicked)
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	p := NewWorkerPool(Config{MaxWorkers: 2, QueueSize: 16})
	defer p.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(8), p.Stats().Completed)
}

func TestWorkerPool_RunHonoursContext(t *testing.T) {
	p := NewWorkerPool(Config{MaxWorkers: 1, QueueSize: 1})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_Close(t *testing.T) {
	p := NewWorkerPool(Config{MaxWorkers: 1, QueueSize: 1})

	require.NoError(t, p.Run(context.Background(), func(context.Context) error { return nil }))

	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Run(context.Background(), func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestByteBufferPool(t *testing.T) {
	buf := ByteBufferPool.Get()
	buf.WriteString("hello")
	ByteBufferPool.Put(buf)

	again := ByteBufferPool.Get()
	assert.Zero(t, again.Len())
	ByteBufferPool.Put(again)

	p := newPool(func() *bytes.Buffer { return new(bytes.Buffer) }, nil)
	p.Put(p.Get())
	st := p.Stats()
	assert.Equal(t, int64(1), st.Gets)
	assert.Equal(t, int64(1), st.Puts)
	assert.Equal(t, int64(1), st.News)
	assert.Zero(t, ObjectStats{}.HitRate())
	assert.InDelta(t, 0.75, ObjectStats{Gets: 4, News: 1}.HitRate(), 1e-9)
}
