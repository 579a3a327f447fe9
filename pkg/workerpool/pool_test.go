package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_SubmitReturnsJobError(t *testing.T) {
	p := New(&Config{Workers: 1, QueueSize: 4}, zap.NewNop())
	defer p.Shutdown(context.Background())

	want := errors.New("smtp down")
	err := p.Submit(context.Background(), "mail", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = p.Submit(context.Background(), "panic", func(context.Context) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	p := New(&Config{Workers: 2, QueueSize: 16}, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.SubmitAsync(context.Background(), "count", func(context.Context) error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.EqualValues(t, 10, ran.Load())

	err := p.SubmitAsync(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolClosed)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_QueueFull(t *testing.T) {
	p := New(&Config{Workers: 1, QueueSize: 1}, zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.SubmitAsync(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.SubmitAsync(context.Background(), "queued", func(context.Context) error { return nil }))

	err := p.SubmitAsync(context.Background(), "overflow", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolFull)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}
