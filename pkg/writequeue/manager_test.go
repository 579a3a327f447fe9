package writequeue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesPerKey(t *testing.T) {
	m := New(nil, nil)
	defer m.Shutdown(context.Background())

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Execute(context.Background(), "store", func() error {
				mu.Lock()
				inFlight++
				if inFlight > maxSeen {
					maxSeen = inFlight
				}
				mu.Unlock()

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestManager_PropagatesError(t *testing.T) {
	m := New(nil, nil)
	defer m.Shutdown(context.Background())

	want := errors.New("insert failed")
	err := m.Execute(context.Background(), "store", func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestManager_RejectsAfterShutdown(t *testing.T) {
	m := New(nil, nil)
	require.NoError(t, m.Execute(context.Background(), "store", func() error { return nil }))
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Execute(context.Background(), "store", func() error { return nil })
	assert.ErrorIs(t, err, ErrWriteQueueClosed)
}

func TestManager_CancelledContext(t *testing.T) {
	m := New(nil, nil)
	defer m.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Execute(ctx, "store", func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
