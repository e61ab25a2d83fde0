package writer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w
}

func TestWriter_ReturnsMutationResult(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	assert.NoError(t, w.Do(ctx, func(context.Context) error { return nil }))

	want := errors.New("rejected")
	assert.ErrorIs(t, w.Do(ctx, func(context.Context) error { return want }), want)
}

func TestWriter_SerializesMutations(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	var (
		active    int32
		maxActive int32
		counter   int32
		wg        sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Do(ctx, func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				atomic.AddInt32(&counter, 1)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), atomic.LoadInt32(&counter))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestWriter_RecoversPanics(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	err := w.Do(ctx, func(context.Context) error { panic("boom") })
	assert.ErrorContains(t, err, "boom")

	assert.NoError(t, w.Do(ctx, func(context.Context) error { return nil }))
}

func TestWriter_CancelledContextIsNotQueued(t *testing.T) {
	w := newTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := w.Do(ctx, func(context.Context) error { ran = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestWriter_StoppedRejectsWork(t *testing.T) {
	w, err := New(zap.NewNop())
	require.NoError(t, err)
	w.Stop()
	w.Stop()

	err = w.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}
