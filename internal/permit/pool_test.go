package permit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AcquireRelease(t *testing.T) {
	p := NewPool(2)

	require.NoError(t, p.Acquire(context.Background()))
	require.NoError(t, p.Acquire(context.Background()))
	assert.Equal(t, 2, p.InUse())

	p.Release()
	assert.Equal(t, 1, p.InUse())
	p.Release()
	assert.Equal(t, 0, p.InUse())
	assert.Equal(t, 2, p.Peak())
}

func TestPool_BlocksWhenExhausted(t *testing.T) {
	p := NewPool(1)
	require.NoError(t, p.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release()
}

func TestPool_PeakNeverExceedsSize(t *testing.T) {
	const size = 4
	const workers = 32
	p := NewPool(size)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.With(context.Background(), func(ctx context.Context) error {
				time.Sleep(time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.Peak(), size)
	assert.Equal(t, 0, p.InUse())
}

func TestPool_WithReleasesOnError(t *testing.T) {
	p := NewPool(1)

	_ = p.With(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})

	// Permit must be free again.
	require.NoError(t, p.Acquire(context.Background()))
	p.Release()
}

func TestPool_MinimumSize(t *testing.T) {
	p := NewPool(0)
	assert.Equal(t, 1, p.Size())
}
