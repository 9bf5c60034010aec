package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireUnknownEndpoint(t *testing.T) {
	g := New()
	_, err := g.Acquire(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, ErrUnknownEndpoint))
}

func TestSerialExecutionWithSingleSlot(t *testing.T) {
	g := New()
	g.Register("api", 1)

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			permit, err := g.Acquire(context.Background(), "api")
			require.NoError(t, err)
			defer permit.Release()

			cur := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxInFlight)
				if cur <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := New()
	g.Register("api", 1)

	permit, err := g.Acquire(context.Background(), "api")
	require.NoError(t, err)
	permit.Release()
	permit.Release()

	// a double release must not have freed a second slot
	second, err := g.Acquire(context.Background(), "api")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, "api")
	assert.Error(t, err)

	second.Release()
}

func TestReRegisterKeepsCapacity(t *testing.T) {
	g := New()
	g.Register("api", 1)
	g.Register("api", 10)

	permit, err := g.Acquire(context.Background(), "api")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, "api")
	assert.Error(t, err)

	permit.Release()
}
