package limiter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelgate/modelgate/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	tbl := NewWithCapacities(map[registry.Provider]int64{registry.OpenAI: 1})
	ctx := context.Background()

	require.NoError(t, tbl.Acquire(ctx, registry.OpenAI))
	assert.False(t, tbl.TryAcquire(registry.OpenAI), "capacity is 1, second acquire must not succeed")
	tbl.Release(registry.OpenAI)
	assert.True(t, tbl.TryAcquire(registry.OpenAI))
	tbl.Release(registry.OpenAI)
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 3
	tbl := NewWithCapacities(map[registry.Provider]int64{registry.Anthropic: capacity})

	var inFlight int64
	var maxSeen int64
	done := make(chan struct{})

	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			ctx := context.Background()
			_ = tbl.Acquire(ctx, registry.Anthropic)
			defer tbl.Release(registry.Anthropic)

			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt64(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(capacity))
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	tbl := NewWithCapacities(map[registry.Provider]int64{registry.XAI: 1})
	require.NoError(t, tbl.Acquire(context.Background(), registry.XAI))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tbl.Acquire(ctx, registry.XAI)
	assert.Error(t, err)
}

func TestUnknownProviderGetsUsableSemaphore(t *testing.T) {
	tbl := New()
	assert.NoError(t, tbl.Acquire(context.Background(), registry.Provider("unknown")))
}
