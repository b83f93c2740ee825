package capcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndLookup(t *testing.T) {
	c := New()
	c.Set("openai:gpt-5", true)
	v, ok := c.Lookup("openai:gpt-5")
	require.True(t, ok)
	assert.True(t, v)
}

func TestLookupMissReturnsFalseOk(t *testing.T) {
	c := New()
	_, ok := c.Lookup("openai:gpt-5")
	assert.False(t, ok)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := NewWithTTL(10 * time.Millisecond)
	c.Set("openai:gpt-5", true)
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Lookup("openai:gpt-5")
	assert.False(t, ok)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New()
	c.Set("openai:gpt-5", true)
	c.Invalidate("openai:gpt-5")
	_, ok := c.Lookup("openai:gpt-5")
	assert.False(t, ok)
}

func TestGetOrProbeCachesResult(t *testing.T) {
	c := New()
	var calls int32
	probe := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}

	v, err := c.GetOrProbe(context.Background(), "openai:gpt-5", probe)
	require.NoError(t, err)
	assert.True(t, v)

	v2, err := c.GetOrProbe(context.Background(), "openai:gpt-5", probe)
	require.NoError(t, err)
	assert.True(t, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrProbeSharesInFlightProbe(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})
	probe := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return true, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrProbe(context.Background(), "openai:gpt-5", probe)
			assert.NoError(t, err)
			assert.True(t, v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrProbeDoesNotCacheOnError(t *testing.T) {
	c := New()
	probeErr := assert.AnError
	_, err := c.GetOrProbe(context.Background(), "openai:gpt-5", func(ctx context.Context) (bool, error) {
		return false, probeErr
	})
	assert.ErrorIs(t, err, probeErr)

	_, ok := c.Lookup("openai:gpt-5")
	assert.False(t, ok)
}
