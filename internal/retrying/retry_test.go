package retrying

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 2, func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 2, func(attempt int) error {
		calls++
		if calls < 3 {
			return MarkRetryable(errors.New("429 rate limited"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 2, func(attempt int) error {
		calls++
		return MarkRetryable(errors.New("still failing"))
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestDoNeverRetriesNonRetryableError(t *testing.T) {
	calls := 0
	sentinel := errors.New("invalid params")
	err := Do(context.Background(), 2, func(attempt int) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryDelayCapsAtTwoSeconds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := retryDelay(attempt)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestPollDelayGrowsAndCaps(t *testing.T) {
	pd := NewPollDelay(1*time.Second, 5*time.Second)
	first := pd.Next()
	assert.Equal(t, 1*time.Second, first)

	var last time.Duration
	for i := 0; i < 10; i++ {
		last = pd.Next()
	}
	assert.LessOrEqual(t, last, 5*time.Second)
}

func TestSleepRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Second)
	assert.Error(t, err)
}
