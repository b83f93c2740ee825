package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONDecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := doJSON(context.Background(), time.Second, http.MethodGet, srv.URL, "", nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoJSONMapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	err := doJSON(context.Background(), time.Second, http.MethodGet, srv.URL, "Bearer x", nil, nil)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestDoJSONMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := doJSON(context.Background(), time.Second, http.MethodGet, srv.URL, "", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.True(t, IsRetryable(err))

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	require.NotNil(t, rl.RetryAfterMs)
	assert.Equal(t, int64(2000), *rl.RetryAfterMs)
}

func TestDoJSONMaps5xxAsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := doJSON(context.Background(), time.Second, http.MethodGet, srv.URL, "", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestDoJSONTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	err := doJSON(context.Background(), 5*time.Millisecond, http.MethodGet, srv.URL, "", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
