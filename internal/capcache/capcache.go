// Package capcache is the Capability Cache: a TTL'd answer to "does this
// model reliably emit structured output?", with at-most-one probe in
// flight per model id (spec.md §3, §4.3, invariant I5).
//
// The shape mirrors the teacher's file-backed internal/cache (TTL entries,
// Get/Put, expire-on-read) but is in-memory — the capability signal is
// process lifetime, not something worth persisting across restarts — and
// adds the singleflight guarantee the teacher's cache never needed because
// its callers were never racing each other for the same key.
package capcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultTTL = time.Hour

type entry struct {
	value   bool
	expires time.Time
}

// Cache answers structured-output capability lookups with a 1-hour TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	group   singleflight.Group
}

// New builds a Cache with the spec's 1-hour TTL.
func New() *Cache {
	return NewWithTTL(defaultTTL)
}

// NewWithTTL builds a Cache with a custom TTL, for tests exercising
// expiry without sleeping an hour.
func NewWithTTL(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]entry), ttl: ttl}
}

// Lookup returns the cached value for modelID, if present and unexpired.
func (c *Cache) Lookup(modelID string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[modelID]
	if !ok || time.Now().After(e.expires) {
		return false, false
	}
	return e.value, true
}

// Set stores a value for modelID, starting a fresh TTL window.
func (c *Cache) Set(modelID string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[modelID] = entry{value: value, expires: time.Now().Add(c.ttl)}
}

// Invalidate removes a cached value so the next lookup misses. The sync
// engine does not call it: on a format error or timeout from the structured
// endpoint it overwrites the entry with Set(false).
func (c *Cache) Invalidate(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, modelID)
}

// Probe is the caller-supplied function that actually queries upstream.
// It returns the structured-output verdict to cache.
type Probe func(ctx context.Context) (bool, error)

// GetOrProbe returns the cached value for modelID, or — on a cache miss —
// runs probe exactly once even if many goroutines call GetOrProbe for the
// same modelID concurrently (spec.md I5: "concurrent first-time lookups
// produce exactly one probe"). The probe's result is cached on success;
// on error, nothing is cached and the error is returned to every waiter.
func (c *Cache) GetOrProbe(ctx context.Context, modelID string, probe Probe) (bool, error) {
	if v, ok := c.Lookup(modelID); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(modelID, func() (any, error) {
		// Re-check under the singleflight key: another caller's probe may
		// have completed and populated the cache between our Lookup above
		// and acquiring the singleflight slot.
		if v, ok := c.Lookup(modelID); ok {
			return v, nil
		}
		result, err := probe(ctx)
		if err != nil {
			return false, err
		}
		c.Set(modelID, result)
		return result, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
