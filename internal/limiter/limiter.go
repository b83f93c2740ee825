// Package limiter enforces per-provider concurrency caps on outbound
// upstream calls (spec.md §4.2).
package limiter

import (
	"context"
	"sync"

	"github.com/modelgate/modelgate/internal/registry"
	"golang.org/x/sync/semaphore"
)

// defaultCapacities are the fixed per-provider slot counts from spec.md §4.2.
var defaultCapacities = map[registry.Provider]int64{
	registry.OpenAI:    8,
	registry.Google:    6,
	registry.Anthropic: 6,
	registry.XAI:       4,
}

// Table holds one weighted semaphore per provider. Acquisitions are FIFO
// (guaranteed by semaphore.Weighted) and block until a slot frees up; they
// fail only when the caller's context is done first.
type Table struct {
	mu    sync.Mutex
	slots map[registry.Provider]*semaphore.Weighted
}

// New builds a Table with the spec's fixed capacities.
func New() *Table {
	return NewWithCapacities(defaultCapacities)
}

// NewWithCapacities builds a Table with custom capacities, primarily for
// tests that want to exercise blocking behavior with small numbers.
func NewWithCapacities(capacities map[registry.Provider]int64) *Table {
	t := &Table{slots: make(map[registry.Provider]*semaphore.Weighted, len(capacities))}
	for p, n := range capacities {
		t.slots[p] = semaphore.NewWeighted(n)
	}
	return t
}

// Acquire blocks until a slot for p is available or ctx is done. Every
// outbound upstream call, from both the sync and async engines, must
// acquire before sending and release on completion or cancellation
// (spec.md §4.2, §5). Retries re-acquire per attempt.
func (t *Table) Acquire(ctx context.Context, p registry.Provider) error {
	sem := t.forProvider(p)
	return sem.Acquire(ctx, 1)
}

// Release frees the slot acquired for p.
func (t *Table) Release(p registry.Provider) {
	t.forProvider(p).Release(1)
}

// TryAcquire attempts a non-blocking acquire, used only by tests asserting
// I6 (the semaphore never oversubscribes its capacity).
func (t *Table) TryAcquire(p registry.Provider) bool {
	return t.forProvider(p).TryAcquire(1)
}

func (t *Table) forProvider(p registry.Provider) *semaphore.Weighted {
	t.mu.Lock()
	defer t.mu.Unlock()
	sem, ok := t.slots[p]
	if !ok {
		// A provider outside the compile-time table gets an unbounded
		// semaphore rather than a nil-pointer panic; this only happens if
		// the model registry is extended without updating capacities.
		sem = semaphore.NewWeighted(1 << 30)
		t.slots[p] = sem
	}
	return sem
}
