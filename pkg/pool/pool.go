// Package pool provides the small-object allocation primitives shared by
// the value, map, and sequence packages: capped freelists for hot cell
// types and an interned short-string table for map keys.
package pool

import "sync"

// Freelist is a capped, mutex-guarded pool of *T. It is intentionally
// simple — a single mutex, no per-P sharding — because the runtime
// documents freelists as not thread-safe across the board (see
// SPEC_FULL.md §domain stack); callers that run freelists under the
// threaded refcount path are expected to serialize access themselves or
// accept malloc fallback under contention.
type Freelist[T any] struct {
	mu    sync.Mutex
	items []*T
	max   int
}

// NewFreelist returns a freelist capped at max recycled items.
func NewFreelist[T any](max int) *Freelist[T] {
	return &Freelist[T]{max: max}
}

// Get pops a recycled item if one is available, otherwise calls newFn.
func (f *Freelist[T]) Get(newFn func() *T) *T {
	f.mu.Lock()
	n := len(f.items)
	if n == 0 {
		f.mu.Unlock()
		return newFn()
	}
	v := f.items[n-1]
	f.items = f.items[:n-1]
	f.mu.Unlock()
	return v
}

// Put recycles v, dropping it if the freelist is at capacity.
func (f *Freelist[T]) Put(v *T) {
	f.mu.Lock()
	if len(f.items) < f.max {
		f.items = append(f.items, v)
	}
	f.mu.Unlock()
}

// Len reports the number of currently recycled items (test/diagnostic use).
func (f *Freelist[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// InternTable is a shared pool of interned short strings: equal strings
// share the same backing, so callers may compare by pointer identity once
// both sides have been interned. It is sized for map keys (see
// hashmap.maxInternKeyLen) and is safe for concurrent use: every operation
// takes its RWMutex.
type InternTable struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewInternTable returns an empty intern table.
func NewInternTable() *InternTable {
	return &InternTable{m: make(map[string]string)}
}

// Intern returns the canonical backing for s, storing s the first time it
// is seen.
func (t *InternTable) Intern(s string) string {
	t.mu.RLock()
	if v, ok := t.m[s]; ok {
		t.mu.RUnlock()
		return v
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.m[s]; ok {
		return v
	}
	t.m[s] = s
	return s
}

// Release drops s from the intern table when the caller believes it holds
// the last reference. It is best-effort: a concurrent Intern racing with
// Release may keep the entry alive, which is harmless (the string is
// merely no longer guaranteed deduplicated).
func (t *InternTable) Release(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, s)
}

// Len reports the number of distinct interned strings (test/diagnostic use).
func (t *InternTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
