package pool

import (
	"sync"

	"github.com/strada-lang/runtime/internal/sieve"
)

// BoundedInternTable is an intern table like InternTable, but with a
// fixed capacity: once full, the SIEVE eviction algorithm (internal/
// sieve) picks an eviction candidate instead of growing unbounded.
// Embedders that intern a much wider vocabulary of short strings than
// map keys (e.g. a long-running process interning symbol names) can use
// this in place of InternTable to bound memory instead of relying on
// Release calls to keep the table small.
type BoundedInternTable struct {
	mu sync.Mutex
	s  *sieve.Sieve[string, string]
}

// NewBoundedInternTable returns an intern table capped at capacity
// distinct strings.
func NewBoundedInternTable(capacity int) *BoundedInternTable {
	return &BoundedInternTable{s: sieve.New[string, string](capacity, nil)}
}

// Intern returns the canonical backing for s, storing s the first time
// it is seen (or re-admitting it if it was evicted).
func (t *BoundedInternTable) Intern(s string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.s.Get(s); ok {
		return v
	}
	t.s.Add(s, s)
	return s
}

// Release drops s from the table early, same best-effort contract as
// InternTable.Release.
func (t *BoundedInternTable) Release(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Delete(s)
}

// Len reports the number of currently interned strings.
func (t *BoundedInternTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s.Len()
}
