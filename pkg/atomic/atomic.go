// Package atomic implements the ATOMIC tag (C9): a 64-bit sequentially
// consistent cell with load/store/add/compare-and-swap, mapped directly
// onto sync/atomic the way spec.md §4.8 describes ("operations map
// directly to sequentially-consistent built-ins").
package atomic

import (
	"sync/atomic"

	"github.com/strada-lang/runtime/pkg/value"
)

// Cell is the backing payload of ATOMIC-tagged values.
type Cell struct {
	n int64
}

func init() {
	value.RegisterDestructor(value.Atomic, func(v *value.Value) {
		// Cell holds no owned references; Go's GC reclaims it directly.
	})
}

// New returns an atomic cell initialized to n, wrapped in an owning
// ATOMIC value.
func New(n int64) *value.Value {
	return value.NewTagged(value.Atomic, &Cell{n: n})
}

func from(v *value.Value) *Cell {
	c, _ := v.Payload().(*Cell)
	return c
}

// Payload exposes the backing Cell for a given ATOMIC value, or nil.
func Payload(v *value.Value) *Cell { return from(v) }

// Load reads the current value.
func (c *Cell) Load() int64 { return atomic.LoadInt64(&c.n) }

// Store overwrites the current value.
func (c *Cell) Store(n int64) { atomic.StoreInt64(&c.n, n) }

// Add atomically adds delta and returns the new value.
func (c *Cell) Add(delta int64) int64 { return atomic.AddInt64(&c.n, delta) }

// Sub atomically subtracts delta and returns the new value.
func (c *Cell) Sub(delta int64) int64 { return atomic.AddInt64(&c.n, -delta) }

// Inc atomically increments by 1 and returns the new value.
func (c *Cell) Inc() int64 { return atomic.AddInt64(&c.n, 1) }

// Dec atomically decrements by 1 and returns the new value.
func (c *Cell) Dec() int64 { return atomic.AddInt64(&c.n, -1) }

// CompareAndSwap succeeds if the current value equals old, replacing it
// with newVal; reports whether the swap happened.
func (c *Cell) CompareAndSwap(old, newVal int64) bool {
	return atomic.CompareAndSwapInt64(&c.n, old, newVal)
}
