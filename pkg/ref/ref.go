// Package ref implements the reference cell and weak-ref registry (C6):
// strong refs incref their target, weak refs are tracked in a bucketed
// registry keyed by the target pointer and nulled out when the target is
// freed. The registry is a fixed table of buckets, each with its own
// mutex, plus a sticky bypass flag, a shape taken from the teacher pack's
// blob describe cache (pkg/blob) and GC notify path (pkg/gc).
package ref

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/strada-lang/runtime/pkg/value"
)

const registryBuckets = 256

// Cell is the backing payload of REF-tagged values. Whether the cell is
// weak lives on the owning Value's Meta (SetWeak/IsWeak), not here, so the
// two stay in lockstep without a second flag to forget to update.
type Cell struct {
	target *value.Value
}

func init() {
	value.RegisterDestructor(value.Ref, func(v *value.Value) {
		c, _ := v.Payload().(*Cell)
		if c == nil {
			return
		}
		if v.IsWeak() {
			unregisterWeak(v)
		} else {
			value.Decref(c.target)
		}
		c.target = nil
	})
}

// weakEverUsed gates the notify path in free; until a first weak ref is
// registered, target death costs nothing.
var weakEverUsed atomic.Bool

type bucket struct {
	mu    sync.Mutex
	cells map[*value.Value][]*value.Value // target -> REF-tagged cells pointing at it
}

var registry [registryBuckets]bucket

func bucketFor(target *value.Value) *bucket {
	h := uintptr(unsafe.Pointer(target))
	idx := (h >> 4) % registryBuckets
	return &registry[idx]
}

// Create allocates a strong REF cell pointing at target, incrementing it.
func Create(target *value.Value) *value.Value {
	value.Incref(target)
	return CreateTake(target)
}

// CreateTake allocates a strong REF cell without incrementing target: the
// caller donates its reference.
func CreateTake(target *value.Value) *value.Value {
	return value.NewTagged(value.Ref, &Cell{target: target})
}

// Deref returns the target as an owned (incremented) value. A cleared weak
// target yields the undef singleton.
func Deref(refVal *value.Value) *value.Value {
	c, _ := refVal.Payload().(*Cell)
	if c == nil || c.target == nil {
		return value.UndefSingleton
	}
	value.Incref(c.target)
	return c.target
}

// DerefBorrow returns the target without incrementing, for read-only use.
func DerefBorrow(refVal *value.Value) *value.Value {
	c, _ := refVal.Payload().(*Cell)
	if c == nil || c.target == nil {
		return value.UndefSingleton
	}
	return c.target
}

// DerefSet replaces the target's scalar storage in place, mimicking
// lvalue assignment through a reference: it copies newValue's
// representation into the existing target cell rather than repointing
// the Cell, so all other holders of the same target observe the change.
func DerefSet(refVal *value.Value, newValue *value.Value) {
	c, _ := refVal.Payload().(*Cell)
	if c == nil || c.target == nil {
		return
	}
	value.CopyInto(c.target, newValue)
}

// RefType returns the tag name of the referenced target, or "" if the
// target is gone.
func RefType(refVal *value.Value) string {
	c, _ := refVal.Payload().(*Cell)
	if c == nil || c.target == nil {
		return ""
	}
	return c.target.Tag().String()
}

// Weaken converts refVal into a weak reference. Per spec.md §4.5: a
// shared cell (refcount>1) is cloned into a fresh weak cell so only the
// caller's handle is affected; a refcount-1 cell converts in place and
// releases its strong hold on the target.
func Weaken(refVal *value.Value) *value.Value {
	c, _ := refVal.Payload().(*Cell)
	if c == nil || refVal.IsWeak() {
		return refVal
	}
	if refVal.Refcount() > 1 {
		clone := &Cell{target: c.target}
		cloneVal := value.NewTagged(value.Ref, clone)
		cloneVal.SetWeak(true)
		registerWeak(cloneVal, c.target)
		return cloneVal
	}
	refVal.SetWeak(true)
	registerWeak(refVal, c.target)
	value.Decref(c.target)
	return refVal
}

func registerWeak(refVal *value.Value, target *value.Value) {
	weakEverUsed.Store(true)
	b := bucketFor(target)
	b.mu.Lock()
	if b.cells == nil {
		b.cells = make(map[*value.Value][]*value.Value)
	}
	b.cells[target] = append(b.cells[target], refVal)
	b.mu.Unlock()
}

func unregisterWeak(refVal *value.Value) {
	c, _ := refVal.Payload().(*Cell)
	if c == nil || c.target == nil {
		return
	}
	b := bucketFor(c.target)
	b.mu.Lock()
	list := b.cells[c.target]
	for i, r := range list {
		if r == refVal {
			list[i] = list[len(list)-1]
			b.cells[c.target] = list[:len(list)-1]
			break
		}
	}
	b.mu.Unlock()
}

// NotifyTargetFreed is invoked (via value.RegisterPreFreeHook) when any
// value is about to be freed: it nulls out every weak cell pointing at it.
// Bypassed entirely when no weak ref has ever been registered.
func NotifyTargetFreed(target *value.Value) {
	if !weakEverUsed.Load() {
		return
	}
	b := bucketFor(target)
	b.mu.Lock()
	list := b.cells[target]
	delete(b.cells, target)
	b.mu.Unlock()
	for _, refVal := range list {
		if c, _ := refVal.Payload().(*Cell); c != nil {
			c.target = nil
		}
	}
}

func init() {
	value.RegisterPreFreeHook(NotifyTargetFreed)
}

// Payload exposes the backing Cell for a given REF value, or nil.
func Payload(v *value.Value) *Cell {
	c, _ := v.Payload().(*Cell)
	return c
}
