// Package hashmap implements the chained-bucket Map (C4): power-of-two
// bucket count, a cached 32-bit hash per entry, interned short keys, and a
// single-threaded stateful iterator. The bucket-count-doubles-on-overload
// shape and the "never recompute the hash on resize" invariant are
// grounded on the Go runtime's own map implementation and the otter/
// threadsafe hashmap ports carried in the reference pack; unlike those,
// entries chain through a linked list per bucket rather than a bucket-of-8
// array, matching spec.md's simpler "chained-bucket" description.
package hashmap

import (
	"github.com/strada-lang/runtime/pkg/pool"
	"github.com/strada-lang/runtime/pkg/value"
)

const (
	initialBuckets  = 8
	maxInternKeyLen = 64
	loadFactorNum   = 3
	loadFactorDen   = 4
)

var keyIntern = pool.NewInternTable()

type entry struct {
	key      string
	hash     uint32
	val      *value.Value
	next     *entry
	interned bool
}

// Map is the backing store for HASH-tagged values.
type Map struct {
	buckets  []*entry
	count    int
	refcount int32

	iterBucket int
	iterEntry  *entry
}

func init() {
	value.RegisterDestructor(value.Hash, func(v *value.Value) {
		m, _ := v.Payload().(*Map)
		if m == nil {
			return
		}
		m.release()
	})
}

// New returns an empty map wrapped in an owning HASH value.
func New() *value.Value {
	m := &Map{buckets: make([]*entry, initialBuckets), refcount: 1}
	return value.NewTagged(value.Hash, m)
}

func from(v *value.Value) *Map {
	m, _ := v.Payload().(*Map)
	return m
}

// Payload exposes the backing Map for a given HASH value, or nil.
func Payload(v *value.Value) *Map { return from(v) }

func (m *Map) release() {
	for _, head := range m.buckets {
		for e := head; e != nil; {
			next := e.next
			value.Decref(e.val)
			if e.interned {
				keyIntern.Release(e.key)
			}
			e = next
		}
	}
	m.buckets = nil
	m.count = 0
}

// hashKey is a DJB2-style string hash, as named in spec.md §4.3.
func hashKey(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func (m *Map) bucketIndex(hash uint32) int {
	return int(hash) & (len(m.buckets) - 1)
}

func (m *Map) findEntry(key string, hash uint32) (*entry, int) {
	idx := m.bucketIndex(hash)
	for e := m.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			return e, idx
		}
	}
	return nil, idx
}

func internOrCopy(key string) (string, bool) {
	if len(key) <= maxInternKeyLen {
		return keyIntern.Intern(key), true
	}
	return key, false
}

func (m *Map) insertNew(key string, hash, idx uint32, val *value.Value, interned bool) {
	e := &entry{key: key, hash: hash, val: val, interned: interned, next: m.buckets[idx]}
	m.buckets[idx] = e
	m.count++
	m.maybeGrow()
}

// Set inserts or updates key, incrementing val's refcount. On update the
// new value is incremented before the old one is decremented, matching
// the scalar-assignment ownership rule (they may alias).
func (m *Map) Set(key string, val *value.Value) {
	hash := hashKey(key)
	if e, _ := m.findEntry(key, hash); e != nil {
		value.Incref(val)
		old := e.val
		e.val = val
		value.Decref(old)
		return
	}
	idx := m.bucketIndex(hash)
	interned, _ := internOrCopy(key)
	value.Incref(val)
	m.insertNew(interned, hash, uint32(idx), val, len(key) <= maxInternKeyLen)
}

// SetTake is like Set but donates val's reference instead of incrementing it.
func (m *Map) SetTake(key string, val *value.Value) {
	hash := hashKey(key)
	if e, _ := m.findEntry(key, hash); e != nil {
		old := e.val
		e.val = val
		value.Decref(old)
		return
	}
	idx := m.bucketIndex(hash)
	interned, _ := internOrCopy(key)
	m.insertNew(interned, hash, uint32(idx), val, len(key) <= maxInternKeyLen)
}

// Get returns a borrowed pointer to key's value, or the undef singleton on
// miss.
func (m *Map) Get(key string) *value.Value {
	hash := hashKey(key)
	if e, _ := m.findEntry(key, hash); e != nil {
		return e.val
	}
	return value.UndefSingleton
}

// GetOwned is like Get but increments the result, for callers that need
// ownership.
func (m *Map) GetOwned(key string) *value.Value {
	v := m.Get(key)
	value.Incref(v)
	return v
}

// Exists reports whether key is present.
func (m *Map) Exists(key string) bool {
	hash := hashKey(key)
	e, _ := m.findEntry(key, hash)
	return e != nil
}

// Delete removes key, decrementing its value and releasing an interned key.
func (m *Map) Delete(key string) bool {
	hash := hashKey(key)
	idx := m.bucketIndex(hash)
	var prev *entry
	for e := m.buckets[idx]; e != nil; prev, e = e, e.next {
		if e.hash != hash || e.key != key {
			continue
		}
		if prev == nil {
			m.buckets[idx] = e.next
		} else {
			prev.next = e.next
		}
		value.Decref(e.val)
		if e.interned {
			keyIntern.Release(e.key)
		}
		m.count--
		return true
	}
	return false
}

// Keys returns a fresh slice of keys in unspecified order.
func (m *Map) Keys() []string {
	out := make([]string, 0, m.count)
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			out = append(out, e.key)
		}
	}
	return out
}

// Values returns a fresh slice of borrowed value pointers in unspecified
// order (parallel to Keys' iteration, though no ordering is guaranteed
// across two separate calls on a mutated map).
func (m *Map) Values() []*value.Value {
	out := make([]*value.Value, 0, m.count)
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			out = append(out, e.val)
		}
	}
	return out
}

// Len reports the number of entries.
func (m *Map) Len() int { return m.count }

func (m *Map) maybeGrow() {
	if m.count*loadFactorDen <= len(m.buckets)*loadFactorNum {
		return
	}
	m.Reserve(len(m.buckets) * 2)
}

// Reserve rounds n up to the next power of two and rehashes in place,
// reusing every entry's cached hash rather than recomputing it.
func (m *Map) Reserve(n int) {
	newSize := initialBuckets
	for newSize < n {
		newSize *= 2
	}
	if newSize <= len(m.buckets) {
		return
	}
	newBuckets := make([]*entry, newSize)
	mask := newSize - 1
	for _, head := range m.buckets {
		for e := head; e != nil; {
			next := e.next
			idx := int(e.hash) & mask
			e.next = newBuckets[idx]
			newBuckets[idx] = e
			e = next
		}
	}
	m.buckets = newBuckets
}

// ResetIter rewinds the stateful iterator to the start.
func (m *Map) ResetIter() {
	m.iterBucket = 0
	m.iterEntry = nil
}

// Each advances the stateful iterator and returns the next (key, value)
// pair. On exhaustion it resets the iterator and returns ("", nil, false).
func (m *Map) Each() (string, *value.Value, bool) {
	if m.iterEntry != nil {
		e := m.iterEntry
		m.iterEntry = e.next
		if m.iterEntry == nil {
			m.iterBucket++
		}
		return e.key, e.val, true
	}
	for m.iterBucket < len(m.buckets) {
		if head := m.buckets[m.iterBucket]; head != nil {
			m.iterEntry = head.next
			if m.iterEntry == nil {
				m.iterBucket++
			}
			return head.key, head.val, true
		}
		m.iterBucket++
	}
	m.ResetIter()
	return "", nil, false
}
