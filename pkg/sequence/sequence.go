// Package sequence implements the deque-backed ordered container (C3):
// amortized O(1) push/pop at both ends via a head offset into a slice,
// doubling growth, and negative indexing. Structurally this is the ring
// buffer idea from the spec (head offset + size within a fixed
// allocation) expressed the way the teacher's pack grows backing slices
// (see pkg/blob/blob.go's append-or-grow buffers) rather than a literal
// translation of any one example.
package sequence

import (
	"sort"

	"github.com/strada-lang/runtime/pkg/value"
)

// Sequence is the ordered container backing ARRAY-tagged values.
type Sequence struct {
	elements []*value.Value
	head     int
	size     int
	refcount int32
}

func init() {
	value.RegisterDestructor(value.Array, func(v *value.Value) {
		s, _ := v.Payload().(*Sequence)
		if s == nil {
			return
		}
		s.release()
	})
}

// New returns an empty sequence wrapped in an owning ARRAY value.
func New() *value.Value {
	s := &Sequence{refcount: 1}
	return value.NewTagged(value.Array, s)
}

// Of builds a sequence from elements, incrementing each (the caller keeps
// its own references to the inputs).
func Of(elems ...*value.Value) *value.Value {
	v := New()
	s := v.Payload().(*Sequence)
	for _, e := range elems {
		s.Push(e)
	}
	return v
}

func from(v *value.Value) *Sequence {
	s, _ := v.Payload().(*Sequence)
	return s
}

// release decrements every live slot; invoked from the ARRAY destructor
// registered above when the owning value's refcount reaches zero.
func (s *Sequence) release() {
	for i := 0; i < s.size; i++ {
		value.Decref(s.elements[s.head+i])
	}
	s.elements = nil
	s.size = 0
}

// Length returns the number of live elements.
func (s *Sequence) Length() int { return s.size }

func (s *Sequence) normalize(i int) (int, bool) {
	if i < 0 {
		i += s.size
	}
	if i < 0 || i >= s.size {
		return 0, false
	}
	return i, true
}

// Get returns the element at i (negative indices count from the end), or
// the shared undef singleton if out of range.
func (s *Sequence) Get(i int) *value.Value {
	idx, ok := s.normalize(i)
	if !ok {
		return value.UndefSingleton
	}
	return s.elements[s.head+idx]
}

// Set stores v at i, extending with undef as needed when i is beyond the
// current length. Always refcount-correct: increments v before
// decrementing whatever it replaces.
func (s *Sequence) Set(i int, v *value.Value) {
	if i < 0 {
		i += s.size
		if i < 0 {
			return
		}
	}
	for i >= s.size {
		s.pushBack(value.UndefSingleton)
	}
	old := s.elements[s.head+i]
	value.Incref(v)
	s.elements[s.head+i] = v
	value.Decref(old)
}

// ensureTailRoom guarantees room for one more element after head+size,
// compacting (if the head offset has spare room) or doubling capacity
// (copying into a fresh slice) otherwise.
func (s *Sequence) ensureTailRoom() {
	if s.head+s.size < cap(s.elements) {
		return
	}
	if s.head > 0 {
		copy(s.elements[:cap(s.elements)], s.elements[s.head:s.head+s.size])
		s.elements = s.elements[:cap(s.elements)][:s.size]
		s.head = 0
		if s.size < cap(s.elements) {
			return
		}
	}
	newCap := cap(s.elements) * 2
	if newCap == 0 {
		newCap = 4
	}
	grown := make([]*value.Value, s.size, newCap)
	copy(grown, s.elements[s.head:s.head+s.size])
	s.elements = grown
	s.head = 0
}

func (s *Sequence) pushBack(v *value.Value) {
	s.ensureTailRoom()
	s.elements = s.elements[:s.head+s.size+1]
	s.elements[s.head+s.size] = v
	s.size++
}

// Push appends v, incrementing its refcount.
func (s *Sequence) Push(v *value.Value) {
	value.Incref(v)
	s.pushBack(v)
}

// PushTake appends v without incrementing: the caller donates its reference.
func (s *Sequence) PushTake(v *value.Value) {
	s.pushBack(v)
}

// Pop removes and returns the last element, or undef if empty.
func (s *Sequence) Pop() *value.Value {
	if s.size == 0 {
		return value.UndefSingleton
	}
	s.size--
	v := s.elements[s.head+s.size]
	s.elements[s.head+s.size] = nil
	return v
}

// Shift removes and returns the first element, or undef if empty. O(1):
// advances the head offset without a memmove.
func (s *Sequence) Shift() *value.Value {
	if s.size == 0 {
		return value.UndefSingleton
	}
	v := s.elements[s.head]
	s.elements[s.head] = nil
	s.head++
	s.size--
	return v
}

// Unshift prepends v. O(1) when head offset > 0; otherwise grows and
// shifts everything right.
func (s *Sequence) Unshift(v *value.Value) {
	value.Incref(v)
	if s.head > 0 {
		s.head--
		s.elements[s.head] = v
		s.size++
		return
	}
	newCap := cap(s.elements)*2 + 4
	grown := make([]*value.Value, newCap)
	newHead := newCap - s.size - 1
	copy(grown[newHead+1:], s.elements[s.head:s.head+s.size])
	grown[newHead] = v
	s.elements = grown
	s.head = newHead
	s.size++
}

// Reverse reverses the sequence in place via a two-pointer swap.
func (s *Sequence) Reverse() {
	for i, j := s.head, s.head+s.size-1; i < j; i, j = i+1, j-1 {
		s.elements[i], s.elements[j] = s.elements[j], s.elements[i]
	}
}

// Reserve ensures capacity for at least n total elements.
func (s *Sequence) Reserve(n int) {
	if cap(s.elements)-s.head >= n {
		return
	}
	grown := make([]*value.Value, s.size, n)
	copy(grown, s.elements[s.head:s.head+s.size])
	s.elements = grown
	s.head = 0
}

// CopyDeep1Level returns a fresh sequence with every live element
// incremented into the copy (one level deep: nested containers are shared,
// not themselves copied).
func (s *Sequence) CopyDeep1Level() *value.Value {
	out := New()
	os := from(out)
	os.Reserve(s.size)
	for i := 0; i < s.size; i++ {
		os.Push(s.elements[s.head+i])
	}
	return out
}

// SortString sorts in place by the lexicographic order of each element's
// string coercion.
func (s *Sequence) SortString() {
	sl := s.elements[s.head : s.head+s.size]
	sort.SliceStable(sl, func(i, j int) bool { return sl[i].ToStr() < sl[j].ToStr() })
}

// SortNumeric sorts in place by each element's numeric coercion.
func (s *Sequence) SortNumeric() {
	sl := s.elements[s.head : s.head+s.size]
	sort.SliceStable(sl, func(i, j int) bool { return sl[i].ToNum() < sl[j].ToNum() })
}

// Range returns a fresh sequence of fresh INT values from start to end,
// inclusive, ascending if start<=end and descending otherwise.
func Range(start, end int64) *value.Value {
	out := New()
	os := from(out)
	if start <= end {
		for i := start; i <= end; i++ {
			os.PushTake(value.NewInt(i))
		}
	} else {
		for i := start; i >= end; i-- {
			os.PushTake(value.NewInt(i))
		}
	}
	return out
}

// Splice removes len elements starting at off (with negative-offset and
// past-end normalization), replacing them with repl (incrementing each),
// and returns a fresh sequence of the removed elements (ownership
// transferred to the caller, not decremented here).
func (s *Sequence) Splice(off, length int, repl []*value.Value) *value.Value {
	s.compactToZero()
	if off < 0 {
		off += s.size
		if off < 0 {
			off = 0
		}
	}
	if off > s.size {
		off = s.size
	}
	if length < 0 {
		length = 0
	}
	if off+length > s.size {
		length = s.size - off
	}

	removed := New()
	rs := from(removed)
	for i := 0; i < length; i++ {
		rs.PushTake(s.elements[off+i])
	}

	tail := append([]*value.Value(nil), s.elements[off+length:s.size]...)
	s.elements = s.elements[:off]
	for _, r := range repl {
		value.Incref(r)
		s.elements = append(s.elements, r)
	}
	s.elements = append(s.elements, tail...)
	s.size = len(s.elements)
	s.head = 0
	return removed
}

func (s *Sequence) compactToZero() {
	if s.head == 0 {
		return
	}
	copy(s.elements, s.elements[s.head:s.head+s.size])
	s.elements = s.elements[:s.size]
	s.head = 0
}

// Payload exposes the backing Sequence for a given ARRAY value, or nil.
func Payload(v *value.Value) *Sequence { return from(v) }
