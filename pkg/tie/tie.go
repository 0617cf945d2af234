// Package tie implements tied collection dispatch (C12): a Container
// interface with a direct (untied) fast path and a delegate-dispatch
// (tied) implementation that routes every operation to method calls on a
// user object, per the FETCH/STORE/EXISTS/DELETE/FIRSTKEY/NEXTKEY/CLEAR
// contract in spec.md §4.11. The interface-plus-two-implementations shape
// mirrors the teacher's pkg/sorted.KeyValue: callers code against one
// interface while swapping the concrete backend (in-memory map vs tied
// delegate) underneath.
package tie

import (
	"github.com/strada-lang/runtime/pkg/hashmap"
	"github.com/strada-lang/runtime/pkg/oop"
	"github.com/strada-lang/runtime/pkg/value"
)

// Container is the uniform interface generated code dispatches hash
// operations through; HashContainer wraps an untied pkg/hashmap.Map
// directly, DelegateContainer routes to a tied object's methods.
type Container interface {
	Fetch(key string) *value.Value
	Store(key string, val *value.Value)
	Exists(key string) bool
	Delete(key string) bool
	FirstKey() (string, bool)
	NextKey(last string) (string, bool)
	Clear()
}

// HashContainer is the untied fast path: it forwards directly to the
// backing Map with no indirection, so untied code pays no dispatch cost
// beyond this one-method wrapper (the branch the spec calls out as
// "branch-predicted zero-overhead" collapses to a direct call in Go).
type HashContainer struct {
	m *hashmap.Map
}

func NewHashContainer(hashVal *value.Value) *HashContainer {
	return &HashContainer{m: hashmap.Payload(hashVal)}
}

func (h *HashContainer) Fetch(key string) *value.Value { return h.m.Get(key) }
func (h *HashContainer) Store(key string, val *value.Value) { h.m.Set(key, val) }
func (h *HashContainer) Exists(key string) bool { return h.m.Exists(key) }
func (h *HashContainer) Delete(key string) bool { return h.m.Delete(key) }
func (h *HashContainer) Clear() {
	for _, k := range h.m.Keys() {
		h.m.Delete(k)
	}
}
func (h *HashContainer) FirstKey() (string, bool) {
	h.m.ResetIter()
	k, _, ok := h.m.Each()
	return k, ok
}
func (h *HashContainer) NextKey(last string) (string, bool) {
	// last is ignored: Perl's each()-based FIRSTKEY/NEXTKEY contract
	// assumes a single live iterator per hash, which pkg/hashmap already
	// provides via its own stateful Each(); NextKey simply continues it.
	k, _, ok := h.m.Each()
	_ = last
	return k, ok
}

// DelegateContainer dispatches every operation through method calls on a
// tied Perl-style object, per spec.md §4.11's uppercase-method contract.
type DelegateContainer struct {
	registry *oop.Registry
	tiedObj  *value.Value
}

// NewDelegateContainer ties hashVal to tiedObj: TIEHASH has already been
// called by generated code to construct tiedObj before this wrapper is
// installed (SetTied marks hashVal as tied and records the delegate).
func NewDelegateContainer(registry *oop.Registry, hashVal, tiedObj *value.Value) *DelegateContainer {
	hashVal.SetTied(tiedObj)
	return &DelegateContainer{registry: registry, tiedObj: tiedObj}
}

func (d *DelegateContainer) call(method string, args ...*value.Value) *value.Value {
	return d.registry.Call(d.tiedObj, method, args)
}

func (d *DelegateContainer) Fetch(key string) *value.Value {
	return d.call("FETCH", value.NewStr(key))
}

func (d *DelegateContainer) Store(key string, val *value.Value) {
	d.call("STORE", value.NewStr(key), val)
}

func (d *DelegateContainer) Exists(key string) bool {
	return d.call("EXISTS", value.NewStr(key)).ToBool()
}

func (d *DelegateContainer) Delete(key string) bool {
	return d.call("DELETE", value.NewStr(key)).ToBool()
}

func (d *DelegateContainer) Clear() {
	d.call("CLEAR")
}

func (d *DelegateContainer) FirstKey() (string, bool) {
	v := d.call("FIRSTKEY")
	if value.IsUndef(v) {
		return "", false
	}
	return v.ToStr(), true
}

func (d *DelegateContainer) NextKey(last string) (string, bool) {
	v := d.call("NEXTKEY", value.NewStr(last))
	if value.IsUndef(v) {
		return "", false
	}
	return v.ToStr(), true
}

// Untie calls the optional UNTIE hook, if the delegate's package defines
// one, and clears the tied flag on hashVal.
func Untie(registry *oop.Registry, hashVal *value.Value) {
	tiedObj := hashVal.TiedObj()
	if tiedObj == nil {
		return
	}
	pkg := tiedObj.BlessedPackage()
	if fn, _ := registry.FindMethod(pkg, "UNTIE"); fn != nil {
		fn(tiedObj, nil)
	}
	hashVal.SetTied(nil)
}

// ForHash returns the right Container for hashVal: a DelegateContainer if
// tied, otherwise the direct HashContainer fast path.
func ForHash(registry *oop.Registry, hashVal *value.Value) Container {
	if hashVal.IsTied() {
		return &DelegateContainer{registry: registry, tiedObj: hashVal.TiedObj()}
	}
	return NewHashContainer(hashVal)
}
