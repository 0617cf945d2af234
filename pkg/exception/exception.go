// Package exception implements nonlocal-exit propagation (C10): a
// per-goroutine stack of try contexts, a cleanup-mark/restore/drain-to
// watermark over values allocated since the matching try entered, and
// uncaught-exception trace printing. Cancellation-by-signal in the
// teacher's pkg/context (a done channel checked cooperatively at call
// sites) grounds the "cooperative, check-at-boundaries" shape used here
// for catch-vs-propagate decisions, generalized from a single cancel flag
// to a full stack of nested try contexts.
package exception

import (
	"fmt"
	"os"
	"sync"

	"github.com/strada-lang/runtime/pkg/value"
)

// Frame is one call-stack entry, updated on demand as generated code
// enters/leaves functions.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Thrown wraps an arbitrary thrown value (per spec.md, exceptions are
// ordinary values, not a distinct type) together with the call stack
// captured at the throw site.
type Thrown struct {
	Value *value.Value
	Stack []Frame
}

func (t *Thrown) Error() string {
	return fmt.Sprintf("%s", t.Value.ToStr())
}

// goroutineState is the per-goroutine exception machinery: a stack of
// cleanup marks (one per active try) and the live call-stack trace.
type goroutineState struct {
	mu       sync.Mutex
	cleanup  []*value.Value // values registered for release if this try unwinds
	marks    []int          // watermark into cleanup at each try entry
	callTrace []Frame
}

var (
	statesMu sync.Mutex
	states   = map[uint64]*goroutineState{}
)

// goroutineKey identifies the calling goroutine without importing
// runtime internals: callers provide a stable key (e.g. the worker id
// from pkg/taskpool, or 0 for the main goroutine). Generated code is
// expected to thread this key through its own goroutine-local dispatch;
// pkg/exception does not try to infer it from runtime.Stack.
type goroutineKey = uint64

func stateFor(key goroutineKey) *goroutineState {
	statesMu.Lock()
	defer statesMu.Unlock()
	st, ok := states[key]
	if !ok {
		st = &goroutineState{}
		states[key] = st
	}
	return st
}

// TryEnter pushes a new try context and records a cleanup-stack
// watermark, returning the mark for the matching TryExit/TryUnwind call.
func TryEnter(key goroutineKey) int {
	st := stateFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	mark := len(st.cleanup)
	st.marks = append(st.marks, mark)
	return mark
}

// RegisterCleanup records v as needing release if the current try
// unwinds before reaching TryExit.
func RegisterCleanup(key goroutineKey, v *value.Value) {
	st := stateFor(key)
	st.mu.Lock()
	st.cleanup = append(st.cleanup, v)
	st.mu.Unlock()
}

// TryExit is the normal-exit path: pop the try context and drop the
// watermark without decrementing anything above it (those values escape
// outward to the enclosing scope).
func TryExit(key goroutineKey, mark int) {
	st := stateFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if n := len(st.marks); n > 0 {
		st.marks = st.marks[:n-1]
	}
	st.cleanup = st.cleanup[:mark]
}

// TryUnwind is the exceptional-exit path: pop the try context and decref
// every cleanup entry registered since mark.
func TryUnwind(key goroutineKey, mark int) {
	st := stateFor(key)
	st.mu.Lock()
	if n := len(st.marks); n > 0 {
		st.marks = st.marks[:n-1]
	}
	drain := st.cleanup[mark:]
	st.cleanup = st.cleanup[:mark]
	st.mu.Unlock()
	for _, v := range drain {
		value.Decref(v)
	}
}

// Throw panics with a Thrown wrapping v and the current call trace, for
// Try to recover.
func Throw(key goroutineKey, v *value.Value) {
	st := stateFor(key)
	st.mu.Lock()
	trace := append([]Frame(nil), st.callTrace...)
	st.mu.Unlock()
	panic(&Thrown{Value: v, Stack: trace})
}

// Try runs fn, returning the value it throws (if any). recover() must be
// called directly by the deferred function that invokes it, not by a
// helper one frame removed — so, unlike a bare Catch() meant to be called
// from inside the caller's own defer, Try owns the defer/recover pair
// itself and hands back a plain (*Thrown, bool) result. A panic that
// isn't one of ours is re-raised unchanged so it keeps propagating.
func Try(fn func()) (t *Thrown, ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if th, match := r.(*Thrown); match {
			t, ok = th, true
			return
		}
		panic(r)
	}()
	fn()
	return nil, false
}

// PushFrame/PopFrame maintain the live call-stack trace for a goroutine.
func PushFrame(key goroutineKey, f Frame) {
	st := stateFor(key)
	st.mu.Lock()
	st.callTrace = append(st.callTrace, f)
	st.mu.Unlock()
}

func PopFrame(key goroutineKey) {
	st := stateFor(key)
	st.mu.Lock()
	if n := len(st.callTrace); n > 0 {
		st.callTrace = st.callTrace[:n-1]
	}
	st.mu.Unlock()
}

// ReportUncaught prints an uncaught exception's message and call-stack
// trace to stderr, matching spec.md §4.9.
func ReportUncaught(t *Thrown) {
	fmt.Fprintf(os.Stderr, "uncaught exception: %s\n", t.Value.ToStr())
	for i := len(t.Stack) - 1; i >= 0; i-- {
		f := t.Stack[i]
		fmt.Fprintf(os.Stderr, "\tat %s (%s:%d)\n", f.Function, f.File, f.Line)
	}
}
