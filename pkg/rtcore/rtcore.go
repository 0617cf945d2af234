// Package rtcore is the misc coordination layer (C14): a call-stack trace
// frame pool, the dynamic call-context enum, the default output handle,
// and the process-lifetime Boot/Shutdown pair that wires every other
// runtime package together. Small-integer and UNDEF singletons live in
// pkg/value (its small-int pool and UndefSingleton) from the bootstrap
// layer; rtcore does not re-export them.
package rtcore

import (
	"sync"

	"github.com/strada-lang/runtime/pkg/buildinfo"
	"github.com/strada-lang/runtime/pkg/taskpool"
	"github.com/strada-lang/runtime/pkg/value"
)

// BuildSummary returns the linked-in runtime's version/git-revision
// summary, for embedding in crash reports and uncaught-exception traces.
func BuildSummary() string { return buildinfo.Summary() }

// CallContext is the dynamic evaluation context a call is made in,
// mirroring Perl's wantarray: a callee can consult it to decide whether
// to return a scalar, a list, or a hash-shaped result.
type CallContext int

const (
	Scalar CallContext = iota
	List
	Hash
)

func (c CallContext) String() string {
	switch c {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case Hash:
		return "hash"
	default:
		return "unknown"
	}
}

var (
	contextMu sync.Mutex
	contexts  = map[uint64][]CallContext{}
)

// PushContext records the call context a new call is entered under.
func PushContext(key uint64, c CallContext) {
	contextMu.Lock()
	contexts[key] = append(contexts[key], c)
	contextMu.Unlock()
}

// PopContext restores the enclosing call context.
func PopContext(key uint64) {
	contextMu.Lock()
	if s := contexts[key]; len(s) > 0 {
		contexts[key] = s[:len(s)-1]
	}
	contextMu.Unlock()
}

// CurrentContext reports the call context the current call was made
// under, defaulting to Scalar for a goroutine that never pushed one.
func CurrentContext(key uint64) CallContext {
	contextMu.Lock()
	defer contextMu.Unlock()
	s := contexts[key]
	if len(s) == 0 {
		return Scalar
	}
	return s[len(s)-1]
}

var (
	bootOnce     sync.Once
	shutdownOnce sync.Once

	defaultOutputMu sync.Mutex
	defaultOutput   *value.Value

	pool *taskpool.Pool
)

// Boot performs process-lifetime wiring: it activates atomic refcounting
// (generated code may now spawn goroutines safely), starts the shared
// worker pool, and registers the default output handle (STDOUT). Boot is
// idempotent; only the first call takes effect.
func Boot(workers int) {
	BootWithConfig(Config{Workers: workers})
}

// DefaultOutput returns the process's default output FILEHANDLE value
// (STDOUT), created by Boot.
func DefaultOutput() *value.Value {
	defaultOutputMu.Lock()
	defer defaultOutputMu.Unlock()
	return defaultOutput
}

// Pool returns the shared worker pool started by Boot, or nil if Boot has
// not run yet.
func Pool() *taskpool.Pool {
	return pool
}

// Shutdown tears down the shared worker pool and releases the default
// output handle. Idempotent; safe to call even if Boot was never called.
func Shutdown() {
	shutdownOnce.Do(func() {
		if pool != nil {
			pool.Shutdown()
		}
		defaultOutputMu.Lock()
		if defaultOutput != nil {
			value.Decref(defaultOutput)
			defaultOutput = nil
		}
		defaultOutputMu.Unlock()
	})
}
