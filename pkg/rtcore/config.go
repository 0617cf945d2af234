package rtcore

import (
	"os"
	"strconv"

	"github.com/strada-lang/runtime/pkg/filehandle"
	"github.com/strada-lang/runtime/pkg/jsonconfig"
	"github.com/strada-lang/runtime/pkg/taskpool"
	"github.com/strada-lang/runtime/pkg/value"
)

// Config holds the tunables generated code can adjust before calling
// Boot: pool sizing, freelist caps, and intern thresholds. The runtime is
// a linked library rather than a CLI, so these are read from a
// jsonconfig.Obj (the teacher's JSON-configuration-object convention)
// with environment-variable overrides for the handful of knobs a test
// harness needs to flip without a config file. BootWithConfig applies
// Workers and ForceNonAtomicRC only; FreelistCap and InternThreshold are
// read and carried but not applied, since pkg/value's cell freelist and
// pkg/hashmap's intern length limit are fixed constants.
type Config struct {
	Workers          int
	FreelistCap      int
	InternThreshold  int
	ForceNonAtomicRC bool
}

// DefaultConfig returns the runtime's built-in tunables.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		FreelistCap:     16384,
		InternThreshold: 64,
	}
}

// ConfigFromObj overlays cfg with any keys present in obj, matching the
// teacher's OptionalInt/OptionalBool accessor style (missing keys keep
// cfg's existing value as the default).
func ConfigFromObj(cfg Config, obj jsonconfig.Obj) Config {
	cfg.Workers = obj.OptionalInt("workers", cfg.Workers)
	cfg.FreelistCap = obj.OptionalInt("freelistCap", cfg.FreelistCap)
	cfg.InternThreshold = obj.OptionalInt("internThreshold", cfg.InternThreshold)
	cfg.ForceNonAtomicRC = obj.OptionalBool("forceNonAtomicRefcount", cfg.ForceNonAtomicRC)
	return cfg
}

// ConfigFromEnv applies the small set of environment-variable overrides a
// test harness needs (e.g. forcing the non-atomic refcount path), in the
// style of pkg/env's "how is this process configured" helpers adapted
// from flags/GCE-detection to plain os.Getenv lookups appropriate for a
// library rather than a server binary.
func ConfigFromEnv(cfg Config) Config {
	if v := os.Getenv("RUNTIME_FORCE_NONATOMIC_RC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ForceNonAtomicRC = b
		}
	}
	if v := os.Getenv("RUNTIME_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	return cfg
}

// BootWithConfig is Boot generalized over a Config: generated code (or a
// test harness) can assemble cfg from ConfigFromObj/ConfigFromEnv before
// calling it. ForceNonAtomicRC, when true, skips the atomic-refcount
// upgrade entirely (only meaningful for single-goroutine test harnesses,
// since value.ActivateThreading is a one-way switch once any other code
// path flips it).
func BootWithConfig(cfg Config) {
	bootOnce.Do(func() {
		if !cfg.ForceNonAtomicRC {
			value.ActivateThreading()
		}
		pool = taskpool.NewPool(cfg.Workers)
		defaultOutputMu.Lock()
		defaultOutput = filehandle.OpenNormal(os.Stdout)
		defaultOutputMu.Unlock()
	})
}
