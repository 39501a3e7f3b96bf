// Package engine wires the Program Graph, Type Registry, Mutation
// Engine, Concurrency Manager, Type Checker, Interpreter, Property
// Test Harness, Incremental Compilation Engine, LLVM Backend and
// Storage Abstraction into the single external surface spec.md §6
// describes, the way providers/golang/config.go feeds one Config
// struct into one constructor rather than scattering settings across
// package-level globals.
package engine

import "time"

// Config is engine-wide configuration, overridable by embedders.
// Fields mirror spec.md §6/§4.11: storage location, lock defaults,
// interpreter limits, and default LLVM compile settings.
type Config struct {
	// StorageDSN selects the GraphStore backend: empty means an
	// in-memory store (storage.MemoryStore); a file path or
	// libsql://-style URL opens storage.SQLiteStore (spec.md §4.10).
	StorageDSN string

	// DefaultLockTTL is used when a lock acquisition request does not
	// specify its own TTL.
	DefaultLockTTL time.Duration

	// MaxRecursionDepth seeds interp.Config.MaxRecursionDepth for every
	// Interpreter this engine creates.
	MaxRecursionDepth int

	// TraceByDefault seeds interp.Config.TraceEnabled for simulate
	// calls that don't explicitly request tracing.
	TraceByDefault bool

	// DefaultOptLevel / DefaultTargetTriple seed compile.Settings for
	// compile requests that don't override them.
	DefaultOptLevel     int
	DefaultTargetTriple string

	// CacheDir is the Incremental Compilation Engine's object cache
	// directory (spec.md §4.7). Compile reuses an object from it only
	// when this session has already compiled the program and nothing is
	// dirty since (SPEC_FULL.md §4.13); the directory's contents alone do
	// not select the incremental path.
	CacheDir string

	// StorageDebug enables gorm's statement logger (spec.md's
	// SQLiteStore debug flag), for diagnosing storage-layer issues.
	StorageDebug bool
}

// DefaultConfig returns the engine's out-of-the-box settings: an
// in-memory store, a five-minute default lock TTL, and the
// interpreter's own recursion default (spec.md §4.4).
func DefaultConfig() Config {
	return Config{
		DefaultLockTTL:      5 * time.Minute,
		MaxRecursionDepth:   256,
		DefaultOptLevel:     0,
		DefaultTargetTriple: "",
		CacheDir:            "lmlang_cache",
	}
}
