package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/snowdamiz/lmlang/codegen"
	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
)

// CompileOptions mirrors spec.md §6's compile() request.
type CompileOptions struct {
	OptLevel     int
	TargetTriple string
	DebugSymbols bool

	// Entry names the function the generated main wrapper calls
	// (codegen.Options.Entry).
	Entry graph.FunctionId

	// Link, when true, also invokes the system cc to produce an
	// executable from the emitted object.
	Link       bool
	Executable string
	ObjectPath string
}

// CompileResult mirrors spec.md §6's compile() response.
type CompileResult struct {
	BinaryPath   string
	TargetTriple string
	Bytes        int64
	DurationMs   int64
	Incremental  bool
}

func (e *Engine) resolveSettings(opts CompileOptions) compile.Settings {
	optLevel := opts.OptLevel
	if optLevel == 0 {
		optLevel = e.cfg.DefaultOptLevel
	}
	triple := opts.TargetTriple
	if triple == "" {
		triple = e.cfg.DefaultTargetTriple
	}
	return compile.Settings{OptLevel: optLevel, TargetTriple: triple, DebugSymbols: opts.DebugSymbols}
}

// DirtyStatus reports which of program's functions are dirty, dirty by
// dependency, or still cached relative to the session's last
// successful Compile (spec.md §4.7's compute_dirty, exposed directly).
func (e *Engine) DirtyStatus(program string) (compile.DirtyStatus, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return compile.DirtyStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan := compile.Plan{Program: s.program, LastCompiled: s.lastCompiled}
	return compile.ComputeDirty(plan), nil
}

// Compile lowers program to LLVM IR, verifies, and emits an object
// file (and optionally links an executable), via codegen.Compile.
// Per SPEC_FULL.md §4.13, when the session has a prior successful
// compile and compute_dirty reports nothing dirty, Compile reuses the
// cached object instead of re-running codegen; otherwise it runs a
// full build and refreshes every function's cache record. The backend
// (codegen.Compile) builds one LLVM module for the whole program per
// call (spec.md §4.8's function-scoped-Context design is per
// *compile*, not per function), so the cache entry here is keyed by
// the designated entry function rather than partitioned per function;
// DirtyStatus above still reports per-function dirtiness for callers
// that want it even though a cache hit here is whole-program.
func (e *Engine) Compile(program string, opts CompileOptions) (CompileResult, error) {
	return e.compile(program, opts, false)
}

// CompileIncremental forces the incremental reuse path: it returns an
// error instead of silently falling back to a full build when no
// prior cached object exists for program's entry function.
func (e *Engine) CompileIncremental(program string, opts CompileOptions) (CompileResult, error) {
	return e.compile(program, opts, true)
}

func (e *Engine) compile(program string, opts CompileOptions, forceIncremental bool) (CompileResult, error) {
	start := time.Now()
	s, err := e.sessionFor(program)
	if err != nil {
		return CompileResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := e.resolveSettings(opts)
	entryHash := compile.HashFunctionForCompilation(s.program, opts.Entry)

	plan := compile.Plan{Program: s.program, LastCompiled: s.lastCompiled, Settings: settings}
	dirty := compile.ComputeDirty(plan)
	nothingDirty := len(s.lastCompiled) > 0 && len(dirty.Dirty) == 0 && len(dirty.DirtyDependents) == 0

	if nothingDirty || forceIncremental {
		if cachedPath, ok := e.cache.Lookup(opts.Entry, entryHash, settings); ok {
			info, statErr := os.Stat(cachedPath)
			if statErr == nil {
				return CompileResult{
					BinaryPath:   cachedPath,
					TargetTriple: settings.TargetTriple,
					Bytes:        info.Size(),
					DurationMs:   time.Since(start).Milliseconds(),
					Incremental:  true,
				}, nil
			}
		}
		if forceIncremental {
			return CompileResult{}, fmt.Errorf("engine: compile_incremental: no cached object for function %d under current settings", opts.Entry)
		}
	}

	res, err := codegen.Compile(s.program, codegen.Options{
		Settings:   settings,
		Entry:      opts.Entry,
		ObjectPath: opts.ObjectPath,
		Link:       opts.Link,
		Executable: opts.Executable,
	})
	if err != nil {
		return CompileResult{}, err
	}

	objBytes, err := os.ReadFile(res.ObjectPath)
	if err != nil {
		return CompileResult{}, fmt.Errorf("engine: read emitted object: %w", err)
	}
	cachedPath, err := e.cache.Store(opts.Entry, entryHash, settings, objBytes)
	if err != nil {
		return CompileResult{}, fmt.Errorf("engine: store object cache entry: %w", err)
	}

	for i := range s.program.Functions {
		fn := graph.FunctionId(i)
		if _, ok := s.program.Function(fn); ok {
			s.lastCompiled[fn] = compile.Record{Hash: compile.HashFunctionForCompilation(s.program, fn), Settings: settings}
		}
	}

	binary := cachedPath
	if res.ExecutablePath != "" {
		binary = res.ExecutablePath
	}
	return CompileResult{
		BinaryPath:   binary,
		TargetTriple: settings.TargetTriple,
		Bytes:        int64(len(objBytes)),
		DurationMs:   time.Since(start).Milliseconds(),
		Incremental:  false,
	}, nil
}
