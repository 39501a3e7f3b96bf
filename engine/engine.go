package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/concurrency"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/mutation"
	"github.com/snowdamiz/lmlang/storage"
)

// session is one loaded program's live working set: the Program
// itself plus the Mutation Engine and Concurrency Manager scoped to
// it. FunctionIds are indices private to one graph.Program, so locks
// and the edit log can never be shared across programs (unlike the
// teacher's single global TransactionManager, lmlang keeps one of
// these per loaded program).
type session struct {
	mu      sync.Mutex
	program *graph.Program
	mut     *mutation.Engine
	locks   *concurrency.Manager

	// lastCompiled tracks each function's hash/settings as of the most
	// recent successful Compile, feeding compile.ComputeDirty's Plan
	// (spec.md §4.7). Empty until the first Compile call.
	lastCompiled map[graph.FunctionId]compile.Record
}

// Engine is the single entry point SPEC_FULL.md §6 names: every
// External Interface operation is a method here, the way the teacher
// exposes all of its functionality through cli.Runner rather than
// scattering it across package-level functions.
type Engine struct {
	cfg   Config
	store storage.GraphStore
	log   *zap.Logger
	cache *compile.ObjectCache

	mu       sync.Mutex
	sessions map[string]*session
}

// New wires an Engine around cfg. A nil logger defaults to
// zap.NewNop(), matching concurrency.New's own convention. The
// storage backend is chosen from cfg.StorageDSN: empty opens an
// in-memory store (storage.NewMemoryStore), anything else opens
// storage.Open(dsn, cfg.StorageDebug) (a file path or a libsql://
// remote DSN, per storage's own dispatch).
func New(cfg Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var store storage.GraphStore
	if cfg.StorageDSN == "" {
		store = storage.NewMemoryStore()
	} else {
		s, err := storage.Open(cfg.StorageDSN, cfg.StorageDebug)
		if err != nil {
			return nil, fmt.Errorf("engine: open storage: %w", err)
		}
		store = s
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "lmlang_cache"
	}
	cache, err := compile.NewObjectCache(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open object cache: %w", err)
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		log:      log,
		cache:    cache,
		sessions: make(map[string]*session),
	}, nil
}

// session returns the live session for program name, loading it from
// storage on first use. Locked by e.mu for the map lookup/insert only;
// the returned session's own mutex guards its Program.
func (e *Engine) sessionFor(name string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[name]; ok {
		return s, nil
	}

	p, err := e.store.LoadProgram(name)
	if err != nil {
		return nil, err
	}
	locks := concurrency.New(e.log)
	s := &session{program: p, mut: mutation.New(p, locks), locks: locks, lastCompiled: make(map[graph.FunctionId]compile.Record)}
	e.sessions[name] = s
	return s, nil
}

// --- Agent lifecycle (spec.md §6) ---

// RegisterAgent mints a fresh persistent agent identity and saves it,
// mirroring concurrency.Manager.Register's uuid-minting but persisted
// through the storage layer so an agent survives process restarts.
func (e *Engine) RegisterAgent(displayName string) (storage.AgentConfig, error) {
	cfg := storage.AgentConfig{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		Settings:    map[string]string{},
		CreatedAt:   time.Now(),
	}
	if err := e.store.SaveAgentConfig(cfg); err != nil {
		return storage.AgentConfig{}, fmt.Errorf("engine: register agent: %w", err)
	}
	e.log.Info("agent registered", zap.String("agent", cfg.ID), zap.String("name", displayName))
	return cfg, nil
}

// ListAgents returns every registered agent's persisted configuration.
func (e *Engine) ListAgents() ([]storage.AgentConfig, error) {
	return e.store.ListAgentConfigs()
}

// DeleteAgent removes an agent's persisted identity. It does not
// release locks the agent may hold against a loaded program; callers
// owning that program should release those explicitly first.
func (e *Engine) DeleteAgent(id string) error {
	return e.store.DeleteAgentConfig(id)
}

// UpdateAgentConfig merges settings into an agent's persisted
// configuration key-by-key (each given key is added or overwritten; no
// key is ever removed), then saves.
func (e *Engine) UpdateAgentConfig(id string, settings map[string]string) (storage.AgentConfig, error) {
	cfg, err := e.store.LoadAgentConfig(id)
	if err != nil {
		return storage.AgentConfig{}, err
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]string{}
	}
	for k, v := range settings {
		cfg.Settings[k] = v
	}
	if err := e.store.SaveAgentConfig(cfg); err != nil {
		return storage.AgentConfig{}, fmt.Errorf("engine: update agent config: %w", err)
	}
	return cfg, nil
}

// --- Program lifecycle (spec.md §6) ---

// CreateProgram creates and persists a brand new, empty program.
func (e *Engine) CreateProgram(name string) (*graph.Program, error) {
	p := graph.NewProgram(name)
	if err := e.store.SaveProgram(p); err != nil {
		return nil, fmt.Errorf("engine: create program %q: %w", name, err)
	}
	locks := concurrency.New(e.log)
	e.mu.Lock()
	e.sessions[name] = &session{program: p, mut: mutation.New(p, locks), locks: locks, lastCompiled: make(map[graph.FunctionId]compile.Record)}
	e.mu.Unlock()
	return p, nil
}

// ListPrograms lists every persisted program's name.
func (e *Engine) ListPrograms() ([]string, error) {
	return e.store.ListPrograms()
}

// DeleteProgram removes a program from storage and drops its loaded
// session, if any.
func (e *Engine) DeleteProgram(name string) error {
	e.mu.Lock()
	delete(e.sessions, name)
	e.mu.Unlock()
	return e.store.DeleteProgram(name)
}

// LoadProgram returns the live *graph.Program for name, loading it
// from storage if it isn't already active.
func (e *Engine) LoadProgram(name string) (*graph.Program, error) {
	s, err := e.sessionFor(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program, nil
}

// Overview is the read-only aggregate summary SPEC_FULL.md §4.13
// names: entity counts plus, per function, the post-mutation hash of
// the most recent edit-log entry that touched it (the last time that function
// was touched by a mutation, as far as the durable log records).
type Overview struct {
	Modules    int
	Functions  int
	Nodes      int
	DataEdges  int
	CtrlEdges  int
	LastHashes map[graph.FunctionId]compile.Hash
}

// Overview computes the aggregate summary for a loaded program.
func (e *Engine) Overview(name string) (Overview, error) {
	s, err := e.sessionFor(name)
	if err != nil {
		return Overview{}, err
	}
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()

	ov := Overview{LastHashes: map[graph.FunctionId]compile.Hash{}}
	for i := range p.Modules {
		if m, ok := p.Module(graph.ModuleId(i)); ok && m.Name != "" {
			ov.Modules++
		}
	}
	for i := range p.Functions {
		if _, ok := p.Function(graph.FunctionId(i)); ok {
			ov.Functions++
		}
	}
	for i := range p.Nodes {
		if _, ok := p.Node(graph.NodeId(i)); ok {
			ov.Nodes++
		}
	}
	for i := range p.DataEdges {
		if p.DataEdgeLive(graph.EdgeId(i)) {
			ov.DataEdges++
		}
	}
	for i := range p.CtrlEdges {
		if p.CtrlEdgeLive(graph.EdgeId(i)) {
			ov.CtrlEdges++
		}
	}

	entries, err := e.store.ListEditLog(name)
	if err != nil {
		return Overview{}, err
	}
	for _, entry := range entries {
		for fn, h := range entry.PostHashes {
			ov.LastHashes[fn] = h
		}
	}
	return ov, nil
}

// --- Mutations (spec.md §6) ---

// ApplyMutations runs batch against program's live session through
// mutation.Engine's six-step protocol, then (on a real, non-dry-run
// commit) persists the updated program and appends a durable edit-log
// entry so the history survives process restarts.
func (e *Engine) ApplyMutations(program string, batch []mutation.Mutation, opts mutation.Options) (mutation.Result, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return mutation.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.mut.ApplyMutations(batch, opts)
	if err != nil {
		return mutation.Result{}, err
	}
	if !result.Committed {
		return result, nil
	}

	s.program = s.mut.Program
	if err := e.store.SaveProgram(s.program); err != nil {
		return result, fmt.Errorf("engine: persist committed mutation: %w", err)
	}
	entry := storage.EditLogEntry{
		Agent:      opts.AgentId,
		Timestamp:  time.Now(),
		PreHashes:  result.PreHashes,
		PostHashes: result.PostHashes,
	}
	if err := e.store.AppendEditLogEntry(program, entry); err != nil {
		return result, fmt.Errorf("engine: append edit log: %w", err)
	}
	e.log.Info("mutation committed",
		zap.String("program", program),
		zap.String("agent", opts.AgentId),
		zap.Int("batch_size", len(batch)))
	return result, nil
}

// --- Locks (spec.md §6) ---

// AcquireLock requests mode access to ids on behalf of agent. ttl of
// zero uses Config.DefaultLockTTL.
func (e *Engine) AcquireLock(program string, agent concurrency.AgentId, ids []graph.FunctionId, mode concurrency.Mode, ttl time.Duration) error {
	s, err := e.sessionFor(program)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = e.cfg.DefaultLockTTL
	}
	return s.locks.Acquire(agent, ids, mode, ttl)
}

// ReleaseLock drops agent's locks on ids.
func (e *Engine) ReleaseLock(program string, agent concurrency.AgentId, ids []graph.FunctionId) error {
	s, err := e.sessionFor(program)
	if err != nil {
		return err
	}
	s.locks.Release(agent, ids)
	return nil
}

// ListLocks returns every currently live lock on program, sorted by
// function then agent for a stable, diffable result.
func (e *Engine) ListLocks(program string) ([]concurrency.Lock, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return nil, err
	}
	locks := s.locks.List()
	sort.Slice(locks, func(i, j int) bool {
		if locks[i].Function != locks[j].Function {
			return locks[i].Function < locks[j].Function
		}
		return locks[i].Agent < locks[j].Agent
	})
	return locks, nil
}

// RegisterLockAgent mints a fresh agent id scoped to one program's
// Concurrency Manager, for callers that only need lock ownership
// without a persisted AgentConfig (spec.md §4.9's Manager.Register).
func (e *Engine) RegisterLockAgent(program string) (concurrency.AgentId, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return "", err
	}
	return s.locks.Register(), nil
}

// SweepLocks forces an immediate TTL sweep on program's lock table,
// the explicit testable unit SPEC_FULL.md §4.13 describes; no
// background ticker sweeps locks.
func (e *Engine) SweepLocks(program string, now time.Time) (int, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return 0, err
	}
	return s.locks.Sweep(now), nil
}
