// Package concurrency implements lmlang's Concurrency Manager:
// function-scoped read/write locks with TTL expiry and agent identity
// (spec.md §4.9).
package concurrency

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snowdamiz/lmlang/graph"
)

// Mode is the lock mode an agent requests on a function.
type Mode int

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// AgentId is an opaque, persistent agent identity.
type AgentId string

// Lock describes one function-scoped lock held by one agent.
type Lock struct {
	Function graph.FunctionId
	Agent    AgentId
	Mode     Mode
	Expires  time.Time
}

// Manager owns every function-scoped lock for one active program.
// Reads are shared (multiple readers may hold a Read lock
// concurrently); writes are exclusive. There is no implicit promotion:
// an agent upgrades read to write by calling Acquire again in Write
// mode, which replaces its own Read lock (without a Release first)
// when no other agent holds the function.
type Manager struct {
	mu sync.Mutex

	// locks[fn] holds either any number of Read locks (keyed by agent)
	// or exactly one Write lock.
	locks map[graph.FunctionId]map[AgentId]*Lock

	log *zap.Logger
}

// New creates an empty Concurrency Manager. A nil logger defaults to
// zap.NewNop().
func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{locks: make(map[graph.FunctionId]map[AgentId]*Lock), log: log}
}

// Register mints a fresh opaque agent id. Real provider configuration
// persistence is handled by the storage layer (spec.md §6); Manager
// only tracks lock ownership by id.
func (m *Manager) Register() AgentId {
	return AgentId(uuid.New().String())
}

// Acquire requests mode access to every function in ids for agent,
// held until ttl elapses. All-or-nothing: if any requested function is
// held incompatibly by another agent, no locks are granted.
func (m *Manager) Acquire(agent AgentId, ids []graph.FunctionId, mode Mode, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.sweepLocked(now)

	for _, fn := range ids {
		if err := m.canGrantLocked(agent, fn, mode); err != nil {
			return err
		}
	}

	expires := now.Add(ttl)
	for _, fn := range ids {
		holders := m.locks[fn]
		if holders == nil {
			holders = make(map[AgentId]*Lock)
			m.locks[fn] = holders
		}
		holders[agent] = &Lock{Function: fn, Agent: agent, Mode: mode, Expires: expires}
	}
	m.log.Debug("locks acquired", zap.String("agent", string(agent)), zap.Int("count", len(ids)), zap.String("mode", mode.String()))
	return nil
}

func (m *Manager) canGrantLocked(agent AgentId, fn graph.FunctionId, mode Mode) error {
	holders := m.locks[fn]
	for other, lock := range holders {
		if other == agent {
			continue
		}
		if lock.Mode == Write || mode == Write {
			return &ConflictError{Function: fn, HeldBy: other, HeldMode: lock.Mode, Requested: mode}
		}
	}
	return nil
}

// Release drops agent's locks on every function in ids. Releasing a
// function the agent does not hold is a no-op.
func (m *Manager) Release(agent AgentId, ids []graph.FunctionId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fn := range ids {
		if holders, ok := m.locks[fn]; ok {
			delete(holders, agent)
			if len(holders) == 0 {
				delete(m.locks, fn)
			}
		}
	}
}

// List returns every currently live lock (expired locks are swept
// first), in no particular order; engine.ListLocks sorts the result by
// function then agent.
func (m *Manager) List() []Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(time.Now())

	var out []Lock
	for _, holders := range m.locks {
		for _, l := range holders {
			out = append(out, *l)
		}
	}
	return out
}

// Sweep removes every lock whose TTL has elapsed as of now. Exported
// so callers/tests can drive expiry deterministically. Acquire and
// List also sweep expired locks before they act; no background
// goroutine or ticker calls Sweep.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

func (m *Manager) sweepLocked(now time.Time) int {
	removed := 0
	for fn, holders := range m.locks {
		for agent, l := range holders {
			if now.After(l.Expires) {
				delete(holders, agent)
				removed++
				m.log.Info("lock expired", zap.String("agent", string(agent)), zap.Uint32("function", uint32(fn)))
			}
		}
		if len(holders) == 0 {
			delete(m.locks, fn)
		}
	}
	return removed
}

// Holds reports whether agent currently holds at least mode access on
// fn (a Write lock also satisfies a Read check, matching "writes
// require write; reads require at least read").
func (m *Manager) Holds(agent AgentId, fn graph.FunctionId, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(time.Now())
	holders := m.locks[fn]
	if holders == nil {
		return false
	}
	l, ok := holders[agent]
	if !ok {
		return false
	}
	if mode == Read {
		return true // any held mode implies read access
	}
	return l.Mode == Write
}

// ConflictError reports an incompatible lock request (spec.md's
// LockMismatch).
type ConflictError struct {
	Function  graph.FunctionId
	HeldBy    AgentId
	HeldMode  Mode
	Requested Mode
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency: function %d held in %s mode by agent %s, requested %s",
		e.Function, e.HeldMode, e.HeldBy, e.Requested)
}

// LockRequiredError reports a mutation attempt without a held lock.
type LockRequiredError struct {
	Function graph.FunctionId
	Agent    AgentId
	Needed   Mode
}

func (e *LockRequiredError) Error() string {
	return fmt.Sprintf("concurrency: agent %s needs a %s lock on function %d", e.Agent, e.Needed, e.Function)
}
