package storage

import (
	"sort"
	"sync"

	"github.com/snowdamiz/lmlang/graph"
)

// MemoryStore is an in-memory GraphStore, the default backend for
// tests and for engine sessions that don't need durability across
// process restarts.
type MemoryStore struct {
	mu sync.Mutex

	programs    map[string]graph.Snapshot
	editLog     map[string][]EditLogEntry
	checkpoints map[string]map[string]int
	agents      map[string]AgentConfig
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		programs:    make(map[string]graph.Snapshot),
		editLog:     make(map[string][]EditLogEntry),
		checkpoints: make(map[string]map[string]int),
		agents:      make(map[string]AgentConfig),
	}
}

func (s *MemoryStore) SaveProgram(p *graph.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[p.Name] = p.Snapshot()
	return nil
}

func (s *MemoryStore) LoadProgram(name string) (*graph.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.programs[name]
	if !ok {
		return nil, &Error{Kind: NotFound, Subject: name}
	}
	return graph.FromSnapshot(snap), nil
}

func (s *MemoryStore) ListPrograms() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.programs))
	for name := range s.programs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DeleteProgram(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.programs[name]; !ok {
		return &Error{Kind: NotFound, Subject: name}
	}
	delete(s.programs, name)
	delete(s.editLog, name)
	delete(s.checkpoints, name)
	return nil
}

func (s *MemoryStore) snapshot(name string) (graph.Snapshot, error) {
	snap, ok := s.programs[name]
	if !ok {
		return graph.Snapshot{}, &Error{Kind: NotFound, Subject: name}
	}
	return snap, nil
}

func (s *MemoryStore) Modules(name string) ([]graph.ModuleRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.Modules, nil
}

func (s *MemoryStore) Functions(name string) ([]graph.FunctionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.Functions, nil
}

func (s *MemoryStore) Nodes(name string) ([]graph.NodeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.Nodes, nil
}

func (s *MemoryStore) DataEdges(name string) ([]graph.DataEdgeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.DataEdges, nil
}

func (s *MemoryStore) CtrlEdges(name string) ([]graph.CtrlEdgeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.snapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.CtrlEdges, nil
}

func (s *MemoryStore) AppendEditLogEntry(program string, entry EditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Index = len(s.editLog[program])
	s.editLog[program] = append(s.editLog[program], entry)
	return nil
}

func (s *MemoryStore) ListEditLog(program string) ([]EditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EditLogEntry(nil), s.editLog[program]...), nil
}

func (s *MemoryStore) SaveCheckpoint(program, checkpoint string, logIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoints[program] == nil {
		s.checkpoints[program] = make(map[string]int)
	}
	s.checkpoints[program][checkpoint] = logIndex
	return nil
}

func (s *MemoryStore) ListCheckpoints(program string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.checkpoints[program]))
	for k, v := range s.checkpoints[program] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) SaveAgentConfig(cfg AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[cfg.ID] = cfg
	return nil
}

func (s *MemoryStore) LoadAgentConfig(id string) (AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.agents[id]
	if !ok {
		return AgentConfig{}, &Error{Kind: NotFound, Subject: id}
	}
	return cfg, nil
}

func (s *MemoryStore) ListAgentConfigs() ([]AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentConfig, 0, len(s.agents))
	for _, cfg := range s.agents {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteAgentConfig(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return &Error{Kind: NotFound, Subject: id}
	}
	delete(s.agents, id)
	return nil
}

var _ GraphStore = (*MemoryStore)(nil)
