package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/snowdamiz/lmlang/graph"
)

// NotFoundError reports a query against an id the loaded program does
// not (or no longer) define.
type NotFoundError struct {
	Program string
	Subject string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("engine: %s not found in program %q", e.Subject, e.Program)
}

// FunctionView is the read-only shape a function query returns:
// the function's definition plus its live node ids, in ascending
// order (spec.md §6 Queries are always read-only, structured, and
// carry stable ids rather than positions in some serialized form).
type FunctionView struct {
	Id    graph.FunctionId
	Def   graph.Function
	Nodes []graph.NodeId
}

// FunctionQuery resolves one function's definition and owned node ids.
func (e *Engine) FunctionQuery(program string, fn graph.FunctionId) (FunctionView, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return FunctionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.program.Function(fn)
	if !ok {
		return FunctionView{}, &NotFoundError{Program: program, Subject: fmt.Sprintf("function %d", fn)}
	}
	nodes := append([]graph.NodeId(nil), s.program.NodesOf(fn)...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return FunctionView{Id: fn, Def: def, Nodes: nodes}, nil
}

// NodeView is one node plus its resolved data/control edges in both
// directions, the unit a mutation-authoring agent inspects before
// proposing an edit.
type NodeView struct {
	Id      graph.NodeId
	Node    graph.Node
	DataIn  []graph.DataEdge
	DataOut []graph.DataEdge
	CtrlIn  []graph.ControlEdge
	CtrlOut []graph.ControlEdge
}

// NodeQuery resolves one node and its live edges.
func (e *Engine) NodeQuery(program string, id graph.NodeId) (NodeView, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return NodeView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.program.Node(id)
	if !ok {
		return NodeView{}, &NotFoundError{Program: program, Subject: fmt.Sprintf("node %d", id)}
	}
	return NodeView{
		Id:      id,
		Node:    n,
		DataIn:  s.program.DataInputs(id),
		DataOut: s.program.DataOutputs(id),
		CtrlIn:  s.program.CtrlInputs(id),
		CtrlOut: s.program.CtrlOutputs(id),
	}, nil
}

// Neighborhood walks outward from center (both data and control edges,
// in either direction) up to depth hops and returns every node id
// reached, center included, ascending. This is spec.md §6's
// "neighborhood" read — a bounded local view, not a general graph
// query language (explicitly out of scope per spec.md's Non-goals).
func (e *Engine) Neighborhood(program string, center graph.NodeId, depth int) ([]graph.NodeId, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.program.Node(center); !ok {
		return nil, &NotFoundError{Program: program, Subject: fmt.Sprintf("node %d", center)}
	}

	visited := map[graph.NodeId]bool{center: true}
	frontier := []graph.NodeId{center}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []graph.NodeId
		for _, id := range frontier {
			for _, e := range s.program.DataInputs(id) {
				next = append(next, e.Source)
			}
			for _, e := range s.program.DataOutputs(id) {
				next = append(next, e.Target)
			}
			for _, e := range s.program.CtrlInputs(id) {
				next = append(next, e.Source)
			}
			for _, e := range s.program.CtrlOutputs(id) {
				next = append(next, e.Target)
			}
		}
		frontier = frontier[:0]
		for _, id := range next {
			if !visited[id] {
				visited[id] = true
				frontier = append(frontier, id)
			}
		}
	}

	out := make([]graph.NodeId, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SearchResult is one name-matched hit from Search: either a function
// or a semantic-layer node.
type SearchResult struct {
	Kind     string // "function" or the SemanticKind's name
	Name     string
	Function *graph.FunctionId
	Semantic *graph.SemanticId
}

// Search does a case-insensitive substring match over function names
// and semantic-layer node names/summaries — the simple name-based
// lookup spec.md §6 calls for, not a query language.
func (e *Engine) Search(program string, query string) ([]SearchResult, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var out []SearchResult
	for i := range s.program.Functions {
		fn := graph.FunctionId(i)
		f, ok := s.program.Function(fn)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(f.Name), q) {
			fnCopy := fn
			out = append(out, SearchResult{Kind: "function", Name: f.Name, Function: &fnCopy})
		}
	}
	for i := range s.program.Semantics {
		sid := graph.SemanticId(i)
		sn, ok := s.program.SemanticNode(sid)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(sn.Name), q) || strings.Contains(strings.ToLower(sn.Summary), q) {
			sidCopy := sid
			out = append(out, SearchResult{Kind: semanticKindName(sn.Kind), Name: sn.Name, Semantic: &sidCopy})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func semanticKindName(k graph.SemanticKind) string {
	switch k {
	case graph.SemModule:
		return "module"
	case graph.SemFunction:
		return "function"
	case graph.SemType:
		return "type"
	case graph.SemSpec:
		return "spec"
	case graph.SemTest:
		return "test"
	case graph.SemDoc:
		return "doc"
	default:
		return "unknown"
	}
}

// SemanticQuery returns every semantic-layer node and edge attached to
// fn's semantic projection (spec.md §3's semantic layer / §6's
// semantic reads).
func (e *Engine) SemanticQuery(program string, fn graph.FunctionId) (graph.SemanticId, []graph.SemanticEdge, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return 0, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sem, ok := s.program.FunctionSemantic(fn)
	if !ok {
		return 0, nil, &NotFoundError{Program: program, Subject: fmt.Sprintf("semantic projection for function %d", fn)}
	}
	var edges []graph.SemanticEdge
	for _, e := range s.program.SemanticEdges {
		if e.Source == sem || e.Target == sem {
			edges = append(edges, e)
		}
	}
	return sem, edges, nil
}
