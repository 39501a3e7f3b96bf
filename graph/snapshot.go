package graph

import "github.com/snowdamiz/lmlang/types"

// Snapshot is a fully exported, serialization-friendly mirror of a
// Program's entire state, tombstones included. storage.GraphStore
// persists and restores programs exclusively through Snapshot/
// FromSnapshot rather than reaching into Program's unexported removed
// bookkeeping, keeping tombstone discipline (invariant I5) owned by
// this package regardless of which backend stores the bytes.
type Snapshot struct {
	Name string

	Types []types.LmType

	Modules   []ModuleRow
	Functions []FunctionRow
	Nodes     []NodeRow
	DataEdges []DataEdgeRow
	CtrlEdges []CtrlEdgeRow

	Semantics     []SemanticNodeRow
	SemanticEdges []SemanticEdgeRow

	FuncToSem map[FunctionId]SemanticId
}

type ModuleRow struct {
	Name       string
	Parent     *ModuleId
	Visibility Visibility
	Children   []ModuleId
	Removed    bool
}

type FunctionRow struct {
	Name           string
	Module         ModuleId
	Params         []Param
	Return         types.Id
	Visibility     Visibility
	ParentFunction *FunctionId
	Captures       []Param
	Removed        bool
}

type NodeRow struct {
	Op      Op
	Owner   FunctionId
	Payload NodePayload
	Removed bool
}

type DataEdgeRow struct {
	Source     NodeId
	SourcePort int
	Target     NodeId
	TargetPort int
	ValueType  types.Id
	Removed    bool
}

type CtrlEdgeRow struct {
	Source      NodeId
	Target      NodeId
	BranchIndex int
	Removed     bool
}

type SemanticNodeRow struct {
	Kind        SemanticKind
	Name        string
	Summary     string
	Embedding   []float32
	FunctionRef FunctionId
	Removed     bool
}

type SemanticEdgeRow struct {
	Source   SemanticId
	Target   SemanticId
	Relation SemanticRelation
	Removed  bool
}

// Snapshot captures p's complete state for persistence.
func (p *Program) Snapshot() Snapshot {
	s := Snapshot{
		Name:      p.Name,
		Types:     p.Types.All(),
		FuncToSem: make(map[FunctionId]SemanticId, len(p.funcToSem)),
	}
	for _, m := range p.Modules {
		s.Modules = append(s.Modules, ModuleRow{
			Name: m.Name, Parent: m.Parent, Visibility: m.Visibility,
			Children: m.Children, Removed: m.removed,
		})
	}
	for _, f := range p.Functions {
		s.Functions = append(s.Functions, FunctionRow{
			Name: f.Name, Module: f.Module, Params: f.Params, Return: f.Return,
			Visibility: f.Visibility, ParentFunction: f.ParentFunction,
			Captures: f.Captures, Removed: f.removed,
		})
	}
	for _, n := range p.Nodes {
		s.Nodes = append(s.Nodes, NodeRow{Op: n.Op, Owner: n.Owner, Payload: n.Payload, Removed: n.removed})
	}
	for _, e := range p.DataEdges {
		s.DataEdges = append(s.DataEdges, DataEdgeRow{
			Source: e.Source, SourcePort: e.SourcePort, Target: e.Target,
			TargetPort: e.TargetPort, ValueType: e.ValueType, Removed: e.removed,
		})
	}
	for _, e := range p.CtrlEdges {
		s.CtrlEdges = append(s.CtrlEdges, CtrlEdgeRow{
			Source: e.Source, Target: e.Target, BranchIndex: e.BranchIndex, Removed: e.removed,
		})
	}
	for _, n := range p.Semantics {
		s.Semantics = append(s.Semantics, SemanticNodeRow{
			Kind: n.Kind, Name: n.Name, Summary: n.Summary, Embedding: n.Embedding,
			FunctionRef: n.FunctionRef, Removed: n.removed,
		})
	}
	for _, e := range p.SemanticEdges {
		s.SemanticEdges = append(s.SemanticEdges, SemanticEdgeRow{
			Source: e.Source, Target: e.Target, Relation: e.Relation, Removed: e.removed,
		})
	}
	for f, sem := range p.funcToSem {
		s.FuncToSem[f] = sem
	}
	return s
}

// FromSnapshot rebuilds a live Program from a previously captured
// Snapshot, recomputing the derived semToCompute index from the
// restored nodes rather than persisting it redundantly.
func FromSnapshot(s Snapshot) *Program {
	p := &Program{
		Name:         s.Name,
		Types:        types.RegistryFromTypes(s.Types),
		semToCompute: make(map[SemanticId]map[NodeId]struct{}),
		funcToSem:    make(map[FunctionId]SemanticId, len(s.FuncToSem)),
	}
	for _, m := range s.Modules {
		p.Modules = append(p.Modules, Module{
			Name: m.Name, Parent: m.Parent, Visibility: m.Visibility,
			Children: m.Children, removed: m.Removed,
		})
	}
	for _, f := range s.Functions {
		p.Functions = append(p.Functions, Function{
			Name: f.Name, Module: f.Module, Params: f.Params, Return: f.Return,
			Visibility: f.Visibility, ParentFunction: f.ParentFunction,
			Captures: f.Captures, removed: f.Removed,
		})
	}
	for _, n := range s.Nodes {
		p.Nodes = append(p.Nodes, Node{Op: n.Op, Owner: n.Owner, Payload: n.Payload, removed: n.Removed})
	}
	for _, e := range s.DataEdges {
		p.DataEdges = append(p.DataEdges, DataEdge{
			Source: e.Source, SourcePort: e.SourcePort, Target: e.Target,
			TargetPort: e.TargetPort, ValueType: e.ValueType, removed: e.Removed,
		})
	}
	for _, e := range s.CtrlEdges {
		p.CtrlEdges = append(p.CtrlEdges, ControlEdge{
			Source: e.Source, Target: e.Target, BranchIndex: e.BranchIndex, removed: e.Removed,
		})
	}
	for _, n := range s.Semantics {
		p.Semantics = append(p.Semantics, SemanticNode{
			Kind: n.Kind, Name: n.Name, Summary: n.Summary, Embedding: n.Embedding,
			FunctionRef: n.FunctionRef, removed: n.Removed,
		})
	}
	for _, e := range s.SemanticEdges {
		p.SemanticEdges = append(p.SemanticEdges, SemanticEdge{
			Source: e.Source, Target: e.Target, Relation: e.Relation, removed: e.Removed,
		})
	}
	for f, sem := range s.FuncToSem {
		p.funcToSem[f] = sem
	}
	for fn, sem := range p.funcToSem {
		set := make(map[NodeId]struct{})
		for _, n := range p.NodesOf(fn) {
			set[n] = struct{}{}
		}
		p.semToCompute[sem] = set
	}
	return p
}
