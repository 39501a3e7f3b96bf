package graph

import (
	"fmt"

	"github.com/snowdamiz/lmlang/types"
)

// Program is the authoritative dual-layer Program Graph for one
// program: a Type Registry, a Module tree, Function definitions, the
// Compute layer (nodes + data/control edges, partitioned by owning
// function), the Semantic layer, and the bijective cross-layer
// references between them (spec.md invariant I4).
//
// A Program is never mutated directly by callers — all changes flow
// through mutation.Engine.ApplyMutations, which stages edits on a
// cloned Program, runs the type checker, and swaps the clone in only
// on success (spec.md §4.2). Program's own methods are therefore
// package-internal-ish conveniences for staging and for read-only
// queries; they do not themselves enforce the mutation protocol.
type Program struct {
	Name string

	Types *types.Registry

	Modules   []Module
	Functions []Function
	Nodes     []Node
	DataEdges []DataEdge
	CtrlEdges []ControlEdge

	Semantics     []SemanticNode
	SemanticEdges []SemanticEdge

	// semToCompute / computeToSem are the bijective cross-references
	// of invariant I4, restricted to Function semantic nodes <->
	// FunctionIds; semToCompute additionally carries the full set of
	// compute NodeIds owned by a semantic Function node.
	semToCompute map[SemanticId]map[NodeId]struct{}
	funcToSem    map[FunctionId]SemanticId
}

// NewProgram creates an empty program with a fresh type registry.
func NewProgram(name string) *Program {
	return &Program{
		Name:         name,
		Types:        types.NewRegistry(),
		semToCompute: make(map[SemanticId]map[NodeId]struct{}),
		funcToSem:    make(map[FunctionId]SemanticId),
	}
}

// Clone returns a deep-enough copy of p suitable for staging a
// mutation batch: every slice is copied so appends/edits on the clone
// never alias the committed Program.
func (p *Program) Clone() *Program {
	clone := &Program{
		Name:         p.Name,
		Types:        p.Types.Clone(),
		Modules:      append([]Module(nil), p.Modules...),
		Functions:    append([]Function(nil), p.Functions...),
		Nodes:        append([]Node(nil), p.Nodes...),
		DataEdges:    append([]DataEdge(nil), p.DataEdges...),
		CtrlEdges:    append([]ControlEdge(nil), p.CtrlEdges...),
		Semantics:    append([]SemanticNode(nil), p.Semantics...),
		SemanticEdges: append([]SemanticEdge(nil), p.SemanticEdges...),
		semToCompute: make(map[SemanticId]map[NodeId]struct{}, len(p.semToCompute)),
		funcToSem:    make(map[FunctionId]SemanticId, len(p.funcToSem)),
	}
	for sem, set := range p.semToCompute {
		clone.semToCompute[sem] = make(map[NodeId]struct{}, len(set))
		for n := range set {
			clone.semToCompute[sem][n] = struct{}{}
		}
	}
	for f, sem := range p.funcToSem {
		clone.funcToSem[f] = sem
	}
	return clone
}

// --- Lookups ---

func (p *Program) Node(id NodeId) (Node, bool) {
	if int(id) >= len(p.Nodes) || p.Nodes[id].removed {
		return Node{}, false
	}
	return p.Nodes[id], true
}

func (p *Program) Function(id FunctionId) (Function, bool) {
	if int(id) >= len(p.Functions) || p.Functions[id].removed {
		return Function{}, false
	}
	return p.Functions[id], true
}

func (p *Program) Module(id ModuleId) (Module, bool) {
	if int(id) >= len(p.Modules) || p.Modules[id].removed {
		return Module{}, false
	}
	return p.Modules[id], true
}

func (p *Program) SemanticNode(id SemanticId) (SemanticNode, bool) {
	if int(id) >= len(p.Semantics) || p.Semantics[id].removed {
		return SemanticNode{}, false
	}
	return p.Semantics[id], true
}

// NodesOf returns the (non-tombstoned) compute nodes owned by fn,
// ordered by NodeId, the canonical order hash_function_for_compilation
// and codegen both rely on.
func (p *Program) NodesOf(fn FunctionId) []NodeId {
	var out []NodeId
	for i, n := range p.Nodes {
		if !n.removed && n.Owner == fn {
			out = append(out, NodeId(i))
		}
	}
	return out
}

// DataEdgesTouching returns every non-tombstoned data edge whose
// source or target node belongs to fn.
func (p *Program) DataEdgesTouching(fn FunctionId) []EdgeId {
	owned := make(map[NodeId]bool)
	for _, id := range p.NodesOf(fn) {
		owned[id] = true
	}
	var out []EdgeId
	for i, e := range p.DataEdges {
		if e.removed {
			continue
		}
		if owned[e.Source] || owned[e.Target] {
			out = append(out, EdgeId(i))
		}
	}
	return out
}

// CtrlEdgesTouching mirrors DataEdgesTouching for control edges.
func (p *Program) CtrlEdgesTouching(fn FunctionId) []EdgeId {
	owned := make(map[NodeId]bool)
	for _, id := range p.NodesOf(fn) {
		owned[id] = true
	}
	var out []EdgeId
	for i, e := range p.CtrlEdges {
		if e.removed {
			continue
		}
		if owned[e.Source] || owned[e.Target] {
			out = append(out, EdgeId(i))
		}
	}
	return out
}

// RemoveNode tombstones a node in place. Index stability (invariant
// I5) means removal never shifts other NodeIds.
func (p *Program) RemoveNode(id NodeId) {
	if int(id) < len(p.Nodes) {
		p.Nodes[id].removed = true
	}
}

// RemoveDataEdge tombstones a data edge in place.
func (p *Program) RemoveDataEdge(id EdgeId) {
	if int(id) < len(p.DataEdges) {
		p.DataEdges[id].removed = true
	}
}

// RemoveCtrlEdge tombstones a control edge in place.
func (p *Program) RemoveCtrlEdge(id EdgeId) {
	if int(id) < len(p.CtrlEdges) {
		p.CtrlEdges[id].removed = true
	}
}

// DataEdgeLive reports whether the data edge at id has not been
// tombstoned by a RemoveEdge mutation.
func (p *Program) DataEdgeLive(id EdgeId) bool {
	return int(id) < len(p.DataEdges) && !p.DataEdges[id].removed
}

// CtrlEdgeLive reports whether the control edge at id has not been
// tombstoned by a RemoveEdge mutation.
func (p *Program) CtrlEdgeLive(id EdgeId) bool {
	return int(id) < len(p.CtrlEdges) && !p.CtrlEdges[id].removed
}

// DataInputs returns the data edges whose Target is node, ordered by
// TargetPort.
func (p *Program) DataInputs(node NodeId) []DataEdge {
	var out []DataEdge
	for _, e := range p.DataEdges {
		if !e.removed && e.Target == node {
			out = append(out, e)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].TargetPort < out[j-1].TargetPort; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// DataOutputs returns the data edges whose Source is node.
func (p *Program) DataOutputs(node NodeId) []DataEdge {
	var out []DataEdge
	for _, e := range p.DataEdges {
		if !e.removed && e.Source == node {
			out = append(out, e)
		}
	}
	return out
}

// CtrlInputs returns the control edges whose Target is node.
func (p *Program) CtrlInputs(node NodeId) []ControlEdge {
	var out []ControlEdge
	for _, e := range p.CtrlEdges {
		if !e.removed && e.Target == node {
			out = append(out, e)
		}
	}
	return out
}

// CtrlOutputs returns the control edges whose Source is node.
func (p *Program) CtrlOutputs(node NodeId) []ControlEdge {
	var out []ControlEdge
	for _, e := range p.CtrlEdges {
		if !e.removed && e.Source == node {
			out = append(out, e)
		}
	}
	return out
}

// FunctionSemantic returns the semantic Function node bound to fn, if
// any (invariant I4's bijection).
func (p *Program) FunctionSemantic(fn FunctionId) (SemanticId, bool) {
	sem, ok := p.funcToSem[fn]
	return sem, ok
}

// ComputeNodesOfSemantic returns the compute-node set a semantic
// Function node owns, per the sem_to_compute cross-reference.
func (p *Program) ComputeNodesOfSemantic(sem SemanticId) []NodeId {
	set := p.semToCompute[sem]
	out := make([]NodeId, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}

// BindFunctionSemantic establishes the I4 bijection between a compute
// FunctionId and a semantic Function node, and seeds its compute-node
// set from the function's current nodes. Called by the mutation
// engine when AddFunction also creates a semantic projection.
func (p *Program) BindFunctionSemantic(fn FunctionId, sem SemanticId) error {
	if existing, ok := p.funcToSem[fn]; ok && existing != sem {
		return fmt.Errorf("graph: function %d already bound to semantic node %d", fn, existing)
	}
	p.funcToSem[fn] = sem
	if p.semToCompute[sem] == nil {
		p.semToCompute[sem] = make(map[NodeId]struct{})
	}
	for _, n := range p.NodesOf(fn) {
		p.semToCompute[sem][n] = struct{}{}
	}
	return nil
}

// SyncSemanticProjection refreshes a bound semantic Function node's
// compute-node set to match the function's current nodes. Per
// spec.md's "Dual-layer propagation risk" design note, this is the
// only direction compute-edit propagation runs in a single mutation
// batch — it must never also push semantic edits back into compute in
// the same call, which would form an echo loop.
func (p *Program) SyncSemanticProjection(fn FunctionId) {
	sem, ok := p.funcToSem[fn]
	if !ok {
		return
	}
	set := make(map[NodeId]struct{})
	for _, n := range p.NodesOf(fn) {
		set[n] = struct{}{}
	}
	p.semToCompute[sem] = set
}
