// Package mutation implements lmlang's Mutation Engine: the
// propose/validate/commit protocol over structured edits to a
// graph.Program, with dry-run, optimistic conflict detection, an edit
// log, checkpoints, and undo/redo (spec.md §4.2).
package mutation

import (
	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// Kind discriminates the variant of a single Mutation.
type Kind int

const (
	InsertNode Kind = iota
	RemoveNode
	ModifyNode
	AddDataEdge
	AddControlEdge
	RemoveEdge
	AddFunction
	AddModule
	AddType
)

// Mutation is one structured edit. Only the fields relevant to Kind
// are read; this mirrors graph.NodePayload's loosely-typed-bag shape
// so that a Mutation batch can be built, validated and diffed without
// a family of Kind-specific Go types.
type Mutation struct {
	Kind Kind

	// InsertNode / ModifyNode
	Node       graph.Node
	TargetNode graph.NodeId // ModifyNode, RemoveNode

	// AddDataEdge / RemoveEdge(data)
	DataEdge graph.DataEdge

	// AddControlEdge / RemoveEdge(control)
	CtrlEdge graph.ControlEdge

	// RemoveEdge needs to know which edge space to look in.
	RemoveIsControl bool
	RemoveEdgeId    graph.EdgeId

	// AddFunction
	Function graph.Function

	// AddModule
	Module graph.Module

	// AddType
	Type types.LmType
}

// CreatedIds is the set of fresh ids minted while staging a batch,
// returned to the caller regardless of dry_run.
type CreatedIds struct {
	Nodes     []graph.NodeId
	DataEdges []graph.EdgeId
	CtrlEdges []graph.EdgeId
	Functions []graph.FunctionId
	Modules   []graph.ModuleId
	Types     []types.Id
}

// Options configures one ApplyMutations call (spec.md §4.2).
type Options struct {
	DryRun       bool
	ExpectedHash map[graph.FunctionId]compile.Hash
	AgentId      string
}
