package graph

import "github.com/snowdamiz/lmlang/types"

// Node is a single compute-layer operation. Each node produces at most
// one SSA-like value; Op determines arity, port types (via the type
// checker's rule table) and lowering target.
type Node struct {
	Op    Op
	Owner FunctionId

	// Payload carries op-specific static data (constant values,
	// branch_index for Branch, function targets for Call/MakeClosure,
	// variant names for EnumCreate, messages for contract ops, the
	// target TypeId for Alloc/Cast/Invariant, the index for Parameter
	// and CaptureAccess).
	Payload NodePayload

	removed bool // tombstone; index stays stable per invariant I5
}

// NodePayload is a loosely-typed bag of op-specific static operands.
// Using one struct instead of per-op node types keeps NodeId a flat,
// stable-indexed slice while still letting each op carry what it
// needs; the type checker and interpreter each read only the fields
// relevant to the node's Op.
type NodePayload struct {
	ConstBool bool
	ConstInt  int64
	ConstF32  float32
	ConstF64  float64

	TypeArg types.Id // Alloc target type, Cast target, Invariant target type

	Index int // Parameter index, CaptureAccess index

	Target FunctionId // Call target

	FieldName   string // StructGet/StructSet/StructCreate field
	VariantName string // EnumCreate/EnumPayload variant
	Variant     int    // resolved variant index once known

	Message string // contract message

	Captures []NodeId // MakeClosure capture source nodes
}

// DataEdge routes a source node's single output to a named input port
// on a target node, carrying the concrete type flowing across it.
type DataEdge struct {
	Source     NodeId
	SourcePort int // always 0: nodes have one output
	Target     NodeId
	TargetPort int
	ValueType  types.Id

	removed bool
}

// ControlEdge sequences execution or selects a branch. BranchIndex 0
// is the true/then arm, 1 is false/else; Match arms use ascending
// indices.
type ControlEdge struct {
	Source      NodeId
	Target      NodeId
	BranchIndex int

	removed bool
}
