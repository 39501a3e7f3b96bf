// Package graph implements lmlang's dual-layer Program Graph: a
// Compute layer of typed operations and data/control edges scoped to
// functions, and a Semantic layer of modules/functions/types/specs
// projected from (and projecting onto) the compute layer.
package graph

// ModuleId, FunctionId and NodeId are dense, index-based identities.
// Per spec.md invariant I5, indices are stable across removals —
// removed entries are tombstoned rather than compacted, so external
// holders of an id never see it reassigned to a different entity.
type (
	ModuleId   uint32
	FunctionId uint32
	NodeId     uint32
	EdgeId     uint32
	SemanticId uint32
)

// Visibility controls cross-module access to a module, function or
// type definition.
type Visibility int

const (
	Private Visibility = iota
	Public
)
