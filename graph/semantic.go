package graph

import "github.com/snowdamiz/lmlang/types"

// Module is one entry in the hierarchical module tree.
type Module struct {
	Name       string
	Parent     *ModuleId
	Visibility Visibility
	Children   []ModuleId

	removed bool
}

// Param is one ordered, named function parameter.
type Param struct {
	Name string
	Type types.Id
}

// Function is a semantic-layer function definition. ParentFunction and
// Captures are set for closures created via MakeClosure.
type Function struct {
	Name           string
	Module         ModuleId
	Params         []Param
	Return         types.Id
	Visibility     Visibility
	ParentFunction *FunctionId
	Captures       []Param

	removed bool
}

// SemanticKind discriminates the variant of a SemanticNode.
type SemanticKind int

const (
	SemModule SemanticKind = iota
	SemFunction
	SemType
	SemSpec
	SemTest
	SemDoc
)

// SemanticNode is a node in the semantic-layer index space, distinct
// from compute NodeIds.
type SemanticNode struct {
	Kind      SemanticKind
	Name      string
	Summary   string
	Embedding []float32 // optional; nil unless populated out of band

	// FunctionRef links a SemFunction semantic node to its compute
	// FunctionId. Zero value for non-function kinds.
	FunctionRef FunctionId

	removed bool
}

// SemanticRelation names the kind of a SemanticEdge.
type SemanticRelation string

const (
	RelCalls      SemanticRelation = "calls"
	RelImplements SemanticRelation = "implements"
	RelDependsOn  SemanticRelation = "depends_on"
	RelTestFor    SemanticRelation = "test_for"
	RelDocuments  SemanticRelation = "documents"
)

// SemanticEdge is a typed relation between two semantic nodes.
type SemanticEdge struct {
	Source   SemanticId
	Target   SemanticId
	Relation SemanticRelation

	removed bool
}
