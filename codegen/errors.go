// Package codegen implements lmlang's LLVM Backend (spec.md §4.8):
// function-scoped lowering of a graph.Program to native object code via
// tinygo.org/x/go-llvm, with runtime-checked arithmetic, memory and
// control-flow guards, and a generated main wrapper.
package codegen

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
)

// Kind is CompileError's taxonomy (spec.md §7).
type Kind int

const (
	TypeCheckFailed Kind = iota
	LoweringError
	LinkerFailed
	LlvmVerifyFailed
	InvalidTarget
	InternalError
)

func (k Kind) String() string {
	switch k {
	case TypeCheckFailed:
		return "type_check_failed"
	case LoweringError:
		return "lowering_error"
	case LinkerFailed:
		return "linker_failed"
	case LlvmVerifyFailed:
		return "llvm_verify_failed"
	case InvalidTarget:
		return "invalid_target"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Error reports a codegen failure with enough context to locate the
// offending node (spec.md §7: "Codegen surfaces lowering failures with
// the offending node id").
type Error struct {
	Kind     Kind
	Function graph.FunctionId
	Node     *graph.NodeId
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("codegen: %s: function %d node %d: %s", e.Kind, e.Function, *e.Node, e.Message)
	}
	return fmt.Sprintf("codegen: %s: function %d: %s", e.Kind, e.Function, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func nodeErr(kind Kind, fn graph.FunctionId, node graph.NodeId, msg string, cause error) *Error {
	n := node
	return &Error{Kind: kind, Function: fn, Node: &n, Message: msg, Cause: cause}
}
