package interp

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
)

// TrapKind names one of the checked-arithmetic/memory trap conditions
// of spec.md §4.4. A trap halts execution; it does not continue past
// the originating node.
type TrapKind int

const (
	IntegerOverflow TrapKind = iota
	DivideByZero
	OutOfBoundsAccess
	ShiftAmountTooLarge
	RecursionLimitExceeded

	// MissingValue traps when a function's work list exhausts without
	// ever reaching a Return node — a graph whose control/data wiring
	// leaves some path with no value to produce, rather than a value
	// that is merely zero.
	MissingValue

	// TypeMismatchAtRuntime traps when an op holding a value of one
	// kind is asked to treat it as another kind the coercion lattice
	// has no rule for (e.g. Cast to a target the registry can't
	// coerce a scalar into), a condition typecheck.ValidateGraph
	// should normally rule out ahead of time but that a trap still
	// guards against here rather than silently passing the value
	// through unchanged.
	TypeMismatchAtRuntime
)

func (k TrapKind) String() string {
	switch k {
	case IntegerOverflow:
		return "IntegerOverflow"
	case DivideByZero:
		return "DivideByZero"
	case OutOfBoundsAccess:
		return "OutOfBoundsAccess"
	case ShiftAmountTooLarge:
		return "ShiftAmountTooLarge"
	case RecursionLimitExceeded:
		return "RecursionLimitExceeded"
	case MissingValue:
		return "MissingValue"
	case TypeMismatchAtRuntime:
		return "TypeMismatchAtRuntime"
	default:
		return "UnknownTrap"
	}
}

// Trap is a runtime arithmetic/memory error. A trap raised while
// evaluating a node carries that node's NodeId; the per-call
// RecursionLimitExceeded and MissingValue traps leave Node zero.
type Trap struct {
	Kind    TrapKind
	Node    graph.NodeId
	Index   int64 // OutOfBoundsAccess
	Length  int64 // OutOfBoundsAccess
	Message string
}

func (t *Trap) Error() string {
	if t.Message != "" {
		return fmt.Sprintf("interp: %s at node %d: %s", t.Kind, t.Node, t.Message)
	}
	return fmt.Sprintf("interp: %s at node %d", t.Kind, t.Node)
}

// ContractKind names which of the three contract ops produced a
// ContractViolation.
type ContractKind int

const (
	ContractPrecondition ContractKind = iota
	ContractPostcondition
	ContractInvariant
)

func (k ContractKind) String() string {
	switch k {
	case ContractPrecondition:
		return "Precondition"
	case ContractPostcondition:
		return "Postcondition"
	case ContractInvariant:
		return "Invariant"
	default:
		return "UnknownContract"
	}
}

// ContractViolation is a distinct outcome, not a runtime error
// (spec.md §4.5): a contract's boolean subgraph evaluated false.
type ContractViolation struct {
	Kind         ContractKind
	ContractNode graph.NodeId
	Function     graph.FunctionId
	Message      string

	// Inputs holds the value each contract-subgraph node evaluated to,
	// keyed by node id, for counterexample reporting.
	Inputs map[graph.NodeId]Value

	// ActualReturn is set only for Postcondition violations.
	ActualReturn *Value
}

func (v *ContractViolation) Error() string {
	if v.Message != "" {
		return fmt.Sprintf("interp: %s violated at node %d: %s", v.Kind, v.ContractNode, v.Message)
	}
	return fmt.Sprintf("interp: %s violated at node %d", v.Kind, v.ContractNode)
}
