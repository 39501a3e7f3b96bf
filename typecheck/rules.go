// Package typecheck implements lmlang's static Type Checker: a per-op
// rule table over data edges (spec.md §4.3), run eagerly on every
// mutated edge/node and in full over the whole graph on demand.
package typecheck

import (
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// ConstraintKind is one of the port-constraint forms spec.md §4.3 names.
type ConstraintKind int

const (
	CAny ConstraintKind = iota
	CExact
	CSameAs
	CBool
	CNumeric
	CInteger
	CPointer
)

// Constraint is one input port's typing rule.
type Constraint struct {
	Kind     ConstraintKind
	Exact    types.Id // CExact
	SameAsPort int    // CSameAs
}

// Rule is the type rule for one Op: its input port constraints (by
// port index) and how to compute the node's output type from the
// resolved input types.
type Rule struct {
	// Inputs maps port index -> constraint. An op with no entry for a
	// mandatory port is a validate_graph "missing input" error.
	Inputs map[int]Constraint

	// MandatoryPorts lists ports that must have an incoming data edge
	// for the node to be well-formed (checked by validate_graph, not
	// just local edge checks).
	MandatoryPorts []int

	// OutputType computes the node's output type given the resolved
	// types actually observed at each input port (and, for ops whose
	// output depends on static payload like Alloc/Cast, the node
	// itself). Returns (typeId, ok); ok=false means the rule could not
	// determine an output (e.g. mismatched SameAs ports), which the
	// caller turns into a TypeError.
	OutputType func(reg *types.Registry, node graph.Node, inputs map[int]types.Id) (types.Id, bool)
}

// Table is the full op -> Rule mapping. Adding a new Op requires
// adding its Rule here (see graph.Op's doc comment on the four dispatch
// points a new op forces updates in).
var Table = buildTable()

func sameAsRule(port int) Rule {
	return Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}, 1: {Kind: CSameAs, SameAsPort: 0}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return in[0], true
		},
	}
}

func comparisonRule() Rule {
	return Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}, 1: {Kind: CSameAs, SameAsPort: 0}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return types.Bool, true
		},
	}
}

func unaryRule(constraint Constraint) Rule {
	return Rule{
		Inputs:         map[int]Constraint{0: constraint},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return in[0], true
		},
	}
}

func buildTable() map[graph.Op]Rule {
	t := make(map[graph.Op]Rule)

	constOut := func(id types.Id) Rule {
		return Rule{OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return id, true
		}}
	}
	t[graph.OpConstBool] = constOut(types.Bool)
	t[graph.OpConstI8] = constOut(types.I8)
	t[graph.OpConstI16] = constOut(types.I16)
	t[graph.OpConstI32] = constOut(types.I32)
	t[graph.OpConstI64] = constOut(types.I64)
	t[graph.OpConstF32] = constOut(types.F32)
	t[graph.OpConstF64] = constOut(types.F64)
	t[graph.OpConstUnit] = Rule{OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
		return types.Unit, false // Unit produces no SSA value per spec.md §4.1
	}}

	for _, op := range []graph.Op{graph.OpAdd, graph.OpSub, graph.OpMul, graph.OpDiv, graph.OpRem} {
		t[op] = Rule{
			Inputs:         map[int]Constraint{0: {Kind: CNumeric}, 1: {Kind: CSameAs, SameAsPort: 0}},
			MandatoryPorts: []int{0, 1},
			OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
				return in[0], true
			},
		}
	}
	t[graph.OpNeg] = unaryRule(Constraint{Kind: CNumeric})
	t[graph.OpAbs] = unaryRule(Constraint{Kind: CNumeric})

	for _, op := range []graph.Op{graph.OpEq, graph.OpNe, graph.OpLt, graph.OpLe, graph.OpGt, graph.OpGe} {
		t[op] = comparisonRule()
	}

	t[graph.OpAnd] = sameAsRule(0)
	t[graph.OpOr] = sameAsRule(0)
	t[graph.OpXor] = sameAsRule(0)
	t[graph.OpNot] = unaryRule(Constraint{Kind: CAny})

	for _, op := range []graph.Op{graph.OpShl, graph.OpShrLogical, graph.OpShrArith} {
		t[op] = Rule{
			Inputs:         map[int]Constraint{0: {Kind: CInteger}, 1: {Kind: CInteger}},
			MandatoryPorts: []int{0, 1},
			OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
				return in[0], true
			},
		}
	}

	t[graph.OpAlloc] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(node.Payload.TypeArg)
			if !ok {
				return 0, false
			}
			ptr := reg.Define(types.LmType{Kind: types.KindPointer, Pointee: node.Payload.TypeArg, Mutable: true})
			_ = lt
			return ptr, true
		},
	}
	t[graph.OpLoad] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CPointer}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(in[0])
			if !ok || lt.Kind != types.KindPointer {
				return 0, false
			}
			return lt.Pointee, true
		},
	}
	t[graph.OpStore] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CPointer}, 1: {Kind: CAny}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return types.Unit, false
		},
	}
	t[graph.OpGetElementPtr] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CPointer}, 1: {Kind: CInteger}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(in[0])
			if !ok || lt.Kind != types.KindPointer {
				return 0, false
			}
			elem, ok := reg.Lookup(lt.Pointee)
			if !ok {
				return 0, false
			}
			var pointee types.Id
			switch elem.Kind {
			case types.KindArray:
				pointee = elem.Element
			case types.KindStruct:
				if node.Payload.Index >= 0 && node.Payload.Index < len(elem.Fields) {
					pointee = elem.Fields[node.Payload.Index].Type
				} else {
					return 0, false
				}
			default:
				pointee = lt.Pointee
			}
			return reg.Define(types.LmType{Kind: types.KindPointer, Pointee: pointee, Mutable: lt.Mutable}), true
		},
	}

	t[graph.OpIfElse] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CBool}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return types.Unit, false
		},
	}
	t[graph.OpLoop] = Rule{OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false }}
	t[graph.OpMatch] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}
	t[graph.OpBranch] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CBool}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}
	t[graph.OpJump] = Rule{OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false }}
	t[graph.OpPhi] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}, 1: {Kind: CSameAs, SameAsPort: 0}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return in[0], true
		},
	}

	t[graph.OpCall] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return 0, false // resolved against the callee's Return by the checker, which knows FunctionIds
		},
	}
	t[graph.OpIndirectCall] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(in[0])
			if !ok || lt.Kind != types.KindFunction {
				return 0, false
			}
			return lt.Return, true
		},
	}
	t[graph.OpReturn] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}
	t[graph.OpParameter] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return 0, false // resolved against the owning function's Params by the checker
		},
	}

	t[graph.OpMakeClosure] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return 0, false // resolved against the target function's signature by the checker
		},
	}
	t[graph.OpCaptureAccess] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return 0, false // resolved against the owning closure's Captures by the checker
		},
	}

	t[graph.OpPrint] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}
	t[graph.OpReadLine] = Rule{OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.I64, true }}
	for _, op := range []graph.Op{graph.OpFileOpen, graph.OpFileRead, graph.OpFileWrite} {
		t[op] = Rule{OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false }}
	}

	t[graph.OpStructCreate] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return node.Payload.TypeArg, true
		},
	}
	t[graph.OpStructGet] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(in[0])
			if !ok || lt.Kind != types.KindStruct {
				return 0, false
			}
			for _, f := range lt.Fields {
				if f.Name == node.Payload.FieldName {
					return f.Type, true
				}
			}
			return 0, false
		},
	}
	t[graph.OpStructSet] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}, 1: {Kind: CAny}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return in[0], true
		},
	}
	t[graph.OpArrayCreate] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return node.Payload.TypeArg, true
		},
	}
	t[graph.OpArrayGet] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}, 1: {Kind: CInteger}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(in[0])
			if !ok || lt.Kind != types.KindArray {
				return 0, false
			}
			return lt.Element, true
		},
	}
	t[graph.OpArraySet] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}, 1: {Kind: CInteger}, 2: {Kind: CAny}},
		MandatoryPorts: []int{0, 1, 2},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return in[0], true
		},
	}
	t[graph.OpCast] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return node.Payload.TypeArg, true
		},
	}
	t[graph.OpEnumCreate] = Rule{
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			return node.Payload.TypeArg, true
		},
	}
	t[graph.OpEnumDiscriminant] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.I32, true },
	}
	t[graph.OpEnumPayload] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CAny}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) {
			lt, ok := reg.Lookup(in[0])
			if !ok || lt.Kind != types.KindEnum {
				return 0, false
			}
			for _, v := range lt.Variants {
				if v.Name == node.Payload.VariantName && v.Payload != nil {
					return *v.Payload, true
				}
			}
			return 0, false
		},
	}

	t[graph.OpPrecondition] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CBool}},
		MandatoryPorts: []int{0},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}
	t[graph.OpPostcondition] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CBool}, 1: {Kind: CAny}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}
	t[graph.OpInvariant] = Rule{
		Inputs:         map[int]Constraint{0: {Kind: CBool}, 1: {Kind: CAny}},
		MandatoryPorts: []int{0, 1},
		OutputType: func(reg *types.Registry, node graph.Node, in map[int]types.Id) (types.Id, bool) { return types.Unit, false },
	}

	return t
}

// SatisfiesConstraint reports whether a value of type actual may flow
// into a port with the given constraint, where inputs holds the types
// already resolved at other ports (needed for SameAs).
func SatisfiesConstraint(reg *types.Registry, c Constraint, actual types.Id, resolved map[int]types.Id) bool {
	switch c.Kind {
	case CAny:
		return true
	case CExact:
		return actual == c.Exact || reg.CanCoerce(actual, c.Exact)
	case CSameAs:
		want, ok := resolved[c.SameAsPort]
		if !ok {
			return true // other port not yet resolved; eager check revisits on that edge
		}
		return actual == want || reg.CanCoerce(actual, want)
	case CBool:
		return actual == types.Bool
	case CNumeric:
		return reg.IsNumeric(actual)
	case CInteger:
		return reg.IsInteger(actual)
	case CPointer:
		lt, ok := reg.Lookup(actual)
		return ok && lt.Kind == types.KindPointer
	default:
		return false
	}
}
