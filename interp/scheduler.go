package interp

import (
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// runFrame drives f's work list to completion: repeatedly fires every
// currently-ready node until either a Return fires (recorded into
// f.returnValue) or no node can make progress. It0 is the owning
// Interpreter, needed for nested Call dispatch, traps, tracing and I/O.
func (it *Interpreter) runFrame(f *Frame) error {
	for {
		id, ok := f.nextReady(it.Program)
		if !ok {
			return nil
		}
		if err := it.fire(f, id); err != nil {
			return err
		}
		if f.returnValue != nil {
			return nil
		}
	}
}

func (it *Interpreter) fire(f *Frame, id graph.NodeId) error {
	n, _ := it.Program.Node(id)
	inputs := it.resolveInputs(f, id)

	val, err := it.evalOp(f, id, n, inputs)
	if err != nil {
		return err
	}
	f.values[id] = val
	f.completed[id] = true

	if it.Config.TraceEnabled {
		it.Trace = append(it.Trace, TraceEntry{Node: id, Op: n.Op, Inputs: copyInputs(inputs), Output: val})
	}

	if n.Op == graph.OpReturn {
		ret := val
		f.returnValue = &ret
		return nil
	}

	return it.activateControlOutputs(f, id, n, val)
}

// resolveInputs gathers the already-computed value at every data input
// port of id, by port index.
func (it *Interpreter) resolveInputs(f *Frame, id graph.NodeId) map[int]Value {
	out := make(map[int]Value)
	for _, e := range it.Program.DataInputs(id) {
		if v, ok := f.values[e.Source]; ok {
			out[e.TargetPort] = v
		}
	}
	return out
}

func copyInputs(in map[int]Value) map[int]Value {
	out := make(map[int]Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// activateControlOutputs propagates control-readiness downstream after
// id fires, selecting only the taken branch for branching ops.
func (it *Interpreter) activateControlOutputs(f *Frame, id graph.NodeId, n graph.Node, val Value) error {
	selected := -1
	switch n.Op {
	case graph.OpIfElse, graph.OpBranch, graph.OpLoop:
		cond := it.resolveInputs(f, id)[0]
		if cond.Kind == VBool && cond.Bool {
			selected = 0
		} else {
			selected = 1
		}
	case graph.OpMatch:
		idx := it.resolveInputs(f, id)[0]
		selected = int(idx.Int)
	}

	for _, e := range it.Program.CtrlOutputs(id) {
		if selected >= 0 && e.BranchIndex != selected {
			continue
		}
		if f.completed[e.Target] {
			f.resetLoopBody(it.Program, e.Target)
		}
		f.controlReady[e.Target] = true
		if tn, ok := it.Program.Node(e.Target); ok && tn.Op == graph.OpPhi {
			f.phiPort[e.Target] = e.BranchIndex
		}
	}
	return nil
}

// evalOp computes id's output value given its resolved inputs. It is
// the interpreter's per-op semantics table, the runtime counterpart of
// typecheck.Table and codegen's lowering table.
func (it *Interpreter) evalOp(f *Frame, id graph.NodeId, n graph.Node, in map[int]Value) (Value, error) {
	switch n.Op {
	case graph.OpConstBool:
		return boolValue(n.Payload.ConstBool), nil
	case graph.OpConstI8:
		return intValue(n.Payload.ConstInt, 8), nil
	case graph.OpConstI16:
		return intValue(n.Payload.ConstInt, 16), nil
	case graph.OpConstI32:
		return intValue(n.Payload.ConstInt, 32), nil
	case graph.OpConstI64:
		return intValue(n.Payload.ConstInt, 64), nil
	case graph.OpConstF32:
		return Value{Kind: VFloat32, F32: n.Payload.ConstF32}, nil
	case graph.OpConstF64:
		return Value{Kind: VFloat64, F64: n.Payload.ConstF64}, nil
	case graph.OpConstUnit:
		return unitValue(), nil

	case graph.OpParameter:
		if n.Payload.Index < 0 || n.Payload.Index >= len(f.args) {
			return Value{}, &Trap{Kind: OutOfBoundsAccess, Node: id, Message: "parameter index out of range"}
		}
		return f.args[n.Payload.Index], nil
	case graph.OpCaptureAccess:
		if n.Payload.Index < 0 || n.Payload.Index >= len(f.captures) {
			return Value{}, &Trap{Kind: OutOfBoundsAccess, Node: id, Message: "capture index out of range"}
		}
		return f.captures[n.Payload.Index], nil

	case graph.OpAdd, graph.OpSub, graph.OpMul, graph.OpDiv, graph.OpRem:
		return checkedArith(n.Op, id, in[0], in[1])
	case graph.OpNeg:
		return checkedArith(graph.OpSub, id, zeroLike(in[0]), in[0])
	case graph.OpAbs:
		v := in[0]
		if v.Kind == VInt && v.Int < 0 {
			return checkedArith(graph.OpSub, id, zeroLike(v), v)
		}
		return v, nil

	case graph.OpEq:
		return boolValue(in[0].Equal(in[1])), nil
	case graph.OpNe:
		return boolValue(!in[0].Equal(in[1])), nil
	case graph.OpLt:
		return compareOrdered(in[0], in[1], func(c int) bool { return c < 0 }), nil
	case graph.OpLe:
		return compareOrdered(in[0], in[1], func(c int) bool { return c <= 0 }), nil
	case graph.OpGt:
		return compareOrdered(in[0], in[1], func(c int) bool { return c > 0 }), nil
	case graph.OpGe:
		return compareOrdered(in[0], in[1], func(c int) bool { return c >= 0 }), nil

	case graph.OpAnd:
		return logicOp(in[0], in[1], func(a, b bool) bool { return a && b }, func(a, b int64) int64 { return a & b }), nil
	case graph.OpOr:
		return logicOp(in[0], in[1], func(a, b bool) bool { return a || b }, func(a, b int64) int64 { return a | b }), nil
	case graph.OpXor:
		return logicOp(in[0], in[1], func(a, b bool) bool { return a != b }, func(a, b int64) int64 { return a ^ b }), nil
	case graph.OpNot:
		v := in[0]
		if v.Kind == VBool {
			return boolValue(!v.Bool), nil
		}
		return intValue(^v.Int, v.Width), nil

	case graph.OpShl, graph.OpShrLogical, graph.OpShrArith:
		return checkedShift(n.Op, id, in[0], in[1])

	case graph.OpAlloc:
		zero := zeroValue(it.Program.Types, n.Payload.TypeArg)
		cell := &Cell{Value: zero}
		return Value{Kind: VPointer, Pointer: cell}, nil
	case graph.OpLoad:
		return loadPointer(id, in[0])
	case graph.OpStore:
		if err := storePointer(id, in[0], in[1]); err != nil {
			return Value{}, err
		}
		return unitValue(), nil
	case graph.OpGetElementPtr:
		return gepPointer(id, in[0], n.Payload.Index, in)

	case graph.OpIfElse, graph.OpBranch, graph.OpLoop, graph.OpJump, graph.OpMatch:
		return unitValue(), nil
	case graph.OpPhi:
		port := f.phiPort[id]
		return in[port], nil

	case graph.OpCall:
		return it.callNamed(f, id, n, in)
	case graph.OpIndirectCall:
		return it.callIndirect(f, id, in)
	case graph.OpReturn:
		return in[0], nil

	case graph.OpMakeClosure:
		caps := make([]Value, 0, len(n.Payload.Captures))
		for _, srcId := range n.Payload.Captures {
			caps = append(caps, f.values[srcId])
		}
		return Value{Kind: VClosure, ClosureFn: n.Payload.Target, ClosureCaptures: caps}, nil

	case graph.OpPrint:
		it.IO.Print(in[0].String())
		return unitValue(), nil
	case graph.OpReadLine:
		line, err := it.IO.ReadLine()
		if err != nil {
			return intValue(0, 64), nil
		}
		return intValue(int64(len(line)), 64), nil
	case graph.OpFileOpen, graph.OpFileRead, graph.OpFileWrite:
		return unitValue(), nil

	case graph.OpStructCreate:
		return Value{Kind: VStruct, Struct: orderedArgs(n, in)}, nil
	case graph.OpStructGet:
		return structField(it.Program.Types, id, in[0], n.Payload.FieldName)
	case graph.OpStructSet:
		return structWith(it.Program.Types, id, in[0], n.Payload.FieldName, in[1])
	case graph.OpArrayCreate:
		return Value{Kind: VArray, Array: orderedArgs(n, in)}, nil
	case graph.OpArrayGet:
		return arrayIndex(id, in[0], in[1])
	case graph.OpArraySet:
		return arraySet(id, in[0], in[1], in[2])
	case graph.OpCast:
		return castValue(it.Program.Types, id, n.Payload.TypeArg, in[0])
	case graph.OpEnumCreate:
		var payload *Value
		if v, ok := in[0]; ok {
			payload = &v
		}
		return Value{Kind: VEnum, EnumVariant: n.Payload.VariantName, EnumPayload: payload}, nil
	case graph.OpEnumDiscriminant:
		return intValue(int64(enumDiscriminant(it.Program.Types, n, in[0])), 32), nil
	case graph.OpEnumPayload:
		if in[0].EnumPayload == nil {
			return Value{}, &Trap{Kind: OutOfBoundsAccess, Node: id, Message: "enum has no payload"}
		}
		return *in[0].EnumPayload, nil

	case graph.OpPrecondition, graph.OpPostcondition, graph.OpInvariant:
		// Contract nodes are evaluated out-of-band by evalContracts,
		// never by the main work list; they never appear in f.nodes for
		// a frame run through runFrame directly (mainWorkList excludes
		// them). Reaching here
		// would be an internal inconsistency.
		return unitValue(), nil

	default:
		return Value{}, &Trap{Kind: OutOfBoundsAccess, Node: id, Message: "unhandled op " + n.Op.String()}
	}
}

func zeroLike(v Value) Value {
	switch v.Kind {
	case VFloat32:
		return Value{Kind: VFloat32}
	case VFloat64:
		return Value{Kind: VFloat64}
	default:
		return intValue(0, v.Width)
	}
}

func orderedArgs(n graph.Node, in map[int]Value) []Value {
	out := make([]Value, len(in))
	for port, v := range in {
		if port >= 0 && port < len(out) {
			out[port] = v
		}
	}
	return out
}

func zeroValue(reg *types.Registry, id types.Id) Value {
	lt, ok := reg.Lookup(id)
	if !ok {
		return unitValue()
	}
	switch lt.Kind {
	case types.KindScalar:
		switch id {
		case types.Bool:
			return boolValue(false)
		case types.F32:
			return Value{Kind: VFloat32}
		case types.F64:
			return Value{Kind: VFloat64}
		case types.Unit:
			return unitValue()
		default:
			return intValue(0, reg.BitWidth(id))
		}
	case types.KindArray:
		elems := make([]Value, lt.Length)
		for i := range elems {
			elems[i] = zeroValue(reg, lt.Element)
		}
		return Value{Kind: VArray, Array: elems}
	case types.KindStruct:
		fields := make([]Value, len(lt.Fields))
		for i, f := range lt.Fields {
			fields[i] = zeroValue(reg, f.Type)
		}
		return Value{Kind: VStruct, Struct: fields}
	case types.KindPointer:
		return Value{Kind: VPointer}
	default:
		return unitValue()
	}
}
