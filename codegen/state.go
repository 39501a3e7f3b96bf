package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// operand pairs an already-lowered SSA value with the graph-level type
// flowing on the data edge that produced it. The type travels alongside
// the value because LLVM's own type (i32, float, ...) doesn't
// distinguish signed-integer from float intent for operator selection.
type operand struct {
	v llvm.Value
	t types.Id
}

// funcState is lowering context for exactly one graph.Function. It is
// created fresh per function (mirroring the teacher's function-scoped
// Context/Module/Builder discipline) and discarded once the function's
// body is emitted.
type funcState struct {
	ctx llvm.Context
	m   llvm.Module
	b   llvm.Builder
	rt  *runtimeExterns
	tc  *typeCache

	prog  *graph.Program
	fnId  graph.FunctionId
	fn    graph.Function
	llfn  llvm.Value
	funcs map[graph.FunctionId]llvm.Value // all declared headers, for Call/MakeClosure

	paramAllocas  map[int]llvm.Value
	envPtr        llvm.Value // trailing env parameter, nil if fn has no captures
	captureTypes  []types.Id

	values     map[graph.NodeId]llvm.Value
	valueBlock map[graph.NodeId]llvm.BasicBlock
	nodeBlock  map[graph.NodeId]llvm.BasicBlock // header/merge/arm blocks, keyed by the node they represent
}

func (fs *funcState) intType(width int) llvm.Type {
	switch width {
	case 1:
		return fs.ctx.Int1Type()
	case 8:
		return fs.ctx.Int8Type()
	case 16:
		return fs.ctx.Int16Type()
	case 64:
		return fs.ctx.Int64Type()
	default:
		return fs.ctx.Int32Type()
	}
}

// guard branches to a fresh block that reports a runtime error and
// traps (noreturn) when cond is true, otherwise falls through to a
// fresh continuation block that becomes the new insert point. Mirrors
// the teacher's argcBad/argvBad dedicated-error-block pattern.
func (fs *funcState) guard(cond llvm.Value, kind int, node graph.NodeId) {
	badBB := llvm.AddBasicBlock(fs.llfn, "")
	okBB := llvm.AddBasicBlock(fs.llfn, "")
	fs.b.CreateCondBr(cond, badBB, okBB)

	fs.b.SetInsertPointAtEnd(badBB)
	i32 := fs.ctx.Int32Type()
	fs.b.CreateCall(fs.rt.lmlangRuntimeError, []llvm.Value{
		llvm.ConstInt(i32, uint64(kind), false),
		llvm.ConstInt(i32, uint64(node), false),
	}, "")
	fs.b.CreateUnreachable()

	fs.b.SetInsertPointAtEnd(okBB)
}

func (fs *funcState) guardNilPtr(id graph.NodeId, ptr llvm.Value) {
	nullPtr := llvm.ConstPointerNull(ptr.Type())
	isNull := fs.b.CreateICmp(llvm.IntEQ, ptr, nullPtr, "")
	fs.guard(isNull, 4, id)
}

func (fs *funcState) boundsGuard(id graph.NodeId, idx llvm.Value, length int) {
	tooSmall := fs.b.CreateICmp(llvm.IntSLT, idx, llvm.ConstInt(idx.Type(), 0, true), "")
	tooLarge := fs.b.CreateICmp(llvm.IntSGE, idx, llvm.ConstInt(idx.Type(), uint64(length), false), "")
	fs.guard(fs.b.CreateOr(tooSmall, tooLarge, ""), 3, id)
}

// overflowIntrinsic declares (once per name) one of LLVM's
// llvm.{s,u}{add,sub,mul}.with.overflow.iN intrinsics, the same
// declare-by-name-and-signature idiom the teacher uses for printf,
// atoi and atof.
func (fs *funcState) overflowIntrinsic(name string, width int) llvm.Value {
	if v := fs.m.NamedFunction(name); !v.IsNil() {
		return v
	}
	it := fs.intType(width)
	structTy := fs.ctx.StructType([]llvm.Type{it, fs.ctx.Int1Type()}, false)
	ftyp := llvm.FunctionType(structTy, []llvm.Type{it, it}, false)
	return llvm.AddFunction(fs.m, name, ftyp)
}

// inputs gathers a node's data inputs into a port-indexed operand
// slice, recursively lowering each source node on first demand.
func (fs *funcState) inputs(id graph.NodeId) ([]operand, error) {
	edges := fs.prog.DataInputs(id)
	maxPort := -1
	for _, e := range edges {
		if e.TargetPort > maxPort {
			maxPort = e.TargetPort
		}
	}
	out := make([]operand, maxPort+1)
	for _, e := range edges {
		v, err := fs.value(e.Source)
		if err != nil {
			return nil, err
		}
		out[e.TargetPort] = operand{v: v, t: e.ValueType}
	}
	return out, nil
}

// value lazily computes and memoizes node id's SSA value. Memoization
// here only means "don't re-emit the same instruction twice into the
// generated IR" — it has no bearing on how many times the resulting
// instruction executes at runtime, since a loop header block's
// instructions run once per loop iteration regardless of how many
// times value() is called on them at compile time.
func (fs *funcState) value(id graph.NodeId) (llvm.Value, error) {
	if v, ok := fs.values[id]; ok {
		return v, nil
	}
	n, ok := fs.prog.Node(id)
	if !ok {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "missing node", nil)
	}
	in, err := fs.inputs(id)
	if err != nil {
		return llvm.Value{}, err
	}
	v, err := fs.emit(id, n, in)
	if err != nil {
		return llvm.Value{}, err
	}
	fs.values[id] = v
	fs.valueBlock[id] = fs.b.GetInsertBlock()
	return v, nil
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (fs *funcState) emit(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	switch n.Op {
	case graph.OpConstBool:
		return llvm.ConstInt(fs.ctx.Int1Type(), boolToU64(n.Payload.ConstBool), false), nil
	case graph.OpConstI8:
		return llvm.ConstInt(fs.ctx.Int8Type(), uint64(n.Payload.ConstInt), true), nil
	case graph.OpConstI16:
		return llvm.ConstInt(fs.ctx.Int16Type(), uint64(n.Payload.ConstInt), true), nil
	case graph.OpConstI32:
		return llvm.ConstInt(fs.ctx.Int32Type(), uint64(n.Payload.ConstInt), true), nil
	case graph.OpConstI64:
		return llvm.ConstInt(fs.ctx.Int64Type(), uint64(n.Payload.ConstInt), true), nil
	case graph.OpConstF32:
		return llvm.ConstFloat(fs.ctx.FloatType(), float64(n.Payload.ConstF32)), nil
	case graph.OpConstF64:
		return llvm.ConstFloat(fs.ctx.DoubleType(), n.Payload.ConstF64), nil
	case graph.OpConstUnit:
		return llvm.ConstInt(fs.ctx.Int8Type(), 0, false), nil

	case graph.OpParameter:
		alloca, ok := fs.paramAllocas[n.Payload.Index]
		if !ok {
			return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "parameter index out of range", nil)
		}
		return fs.b.CreateLoad(alloca, ""), nil
	case graph.OpCaptureAccess:
		return fs.loadCapture(id, n.Payload.Index)

	case graph.OpAdd, graph.OpSub, graph.OpMul:
		return fs.checkedArith(id, n.Op, in)
	case graph.OpDiv, graph.OpRem:
		return fs.checkedDivRem(id, n.Op, in)
	case graph.OpNeg:
		return fs.negate(id, in)
	case graph.OpAbs:
		return fs.abs(id, in)

	case graph.OpEq, graph.OpNe, graph.OpLt, graph.OpLe, graph.OpGt, graph.OpGe:
		return fs.compare(n.Op, in)

	case graph.OpAnd, graph.OpOr, graph.OpXor, graph.OpNot:
		return fs.logic(n.Op, in)

	case graph.OpShl, graph.OpShrLogical, graph.OpShrArith:
		return fs.checkedShift(id, n.Op, in)

	case graph.OpAlloc:
		return fs.allocOp(id, n)
	case graph.OpLoad:
		return fs.loadOp(id, in)
	case graph.OpStore:
		return fs.storeOp(id, in)
	case graph.OpGetElementPtr:
		return fs.gepOp(id, n, in)

	case graph.OpCall:
		return fs.callOp(id, n, in)
	case graph.OpIndirectCall:
		return fs.indirectCallOp(id, in)
	case graph.OpMakeClosure:
		return fs.makeClosureOp(id, n)

	case graph.OpPrint:
		return fs.printOp(in)
	case graph.OpReadLine:
		return fs.readLineOp()
	case graph.OpFileOpen, graph.OpFileRead, graph.OpFileWrite:
		// Stubs only (spec.md §9 Non-goals): no real I/O is lowered.
		return llvm.ConstInt(fs.ctx.Int8Type(), 0, false), nil

	case graph.OpStructCreate:
		return fs.structCreateOp(id, in)
	case graph.OpStructGet:
		return fs.structGetOp(id, n, in)
	case graph.OpStructSet:
		return fs.structSetOp(id, n, in)
	case graph.OpArrayCreate:
		return fs.arrayCreateOp(id, in)
	case graph.OpArrayGet:
		return fs.arrayGetOp(id, in)
	case graph.OpArraySet:
		return fs.arraySetOp(id, in)
	case graph.OpCast:
		return fs.castOp(id, n, in)
	case graph.OpEnumCreate:
		return fs.enumCreateOp(id, n, in)
	case graph.OpEnumDiscriminant:
		return fs.enumDiscriminantOp(id, in)
	case graph.OpEnumPayload:
		return fs.enumPayloadOp(id, in)

	case graph.OpReturn, graph.OpIfElse, graph.OpLoop, graph.OpMatch,
		graph.OpBranch, graph.OpJump, graph.OpPhi,
		graph.OpPrecondition, graph.OpPostcondition, graph.OpInvariant:
		return llvm.Value{}, nodeErr(InternalError, fs.fnId, id, "op routed through value() unexpectedly: "+n.Op.String(), nil)

	default:
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "unhandled op "+n.Op.String(), nil)
	}
}
