package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/snowdamiz/lmlang/graph"
)

func (fs *funcState) checkedArith(id graph.NodeId, op graph.Op, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "arithmetic op missing operand", nil)
	}
	a, b := in[0], in[1]
	reg := fs.prog.Types
	if reg.IsFloat(a.t) || reg.IsFloat(b.t) {
		switch op {
		case graph.OpAdd:
			return fs.b.CreateFAdd(a.v, b.v, ""), nil
		case graph.OpSub:
			return fs.b.CreateFSub(a.v, b.v, ""), nil
		default:
			return fs.b.CreateFMul(a.v, b.v, ""), nil
		}
	}

	width := reg.BitWidth(a.t)
	if width == 0 {
		width = reg.BitWidth(b.t)
	}
	if width == 0 {
		width = 32
	}
	var name string
	switch op {
	case graph.OpAdd:
		name = fmt.Sprintf("llvm.sadd.with.overflow.i%d", width)
	case graph.OpSub:
		name = fmt.Sprintf("llvm.ssub.with.overflow.i%d", width)
	default:
		name = fmt.Sprintf("llvm.smul.with.overflow.i%d", width)
	}
	intr := fs.overflowIntrinsic(name, width)
	res := fs.b.CreateCall(intr, []llvm.Value{a.v, b.v}, "")
	val := fs.b.CreateExtractValue(res, 0, "")
	overflow := fs.b.CreateExtractValue(res, 1, "")
	fs.guard(overflow, 2, id)
	return val, nil
}

func (fs *funcState) checkedDivRem(id graph.NodeId, op graph.Op, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "div/rem missing operand", nil)
	}
	a, b := in[0], in[1]
	reg := fs.prog.Types
	if reg.IsFloat(a.t) || reg.IsFloat(b.t) {
		if op == graph.OpDiv {
			return fs.b.CreateFDiv(a.v, b.v, ""), nil
		}
		return fs.b.CreateFRem(a.v, b.v, ""), nil
	}

	zero := llvm.ConstInt(b.v.Type(), 0, false)
	isZero := fs.b.CreateICmp(llvm.IntEQ, b.v, zero, "")
	fs.guard(isZero, 1, id)
	if op == graph.OpDiv {
		return fs.b.CreateSDiv(a.v, b.v, ""), nil
	}
	return fs.b.CreateSRem(a.v, b.v, ""), nil
}

func (fs *funcState) negate(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "neg missing operand", nil)
	}
	a := in[0]
	if fs.prog.Types.IsFloat(a.t) {
		return fs.b.CreateFNeg(a.v, ""), nil
	}
	zero := llvm.ConstInt(a.v.Type(), 0, true)
	return fs.checkedArith(id, graph.OpSub, []operand{{v: zero, t: a.t}, a})
}

func (fs *funcState) abs(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "abs missing operand", nil)
	}
	a := in[0]
	if fs.prog.Types.IsFloat(a.t) {
		zero := llvm.ConstFloat(a.v.Type(), 0)
		isNeg := fs.b.CreateFCmp(llvm.FloatOLT, a.v, zero, "")
		neg := fs.b.CreateFNeg(a.v, "")
		return fs.b.CreateSelect(isNeg, neg, a.v, ""), nil
	}
	zero := llvm.ConstInt(a.v.Type(), 0, true)
	isNeg := fs.b.CreateICmp(llvm.IntSLT, a.v, zero, "")
	neg, err := fs.checkedArith(id, graph.OpSub, []operand{{v: zero, t: a.t}, a})
	if err != nil {
		return llvm.Value{}, err
	}
	return fs.b.CreateSelect(isNeg, neg, a.v, ""), nil
}

func (fs *funcState) compare(op graph.Op, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, fmt.Errorf("codegen: comparison missing operand")
	}
	a, b := in[0], in[1]
	reg := fs.prog.Types
	if reg.IsFloat(a.t) || reg.IsFloat(b.t) {
		var pred llvm.FloatPredicate
		switch op {
		case graph.OpEq:
			pred = llvm.FloatOEQ
		case graph.OpNe:
			pred = llvm.FloatONE
		case graph.OpLt:
			pred = llvm.FloatOLT
		case graph.OpLe:
			pred = llvm.FloatOLE
		case graph.OpGt:
			pred = llvm.FloatOGT
		default:
			pred = llvm.FloatOGE
		}
		return fs.b.CreateFCmp(pred, a.v, b.v, ""), nil
	}
	var pred llvm.IntPredicate
	switch op {
	case graph.OpEq:
		pred = llvm.IntEQ
	case graph.OpNe:
		pred = llvm.IntNE
	case graph.OpLt:
		pred = llvm.IntSLT
	case graph.OpLe:
		pred = llvm.IntSLE
	case graph.OpGt:
		pred = llvm.IntSGT
	default:
		pred = llvm.IntSGE
	}
	return fs.b.CreateICmp(pred, a.v, b.v, ""), nil
}

func (fs *funcState) logic(op graph.Op, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, fmt.Errorf("codegen: logic op missing operand")
	}
	a := in[0]
	if op == graph.OpNot {
		return fs.b.CreateNot(a.v, ""), nil
	}
	if len(in) < 2 {
		return llvm.Value{}, fmt.Errorf("codegen: binary logic op missing operand")
	}
	b := in[1]
	switch op {
	case graph.OpAnd:
		return fs.b.CreateAnd(a.v, b.v, ""), nil
	case graph.OpOr:
		return fs.b.CreateOr(a.v, b.v, ""), nil
	default:
		return fs.b.CreateXor(a.v, b.v, ""), nil
	}
}

// checkedShift guards against a shift amount at or beyond the
// operand's bit width. The exit-code table (spec.md §4.8) has no
// dedicated code for this trap; it is reported under the same code
// (2) as arithmetic overflow, the nearest existing category.
func (fs *funcState) checkedShift(id graph.NodeId, op graph.Op, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "shift missing operand", nil)
	}
	a, b := in[0], in[1]
	width := fs.prog.Types.BitWidth(a.t)
	if width == 0 {
		width = 64
	}
	limit := llvm.ConstInt(b.v.Type(), uint64(width), false)
	tooLarge := fs.b.CreateICmp(llvm.IntUGE, b.v, limit, "")
	fs.guard(tooLarge, 2, id)

	switch op {
	case graph.OpShl:
		return fs.b.CreateShl(a.v, b.v, ""), nil
	case graph.OpShrLogical:
		return fs.b.CreateLShr(a.v, b.v, ""), nil
	default:
		return fs.b.CreateAShr(a.v, b.v, ""), nil
	}
}
