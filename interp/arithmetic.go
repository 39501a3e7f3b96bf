package interp

import "github.com/snowdamiz/lmlang/graph"

// checkedArith implements spec.md §4.4's checked integer arithmetic:
// Add/Sub/Mul/Div/Rem trap rather than wrap or silently truncate.
// Float operands use ordinary IEEE semantics (no overflow trap).
func checkedArith(op graph.Op, id graph.NodeId, a, b Value) (Value, error) {
	if a.Kind == VFloat32 || b.Kind == VFloat32 {
		return floatArith32(op, a, b), nil
	}
	if a.Kind == VFloat64 || b.Kind == VFloat64 {
		return floatArith64(op, a, b), nil
	}

	width := a.Width
	if width == 0 {
		width = b.Width
	}
	lo, hi := intRange(width)

	switch op {
	case graph.OpDiv, graph.OpRem:
		if b.Int == 0 {
			return Value{}, &Trap{Kind: DivideByZero, Node: id}
		}
	}
	if op == graph.OpDiv && a.Int == lo && b.Int == -1 {
		return Value{}, &Trap{Kind: IntegerOverflow, Node: id}
	}

	var result int64
	switch op {
	case graph.OpAdd:
		result = a.Int + b.Int
	case graph.OpSub:
		result = a.Int - b.Int
	case graph.OpMul:
		result = a.Int * b.Int
	case graph.OpDiv:
		result = a.Int / b.Int
	case graph.OpRem:
		result = a.Int % b.Int
	}

	if (op == graph.OpAdd || op == graph.OpSub || op == graph.OpMul) && (result < lo || result > hi) {
		return Value{}, &Trap{Kind: IntegerOverflow, Node: id}
	}
	return intValue(result, width), nil
}

func intRange(width int) (int64, int64) {
	switch width {
	case 8:
		return -1 << 7, 1<<7 - 1
	case 16:
		return -1 << 15, 1<<15 - 1
	case 32:
		return -1 << 31, 1<<31 - 1
	default:
		return -1 << 63, 1<<63 - 1
	}
}

func floatArith32(op graph.Op, a, b Value) Value {
	x, y := toF32(a), toF32(b)
	var r float32
	switch op {
	case graph.OpAdd:
		r = x + y
	case graph.OpSub:
		r = x - y
	case graph.OpMul:
		r = x * y
	case graph.OpDiv:
		r = x / y
	case graph.OpRem:
		r = float32(int64(x) % int64(y))
	}
	return Value{Kind: VFloat32, F32: r}
}

func floatArith64(op graph.Op, a, b Value) Value {
	x, y := toF64(a), toF64(b)
	var r float64
	switch op {
	case graph.OpAdd:
		r = x + y
	case graph.OpSub:
		r = x - y
	case graph.OpMul:
		r = x * y
	case graph.OpDiv:
		r = x / y
	case graph.OpRem:
		r = float64(int64(x) % int64(y))
	}
	return Value{Kind: VFloat64, F64: r}
}

func toF32(v Value) float32 {
	switch v.Kind {
	case VFloat32:
		return v.F32
	case VFloat64:
		return float32(v.F64)
	default:
		return float32(v.Int)
	}
}

func toF64(v Value) float64 {
	switch v.Kind {
	case VFloat64:
		return v.F64
	case VFloat32:
		return float64(v.F32)
	default:
		return float64(v.Int)
	}
}

func checkedShift(op graph.Op, id graph.NodeId, a, b Value) (Value, error) {
	width := a.Width
	if width == 0 {
		width = 64
	}
	if b.Int < 0 || b.Int >= int64(width) {
		return Value{}, &Trap{Kind: ShiftAmountTooLarge, Node: id}
	}
	switch op {
	case graph.OpShl:
		return intValue(a.Int<<uint(b.Int), width), nil
	case graph.OpShrLogical:
		mask := int64(1)<<uint(width) - 1
		return intValue(int64(uint64(a.Int&mask) >> uint(b.Int)), width), nil
	default: // OpShrArith
		return intValue(a.Int>>uint(b.Int), width), nil
	}
}

func compareOrdered(a, b Value, pred func(int) bool) Value {
	var c int
	switch {
	case a.Kind == VFloat32 || a.Kind == VFloat64 || b.Kind == VFloat32 || b.Kind == VFloat64:
		x, y := toF64(a), toF64(b)
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	default:
		switch {
		case a.Int < b.Int:
			c = -1
		case a.Int > b.Int:
			c = 1
		}
	}
	return boolValue(pred(c))
}

func logicOp(a, b Value, boolOp func(a, b bool) bool, intOp func(a, b int64) int64) Value {
	if a.Kind == VBool {
		return boolValue(boolOp(a.Bool, b.Bool))
	}
	return intValue(intOp(a.Int, b.Int), a.Width)
}
