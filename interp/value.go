// Package interp implements lmlang's work-list Interpreter: a
// single-threaded cooperative state machine over a function's compute
// nodes with control-gated scheduling, checked arithmetic, a small
// memory model, contract evaluation, and step/run/pause/resume
// (spec.md §4.4).
package interp

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
)

// ValueKind discriminates the variant of a runtime Value.
type ValueKind int

const (
	VBool ValueKind = iota
	VInt
	VFloat32
	VFloat64
	VUnit
	VArray
	VStruct
	VEnum
	VPointer
	VFunctionRef
	VClosure
)

// Value is lmlang's tagged-union runtime value (spec.md §4.4). Only
// the field(s) matching Kind are meaningful.
type Value struct {
	Kind ValueKind

	Bool  bool
	Int   int64
	Width int // 8/16/32/64, for VInt — governs overflow checking
	F32   float32
	F64   float64

	Array []Value

	// Struct fields are positional, matching the registered LmType's
	// Fields order, so equality and GetElementPtr can index by
	// position without a name lookup at runtime.
	Struct []Value

	EnumVariant string
	EnumPayload *Value

	Pointer *Cell

	FunctionRef graph.FunctionId

	ClosureFn       graph.FunctionId
	ClosureCaptures []Value
}

func (v Value) String() string {
	switch v.Kind {
	case VBool:
		return fmt.Sprintf("%t", v.Bool)
	case VInt:
		return fmt.Sprintf("%d", v.Int)
	case VFloat32:
		return fmt.Sprintf("%g", v.F32)
	case VFloat64:
		return fmt.Sprintf("%g", v.F64)
	case VUnit:
		return "()"
	case VEnum:
		return fmt.Sprintf("%s(...)", v.EnumVariant)
	case VPointer:
		return "&cell"
	default:
		return "<value>"
	}
}

// Equal reports structural equality, per spec.md's "equality is
// structural" for runtime values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case VBool:
		return v.Bool == o.Bool
	case VInt:
		return v.Int == o.Int
	case VFloat32:
		return v.F32 == o.F32
	case VFloat64:
		return v.F64 == o.F64
	case VUnit:
		return true
	case VArray, VStruct:
		a, b := v.elems(), o.elems()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case VEnum:
		if v.EnumVariant != o.EnumVariant {
			return false
		}
		if (v.EnumPayload == nil) != (o.EnumPayload == nil) {
			return false
		}
		if v.EnumPayload == nil {
			return true
		}
		return v.EnumPayload.Equal(*o.EnumPayload)
	case VPointer:
		return v.Pointer == o.Pointer
	case VFunctionRef:
		return v.FunctionRef == o.FunctionRef
	case VClosure:
		if v.ClosureFn != o.ClosureFn || len(v.ClosureCaptures) != len(o.ClosureCaptures) {
			return false
		}
		for i := range v.ClosureCaptures {
			if !v.ClosureCaptures[i].Equal(o.ClosureCaptures[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) elems() []Value {
	if v.Kind == VArray {
		return v.Array
	}
	return v.Struct
}

// Cell is one addressable memory location allocated by OpAlloc.
// GetElementPtr narrows a pointer to a sub-element by recording a
// Path of struct-field/array indices walked from the cell's root
// value; Load/Store follow Path to reach the addressed sub-value.
type Cell struct {
	Value Value
	Path  []int
}

func unitValue() Value { return Value{Kind: VUnit} }

func boolValue(b bool) Value { return Value{Kind: VBool, Bool: b} }

func intValue(n int64, width int) Value { return Value{Kind: VInt, Int: n, Width: width} }
