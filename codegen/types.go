package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/snowdamiz/lmlang/types"
)

// typeCache maps TypeIds to LLVM types for the lifetime of one
// compilation (one function-scoped llvm.Context). Per spec.md §4.8
// rule 3: scalars direct, arrays as [N x T], structs as {T1,..,Tn},
// enums as a tagged union { i32 discriminant, [max_payload x i8] }
// (unit-only enums drop the payload array), pointers as opaque ptr,
// functions as LLVM function types.
type typeCache struct {
	ctx   llvm.Context
	reg   *types.Registry
	cache map[types.Id]llvm.Type
}

func newTypeCache(ctx llvm.Context, reg *types.Registry) *typeCache {
	return &typeCache{ctx: ctx, reg: reg, cache: make(map[types.Id]llvm.Type)}
}

func (tc *typeCache) llvmType(id types.Id) (llvm.Type, error) {
	if t, ok := tc.cache[id]; ok {
		return t, nil
	}
	lt, ok := tc.reg.Lookup(id)
	if !ok {
		return llvm.Type{}, fmt.Errorf("codegen: unregistered type id %d", id)
	}

	var t llvm.Type
	switch lt.Kind {
	case types.KindScalar:
		switch id {
		case types.Bool:
			t = tc.ctx.Int1Type()
		case types.I8:
			t = tc.ctx.Int8Type()
		case types.I16:
			t = tc.ctx.Int16Type()
		case types.I32:
			t = tc.ctx.Int32Type()
		case types.I64:
			t = tc.ctx.Int64Type()
		case types.F32:
			t = tc.ctx.FloatType()
		case types.F64:
			t = tc.ctx.DoubleType()
		case types.Unit, types.Never:
			t = tc.ctx.VoidType()
		default:
			return llvm.Type{}, fmt.Errorf("codegen: unhandled scalar type id %d", id)
		}
	case types.KindArray:
		elem, err := tc.llvmType(lt.Element)
		if err != nil {
			return llvm.Type{}, err
		}
		t = llvm.ArrayType(elem, int(lt.Length))
	case types.KindStruct:
		fields := make([]llvm.Type, len(lt.Fields))
		for i, f := range lt.Fields {
			ft, err := tc.llvmType(f.Type)
			if err != nil {
				return llvm.Type{}, err
			}
			fields[i] = ft
		}
		t = tc.ctx.StructType(fields, false)
	case types.KindEnum:
		payload := tc.maxVariantPayloadBytes(lt)
		if payload == 0 {
			t = tc.ctx.StructType([]llvm.Type{tc.ctx.Int32Type()}, false)
		} else {
			t = tc.ctx.StructType([]llvm.Type{
				tc.ctx.Int32Type(),
				llvm.ArrayType(tc.ctx.Int8Type(), payload),
			}, false)
		}
	case types.KindPointer:
		t = llvm.PointerType(tc.ctx.Int8Type(), 0)
	case types.KindFunction:
		params := make([]llvm.Type, len(lt.Params))
		for i, p := range lt.Params {
			pt, err := tc.llvmType(p)
			if err != nil {
				return llvm.Type{}, err
			}
			params[i] = pt
		}
		ret, err := tc.llvmType(lt.Return)
		if err != nil {
			return llvm.Type{}, err
		}
		t = llvm.PointerType(llvm.FunctionType(ret, params, false), 0)
	default:
		return llvm.Type{}, fmt.Errorf("codegen: unhandled type kind %v", lt.Kind)
	}

	tc.cache[id] = t
	return t, nil
}

// maxVariantPayloadBytes approximates the byte size of the largest
// enum variant's payload. This runs before a TargetMachine (and its
// TargetData) exists — per-function codegen happens before the
// TargetMachine is created, matching the teacher's two-phase
// declare-then-emit flow — so sizes are a conservative static estimate
// rather than an ABI-exact llvm.ABISizeOfType query.
func (tc *typeCache) maxVariantPayloadBytes(lt types.LmType) int {
	max := 0
	for _, v := range lt.Variants {
		if v.Payload == nil {
			continue
		}
		if n := tc.approxByteSize(*v.Payload); n > max {
			max = n
		}
	}
	return max
}

func (tc *typeCache) approxByteSize(id types.Id) int {
	lt, ok := tc.reg.Lookup(id)
	if !ok {
		return 0
	}
	switch lt.Kind {
	case types.KindScalar:
		switch id {
		case types.Bool, types.I8:
			return 1
		case types.I16:
			return 2
		case types.I32, types.F32:
			return 4
		case types.I64, types.F64:
			return 8
		default:
			return 0
		}
	case types.KindArray:
		return int(lt.Length) * tc.approxByteSize(lt.Element)
	case types.KindStruct:
		sum := 0
		for _, f := range lt.Fields {
			sum += tc.approxByteSize(f.Type)
		}
		return sum
	case types.KindEnum:
		return 4 + tc.maxVariantPayloadBytes(lt)
	case types.KindPointer, types.KindFunction:
		return 8
	default:
		return 0
	}
}
