package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

func (fs *funcState) allocOp(id graph.NodeId, n graph.Node) (llvm.Value, error) {
	ty, err := fs.tc.llvmType(n.Payload.TypeArg)
	if err != nil {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "alloc type", err)
	}
	return fs.b.CreateAlloca(ty, ""), nil
}

func (fs *funcState) loadOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "load missing pointer operand", nil)
	}
	ptr := in[0]
	fs.guardNilPtr(id, ptr.v)
	return fs.b.CreateLoad(ptr.v, ""), nil
}

func (fs *funcState) storeOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "store missing operand", nil)
	}
	ptr, val := in[0], in[1]
	fs.guardNilPtr(id, ptr.v)
	fs.b.CreateStore(val.v, ptr.v)
	return llvm.ConstInt(fs.ctx.Int8Type(), 0, false), nil
}

// gepOp lowers a static struct-field offset (payload index) or a
// dynamic array-element offset (second data input), bounds-checking
// the latter against the pointee array's static length.
func (fs *funcState) gepOp(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "gep missing base pointer", nil)
	}
	base := in[0]
	fs.guardNilPtr(id, base.v)
	i32 := fs.ctx.Int32Type()

	if len(in) > 1 && !in[1].v.IsNil() {
		idx := in[1]
		elemTy := base.v.Type().ElementType()
		length := elemTy.ArrayLength()
		fs.boundsGuard(id, idx.v, length)
		return fs.b.CreateGEP(base.v, []llvm.Value{llvm.ConstInt(i32, 0, false), idx.v}, ""), nil
	}
	return fs.b.CreateGEP(base.v, []llvm.Value{llvm.ConstInt(i32, 0, false), llvm.ConstInt(i32, uint64(n.Payload.Index), false)}, ""), nil
}

func (fs *funcState) callOp(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	target, ok := fs.funcs[n.Payload.Target]
	if !ok {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "call to undeclared function", nil)
	}
	args := make([]llvm.Value, len(in))
	for i, op := range in {
		args[i] = op.v
	}
	return fs.b.CreateCall(target, args, ""), nil
}

// indirectCallOp calls through a {fn_ptr, env_ptr} closure value,
// appending env_ptr as the callee's trailing argument (the same
// convention declareFunction applies to closure-bodied functions).
func (fs *funcState) indirectCallOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "indirect call missing closure operand", nil)
	}
	closure := in[0].v
	fnPtr := fs.b.CreateExtractValue(closure, 0, "")
	envPtr := fs.b.CreateExtractValue(closure, 1, "")
	args := make([]llvm.Value, 0, len(in))
	for _, op := range in[1:] {
		args = append(args, op.v)
	}
	args = append(args, envPtr)
	return fs.b.CreateCall(fnPtr, args, ""), nil
}

// makeClosureOp packs captured values into a stack-allocated
// environment struct and the {fn_ptr, env_ptr} pair into a second
// alloca, returning the loaded aggregate value.
func (fs *funcState) makeClosureOp(id graph.NodeId, n graph.Node) (llvm.Value, error) {
	target, ok := fs.funcs[n.Payload.Target]
	if !ok {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "closure over undeclared function", nil)
	}
	capVals := make([]llvm.Value, len(n.Payload.Captures))
	capTypes := make([]llvm.Type, len(n.Payload.Captures))
	for i, src := range n.Payload.Captures {
		v, err := fs.value(src)
		if err != nil {
			return llvm.Value{}, err
		}
		capVals[i] = v
		capTypes[i] = v.Type()
	}
	envTy := fs.ctx.StructType(capTypes, false)
	envAlloca := fs.b.CreateAlloca(envTy, "")
	for i, v := range capVals {
		ptr := fs.b.CreateStructGEP(envAlloca, i, "")
		fs.b.CreateStore(v, ptr)
	}

	closureTy := fs.ctx.StructType([]llvm.Type{llvm.PointerType(target.Type(), 0), llvm.PointerType(envTy, 0)}, false)
	closureAlloca := fs.b.CreateAlloca(closureTy, "")
	fnField := fs.b.CreateStructGEP(closureAlloca, 0, "")
	fs.b.CreateStore(target, fnField)
	envField := fs.b.CreateStructGEP(closureAlloca, 1, "")
	fs.b.CreateStore(envAlloca, envField)
	return fs.b.CreateLoad(closureAlloca, ""), nil
}

func (fs *funcState) loadCapture(id graph.NodeId, index int) (llvm.Value, error) {
	if fs.envPtr.IsNil() || index < 0 || index >= len(fs.captureTypes) {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "capture index out of range", nil)
	}
	capLLVMTypes := make([]llvm.Type, len(fs.captureTypes))
	for i, t := range fs.captureTypes {
		ty, err := fs.tc.llvmType(t)
		if err != nil {
			return llvm.Value{}, err
		}
		capLLVMTypes[i] = ty
	}
	envStructTy := fs.ctx.StructType(capLLVMTypes, false)
	typed := fs.b.CreateBitCast(fs.envPtr, llvm.PointerType(envStructTy, 0), "")
	ptr := fs.b.CreateStructGEP(typed, index, "")
	return fs.b.CreateLoad(ptr, ""), nil
}

func (fs *funcState) printOp(in []operand) (llvm.Value, error) {
	if len(in) == 0 {
		return llvm.ConstInt(fs.ctx.Int8Type(), 0, false), nil
	}
	v := in[0]
	reg := fs.prog.Types
	var fmtStr string
	switch {
	case v.t == types.Bool:
		fmtStr = "%d\n"
	case reg.IsFloat(v.t):
		fmtStr = "%f\n"
	default:
		fmtStr = "%lld\n"
	}
	frmt := fs.b.CreateGlobalStringPtr(fmtStr, "lmlang.fmt")
	fs.b.CreateCall(fs.rt.printf, []llvm.Value{frmt, v.v}, "")
	return llvm.ConstInt(fs.ctx.Int8Type(), 0, false), nil
}

// readLineOp is a stub: no portable libc line-reading helper is
// declared here, so compiled code reads no input and always yields the
// constant i64 0. The interpreter's ReadLine, unlike this, reads a
// line and returns its length.
func (fs *funcState) readLineOp() (llvm.Value, error) {
	return llvm.ConstInt(fs.ctx.Int64Type(), 0, true), nil
}

func (fs *funcState) structCreateOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) == 0 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "struct create with no fields", nil)
	}
	fieldTypes := make([]llvm.Type, len(in))
	for i, op := range in {
		fieldTypes[i] = op.v.Type()
	}
	structTy := fs.ctx.StructType(fieldTypes, false)
	agg := llvm.Undef(structTy)
	for i, op := range in {
		agg = fs.b.CreateInsertValue(agg, op.v, i, "")
	}
	return agg, nil
}

func (fs *funcState) fieldIndex(structType types.Id, field string) (int, bool) {
	lt, ok := fs.prog.Types.Lookup(structType)
	if !ok {
		return 0, false
	}
	for i, f := range lt.Fields {
		if f.Name == field {
			return i, true
		}
	}
	return 0, false
}

func (fs *funcState) structGetOp(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "struct get missing operand", nil)
	}
	idx, ok := fs.fieldIndex(in[0].t, n.Payload.FieldName)
	if !ok {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "unknown struct field "+n.Payload.FieldName, nil)
	}
	return fs.b.CreateExtractValue(in[0].v, idx, ""), nil
}

func (fs *funcState) structSetOp(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "struct set missing operand", nil)
	}
	idx, ok := fs.fieldIndex(in[0].t, n.Payload.FieldName)
	if !ok {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "unknown struct field "+n.Payload.FieldName, nil)
	}
	return fs.b.CreateInsertValue(in[0].v, in[1].v, idx, ""), nil
}

func (fs *funcState) arrayCreateOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) == 0 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "array create with no elements", nil)
	}
	elemTy := in[0].v.Type()
	arrTy := llvm.ArrayType(elemTy, len(in))
	agg := llvm.Undef(arrTy)
	for i, op := range in {
		agg = fs.b.CreateInsertValue(agg, op.v, i, "")
	}
	return agg, nil
}

// arrayGetOp and arraySetOp spill the register aggregate to a scratch
// alloca: LLVM's extractvalue/insertvalue only accept constant
// indices, but array element access here is a runtime index, so the
// array is stored to memory, addressed with a GEP, and (for Set)
// reloaded as a whole to produce the updated aggregate value.
func (fs *funcState) arrayGetOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "array get missing operand", nil)
	}
	arr, idx := in[0], in[1]
	tmp := fs.b.CreateAlloca(arr.v.Type(), "")
	fs.b.CreateStore(arr.v, tmp)
	fs.boundsGuard(id, idx.v, arr.v.Type().ArrayLength())
	i32 := fs.ctx.Int32Type()
	ptr := fs.b.CreateGEP(tmp, []llvm.Value{llvm.ConstInt(i32, 0, false), idx.v}, "")
	return fs.b.CreateLoad(ptr, ""), nil
}

func (fs *funcState) arraySetOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 3 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "array set missing operand", nil)
	}
	arr, idx, val := in[0], in[1], in[2]
	tmp := fs.b.CreateAlloca(arr.v.Type(), "")
	fs.b.CreateStore(arr.v, tmp)
	fs.boundsGuard(id, idx.v, arr.v.Type().ArrayLength())
	i32 := fs.ctx.Int32Type()
	ptr := fs.b.CreateGEP(tmp, []llvm.Value{llvm.ConstInt(i32, 0, false), idx.v}, "")
	fs.b.CreateStore(val.v, ptr)
	return fs.b.CreateLoad(tmp, ""), nil
}

func (fs *funcState) castOp(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "cast missing operand", nil)
	}
	v := in[0]
	reg := fs.prog.Types
	target := n.Payload.TypeArg
	dstTy, err := fs.tc.llvmType(target)
	if err != nil {
		return llvm.Value{}, err
	}

	srcFloat := reg.IsFloat(v.t)
	dstFloat := reg.IsFloat(target)
	srcInt := reg.IsInteger(v.t) || v.t == types.Bool
	dstInt := reg.IsInteger(target) || target == types.Bool

	switch {
	case srcInt && dstInt:
		srcWidth := v.v.Type().IntTypeWidth()
		dstWidth := dstTy.IntTypeWidth()
		switch {
		case dstWidth > srcWidth:
			return fs.b.CreateSExt(v.v, dstTy, ""), nil
		case dstWidth < srcWidth:
			return fs.b.CreateTrunc(v.v, dstTy, ""), nil
		default:
			return v.v, nil
		}
	case srcFloat && dstFloat:
		if v.v.Type() == fs.ctx.FloatType() && dstTy == fs.ctx.DoubleType() {
			return fs.b.CreateFPExt(v.v, dstTy, ""), nil
		}
		if v.v.Type() == fs.ctx.DoubleType() && dstTy == fs.ctx.FloatType() {
			return fs.b.CreateFPTrunc(v.v, dstTy, ""), nil
		}
		return v.v, nil
	case srcInt && dstFloat:
		return fs.b.CreateSIToFP(v.v, dstTy, ""), nil
	case srcFloat && dstInt:
		return fs.b.CreateFPToSI(v.v, dstTy, ""), nil
	default:
		return v.v, nil
	}
}

// resolveEnumTarget reads the enum TypeId off the node's own outgoing
// data edge rather than the payload (which only carries the variant
// name/index), matching how a value's declared type generally flows
// forward along edges in this graph rather than backward from payload.
func (fs *funcState) resolveEnumTarget(id graph.NodeId) (types.Id, bool) {
	outs := fs.prog.DataOutputs(id)
	if len(outs) == 0 {
		return 0, false
	}
	return outs[0].ValueType, true
}

func (fs *funcState) enumCreateOp(id graph.NodeId, n graph.Node, in []operand) (llvm.Value, error) {
	enumTy, ok := fs.resolveEnumTarget(id)
	if !ok {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "cannot resolve enum type for EnumCreate", nil)
	}
	ty, err := fs.tc.llvmType(enumTy)
	if err != nil {
		return llvm.Value{}, err
	}
	i32 := fs.ctx.Int32Type()
	agg := llvm.Undef(ty)
	agg = fs.b.CreateInsertValue(agg, llvm.ConstInt(i32, uint64(n.Payload.Variant), false), 0, "")

	fields := ty.StructElementTypes()
	if len(in) > 0 && len(fields) > 1 {
		payloadBuf := fs.b.CreateAlloca(in[0].v.Type(), "")
		fs.b.CreateStore(in[0].v, payloadBuf)
		typed := fs.b.CreateBitCast(payloadBuf, llvm.PointerType(fields[1], 0), "")
		raw := fs.b.CreateLoad(typed, "")
		agg = fs.b.CreateInsertValue(agg, raw, 1, "")
	}
	return agg, nil
}

func (fs *funcState) enumDiscriminantOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "enum discriminant missing operand", nil)
	}
	return fs.b.CreateExtractValue(in[0].v, 0, ""), nil
}

func (fs *funcState) enumPayloadOp(id graph.NodeId, in []operand) (llvm.Value, error) {
	if len(in) < 1 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "enum payload missing operand", nil)
	}
	enumVal := in[0].v
	fields := enumVal.Type().StructElementTypes()
	if len(fields) < 2 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "enum has no payload", nil)
	}
	raw := fs.b.CreateExtractValue(enumVal, 1, "")

	outs := fs.prog.DataOutputs(id)
	if len(outs) == 0 {
		return raw, nil
	}
	payloadTy, err := fs.tc.llvmType(outs[0].ValueType)
	if err != nil {
		return llvm.Value{}, err
	}
	buf := fs.b.CreateAlloca(raw.Type(), "")
	fs.b.CreateStore(raw, buf)
	typed := fs.b.CreateBitCast(buf, llvm.PointerType(payloadTy, 0), "")
	return fs.b.CreateLoad(typed, ""), nil
}
