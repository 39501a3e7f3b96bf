package codegen

import (
	"tinygo.org/x/go-llvm"
)

// runtimeExterns holds the handful of externally-linked and
// internally-defined functions every compiled module needs: printf for
// Print/diagnostics, exit for terminating on a runtime guard failure,
// and lmlang_runtime_error, whose IR body is emitted here rather than
// declared extern (spec.md §4.8).
type runtimeExterns struct {
	printf            llvm.Value
	exit              llvm.Value
	lmlangRuntimeError llvm.Value
}

// runtimeErrorMessages indexes by the exit code a guard reports
// (spec.md §4.8's exit code table), used to format
// lmlang_runtime_error's printf call.
var runtimeErrorMessages = map[int]string{
	1: "lmlang: divide by zero at node %d\n",
	2: "lmlang: integer overflow at node %d\n",
	3: "lmlang: out-of-bounds access at node %d\n",
	4: "lmlang: null or invalid pointer at node %d\n",
	5: "lmlang: runtime type mismatch at node %d\n",
}

func declareRuntime(ctx llvm.Context, m llvm.Module) *runtimeExterns {
	i8ptr := llvm.PointerType(ctx.Int8Type(), 0)
	i32 := ctx.Int32Type()

	printfType := llvm.FunctionType(i32, []llvm.Type{i8ptr}, true)
	printf := llvm.AddFunction(m, "printf", printfType)

	exitType := llvm.FunctionType(ctx.VoidType(), []llvm.Type{i32}, false)
	exit := llvm.AddFunction(m, "exit", exitType)

	rt := &runtimeExterns{printf: printf, exit: exit}
	rt.lmlangRuntimeError = genRuntimeErrorFunc(ctx, m, rt)
	return rt
}

// genRuntimeErrorFunc emits lmlang_runtime_error(kind:i32, node_id:i32)
// -> noreturn: a switch over kind that printf's a formatted message
// naming node_id to stdout (nothing is written to stderr), then exits
// with kind as the process exit code (spec.md §4.8's exit code table);
// an unknown kind prints an internal-error message and exits with 100.
func genRuntimeErrorFunc(ctx llvm.Context, m llvm.Module, rt *runtimeExterns) llvm.Value {
	i32 := ctx.Int32Type()
	ftyp := llvm.FunctionType(ctx.VoidType(), []llvm.Type{i32, i32}, false)
	fn := llvm.AddFunction(m, "lmlang_runtime_error", ftyp)
	fn.Param(0).SetName("kind")
	fn.Param(1).SetName("node_id")

	b := ctx.NewBuilder()
	defer b.Dispose()

	entry := llvm.AddBasicBlock(fn, "entry")
	def := llvm.AddBasicBlock(fn, "default")
	b.SetInsertPointAtEnd(entry)

	sw := b.CreateSwitch(fn.Param(0), def, len(runtimeErrorMessages))
	for kind, msg := range runtimeErrorMessages {
		bb := llvm.AddBasicBlock(fn, "")
		sw.AddCase(llvm.ConstInt(i32, uint64(kind), false), bb)
		b.SetInsertPointAtEnd(bb)
		fmtStr := b.CreateGlobalStringPtr(msg, "lmlang.errfmt")
		b.CreateCall(rt.printf, []llvm.Value{fmtStr, fn.Param(1)}, "")
		b.CreateCall(rt.exit, []llvm.Value{llvm.ConstInt(i32, uint64(kind), false)}, "")
		b.CreateUnreachable()
	}

	b.SetInsertPointAtEnd(def)
	fmtStr := b.CreateGlobalStringPtr("lmlang: internal compiler error at node %d\n", "lmlang.errfmt")
	b.CreateCall(rt.printf, []llvm.Value{fmtStr, fn.Param(1)}, "")
	b.CreateCall(rt.exit, []llvm.Value{llvm.ConstInt(i32, 100, false)}, "")
	b.CreateUnreachable()

	return fn
}
