package codegen

import (
	"fmt"
	"os"
	"os/exec"

	"tinygo.org/x/go-llvm"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// Options configures one compilation (spec.md §4.8). Settings is
// shared with the incremental compilation engine (compile.Settings)
// so a dirty-tracked recompile plan and a fresh Compile call agree on
// what "same settings" means.
type Options struct {
	Settings compile.Settings

	// Entry names the function the generated main wrapper calls.
	Entry graph.FunctionId

	// ObjectPath is where the compiled object file is written.
	ObjectPath string

	// Link, when true, invokes the system cc to produce Executable
	// from ObjectPath (spec.md §4.8: "system cc invocation to link").
	Link       bool
	Executable string
}

// Result reports what Compile produced.
type Result struct {
	ObjectPath     string
	ExecutablePath string
}

// Compile lowers every function in prog to one LLVM module within a
// function-scoped Context, verifies it, emits an object file, and
// optionally links an executable. No LLVM type or value escapes this
// call: the Context is disposed before Compile returns (spec.md §4.8:
// "Context dropped, no LLVM type escapes function boundary").
func Compile(prog *graph.Program, opts Options) (*Result, error) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	m := ctx.NewModule("lmlang")
	defer m.Dispose()

	b := ctx.NewBuilder()
	defer b.Dispose()

	tc := newTypeCache(ctx, prog.Types)
	rt := declareRuntime(ctx, m)

	funcIds := make([]graph.FunctionId, 0, len(prog.Functions))
	for i := range prog.Functions {
		id := graph.FunctionId(i)
		if _, ok := prog.Function(id); ok {
			funcIds = append(funcIds, id)
		}
	}

	funcs := make(map[graph.FunctionId]llvm.Value, len(funcIds))
	states := make(map[graph.FunctionId]*funcState, len(funcIds))

	// Phase 1: declare every function header up front so calls and
	// closures can forward-reference functions declared later in the
	// graph (mirrors the teacher's two-pass gen()/genFuncBody() split).
	for _, id := range funcIds {
		fn, _ := prog.Function(id)
		llfn, fs, err := declareFunction(ctx, m, tc, prog, id, fn)
		if err != nil {
			return nil, err
		}
		funcs[id] = llfn
		fs.funcs = funcs
		fs.rt = rt
		states[id] = fs
	}

	// Phase 2: emit bodies.
	for _, id := range funcIds {
		fs := states[id]
		if err := emitFunctionBody(fs); err != nil {
			return nil, err
		}
	}

	if err := genMainWrapper(ctx, m, b, rt, funcs, opts.Entry); err != nil {
		return nil, err
	}

	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		return nil, &Error{Kind: LlvmVerifyFailed, Function: opts.Entry, Message: m.String(), Cause: err}
	}

	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()
	llvm.InitializeAllTargets()

	triple := opts.Settings.TargetTriple
	if triple == "" {
		triple = llvm.DefaultTargetTriple()
	}
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return nil, &Error{Kind: InvalidTarget, Function: opts.Entry, Message: triple, Cause: err}
	}

	tm := target.CreateTargetMachine(triple, "generic", "",
		codeGenLevel(opts.Settings.OptLevel),
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return nil, &Error{Kind: InternalError, Function: opts.Entry, Message: "object emission failed", Cause: err}
	}

	objPath := opts.ObjectPath
	if objPath == "" {
		objPath = "lmlang_out.o"
	}
	if err := os.WriteFile(objPath, buf.Bytes(), 0644); err != nil {
		return nil, &Error{Kind: InternalError, Function: opts.Entry, Message: "writing object file", Cause: err}
	}

	res := &Result{ObjectPath: objPath}
	if opts.Link {
		exe := opts.Executable
		if exe == "" {
			exe = "lmlang_out"
		}
		cmd := exec.Command("cc", objPath, "-o", exe)
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return nil, &Error{Kind: LinkerFailed, Function: opts.Entry, Message: "cc invocation failed", Cause: err}
		}
		res.ExecutablePath = exe
	}

	return res, nil
}

// codeGenLevel maps the incremental compiler's integer OptLevel
// (compile.Settings, spec.md §4.7) onto an llvm.CodeGenOptLevel. The
// teacher always passes llvm.CodeGenLevelNone; spec.md's mention of a
// "new pass manager ... default<O0|O1|O2|O3>" preset has no
// counterpart exposed by this go-llvm binding, so optimization level
// selection happens at this older, binding-native CodeGenOptLevel
// layer instead.
func codeGenLevel(opt int) llvm.CodeGenOptLevel {
	switch {
	case opt <= 0:
		return llvm.CodeGenLevelNone
	case opt == 1:
		return llvm.CodeGenLevelLess
	case opt == 2:
		return llvm.CodeGenLevelDefault
	default:
		return llvm.CodeGenLevelAggressive
	}
}

// declareFunction adds fn's LLVM header (including a trailing opaque
// env-pointer parameter for closure bodies) and builds the funcState
// that emitFunctionBody will later use to fill it in.
func declareFunction(ctx llvm.Context, m llvm.Module, tc *typeCache, prog *graph.Program, id graph.FunctionId, fn graph.Function) (llvm.Value, *funcState, error) {
	paramTypes := make([]llvm.Type, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		pt, err := tc.llvmType(p.Type)
		if err != nil {
			return llvm.Value{}, nil, &Error{Kind: LoweringError, Function: id, Message: "parameter type", Cause: err}
		}
		paramTypes = append(paramTypes, pt)
	}
	hasEnv := len(fn.Captures) > 0
	if hasEnv {
		paramTypes = append(paramTypes, llvm.PointerType(ctx.Int8Type(), 0))
	}

	retTy, err := tc.llvmType(fn.Return)
	if err != nil {
		return llvm.Value{}, nil, &Error{Kind: LoweringError, Function: id, Message: "return type", Cause: err}
	}

	ftyp := llvm.FunctionType(retTy, paramTypes, false)
	llfn := llvm.AddFunction(m, fmt.Sprintf("lmlang_fn_%d_%s", id, fn.Name), ftyp)

	captureTypes := make([]types.Id, len(fn.Captures))
	for i, c := range fn.Captures {
		captureTypes[i] = c.Type
	}

	fs := &funcState{
		ctx:          ctx,
		m:            m,
		prog:         prog,
		fnId:         id,
		fn:           fn,
		llfn:         llfn,
		tc:           tc,
		paramAllocas: make(map[int]llvm.Value),
		captureTypes: captureTypes,
		values:       make(map[graph.NodeId]llvm.Value),
		valueBlock:   make(map[graph.NodeId]llvm.BasicBlock),
		nodeBlock:    make(map[graph.NodeId]llvm.BasicBlock),
	}
	if hasEnv {
		fs.envPtr = llfn.Param(len(fn.Params))
	}
	return llfn, fs, nil
}

func emitFunctionBody(fs *funcState) error {
	b := fs.ctx.NewBuilder()
	defer b.Dispose()
	fs.b = b

	entry := llvm.AddBasicBlock(fs.llfn, "entry")
	b.SetInsertPointAtEnd(entry)

	for i, p := range fs.fn.Params {
		pt, err := fs.tc.llvmType(p.Type)
		if err != nil {
			return &Error{Kind: LoweringError, Function: fs.fnId, Message: "parameter alloca type", Cause: err}
		}
		alloca := b.CreateAlloca(pt, p.Name)
		b.CreateStore(fs.llfn.Param(i), alloca)
		fs.paramAllocas[i] = alloca
	}

	entryNode, ok := fs.entryNode()
	if !ok {
		b.CreateUnreachable()
		return nil
	}

	term, err := fs.lowerChain(entryNode, stopSet{})
	if err != nil {
		return err
	}
	if !term {
		b.CreateUnreachable()
	}
	return nil
}

// entryNode finds this function's first Parameter-consuming control
// node: the node with no incoming ControlEdges among this function's
// own nodes. Graphs built by the mutation engine always leave exactly
// one such node per function body.
func (fs *funcState) entryNode() (graph.NodeId, bool) {
	hasCtrlIn := map[graph.NodeId]bool{}
	nodes := fs.prog.NodesOf(fs.fnId)
	for _, id := range nodes {
		for _, e := range fs.prog.CtrlOutputs(id) {
			hasCtrlIn[e.Target] = true
		}
	}
	for _, id := range nodes {
		n, ok := fs.prog.Node(id)
		if !ok || n.Op.IsContract() {
			continue
		}
		if !hasCtrlIn[id] && len(fs.prog.CtrlOutputs(id)) > 0 {
			return id, true
		}
	}
	// Fall back to a function with no control edges at all (pure
	// expression body): anchor on a Return node instead.
	for _, id := range nodes {
		n, ok := fs.prog.Node(id)
		if ok && n.Op == graph.OpReturn {
			return id, true
		}
	}
	return 0, false
}

// genMainWrapper emits `main`, which calls the designated entry
// function and returns 0, matching the teacher's genMain wrapper
// role (argument handling itself is a non-goal here: lmlang programs
// take no argv per spec.md).
func genMainWrapper(ctx llvm.Context, m llvm.Module, b llvm.Builder, rt *runtimeExterns, funcs map[graph.FunctionId]llvm.Value, entry graph.FunctionId) error {
	entryFn, ok := funcs[entry]
	if !ok {
		return &Error{Kind: LoweringError, Function: entry, Message: "entry function not declared"}
	}

	i32 := ctx.Int32Type()
	mainTyp := llvm.FunctionType(i32, nil, false)
	mainFn := llvm.AddFunction(m, "main", mainTyp)

	body := llvm.AddBasicBlock(mainFn, "entry")
	b.SetInsertPointAtEnd(body)

	args := make([]llvm.Value, entryFn.ParamsCount())
	for i := range args {
		args[i] = llvm.ConstInt(entryFn.Param(i).Type(), 0, false)
	}
	b.CreateCall(entryFn, args, "")
	b.CreateRet(llvm.ConstInt(i32, 0, false))
	return nil
}
