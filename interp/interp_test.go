package interp

import (
	"testing"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// --- fixture helpers ---

func newProgram(name string) *graph.Program {
	return graph.NewProgram(name)
}

func addFunction(p *graph.Program, name string, mod graph.ModuleId, params []graph.Param, ret types.Id) graph.FunctionId {
	id := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: name, Module: mod, Params: params, Return: ret})
	return id
}

func addNode(p *graph.Program, fn graph.FunctionId, op graph.Op, payload graph.NodePayload) graph.NodeId {
	id := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: op, Owner: fn, Payload: payload})
	return id
}

func addData(p *graph.Program, src, tgt graph.NodeId, port int, vt types.Id) {
	p.DataEdges = append(p.DataEdges, graph.DataEdge{Source: src, Target: tgt, TargetPort: port, ValueType: vt})
}

func addCtrl(p *graph.Program, src, tgt graph.NodeId, branch int) {
	p.CtrlEdges = append(p.CtrlEdges, graph.ControlEdge{Source: src, Target: tgt, BranchIndex: branch})
}

// --- straight-line call ---

// buildAdd builds add(a, b) = a + b over I32.
func buildAdd(t *testing.T) (*graph.Program, graph.FunctionId) {
	t.Helper()
	p := newProgram("t")
	fn := addFunction(p, "add", 0, []graph.Param{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}}, types.I32)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	b := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 1})
	sum := addNode(p, fn, graph.OpAdd, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})

	addData(p, a, sum, 0, types.I32)
	addData(p, b, sum, 1, types.I32)
	addData(p, sum, ret, 0, types.I32)

	return p, fn
}

func TestCallAdd(t *testing.T) {
	p, fn := buildAdd(t)
	it := New(p, DefaultConfig(), nil)

	v, err := it.Call(fn, []Value{intValue(3, 32), intValue(4, 32)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v.Kind != VInt || v.Int != 7 {
		t.Fatalf("expected 7, got %+v", v)
	}
	if it.State != Completed {
		t.Fatalf("expected Completed, got %s", it.State)
	}
}

func TestIntegerOverflowTrap(t *testing.T) {
	p := newProgram("t")
	fn := addFunction(p, "overflow", 0, []graph.Param{{Name: "a", Type: types.I8}, {Name: "b", Type: types.I8}}, types.I8)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	b := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 1})
	sum := addNode(p, fn, graph.OpAdd, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})
	addData(p, a, sum, 0, types.I8)
	addData(p, b, sum, 1, types.I8)
	addData(p, sum, ret, 0, types.I8)

	it := New(p, DefaultConfig(), nil)
	_, err := it.Call(fn, []Value{intValue(100, 8), intValue(100, 8)})
	if err == nil {
		t.Fatalf("expected overflow trap")
	}
	trap, ok := err.(*Trap)
	if !ok || trap.Kind != IntegerOverflow {
		t.Fatalf("expected IntegerOverflow trap, got %T: %v", err, err)
	}
	if it.State != Errored {
		t.Fatalf("expected Errored, got %s", it.State)
	}
}

func TestDivideByZeroTrap(t *testing.T) {
	p := newProgram("t")
	fn := addFunction(p, "div", 0, []graph.Param{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}}, types.I32)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	b := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 1})
	div := addNode(p, fn, graph.OpDiv, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})
	addData(p, a, div, 0, types.I32)
	addData(p, b, div, 1, types.I32)
	addData(p, div, ret, 0, types.I32)

	it := New(p, DefaultConfig(), nil)
	_, err := it.Call(fn, []Value{intValue(10, 32), intValue(0, 32)})
	trap, ok := err.(*Trap)
	if !ok || trap.Kind != DivideByZero {
		t.Fatalf("expected DivideByZero trap, got %T: %v", err, err)
	}
}

func TestShiftAmountTooLargeTrap(t *testing.T) {
	p := newProgram("t")
	fn := addFunction(p, "shift", 0, []graph.Param{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}}, types.I32)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	b := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 1})
	shl := addNode(p, fn, graph.OpShl, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})
	addData(p, a, shl, 0, types.I32)
	addData(p, b, shl, 1, types.I32)
	addData(p, shl, ret, 0, types.I32)

	it := New(p, DefaultConfig(), nil)
	_, err := it.Call(fn, []Value{intValue(1, 32), intValue(64, 32)})
	trap, ok := err.(*Trap)
	if !ok || trap.Kind != ShiftAmountTooLarge {
		t.Fatalf("expected ShiftAmountTooLarge trap, got %T: %v", err, err)
	}
}

// --- contracts ---

// buildAbsLike builds requirePositive(a) = a, guarded by a Precondition
// asserting a > 0.
func buildRequirePositive(t *testing.T) (*graph.Program, graph.FunctionId) {
	t.Helper()
	p := newProgram("t")
	fn := addFunction(p, "requirePositive", 0, []graph.Param{{Name: "a", Type: types.I32}}, types.I32)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	zero := addNode(p, fn, graph.OpConstI32, graph.NodePayload{ConstInt: 0})
	gt := addNode(p, fn, graph.OpGt, graph.NodePayload{})
	pre := addNode(p, fn, graph.OpPrecondition, graph.NodePayload{Message: "a must be positive"})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})

	addData(p, a, gt, 0, types.I32)
	addData(p, zero, gt, 1, types.I32)
	addData(p, gt, pre, 0, types.Bool)
	addData(p, a, ret, 0, types.I32)

	return p, fn
}

func TestPreconditionViolation(t *testing.T) {
	p, fn := buildRequirePositive(t)
	it := New(p, DefaultConfig(), nil)

	_, err := it.Call(fn, []Value{intValue(-1, 32)})
	v, ok := err.(*ContractViolation)
	if !ok || v.Kind != ContractPrecondition {
		t.Fatalf("expected Precondition violation, got %T: %v", err, err)
	}
	if it.State != ContractViolated {
		t.Fatalf("expected ContractViolation state, got %s", it.State)
	}
}

func TestPreconditionSatisfiedRunsNormally(t *testing.T) {
	p, fn := buildRequirePositive(t)
	it := New(p, DefaultConfig(), nil)

	v, err := it.Call(fn, []Value{intValue(5, 32)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v.Int != 5 {
		t.Fatalf("expected 5, got %+v", v)
	}
}

// buildBadSum builds a function claiming to return a+b, whose
// Postcondition asserts the return equals a+b, but whose body actually
// returns a alone, so the postcondition must fail.
func buildBadSum(t *testing.T) (*graph.Program, graph.FunctionId) {
	t.Helper()
	p := newProgram("t")
	fn := addFunction(p, "badSum", 0, []graph.Param{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}}, types.I32)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	b := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 1})
	expected := addNode(p, fn, graph.OpAdd, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})
	post := addNode(p, fn, graph.OpPostcondition, graph.NodePayload{Message: "result must equal a+b"})
	eq := addNode(p, fn, graph.OpEq, graph.NodePayload{})
	// retMarker stands in for "the value returned by this call" inside
	// the postcondition subgraph: the interpreter binds it directly to
	// the actual return value, so its own (never-evaluated) payload is
	// irrelevant.
	retMarker := addNode(p, fn, graph.OpConstI32, graph.NodePayload{})

	// Body: return a (wrong on purpose).
	addData(p, a, ret, 0, types.I32)

	// Postcondition subgraph: eq(expected, retMarker); port 1 of the
	// Postcondition node and port 1 of eq both reference retMarker, so
	// the interpreter's bound-value substitution for retMarker flows
	// into eq's second operand.
	addData(p, a, expected, 0, types.I32)
	addData(p, b, expected, 1, types.I32)
	addData(p, expected, eq, 0, types.I32)
	addData(p, retMarker, eq, 1, types.I32)
	addData(p, eq, post, 0, types.Bool)
	addData(p, retMarker, post, 1, types.I32)

	return p, fn
}

func TestPostconditionViolation(t *testing.T) {
	p, fn := buildBadSum(t)
	it := New(p, DefaultConfig(), nil)

	_, err := it.Call(fn, []Value{intValue(3, 32), intValue(4, 32)})
	v, ok := err.(*ContractViolation)
	if !ok || v.Kind != ContractPostcondition {
		t.Fatalf("expected Postcondition violation, got %T: %v", err, err)
	}
}

// --- branching ---

// buildAbsValue builds abs(a) via IfElse: if a < 0 return -a else
// return a, exercising activateControlOutputs' branch selection.
func buildAbsValue(t *testing.T) (*graph.Program, graph.FunctionId) {
	t.Helper()
	p := newProgram("t")
	fn := addFunction(p, "absValue", 0, []graph.Param{{Name: "a", Type: types.I32}}, types.I32)

	a := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	zero := addNode(p, fn, graph.OpConstI32, graph.NodePayload{ConstInt: 0})
	isNeg := addNode(p, fn, graph.OpLt, graph.NodePayload{})
	ifElse := addNode(p, fn, graph.OpIfElse, graph.NodePayload{})
	neg := addNode(p, fn, graph.OpNeg, graph.NodePayload{})
	retNeg := addNode(p, fn, graph.OpReturn, graph.NodePayload{})
	retPos := addNode(p, fn, graph.OpReturn, graph.NodePayload{})

	addData(p, a, isNeg, 0, types.I32)
	addData(p, zero, isNeg, 1, types.I32)
	addData(p, isNeg, ifElse, 0, types.Bool)

	addCtrl(p, ifElse, neg, 0)
	addCtrl(p, neg, retNeg, 0)
	addCtrl(p, ifElse, retPos, 1)

	addData(p, a, neg, 0, types.I32)
	addData(p, neg, retNeg, 0, types.I32)
	addData(p, a, retPos, 0, types.I32)

	return p, fn
}

func TestIfElseBranchSelection(t *testing.T) {
	p, fn := buildAbsValue(t)

	it := New(p, DefaultConfig(), nil)
	v, err := it.Call(fn, []Value{intValue(-5, 32)})
	if err != nil {
		t.Fatalf("Call(-5): %v", err)
	}
	if v.Int != 5 {
		t.Fatalf("expected 5, got %+v", v)
	}

	it2 := New(p, DefaultConfig(), nil)
	v2, err := it2.Call(fn, []Value{intValue(5, 32)})
	if err != nil {
		t.Fatalf("Call(5): %v", err)
	}
	if v2.Int != 5 {
		t.Fatalf("expected 5, got %+v", v2)
	}
}

// --- nested calls ---

func TestNestedCallAcrossFunctions(t *testing.T) {
	p := newProgram("t")
	add := addFunction(p, "add", 0, []graph.Param{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}}, types.I32)
	a := addNode(p, add, graph.OpParameter, graph.NodePayload{Index: 0})
	b := addNode(p, add, graph.OpParameter, graph.NodePayload{Index: 1})
	sum := addNode(p, add, graph.OpAdd, graph.NodePayload{})
	ret := addNode(p, add, graph.OpReturn, graph.NodePayload{})
	addData(p, a, sum, 0, types.I32)
	addData(p, b, sum, 1, types.I32)
	addData(p, sum, ret, 0, types.I32)

	double := addFunction(p, "double", 0, []graph.Param{{Name: "x", Type: types.I32}}, types.I32)
	x := addNode(p, double, graph.OpParameter, graph.NodePayload{Index: 0})
	call := addNode(p, double, graph.OpCall, graph.NodePayload{Target: add})
	dret := addNode(p, double, graph.OpReturn, graph.NodePayload{})
	addData(p, x, call, 0, types.I32)
	addData(p, x, call, 1, types.I32)
	addData(p, call, dret, 0, types.I32)

	it := New(p, DefaultConfig(), nil)
	v, err := it.Call(double, []Value{intValue(21, 32)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v.Int != 42 {
		t.Fatalf("expected 42, got %+v", v)
	}
}

func TestRecursionLimitExceeded(t *testing.T) {
	p := newProgram("t")
	fn := addFunction(p, "loopForever", 0, []graph.Param{{Name: "x", Type: types.I32}}, types.I32)
	x := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	call := addNode(p, fn, graph.OpCall, graph.NodePayload{Target: fn})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})
	addData(p, x, call, 0, types.I32)
	addData(p, call, ret, 0, types.I32)

	cfg := DefaultConfig()
	cfg.MaxRecursionDepth = 4
	it := New(p, cfg, nil)
	_, err := it.Call(fn, []Value{intValue(1, 32)})
	trap, ok := err.(*Trap)
	if !ok || trap.Kind != RecursionLimitExceeded {
		t.Fatalf("expected RecursionLimitExceeded trap, got %T: %v", err, err)
	}
}

// --- step/run cooperative API ---

func TestStepRunMatchesCall(t *testing.T) {
	p, fn := buildAdd(t)
	it := New(p, DefaultConfig(), nil)
	if err := it.Begin(fn, []Value{intValue(10, 32), intValue(32, 32)}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	it.Run()
	if it.State != Completed {
		t.Fatalf("expected Completed, got %s", it.State)
	}
	if it.Result.Int != 42 {
		t.Fatalf("expected 42, got %+v", it.Result)
	}
}

func TestPauseResume(t *testing.T) {
	p, fn := buildAdd(t)
	it := New(p, DefaultConfig(), nil)
	if err := it.Begin(fn, []Value{intValue(1, 32), intValue(2, 32)}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	it.Pause()
	it.Step()
	if it.State != Paused {
		t.Fatalf("expected Paused, got %s", it.State)
	}
	it.Resume()
	it.Run()
	if it.State != Completed {
		t.Fatalf("expected Completed, got %s", it.State)
	}
	if it.Result.Int != 3 {
		t.Fatalf("expected 3, got %+v", it.Result)
	}
}

// --- struct/array ops ---

func TestStructAndArrayRoundTrip(t *testing.T) {
	p := newProgram("t")
	pointType := p.Types.Define(types.LmType{Kind: types.KindStruct, Name: "Point", Fields: []types.Field{
		{Name: "x", Type: types.I32},
		{Name: "y", Type: types.I32},
	}})

	fn := addFunction(p, "sumPoint", 0, []graph.Param{{Name: "x", Type: types.I32}, {Name: "y", Type: types.I32}}, types.I32)
	x := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 0})
	y := addNode(p, fn, graph.OpParameter, graph.NodePayload{Index: 1})
	mk := addNode(p, fn, graph.OpStructCreate, graph.NodePayload{})
	getX := addNode(p, fn, graph.OpStructGet, graph.NodePayload{FieldName: "x"})
	getY := addNode(p, fn, graph.OpStructGet, graph.NodePayload{FieldName: "y"})
	sum := addNode(p, fn, graph.OpAdd, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})

	addData(p, x, mk, 0, types.I32)
	addData(p, y, mk, 1, types.I32)
	addData(p, mk, getX, 0, pointType)
	addData(p, mk, getY, 0, pointType)
	addData(p, getX, sum, 0, types.I32)
	addData(p, getY, sum, 1, types.I32)
	addData(p, sum, ret, 0, types.I32)

	it := New(p, DefaultConfig(), nil)
	v, err := it.Call(fn, []Value{intValue(3, 32), intValue(4, 32)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v.Int != 7 {
		t.Fatalf("expected 7, got %+v", v)
	}
}

func TestArrayGetOutOfBounds(t *testing.T) {
	p := newProgram("t")
	fn := addFunction(p, "firstOf", 0, nil, types.I32)
	a := addNode(p, fn, graph.OpConstI32, graph.NodePayload{ConstInt: 1})
	b := addNode(p, fn, graph.OpConstI32, graph.NodePayload{ConstInt: 2})
	mk := addNode(p, fn, graph.OpArrayCreate, graph.NodePayload{})
	idx := addNode(p, fn, graph.OpConstI32, graph.NodePayload{ConstInt: 5})
	get := addNode(p, fn, graph.OpArrayGet, graph.NodePayload{})
	ret := addNode(p, fn, graph.OpReturn, graph.NodePayload{})

	addData(p, a, mk, 0, types.I32)
	addData(p, b, mk, 1, types.I32)
	addData(p, mk, get, 0, types.I32)
	addData(p, idx, get, 1, types.I32)
	addData(p, get, ret, 0, types.I32)

	it := New(p, DefaultConfig(), nil)
	_, err := it.Call(fn, nil)
	trap, ok := err.(*Trap)
	if !ok || trap.Kind != OutOfBoundsAccess {
		t.Fatalf("expected OutOfBoundsAccess trap, got %T: %v", err, err)
	}
}
