package engine

import (
	"testing"
	"time"

	"github.com/snowdamiz/lmlang/concurrency"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/interp"
	"github.com/snowdamiz/lmlang/mutation"
	"github.com/snowdamiz/lmlang/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// buildAdd commits a brand-new add(a, b) = a + b function into program
// via real ApplyMutations calls, the way an external caller would,
// rather than poking the graph directly.
func buildAdd(t *testing.T, e *Engine, program string) graph.FunctionId {
	t.Helper()

	res, err := e.ApplyMutations(program, []mutation.Mutation{
		{Kind: mutation.AddFunction, Function: graph.Function{
			Name: "add",
			Params: []graph.Param{
				{Name: "a", Type: types.I32},
				{Name: "b", Type: types.I32},
			},
			Return: types.I32,
		}},
	}, mutation.Options{})
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if !res.Committed || len(res.Created.Functions) != 1 {
		t.Fatalf("expected one committed function, got %+v", res)
	}
	fn := res.Created.Functions[0]

	const agent = "builder"
	if err := e.AcquireLock(program, agent, []graph.FunctionId{fn}, concurrency.Write, time.Minute); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	nodes, err := e.ApplyMutations(program, []mutation.Mutation{
		{Kind: mutation.InsertNode, Node: graph.Node{Op: graph.OpParameter, Owner: fn, Payload: graph.NodePayload{Index: 0}}},
		{Kind: mutation.InsertNode, Node: graph.Node{Op: graph.OpParameter, Owner: fn, Payload: graph.NodePayload{Index: 1}}},
		{Kind: mutation.InsertNode, Node: graph.Node{Op: graph.OpAdd, Owner: fn}},
		{Kind: mutation.InsertNode, Node: graph.Node{Op: graph.OpReturn, Owner: fn}},
	}, mutation.Options{AgentId: string(agent)})
	if err != nil {
		t.Fatalf("InsertNode batch: %v", err)
	}
	if !nodes.Committed || len(nodes.Created.Nodes) != 4 {
		t.Fatalf("expected 4 committed nodes, got %+v", nodes)
	}
	a, b, sum, ret := nodes.Created.Nodes[0], nodes.Created.Nodes[1], nodes.Created.Nodes[2], nodes.Created.Nodes[3]

	edges, err := e.ApplyMutations(program, []mutation.Mutation{
		{Kind: mutation.AddDataEdge, DataEdge: graph.DataEdge{Source: a, Target: sum, TargetPort: 0, ValueType: types.I32}},
		{Kind: mutation.AddDataEdge, DataEdge: graph.DataEdge{Source: b, Target: sum, TargetPort: 1, ValueType: types.I32}},
		{Kind: mutation.AddDataEdge, DataEdge: graph.DataEdge{Source: sum, Target: ret, TargetPort: 0, ValueType: types.I32}},
	}, mutation.Options{AgentId: string(agent)})
	if err != nil {
		t.Fatalf("AddDataEdge batch: %v", err)
	}
	if !edges.Committed || len(edges.TypeErrors) != 0 {
		t.Fatalf("expected a clean commit, got %+v", edges)
	}

	if err := e.ReleaseLock(program, agent, []graph.FunctionId{fn}); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	return fn
}

func TestProgramLifecycle(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.CreateProgram("p1"); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	names, err := e.ListPrograms()
	if err != nil || len(names) != 1 || names[0] != "p1" {
		t.Fatalf("ListPrograms = %v, %v", names, err)
	}

	ov, err := e.Overview("p1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.Functions != 0 || ov.Nodes != 0 {
		t.Fatalf("expected an empty overview, got %+v", ov)
	}

	if err := e.DeleteProgram("p1"); err != nil {
		t.Fatalf("DeleteProgram: %v", err)
	}
	names, err = e.ListPrograms()
	if err != nil || len(names) != 0 {
		t.Fatalf("expected no programs after delete, got %v", names)
	}
}

func TestAgentLifecycle(t *testing.T) {
	e := newTestEngine(t)
	cfg, err := e.RegisterAgent("Agent One")
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if cfg.ID == "" {
		t.Fatalf("expected a minted agent id")
	}

	updated, err := e.UpdateAgentConfig(cfg.ID, map[string]string{"role": "reviewer"})
	if err != nil {
		t.Fatalf("UpdateAgentConfig: %v", err)
	}
	if updated.Settings["role"] != "reviewer" {
		t.Fatalf("expected merged setting, got %+v", updated.Settings)
	}

	agents, err := e.ListAgents()
	if err != nil || len(agents) != 1 {
		t.Fatalf("ListAgents = %v, %v", agents, err)
	}

	if err := e.DeleteAgent(cfg.ID); err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}
	agents, err = e.ListAgents()
	if err != nil || len(agents) != 0 {
		t.Fatalf("expected no agents after delete, got %v", agents)
	}
}

func TestApplyMutationsAndSimulateAdd(t *testing.T) {
	e := newTestEngine(t)
	const program = "adder"
	if _, err := e.CreateProgram(program); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	fn := buildAdd(t, e, program)

	errs, err := e.Verify(program, VerifyFull, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected a clean graph, got type errors: %+v", errs)
	}

	result, err := e.Simulate(program, fn, []interp.Value{
		{Kind: interp.VInt, Int: 3, Width: 32},
		{Kind: interp.VInt, Int: 4, Width: 32},
	}, false)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if result.State != interp.Completed {
		t.Fatalf("expected Completed, got %s (trap=%v violation=%v err=%v)",
			result.State, result.Trap, result.ContractViolation, result.Err)
	}
	if result.Result.Int != 7 {
		t.Fatalf("expected 3+4=7, got %d", result.Result.Int)
	}
}

func TestHistoryUndoRedo(t *testing.T) {
	e := newTestEngine(t)
	const program = "adder2"
	if _, err := e.CreateProgram(program); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	buildAdd(t, e, program)

	records, err := e.History(program)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 committed batches, got %d", len(records))
	}

	ov, err := e.Overview(program)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.Functions != 1 || ov.Nodes != 4 || ov.DataEdges != 3 {
		t.Fatalf("unexpected overview: %+v", ov)
	}

	if err := e.Undo(program); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	ov, err = e.Overview(program)
	if err != nil {
		t.Fatalf("Overview after undo: %v", err)
	}
	if ov.DataEdges != 0 {
		t.Fatalf("expected the last batch's edges undone, got %+v", ov)
	}

	if err := e.Redo(program); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	ov, err = e.Overview(program)
	if err != nil {
		t.Fatalf("Overview after redo: %v", err)
	}
	if ov.DataEdges != 3 {
		t.Fatalf("expected edges restored after redo, got %+v", ov)
	}
}

func TestLockConflict(t *testing.T) {
	e := newTestEngine(t)
	const program = "locked"
	if _, err := e.CreateProgram(program); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	res, err := e.ApplyMutations(program, []mutation.Mutation{
		{Kind: mutation.AddFunction, Function: graph.Function{Name: "f", Return: types.I32}},
	}, mutation.Options{})
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	fn := res.Created.Functions[0]

	if err := e.AcquireLock(program, "agent-a", []graph.FunctionId{fn}, concurrency.Write, time.Minute); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if err := e.AcquireLock(program, "agent-b", []graph.FunctionId{fn}, concurrency.Write, time.Minute); err == nil {
		t.Fatalf("expected a second writer to conflict")
	}

	locks, err := e.ListLocks(program)
	if err != nil || len(locks) != 1 {
		t.Fatalf("ListLocks = %v, %v", locks, err)
	}
}

func TestVerifyLocalScopesToAffectedNodes(t *testing.T) {
	e := newTestEngine(t)
	const program = "scoped"
	if _, err := e.CreateProgram(program); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	fn := buildAdd(t, e, program)

	view, err := e.FunctionQuery(program, fn)
	if err != nil {
		t.Fatalf("FunctionQuery: %v", err)
	}
	if len(view.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(view.Nodes))
	}

	errs, err := e.Verify(program, VerifyLocal, view.Nodes)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected no type errors, got %+v", errs)
	}
}
