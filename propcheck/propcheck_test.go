package propcheck

import (
	"testing"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/interp"
	"github.com/snowdamiz/lmlang/types"
)

func newProgram(name string) *graph.Program { return graph.NewProgram(name) }

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

// buildAdd builds add(a, b) = a + b over I32, with no contracts: every
// generated pair is a legal call, but pairs whose sum leaves the I32
// range (such as MAX + MAX) trap with IntegerOverflow, which
// TestRunFindsOverflowBoundary relies on.
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

func TestRunCountsSeedsAndIterations(t *testing.T) {
	p, fn := buildAdd(t)
	report, err := Run(p, Config{
		Function:   fn,
		Seeds:      [][]interp.Value{{interp.Value{Kind: interp.VInt, Int: 1, Width: 32}, interp.Value{Kind: interp.VInt, Int: 2, Width: 32}}},
		Iterations: 10,
		RandomSeed: 42,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Ran != 11 {
		t.Fatalf("Ran = %d, want 11 (1 seed + 10 iterations)", report.Ran)
	}
}

func TestRunFindsOverflowBoundary(t *testing.T) {
	p, fn := buildAdd(t)
	// MAX + MAX on I32 always overflows; with enough iterations the
	// boundary-weighted generator (which draws MAX with probability
	// 1/6 per argument) is certain to hit it.
	report, err := Run(p, Config{Function: fn, Iterations: 500, RandomSeed: 7})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, f := range report.Failures {
		if f.Trap != nil && f.Trap.Kind == interp.IntegerOverflow {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one IntegerOverflow trap across %d iterations, got %d failures", report.Ran, len(report.Failures))
	}
}

func TestRunReproducible(t *testing.T) {
	p, fn := buildAdd(t)
	cfg := Config{Function: fn, Iterations: 50, RandomSeed: 123}

	r1, err := Run(p, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r2, err := Run(p, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r1.Failures) != len(r2.Failures) {
		t.Fatalf("failure counts differ across runs with identical config: %d vs %d", len(r1.Failures), len(r2.Failures))
	}
	for i := range r1.Failures {
		a, b := r1.Failures[i], r2.Failures[i]
		if len(a.Inputs) != len(b.Inputs) {
			t.Fatalf("failure %d input length differs", i)
		}
		for j := range a.Inputs {
			if !a.Inputs[j].Equal(b.Inputs[j]) {
				t.Fatalf("failure %d input %d differs across identical-config runs: %v vs %v", i, j, a.Inputs[j], b.Inputs[j])
			}
		}
	}
}

func TestRunUnknownFunction(t *testing.T) {
	p := newProgram("t")
	_, err := Run(p, Config{Function: 99})
	if err == nil {
		t.Fatal("expected UnknownFunctionError")
	}
	if _, ok := err.(*UnknownFunctionError); !ok {
		t.Fatalf("expected *UnknownFunctionError, got %T", err)
	}
}
