package compile

import (
	"testing"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

func buildIncFunction(p *graph.Program) graph.FunctionId {
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{
		Name:   "inc",
		Params: []graph.Param{{Name: "x", Type: types.I32}},
		Return: types.I32,
	})
	param := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpParameter, Owner: fn, Payload: graph.NodePayload{Index: 0}})
	one := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstI32, Owner: fn, Payload: graph.NodePayload{ConstInt: 1}})
	add := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	ret := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpReturn, Owner: fn})

	p.DataEdges = append(p.DataEdges,
		graph.DataEdge{Source: param, Target: add, TargetPort: 0, ValueType: types.I32},
		graph.DataEdge{Source: one, Target: add, TargetPort: 1, ValueType: types.I32},
		graph.DataEdge{Source: add, Target: ret, TargetPort: 0, ValueType: types.I32},
	)
	return fn
}

func TestHashStableAcrossContractOnlyChange(t *testing.T) {
	p := graph.NewProgram("t")
	fn := buildIncFunction(p)
	before := HashFunctionForCompilation(p, fn)

	pre := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpPrecondition, Owner: fn, Payload: graph.NodePayload{Message: "x >= 0"}})
	p.DataEdges = append(p.DataEdges, graph.DataEdge{Source: p.NodesOf(fn)[0], Target: pre, TargetPort: 0, ValueType: types.Bool})

	after := HashFunctionForCompilation(p, fn)
	if before != after {
		t.Fatalf("hash changed after adding only a contract node: before=%s after=%s", before, after)
	}
}

func TestHashChangesOnBodyEdit(t *testing.T) {
	p := graph.NewProgram("t")
	fn := buildIncFunction(p)
	before := HashFunctionForCompilation(p, fn)

	two := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstI32, Owner: fn, Payload: graph.NodePayload{ConstInt: 2}})
	_ = two

	after := HashFunctionForCompilation(p, fn)
	if before == after {
		t.Fatalf("hash did not change after adding a non-contract node")
	}
}

func TestComputeDirtyPropagatesToCallers(t *testing.T) {
	p := graph.NewProgram("t")
	a := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "a"})
	b := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "b"})
	c := buildIncFunction(p) // reuse as "c"

	callBNode := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpCall, Owner: a, Payload: graph.NodePayload{Target: b}})
	callCNode := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpCall, Owner: b, Payload: graph.NodePayload{Target: c}})
	_ = callBNode
	_ = callCNode

	last := map[graph.FunctionId]Record{
		a: {Hash: HashFunctionForCompilation(p, a)},
		b: {Hash: HashFunctionForCompilation(p, b)},
		c: {Hash: HashFunctionForCompilation(p, c)},
	}

	// Modify only c.
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstI32, Owner: c, Payload: graph.NodePayload{ConstInt: 99}})

	status := ComputeDirty(Plan{Program: p, LastCompiled: last})
	assertContains(t, status.Dirty, c)
	assertContains(t, status.DirtyDependents, a)
	assertContains(t, status.DirtyDependents, b)
	if len(status.Cached) != 0 {
		t.Fatalf("expected nothing cached, got %v", status.Cached)
	}
}

func assertContains(t *testing.T, list []graph.FunctionId, want graph.FunctionId) {
	t.Helper()
	for _, f := range list {
		if f == want {
			return
		}
	}
	t.Fatalf("expected %d in %v", want, list)
}
