package typecheck

import (
	"testing"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

func newIncProgram() (*graph.Program, graph.FunctionId, graph.NodeId, graph.NodeId, graph.NodeId) {
	p := graph.NewProgram("t")
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "inc", Params: []graph.Param{{Name: "x", Type: types.I32}}, Return: types.I32})
	param := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpParameter, Owner: fn, Payload: graph.NodePayload{Index: 0}})
	one := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstI32, Owner: fn, Payload: graph.NodePayload{ConstInt: 1}})
	add := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	return p, fn, param, one, add
}

func TestCoercionLatticeAcceptsWidening(t *testing.T) {
	p, fn, param, _, _ := newIncProgram()
	narrow := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	p.DataEdges = append(p.DataEdges, graph.DataEdge{Source: param, Target: narrow, TargetPort: 0, ValueType: types.I64})

	c := New(p)
	errs := c.CheckEdge(0)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}

func TestCoercionLatticeRejectsNarrowing(t *testing.T) {
	p := graph.NewProgram("t")
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "f"})
	bigConst := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstI64, Owner: fn})
	sink := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	p.DataEdges = append(p.DataEdges, graph.DataEdge{Source: bigConst, Target: sink, TargetPort: 0, ValueType: types.I32})

	c := New(p)
	errs := c.CheckEdge(0)
	if len(errs) == 0 {
		t.Fatalf("expected a narrowing error, got none")
	}
	if errs[0].Expected == nil || *errs[0].Expected != types.I32 {
		t.Fatalf("expected error naming I32 as expected, got %+v", errs[0])
	}
}

func TestCoercionLatticeRejectsFloatToInt(t *testing.T) {
	p := graph.NewProgram("t")
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "f"})
	fconst := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstF32, Owner: fn})
	sink := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	p.DataEdges = append(p.DataEdges, graph.DataEdge{Source: fconst, Target: sink, TargetPort: 0, ValueType: types.I32})

	c := New(p)
	errs := c.CheckEdge(0)
	if len(errs) == 0 {
		t.Fatalf("expected a cross-family coercion error, got none")
	}
}

func TestCoercionLatticeAcceptsBoolToInt(t *testing.T) {
	p := graph.NewProgram("t")
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "f"})
	bconst := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpConstBool, Owner: fn})
	sink := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	p.DataEdges = append(p.DataEdges, graph.DataEdge{Source: bconst, Target: sink, TargetPort: 0, ValueType: types.I32})

	c := New(p)
	errs := c.CheckEdge(0)
	if len(errs) != 0 {
		t.Fatalf("expected bool->int to be accepted, got %+v", errs)
	}
}

func TestValidateGraphCollectsAllErrors(t *testing.T) {
	p := graph.NewProgram("t")
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{Name: "f"})
	// Add node requires two mandatory inputs; give it zero.
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpSub, Owner: fn})

	c := New(p)
	errs := c.ValidateGraph()
	if len(errs) < 4 {
		t.Fatalf("expected at least 4 missing-input errors (2 ports x 2 nodes), got %d: %+v", len(errs), errs)
	}
}
