package interp

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
)

// contractEval walks a contract subgraph's data-edge ancestry and
// evaluates it directly, independent of the owning function's main
// work list — matching spec.md §4.5's "their subgraph runs as nested
// evaluation with caller arguments as inputs". Contract subgraphs are
// pure expression trees (arithmetic/comparison/logic/accessors); there
// is no control flow or memory to schedule, so plain recursion with
// memoization is sufficient and keeps contract evaluation fully
// decoupled from the body's control-gated scheduler.
func contractEval(p *graph.Program, id graph.NodeId, args, captures []Value, bound map[graph.NodeId]Value, memo map[graph.NodeId]Value) (Value, error) {
	if v, ok := memo[id]; ok {
		return v, nil
	}
	if v, ok := bound[id]; ok {
		memo[id] = v
		return v, nil
	}
	n, ok := p.Node(id)
	if !ok {
		return Value{}, fmt.Errorf("interp: contract subgraph references missing node %d", id)
	}

	in := make(map[int]Value)
	for _, e := range p.DataInputs(id) {
		v, err := contractEval(p, e.Source, args, captures, bound, memo)
		if err != nil {
			return Value{}, err
		}
		in[e.TargetPort] = v
	}

	var v Value
	var err error
	switch n.Op {
	case graph.OpConstBool:
		v = boolValue(n.Payload.ConstBool)
	case graph.OpConstI8:
		v = intValue(n.Payload.ConstInt, 8)
	case graph.OpConstI16:
		v = intValue(n.Payload.ConstInt, 16)
	case graph.OpConstI32:
		v = intValue(n.Payload.ConstInt, 32)
	case graph.OpConstI64:
		v = intValue(n.Payload.ConstInt, 64)
	case graph.OpConstF32:
		v = Value{Kind: VFloat32, F32: n.Payload.ConstF32}
	case graph.OpConstF64:
		v = Value{Kind: VFloat64, F64: n.Payload.ConstF64}
	case graph.OpParameter:
		if n.Payload.Index < 0 || n.Payload.Index >= len(args) {
			return Value{}, fmt.Errorf("interp: contract parameter index %d out of range", n.Payload.Index)
		}
		v = args[n.Payload.Index]
	case graph.OpCaptureAccess:
		if n.Payload.Index < 0 || n.Payload.Index >= len(captures) {
			return Value{}, fmt.Errorf("interp: contract capture index %d out of range", n.Payload.Index)
		}
		v = captures[n.Payload.Index]
	case graph.OpAdd, graph.OpSub, graph.OpMul, graph.OpDiv, graph.OpRem:
		v, err = checkedArith(n.Op, id, in[0], in[1])
	case graph.OpNeg:
		v, err = checkedArith(graph.OpSub, id, zeroLike(in[0]), in[0])
	case graph.OpEq:
		v = boolValue(in[0].Equal(in[1]))
	case graph.OpNe:
		v = boolValue(!in[0].Equal(in[1]))
	case graph.OpLt:
		v = compareOrdered(in[0], in[1], func(c int) bool { return c < 0 })
	case graph.OpLe:
		v = compareOrdered(in[0], in[1], func(c int) bool { return c <= 0 })
	case graph.OpGt:
		v = compareOrdered(in[0], in[1], func(c int) bool { return c > 0 })
	case graph.OpGe:
		v = compareOrdered(in[0], in[1], func(c int) bool { return c >= 0 })
	case graph.OpAnd:
		v = logicOp(in[0], in[1], func(a, b bool) bool { return a && b }, func(a, b int64) int64 { return a & b })
	case graph.OpOr:
		v = logicOp(in[0], in[1], func(a, b bool) bool { return a || b }, func(a, b int64) int64 { return a | b })
	case graph.OpXor:
		v = logicOp(in[0], in[1], func(a, b bool) bool { return a != b }, func(a, b int64) int64 { return a ^ b })
	case graph.OpNot:
		if in[0].Kind == VBool {
			v = boolValue(!in[0].Bool)
		} else {
			v = intValue(^in[0].Int, in[0].Width)
		}
	default:
		return Value{}, fmt.Errorf("interp: op %s is not valid inside a contract subgraph", n.Op)
	}
	if err != nil {
		return Value{}, err
	}
	memo[id] = v
	return v, nil
}

// evalContracts evaluates every contract node of kind op owned by fn,
// returning the first violation encountered (nil if all pass). bound
// seeds extra port values (e.g. a Postcondition's return-value port)
// beyond what the subgraph can derive from args/captures alone.
func evalContracts(p *graph.Program, fn graph.FunctionId, op graph.Op, kind ContractKind, args, captures []Value, bound map[graph.NodeId]map[int]Value, actualReturn *Value) (*ContractViolation, error) {
	for _, id := range p.NodesOf(fn) {
		n, ok := p.Node(id)
		if !ok || n.Op != op {
			continue
		}
		memo := make(map[graph.NodeId]Value)
		portBound := make(map[graph.NodeId]Value)
		if b, ok := bound[id]; ok {
			for port, v := range b {
				for _, e := range p.DataInputs(id) {
					if e.TargetPort == port {
						portBound[e.Source] = v
					}
				}
			}
		}
		condEdge := findInputEdge(p, id, 0)
		if condEdge == nil {
			continue
		}
		cond, err := contractEval(p, condEdge.Source, args, captures, portBound, memo)
		if err != nil {
			return nil, err
		}
		if cond.Kind == VBool && cond.Bool {
			continue
		}
		inputsSnapshot := make(map[graph.NodeId]Value, len(memo))
		for k, v := range memo {
			inputsSnapshot[k] = v
		}
		return &ContractViolation{
			Kind:         kind,
			ContractNode: id,
			Function:     fn,
			Message:      n.Payload.Message,
			Inputs:       inputsSnapshot,
			ActualReturn: actualReturn,
		}, nil
	}
	return nil, nil
}

func findInputEdge(p *graph.Program, target graph.NodeId, port int) *graph.DataEdge {
	for _, e := range p.DataInputs(target) {
		if e.TargetPort == port {
			ec := e
			return &ec
		}
	}
	return nil
}
