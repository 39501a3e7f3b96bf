package typecheck

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

// Error is a structured static type error (spec.md §7's TypeError),
// carrying everything a caller needs to explain the failure without a
// fix suggestion.
type Error struct {
	Node        graph.NodeId
	Edge        *graph.EdgeId
	Function    graph.FunctionId
	Expected    *types.Id
	Actual      *types.Id
	Explanation string
}

func (e Error) Error() string { return e.Explanation }

// Checker runs the rule table against a graph.Program.
type Checker struct {
	Program *graph.Program
}

func New(p *graph.Program) *Checker { return &Checker{Program: p} }

// CheckEdge runs the eager local check for one added/modified data
// edge, per spec.md §4.3's "eager local check". It resolves the
// source node's output type, confirms it against the target port's
// constraint (consulting the target's already-resolved sibling ports
// for SameAs), and checks the coercion lattice.
func (c *Checker) CheckEdge(edgeId graph.EdgeId) []Error {
	e := c.Program.DataEdges[edgeId]
	var errs []Error

	srcNode, ok := c.Program.Node(e.Source)
	if !ok {
		return []Error{{Edge: &edgeId, Explanation: fmt.Sprintf("data edge references missing source node %d", e.Source)}}
	}
	tgtNode, ok := c.Program.Node(e.Target)
	if !ok {
		return []Error{{Edge: &edgeId, Explanation: fmt.Sprintf("data edge references missing target node %d", e.Target)}}
	}

	actualOut, outOK := c.outputType(e.Source)
	if !outOK {
		errs = append(errs, Error{
			Node: e.Source, Edge: &edgeId, Function: srcNode.Owner,
			Explanation: fmt.Sprintf("node %d (%s) does not produce a usable output value", e.Source, srcNode.Op),
		})
	} else if actualOut != e.ValueType && !c.Program.Types.CanCoerce(actualOut, e.ValueType) {
		exp, act := e.ValueType, actualOut
		errs = append(errs, Error{
			Node: e.Source, Edge: &edgeId, Function: srcNode.Owner,
			Expected: &exp, Actual: &act,
			Explanation: fmt.Sprintf("data edge declares value_type %d but source node %d produces %d", e.ValueType, e.Source, actualOut),
		})
	}

	rule, known := Table[tgtNode.Op]
	if !known {
		errs = append(errs, Error{Node: e.Target, Edge: &edgeId, Function: tgtNode.Owner,
			Explanation: fmt.Sprintf("unknown op %v on node %d", tgtNode.Op, e.Target)})
		return errs
	}
	constraint, hasConstraint := rule.Inputs[e.TargetPort]
	if !hasConstraint {
		errs = append(errs, Error{Node: e.Target, Edge: &edgeId, Function: tgtNode.Owner,
			Explanation: fmt.Sprintf("op %v on node %d has no input port %d", tgtNode.Op, e.Target, e.TargetPort)})
		return errs
	}

	resolved := c.resolvedInputTypes(e.Target)
	if !SatisfiesConstraint(c.Program.Types, constraint, e.ValueType, resolved) {
		exp, act := constraintToId(constraint, resolved), e.ValueType
		errs = append(errs, Error{
			Node: e.Target, Edge: &edgeId, Function: tgtNode.Owner,
			Expected: exp, Actual: &act,
			Explanation: fmt.Sprintf("node %d (%s) port %d does not accept value_type %d", e.Target, tgtNode.Op, e.TargetPort, e.ValueType),
		})
	}
	return errs
}

func constraintToId(c Constraint, resolved map[int]types.Id) *types.Id {
	switch c.Kind {
	case CExact:
		v := c.Exact
		return &v
	case CSameAs:
		if v, ok := resolved[c.SameAsPort]; ok {
			return &v
		}
	case CBool:
		v := types.Bool
		return &v
	}
	return nil
}

// resolvedInputTypes returns the concrete value_type observed on every
// currently-connected data input of node, by port index.
func (c *Checker) resolvedInputTypes(node graph.NodeId) map[int]types.Id {
	resolved := make(map[int]types.Id)
	for _, e := range c.Program.DataInputs(node) {
		resolved[e.TargetPort] = e.ValueType
	}
	return resolved
}

// outputType resolves node's output type, special-casing the ops whose
// rule needs function/program context beyond the local rule table
// (Call, Parameter, MakeClosure, CaptureAccess).
func (c *Checker) outputType(id graph.NodeId) (types.Id, bool) {
	n, ok := c.Program.Node(id)
	if !ok {
		return 0, false
	}
	switch n.Op {
	case graph.OpCall:
		fn, ok := c.Program.Function(n.Payload.Target)
		if !ok {
			return 0, false
		}
		return fn.Return, true
	case graph.OpParameter:
		fn, ok := c.Program.Function(n.Owner)
		if !ok || n.Payload.Index < 0 || n.Payload.Index >= len(fn.Params) {
			return 0, false
		}
		return fn.Params[n.Payload.Index].Type, true
	case graph.OpCaptureAccess:
		fn, ok := c.Program.Function(n.Owner)
		if !ok || n.Payload.Index < 0 || n.Payload.Index >= len(fn.Captures) {
			return 0, false
		}
		return fn.Captures[n.Payload.Index].Type, true
	case graph.OpMakeClosure:
		target, ok := c.Program.Function(n.Payload.Target)
		if !ok {
			return 0, false
		}
		params := make([]types.Id, len(target.Params))
		for i, p := range target.Params {
			params[i] = p.Type
		}
		return c.Program.Types.Define(types.LmType{Kind: types.KindFunction, Params: params, Return: target.Return}), true
	}
	rule, ok := Table[n.Op]
	if !ok {
		return 0, false
	}
	return rule.OutputType(c.Program.Types, n, c.resolvedInputTypes(id))
}

// ValidateGraph performs the full pass: re-checks every data edge in
// the program, plus confirms every node's mandatory ports are actually
// connected (spec.md §4.3). All errors are collected; nothing
// short-circuits.
func (c *Checker) ValidateGraph() []Error {
	var errs []Error
	for i := range c.Program.DataEdges {
		eid := graph.EdgeId(i)
		if !c.Program.DataEdgeLive(eid) {
			continue
		}
		errs = append(errs, c.CheckEdge(eid)...)
	}

	for i := range c.Program.Nodes {
		nid := graph.NodeId(i)
		n, ok := c.Program.Node(nid)
		if !ok {
			continue
		}
		rule, known := Table[n.Op]
		if !known {
			continue
		}
		resolved := c.resolvedInputTypes(nid)
		for _, port := range rule.MandatoryPorts {
			if _, present := resolved[port]; !present {
				errs = append(errs, Error{
					Node: nid, Function: n.Owner,
					Explanation: fmt.Sprintf("node %d (%s) is missing required input at port %d", nid, n.Op, port),
				})
			}
		}
		if len(rule.Inputs) == 0 && !n.Op.IsSeedable() && len(c.Program.CtrlInputs(nid)) == 0 {
			errs = append(errs, Error{
				Node: nid, Function: n.Owner,
				Explanation: fmt.Sprintf("node %d (%s) has no incoming edges and is not seedable", nid, n.Op),
			})
		}
	}
	return errs
}

