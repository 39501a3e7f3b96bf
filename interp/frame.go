package interp

import "github.com/snowdamiz/lmlang/graph"

// Frame is one function invocation's work-list state (spec.md §4.4's
// call frame): parameter bindings, per-node value map, and the
// readiness/control-gating bookkeeping the scheduler consults.
type Frame struct {
	Function graph.FunctionId
	nodes    []graph.NodeId

	args     []Value
	captures []Value

	values    map[graph.NodeId]Value
	completed map[graph.NodeId]bool

	controlReady map[graph.NodeId]bool
	phiPort      map[graph.NodeId]int

	returnValue *Value

	// CallerReturnSite records which node in the caller's frame is
	// waiting on this call's result, for diagnostics/trace only — the
	// actual resumption is handled by the Go call stack since Call
	// synchronously recurses (spec.md's "single-threaded cooperative"
	// model needs no separate continuation representation).
	CallerReturnSite graph.NodeId
}

func newFrame(p *graph.Program, fn graph.FunctionId, args, captures []Value) *Frame {
	return &Frame{
		Function:     fn,
		nodes:        mainWorkList(p, fn),
		args:         args,
		captures:     captures,
		values:       make(map[graph.NodeId]Value),
		completed:    make(map[graph.NodeId]bool),
		controlReady: make(map[graph.NodeId]bool),
		phiPort:      make(map[graph.NodeId]int),
	}
}

// mainWorkList returns fn's compute nodes minus its contract nodes
// (Precondition/Postcondition/Invariant), which spec.md §4.5 evaluates
// out-of-band via evalContracts and which are never hashed or
// codegen'd. Excluding them here keeps the main scheduler's nextReady
// from ever selecting one, matching evalOp's documented expectation
// that it should never see a contract op.
func mainWorkList(p *graph.Program, fn graph.FunctionId) []graph.NodeId {
	all := p.NodesOf(fn)
	out := make([]graph.NodeId, 0, len(all))
	for _, id := range all {
		n, ok := p.Node(id)
		if !ok {
			continue
		}
		switch n.Op {
		case graph.OpPrecondition, graph.OpPostcondition, graph.OpInvariant:
			continue
		}
		out = append(out, id)
	}
	return out
}

// dataReady reports whether every data edge feeding id currently has a
// value, special-casing Phi (only the selected port needs one) and
// seedable zero-input ops (always considered data-ready; their value
// is produced by fire's seed handling).
func (f *Frame) dataReady(p *graph.Program, id graph.NodeId) bool {
	n, ok := p.Node(id)
	if !ok {
		return false
	}
	inputs := p.DataInputs(id)
	if len(inputs) == 0 {
		return true
	}
	if n.Op == graph.OpPhi {
		port, known := f.phiPort[id]
		if !known {
			return false
		}
		for _, e := range inputs {
			if e.TargetPort == port {
				_, has := f.values[e.Source]
				return has
			}
		}
		return false
	}
	for _, e := range inputs {
		if _, has := f.values[e.Source]; !has {
			return false
		}
	}
	return true
}

// nextReady returns the lowest-NodeId node currently eligible to fire,
// iterating in NodeId order for deterministic trace output.
func (f *Frame) nextReady(p *graph.Program) (graph.NodeId, bool) {
	for _, id := range f.nodes {
		if f.completed[id] {
			continue
		}
		if !f.dataReady(p, id) {
			continue
		}
		if len(p.CtrlInputs(id)) > 0 && !f.controlReady[id] {
			continue
		}
		return id, true
	}
	return 0, false
}

// resetLoopBody implements spec.md §4.4's loop re-entry rule: BFS
// forward from header's successors — along both control edges (the
// sequencing chain) and data edges (pure expressions fed by body
// reads, which carry no control edge of their own) — until header is
// reached again, and clear completed/value/control-ready state for
// every node visited plus header itself, so the next scheduling pass
// re-fires the whole loop body. Only forward reachability from the
// body is followed, so data inputs sourced from outside the body are
// left untouched — their cached values satisfy data-readiness without
// a refire, which is exactly the "pre-credit" spec.md describes.
func (f *Frame) resetLoopBody(p *graph.Program, header graph.NodeId) {
	visited := map[graph.NodeId]bool{header: true}
	queue := []graph.NodeId{}
	for _, e := range p.CtrlOutputs(header) {
		queue = append(queue, e.Target)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, e := range p.CtrlOutputs(n) {
			if !visited[e.Target] {
				queue = append(queue, e.Target)
			}
		}
		for _, e := range p.DataOutputs(n) {
			if !visited[e.Target] {
				queue = append(queue, e.Target)
			}
		}
	}
	for n := range visited {
		delete(f.values, n)
		delete(f.completed, n)
		delete(f.controlReady, n)
		delete(f.phiPort, n)
	}
}
