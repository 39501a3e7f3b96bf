package compile

import "github.com/snowdamiz/lmlang/graph"

// Settings are the compile-time options that, per spec.md §4.7 rule 5,
// invalidate the entire cache when changed.
type Settings struct {
	OptLevel      int
	TargetTriple  string
	DebugSymbols  bool
}

// Record is one function's last-compiled hash plus the settings it was
// compiled under.
type Record struct {
	Hash     Hash
	Settings Settings
}

// Plan is the input to ComputeDirty: the program, the last-known
// compiled record per function, the set of type ids that changed
// since the last compile, and the settings requested for this
// compile.
type Plan struct {
	Program       *graph.Program
	LastCompiled  map[graph.FunctionId]Record
	ChangedTypes  map[uint32]bool // types.Id changed since last compile
	Settings      Settings
}

// DirtyStatus partitions every non-tombstoned function into dirty
// (content changed), dirty_dependents (transitively calls a dirty
// function), and cached (neither).
type DirtyStatus struct {
	Dirty           []graph.FunctionId
	DirtyDependents []graph.FunctionId
	Cached          []graph.FunctionId
}

// ComputeDirty implements compute_dirty(plan) (spec.md §4.7):
//
//  1. direct: dirty = { f | current_hash(f) != last_compiled_hash(f) }
//  2. BFS on the reverse call graph to add any g that reaches a dirty f
//  3. cached = everyone else
//  4. if any type changed, every function referencing that type is dirty
//  5. if settings changed from any prior record, the whole cache is dirty
func ComputeDirty(plan Plan) DirtyStatus {
	p := plan.Program
	allFns := liveFunctions(p)

	settingsChanged := false
	for _, rec := range plan.LastCompiled {
		if rec.Settings != plan.Settings {
			settingsChanged = true
			break
		}
	}

	dirty := make(map[graph.FunctionId]bool)
	if settingsChanged {
		for _, f := range allFns {
			dirty[f] = true
		}
	} else {
		for _, f := range allFns {
			cur := HashFunctionForCompilation(p, f)
			rec, known := plan.LastCompiled[f]
			if !known || rec.Hash != cur {
				dirty[f] = true
			}
		}
		if len(plan.ChangedTypes) > 0 {
			for _, f := range allFns {
				if functionReferencesChangedType(p, f, plan.ChangedTypes) {
					dirty[f] = true
				}
			}
		}
	}

	reverseCalls := buildReverseCallGraph(p, allFns)
	dependents := make(map[graph.FunctionId]bool)
	queue := make([]graph.FunctionId, 0, len(dirty))
	for f := range dirty {
		queue = append(queue, f)
	}
	visited := make(map[graph.FunctionId]bool)
	for f := range dirty {
		visited[f] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, caller := range reverseCalls[cur] {
			if visited[caller] {
				continue
			}
			visited[caller] = true
			if !dirty[caller] {
				dependents[caller] = true
			}
			queue = append(queue, caller)
		}
	}

	var status DirtyStatus
	for _, f := range allFns {
		switch {
		case dirty[f]:
			status.Dirty = append(status.Dirty, f)
		case dependents[f]:
			status.DirtyDependents = append(status.DirtyDependents, f)
		default:
			status.Cached = append(status.Cached, f)
		}
	}
	return status
}

func liveFunctions(p *graph.Program) []graph.FunctionId {
	var out []graph.FunctionId
	for i := range p.Functions {
		fn := graph.FunctionId(i)
		if _, ok := p.Function(fn); ok {
			out = append(out, fn)
		}
	}
	return out
}

// buildReverseCallGraph scans every Call node in the program and
// builds callee -> [callers] by examining each Call node's Payload.Target
// and its owning function.
func buildReverseCallGraph(p *graph.Program, fns []graph.FunctionId) map[graph.FunctionId][]graph.FunctionId {
	reverse := make(map[graph.FunctionId][]graph.FunctionId)
	for _, fn := range fns {
		for _, nid := range p.NodesOf(fn) {
			n, _ := p.Node(nid)
			if n.Op == graph.OpCall {
				reverse[n.Payload.Target] = append(reverse[n.Payload.Target], fn)
			}
		}
	}
	return reverse
}

func functionReferencesChangedType(p *graph.Program, fn graph.FunctionId, changed map[uint32]bool) bool {
	f, ok := p.Function(fn)
	if !ok {
		return false
	}
	if changed[uint32(f.Return)] {
		return true
	}
	for _, param := range f.Params {
		if changed[uint32(param.Type)] {
			return true
		}
	}
	for _, nid := range p.NodesOf(fn) {
		n, _ := p.Node(nid)
		if changed[uint32(n.Payload.TypeArg)] {
			return true
		}
	}
	for _, eid := range p.DataEdgesTouching(fn) {
		e := p.DataEdges[eid]
		if changed[uint32(e.ValueType)] {
			return true
		}
	}
	return false
}
