package codegen

import (
	"sort"

	"tinygo.org/x/go-llvm"

	"github.com/snowdamiz/lmlang/graph"
)

// stopSet marks control nodes where a chain walk must halt without
// lowering the node itself, letting the caller lower it once both
// arms of a branch have converged.
type stopSet map[graph.NodeId]bool

func extendStop(s stopSet, extra graph.NodeId) stopSet {
	out := make(stopSet, len(s)+1)
	for k := range s {
		out[k] = true
	}
	out[extra] = true
	return out
}

// lowerChain walks a function body's control edges starting at id,
// emitting one LLVM instruction per node in sequence until it hits a
// Return, a node in stop, or a dead end. It returns true if the
// chain's final block is already terminated (by a ret, br, or
// unreachable).
func (fs *funcState) lowerChain(id graph.NodeId, stop stopSet) (bool, error) {
	cur := id
	for {
		if stop[cur] {
			return false, nil
		}
		n, ok := fs.prog.Node(cur)
		if !ok {
			return false, nodeErr(LoweringError, fs.fnId, cur, "missing node", nil)
		}

		switch n.Op {
		case graph.OpReturn:
			return fs.lowerReturn(cur)
		case graph.OpIfElse, graph.OpBranch:
			return fs.lowerIfElse(cur, stop)
		case graph.OpLoop:
			return fs.lowerLoop(cur, stop)
		case graph.OpMatch:
			return fs.lowerMatch(cur, stop)
		case graph.OpJump:
			outs := fs.prog.CtrlOutputs(cur)
			if len(outs) == 0 {
				return false, nil
			}
			target := outs[0].Target
			if bb, ok := fs.nodeBlock[target]; ok {
				fs.b.CreateBr(bb)
				return true, nil
			}
			cur = target
			continue
		case graph.OpPhi:
			if _, err := fs.lowerPhi(cur, n); err != nil {
				return false, err
			}
		case graph.OpPrecondition, graph.OpPostcondition, graph.OpInvariant:
			// Contract nodes are excluded from codegen lowering
			// entirely (spec.md §4.8 step 1): verified ahead of time
			// by the property test harness and type checker, not at
			// the machine-code level.
		default:
			if _, err := fs.value(cur); err != nil {
				return false, err
			}
		}

		outs := fs.prog.CtrlOutputs(cur)
		if len(outs) == 0 {
			return false, nil
		}
		cur = outs[0].Target
	}
}

func (fs *funcState) lowerReturn(id graph.NodeId) (bool, error) {
	edges := fs.prog.DataInputs(id)
	if len(edges) == 0 {
		fs.b.CreateRetVoid()
		return true, nil
	}
	v, err := fs.value(edges[0].Source)
	if err != nil {
		return false, err
	}
	fs.b.CreateRet(v)
	return true, nil
}

func (fs *funcState) lowerPhi(id graph.NodeId, n graph.Node) (llvm.Value, error) {
	if v, ok := fs.values[id]; ok {
		return v, nil
	}
	edges := fs.prog.DataInputs(id)
	if len(edges) == 0 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "phi with no incoming data edges", nil)
	}
	ty, err := fs.tc.llvmType(edges[0].ValueType)
	if err != nil {
		return llvm.Value{}, err
	}
	cur := fs.b.GetInsertBlock()
	phi := fs.b.CreatePHI(ty, "")
	for _, e := range edges {
		v, ok := fs.values[e.Source]
		if !ok {
			continue
		}
		block, ok := fs.valueBlock[e.Source]
		if !ok {
			block = cur
		}
		phi.AddIncoming([]llvm.Value{v}, []llvm.BasicBlock{block})
	}
	fs.values[id] = phi
	fs.valueBlock[id] = cur
	return phi, nil
}

func (fs *funcState) condValue(id graph.NodeId) (llvm.Value, error) {
	edges := fs.prog.DataInputs(id)
	if len(edges) == 0 {
		return llvm.Value{}, nodeErr(LoweringError, fs.fnId, id, "missing condition input", nil)
	}
	return fs.value(edges[0].Source)
}

// lowerIfElse lowers IfElse/Branch: two basic blocks for the arms, a
// join point found via findJoin, and continues the chain past the
// join once both arms converge. Mirrors the teacher's genIf
// thenBB/elseBB/convBB shape.
func (fs *funcState) lowerIfElse(id graph.NodeId, stop stopSet) (bool, error) {
	cond, err := fs.condValue(id)
	if err != nil {
		return false, err
	}

	outs := fs.prog.CtrlOutputs(id)
	var thenTarget, elseTarget graph.NodeId
	var hasThen, hasElse bool
	for _, e := range outs {
		if e.BranchIndex == 0 {
			thenTarget = e.Target
			hasThen = true
		} else if e.BranchIndex == 1 {
			elseTarget = e.Target
			hasElse = true
		}
	}

	thenBB := llvm.AddBasicBlock(fs.llfn, "")
	elseBB := llvm.AddBasicBlock(fs.llfn, "")
	fs.b.CreateCondBr(cond, thenBB, elseBB)

	var join graph.NodeId
	hasJoin := false
	if hasThen && hasElse {
		join, hasJoin = fs.findJoin(thenTarget, elseTarget)
	}
	var mergeBB llvm.BasicBlock
	if hasJoin {
		if bb, ok := fs.nodeBlock[join]; ok {
			mergeBB = bb
		} else {
			mergeBB = llvm.AddBasicBlock(fs.llfn, "")
			fs.nodeBlock[join] = mergeBB
		}
	}
	newStop := stop
	if hasJoin {
		newStop = extendStop(stop, join)
	}

	fs.b.SetInsertPointAtEnd(thenBB)
	termThen := false
	if hasThen {
		t, err := fs.lowerChain(thenTarget, newStop)
		if err != nil {
			return false, err
		}
		termThen = t
	}
	if !termThen {
		if hasJoin {
			fs.b.CreateBr(mergeBB)
		} else {
			fs.b.CreateUnreachable()
		}
	}

	fs.b.SetInsertPointAtEnd(elseBB)
	termElse := false
	if hasElse {
		t, err := fs.lowerChain(elseTarget, newStop)
		if err != nil {
			return false, err
		}
		termElse = t
	}
	if !termElse {
		if hasJoin {
			fs.b.CreateBr(mergeBB)
		} else {
			fs.b.CreateUnreachable()
		}
	}

	if !hasJoin {
		return true, nil
	}
	fs.b.SetInsertPointAtEnd(mergeBB)
	return fs.lowerChain(join, stop)
}

// lowerLoop lowers Loop with a header block re-entered on every
// iteration (the back-edge is a plain branch to the already-created
// header block, detected via fs.nodeBlock), a body block, and an exit
// block. Mirrors the teacher's genWhile headBB/bodyBB/convBB shape.
func (fs *funcState) lowerLoop(id graph.NodeId, stop stopSet) (bool, error) {
	headerBB, exists := fs.nodeBlock[id]
	if !exists {
		headerBB = llvm.AddBasicBlock(fs.llfn, "")
		fs.nodeBlock[id] = headerBB
		fs.b.CreateBr(headerBB)
	}
	fs.b.SetInsertPointAtEnd(headerBB)

	cond, err := fs.condValue(id)
	if err != nil {
		return false, err
	}

	outs := fs.prog.CtrlOutputs(id)
	var bodyTarget, exitTarget graph.NodeId
	var hasBody, hasExit bool
	for _, e := range outs {
		if e.BranchIndex == 0 {
			bodyTarget = e.Target
			hasBody = true
		} else if e.BranchIndex == 1 {
			exitTarget = e.Target
			hasExit = true
		}
	}

	bodyBB := llvm.AddBasicBlock(fs.llfn, "")
	exitBB := llvm.AddBasicBlock(fs.llfn, "")
	fs.b.CreateCondBr(cond, bodyBB, exitBB)

	fs.b.SetInsertPointAtEnd(bodyBB)
	bodyStop := extendStop(stop, id)
	if hasBody {
		term, err := fs.lowerChain(bodyTarget, bodyStop)
		if err != nil {
			return false, err
		}
		if !term {
			fs.b.CreateBr(headerBB)
		}
	} else {
		fs.b.CreateBr(headerBB)
	}

	fs.b.SetInsertPointAtEnd(exitBB)
	if hasExit {
		return fs.lowerChain(exitTarget, stop)
	}
	return false, nil
}

// lowerMatch switches on the discriminant, one arm block per
// ControlEdge (ordered by BranchIndex matching the variant's
// positional index), converging at a join found across all arms. An
// unmatched discriminant falls to a default block that reports a
// runtime type mismatch — it should be unreachable if the type
// checker proved exhaustiveness, but codegen guards it anyway.
func (fs *funcState) lowerMatch(id graph.NodeId, stop stopSet) (bool, error) {
	edges := fs.prog.DataInputs(id)
	if len(edges) == 0 {
		return false, nodeErr(LoweringError, fs.fnId, id, "match with no discriminant input", nil)
	}
	disc, err := fs.value(edges[0].Source)
	if err != nil {
		return false, err
	}

	outs := fs.prog.CtrlOutputs(id)
	sort.Slice(outs, func(i, j int) bool { return outs[i].BranchIndex < outs[j].BranchIndex })
	targets := make([]graph.NodeId, len(outs))
	for i, e := range outs {
		targets[i] = e.Target
	}

	join, hasJoin := fs.findJoinMulti(targets)
	var mergeBB llvm.BasicBlock
	if hasJoin {
		if bb, ok := fs.nodeBlock[join]; ok {
			mergeBB = bb
		} else {
			mergeBB = llvm.AddBasicBlock(fs.llfn, "")
			fs.nodeBlock[join] = mergeBB
		}
	}
	newStop := stop
	if hasJoin {
		newStop = extendStop(stop, join)
	}

	i32 := fs.ctx.Int32Type()
	defBB := llvm.AddBasicBlock(fs.llfn, "")
	sw := fs.b.CreateSwitch(disc, defBB, len(outs))
	armBlocks := make([]llvm.BasicBlock, len(outs))
	for i, e := range outs {
		bb := llvm.AddBasicBlock(fs.llfn, "")
		armBlocks[i] = bb
		sw.AddCase(llvm.ConstInt(i32, uint64(e.BranchIndex), false), bb)
	}

	for i, e := range outs {
		fs.b.SetInsertPointAtEnd(armBlocks[i])
		term, err := fs.lowerChain(e.Target, newStop)
		if err != nil {
			return false, err
		}
		if !term {
			if hasJoin {
				fs.b.CreateBr(mergeBB)
			} else {
				fs.b.CreateUnreachable()
			}
		}
	}

	fs.b.SetInsertPointAtEnd(defBB)
	fs.b.CreateCall(fs.rt.lmlangRuntimeError, []llvm.Value{
		llvm.ConstInt(i32, 5, false),
		llvm.ConstInt(i32, uint64(id), false),
	}, "")
	fs.b.CreateUnreachable()

	if !hasJoin {
		return true, nil
	}
	fs.b.SetInsertPointAtEnd(mergeBB)
	return fs.lowerChain(join, stop)
}

// findJoin locates the nearest control-flow node reachable from both
// a and b via ControlEdges (a BFS from each side, looking for the
// first overlap). The graph doesn't mark merge points explicitly, so
// this is a structural approximation rather than a dominance-based
// computation; it is sufficient for the acyclic arm shapes IfElse/
// Branch produce.
func (fs *funcState) findJoin(a, b graph.NodeId) (graph.NodeId, bool) {
	visitedA := map[graph.NodeId]bool{a: true}
	queueA := []graph.NodeId{a}
	for len(queueA) > 0 {
		n := queueA[0]
		queueA = queueA[1:]
		for _, e := range fs.prog.CtrlOutputs(n) {
			if !visitedA[e.Target] {
				visitedA[e.Target] = true
				queueA = append(queueA, e.Target)
			}
		}
	}

	if visitedA[b] {
		return b, true
	}
	visitedB := map[graph.NodeId]bool{b: true}
	queueB := []graph.NodeId{b}
	for len(queueB) > 0 {
		n := queueB[0]
		queueB = queueB[1:]
		if visitedA[n] {
			return n, true
		}
		for _, e := range fs.prog.CtrlOutputs(n) {
			if !visitedB[e.Target] {
				visitedB[e.Target] = true
				queueB = append(queueB, e.Target)
			}
		}
	}
	return 0, false
}

// findJoinMulti generalizes findJoin to N arms (Match): a node joins
// if it is reachable from every target, and the one returned is the
// nearest to targets[0] in BFS order.
func (fs *funcState) findJoinMulti(targets []graph.NodeId) (graph.NodeId, bool) {
	if len(targets) == 0 {
		return 0, false
	}
	counts := map[graph.NodeId]int{}
	for _, t := range targets {
		seen := map[graph.NodeId]bool{t: true}
		queue := []graph.NodeId{t}
		counts[t]++
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for _, e := range fs.prog.CtrlOutputs(n) {
				if !seen[e.Target] {
					seen[e.Target] = true
					counts[e.Target]++
					queue = append(queue, e.Target)
				}
			}
		}
	}

	if counts[targets[0]] == len(targets) {
		return targets[0], true
	}
	seen := map[graph.NodeId]bool{targets[0]: true}
	queue := []graph.NodeId{targets[0]}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range fs.prog.CtrlOutputs(n) {
			if seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			if counts[e.Target] == len(targets) {
				return e.Target, true
			}
			queue = append(queue, e.Target)
		}
	}
	return 0, false
}
