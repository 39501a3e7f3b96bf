package mutation

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
)

// stage applies batch to p in place (p is expected to already be a
// clone dedicated to this attempt) and returns the ids minted along
// the way, or an error for a structurally invalid mutation (spec.md's
// InvalidBatch) that type-checking would never catch because it is
// not even a well-formed edit (e.g. RemoveNode of an id that does not
// exist).
func stage(p *graph.Program, batch []Mutation) (CreatedIds, []graph.FunctionId, error) {
	var created CreatedIds
	touched := make(map[graph.FunctionId]bool)

	for i, m := range batch {
		switch m.Kind {
		case InsertNode:
			id := graph.NodeId(len(p.Nodes))
			p.Nodes = append(p.Nodes, m.Node)
			created.Nodes = append(created.Nodes, id)
			touched[m.Node.Owner] = true
			p.SyncSemanticProjection(m.Node.Owner)

		case RemoveNode:
			n, ok := p.Node(m.TargetNode)
			if !ok {
				return created, nil, fmt.Errorf("mutation[%d]: RemoveNode references unknown node %d", i, m.TargetNode)
			}
			if err := removeNode(p, m.TargetNode); err != nil {
				return created, nil, fmt.Errorf("mutation[%d]: %w", i, err)
			}
			touched[n.Owner] = true
			p.SyncSemanticProjection(n.Owner)

		case ModifyNode:
			if _, ok := p.Node(m.TargetNode); !ok {
				return created, nil, fmt.Errorf("mutation[%d]: ModifyNode references unknown node %d", i, m.TargetNode)
			}
			owner := p.Nodes[m.TargetNode].Owner
			m.Node.Owner = owner
			p.Nodes[m.TargetNode] = m.Node
			touched[owner] = true

		case AddDataEdge:
			if _, ok := p.Node(m.DataEdge.Source); !ok {
				return created, nil, fmt.Errorf("mutation[%d]: AddDataEdge references unknown source node %d", i, m.DataEdge.Source)
			}
			if _, ok := p.Node(m.DataEdge.Target); !ok {
				return created, nil, fmt.Errorf("mutation[%d]: AddDataEdge references unknown target node %d", i, m.DataEdge.Target)
			}
			id := graph.EdgeId(len(p.DataEdges))
			p.DataEdges = append(p.DataEdges, m.DataEdge)
			created.DataEdges = append(created.DataEdges, id)
			srcOwner, _ := p.Node(m.DataEdge.Source)
			tgtOwner, _ := p.Node(m.DataEdge.Target)
			touched[srcOwner.Owner] = true
			touched[tgtOwner.Owner] = true

		case AddControlEdge:
			if _, ok := p.Node(m.CtrlEdge.Source); !ok {
				return created, nil, fmt.Errorf("mutation[%d]: AddControlEdge references unknown source node %d", i, m.CtrlEdge.Source)
			}
			if _, ok := p.Node(m.CtrlEdge.Target); !ok {
				return created, nil, fmt.Errorf("mutation[%d]: AddControlEdge references unknown target node %d", i, m.CtrlEdge.Target)
			}
			id := graph.EdgeId(len(p.CtrlEdges))
			p.CtrlEdges = append(p.CtrlEdges, m.CtrlEdge)
			created.CtrlEdges = append(created.CtrlEdges, id)
			srcOwner, _ := p.Node(m.CtrlEdge.Source)
			tgtOwner, _ := p.Node(m.CtrlEdge.Target)
			touched[srcOwner.Owner] = true
			touched[tgtOwner.Owner] = true

		case RemoveEdge:
			if m.RemoveIsControl {
				if !p.CtrlEdgeLive(m.RemoveEdgeId) {
					return created, nil, fmt.Errorf("mutation[%d]: RemoveEdge references unknown control edge %d", i, m.RemoveEdgeId)
				}
				e := p.CtrlEdges[m.RemoveEdgeId]
				markCtrlEdgeRemoved(p, m.RemoveEdgeId)
				srcOwner, _ := p.Node(e.Source)
				touched[srcOwner.Owner] = true
			} else {
				if !p.DataEdgeLive(m.RemoveEdgeId) {
					return created, nil, fmt.Errorf("mutation[%d]: RemoveEdge references unknown data edge %d", i, m.RemoveEdgeId)
				}
				e := p.DataEdges[m.RemoveEdgeId]
				markDataEdgeRemoved(p, m.RemoveEdgeId)
				srcOwner, _ := p.Node(e.Source)
				touched[srcOwner.Owner] = true
			}

		case AddFunction:
			id := graph.FunctionId(len(p.Functions))
			p.Functions = append(p.Functions, m.Function)
			created.Functions = append(created.Functions, id)
			touched[id] = true

		case AddModule:
			id := graph.ModuleId(len(p.Modules))
			p.Modules = append(p.Modules, m.Module)
			created.Modules = append(created.Modules, id)
			if m.Module.Parent != nil {
				if int(*m.Module.Parent) < len(p.Modules) {
					parent := p.Modules[*m.Module.Parent]
					parent.Children = append(parent.Children, id)
					p.Modules[*m.Module.Parent] = parent
				}
			}

		case AddType:
			id := p.Types.Define(m.Type)
			created.Types = append(created.Types, id)

		default:
			return created, nil, fmt.Errorf("mutation[%d]: unknown mutation kind %d", i, m.Kind)
		}
	}

	touchedList := make([]graph.FunctionId, 0, len(touched))
	for f := range touched {
		touchedList = append(touchedList, f)
	}
	return created, touchedList, nil
}

// removeNode tombstones a node and every edge incident to it, per
// invariant I2 (removing a function removes nodes; removing a node
// removes its incident edges) and I5 (indices stay stable).
func removeNode(p *graph.Program, id graph.NodeId) error {
	p.Nodes[id].Op = graph.OpInvalid
	markNodeRemoved(p, id)
	for i := range p.DataEdges {
		e := p.DataEdges[i]
		if e.Source == id || e.Target == id {
			markDataEdgeRemoved(p, graph.EdgeId(i))
		}
	}
	for i := range p.CtrlEdges {
		e := p.CtrlEdges[i]
		if e.Source == id || e.Target == id {
			markCtrlEdgeRemoved(p, graph.EdgeId(i))
		}
	}
	return nil
}

// The removed flags on graph.Node/DataEdge/ControlEdge are unexported
// (package graph owns tombstone bookkeeping); these helpers go through
// the small exported surface graph.Program offers for mutation staging.
func markNodeRemoved(p *graph.Program, id graph.NodeId)     { p.RemoveNode(id) }
func markDataEdgeRemoved(p *graph.Program, id graph.EdgeId) { p.RemoveDataEdge(id) }
func markCtrlEdgeRemoved(p *graph.Program, id graph.EdgeId) { p.RemoveCtrlEdge(id) }
