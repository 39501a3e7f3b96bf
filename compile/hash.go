// Package compile implements lmlang's Incremental Compilation Engine:
// content-addressed per-function hashing that excludes contract nodes
// (spec.md §4.7, invariants I6 and testable property 3/4), reverse
// call-graph dirty propagation, and per-function object caching.
package compile

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/zeebo/blake3"
)

// Hash is a BLAKE3 digest identifying a function's compilation-relevant
// content. Spec.md §4.7 names BLAKE3 explicitly.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Zero reports whether h is the zero hash (no prior compile record).
func (h Hash) Zero() bool { return h == Hash{} }

// MarshalJSON/UnmarshalJSON encode a Hash as its hex string rather
// than a 32-element JSON number array, so storage's JSON columns and
// any external API surface read a Hash the same way String() prints
// it.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(h[:], decoded)
	return nil
}

// HashFunctionForCompilation computes hash_function_for_compilation(f):
// a hash over every non-contract node owned by f (sorted by NodeId)
// and every edge touching f's nodes that does not terminate at a
// contract node (sorted by source/target/port). Contract nodes and
// edges into them are excluded by construction, which is what makes
// adding/removing/modifying a contract never dirty a function
// (invariant I6, testable property 4).
func HashFunctionForCompilation(p *graph.Program, fn graph.FunctionId) Hash {
	h := blake3.New()

	nodeIds := p.NodesOf(fn)
	sort.Slice(nodeIds, func(i, j int) bool { return nodeIds[i] < nodeIds[j] })

	contract := make(map[graph.NodeId]bool, len(nodeIds))
	for _, id := range nodeIds {
		n, _ := p.Node(id)
		if n.Op.IsContract() {
			contract[id] = true
		}
	}

	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	for _, id := range nodeIds {
		if contract[id] {
			continue
		}
		n, _ := p.Node(id)
		writeU64(uint64(id))
		writeU64(uint64(n.Op))
		writeU64(uint64(n.Owner))
		hashPayload(h, n.Payload)
	}

	type edgeKey struct {
		source, target graph.NodeId
		sport, tport   int
		isCtrl         bool
	}
	var keys []edgeKey
	dataByKey := map[edgeKey]graph.DataEdge{}
	ctrlByKey := map[edgeKey]graph.ControlEdge{}

	for _, eid := range p.DataEdgesTouching(fn) {
		e := indexDataEdge(p, eid)
		if contract[e.Target] {
			continue
		}
		k := edgeKey{e.Source, e.Target, e.SourcePort, e.TargetPort, false}
		keys = append(keys, k)
		dataByKey[k] = e
	}
	for _, eid := range p.CtrlEdgesTouching(fn) {
		e := indexCtrlEdge(p, eid)
		if contract[e.Target] {
			continue
		}
		k := edgeKey{e.Source, e.Target, e.BranchIndex, -1, true}
		keys = append(keys, k)
		ctrlByKey[k] = e
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.source != b.source {
			return a.source < b.source
		}
		if a.target != b.target {
			return a.target < b.target
		}
		if a.sport != b.sport {
			return a.sport < b.sport
		}
		return a.tport < b.tport
	})

	for _, k := range keys {
		writeU64(uint64(k.source))
		writeU64(uint64(k.target))
		if k.isCtrl {
			e := ctrlByKey[k]
			writeU64(1)
			writeU64(uint64(e.BranchIndex))
		} else {
			e := dataByKey[k]
			writeU64(0)
			writeU64(uint64(e.SourcePort))
			writeU64(uint64(e.TargetPort))
			writeU64(uint64(e.ValueType))
		}
	}

	var out Hash
	h.Sum(out[:0])
	return out
}

func hashPayload(h *blake3.Hasher, p graph.NodePayload) {
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeU64(boolToU64(p.ConstBool))
	writeU64(uint64(p.ConstInt))
	writeU64(uint64(math.Float32bits(p.ConstF32)))
	writeU64(math.Float64bits(p.ConstF64))
	writeU64(uint64(p.TypeArg))
	writeU64(uint64(p.Index))
	writeU64(uint64(p.Target))
	h.Write([]byte(p.FieldName))
	h.Write([]byte(p.VariantName))
	writeU64(uint64(p.Variant))
	h.Write([]byte(p.Message))
	for _, c := range p.Captures {
		writeU64(uint64(c))
	}
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// indexDataEdge/indexCtrlEdge fetch an edge by its EdgeId (index into
// the program's flat slice). Exported program fields make this a
// direct index; kept as helpers so the hash computation above reads
// declaratively.
func indexDataEdge(p *graph.Program, id graph.EdgeId) graph.DataEdge { return p.DataEdges[id] }
func indexCtrlEdge(p *graph.Program, id graph.EdgeId) graph.ControlEdge { return p.CtrlEdges[id] }
