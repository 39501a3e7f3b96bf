package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/types"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProgram(name string) *graph.Program {
	p := graph.NewProgram(name)
	fn := graph.FunctionId(len(p.Functions))
	p.Functions = append(p.Functions, graph.Function{
		Name: "add", Module: 0,
		Params: []graph.Param{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}},
		Return: types.I32,
	})
	a := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpParameter, Owner: fn, Payload: graph.NodePayload{Index: 0}})
	b := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpParameter, Owner: fn, Payload: graph.NodePayload{Index: 1}})
	sum := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpAdd, Owner: fn})
	ret := graph.NodeId(len(p.Nodes))
	p.Nodes = append(p.Nodes, graph.Node{Op: graph.OpReturn, Owner: fn})
	p.DataEdges = append(p.DataEdges,
		graph.DataEdge{Source: a, Target: sum, TargetPort: 0, ValueType: types.I32},
		graph.DataEdge{Source: b, Target: sum, TargetPort: 1, ValueType: types.I32},
		graph.DataEdge{Source: sum, Target: ret, TargetPort: 0, ValueType: types.I32},
	)
	return p
}

func TestSaveLoadProgramRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := sampleProgram("roundtrip")

	require.NoError(t, s.SaveProgram(p))

	loaded, err := s.LoadProgram("roundtrip")
	require.NoError(t, err)

	assert.Equal(t, p.Name, loaded.Name)
	assert.Equal(t, len(p.Nodes), len(loaded.Nodes))
	assert.Equal(t, len(p.DataEdges), len(loaded.DataEdges))
	assert.Equal(t, len(p.Functions), len(loaded.Functions))
	assert.Equal(t, p.Types.Count(), loaded.Types.Count())

	origHash := compile.HashFunctionForCompilation(p, 0)
	loadedHash := compile.HashFunctionForCompilation(loaded, 0)
	assert.Equal(t, origHash, loadedHash, "hash must survive a save/load round trip unchanged")
}

func TestLoadProgramNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadProgram("nope")
	require.Error(t, err)
	se, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, NotFound, se.Kind)
}

func TestListAndDeletePrograms(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveProgram(sampleProgram("a")))
	require.NoError(t, s.SaveProgram(sampleProgram("b")))

	names, err := s.ListPrograms()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, s.DeleteProgram("a"))
	names, err = s.ListPrograms()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)

	err = s.DeleteProgram("a")
	require.Error(t, err)
}

func TestEditLogRoundTrip(t *testing.T) {
	s := openTestStore(t)
	entry := EditLogEntry{
		Agent:       "agent-1",
		Timestamp:   time.Now().Truncate(time.Second),
		Description: "2 mutation(s) across 1 kind(s)",
		PreHashes:   map[graph.FunctionId]compile.Hash{0: {1, 2, 3}},
		PostHashes:  map[graph.FunctionId]compile.Hash{0: {4, 5, 6}},
	}
	require.NoError(t, s.AppendEditLogEntry("p", entry))

	entries, err := s.ListEditLog("p")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.Agent, entries[0].Agent)
	assert.Equal(t, entry.PreHashes[0], entries[0].PreHashes[0])
	assert.Equal(t, entry.PostHashes[0], entries[0].PostHashes[0])
}

func TestCheckpointsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveCheckpoint("p", "before-refactor", 3))
	require.NoError(t, s.SaveCheckpoint("p", "after-refactor", 7))

	cps, err := s.ListCheckpoints("p")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"before-refactor": 3, "after-refactor": 7}, cps)
}

func TestAgentConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	cfg := AgentConfig{ID: "agent-1", DisplayName: "Refactor Bot", Settings: map[string]string{"max_depth": "8"}}
	require.NoError(t, s.SaveAgentConfig(cfg))

	loaded, err := s.LoadAgentConfig("agent-1")
	require.NoError(t, err)
	assert.Equal(t, cfg.DisplayName, loaded.DisplayName)
	assert.Equal(t, cfg.Settings, loaded.Settings)

	all, err := s.ListAgentConfigs()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.DeleteAgentConfig("agent-1"))
	_, err = s.LoadAgentConfig("agent-1")
	require.Error(t, err)
}
