// Package storage implements lmlang's Storage Abstraction (spec.md
// §4.10): a graph-semantic GraphStore trait with an in-memory backend
// for tests and a gorm/sqlite-backed persistent one, adapted from
// db/sqlite.go + models/models.go's gorm/glebarez-sqlite/datatypes.JSON
// stack.
package storage

import (
	"fmt"
	"time"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
)

// EditLogEntry is one persisted mutation-batch record, the durable
// counterpart of mutation.Record (minus the in-memory before/after
// Program pointers, which live only for the life of one process). The
// durable entry keeps metadata and per-function hashes only; nothing
// replays it, and a program is restored from its saved snapshot.
type EditLogEntry struct {
	Index       int
	Agent       string
	Timestamp   time.Time
	Description string
	PreHashes   map[graph.FunctionId]compile.Hash
	PostHashes  map[graph.FunctionId]compile.Hash
}

// AgentConfig is one agent's persisted identity/configuration
// (spec.md §6's "update_config"/agent lifecycle).
type AgentConfig struct {
	ID          string
	DisplayName string
	Settings    map[string]string
	CreatedAt   time.Time
}

// GraphStore is lmlang's storage trait: every operation is
// graph-semantic (programs, functions, nodes, edges, edit-log entries,
// checkpoints, agent configs), never SQL-semantic — callers never see
// a row or a query, only Program Graph concepts (spec.md §4.10).
type GraphStore interface {
	SaveProgram(p *graph.Program) error
	LoadProgram(name string) (*graph.Program, error)
	ListPrograms() ([]string, error)
	DeleteProgram(name string) error

	// Modules/Functions/Nodes/DataEdges/CtrlEdges expose the
	// loaded program's entity slices individually, for callers (e.g. a
	// read-only query surface) that want one layer of a program
	// without reconstructing a full graph.Program.
	Modules(name string) ([]graph.ModuleRow, error)
	Functions(name string) ([]graph.FunctionRow, error)
	Nodes(name string) ([]graph.NodeRow, error)
	DataEdges(name string) ([]graph.DataEdgeRow, error)
	CtrlEdges(name string) ([]graph.CtrlEdgeRow, error)

	AppendEditLogEntry(program string, entry EditLogEntry) error
	ListEditLog(program string) ([]EditLogEntry, error)

	SaveCheckpoint(program, checkpoint string, logIndex int) error
	ListCheckpoints(program string) (map[string]int, error)

	SaveAgentConfig(cfg AgentConfig) error
	LoadAgentConfig(id string) (AgentConfig, error)
	ListAgentConfigs() ([]AgentConfig, error)
	DeleteAgentConfig(id string) error
}

// ErrorKind names one of spec.md §7's StorageError variants.
type ErrorKind int

const (
	NotFound ErrorKind = iota
	CorruptState
	TransactionAborted
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case CorruptState:
		return "CorruptState"
	case TransactionAborted:
		return "TransactionAborted"
	default:
		return "UnknownStorageError"
	}
}

// Error is a structured storage failure.
type Error struct {
	Kind    ErrorKind
	Subject string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage: %s (%s): %v", e.Kind, e.Subject, e.Cause)
	}
	return fmt.Sprintf("storage: %s (%s)", e.Kind, e.Subject)
}

func (e *Error) Unwrap() error { return e.Cause }
