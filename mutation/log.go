package mutation

import (
	"fmt"
	"time"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
)

// Record is one committed edit-log entry. It carries a full snapshot
// of the program immediately before and after the batch, the way the
// teacher's TransactionLog keeps enough information (a file backup per
// operation) to fully reverse a committed change (core/transaction.go).
// lmlang mutates an in-memory graph rather than files on disk, so the
// "backup" here is a cloned graph.Program rather than a byte copy of a
// file.
type Record struct {
	Index       int
	Agent       string
	Timestamp   time.Time
	Description string
	PreHashes   map[graph.FunctionId]compile.Hash
	PostHashes  map[graph.FunctionId]compile.Hash

	before *graph.Program
	after  *graph.Program
}

// EditLog is the append-only history of committed mutation batches for
// one program, with a movable cursor supporting undo/redo and named
// checkpoints over log indices.
type EditLog struct {
	Records  []Record
	cursor   int // number of records currently "applied" (for undo/redo)
	Checkpoints map[string]int
}

// NewEditLog creates an empty log.
func NewEditLog() *EditLog {
	return &EditLog{Checkpoints: make(map[string]int)}
}

// Append records a newly committed batch, truncating any redo tail
// left over from a prior undo (a fresh commit after undo discards the
// branch that was undone, matching a conventional undo/redo stack).
func (l *EditLog) Append(rec Record) {
	rec.Index = len(l.Records)
	if l.cursor < len(l.Records) {
		l.Records = l.Records[:l.cursor]
	}
	l.Records = append(l.Records, rec)
	l.cursor = len(l.Records)
}

// Undo reverts the most recently applied record and returns the
// program snapshot to restore. Undo is atomic per log record: either
// the whole record's pre-state is restored, or (if nothing is left to
// undo) an error is returned and nothing changes.
func (l *EditLog) Undo() (*graph.Program, error) {
	if l.cursor == 0 {
		return nil, fmt.Errorf("mutation: nothing to undo")
	}
	rec := l.Records[l.cursor-1]
	l.cursor--
	return rec.before, nil
}

// Redo reapplies the record most recently undone.
func (l *EditLog) Redo() (*graph.Program, error) {
	if l.cursor >= len(l.Records) {
		return nil, fmt.Errorf("mutation: nothing to redo")
	}
	rec := l.Records[l.cursor]
	l.cursor++
	return rec.after, nil
}

// Checkpoint names the current log index for later reference.
func (l *EditLog) Checkpoint(name string) {
	l.Checkpoints[name] = l.cursor
}

// ListCheckpoints returns every named checkpoint and its log index.
func (l *EditLog) ListCheckpoints() map[string]int {
	out := make(map[string]int, len(l.Checkpoints))
	for k, v := range l.Checkpoints {
		out[k] = v
	}
	return out
}

// Diff returns the ordered slice of applied records between two log
// indices (exclusive of from, inclusive of to), the concrete behavior
// behind spec.md §6's "diff between two log indices".
func (l *EditLog) Diff(from, to int) ([]Record, error) {
	if from < 0 || to > len(l.Records) || from > to {
		return nil, fmt.Errorf("mutation: invalid log range [%d, %d)", from, to)
	}
	return append([]Record(nil), l.Records[from:to]...), nil
}
