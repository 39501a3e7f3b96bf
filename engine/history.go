package engine

import (
	"fmt"

	"github.com/snowdamiz/lmlang/mutation"
)

// History lists the in-session edit log for a loaded program — the
// live mutation.EditLog, which (unlike storage's durable
// EditLogEntry) still carries each record's before/after Program
// snapshots for Undo/Redo/Diff. A freshly loaded program (nothing
// mutated yet this process) has an empty log even if storage holds
// durable entries from a prior process; callers wanting the durable
// history across restarts use the storage-backed ListEditLog instead.
func (e *Engine) History(program string) ([]mutation.Record, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mutation.Record(nil), s.mut.Log.Records...), nil
}

// Undo reverts the most recently committed batch on program.
func (e *Engine) Undo(program string) error {
	s, err := e.sessionFor(program)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mut.Undo(); err != nil {
		return err
	}
	s.program = s.mut.Program
	if err := e.store.SaveProgram(s.program); err != nil {
		return fmt.Errorf("engine: persist undo: %w", err)
	}
	return nil
}

// Redo reapplies the most recently undone batch on program.
func (e *Engine) Redo(program string) error {
	s, err := e.sessionFor(program)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mut.Redo(); err != nil {
		return err
	}
	s.program = s.mut.Program
	if err := e.store.SaveProgram(s.program); err != nil {
		return fmt.Errorf("engine: persist redo: %w", err)
	}
	return nil
}

// Checkpoint names the current log index for later reference.
func (e *Engine) Checkpoint(program, name string) error {
	s, err := e.sessionFor(program)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mut.Log.Checkpoint(name)
	idx := s.mut.Log.Checkpoints[name]
	return e.store.SaveCheckpoint(program, name, idx)
}

// ListCheckpoints returns program's named checkpoints and their log
// indices.
func (e *Engine) ListCheckpoints(program string) (map[string]int, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mut.Log.ListCheckpoints(), nil
}

// Diff returns the ordered edit-log records committed between two log
// indices (exclusive of from, inclusive of to), per SPEC_FULL.md
// §4.13's checkpoint diff.
func (e *Engine) Diff(program string, from, to int) ([]mutation.Record, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mut.Log.Diff(from, to)
}
