package mutation

import (
	"fmt"
	"time"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/concurrency"
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/typecheck"
)

// Engine owns the live Program for one session and runs every batch of
// Mutations through the propose -> validate -> commit protocol of
// spec.md §4.2, in the same spirit as the teacher's TransactionLog
// wrapping every file edit in begin/commit/rollback (core/transaction.go),
// adapted here to an in-memory graph with a type checker standing in
// for the teacher's syntax validation step.
type Engine struct {
	Program *graph.Program
	Locks   *concurrency.Manager
	Log     *EditLog
}

// New wires an Engine around an existing program, a Concurrency
// Manager (locks are checked before any mutation is staged), and a
// fresh edit log.
func New(p *graph.Program, locks *concurrency.Manager) *Engine {
	return &Engine{Program: p, Locks: locks, Log: NewEditLog()}
}

// Result is what ApplyMutations returns regardless of dry_run: the ids
// minted while staging, plus any type errors the staged batch produced.
type Result struct {
	Created    CreatedIds
	TypeErrors []typecheck.Error
	Committed  bool
	PreHashes  map[graph.FunctionId]compile.Hash
	PostHashes map[graph.FunctionId]compile.Hash
}

// InvalidBatchError wraps a structurally malformed mutation (dangling
// id reference, unknown Kind) — distinct from a TypeError, which is a
// well-formed edit that the type checker rejects.
type InvalidBatchError struct {
	Reason string
}

func (e *InvalidBatchError) Error() string { return "mutation: invalid batch: " + e.Reason }

// ApplyMutations runs the six-step protocol:
//  1. Stage            — the batch is applied to a clone of the live program.
//  2. Lock check       — agent must hold a write lock on every function the batch touches
//                        (skipped when opts.AgentId is empty or the engine has no lock manager).
//  3. Optimistic check — opts.ExpectedHash, if set, must match the function's current hash.
//  4. Local type check — every live data edge of every touched function is checked; errors accumulate, none short-circuit.
//  5. Dry run          — if opts.DryRun or any type error was found, return without committing.
//  6. Commit           — swap the live program in, append an edit-log record with pre/post hashes.
func (e *Engine) ApplyMutations(batch []Mutation, opts Options) (Result, error) {
	if len(batch) == 0 {
		return Result{}, &InvalidBatchError{Reason: "empty batch"}
	}

	staged := e.Program.Clone()
	created, touched, err := stage(staged, batch)
	if err != nil {
		return Result{}, &InvalidBatchError{Reason: err.Error()}
	}

	agent := concurrency.AgentId(opts.AgentId)
	if e.Locks != nil && opts.AgentId != "" {
		for _, fn := range touched {
			if !e.Locks.Holds(agent, fn, concurrency.Write) {
				return Result{}, &concurrency.LockRequiredError{Function: fn, Agent: agent, Needed: concurrency.Write}
			}
		}
	}

	preHashes := make(map[graph.FunctionId]compile.Hash, len(touched))
	for _, fn := range touched {
		preHashes[fn] = compile.HashFunctionForCompilation(e.Program, fn)
		if want, ok := opts.ExpectedHash[fn]; ok && want != preHashes[fn] {
			return Result{}, &ConflictDetectedError{Function: fn, Expected: want, Actual: preHashes[fn]}
		}
	}

	checker := typecheck.New(staged)
	var typeErrs []typecheck.Error
	for _, fn := range touched {
		for _, eid := range staged.DataEdgesTouching(fn) {
			if !staged.DataEdgeLive(eid) {
				continue
			}
			typeErrs = append(typeErrs, checker.CheckEdge(eid)...)
		}
	}

	result := Result{Created: created, TypeErrors: typeErrs, PreHashes: preHashes}
	if opts.DryRun || len(typeErrs) > 0 {
		return result, nil
	}

	postHashes := make(map[graph.FunctionId]compile.Hash, len(touched))
	for _, fn := range touched {
		postHashes[fn] = compile.HashFunctionForCompilation(staged, fn)
	}

	rec := Record{
		Agent:       opts.AgentId,
		Timestamp:   time.Now(),
		Description: describeBatch(batch),
		PreHashes:   preHashes,
		PostHashes:  postHashes,
		before:      e.Program,
		after:       staged,
	}
	e.Log.Append(rec)
	e.Program = staged

	result.Committed = true
	result.PostHashes = postHashes
	return result, nil
}

// Undo reverts the most recently committed batch.
func (e *Engine) Undo() error {
	p, err := e.Log.Undo()
	if err != nil {
		return err
	}
	e.Program = p
	return nil
}

// Redo reapplies the most recently undone batch.
func (e *Engine) Redo() error {
	p, err := e.Log.Redo()
	if err != nil {
		return err
	}
	e.Program = p
	return nil
}

// ConflictDetectedError reports an optimistic-precondition mismatch:
// the function changed between the caller reading its hash and the
// mutation attempt committing (spec.md §4.2 step 2, §7).
type ConflictDetectedError struct {
	Function graph.FunctionId
	Expected compile.Hash
	Actual   compile.Hash
}

func (e *ConflictDetectedError) Error() string {
	return fmt.Sprintf("mutation: conflict on function %d: expected hash %s, actual %s",
		e.Function, e.Expected.String(), e.Actual.String())
}

func describeBatch(batch []Mutation) string {
	counts := make(map[Kind]int)
	for _, m := range batch {
		counts[m.Kind]++
	}
	return fmt.Sprintf("%d mutation(s) across %d kind(s)", len(batch), len(counts))
}
