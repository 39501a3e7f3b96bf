package engine

import (
	"go.uber.org/zap"

	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/interp"
)

// SimulateResult mirrors spec.md §6's simulate() response shape: the
// interpreter's terminal state, the returned value on success, an
// optional trace, and whichever one of trap/contract-violation ended
// the run (never both — they are distinct outcomes per spec.md §7).
type SimulateResult struct {
	State             interp.State
	Result            interp.Value
	Trace             []interp.TraceEntry
	Trap              *interp.Trap
	ContractViolation *interp.ContractViolation
	Err               error
}

// Simulate runs fn to completion against a fresh Interpreter over
// program's current graph, with tracing enabled if traceEnabled is
// true or Config.TraceByDefault otherwise. Each call gets its own
// Interpreter instance — the engine never reuses interpreter state
// across simulate calls, consistent with interp.Interpreter's
// single-invocation, not-safe-for-concurrent-reuse contract.
func (e *Engine) Simulate(program string, fn graph.FunctionId, inputs []interp.Value, traceEnabled bool) (SimulateResult, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return SimulateResult{}, err
	}
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()

	cfg := interp.Config{
		MaxRecursionDepth: e.cfg.MaxRecursionDepth,
		TraceEnabled:      traceEnabled || e.cfg.TraceByDefault,
	}
	it := interp.New(p, cfg, nil)
	result, callErr := it.Call(fn, inputs)

	out := SimulateResult{State: it.State, Result: result, Trace: it.Trace}
	if callErr != nil {
		switch v := callErr.(type) {
		case *interp.ContractViolation:
			out.ContractViolation = v
		case *interp.Trap:
			out.Trap = v
		default:
			out.Err = v
		}
		e.log.Info("simulate ended abnormally",
			zap.String("program", program),
			zap.String("state", it.State.String()))
	}
	return out, nil
}
