// Package propcheck implements lmlang's Property Test Harness: running
// a function's preconditions/postconditions against boundary-weighted
// and seeded inputs to find counterexamples (spec.md §4.6).
package propcheck

import (
	"github.com/snowdamiz/lmlang/graph"
	"github.com/snowdamiz/lmlang/interp"
	"github.com/snowdamiz/lmlang/types"
)

// Config mirrors spec.md's PropertyTestConfig.
type Config struct {
	Function      graph.FunctionId
	Seeds         [][]interp.Value
	Iterations    uint32
	RandomSeed    uint64
	TraceFailures bool
}

// Failure is one counterexample: the generated input vector and the
// violation or trap the Call raised.
type Failure struct {
	Inputs    []interp.Value
	Violation *interp.ContractViolation
	Trap      *interp.Trap
	Err       error
	Trace     []interp.TraceEntry
}

// Report is property_test's result (spec.md §4.6): how many cases ran,
// and every failure found, in the order they were generated — which is
// itself part of the reproducibility contract, since two runs with the
// same function hash, random_seed and iterations must produce
// bit-identical generated inputs and an identical failure ordering.
type Report struct {
	Ran      int
	Failures []Failure
}

// Run executes cfg.Seeds first (in order), then cfg.Iterations
// additional generated input vectors drawn from a PRNG seeded
// deterministically from cfg.RandomSeed, against cfg.Function's
// parameter types. Every Call runs on an interpreter created with a nil
// IO, so interp's default standard-IO backend serves ReadLine and
// Print; Run has no option to supply another IO.
func Run(p *graph.Program, cfg Config) (Report, error) {
	fn, ok := p.Function(cfg.Function)
	if !ok {
		return Report{}, &UnknownFunctionError{Function: cfg.Function}
	}
	paramTypes := make([]types.Id, len(fn.Params))
	for i, param := range fn.Params {
		paramTypes[i] = param.Type
	}

	gen := newGenerator(p.Types, cfg.RandomSeed)

	var report Report
	runOne := func(inputs []interp.Value) {
		report.Ran++
		it := interp.New(p, interp.DefaultConfig(), nil)
		it.Config.TraceEnabled = cfg.TraceFailures
		_, err := it.Call(cfg.Function, inputs)
		if err == nil {
			return
		}
		f := Failure{Inputs: inputs}
		switch v := err.(type) {
		case *interp.ContractViolation:
			f.Violation = v
		case *interp.Trap:
			f.Trap = v
		default:
			f.Err = err
		}
		if cfg.TraceFailures {
			f.Trace = append([]interp.TraceEntry(nil), it.Trace...)
		}
		report.Failures = append(report.Failures, f)
	}

	for _, seed := range cfg.Seeds {
		runOne(seed)
	}
	for i := uint32(0); i < cfg.Iterations; i++ {
		runOne(gen.vector(paramTypes))
	}
	return report, nil
}

// UnknownFunctionError reports a property_test request against a
// FunctionId the program does not define.
type UnknownFunctionError struct {
	Function graph.FunctionId
}

func (e *UnknownFunctionError) Error() string {
	return "propcheck: unknown function"
}
