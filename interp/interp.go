package interp

import (
	"fmt"

	"github.com/snowdamiz/lmlang/graph"
)

// State is the interpreter's coarse execution state machine (spec.md
// §4.4): Ready -> Running -> (Paused | Completed | Error |
// ContractViolation).
type State int

const (
	Ready State = iota
	Running
	Paused
	Completed
	Errored
	ContractViolated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Completed:
		return "Completed"
	case Errored:
		return "Error"
	case ContractViolated:
		return "ContractViolation"
	default:
		return "Unknown"
	}
}

// Config mirrors spec.md's InterpreterConfig.
type Config struct {
	TraceEnabled      bool
	MaxRecursionDepth int
}

// DefaultConfig matches spec.md §4.4's default recursion bound.
func DefaultConfig() Config {
	return Config{MaxRecursionDepth: 256}
}

// TraceEntry records one node firing when tracing is enabled.
type TraceEntry struct {
	Node   graph.NodeId
	Op     graph.Op
	Inputs map[int]Value
	Output Value
}

// Interpreter runs one function invocation (and any nested calls it
// makes) to completion or to a trap/contract violation, over a fixed
// Program snapshot. lmlang's "single-threaded cooperative" model
// (spec.md §4.4) means Interpreter is not safe for concurrent use;
// callers wanting concurrent interpretation run one Interpreter per
// goroutine against independent Program clones.
type Interpreter struct {
	Program *graph.Program
	Config  Config
	IO      IO

	State State
	Trace []TraceEntry

	stack  []*Frame
	depths []int
	pause  bool

	Violation *ContractViolation
	Err       error
	Result    Value
}

// New creates an Interpreter over p. A nil io defaults to StdIO.
func New(p *graph.Program, cfg Config, io IO) *Interpreter {
	if io == nil {
		io = NewStdIO()
	}
	return &Interpreter{Program: p, Config: cfg, IO: io, State: Ready}
}

// Call runs fn to completion synchronously: evaluates Preconditions,
// pushes a frame, runs the work list, evaluates Postconditions, then
// returns the result value. Module-boundary Invariants are evaluated
// only by a Call node whose callee lives in another module, against
// the arguments before the callee runs; they are not evaluated on
// return, nor by this top-level entry. This is the entry point property_test and codegen's
// interpreter-parity tests use; Step/Run/Pause/Resume below expose the
// finer-grained cooperative machine for interactive callers.
func (it *Interpreter) Call(fn graph.FunctionId, args []Value) (Value, error) {
	it.State = Running
	v, err := it.callFunction(fn, args, nil, 0)
	if err != nil {
		switch err.(type) {
		case *ContractViolation:
			it.State = ContractViolated
			it.Violation = err.(*ContractViolation)
		default:
			it.State = Errored
			it.Err = err
		}
		return Value{}, err
	}
	it.State = Completed
	it.Result = v
	return v, nil
}

func (it *Interpreter) callFunction(fn graph.FunctionId, args, captures []Value, depth int) (Value, error) {
	if depth >= it.Config.MaxRecursionDepth {
		return Value{}, &Trap{Kind: RecursionLimitExceeded, Message: fmt.Sprintf("exceeded depth %d calling function %d", it.Config.MaxRecursionDepth, fn)}
	}

	if violation, err := evalContracts(it.Program, fn, graph.OpPrecondition, ContractPrecondition, args, captures, nil, nil); err != nil {
		return Value{}, err
	} else if violation != nil {
		return Value{}, violation
	}

	f := newFrame(it.Program, fn, args, captures)
	it.stack = append(it.stack, f)
	it.depths = append(it.depths, depth)
	defer func() {
		it.stack = it.stack[:len(it.stack)-1]
		it.depths = it.depths[:len(it.depths)-1]
	}()

	if err := it.runFrame(f); err != nil {
		return Value{}, err
	}
	if f.returnValue == nil {
		return Value{}, &Trap{Kind: MissingValue, Message: fmt.Sprintf("function %d completed without reaching a Return node", fn)}
	}
	ret := *f.returnValue

	bound := map[graph.NodeId]map[int]Value{}
	for _, id := range it.Program.NodesOf(fn) {
		if n, ok := it.Program.Node(id); ok && n.Op == graph.OpPostcondition {
			bound[id] = map[int]Value{1: ret}
		}
	}
	if violation, err := evalContracts(it.Program, fn, graph.OpPostcondition, ContractPostcondition, args, captures, bound, &ret); err != nil {
		return Value{}, err
	} else if violation != nil {
		return Value{}, violation
	}

	return ret, nil
}

func (it *Interpreter) currentDepth() int {
	if len(it.depths) == 0 {
		return 0
	}
	return it.depths[len(it.depths)-1]
}

func (it *Interpreter) callNamed(f *Frame, id graph.NodeId, n graph.Node, in map[int]Value) (Value, error) {
	args := orderedArgs(n, in)
	crossesBoundary := it.crossesModuleBoundary(f.Function, n.Payload.Target)
	if crossesBoundary {
		if violation, err := evalContracts(it.Program, n.Payload.Target, graph.OpInvariant, ContractInvariant, args, nil, nil, nil); err != nil {
			return Value{}, err
		} else if violation != nil {
			return Value{}, violation
		}
	}
	return it.callFunction(n.Payload.Target, args, nil, it.currentDepth()+1)
}

func (it *Interpreter) callIndirect(f *Frame, id graph.NodeId, in map[int]Value) (Value, error) {
	closure := in[0]
	if closure.Kind != VClosure && closure.Kind != VFunctionRef {
		return Value{}, &Trap{Kind: OutOfBoundsAccess, Node: id, Message: "indirect call target is not callable"}
	}
	var target graph.FunctionId
	var captures []Value
	if closure.Kind == VClosure {
		target, captures = closure.ClosureFn, closure.ClosureCaptures
	} else {
		target = closure.FunctionRef
	}
	args := make([]Value, 0, len(in)-1)
	for port := 1; ; port++ {
		v, ok := in[port]
		if !ok {
			break
		}
		args = append(args, v)
	}
	return it.callFunction(target, args, captures, it.currentDepth()+1)
}

func (it *Interpreter) crossesModuleBoundary(caller, callee graph.FunctionId) bool {
	cf, ok1 := it.Program.Function(caller)
	ee, ok2 := it.Program.Function(callee)
	if !ok1 || !ok2 {
		return false
	}
	return cf.Module != ee.Module
}

// Begin seeds the interpreter's stack with fn's frame and evaluates
// its Preconditions, leaving the interpreter Ready for Step/Run-driven
// execution. Returns a ContractViolation immediately if a Precondition
// fails before any node fires.
func (it *Interpreter) Begin(fn graph.FunctionId, args []Value) error {
	if violation, err := evalContracts(it.Program, fn, graph.OpPrecondition, ContractPrecondition, args, nil, nil, nil); err != nil {
		return err
	} else if violation != nil {
		it.State = ContractViolated
		it.Violation = violation
		return violation
	}
	f := newFrame(it.Program, fn, args, nil)
	it.stack = []*Frame{f}
	it.depths = []int{0}
	it.State = Ready
	return nil
}

// Pause requests a cooperative pause: the next Step transitions to
// Paused instead of firing another node.
func (it *Interpreter) Pause() { it.pause = true }

// Resume clears a pending pause request.
func (it *Interpreter) Resume() {
	it.pause = false
	if it.State == Paused {
		it.State = Running
	}
}

// Step fires at most one node of the top frame (spec.md §4.4's
// step()). A Call node's entire nested invocation (preconditions,
// callee body, postconditions) runs within the one Step that fires
// it, consistent with lmlang's single-threaded cooperative model
// having no separate suspended-call representation.
func (it *Interpreter) Step() {
	if it.State != Running && it.State != Ready {
		return
	}
	if it.pause {
		it.State = Paused
		return
	}
	it.State = Running
	if len(it.stack) == 0 {
		it.State = Completed
		return
	}
	f := it.stack[len(it.stack)-1]
	id, ok := f.nextReady(it.Program)
	if !ok {
		it.State = Completed
		return
	}
	if err := it.fire(f, id); err != nil {
		switch v := err.(type) {
		case *ContractViolation:
			it.State = ContractViolated
			it.Violation = v
		default:
			it.State = Errored
			it.Err = err
		}
		return
	}
	if f.returnValue != nil {
		it.Result = *f.returnValue
		it.State = Completed
	}
}

// Run iterates Step until state leaves Running (spec.md §4.4's run()).
func (it *Interpreter) Run() {
	for it.State == Running || it.State == Ready {
		it.Step()
		if it.State != Running {
			return
		}
	}
}
