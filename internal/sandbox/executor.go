package sandbox

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nitinkhare/btcstrategylab/internal/ledger"
	"github.com/nitinkhare/btcstrategylab/internal/pricetable"
)

var (
	runArity       = callableArity{name: "run", wantParams: 2}
	runOnDataArity = callableArity{name: "run_on_data", wantParams: 1}
)

// RuntimeError wraps a failure raised while invoking a compiled
// callable (as opposed to a failure screening or compiling source),
// carrying the Lua stack trace the caller's error category must surface.
type RuntimeError struct {
	Traceback string
}

func (e *RuntimeError) Error() string { return e.Traceback }

// Program is a compiled, validated strategy: a private *lua.LState plus
// its extracted callables. A Program is owned by a single backtest run
// and is never reused or shared across runs (§A.5, §A.9).
type Program struct {
	state      *lua.LState
	run        *lua.LFunction
	runOnData  *lua.LFunction
}

// Compile screens source, then loads it into a fresh sandboxed state and
// extracts run(df, holdings). run_on_data is extracted opportunistically
// (its absence is only an error when CompileForAnalysis requires it).
func Compile(source string) (*Program, error) {
	if err := Screen(source); err != nil {
		return nil, err
	}

	L := newRestrictedState()
	fn, err := L.LoadString(source)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("%w", err)
	}

	// Top-level definitions share a single globals table by construction
	// in gopher-lua (there is no separate locals scope at chunk level),
	// which is exactly the shared-namespace requirement that lets sibling
	// top-level functions see one another (§A.9).
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("module body raised an error: %w", err)
	}

	runFn, err := checkArity(L, runArity)
	if err != nil {
		L.Close()
		return nil, err
	}

	var runOnDataFn *lua.LFunction
	if v := L.GetGlobal(runOnDataArity.name); v != lua.LNil {
		runOnDataFn, err = checkArity(L, runOnDataArity)
		if err != nil {
			L.Close()
			return nil, err
		}
	}

	return &Program{state: L, run: runFn, runOnData: runOnDataFn}, nil
}

// CompileForAnalysis is Compile plus a hard requirement that run_on_data
// exists, for the ad-hoc analysis entry point (§A.4.2, Part D.1).
func CompileForAnalysis(source string) (*Program, error) {
	p, err := Compile(source)
	if err != nil {
		return nil, err
	}
	if p.runOnData == nil {
		p.Close()
		return nil, fmt.Errorf("run_on_data must exist, be callable, and accept exactly one parameter")
	}
	return p, nil
}

// Close releases the underlying Lua state. Callers must call this exactly
// once per Program.
func (p *Program) Close() {
	p.state.Close()
}

// RunDay invokes run(view, holdings) for a single trading day and returns
// the raw, structurally unvalidated orders it produced.
func (p *Program) RunDay(view []pricetable.Bar, holdings []ledger.HoldingSnapshot) ([]ledger.RawOrder, error) {
	L := p.state

	df := barsToLua(L, view)
	holdingsTbl := holdingsToLua(L, holdings)

	L.Push(p.run)
	L.Push(df)
	L.Push(holdingsTbl)
	if err := L.PCall(2, 1, nil); err != nil {
		return nil, &RuntimeError{Traceback: tracebackOf(err)}
	}
	ret := L.Get(-1)
	L.Pop(1)

	return ordersFromLua(ret)
}

// RunOnData invokes run_on_data(view) for the ad-hoc analysis entry
// point and returns its raw Lua return value for the caller to interpret.
func (p *Program) RunOnData(view []pricetable.Bar) (lua.LValue, error) {
	L := p.state
	df := barsToLua(L, view)

	L.Push(p.runOnData)
	L.Push(df)
	if err := L.PCall(1, 1, nil); err != nil {
		return nil, &RuntimeError{Traceback: tracebackOf(err)}
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

func tracebackOf(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.StackTrace != "" {
		return apiErr.StackTrace
	}
	return err.Error()
}
