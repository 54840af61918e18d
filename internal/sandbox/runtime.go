package sandbox

import (
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// newRestrictedState builds a fresh *lua.LState with only the safe base
// library subset open, every denied global stripped, a screening require
// hook installed, and the two pre-bound helper tables injected. A new
// state is built for every Compile call — none is ever reused across
// strategies (§A.9).
func newRestrictedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true, CallStackSize: 256})

	lua.OpenBase(L)
	lua.OpenMath(L)
	lua.OpenString(L)
	lua.OpenTable(L)

	for name := range DeniedNames {
		if name == "require" {
			continue // replaced below with a screening version, not just removed
		}
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("require", L.NewFunction(luaRequire))
	L.SetGlobal("np", buildNumericArrayTable(L))
	L.SetGlobal("pd", buildTabularTable(L))

	return L
}

// luaRequire implements the sandbox's only import surface. It re-screens
// the requested name against AllowedModules on every call, since a
// strategy could in principle construct the call dynamically at runtime
// even though static screening already rejects non-literal arguments.
func luaRequire(L *lua.LState) int {
	name := L.CheckString(1)
	if !AllowedModules[name] {
		L.RaiseError("import of disallowed module %q", name)
		return 0
	}
	switch name {
	case "math":
		L.Push(L.GetGlobal("math"))
	case "numpy":
		L.Push(L.GetGlobal("np"))
	case "pandas":
		L.Push(L.GetGlobal("pd"))
	default:
		// statistics, datetime, re: expose as empty tables today — no
		// strategy in the retrieved corpus exercises them beyond the
		// import statement itself, so only the allow-list membership is
		// load-bearing, not a populated implementation.
		L.Push(L.NewTable())
	}
	return 1
}

// buildNumericArrayTable is the "np" pre-bound helper: a small numeric
// reduction library over Lua number arrays, standing in for the numpy
// surface a strategy's historical-data math typically needs.
func buildNumericArrayTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "mean", L.NewFunction(func(L *lua.LState) int {
		vals := toFloatSlice(L.CheckTable(1))
		L.Push(lua.LNumber(mean(vals)))
		return 1
	}))
	L.SetField(t, "std", L.NewFunction(func(L *lua.LState) int {
		vals := toFloatSlice(L.CheckTable(1))
		L.Push(lua.LNumber(stddev(vals)))
		return 1
	}))
	L.SetField(t, "sum", L.NewFunction(func(L *lua.LState) int {
		vals := toFloatSlice(L.CheckTable(1))
		var s float64
		for _, v := range vals {
			s += v
		}
		L.Push(lua.LNumber(s))
		return 1
	}))
	L.SetField(t, "max", L.NewFunction(func(L *lua.LState) int {
		vals := toFloatSlice(L.CheckTable(1))
		if len(vals) == 0 {
			L.Push(lua.LNumber(math.NaN()))
			return 1
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		L.Push(lua.LNumber(m))
		return 1
	}))
	L.SetField(t, "min", L.NewFunction(func(L *lua.LState) int {
		vals := toFloatSlice(L.CheckTable(1))
		if len(vals) == 0 {
			L.Push(lua.LNumber(math.NaN()))
			return 1
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		L.Push(lua.LNumber(m))
		return 1
	}))
	return t
}

// buildTabularTable is the "pd" pre-bound helper: column extraction over
// the row-of-tables shape the engine hands a strategy as df/holdings.
func buildTabularTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "column", L.NewFunction(func(L *lua.LState) int {
		rows := L.CheckTable(1)
		key := L.CheckString(2)
		out := L.NewTable()
		rows.ForEach(func(_, row lua.LValue) {
			if rowTbl, ok := row.(*lua.LTable); ok {
				out.Append(rowTbl.RawGetString(key))
			}
		})
		L.Push(out)
		return 1
	}))
	L.SetField(t, "sort_by", L.NewFunction(func(L *lua.LState) int {
		rows := L.CheckTable(1)
		key := L.CheckString(2)
		var tbls []*lua.LTable
		rows.ForEach(func(_, row lua.LValue) {
			if rowTbl, ok := row.(*lua.LTable); ok {
				tbls = append(tbls, rowTbl)
			}
		})
		sort.SliceStable(tbls, func(i, j int) bool {
			return lua.LVAsNumber(tbls[i].RawGetString(key)) < lua.LVAsNumber(tbls[j].RawGetString(key))
		})
		out := L.NewTable()
		for _, row := range tbls {
			out.Append(row)
		}
		L.Push(out)
		return 1
	}))
	return t
}

func toFloatSlice(t *lua.LTable) []float64 {
	out := make([]float64, 0, t.Len())
	t.ForEach(func(_, v lua.LValue) {
		out = append(out, float64(lua.LVAsNumber(v)))
	})
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// callableArity describes the parameter-count requirement §A.4.2 enforces
// on run and run_on_data.
type callableArity struct {
	name       string
	wantParams int
}

func checkArity(L *lua.LState, want callableArity) (*lua.LFunction, error) {
	v := L.GetGlobal(want.name)
	fn, ok := v.(*lua.LFunction)
	if !ok || fn.IsG {
		return nil, fmt.Errorf("%s must be defined as a callable function", want.name)
	}
	proto := fn.Proto
	if proto == nil {
		return nil, fmt.Errorf("%s must be defined as a callable function", want.name)
	}
	if int(proto.NumParameters) != want.wantParams {
		return nil, fmt.Errorf("%s must accept exactly %d parameter(s), got %d",
			want.name, want.wantParams, proto.NumParameters)
	}
	return fn, nil
}
