// Package sandbox implements C2: a restricted execution environment for
// strategy source supplied by an external, untrusted author. Source is
// parsed, statically screened against an allow/deny policy, then compiled
// into an isolated VM exposing a callable the backtest engine invokes once
// per trading day.
package sandbox

// AllowedModules is the import allow-list. Anything not listed here —
// including every relative import — is rejected during static screening,
// before a single line of the candidate source runs.
var AllowedModules = map[string]bool{
	"math":      true,
	"statistics": true,
	"datetime":  true,
	"re":        true,
	"numpy":     true,
	"pandas":    true,
}

// DeniedNames is the set of free identifiers a strategy may never
// reference directly — the hooks that would otherwise let code reach
// outside its sandbox (dynamic import, file/process access, introspection
// of the runtime itself).
var DeniedNames = map[string]bool{
	"__import__":   true,
	"open":         true,
	"exec":         true,
	"eval":         true,
	"compile":      true,
	"input":        true,
	"globals":      true,
	"locals":       true,
	"vars":         true,
	"dir":          true,
	"help":         true,
	"getattr":      true,
	"setattr":      true,
	"delattr":      true,
	"__builtins__": true,
	// Lua-specific equivalents of the above reflective/host-escape surface.
	"os":           true,
	"io":           true,
	"dofile":       true,
	"loadfile":     true,
	"load":         true,
	"require":      true, // re-admitted selectively by the executor's import hook
	"rawget":       true,
	"rawset":       true,
	"rawequal":     true,
	"debug":        true,
	"getmetatable": true,
	"setmetatable": true,
	"_G":           true,
	"package":      true,
	"collectgarbage": true,
}

// DeniedAttributes is the attribute deny-list: names that, even on an
// otherwise reachable value, expose the host's reflective object model.
// Enforced at the AST level — see screen.go — because gopher-lua (like
// the reference embedded-VM family named in the design notes) retains a
// fully reflective object model that static screening must close off
// before execution, not police at runtime.
var DeniedAttributes = map[string]bool{
	"__class__":        true,
	"__subclasses__":   true,
	"__bases__":        true,
	"__mro__":          true,
	"__getattribute__": true,
	"__getattr__":      true,
	"__setattr__":      true,
	"__delattr__":      true,
	"__dict__":         true,
	"__globals__":      true,
	"__code__":         true,
	"__closure__":      true,
	"f_globals":        true,
	"f_locals":         true,
	"gi_frame":         true,
	"cr_frame":         true,
}
