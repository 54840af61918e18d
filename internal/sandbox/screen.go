package sandbox

import (
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// Screen parses source and walks the resulting AST once, rejecting the
// first policy violation it finds. Source that fails to parse (including
// empty input) is rejected with a syntax error rather than reaching the
// walker.
func Screen(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("source is empty")
	}

	chunk, err := parse.Parse(strings.NewReader(source), "strategy")
	if err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}

	w := &walker{}
	w.walkStmts(chunk)
	if w.err != nil {
		return w.err
	}
	return nil
}

type walker struct {
	err error
}

func (w *walker) fail(format string, args ...interface{}) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

func (w *walker) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		if w.err != nil {
			return
		}
		w.walkStmt(s)
	}
}

func (w *walker) walkStmt(stmt ast.Stmt) {
	if w.err != nil || stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		w.walkExprs(s.Lhs)
		w.walkExprs(s.Rhs)
	case *ast.LocalAssignStmt:
		w.walkExprs(s.Exprs)
	case *ast.FuncCallStmt:
		w.walkExpr(s.Expr)
	case *ast.DoBlockStmt:
		w.walkStmts(s.Stmts)
	case *ast.WhileStmt:
		w.walkExpr(s.Condition)
		w.walkStmts(s.Stmts)
	case *ast.RepeatStmt:
		w.walkExpr(s.Condition)
		w.walkStmts(s.Stmts)
	case *ast.IfStmt:
		w.walkExpr(s.Condition)
		w.walkStmts(s.Then)
		w.walkStmts(s.Else)
	case *ast.NumberForStmt:
		w.walkExpr(s.Init)
		w.walkExpr(s.Limit)
		w.walkExpr(s.Step)
		w.walkStmts(s.Stmts)
	case *ast.GenericForStmt:
		w.walkExprs(s.Exprs)
		w.walkStmts(s.Stmts)
	case *ast.FunctionStmt:
		w.walkFunctionExpr(s.Func)
	case *ast.LocalFunctionStmt:
		w.walkFunctionExpr(s.Func)
	case *ast.ReturnStmt:
		w.walkExprs(s.Exprs)
	}
}

func (w *walker) walkExprs(exprs []ast.Expr) {
	for _, e := range exprs {
		if w.err != nil {
			return
		}
		w.walkExpr(e)
	}
}

func (w *walker) walkExpr(expr ast.Expr) {
	if w.err != nil || expr == nil {
		return
	}
	switch e := expr.(type) {
	case *ast.IdentExpr:
		if DeniedNames[e.Value] {
			w.fail("use of disallowed name %q", e.Value)
		}
	case *ast.AttrGetExpr:
		if key, ok := e.Key.(*ast.StringExpr); ok && DeniedAttributes[key.Value] {
			w.fail("use of disallowed attribute %q", key.Value)
		}
		w.walkExpr(e.Object)
		w.walkExpr(e.Key)
	case *ast.FunctionCallExpr:
		w.checkCall(e)
		// checkCall has already screened a require(...) call; walking its
		// Func would reject the bare "require" identifier as a denied name.
		if ident, ok := e.Func.(*ast.IdentExpr); !ok || ident.Value != "require" {
			w.walkExpr(e.Func)
		}
		w.walkExpr(e.Receiver)
		w.walkExprs(e.Args)
	case *ast.FunctionExpr:
		w.walkFunctionExpr(e)
	case *ast.LogicalOpExpr:
		w.walkExpr(e.Lhs)
		w.walkExpr(e.Rhs)
	case *ast.RelationalOpExpr:
		w.walkExpr(e.Lhs)
		w.walkExpr(e.Rhs)
	case *ast.StringConcatOpExpr:
		w.walkExpr(e.Lhs)
		w.walkExpr(e.Rhs)
	case *ast.ArithmeticOpExpr:
		w.walkExpr(e.Lhs)
		w.walkExpr(e.Rhs)
	case *ast.UnaryMinusOpExpr:
		w.walkExpr(e.Expr)
	case *ast.UnaryNotOpExpr:
		w.walkExpr(e.Expr)
	case *ast.UnaryLenOpExpr:
		w.walkExpr(e.Expr)
	case *ast.TableExpr:
		for _, f := range e.Fields {
			w.walkExpr(f.Key)
			w.walkExpr(f.Value)
		}
	}
}

func (w *walker) walkFunctionExpr(fn *ast.FunctionExpr) {
	if fn == nil {
		return
	}
	w.walkStmts(fn.Stmts)
}

// checkCall flags require(...) calls whose argument is not a literal
// string naming an allowed module, and direct calls to denied names that
// the identifier check above wouldn't otherwise catch through Func.
func (w *walker) checkCall(call *ast.FunctionCallExpr) {
	ident, ok := call.Func.(*ast.IdentExpr)
	if !ok {
		return
	}
	if ident.Value != "require" {
		return
	}
	if len(call.Args) != 1 {
		w.fail("require() must take exactly one literal string argument")
		return
	}
	lit, ok := call.Args[0].(*ast.StringExpr)
	if !ok {
		w.fail("require() argument must be a literal string, dynamic imports are disallowed")
		return
	}
	name := lit.Value
	if strings.HasPrefix(name, ".") {
		w.fail("relative imports are disallowed: %q", name)
		return
	}
	if !AllowedModules[name] {
		w.fail("import of disallowed module %q", name)
	}
}
