// Package isrcheck defines an analyzer for functions that run in interrupt
// context.
//
// A function is marked with a //tasker:isr line in its doc comment. Inside
// such a function the analyzer reports calls into fmt, log and log/slog,
// allocation through make, new and append, go statements, channel
// operations, select statements and calls to any function named Sleep.
//
// Marked functions may only be invoked by the interrupt machinery, so a
// direct call from an unmarked function outside of a test file is reported
// as well. Taking a marked function as a value, to install it as a
// handler, is allowed.
package isrcheck

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

const Pragma = "//tasker:isr"

var Analyzer = &analysis.Analyzer{
	Name:      "isrcheck",
	Doc:       "check that interrupt handlers do not log, allocate or block",
	Requires:  []*analysis.Analyzer{inspect.Analyzer},
	Run:       run,
	FactTypes: []analysis.Fact{new(isrFact)},
}

// isrFact marks a function as an interrupt handler.
type isrFact struct{}

func (*isrFact) AFact() {}

func (*isrFact) String() string { return "isr" }

var loggingPackages = map[string]bool{
	"fmt":      true,
	"log":      true,
	"log/slog": true,
}

var allocatingBuiltins = map[string]bool{
	"make":   true,
	"new":    true,
	"append": true,
}

func run(pass *analysis.Pass) (any, error) {
	in := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	// Export facts first so calls within this package resolve regardless
	// of declaration order.
	handlers := map[*ast.FuncDecl]bool{}
	in.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		decl := n.(*ast.FuncDecl)
		if !hasPragma(decl.Doc) {
			return
		}
		if fn, ok := pass.TypesInfo.Defs[decl.Name].(*types.Func); ok {
			pass.ExportObjectFact(fn, &isrFact{})
			handlers[decl] = true
		}
	})

	in.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		decl := n.(*ast.FuncDecl)
		if decl.Body == nil {
			return
		}
		if handlers[decl] {
			checkHandler(pass, decl.Body)
		} else if !isTestFile(pass, decl) {
			checkCallers(pass, decl.Body)
		}
	})

	return nil, nil
}

func hasPragma(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, comment := range doc.List {
		if strings.TrimSpace(comment.Text) == Pragma {
			return true
		}
	}
	return false
}

func isTestFile(pass *analysis.Pass, n ast.Node) bool {
	return strings.HasSuffix(pass.Fset.File(n.Pos()).Name(), "_test.go")
}

func checkHandler(pass *analysis.Pass, body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.GoStmt:
			pass.Reportf(n.Pos(), "go statement in interrupt handler")
		case *ast.SendStmt:
			pass.Reportf(n.Pos(), "channel send in interrupt handler")
		case *ast.UnaryExpr:
			if n.Op == token.ARROW {
				pass.Reportf(n.Pos(), "channel receive in interrupt handler")
			}
		case *ast.SelectStmt:
			pass.Reportf(n.Pos(), "select statement in interrupt handler")
		case *ast.CallExpr:
			checkHandlerCall(pass, n)
		}
		return true
	})
}

func checkHandlerCall(pass *analysis.Pass, call *ast.CallExpr) {
	switch callee := typeutil.Callee(pass.TypesInfo, call).(type) {
	case *types.Builtin:
		if allocatingBuiltins[callee.Name()] {
			pass.Reportf(call.Pos(), "allocation with %s in interrupt handler", callee.Name())
		}
	case *types.Func:
		if callee.Pkg() == nil {
			return
		}
		if loggingPackages[callee.Pkg().Path()] {
			pass.Reportf(call.Pos(), "call to %s.%s in interrupt handler", callee.Pkg().Path(), callee.Name())
		} else if callee.Name() == "Sleep" {
			pass.Reportf(call.Pos(), "blocking call to %s.%s in interrupt handler", callee.Pkg().Name(), callee.Name())
		}
	}
}

func checkCallers(pass *analysis.Pass, body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok {
			return true
		}
		if pass.ImportObjectFact(fn.Origin(), new(isrFact)) {
			pass.Reportf(call.Pos(), "direct call to interrupt handler %s", fn.Name())
		}
		return true
	})
}
