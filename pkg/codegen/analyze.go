package codegen

import (
	"fmt"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/flow"
	"github.com/xplshn/phpgen/pkg/util"
)

// Analyze runs flow analysis over node, updating info in place, and records
// the statement's classification for FallThrough.
func (ctx *Context) Analyze(node *ast.Node, info *flow.Info) (Term, error) {
	t, err := ctx.analyzeStmt(node, info)
	if err != nil {
		return t, err
	}
	ctx.terms[node] = t
	return t, nil
}

func (ctx *Context) analyzeStmt(node *ast.Node, info *flow.Info) (Term, error) {
	switch node.Type {
	case ast.Text, ast.Null:
		return Continues, nil

	case ast.Echo:
		for _, e := range node.Data.(ast.EchoNode).Exprs {
			if err := e.Analyze(info); err != nil {
				return Continues, err
			}
		}
		return Continues, nil

	case ast.ExprStmt:
		return Continues, node.Data.(ast.ExprStmtNode).Expr.Analyze(info)

	case ast.Return:
		if e := node.Data.(ast.ReturnNode).Expr; e != nil {
			if err := e.Analyze(info); err != nil {
				return Terminates, err
			}
		}
		return Terminates, nil

	case ast.ReturnRef:
		e := node.Data.(ast.ReturnRefNode).Expr
		if lv, ok := e.(ast.Assignable); ok {
			return Terminates, lv.AnalyzeRef(info)
		}
		return Terminates, e.Analyze(info)

	case ast.Throw:
		return Terminates, node.Data.(ast.ThrowNode).Expr.Analyze(info)

	case ast.FuncDef:
		ctx.declareFunction(node.Data.(ast.FuncDefNode).Func)
		return Continues, nil

	case ast.ClassDef:
		ctx.declareClass(node.Data.(ast.ClassDefNode).Class)
		return Continues, nil

	case ast.Block:
		return ctx.analyzeBlock(node.Data.(ast.BlockNode).Stmts, info)

	case ast.If:
		return ctx.analyzeIf(node.Data.(ast.IfNode), info)

	case ast.While, ast.DoWhile, ast.For, ast.Foreach:
		return ctx.analyzeLoop(node, info)

	case ast.Switch:
		return ctx.analyzeSwitch(node, info)

	case ast.Break:
		d := node.Data.(ast.BreakNode)
		return ctx.analyzeJump(node, d.Level, d.LevelExpr, false, info)

	case ast.Continue:
		d := node.Data.(ast.ContinueNode)
		return ctx.analyzeJump(node, d.Level, d.LevelExpr, true, info)

	case ast.Try:
		return ctx.analyzeTry(node.Data.(ast.TryNode), info)

	case ast.Global:
		v := node.Data.(ast.GlobalNode).Var
		info.BindGlobal(v.Name())
		return Continues, v.AnalyzeRef(info)

	case ast.VarGlobal:
		if err := node.Data.(ast.VarGlobalNode).Name.Analyze(info); err != nil {
			return Continues, err
		}
		info.UseSymbolTable()
		return Continues, nil

	case ast.Static:
		return ctx.analyzeStatic(node, info)

	default:
		panic(fmt.Sprintf("codegen: unhandled statement type %v", node.Type))
	}
}

// analyzeBlock stops at the first statement that cannot fall through; what
// follows is never generated.
func (ctx *Context) analyzeBlock(stmts []*ast.Node, info *flow.Info) (Term, error) {
	for i, stmt := range stmts {
		t, err := ctx.Analyze(stmt, info)
		if err != nil {
			return t, err
		}
		if t != Continues {
			for _, dead := range stmts[i+1:] {
				if dead.Type != ast.Null {
					ctx.warn(config.WarnUnreachableCode, dead.Tok, "unreachable code after %v", stmt.Type)
					break
				}
			}
			return t, nil
		}
	}
	return Continues, nil
}

func (ctx *Context) analyzeIf(d ast.IfNode, info *flow.Info) (Term, error) {
	if err := d.Cond.Analyze(info); err != nil {
		return Continues, err
	}

	thenInfo := info.Copy()
	thenTerm, err := ctx.Analyze(d.Then, thenInfo)
	if err != nil {
		return thenTerm, err
	}
	if d.Else == nil {
		info.Merge(thenInfo)
		return Continues, nil
	}

	elseInfo := info.Copy()
	elseTerm, err := ctx.Analyze(d.Else, elseInfo)
	if err != nil {
		return elseTerm, err
	}
	info.Assume(thenInfo)
	info.Merge(elseInfo)
	return min(thenTerm, elseTerm), nil
}

func (ctx *Context) analyzeStatic(node *ast.Node, info *flow.Info) (Term, error) {
	d := node.Data.(ast.StaticNode)
	if d.Init != nil {
		if err := d.Init.Analyze(info); err != nil {
			return Continues, err
		}
	}
	name := d.Var.Name()
	info.BindStatic(name)
	if _, ok := ctx.staticKeys[node]; !ok {
		ctx.staticCount++
		scope := info.Scope()
		ctx.staticKeys[node] = fmt.Sprintf("%s::%s::%s_%d", scope.Class, scope.Function, name, ctx.staticCount)
	}
	return Continues, d.Var.AnalyzeRef(info)
}

// checkReads reports reads that no path ever assigns.
func (ctx *Context) checkReads(scope *flow.Scope) {
	for _, r := range scope.Reads() {
		if r.State() == flow.Unset {
			ctx.warn(config.WarnUndefinedVar, r.Tok(), "variable $%s is read before any assignment", r.Name())
		}
	}
}

func notAssignable(node *ast.Node) error {
	return util.Errorf(node.Tok, "cannot iterate by reference over an expression that is not a variable")
}
