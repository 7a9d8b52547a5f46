package codegen

import (
	"fmt"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/emit"
)

// Generate writes the host code for an analyzed statement.
func (ctx *Context) Generate(node *ast.Node) {
	w := ctx.w
	if node.Type != ast.Block {
		w.SetLocation(node.Tok)
	}

	switch node.Type {
	case ast.Text:
		w.Printlnf("env.print(%s);", emit.Quote(node.Data.(ast.TextNode).Value))

	case ast.Echo:
		for _, e := range node.Data.(ast.EchoNode).Exprs {
			w.Print("env.print(")
			e.Generate(w)
			w.Println(");")
		}

	case ast.ExprStmt:
		node.Data.(ast.ExprStmtNode).Expr.GenerateStatement(w)
		w.Println(";")

	case ast.Null:

	case ast.Return:
		e := node.Data.(ast.ReturnNode).Expr
		if e == nil {
			w.Println("return NullValue.NULL;")
			return
		}
		w.Print("return ")
		e.GenerateCopy(w)
		w.Println(";")

	case ast.ReturnRef:
		w.Print("return ")
		node.Data.(ast.ReturnRefNode).Expr.GenerateRef(w)
		w.Println(";")

	case ast.Throw:
		w.Print("throw new QuercusLanguageException(")
		node.Data.(ast.ThrowNode).Expr.Generate(w)
		w.Println(");")

	case ast.FuncDef:
		fn := node.Data.(ast.FuncDefNode).Func
		w.Printlnf("env.addFunction(%s, new %s());", emit.Quote(fn.Name), ctx.funcNames[fn])

	case ast.ClassDef:
		cl := node.Data.(ast.ClassDefNode).Class
		w.Printlnf("env.addClass(%s, new %s());", emit.Quote(cl.Name), ctx.classNames[cl])

	case ast.Block:
		ctx.generateBlock(node.Data.(ast.BlockNode).Stmts)

	case ast.If:
		ctx.generateIf(node.Data.(ast.IfNode))

	case ast.While, ast.DoWhile, ast.For, ast.Foreach:
		ctx.generateLoop(node)

	case ast.Switch:
		ctx.generateSwitch(node)

	case ast.Break, ast.Continue:
		ctx.generateJump(node)

	case ast.Try:
		ctx.generateTry(node.Data.(ast.TryNode))

	case ast.Global:
		v := node.Data.(ast.GlobalNode).Var
		v.GenerateAssignRef(w, fmt.Sprintf("env.getGlobalVar(%s)", emit.Quote(v.Name())))
		w.Println(";")

	case ast.VarGlobal:
		name := w.Temp("gname")
		w.Printf("StringValue %s = ", name)
		node.Data.(ast.VarGlobalNode).Name.Generate(w)
		w.Println(".toStringValue();")
		w.Printlnf("env.setRef(%s, env.getGlobalVar(%s));", name, name)

	case ast.Static:
		ctx.generateStatic(node)

	default:
		panic(fmt.Sprintf("codegen: unhandled statement type %v", node.Type))
	}
}

// generateBlock mirrors analyzeBlock: nothing after a statement that cannot
// fall through is written, since the host compiler rejects unreachable
// statements.
func (ctx *Context) generateBlock(stmts []*ast.Node) {
	for _, stmt := range stmts {
		ctx.Generate(stmt)
		if ctx.FallThrough(stmt) != Continues {
			return
		}
	}
}

// generateIf flattens else-if chains into a single host if statement.
func (ctx *Context) generateIf(d ast.IfNode) {
	w := ctx.w
	w.Print("if (")
	for {
		d.Cond.GenerateBoolean(w)
		w.Println(") {")
		w.PushDepth()
		ctx.Generate(d.Then)
		w.PopDepth()

		switch {
		case d.Else == nil:
			w.Println("}")
			return
		case d.Else.Type == ast.If:
			d = d.Else.Data.(ast.IfNode)
			w.Print("} else if (")
		default:
			w.Println("} else {")
			w.PushDepth()
			ctx.Generate(d.Else)
			w.PopDepth()
			w.Println("}")
			return
		}
	}
}

func (ctx *Context) generateStatic(node *ast.Node) {
	d := node.Data.(ast.StaticNode)
	w := ctx.w
	key, ok := ctx.staticKeys[node]
	if !ok {
		panic("codegen: static statement generated before analysis")
	}

	d.Var.GenerateAssignRef(w, fmt.Sprintf("env.getStaticVar(env.createString(%s))", emit.Quote(key)))
	w.Println(";")
	if d.Init == nil {
		return
	}
	w.Print("if (! ")
	d.Var.GenerateRef(w)
	w.Println(".isset()) {")
	w.PushDepth()
	d.Var.GenerateAssign(w, w.Capture(func() { d.Init.GenerateCopy(w) }))
	w.Println(";")
	w.PopDepth()
	w.Println("}")
}
