package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/emit"
	"github.com/xplshn/phpgen/pkg/expr"
	"github.com/xplshn/phpgen/pkg/flow"
)

// mainName labels errors raised in top-level code.
const mainName = "{main}"

// analyzedFunction is a function body that passed analysis and is ready to
// be written.
type analyzedFunction struct {
	fn    *ast.Function
	class string
	name  string
	scope *flow.Scope
	term  Term
}

func (ctx *Context) hostName(prefix, name string) string {
	ctx.classCount++
	return fmt.Sprintf("%s_%s_%d", prefix, sanitize(name), ctx.classCount)
}

// declareFunction names the host class of fn and queues it for emission.
func (ctx *Context) declareFunction(fn *ast.Function) string {
	if name, ok := ctx.funcNames[fn]; ok {
		return name
	}
	name := ctx.hostName("fun", fn.Name)
	ctx.funcNames[fn] = name
	ctx.pending = append(ctx.pending, fn)
	return name
}

func (ctx *Context) declareClass(cl *ast.Class) string {
	if name, ok := ctx.classNames[cl]; ok {
		return name
	}
	name := ctx.hostName("cls", cl.Name)
	ctx.classNames[cl] = name
	ctx.pending = append(ctx.pending, cl)
	return name
}

func displayName(class, name string) string {
	if class != "" {
		return class + "::" + name
	}
	return name
}

func paramName(name string) string {
	return "p_" + strings.TrimPrefix(expr.LocalName(name), "v_")
}

func (af *analyzedFunction) isInstanceMethod() bool {
	return af.class != "" && !af.fn.IsStatic
}

// analyzeFunction runs flow analysis over one body with a fresh state. class
// is the declaring class of a method and empty otherwise.
func (ctx *Context) analyzeFunction(fn *ast.Function, class, name string) (*analyzedFunction, error) {
	af := &analyzedFunction{fn: fn, class: class, name: name, scope: flow.NewScope(fn.Name, class)}
	info := flow.New(af.scope)
	ctx.labels = nil

	if af.isInstanceMethod() {
		info.Assign("this")
	}
	for _, p := range fn.Params {
		if p.Default != nil {
			if err := p.Default.Analyze(info); err != nil {
				return nil, fmt.Errorf("%s: %w", displayName(class, fn.Name), err)
			}
		}
		info.AddArgument(p.Name, p.ByRef)
	}

	term, err := ctx.Analyze(fn.Body, info)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayName(class, fn.Name), err)
	}
	ctx.checkReads(af.scope)
	af.term = term
	return af, nil
}

// CompileFunction writes fn as a nested CompiledFunction class. Nothing is
// written when analysis fails.
func (ctx *Context) CompileFunction(fn *ast.Function) error {
	af, err := ctx.analyzeFunction(fn, fn.Class, ctx.declareFunction(fn))
	if err != nil {
		return err
	}
	ctx.writeFunction(af)
	return nil
}

func (ctx *Context) writeFunction(af *analyzedFunction) {
	w := ctx.w
	fn := af.fn
	ctx.labels = nil

	w.Printlnf("public static final class %s extends CompiledFunction {", af.name)
	w.PushDepth()
	w.Printlnf("public %s() {", af.name)
	w.PushDepth()
	w.Printlnf("super(%s);", emit.Quote(fn.Name))
	w.PopDepth()
	w.Println("}")
	w.Println("")

	method := "call"
	params := []string{"Env env"}
	if af.isInstanceMethod() {
		method = "callMethod"
		params = append(params, "QuercusClass qClass", "Value q_this")
	}
	if fn.ReturnsRef {
		method += "Ref"
	}
	for _, p := range fn.Params {
		params = append(params, "Value "+paramName(p.Name))
	}

	w.Println("@Override")
	w.Printlnf("public Value %s(%s) {", method, strings.Join(params, ", "))
	w.PushDepth()
	w.Println("env.checkTimeout();")
	for _, p := range fn.Params {
		if p.Default == nil {
			continue
		}
		pn := paramName(p.Name)
		w.Printf("if (%s == null) %s = ", pn, pn)
		p.Default.Generate(w)
		w.Println(";")
	}
	ctx.writePrologue(af.scope)
	ctx.Generate(fn.Body)
	if af.term == Continues {
		w.Println("return NullValue.NULL;")
	}
	w.PopDepth()
	w.Println("}")
	w.PopDepth()
	w.Println("}")
}

// writePrologue declares the host local behind every variable the body
// mentions. Reference-bound variables need a Var cell; symbol-table scopes
// route every variable through the environment.
func (ctx *Context) writePrologue(scope *flow.Scope) {
	w := ctx.w
	for _, v := range scope.Vars() {
		if v.Name == "this" {
			continue
		}
		local := expr.LocalName(v.Name)
		quoted := emit.Quote(v.Name)
		param := paramName(v.Name)

		if scope.UsesSymbolTable() {
			switch {
			case v.IsRefArgument:
				w.Printlnf("Var %s = env.setRef(%s, %s.toRefVar());", local, quoted, param)
			case v.IsArgument:
				w.Printlnf("Var %s = env.getVar(%s);", local, quoted)
				w.Printlnf("%s.set(%s.copy());", local, param)
			default:
				w.Printlnf("Var %s = env.getVar(%s);", local, quoted)
			}
			continue
		}

		switch {
		case v.IsRefArgument:
			w.Printlnf("Var %s = %s.toRefVar();", local, param)
		case v.IsArgument && v.IsRef:
			w.Printlnf("Var %s = new Var(%s.copy());", local, param)
		case v.IsArgument:
			w.Printlnf("Value %s = %s.copy();", local, param)
		case v.IsRef:
			w.Printlnf("Var %s = new Var();", local)
		default:
			w.Printlnf("Value %s = NullValue.NULL;", local)
		}
	}
}

// CompileClass writes cl as a nested CompiledClassDef with one nested class
// per method. Every method is analyzed before anything is written.
func (ctx *Context) CompileClass(cl *ast.Class) error {
	name := ctx.declareClass(cl)

	var methods []*analyzedFunction
	var errs []error
	for _, m := range cl.Methods {
		af, err := ctx.analyzeFunction(m, cl.Name, ctx.hostName("fun", m.Name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		methods = append(methods, af)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	w := ctx.w
	w.Printlnf("public static final class %s extends CompiledClassDef {", name)
	w.PushDepth()
	w.Printlnf("public %s() {", name)
	w.PushDepth()
	parent := "null"
	if cl.Parent != "" {
		parent = emit.Quote(cl.Parent)
	}
	w.Printlnf("super(%s, %s);", emit.Quote(cl.Name), parent)
	for _, af := range methods {
		w.Printlnf("addMethod(%s, new %s());", emit.Quote(af.fn.Name), af.name)
	}
	w.PopDepth()
	w.Println("}")
	for _, af := range methods {
		w.Println("")
		ctx.writeFunction(af)
	}
	w.PopDepth()
	w.Println("}")
	return nil
}

// Compile writes a whole unit: a CompiledPage subclass whose init registers
// the unconditional declarations and whose execute runs the top-level code.
// Functions and classes reached through declaration statements are emitted
// as nested classes after it.
func (ctx *Context) Compile(prog *ast.Program) (string, error) {
	var errs []error
	for _, fn := range prog.Functions {
		ctx.declareFunction(fn)
	}
	for _, cl := range prog.Classes {
		ctx.declareClass(cl)
	}

	w := ctx.w
	w.Printlnf("package %s;", ctx.cfg.Package)
	w.Println("")
	for _, imp := range ctx.cfg.Imports {
		w.Printlnf("import %s;", imp)
	}
	w.Println("")
	w.Printlnf("public class %s extends CompiledPage {", UnitName(prog.File))
	w.PushDepth()

	w.Println("@Override")
	w.Println("public void init(Env env) {")
	w.PushDepth()
	for _, fn := range prog.Functions {
		w.Printlnf("env.addFunction(%s, new %s());", emit.Quote(fn.Name), ctx.funcNames[fn])
	}
	for _, cl := range prog.Classes {
		w.Printlnf("env.addClass(%s, new %s());", emit.Quote(cl.Name), ctx.classNames[cl])
	}
	w.PopDepth()
	w.Println("}")
	w.Println("")

	if err := ctx.compileMain(prog.Main); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", mainName, err))
	}

	for len(ctx.pending) > 0 {
		next := ctx.pending[0]
		ctx.pending = ctx.pending[1:]
		w.Println("")
		var err error
		switch d := next.(type) {
		case *ast.Function:
			err = ctx.CompileFunction(d)
		case *ast.Class:
			err = ctx.CompileClass(d)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	w.PopDepth()
	w.Println("}")
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return w.String(), nil
}

func (ctx *Context) compileMain(body *ast.Node) error {
	w := ctx.w
	scope := flow.NewScope("", "")
	info := flow.New(scope)
	info.UseSymbolTable()
	ctx.labels = nil

	term := Continues
	if body != nil {
		var err error
		if term, err = ctx.Analyze(body, info); err != nil {
			return err
		}
	}
	ctx.checkReads(scope)

	w.Println("@Override")
	w.Println("public Value execute(Env env) {")
	w.PushDepth()
	ctx.writePrologue(scope)
	if body != nil {
		ctx.Generate(body)
	}
	if term == Continues {
		w.Println("return NullValue.NULL;")
	}
	w.PopDepth()
	w.Println("}")
	return nil
}

// Compile translates one program with a fresh context.
func Compile(cfg *config.Config, prog *ast.Program) (string, error) {
	return NewContext(cfg).Compile(prog)
}
