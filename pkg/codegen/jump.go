package codegen

import (
	"fmt"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/emit"
	"github.com/xplshn/phpgen/pkg/flow"
)

// jump is an analyzed break or continue. Its labels are looked up on the
// generation label stack.
type jump struct {
	isContinue bool
	level      int // static level, 1 being the innermost context
	depth      int // contexts a dynamic level can select from
	levelExpr  ast.Expr
	fault      string // set when the jump can only fail at run time
}

type intLiteral interface {
	IntValue() (int64, bool)
}

func jumpKind(isContinue bool) string {
	if isContinue {
		return "continue"
	}
	return "break"
}

func (ctx *Context) analyzeJump(node *ast.Node, level int, levelExpr ast.Expr, isContinue bool, info *flow.Info) (Term, error) {
	kind := jumpKind(isContinue)

	if levelExpr != nil {
		if err := levelExpr.Analyze(info); err != nil {
			return Terminates, err
		}
		if lit, ok := levelExpr.(intLiteral); ok {
			if v, ok := lit.IntValue(); ok {
				level, levelExpr = int(v), nil
			}
		}
	}

	if levelExpr != nil {
		depth := info.Depth()
		if depth == 0 {
			return ctx.faultyJump(node, kind, 0)
		}
		for n := 1; n <= depth; n++ {
			l := info.Loop(n)
			ctx.targeted[l] = true
			noteJump(l, info, isContinue)
		}
		ctx.jumps[node] = &jump{isContinue: isContinue, depth: depth, levelExpr: levelExpr}
		return ExitsViaBreak, nil
	}

	if level < 1 {
		if !ctx.cfg.IsFeatureEnabled(config.FeatLegacyBreakZero) {
			ctx.jumps[node] = &jump{fault: fmt.Sprintf("'%s' operator accepts only positive numbers", kind)}
			return Terminates, nil
		}
		level = 1
	}

	target := info.Loop(level)
	if target == nil {
		return ctx.faultyJump(node, kind, level)
	}
	ctx.targeted[target] = true
	noteJump(target, info, isContinue)
	if isContinue && target.IsSwitch {
		ctx.warn(config.WarnSwitchContinue, node.Tok, "\"continue\" targeting switch is equivalent to \"break\"")
	}
	ctx.jumps[node] = &jump{isContinue: isContinue, level: level}
	return ExitsViaBreak, nil
}

func noteJump(l *flow.Loop, info *flow.Info, isContinue bool) {
	if isContinue {
		l.NoteContinue(info)
	} else {
		l.NoteBreak(info)
	}
}

// faultyJump records a jump with no enclosing target. It compiles to a
// run-time error, matching the interpreter.
func (ctx *Context) faultyJump(node *ast.Node, kind string, level int) (Term, error) {
	var msg string
	if level <= 1 {
		msg = fmt.Sprintf("'%s' not in the 'loop' or 'switch' context", kind)
		ctx.warn(config.WarnBreakOutside, node.Tok, "%s", msg)
	} else {
		msg = fmt.Sprintf("cannot '%s' %d levels", kind, level)
		ctx.warn(config.WarnBreakDepth, node.Tok, "%s", msg)
	}
	ctx.jumps[node] = &jump{fault: msg}
	return Terminates, nil
}

func jumpTo(l *flow.Loop, isContinue bool) string {
	if isContinue && !l.IsSwitch {
		return fmt.Sprintf("continue %s;", l.Continue)
	}
	return fmt.Sprintf("break %s;", l.Break)
}

func (ctx *Context) generateJump(node *ast.Node) {
	j, ok := ctx.jumps[node]
	if !ok {
		panic(fmt.Sprintf("codegen: %v statement generated before analysis", node.Type))
	}
	w := ctx.w

	switch {
	case j.fault != "":
		w.Printlnf("throw new QuercusRuntimeException(%s);", emit.Quote(j.fault))

	case j.levelExpr != nil:
		level := w.Temp("level")
		w.Printf("int %s = ", level)
		j.levelExpr.Generate(w)
		w.Println(".toInt();")
		w.Printlnf("switch (%s) {", level)
		for n := 1; n <= j.depth; n++ {
			if n == j.depth {
				w.Println("default:")
			} else {
				w.Printlnf("case %d:", n)
			}
			w.PushDepth()
			w.Println(jumpTo(ctx.labelAt(n), j.isContinue))
			w.PopDepth()
		}
		w.Println("}")

	default:
		w.Println(jumpTo(ctx.labelAt(j.level), j.isContinue))
	}
}

// labelAt returns the enclosing context level steps out on the label stack.
func (ctx *Context) labelAt(level int) *flow.Loop {
	n := len(ctx.labels) - level
	if level < 1 || n < 0 {
		panic(fmt.Sprintf("codegen: jump %d levels out of %d enclosing contexts", level, len(ctx.labels)))
	}
	return ctx.labels[n]
}
