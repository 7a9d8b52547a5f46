package codegen

import (
	"strings"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/emit"
	"github.com/xplshn/phpgen/pkg/flow"
)

type catchKind int

const (
	catchGeneric catchKind = iota
	catchUniversal
	catchDie
	catchExit
)

// classifyCatch sorts a catch clause by the exception class it names. die()
// and exit() unwind through their own host exceptions, which a handler for
// the base language exception never sees.
func classifyCatch(class string) catchKind {
	switch strings.ToLower(strings.TrimPrefix(class, `\`)) {
	case "exception", "throwable":
		return catchUniversal
	case "quercusdieexception":
		return catchDie
	case "quercusexitexception":
		return catchExit
	}
	return catchGeneric
}

// handlers is the set of catch clauses that can ever run, grouped by how
// they are emitted. Clauses after a catch-all, and repeated die or exit
// clauses, are dropped.
type handlers struct {
	die, exit, universal *ast.CatchClause
	generic              []*ast.CatchClause
	dropped              []*ast.CatchClause
}

func selectHandlers(catches []*ast.CatchClause) handlers {
	var h handlers
	for i, c := range catches {
		switch classifyCatch(c.Class) {
		case catchDie:
			if h.die != nil {
				h.dropped = append(h.dropped, c)
				continue
			}
			h.die = c
		case catchExit:
			if h.exit != nil {
				h.dropped = append(h.dropped, c)
				continue
			}
			h.exit = c
		case catchUniversal:
			h.universal = c
			h.dropped = append(h.dropped, catches[i+1:]...)
			return h
		default:
			h.generic = append(h.generic, c)
		}
	}
	return h
}

// live lists the kept clauses in source order.
func (h handlers) live(catches []*ast.CatchClause) []*ast.CatchClause {
	dropped := make(map[*ast.CatchClause]bool, len(h.dropped))
	for _, c := range h.dropped {
		dropped[c] = true
	}
	var out []*ast.CatchClause
	for _, c := range catches {
		if !dropped[c] {
			out = append(out, c)
		}
	}
	return out
}

func (ctx *Context) analyzeTry(d ast.TryNode, info *flow.Info) (Term, error) {
	entry := info.Copy()
	body := info.Copy()
	term, err := ctx.Analyze(d.Body, body)
	if err != nil {
		return term, err
	}
	if len(d.Catches) == 0 {
		info.Assume(body)
		return term, nil
	}

	// an exception may leave the body at any point
	thrown := entry.Copy()
	thrown.Merge(body)
	thrown.SetUnknown()

	exit := body
	h := selectHandlers(d.Catches)
	for _, c := range h.dropped {
		ctx.warn(config.WarnUnreachableCode, c.Tok, "catch (%s) can never run", c.Class)
	}
	for _, c := range h.live(d.Catches) {
		s := thrown.Copy()
		if c.Var != nil {
			if err := c.Var.AnalyzeAssign(s); err != nil {
				return term, err
			}
		}
		t, err := ctx.Analyze(c.Body, s)
		if err != nil {
			return t, err
		}
		term = min(term, t)
		exit.Merge(s)
	}
	info.Assume(exit)
	info.SetUnknown()
	return term, nil
}

func (ctx *Context) generateTry(d ast.TryNode) {
	w := ctx.w
	if len(d.Catches) == 0 {
		ctx.Generate(d.Body)
		return
	}

	h := selectHandlers(d.Catches)
	w.Println("try {")
	w.PushDepth()
	ctx.Generate(d.Body)
	w.PopDepth()

	// QuercusDieException extends QuercusExitException, so it goes first.
	for _, c := range []struct {
		clause *ast.CatchClause
		class  string
	}{{h.die, "QuercusDieException"}, {h.exit, "QuercusExitException"}} {
		if c.clause == nil {
			continue
		}
		ex := w.Temp("ex")
		w.Printlnf("} catch (%s %s) {", c.class, ex)
		w.PushDepth()
		ctx.generateCatchBody(c.clause, "env.wrapJava("+ex+")")
		w.PopDepth()
	}

	if len(h.generic) > 0 || h.universal != nil {
		ex := w.Temp("ex")
		value := ex + "_value"
		w.Printlnf("} catch (QuercusLanguageException %s) {", ex)
		w.PushDepth()
		w.Printlnf("Value %s = %s.getValue();", value, ex)
		if len(h.generic) == 0 {
			ctx.generateCatchBody(h.universal, value)
		} else {
			for i, c := range h.generic {
				open := "} else if"
				if i == 0 {
					open = "if"
				}
				w.Printlnf("%s (%s.isA(env, %s)) {", open, value, emit.Quote(strings.TrimPrefix(c.Class, `\`)))
				w.PushDepth()
				ctx.generateCatchBody(c, value)
				w.PopDepth()
			}
			w.Println("} else {")
			w.PushDepth()
			if h.universal != nil {
				ctx.generateCatchBody(h.universal, value)
			} else {
				w.Printlnf("throw %s;", ex)
			}
			w.PopDepth()
			w.Println("}")
		}
		w.PopDepth()
	}
	w.Println("}")
}

func (ctx *Context) generateCatchBody(c *ast.CatchClause, value string) {
	if c.Var != nil {
		c.Var.GenerateAssign(ctx.w, value)
		ctx.w.Println(";")
	}
	ctx.Generate(c.Body)
}
