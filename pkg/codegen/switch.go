package codegen

import (
	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/flow"
	"github.com/xplshn/phpgen/pkg/util"
)

func (ctx *Context) analyzeSwitch(node *ast.Node, info *flow.Info) (Term, error) {
	d := node.Data.(ast.SwitchNode)
	if err := d.Subject.Analyze(info); err != nil {
		return Continues, err
	}
	loop := ctx.loopFor(node, true)
	loop.ResetJumps()

	// Guards are tested in order until one matches, so every body may see
	// the effects of all of them.
	guards := info.Copy()
	hasDefault := false
	for _, c := range d.Cases {
		if c.IsDefault {
			if hasDefault {
				return Continues, util.Errorf(c.Tok, "switch statements may only contain one default clause")
			}
			hasDefault = true
		}
		for _, v := range c.Values {
			if err := v.Analyze(guards); err != nil {
				return Continues, err
			}
		}
	}

	guards.PushLoop(loop)
	terms := make([]Term, len(d.Cases))
	exit := guards.Copy()
	var prev *flow.Info
	for i, c := range d.Cases {
		s := guards.Copy()
		if prev != nil {
			s.Merge(prev)
		}
		t, err := ctx.Analyze(c.Body, s)
		if err != nil {
			return t, err
		}
		terms[i] = t
		if i == 0 && hasDefault {
			exit = s.Copy()
		} else {
			exit.Merge(s)
		}
		prev = s
	}
	// a break part way through a body skips the rest of it
	loop.MergeBreaks(exit)
	info.Assume(exit)

	if !hasDefault || ctx.targeted[loop] {
		return Continues, nil
	}
	result := Terminates
	for i := range d.Cases {
		t := armTerm(terms, i)
		if t == Continues {
			return Continues, nil
		}
		result = min(result, t)
	}
	return result, nil
}

// armTerm classifies entering the switch at arm i: control runs through
// following bodies until one of them does not fall through.
func armTerm(terms []Term, i int) Term {
	for ; i < len(terms); i++ {
		if terms[i] != Continues {
			return terms[i]
		}
	}
	return Continues
}

// generateSwitch lowers the switch to a labeled block holding an if chain,
// with the default arm tested last wherever it appears. Each arm carries
// copies of the bodies it falls into.
func (ctx *Context) generateSwitch(node *ast.Node) {
	d := node.Data.(ast.SwitchNode)
	loop := ctx.loopOf(node)
	w := ctx.w

	subject := w.Temp("sw")
	w.Printf("Value %s = ", subject)
	d.Subject.Generate(w)
	w.Println(";")

	defaultArm := -1
	var arms []int
	for i, c := range d.Cases {
		switch {
		case c.IsDefault:
			defaultArm = i
		case len(c.Values) > 0:
			arms = append(arms, i)
		}
	}

	w.Printlnf("%s: {", loop.Break)
	w.PushDepth()
	ctx.pushLabel(loop)

	if len(arms) == 0 {
		if defaultArm >= 0 {
			ctx.generateArm(d.Cases, defaultArm)
		}
	} else {
		for k, i := range arms {
			if k == 0 {
				w.Print("if (")
			} else {
				w.Print("} else if (")
			}
			for j, v := range d.Cases[i].Values {
				if j > 0 {
					w.Print(" || ")
				}
				w.Printf("%s.eq(", subject)
				v.Generate(w)
				w.Print(")")
			}
			w.Println(") {")
			w.PushDepth()
			ctx.generateArm(d.Cases, i)
			w.PopDepth()
		}
		if defaultArm >= 0 {
			w.Println("} else {")
			w.PushDepth()
			ctx.generateArm(d.Cases, defaultArm)
			w.PopDepth()
		}
		w.Println("}")
	}

	ctx.popLabel()
	w.PopDepth()
	w.Println("}")
}

func (ctx *Context) generateArm(cases []*ast.SwitchCase, i int) {
	for ; i < len(cases); i++ {
		ctx.Generate(cases[i].Body)
		if ctx.FallThrough(cases[i].Body) != Continues {
			return
		}
	}
}
