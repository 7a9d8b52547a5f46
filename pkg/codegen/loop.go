package codegen

import (
	"fmt"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/flow"
)

// analyzeLoop analyzes the loop twice: once from the entry state and once
// from the entry state merged with the state after the first iteration.
// Two passes reach the fixpoint because every transfer only ever moves a
// variable to Valid or Unknown.
func (ctx *Context) analyzeLoop(node *ast.Node, info *flow.Info) (Term, error) {
	loop := ctx.loopFor(node, false)

	switch node.Type {
	case ast.For:
		if init := node.Data.(ast.ForNode).Init; init != nil {
			if err := init.Analyze(info); err != nil {
				return Continues, err
			}
		}
	case ast.Foreach:
		d := node.Data.(ast.ForeachNode)
		if d.ByRef {
			lv, ok := d.Expr.(ast.Assignable)
			if !ok {
				return Continues, notAssignable(node)
			}
			if err := lv.AnalyzeRef(info); err != nil {
				return Continues, err
			}
		} else if err := d.Expr.Analyze(info); err != nil {
			return Continues, err
		}
	}

	entry := info.Copy()
	state := entry.Copy()
	var bodyTerm Term
	for pass := 0; pass < 2; pass++ {
		if pass > 0 {
			next := entry.Copy()
			next.Merge(state)
			state = next
		}
		loop.ResetJumps()
		state.PushLoop(loop)
		t, err := ctx.analyzeIteration(node, loop, state)
		state.PopLoop()
		if err != nil {
			return Continues, err
		}
		bodyTerm = t
	}
	info.Assume(state)
	loop.MergeBreaks(info)

	// A do-while body always runs, so the loop can only be left the way the
	// body leaves, unless something jumps to the loop's own label.
	if node.Type == ast.DoWhile && bodyTerm != Continues && !ctx.targeted[loop] {
		return bodyTerm, nil
	}
	return Continues, nil
}

// analyzeIteration analyzes one trip around the loop. On return s holds the
// state at the loop exit test, including paths arriving there by continue.
func (ctx *Context) analyzeIteration(node *ast.Node, loop *flow.Loop, s *flow.Info) (Term, error) {
	switch node.Type {
	case ast.While:
		d := node.Data.(ast.WhileNode)
		if err := d.Cond.Analyze(s); err != nil {
			return Continues, err
		}
		body := s.Copy()
		t, err := ctx.Analyze(d.Body, body)
		loop.MergeContinues(body)
		s.Merge(body)
		return t, err

	case ast.DoWhile:
		d := node.Data.(ast.DoWhileNode)
		t, err := ctx.Analyze(d.Body, s)
		if err != nil {
			return t, err
		}
		loop.MergeContinues(s)
		return t, d.Cond.Analyze(s)

	case ast.For:
		d := node.Data.(ast.ForNode)
		if d.Cond != nil {
			if err := d.Cond.Analyze(s); err != nil {
				return Continues, err
			}
		}
		body := s.Copy()
		t, err := ctx.Analyze(d.Body, body)
		if err != nil {
			return t, err
		}
		loop.MergeContinues(body)
		if d.Incr != nil {
			if err := d.Incr.Analyze(body); err != nil {
				return t, err
			}
		}
		s.Merge(body)
		return t, nil

	case ast.Foreach:
		d := node.Data.(ast.ForeachNode)
		body := s.Copy()
		if d.Key != nil {
			if err := d.Key.AnalyzeAssign(body); err != nil {
				return Continues, err
			}
		}
		var err error
		if d.ByRef {
			err = d.Value.AnalyzeRef(body)
		} else {
			err = d.Value.AnalyzeAssign(body)
		}
		if err != nil {
			return Continues, err
		}
		t, err := ctx.Analyze(d.Body, body)
		loop.MergeContinues(body)
		s.Merge(body)
		return t, err
	}
	panic(fmt.Sprintf("codegen: %v is not a loop", node.Type))
}

func (ctx *Context) generateLoop(node *ast.Node) {
	loop := ctx.loopOf(node)
	w := ctx.w

	switch node.Type {
	case ast.While:
		d := node.Data.(ast.WhileNode)
		w.Printf("%s: while (", loop.Break)
		d.Cond.GenerateBoolean(w)
		w.Println(") {")
		ctx.generateLoopBody(loop, d.Body, nil)
		w.Println("}")

	case ast.DoWhile:
		d := node.Data.(ast.DoWhileNode)
		w.Printlnf("%s: do {", loop.Break)
		ctx.generateLoopBody(loop, d.Body, nil)
		w.Print("} while (")
		d.Cond.GenerateBoolean(w)
		w.Println(");")

	case ast.For:
		d := node.Data.(ast.ForNode)
		if d.Init != nil {
			d.Init.GenerateStatement(w)
			w.Println(";")
		}
		w.Printf("%s: for (; ", loop.Break)
		if d.Cond != nil {
			d.Cond.GenerateBoolean(w)
		} else {
			// not the literal true: the host compiler would treat the loop as
			// infinite and reject whatever follows it
			w.Print("BooleanValue.TRUE.toBoolean()")
		}
		w.Print("; ")
		if d.Incr != nil {
			d.Incr.GenerateStatement(w)
		}
		w.Println(") {")
		ctx.generateLoopBody(loop, d.Body, nil)
		w.Println("}")

	case ast.Foreach:
		ctx.generateForeach(node.Data.(ast.ForeachNode), loop)

	default:
		panic(fmt.Sprintf("codegen: %v is not a loop", node.Type))
	}
}

// generateLoopBody writes the timeout poll, any per-iteration bindings and
// the body, with loop pushed on the label stack.
func (ctx *Context) generateLoopBody(loop *flow.Loop, body *ast.Node, bind func()) {
	w := ctx.w
	w.PushDepth()
	w.Println("env.checkTimeout();")
	if bind != nil {
		bind()
	}
	ctx.pushLabel(loop)
	ctx.Generate(body)
	ctx.popLabel()
	w.PopDepth()
}

// generateForeach iterates over a snapshot of the container taken before the
// first iteration. By-reference iteration snapshots the keys and aliases
// each element of the live container in turn.
func (ctx *Context) generateForeach(d ast.ForeachNode, loop *flow.Loop) {
	w := ctx.w
	iter := w.Temp("foreach")

	switch {
	case d.ByRef:
		keys, idx := iter+"_keys", iter+"_i"
		w.Printf("Value %s = ", iter)
		d.Expr.GenerateRef(w)
		w.Println(".toAutoArray();")
		w.Printlnf("Value[] %s = %s.getKeyArray(env);", keys, iter)
		w.Printlnf("%s: for (int %s = 0; %s < %s.length; %s++) {", loop.Break, idx, idx, keys, idx)
		ctx.generateLoopBody(loop, d.Body, func() {
			key := fmt.Sprintf("%s[%s]", keys, idx)
			if d.Key != nil {
				d.Key.GenerateAssign(w, key)
				w.Println(";")
			}
			d.Value.GenerateAssignRef(w, fmt.Sprintf("%s.getVar(%s)", iter, key))
			w.Println(";")
		})

	case d.Key != nil:
		entry := iter + "_entry"
		w.Printf("java.util.Iterator<java.util.Map.Entry<Value, Value>> %s = ", iter)
		d.Expr.GenerateCopy(w)
		w.Println(".getIterator(env);")
		w.Printlnf("%s: while (%s.hasNext()) {", loop.Break, iter)
		ctx.generateLoopBody(loop, d.Body, func() {
			w.Printlnf("java.util.Map.Entry<Value, Value> %s = %s.next();", entry, iter)
			d.Key.GenerateAssign(w, entry+".getKey()")
			w.Println(";")
			d.Value.GenerateAssign(w, entry+".getValue().copy()")
			w.Println(";")
		})

	default:
		w.Printf("java.util.Iterator<Value> %s = ", iter)
		d.Expr.GenerateCopy(w)
		w.Println(".getValueIterator(env);")
		w.Printlnf("%s: while (%s.hasNext()) {", loop.Break, iter)
		ctx.generateLoopBody(loop, d.Body, func() {
			d.Value.GenerateAssign(w, iter+".next().copy()")
			w.Println(";")
		})
	}
	w.Println("}")
}
