package flow

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func states(i *Info, names ...string) map[string]VarState {
	out := make(map[string]VarState, len(names))
	for _, n := range names {
		out[n] = i.State(n)
	}
	return out
}

func TestCopyIsIndependent(t *testing.T) {
	info := New(NewScope("f", ""))
	info.Assign("a")

	c := info.Copy()
	c.Assign("b")

	if got := info.State("b"); got != Unset {
		t.Errorf("original saw assignment made on copy: b is %v", got)
	}
	if got := c.State("a"); got != Valid {
		t.Errorf("copy lost a: got %v", got)
	}
}

func TestMerge(t *testing.T) {
	scope := NewScope("f", "")
	a := New(scope)
	a.Assign("both")
	a.Assign("left")

	b := New(scope)
	b.Assign("both")
	b.Assign("right")

	a.Merge(b)
	want := map[string]VarState{
		"both":  Valid,
		"left":  Unknown,
		"right": Unknown,
		"none":  Unset,
	}
	if diff := cmp.Diff(want, states(a, "both", "left", "right", "none")); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIsCommutativeAndIdempotent(t *testing.T) {
	scope := NewScope("f", "")
	build := func(names ...string) *Info {
		i := New(scope)
		for _, n := range names {
			i.Assign(n)
		}
		return i
	}
	names := []string{"x", "y", "z"}

	ab := build("x", "y")
	ab.Merge(build("y", "z"))
	ba := build("y", "z")
	ba.Merge(build("x", "y"))
	if diff := cmp.Diff(states(ab, names...), states(ba, names...)); diff != "" {
		t.Errorf("merge is not commutative (-ab +ba):\n%s", diff)
	}
	if !ab.Equal(ba) {
		t.Errorf("Equal disagrees with per-name comparison: %v vs %v", ab, ba)
	}

	before := ab.Copy()
	ab.Merge(ab.Copy())
	if !ab.Equal(before) {
		t.Errorf("merge with itself changed state: %v -> %v", before, ab)
	}
}

func TestSymbolTableMakesEverythingUnknown(t *testing.T) {
	info := New(NewScope("f", ""))
	info.Assign("a")
	if got := info.State("missing"); got != Unset {
		t.Fatalf("missing variable: got %v, want unset", got)
	}

	info.UseSymbolTable()
	if !info.Scope().UsesSymbolTable() {
		t.Fatal("scope does not report symbol table use")
	}
	if diff := cmp.Diff(map[string]VarState{"a": Unknown, "missing": Unknown}, states(info, "a", "missing")); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestBindingsFlagVariables(t *testing.T) {
	info := New(NewScope("f", ""))
	info.AddArgument("arg", false)
	info.AddArgument("refArg", true)
	info.BindGlobal("g")
	info.BindStatic("s")
	info.Use("plain")

	got := make(map[string]VarInfo)
	for _, v := range info.Scope().Vars() {
		got[v.Name] = *v
	}
	want := map[string]VarInfo{
		"arg":    {Name: "arg", IsArgument: true},
		"refArg": {Name: "refArg", IsArgument: true, IsRef: true, IsRefArgument: true},
		"g":      {Name: "g", IsRef: true, IsGlobal: true},
		"s":      {Name: "s", IsRef: true, IsStatic: true},
		"plain":  {Name: "plain"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("var records mismatch (-want +got):\n%s", diff)
	}

	var order []string
	for _, v := range info.Scope().Vars() {
		order = append(order, v.Name)
	}
	if diff := cmp.Diff([]string{"arg", "refArg", "g", "s", "plain"}, order); diff != "" {
		t.Errorf("declaration order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopStack(t *testing.T) {
	outer := &Loop{Break: "loop_1", Continue: "loop_1"}
	sw := &Loop{Break: "switch_2", Continue: "switch_2", IsSwitch: true}

	info := New(NewScope("f", ""))
	if info.Loop(1) != nil || info.Depth() != 0 {
		t.Fatal("fresh state has an enclosing context")
	}
	info.PushLoop(outer)

	branch := info.Copy()
	branch.PushLoop(sw)
	if branch.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", branch.Depth())
	}
	if branch.Loop(1) != sw || branch.Loop(2) != outer {
		t.Errorf("levels resolve to %v, %v", branch.Loop(1), branch.Loop(2))
	}
	if branch.Loop(3) != nil || branch.Loop(0) != nil {
		t.Error("out of range levels must resolve to nil")
	}

	// pushing on the copy must not affect the original
	if info.Depth() != 1 || info.Loop(1) != outer {
		t.Errorf("original stack changed: depth %d", info.Depth())
	}
	branch.PopLoop()
	if branch.Loop(1) != outer {
		t.Error("pop did not restore the outer context")
	}
}

func TestPopWithoutPushPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("PopLoop on an empty stack did not panic")
		}
	}()
	New(NewScope("f", "")).PopLoop()
}

func TestAssumeKeepsContextStack(t *testing.T) {
	l := &Loop{Break: "loop_1", Continue: "loop_1"}
	info := New(NewScope("f", ""))
	info.PushLoop(l)

	other := New(info.Scope())
	other.Assign("x")
	info.Assume(other)

	if info.State("x") != Valid {
		t.Errorf("x = %v, want valid", info.State("x"))
	}
	if info.Loop(1) != l {
		t.Error("Assume replaced the context stack")
	}
}

func TestLoopCollectsJumpStates(t *testing.T) {
	scope := NewScope("f", "")
	l := &Loop{Break: "loop_1", Continue: "loop_1"}

	early := New(scope)
	late := New(scope)
	late.Assign("x")
	l.NoteBreak(early)
	l.NoteBreak(late)
	l.NoteContinue(late)

	exit := New(scope)
	exit.Assign("x")
	l.MergeBreaks(exit)
	if exit.State("x") != Unknown {
		t.Errorf("after breaks x = %v, want unknown", exit.State("x"))
	}
	test := New(scope)
	test.Assign("x")
	l.MergeContinues(test)
	if test.State("x") != Valid {
		t.Errorf("after continues x = %v, want valid", test.State("x"))
	}

	// reset drops earlier passes; a recorded state is a snapshot
	l.ResetJumps()
	l.NoteBreak(late)
	late.SetUnknown()
	fresh := New(scope)
	fresh.Assign("x")
	l.MergeBreaks(fresh)
	l.MergeContinues(fresh)
	if fresh.State("x") != Valid {
		t.Errorf("after reset x = %v, want valid", fresh.State("x"))
	}

	sw := &Loop{Break: "switch_2", Continue: "switch_2", IsSwitch: true}
	sw.NoteContinue(early)
	after := New(scope)
	after.Assign("x")
	sw.MergeBreaks(after)
	if after.State("x") != Unknown {
		t.Errorf("continue on a switch was not recorded as a break: x = %v", after.State("x"))
	}
}
