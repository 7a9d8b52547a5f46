// Package flow tracks what the compiler knows about local variables while
// walking a function body: which are definitely assigned, which are bound by
// reference, and which loop or switch contexts enclose the current point.
package flow

import (
	"fmt"

	"github.com/xplshn/phpgen/pkg/token"
)

// VarState is the per-path knowledge about a single variable.
type VarState int

const (
	Unset   VarState = iota // definitely unassigned
	Valid                   // definitely assigned
	Unknown                 // assigned on some paths only
)

func (s VarState) String() string {
	switch s {
	case Unset:
		return "unset"
	case Valid:
		return "valid"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("VarState(%d)", int(s))
}

// Join combines the states reaching a merge point from two paths.
func Join(a, b VarState) VarState {
	if a == b {
		return a
	}
	return Unknown
}

// VarInfo holds the facts about a variable that hold for the whole function,
// independent of the path. It drives the variable prologue emitted before the
// body.
type VarInfo struct {
	Name          string
	IsRef         bool
	IsGlobal      bool
	IsStatic      bool
	IsArgument    bool
	IsRefArgument bool
}

// Scope is shared by every Info copy made while analyzing one function body.
type Scope struct {
	Function    string
	Class       string
	symbolTable bool
	vars        map[string]*VarInfo
	order       []*VarInfo
	reads       []Read
	seenReads   map[Read]bool
}

// Read is a variable read whose merged state is known once analysis of the
// whole body is over.
type Read interface {
	Name() string
	State() VarState
	Tok() token.Token
}

func NewScope(function, class string) *Scope {
	return &Scope{
		Function:  function,
		Class:     class,
		vars:      make(map[string]*VarInfo),
		seenReads: make(map[Read]bool),
	}
}

// NoteRead remembers r for post-analysis checks. Repeated notes of the same
// read are ignored.
func (s *Scope) NoteRead(r Read) {
	if s.seenReads[r] {
		return
	}
	s.seenReads[r] = true
	s.reads = append(s.reads, r)
}

// Reads lists noted reads in the order first analyzed.
func (s *Scope) Reads() []Read { return s.reads }

// Lookup returns the record for name, or nil if the body never mentions it.
func (s *Scope) Lookup(name string) *VarInfo { return s.vars[name] }

// Vars lists every variable in order of first appearance.
func (s *Scope) Vars() []*VarInfo { return s.order }

// UsesSymbolTable reports whether variables must be resolved through the
// runtime symbol table instead of host locals.
func (s *Scope) UsesSymbolTable() bool { return s.symbolTable }

func (s *Scope) declare(name string) *VarInfo {
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := &VarInfo{Name: name}
	s.vars[name] = v
	s.order = append(s.order, v)
	return v
}

// Loop is a break/continue target. For a switch both labels are the same
// and IsSwitch is set.
//
// While its statement is analyzed, a Loop also collects the states of the
// paths that jump to it, so they can be merged where those paths land.
type Loop struct {
	Break    string
	Continue string
	IsSwitch bool

	breaks    *Info
	continues *Info
}

// ResetJumps forgets the jump states collected by an earlier analysis pass.
func (l *Loop) ResetJumps() { l.breaks, l.continues = nil, nil }

// NoteBreak records the state of a path leaving the statement.
func (l *Loop) NoteBreak(i *Info) { l.breaks = collect(l.breaks, i) }

// NoteContinue records the state of a path jumping to the next iteration.
// Continuing a switch leaves it.
func (l *Loop) NoteContinue(i *Info) {
	if l.IsSwitch {
		l.NoteBreak(i)
		return
	}
	l.continues = collect(l.continues, i)
}

// MergeBreaks folds every recorded break state into i.
func (l *Loop) MergeBreaks(i *Info) {
	if l.breaks != nil {
		i.Merge(l.breaks)
	}
}

// MergeContinues folds every recorded continue state into i.
func (l *Loop) MergeContinues(i *Info) {
	if l.continues != nil {
		i.Merge(l.continues)
	}
}

func collect(acc, i *Info) *Info {
	if acc == nil {
		return i.Copy()
	}
	acc.Merge(i)
	return acc
}

type frame struct {
	loop   *Loop
	parent *frame
	depth  int
}

// Info is the flow state at one program point.
type Info struct {
	scope *Scope
	vars  map[string]VarState
	top   *frame
}

func New(scope *Scope) *Info {
	return &Info{scope: scope, vars: make(map[string]VarState)}
}

func (i *Info) Scope() *Scope { return i.scope }

// Copy returns an independent state for analyzing a branch. The context
// stack is immutable and shared.
func (i *Info) Copy() *Info {
	vars := make(map[string]VarState, len(i.vars))
	for name, st := range i.vars {
		vars[name] = st
	}
	return &Info{scope: i.scope, vars: vars, top: i.top}
}

// Assume replaces the per-path facts of i with those of other, keeping i's
// context stack.
func (i *Info) Assume(other *Info) {
	vars := make(map[string]VarState, len(other.vars))
	for name, st := range other.vars {
		vars[name] = st
	}
	i.vars = vars
}

// Merge folds the state of another path into i.
func (i *Info) Merge(other *Info) {
	for name := range other.vars {
		i.vars[name] = Join(i.State(name), other.State(name))
	}
	for name, st := range i.vars {
		if _, ok := other.vars[name]; !ok {
			i.vars[name] = Join(st, other.State(name))
		}
	}
}

// State reports what is known about name at this point.
func (i *Info) State(name string) VarState {
	if st, ok := i.vars[name]; ok {
		return st
	}
	if i.scope.symbolTable {
		return Unknown
	}
	return Unset
}

// Use records a read of name and returns its state.
func (i *Info) Use(name string) VarState {
	i.scope.declare(name)
	return i.State(name)
}

// Assign records that name is definitely assigned from here on.
func (i *Info) Assign(name string) *VarInfo {
	v := i.scope.declare(name)
	i.vars[name] = Valid
	return v
}

// BindRef marks name as aliased by reference.
func (i *Info) BindRef(name string) *VarInfo {
	v := i.Assign(name)
	v.IsRef = true
	return v
}

// BindGlobal marks name as bound to the global of the same name.
func (i *Info) BindGlobal(name string) *VarInfo {
	v := i.BindRef(name)
	v.IsGlobal = true
	return v
}

// BindStatic marks name as bound to a function-static slot.
func (i *Info) BindStatic(name string) *VarInfo {
	v := i.BindRef(name)
	v.IsStatic = true
	return v
}

// AddArgument declares a parameter, which is assigned on entry.
func (i *Info) AddArgument(name string, byRef bool) *VarInfo {
	v := i.Assign(name)
	v.IsArgument = true
	if byRef {
		v.IsRef = true
		v.IsRefArgument = true
	}
	return v
}

// SetUnknown forgets everything known about assigned variables, as after a
// point where control may have arrived from anywhere in a region.
func (i *Info) SetUnknown() {
	for name, st := range i.vars {
		if st != Unset {
			i.vars[name] = Unknown
		}
	}
}

// UseSymbolTable switches the scope to runtime symbol-table lookup. Any
// variable may now be bound behind the compiler's back.
func (i *Info) UseSymbolTable() {
	i.scope.symbolTable = true
	i.SetUnknown()
}

// PushLoop enters a loop or switch context.
func (i *Info) PushLoop(l *Loop) {
	depth := 1
	if i.top != nil {
		depth = i.top.depth + 1
	}
	i.top = &frame{loop: l, parent: i.top, depth: depth}
}

// PopLoop leaves the innermost context.
func (i *Info) PopLoop() {
	if i.top == nil {
		panic("flow: PopLoop without matching PushLoop")
	}
	i.top = i.top.parent
}

// Loop returns the context level steps out, 1 being the innermost, or nil if
// there are fewer enclosing contexts.
func (i *Info) Loop(level int) *Loop {
	if level < 1 {
		return nil
	}
	f := i.top
	for ; f != nil && level > 1; level-- {
		f = f.parent
	}
	if f == nil {
		return nil
	}
	return f.loop
}

// Depth is the number of enclosing loop and switch contexts.
func (i *Info) Depth() int {
	if i.top == nil {
		return 0
	}
	return i.top.depth
}

// Equal reports whether two states hold the same per-path facts.
func (i *Info) Equal(other *Info) bool {
	if i.Depth() != other.Depth() {
		return false
	}
	for name := range i.vars {
		if i.State(name) != other.State(name) {
			return false
		}
	}
	for name := range other.vars {
		if i.State(name) != other.State(name) {
			return false
		}
	}
	return true
}

func (i *Info) String() string {
	return fmt.Sprintf("flow.Info{vars: %v, depth: %d}", i.vars, i.Depth())
}
