// Package expr is the expression compiler used by the statement generator.
// It covers the expression forms the loader understands; each node takes
// part in flow analysis and renders host code against the runtime's Value
// API.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/emit"
	"github.com/xplshn/phpgen/pkg/flow"
	"github.com/xplshn/phpgen/pkg/token"
	"github.com/xplshn/phpgen/pkg/util"
)

type base struct{ tok token.Token }

func (b base) Tok() token.Token { return b.tok }

// discard wraps a value expression so it forms a valid host statement.
func discard(w *emit.Writer, gen func(*emit.Writer)) {
	w.Print("env.discard(")
	gen(w)
	w.Print(")")
}

// Literal is a constant: int64, float64, string, bool or nil.
type Literal struct {
	base
	Value interface{}
}

func NewLiteral(tok token.Token, value interface{}) *Literal {
	return &Literal{base: base{tok}, Value: value}
}

func (e *Literal) Analyze(info *flow.Info) error {
	switch e.Value.(type) {
	case nil, bool, int64, float64, string:
		return nil
	}
	return util.Errorf(e.tok, "unsupported literal of type %T", e.Value)
}

func (e *Literal) Generate(w *emit.Writer) {
	switch v := e.Value.(type) {
	case nil:
		w.Print("NullValue.NULL")
	case bool:
		if v {
			w.Print("BooleanValue.TRUE")
		} else {
			w.Print("BooleanValue.FALSE")
		}
	case int64:
		switch v {
		case 0:
			w.Print("LongValue.ZERO")
		case 1:
			w.Print("LongValue.ONE")
		case -1:
			w.Print("LongValue.MINUS_ONE")
		default:
			w.Printf("LongValue.create(%dL)", v)
		}
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEN") {
			s += ".0"
		}
		w.Printf("new DoubleValue(%s)", s)
	case string:
		w.Printf("env.createString(%s)", emit.Quote(v))
	default:
		panic(fmt.Sprintf("expr: literal %T was not analyzed", e.Value))
	}
}

// GenerateBoolean never yields a host constant, so the host compiler's
// reachability rules cannot disagree with the statement classification.
func (e *Literal) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *Literal) GenerateCopy(w *emit.Writer)      { e.Generate(w) }
func (e *Literal) GenerateRef(w *emit.Writer)       { e.Generate(w) }
func (e *Literal) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }

// IntValue reports the value of an integer literal.
func (e *Literal) IntValue() (int64, bool) {
	v, ok := e.Value.(int64)
	return v, ok
}

// Var is a named local variable.
type Var struct {
	base
	name string

	// filled in by analysis
	read     bool
	state    flow.VarState
	rec      *flow.VarInfo
	scope    *flow.Scope
	analyzed bool
}

func NewVar(tok token.Token, name string) *Var {
	return &Var{base: base{tok}, name: name}
}

func (e *Var) Name() string { return e.name }

// LocalName is the host identifier backing the variable.
func LocalName(name string) string {
	if name == "this" {
		return "q_this"
	}
	var sb strings.Builder
	sb.WriteString("v_")
	for _, r := range name {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			sb.WriteRune(r)
		} else {
			fmt.Fprintf(&sb, "_u%04x", r)
		}
	}
	return sb.String()
}

// record merges the state seen by this analysis into what earlier analyses
// of the same node saw; loop bodies are analyzed more than once.
func (e *Var) record(st flow.VarState) {
	if !e.read {
		e.state, e.read = st, true
	} else {
		e.state = flow.Join(e.state, st)
	}
}

func (e *Var) bind(info *flow.Info) {
	e.scope = info.Scope()
	e.rec = e.scope.Lookup(e.name)
	e.analyzed = true
}

func (e *Var) Analyze(info *flow.Info) error {
	e.record(info.Use(e.name))
	e.bind(info)
	e.scope.NoteRead(e)
	return nil
}

func (e *Var) AnalyzeAssign(info *flow.Info) error {
	info.Assign(e.name)
	e.bind(info)
	return nil
}

func (e *Var) AnalyzeRef(info *flow.Info) error {
	info.BindRef(e.name)
	e.bind(info)
	return nil
}

// State is the merged knowledge about the variable at this read.
func (e *Var) State() flow.VarState { return e.state }

func (e *Var) isRef() bool {
	e.mustBeAnalyzed()
	return e.rec.IsRef || e.scope.UsesSymbolTable()
}

func (e *Var) mustBeAnalyzed() {
	if !e.analyzed {
		panic(fmt.Sprintf("expr: variable $%s generated before analysis", e.name))
	}
}

func (e *Var) Generate(w *emit.Writer) {
	e.mustBeAnalyzed()
	switch {
	case e.read && e.state == flow.Unset:
		w.Printf("env.undefinedVariable(%s)", emit.Quote(e.name))
	case e.isRef():
		w.Printf("%s.toValue()", LocalName(e.name))
	default:
		w.Print(LocalName(e.name))
	}
}

func (e *Var) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *Var) GenerateCopy(w *emit.Writer) {
	e.Generate(w)
	w.Print(".copy()")
}

func (e *Var) GenerateRef(w *emit.Writer) {
	e.mustBeAnalyzed()
	if e.isRef() {
		w.Print(LocalName(e.name))
		return
	}
	w.Printf("%s.toRefValue()", LocalName(e.name))
}

func (e *Var) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }

func (e *Var) GenerateAssign(w *emit.Writer, value string) {
	if e.isRef() {
		w.Printf("%s.set(%s)", LocalName(e.name), value)
		return
	}
	w.Printf("%s = %s", LocalName(e.name), value)
}

func (e *Var) GenerateAssignRef(w *emit.Writer, ref string) {
	e.mustBeAnalyzed()
	if e.scope.UsesSymbolTable() {
		w.Printf("%s = env.setRef(%s, %s)", LocalName(e.name), emit.Quote(e.name), ref)
		return
	}
	w.Printf("%s = %s", LocalName(e.name), ref)
}

// VarVar is a variable whose name is computed at run time ($$name).
type VarVar struct {
	base
	Name ast.Expr
}

func NewVarVar(tok token.Token, name ast.Expr) *VarVar {
	return &VarVar{base: base{tok}, Name: name}
}

func (e *VarVar) Analyze(info *flow.Info) error {
	if err := e.Name.Analyze(info); err != nil {
		return err
	}
	info.UseSymbolTable()
	return nil
}

func (e *VarVar) AnalyzeAssign(info *flow.Info) error { return e.Analyze(info) }
func (e *VarVar) AnalyzeRef(info *flow.Info) error    { return e.Analyze(info) }

func (e *VarVar) generateName(w *emit.Writer) {
	e.Name.Generate(w)
	w.Print(".toStringValue()")
}

func (e *VarVar) Generate(w *emit.Writer) {
	w.Print("env.getValue(")
	e.generateName(w)
	w.Print(")")
}

func (e *VarVar) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *VarVar) GenerateCopy(w *emit.Writer) {
	e.Generate(w)
	w.Print(".copy()")
}

func (e *VarVar) GenerateRef(w *emit.Writer) {
	w.Print("env.getVar(")
	e.generateName(w)
	w.Print(")")
}

func (e *VarVar) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }

func (e *VarVar) GenerateAssign(w *emit.Writer, value string) {
	e.GenerateRef(w)
	w.Printf(".set(%s)", value)
}

func (e *VarVar) GenerateAssignRef(w *emit.Writer, ref string) {
	w.Print("env.setRef(")
	e.generateName(w)
	w.Printf(", %s)", ref)
}

// Assign is $target = value, or $target = &value when ByRef is set.
type Assign struct {
	base
	Target ast.Assignable
	Value  ast.Expr
	ByRef  bool
}

func NewAssign(tok token.Token, target ast.Assignable, value ast.Expr, byRef bool) *Assign {
	return &Assign{base: base{tok}, Target: target, Value: value, ByRef: byRef}
}

func (e *Assign) Analyze(info *flow.Info) error {
	if e.ByRef {
		src, ok := e.Value.(ast.Assignable)
		if !ok {
			return util.Errorf(e.tok, "only variables can be assigned by reference")
		}
		if err := src.AnalyzeRef(info); err != nil {
			return err
		}
		return e.Target.AnalyzeRef(info)
	}
	if err := e.Value.Analyze(info); err != nil {
		return err
	}
	return e.Target.AnalyzeAssign(info)
}

func (e *Assign) GenerateStatement(w *emit.Writer) {
	if e.ByRef {
		ref := w.Capture(func() { e.Value.GenerateRef(w) })
		e.Target.GenerateAssignRef(w, ref)
		return
	}
	value := w.Capture(func() { e.Value.GenerateCopy(w) })
	e.Target.GenerateAssign(w, value)
}

func (e *Assign) Generate(w *emit.Writer) {
	w.Print("(")
	e.GenerateStatement(w)
	w.Print(")")
}

func (e *Assign) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *Assign) GenerateCopy(w *emit.Writer) {
	e.Generate(w)
	w.Print(".copy()")
}

func (e *Assign) GenerateRef(w *emit.Writer) { e.Generate(w) }

// Binary is an arithmetic, comparison or logical operator.
type Binary struct {
	base
	Op          token.Type
	Left, Right ast.Expr
}

func NewBinary(tok token.Token, op token.Type, left, right ast.Expr) *Binary {
	return &Binary{base: base{tok}, Op: op, Left: left, Right: right}
}

var arithMethods = map[token.Type]string{
	token.Plus:  "add",
	token.Minus: "sub",
	token.Star:  "mul",
	token.Slash: "div",
	token.Rem:   "mod",
}

var compareMethods = map[token.Type]string{
	token.Eq:           "eq",
	token.Neq:          "eq",
	token.Identical:    "eql",
	token.NotIdentical: "eql",
	token.Lt:           "lt",
	token.Gt:           "gt",
	token.Lte:          "leq",
	token.Gte:          "geq",
}

func (e *Binary) Analyze(info *flow.Info) error {
	if _, ok := arithMethods[e.Op]; !ok && e.Op != token.Dot && !e.Op.IsComparison() || e.Op == token.Not {
		return util.Errorf(e.tok, "unsupported binary operator")
	}
	if err := e.Left.Analyze(info); err != nil {
		return err
	}
	if e.Op == token.AndAnd || e.Op == token.OrOr {
		right := info.Copy()
		if err := e.Right.Analyze(right); err != nil {
			return err
		}
		info.Merge(right)
		return nil
	}
	return e.Right.Analyze(info)
}

func (e *Binary) Generate(w *emit.Writer) {
	if e.Op.IsComparison() {
		w.Print("BooleanValue.create(")
		e.GenerateBoolean(w)
		w.Print(")")
		return
	}
	if e.Op == token.Dot {
		w.Print("env.concat(")
		e.Left.Generate(w)
		w.Print(", ")
		e.Right.Generate(w)
		w.Print(")")
		return
	}
	e.Left.Generate(w)
	w.Printf(".%s(", arithMethods[e.Op])
	e.Right.Generate(w)
	w.Print(")")
}

func (e *Binary) GenerateBoolean(w *emit.Writer) {
	switch e.Op {
	case token.AndAnd, token.OrOr:
		op := " && "
		if e.Op == token.OrOr {
			op = " || "
		}
		w.Print("(")
		e.Left.GenerateBoolean(w)
		w.Print(op)
		e.Right.GenerateBoolean(w)
		w.Print(")")
	case token.Neq, token.NotIdentical:
		w.Print("! ")
		e.Left.Generate(w)
		w.Printf(".%s(", compareMethods[e.Op])
		e.Right.Generate(w)
		w.Print(")")
	default:
		if m, ok := compareMethods[e.Op]; ok {
			e.Left.Generate(w)
			w.Printf(".%s(", m)
			e.Right.Generate(w)
			w.Print(")")
			return
		}
		e.Generate(w)
		w.Print(".toBoolean()")
	}
}

func (e *Binary) GenerateCopy(w *emit.Writer)      { e.Generate(w) }
func (e *Binary) GenerateRef(w *emit.Writer)       { e.Generate(w) }
func (e *Binary) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }

// Not is logical negation.
type Not struct {
	base
	Expr ast.Expr
}

func NewNot(tok token.Token, x ast.Expr) *Not {
	return &Not{base: base{tok}, Expr: x}
}

func (e *Not) Analyze(info *flow.Info) error { return e.Expr.Analyze(info) }

func (e *Not) Generate(w *emit.Writer) {
	w.Print("BooleanValue.create(")
	e.GenerateBoolean(w)
	w.Print(")")
}

func (e *Not) GenerateBoolean(w *emit.Writer) {
	w.Print("! ")
	e.Expr.GenerateBoolean(w)
}

func (e *Not) GenerateCopy(w *emit.Writer)      { e.Generate(w) }
func (e *Not) GenerateRef(w *emit.Writer)       { e.Generate(w) }
func (e *Not) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }

// symbolTableFunctions read or write the caller's variables by name.
var symbolTableFunctions = map[string]bool{
	"extract":          true,
	"compact":          true,
	"get_defined_vars": true,
	"parse_str":        true,
	"eval":             true,
}

// Call invokes a named function.
type Call struct {
	base
	Name string
	Args []ast.Expr
}

func NewCall(tok token.Token, name string, args ...ast.Expr) *Call {
	return &Call{base: base{tok}, Name: name, Args: args}
}

func (e *Call) Analyze(info *flow.Info) error {
	for _, arg := range e.Args {
		if err := arg.Analyze(info); err != nil {
			return err
		}
	}
	if symbolTableFunctions[strings.ToLower(e.Name)] {
		info.UseSymbolTable()
	}
	return nil
}

func (e *Call) Generate(w *emit.Writer) {
	w.Printf("env.call(%s", emit.Quote(e.Name))
	for _, arg := range e.Args {
		w.Print(", ")
		arg.Generate(w)
	}
	w.Print(")")
}

func (e *Call) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *Call) GenerateCopy(w *emit.Writer) {
	e.Generate(w)
	w.Print(".copyReturn()")
}

func (e *Call) GenerateRef(w *emit.Writer)       { e.Generate(w) }
func (e *Call) GenerateStatement(w *emit.Writer) { e.Generate(w) }

// Constant is a global constant such as PHP_EOL.
type Constant struct {
	base
	Name string
}

func NewConstant(tok token.Token, name string) *Constant {
	return &Constant{base: base{tok}, Name: name}
}

func (e *Constant) Analyze(info *flow.Info) error { return nil }

func (e *Constant) Generate(w *emit.Writer) {
	w.Printf("env.getConstant(%s)", emit.Quote(e.Name))
}

func (e *Constant) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *Constant) GenerateCopy(w *emit.Writer)      { e.Generate(w) }
func (e *Constant) GenerateRef(w *emit.Writer)       { e.Generate(w) }
func (e *Constant) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }

// ClassConst is Class::NAME. The class may be self, parent or static, which
// only make sense inside a class body.
type ClassConst struct {
	base
	Class string
	Name  string

	scopeClass string
}

func NewClassConst(tok token.Token, class, name string) *ClassConst {
	return &ClassConst{base: base{tok}, Class: class, Name: name}
}

func (e *ClassConst) Analyze(info *flow.Info) error {
	switch strings.ToLower(e.Class) {
	case "self", "parent", "static":
		if info.Scope().Class == "" {
			return util.Errorf(e.tok, "cannot access %s::%s when no class scope is active", e.Class, e.Name)
		}
	}
	e.scopeClass = info.Scope().Class
	return nil
}

func (e *ClassConst) Generate(w *emit.Writer) {
	switch strings.ToLower(e.Class) {
	case "self":
		w.Printf("env.getClass(%s)", emit.Quote(e.scopeClass))
	case "parent":
		w.Printf("env.getClass(%s).getParent()", emit.Quote(e.scopeClass))
	case "static":
		w.Print("env.getCallingClass()")
	default:
		w.Printf("env.getClass(%s)", emit.Quote(e.Class))
	}
	w.Printf(".getConstant(env, %s)", emit.Quote(e.Name))
}

func (e *ClassConst) GenerateBoolean(w *emit.Writer) {
	e.Generate(w)
	w.Print(".toBoolean()")
}

func (e *ClassConst) GenerateCopy(w *emit.Writer)      { e.Generate(w) }
func (e *ClassConst) GenerateRef(w *emit.Writer)       { e.Generate(w) }
func (e *ClassConst) GenerateStatement(w *emit.Writer) { discard(w, e.Generate) }
