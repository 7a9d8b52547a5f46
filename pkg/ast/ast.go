// Package ast defines the statement tree handed to the code generator and the
// protocol expressions implement to take part in analysis and generation.
package ast

import (
	"github.com/xplshn/phpgen/pkg/emit"
	"github.com/xplshn/phpgen/pkg/flow"
	"github.com/xplshn/phpgen/pkg/token"
)

// NodeType defines the kind of a statement node
type NodeType int

// Statement kinds. The set is closed; every consumer switches over all of it.
const (
	Text NodeType = iota
	Echo
	ExprStmt
	Null
	Return
	ReturnRef
	Throw
	FuncDef
	ClassDef
	Block
	If
	While
	DoWhile
	For
	Foreach
	Switch
	Break
	Continue
	Try
	Global
	VarGlobal
	Static
)

var nodeTypeNames = [...]string{
	Text: "text", Echo: "echo", ExprStmt: "expr", Null: "null",
	Return: "return", ReturnRef: "return-ref", Throw: "throw",
	FuncDef: "function", ClassDef: "class", Block: "block", If: "if",
	While: "while", DoWhile: "do", For: "for", Foreach: "foreach",
	Switch: "switch", Break: "break", Continue: "continue", Try: "try",
	Global: "global", VarGlobal: "global-var", Static: "static",
}

func (t NodeType) String() string {
	if int(t) >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "unknown"
}

// Node is a statement. Nodes are never mutated after construction; compiler
// results are kept in side tables keyed by *Node.
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// Expr is the contract between statements and the expression compiler.
type Expr interface {
	Tok() token.Token
	Analyze(info *flow.Info) error
	Generate(w *emit.Writer)
	GenerateBoolean(w *emit.Writer)
	GenerateCopy(w *emit.Writer)
	GenerateRef(w *emit.Writer)
	GenerateStatement(w *emit.Writer)
}

// Assignable is an expression that can be the target of an assignment.
// GenerateAssign and GenerateAssignRef print an assignment expression without
// the trailing semicolon.
type Assignable interface {
	Expr
	AnalyzeAssign(info *flow.Info) error
	AnalyzeRef(info *flow.Info) error
	GenerateAssign(w *emit.Writer, value string)
	GenerateAssignRef(w *emit.Writer, ref string)
}

// VarExpr is a plain named variable.
type VarExpr interface {
	Assignable
	Name() string
}

// --- Node Data Structs ---
type TextNode struct{ Value string }
type EchoNode struct{ Exprs []Expr }
type ExprStmtNode struct{ Expr Expr }
type NullNode struct{}
type ReturnNode struct{ Expr Expr }
type ReturnRefNode struct{ Expr Expr }
type ThrowNode struct{ Expr Expr }
type FuncDefNode struct{ Func *Function }
type ClassDefNode struct{ Class *Class }
type BlockNode struct{ Stmts []*Node }
type IfNode struct {
	Cond       Expr
	Then, Else *Node
}
type WhileNode struct {
	Cond Expr
	Body *Node
}
type DoWhileNode struct {
	Body *Node
	Cond Expr
}
type ForNode struct {
	Init, Cond, Incr Expr
	Body             *Node
}
type ForeachNode struct {
	Expr  Expr
	Key   Assignable
	Value Assignable
	ByRef bool
	Body  *Node
}
type SwitchCase struct {
	Tok       token.Token
	Values    []Expr
	IsDefault bool
	Body      *Node
}
type SwitchNode struct {
	Subject Expr
	Cases   []*SwitchCase
}

// BreakNode carries either a static Level or a LevelExpr evaluated at run
// time. A bare break has Level 1.
type BreakNode struct {
	Level     int
	LevelExpr Expr
}
type ContinueNode struct {
	Level     int
	LevelExpr Expr
}
type CatchClause struct {
	Tok   token.Token
	Class string
	Var   Assignable
	Body  *Node
}
type TryNode struct {
	Body    *Node
	Catches []*CatchClause
}
type GlobalNode struct{ Var VarExpr }
type VarGlobalNode struct{ Name Expr }
type StaticNode struct {
	Var  VarExpr
	Init Expr
}

// Param is a function parameter.
type Param struct {
	Name    string
	ByRef   bool
	Default Expr
}

// Function is a function or method body. Class is empty for plain functions.
type Function struct {
	Tok        token.Token
	Name       string
	Params     []*Param
	Body       *Node
	ReturnsRef bool
	IsStatic   bool
	Class      string
}

type Class struct {
	Tok     token.Token
	Name    string
	Parent  string
	Methods []*Function
}

// Program is one compilation unit: top-level code plus the functions and
// classes declared unconditionally at file scope.
type Program struct {
	File      string
	Main      *Node
	Functions []*Function
	Classes   []*Class
}

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewText(tok token.Token, value string) *Node {
	return newNode(tok, Text, TextNode{Value: value})
}
func NewEcho(tok token.Token, exprs ...Expr) *Node {
	return newNode(tok, Echo, EchoNode{Exprs: exprs})
}
func NewExprStmt(tok token.Token, expr Expr) *Node {
	return newNode(tok, ExprStmt, ExprStmtNode{Expr: expr})
}
func NewNull(tok token.Token) *Node {
	return newNode(tok, Null, NullNode{})
}
func NewReturn(tok token.Token, expr Expr) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr})
}
func NewReturnRef(tok token.Token, expr Expr) *Node {
	return newNode(tok, ReturnRef, ReturnRefNode{Expr: expr})
}
func NewThrow(tok token.Token, expr Expr) *Node {
	return newNode(tok, Throw, ThrowNode{Expr: expr})
}
func NewFuncDef(tok token.Token, fn *Function) *Node {
	return newNode(tok, FuncDef, FuncDefNode{Func: fn})
}
func NewClassDef(tok token.Token, cl *Class) *Node {
	return newNode(tok, ClassDef, ClassDefNode{Class: cl})
}
func NewBlock(tok token.Token, stmts ...*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts})
}
func NewIf(tok token.Token, cond Expr, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: thenBody, Else: elseBody})
}
func NewWhile(tok token.Token, cond Expr, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewDoWhile(tok token.Token, body *Node, cond Expr) *Node {
	return newNode(tok, DoWhile, DoWhileNode{Body: body, Cond: cond})
}
func NewFor(tok token.Token, init, cond, incr Expr, body *Node) *Node {
	return newNode(tok, For, ForNode{Init: init, Cond: cond, Incr: incr, Body: body})
}
func NewForeach(tok token.Token, expr Expr, key, value Assignable, byRef bool, body *Node) *Node {
	return newNode(tok, Foreach, ForeachNode{Expr: expr, Key: key, Value: value, ByRef: byRef, Body: body})
}
func NewSwitch(tok token.Token, subject Expr, cases []*SwitchCase) *Node {
	return newNode(tok, Switch, SwitchNode{Subject: subject, Cases: cases})
}
func NewBreak(tok token.Token, level int, levelExpr Expr) *Node {
	return newNode(tok, Break, BreakNode{Level: level, LevelExpr: levelExpr})
}
func NewContinue(tok token.Token, level int, levelExpr Expr) *Node {
	return newNode(tok, Continue, ContinueNode{Level: level, LevelExpr: levelExpr})
}
func NewTry(tok token.Token, body *Node, catches []*CatchClause) *Node {
	return newNode(tok, Try, TryNode{Body: body, Catches: catches})
}
func NewGlobal(tok token.Token, v VarExpr) *Node {
	return newNode(tok, Global, GlobalNode{Var: v})
}
func NewVarGlobal(tok token.Token, name Expr) *Node {
	return newNode(tok, VarGlobal, VarGlobalNode{Name: name})
}
func NewStatic(tok token.Token, v VarExpr, init Expr) *Node {
	return newNode(tok, Static, StaticNode{Var: v, Init: init})
}
