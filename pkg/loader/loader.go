// Package loader reads a YAML encoding of a parsed script and builds the
// statement tree the code generator consumes. It stands in for a real
// front end: every statement is a single-key mapping naming its kind, and
// every expression is either a scalar literal or a single-key mapping.
//
//	file: hello.php
//	main:
//	  - echo: ["hello", {var: name}]
//	  - while:
//	      cond: {bin: {op: "<", left: {var: i}, right: 10}}
//	      body:
//	        - expr: {assign: {target: {var: i}, value: {bin: {op: "+", left: {var: i}, right: 1}}}}
//
// A statement mapping may also carry "line" and "col" keys giving its
// position in the script; otherwise the position of the YAML node is used.
package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/expr"
	"github.com/xplshn/phpgen/pkg/token"
	"gopkg.in/yaml.v3"
)

// File is one decoded compilation unit.
type File struct {
	Program *ast.Program
	// Source is the script text when the document embeds it, used for
	// caret lines in diagnostics.
	Source string
}

type document struct {
	File      string    `yaml:"file"`
	Source    string    `yaml:"source"`
	Main      yaml.Node `yaml:"main"`
	Functions yaml.Node `yaml:"functions"`
	Classes   yaml.Node `yaml:"classes"`
}

type decoder struct {
	path      string
	fileIndex int
}

// LoadFile reads and decodes the document at path. Tokens are stamped with
// fileIndex so diagnostics can name the script.
func LoadFile(path string, fileIndex int) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, data, fileIndex)
}

// Load decodes a document. path is only used in error messages and as the
// default script name.
func Load(path string, data []byte, fileIndex int) (*File, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d := &decoder{path: path, fileIndex: fileIndex}

	prog := &ast.Program{File: doc.File}
	if prog.File == "" {
		prog.File = path
	}

	var err error
	if prog.Main, err = d.block(&doc.Main); err != nil {
		return nil, err
	}
	if prog.Functions, err = d.functions(&doc.Functions, ""); err != nil {
		return nil, err
	}
	if doc.Classes.Kind != 0 {
		if doc.Classes.Kind != yaml.SequenceNode {
			return nil, d.errorf(&doc.Classes, "classes must be a list")
		}
		for _, n := range doc.Classes.Content {
			cl, err := d.class(n)
			if err != nil {
				return nil, err
			}
			prog.Classes = append(prog.Classes, cl)
		}
	}
	return &File{Program: prog, Source: doc.Source}, nil
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d:%d: %s", d.path, n.Line, n.Column, fmt.Sprintf(format, args...))
}

func (d *decoder) tok(n *yaml.Node) token.Token {
	return token.Token{FileIndex: d.fileIndex, Line: n.Line, Column: n.Column, Len: 1}
}

// fields indexes the keys of a mapping node.
func (d *decoder) fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	m := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		ok := len(allowed) == 0
		for _, a := range allowed {
			if a == key {
				ok = true
				break
			}
		}
		if !ok {
			return nil, d.errorf(n.Content[i], "unexpected key %q", key)
		}
		m[key] = n.Content[i+1]
	}
	return m, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func (d *decoder) str(n *yaml.Node) (string, error) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", d.errorf(orSelf(n), "expected a string")
	}
	return n.Value, nil
}

func (d *decoder) boolean(n *yaml.Node) (bool, error) {
	if isNull(n) {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, d.errorf(n, "expected a boolean")
	}
	return b, nil
}

func orSelf(n *yaml.Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{}
	}
	return n
}

// block decodes a statement list. A missing list is an empty block.
func (d *decoder) block(n *yaml.Node) (*ast.Node, error) {
	if isNull(n) {
		return ast.NewBlock(d.tok(orSelf(n))), nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list of statements")
	}
	stmts := make([]*ast.Node, 0, len(n.Content))
	for _, c := range n.Content {
		s, err := d.stmt(c)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return ast.NewBlock(d.tok(n), stmts...), nil
}

func (d *decoder) stmt(n *yaml.Node) (*ast.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "a statement must be a mapping with one key naming its kind")
	}
	tok := d.tok(n)
	var kind string
	var body *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case "line", "col":
			x, err := strconv.Atoi(v.Value)
			if err != nil {
				return nil, d.errorf(v, "%s must be an integer", k.Value)
			}
			if k.Value == "line" {
				tok.Line = x
			} else {
				tok.Column = x
			}
		default:
			if kind != "" {
				return nil, d.errorf(k, "statement has both %q and %q", kind, k.Value)
			}
			kind, body = k.Value, v
		}
	}
	if kind == "" {
		return nil, d.errorf(n, "empty statement")
	}

	switch kind {
	case "text":
		s, err := d.str(body)
		if err != nil {
			return nil, err
		}
		return ast.NewText(tok, s), nil

	case "echo":
		exprs, err := d.exprList(body)
		if err != nil {
			return nil, err
		}
		return ast.NewEcho(tok, exprs...), nil

	case "expr":
		e, err := d.expr(body)
		if err != nil {
			return nil, err
		}
		return ast.NewExprStmt(tok, e), nil

	case "null":
		return ast.NewNull(tok), nil

	case "return", "return-ref", "throw":
		var e ast.Expr
		if !isNull(body) {
			var err error
			if e, err = d.expr(body); err != nil {
				return nil, err
			}
		}
		switch kind {
		case "return":
			return ast.NewReturn(tok, e), nil
		case "return-ref":
			if e == nil {
				return nil, d.errorf(n, "return-ref needs an expression")
			}
			return ast.NewReturnRef(tok, e), nil
		}
		if e == nil {
			return nil, d.errorf(n, "throw needs an expression")
		}
		return ast.NewThrow(tok, e), nil

	case "function":
		fn, err := d.function(body, "")
		if err != nil {
			return nil, err
		}
		return ast.NewFuncDef(tok, fn), nil

	case "class":
		cl, err := d.class(body)
		if err != nil {
			return nil, err
		}
		return ast.NewClassDef(tok, cl), nil

	case "block":
		b, err := d.block(body)
		if err != nil {
			return nil, err
		}
		b.Tok = tok
		return b, nil

	case "if":
		return d.ifStmt(tok, body)
	case "while", "do":
		return d.whileStmt(tok, kind, body)
	case "for":
		return d.forStmt(tok, body)
	case "foreach":
		return d.foreachStmt(tok, body)
	case "switch":
		return d.switchStmt(tok, body)
	case "break", "continue":
		return d.jumpStmt(tok, kind, body)
	case "try":
		return d.tryStmt(tok, body)
	case "global":
		return d.globalStmt(tok, body)
	case "global-var":
		e, err := d.expr(body)
		if err != nil {
			return nil, err
		}
		return ast.NewVarGlobal(tok, e), nil
	case "static":
		return d.staticStmt(tok, body)
	}
	return nil, d.errorf(n, "unknown statement kind %q", kind)
}

func (d *decoder) ifStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	f, err := d.fields(n, "cond", "then", "else")
	if err != nil {
		return nil, err
	}
	cond, err := d.expr(f["cond"])
	if err != nil {
		return nil, err
	}
	then, err := d.block(f["then"])
	if err != nil {
		return nil, err
	}
	var els *ast.Node
	if e := f["else"]; !isNull(e) {
		if els, err = d.block(e); err != nil {
			return nil, err
		}
		// else { if ... } is an else-if
		if stmts := els.Data.(ast.BlockNode).Stmts; len(stmts) == 1 && stmts[0].Type == ast.If {
			els = stmts[0]
		}
	}
	return ast.NewIf(tok, cond, then, els), nil
}

func (d *decoder) whileStmt(tok token.Token, kind string, n *yaml.Node) (*ast.Node, error) {
	f, err := d.fields(n, "cond", "body")
	if err != nil {
		return nil, err
	}
	cond, err := d.expr(f["cond"])
	if err != nil {
		return nil, err
	}
	body, err := d.block(f["body"])
	if err != nil {
		return nil, err
	}
	if kind == "do" {
		return ast.NewDoWhile(tok, body, cond), nil
	}
	return ast.NewWhile(tok, cond, body), nil
}

func (d *decoder) forStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	f, err := d.fields(n, "init", "cond", "incr", "body")
	if err != nil {
		return nil, err
	}
	var parts [3]ast.Expr
	for i, key := range []string{"init", "cond", "incr"} {
		if isNull(f[key]) {
			continue
		}
		if parts[i], err = d.expr(f[key]); err != nil {
			return nil, err
		}
	}
	body, err := d.block(f["body"])
	if err != nil {
		return nil, err
	}
	return ast.NewFor(tok, parts[0], parts[1], parts[2], body), nil
}

func (d *decoder) foreachStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	f, err := d.fields(n, "expr", "key", "value", "ref", "body")
	if err != nil {
		return nil, err
	}
	subject, err := d.expr(f["expr"])
	if err != nil {
		return nil, err
	}
	var key ast.Assignable
	if !isNull(f["key"]) {
		if key, err = d.assignable(f["key"]); err != nil {
			return nil, err
		}
	}
	value, err := d.assignable(f["value"])
	if err != nil {
		return nil, err
	}
	byRef, err := d.boolean(f["ref"])
	if err != nil {
		return nil, err
	}
	body, err := d.block(f["body"])
	if err != nil {
		return nil, err
	}
	return ast.NewForeach(tok, subject, key, value, byRef, body), nil
}

// switchStmt groups consecutive labels without a body into the arm that
// follows them, so `case 1: case 2: X` becomes one arm with two values.
func (d *decoder) switchStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	f, err := d.fields(n, "subject", "cases")
	if err != nil {
		return nil, err
	}
	subject, err := d.expr(f["subject"])
	if err != nil {
		return nil, err
	}
	cases := f["cases"]
	if isNull(cases) {
		return ast.NewSwitch(tok, subject, nil), nil
	}
	if cases.Kind != yaml.SequenceNode {
		return nil, d.errorf(cases, "cases must be a list")
	}

	var arms []*ast.SwitchCase
	var open *ast.SwitchCase
	for _, c := range cases.Content {
		cf, err := d.fields(c, "case", "default", "body")
		if err != nil {
			return nil, err
		}
		if open == nil {
			open = &ast.SwitchCase{Tok: d.tok(c)}
		}
		if v, ok := cf["case"]; ok {
			values, err := d.exprList(v)
			if err != nil {
				return nil, err
			}
			open.Values = append(open.Values, values...)
		}
		isDefault, err := d.boolean(cf["default"])
		if err != nil {
			return nil, err
		}
		open.IsDefault = open.IsDefault || isDefault
		if _, ok := cf["case"]; !ok && !isDefault {
			return nil, d.errorf(c, "a switch arm needs case values or default: true")
		}
		body, ok := cf["body"]
		if !ok {
			continue
		}
		if open.Body, err = d.block(body); err != nil {
			return nil, err
		}
		arms = append(arms, open)
		open = nil
	}
	if open != nil {
		open.Body = ast.NewBlock(open.Tok)
		arms = append(arms, open)
	}
	return ast.NewSwitch(tok, subject, arms), nil
}

// jumpStmt accepts `break:` (level 1), `break: 2`, or `break: {level: expr}`.
func (d *decoder) jumpStmt(tok token.Token, kind string, n *yaml.Node) (*ast.Node, error) {
	level := 1
	var levelExpr ast.Expr
	switch {
	case isNull(n):
	case n.Kind == yaml.ScalarNode:
		x, err := strconv.Atoi(n.Value)
		if err != nil {
			return nil, d.errorf(n, "%s level must be an integer", kind)
		}
		level = x
	default:
		f, err := d.fields(n, "level")
		if err != nil {
			return nil, err
		}
		e, err := d.expr(f["level"])
		if err != nil {
			return nil, err
		}
		if lit, ok := e.(*expr.Literal); ok {
			if x, ok := lit.IntValue(); ok {
				level = int(x)
				break
			}
		}
		levelExpr = e
	}
	if kind == "continue" {
		return ast.NewContinue(tok, level, levelExpr), nil
	}
	return ast.NewBreak(tok, level, levelExpr), nil
}

func (d *decoder) tryStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	f, err := d.fields(n, "body", "catches")
	if err != nil {
		return nil, err
	}
	body, err := d.block(f["body"])
	if err != nil {
		return nil, err
	}
	var catches []*ast.CatchClause
	if cs := f["catches"]; !isNull(cs) {
		if cs.Kind != yaml.SequenceNode {
			return nil, d.errorf(cs, "catches must be a list")
		}
		for _, c := range cs.Content {
			cf, err := d.fields(c, "class", "var", "body")
			if err != nil {
				return nil, err
			}
			class, err := d.str(cf["class"])
			if err != nil {
				return nil, err
			}
			clause := &ast.CatchClause{Tok: d.tok(c), Class: class}
			if v := cf["var"]; !isNull(v) {
				name, err := d.str(v)
				if err != nil {
					return nil, err
				}
				clause.Var = expr.NewVar(d.tok(v), strings.TrimPrefix(name, "$"))
			}
			if clause.Body, err = d.block(cf["body"]); err != nil {
				return nil, err
			}
			catches = append(catches, clause)
		}
	}
	return ast.NewTry(tok, body, catches), nil
}

// globalStmt accepts one name or a list; several names become a block.
func (d *decoder) globalStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	names, err := d.names(n)
	if err != nil {
		return nil, err
	}
	stmts := make([]*ast.Node, len(names))
	for i, name := range names {
		stmts[i] = ast.NewGlobal(tok, expr.NewVar(tok, name))
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return ast.NewBlock(tok, stmts...), nil
}

func (d *decoder) staticStmt(tok token.Token, n *yaml.Node) (*ast.Node, error) {
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		items = n.Content
	}
	var stmts []*ast.Node
	for _, item := range items {
		var name string
		var init ast.Expr
		if item.Kind == yaml.ScalarNode {
			name = item.Value
		} else {
			f, err := d.fields(item, "name", "init")
			if err != nil {
				return nil, err
			}
			if name, err = d.str(f["name"]); err != nil {
				return nil, err
			}
			if !isNull(f["init"]) {
				if init, err = d.expr(f["init"]); err != nil {
					return nil, err
				}
			}
		}
		stmts = append(stmts, ast.NewStatic(tok, expr.NewVar(tok, strings.TrimPrefix(name, "$")), init))
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return ast.NewBlock(tok, stmts...), nil
}

func (d *decoder) names(n *yaml.Node) ([]string, error) {
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		items = n.Content
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		s, err := d.str(item)
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(s, "$"))
	}
	return names, nil
}

func (d *decoder) functions(n *yaml.Node, class string) ([]*ast.Function, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list of functions")
	}
	var fns []*ast.Function
	for _, c := range n.Content {
		fn, err := d.function(c, class)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

func (d *decoder) function(n *yaml.Node, class string) (*ast.Function, error) {
	f, err := d.fields(n, "name", "params", "body", "ref", "static")
	if err != nil {
		return nil, err
	}
	fn := &ast.Function{Tok: d.tok(n), Class: class}
	if fn.Name, err = d.str(f["name"]); err != nil {
		return nil, err
	}
	if fn.ReturnsRef, err = d.boolean(f["ref"]); err != nil {
		return nil, err
	}
	if fn.IsStatic, err = d.boolean(f["static"]); err != nil {
		return nil, err
	}
	if ps := f["params"]; !isNull(ps) {
		if ps.Kind != yaml.SequenceNode {
			return nil, d.errorf(ps, "params must be a list")
		}
		for _, p := range ps.Content {
			param, err := d.param(p)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param)
		}
	}
	if fn.Body, err = d.block(f["body"]); err != nil {
		return nil, err
	}
	return fn, nil
}

func (d *decoder) param(n *yaml.Node) (*ast.Param, error) {
	if n.Kind == yaml.ScalarNode {
		return &ast.Param{Name: strings.TrimPrefix(n.Value, "$")}, nil
	}
	f, err := d.fields(n, "name", "ref", "default")
	if err != nil {
		return nil, err
	}
	p := &ast.Param{}
	name, err := d.str(f["name"])
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimPrefix(name, "$")
	if p.ByRef, err = d.boolean(f["ref"]); err != nil {
		return nil, err
	}
	if def, ok := f["default"]; ok {
		if p.Default, err = d.expr(def); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (d *decoder) class(n *yaml.Node) (*ast.Class, error) {
	f, err := d.fields(n, "name", "parent", "methods")
	if err != nil {
		return nil, err
	}
	cl := &ast.Class{Tok: d.tok(n)}
	if cl.Name, err = d.str(f["name"]); err != nil {
		return nil, err
	}
	if p := f["parent"]; !isNull(p) {
		if cl.Parent, err = d.str(p); err != nil {
			return nil, err
		}
	}
	if cl.Methods, err = d.functions(f["methods"], cl.Name); err != nil {
		return nil, err
	}
	return cl, nil
}
