package loader

import (
	"strconv"
	"strings"

	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/expr"
	"github.com/xplshn/phpgen/pkg/token"
	"gopkg.in/yaml.v3"
)

// exprList accepts a single expression or a list of them.
func (d *decoder) exprList(n *yaml.Node) ([]ast.Expr, error) {
	if n == nil {
		return nil, d.errorf(orSelf(n), "expected an expression")
	}
	if n.Kind != yaml.SequenceNode {
		e, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		return []ast.Expr{e}, nil
	}
	out := make([]ast.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		e, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) assignable(n *yaml.Node) (ast.Assignable, error) {
	e, err := d.expr(n)
	if err != nil {
		return nil, err
	}
	lv, ok := e.(ast.Assignable)
	if !ok {
		return nil, d.errorf(n, "expected a variable")
	}
	return lv, nil
}

// literal converts a plain scalar using its resolved YAML tag.
func (d *decoder) literal(n *yaml.Node) (ast.Expr, error) {
	tok := d.tok(n)
	switch n.Tag {
	case "!!null":
		return expr.NewLiteral(tok, nil), nil
	case "!!bool":
		b, err := d.boolean(n)
		if err != nil {
			return nil, err
		}
		return expr.NewLiteral(tok, b), nil
	case "!!int":
		var x int64
		if err := n.Decode(&x); err != nil {
			return nil, d.errorf(n, "integer literal out of range")
		}
		return expr.NewLiteral(tok, x), nil
	case "!!float":
		x, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, d.errorf(n, "bad float literal %q", n.Value)
			}
			x = f
		}
		return expr.NewLiteral(tok, x), nil
	}
	return expr.NewLiteral(tok, n.Value), nil
}

func (d *decoder) expr(n *yaml.Node) (ast.Expr, error) {
	if n == nil {
		return nil, d.errorf(orSelf(n), "expected an expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return d.literal(n)
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "expected a scalar or a mapping expression")
	}
	if len(n.Content) != 2 {
		return nil, d.errorf(n, "an expression mapping must have exactly one key")
	}
	kind, body := n.Content[0].Value, n.Content[1]
	tok := d.tok(n)

	switch kind {
	case "lit":
		if body.Kind != yaml.ScalarNode {
			return nil, d.errorf(body, "lit takes a scalar")
		}
		return d.literal(body)

	case "var":
		name, err := d.str(body)
		if err != nil {
			return nil, err
		}
		return expr.NewVar(tok, strings.TrimPrefix(name, "$")), nil

	case "varvar":
		name, err := d.expr(body)
		if err != nil {
			return nil, err
		}
		return expr.NewVarVar(tok, name), nil

	case "const":
		name, err := d.str(body)
		if err != nil {
			return nil, err
		}
		return expr.NewConstant(tok, name), nil

	case "classconst":
		f, err := d.fields(body, "class", "name")
		if err != nil {
			return nil, err
		}
		class, err := d.str(f["class"])
		if err != nil {
			return nil, err
		}
		name, err := d.str(f["name"])
		if err != nil {
			return nil, err
		}
		return expr.NewClassConst(tok, class, name), nil

	case "not":
		x, err := d.expr(body)
		if err != nil {
			return nil, err
		}
		return expr.NewNot(tok, x), nil

	case "bin":
		return d.binary(tok, body)

	case "assign":
		f, err := d.fields(body, "target", "value", "ref")
		if err != nil {
			return nil, err
		}
		target, err := d.assignable(f["target"])
		if err != nil {
			return nil, err
		}
		value, err := d.expr(f["value"])
		if err != nil {
			return nil, err
		}
		byRef, err := d.boolean(f["ref"])
		if err != nil {
			return nil, err
		}
		return expr.NewAssign(tok, target, value, byRef), nil

	case "call":
		f, err := d.fields(body, "name", "args")
		if err != nil {
			return nil, err
		}
		name, err := d.str(f["name"])
		if err != nil {
			return nil, err
		}
		var args []ast.Expr
		if !isNull(f["args"]) {
			if args, err = d.exprList(f["args"]); err != nil {
				return nil, err
			}
		}
		return expr.NewCall(tok, name, args...), nil
	}
	return nil, d.errorf(n, "unknown expression kind %q", kind)
}

func (d *decoder) binary(tok token.Token, n *yaml.Node) (ast.Expr, error) {
	f, err := d.fields(n, "op", "left", "right")
	if err != nil {
		return nil, err
	}
	sym, err := d.str(f["op"])
	if err != nil {
		return nil, err
	}
	op, ok := token.Lookup(sym)
	if !ok || op == token.Not {
		return nil, d.errorf(f["op"], "unknown binary operator %q", sym)
	}
	left, err := d.expr(f["left"])
	if err != nil {
		return nil, err
	}
	right, err := d.expr(f["right"])
	if err != nil {
		return nil, err
	}
	tok.Type, tok.Value, tok.Len = op, sym, len(sym)
	return expr.NewBinary(tok, op, left, right), nil
}
