package token

// Type identifies the operator carried by an expression node.
type Type int

const (
	Invalid Type = iota
	Plus
	Minus
	Star
	Slash
	Rem
	Dot // string concatenation
	Eq
	Neq
	Identical
	NotIdentical
	Lt
	Gt
	Lte
	Gte
	AndAnd
	OrOr
	Not
)

var opSymbols = map[string]Type{
	"+":   Plus,
	"-":   Minus,
	"*":   Star,
	"/":   Slash,
	"%":   Rem,
	".":   Dot,
	"==":  Eq,
	"!=":  Neq,
	"<>":  Neq,
	"===": Identical,
	"!==": NotIdentical,
	"<":   Lt,
	">":   Gt,
	"<=":  Lte,
	">=":  Gte,
	"&&":  AndAnd,
	"and": AndAnd,
	"||":  OrOr,
	"or":  OrOr,
	"!":   Not,
}

// Lookup maps the source spelling of an operator to its Type.
func Lookup(sym string) (Type, bool) {
	t, ok := opSymbols[sym]
	return t, ok
}

// IsComparison reports whether the operator yields a host boolean.
func (t Type) IsComparison() bool {
	switch t {
	case Eq, Neq, Identical, NotIdentical, Lt, Gt, Lte, Gte, AndAnd, OrOr, Not:
		return true
	}
	return false
}

// Token is a source position. Statements and expressions carry one so that
// diagnostics and line markers can point back into the script.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
