package codegen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/phpgen/pkg/ast"
	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/emit"
	"github.com/xplshn/phpgen/pkg/flow"
	"github.com/xplshn/phpgen/pkg/token"
	"github.com/xplshn/phpgen/pkg/util"
)

// Term classifies how control leaves a statement. The order matters:
// joining two branches keeps the weaker of the two.
type Term int

const (
	Continues     Term = iota // control may reach the next statement
	ExitsViaBreak             // every path jumps to an enclosing loop or switch label
	Terminates                // every path returns or throws
)

func (t Term) String() string {
	switch t {
	case Continues:
		return "continues"
	case ExitsViaBreak:
		return "exits-via-break"
	case Terminates:
		return "terminates"
	}
	return fmt.Sprintf("Term(%d)", int(t))
}

type warnKey struct {
	wt  config.Warning
	tok token.Token
	msg string
}

// Context carries the state of one compilation unit. Analysis results are
// stored in side tables keyed by statement node; the tree itself is never
// modified.
type Context struct {
	cfg *config.Config
	w   *emit.Writer

	terms      map[*ast.Node]Term
	loops      map[*ast.Node]*flow.Loop
	targeted   map[*flow.Loop]bool
	staticKeys map[*ast.Node]string
	jumps      map[*ast.Node]*jump
	labels     []*flow.Loop

	labelCount  int
	staticCount int
	classCount  int

	funcNames  map[*ast.Function]string
	classNames map[*ast.Class]string
	pending    []interface{} // *ast.Function or *ast.Class awaiting emission
	warned     map[warnKey]bool
}

func NewContext(cfg *config.Config) *Context {
	w := emit.NewWriter(cfg.IndentWidth)
	if cfg.IsFeatureEnabled(config.FeatLineMarkers) {
		w.EnableLineMarkers(util.SourceFileNames())
	}
	return &Context{
		cfg:        cfg,
		w:          w,
		terms:      make(map[*ast.Node]Term),
		loops:      make(map[*ast.Node]*flow.Loop),
		targeted:   make(map[*flow.Loop]bool),
		staticKeys: make(map[*ast.Node]string),
		jumps:      make(map[*ast.Node]*jump),
		funcNames:  make(map[*ast.Function]string),
		classNames: make(map[*ast.Class]string),
		warned:     make(map[warnKey]bool),
	}
}

// Writer is the sink Generate writes into.
func (ctx *Context) Writer() *emit.Writer { return ctx.w }

func (ctx *Context) newLabel(prefix string) string {
	ctx.labelCount++
	return fmt.Sprintf("%s_%d", prefix, ctx.labelCount)
}

// loopFor returns the context of a loop or switch statement, creating its
// labels the first time the statement is analyzed.
func (ctx *Context) loopFor(node *ast.Node, isSwitch bool) *flow.Loop {
	if l, ok := ctx.loops[node]; ok {
		return l
	}
	var l *flow.Loop
	if isSwitch {
		label := ctx.newLabel("switch")
		l = &flow.Loop{Break: label, Continue: label, IsSwitch: true}
	} else {
		label := ctx.newLabel("loop")
		l = &flow.Loop{Break: label, Continue: label}
	}
	ctx.loops[node] = l
	return l
}

func (ctx *Context) loopOf(node *ast.Node) *flow.Loop {
	l, ok := ctx.loops[node]
	if !ok {
		panic(fmt.Sprintf("codegen: %v statement generated before analysis", node.Type))
	}
	return l
}

func (ctx *Context) pushLabel(l *flow.Loop) { ctx.labels = append(ctx.labels, l) }
func (ctx *Context) popLabel()              { ctx.labels = ctx.labels[:len(ctx.labels)-1] }

func (ctx *Context) warn(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	key := warnKey{wt: wt, tok: tok, msg: fmt.Sprintf(format, args...)}
	if ctx.warned[key] {
		return
	}
	ctx.warned[key] = true
	util.Warn(ctx.cfg, wt, tok, "%s", key.msg)
}

// FallThrough reports the classification recorded by the last analysis of
// node.
func (ctx *Context) FallThrough(node *ast.Node) Term {
	t, ok := ctx.terms[node]
	if !ok {
		panic(fmt.Sprintf("codegen: fallThrough of %v statement before analysis", node.Type))
	}
	return t
}

// UnitName derives the host class name of a compilation unit from its
// source path. The hash keeps names distinct for same-named files in
// different directories.
func UnitName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("_%s__%08x", sanitize(base), uint32(xxhash.Sum64String(path)))
}

func sanitize(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
