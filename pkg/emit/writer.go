// Package emit provides the text sink the code generator writes host source
// into.
package emit

import (
	"fmt"
	"strings"

	"github.com/xplshn/phpgen/pkg/token"
)

// Writer accumulates generated source with block indentation.
type Writer struct {
	sb          *strings.Builder
	levels      []uint8
	baseUnit    uint8
	atLineStart bool
	ids         int

	markers  bool
	files    []string
	lastFile int
	lastLine int
}

func NewWriter(indentWidth int) *Writer {
	if indentWidth <= 0 {
		indentWidth = 2
	}
	return &Writer{
		sb:          &strings.Builder{},
		levels:      []uint8{0},
		baseUnit:    uint8(indentWidth),
		atLineStart: true,
		lastFile:    -1,
	}
}

// EnableLineMarkers makes SetLocation emit "// file:line" comments. files is
// indexed by token.Token.FileIndex.
func (w *Writer) EnableLineMarkers(files []string) {
	w.markers = true
	w.files = files
}

func (w *Writer) PushDepth() {
	w.levels = append(w.levels, w.levels[len(w.levels)-1]+1)
}

func (w *Writer) PopDepth() {
	if len(w.levels) > 1 {
		w.levels = w.levels[:len(w.levels)-1]
	}
}

// Depth is the current nesting level.
func (w *Writer) Depth() int { return int(w.levels[len(w.levels)-1]) }

func (w *Writer) indent() {
	if w.atLineStart {
		w.sb.WriteString(strings.Repeat(" ", int(w.baseUnit*w.levels[len(w.levels)-1])))
		w.atLineStart = false
	}
}

func (w *Writer) Print(s string) {
	if s == "" {
		return
	}
	w.indent()
	w.sb.WriteString(s)
}

func (w *Writer) Printf(format string, args ...interface{}) {
	w.Print(fmt.Sprintf(format, args...))
}

// Println writes s and ends the line. An empty s writes a blank line.
func (w *Writer) Println(s string) {
	w.Print(s)
	w.sb.WriteByte('\n')
	w.atLineStart = true
}

func (w *Writer) Printlnf(format string, args ...interface{}) {
	w.Println(fmt.Sprintf(format, args...))
}

// NewID returns a number unique within this writer, used to build temporary
// and label names that never collide.
func (w *Writer) NewID() int {
	w.ids++
	return w.ids
}

// Temp returns a fresh host identifier with the given prefix.
func (w *Writer) Temp(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, w.NewID())
}

// SetLocation records the source position of the next statement. When line
// markers are enabled and the position moved, a marker comment is written.
func (w *Writer) SetLocation(tok token.Token) {
	if !w.markers || tok.Line == 0 {
		return
	}
	if tok.FileIndex == w.lastFile && tok.Line == w.lastLine {
		return
	}
	w.lastFile, w.lastLine = tok.FileIndex, tok.Line
	name := "unknown"
	if tok.FileIndex >= 0 && tok.FileIndex < len(w.files) {
		name = w.files[tok.FileIndex]
	}
	if !w.atLineStart {
		w.Println("")
	}
	w.Printlnf("// %s:%d", name, tok.Line)
}

func (w *Writer) String() string { return w.sb.String() }

// Capture runs fn and returns what it printed instead of appending it to the
// output. Identifiers handed out by NewID inside fn stay unique.
func (w *Writer) Capture(fn func()) string {
	saved, savedStart := w.sb, w.atLineStart
	w.sb, w.atLineStart = &strings.Builder{}, false
	fn()
	out := w.sb.String()
	w.sb, w.atLineStart = saved, savedStart
	return out
}

// Quote renders s as a host string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r > 0x7e {
				if r > 0xffff {
					// surrogate pair
					r -= 0x10000
					fmt.Fprintf(&sb, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
				} else {
					fmt.Fprintf(&sb, `\u%04x`, r)
				}
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
