package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/token"
	"golang.org/x/term"
)

// Output receives warnings and printed errors.
var Output io.Writer = os.Stderr

// SourceFileRecord tracks the name and, when known, content of a single
// source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source records for all input files for rich
// error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// SourceFileNames returns the file names indexed by token.Token.FileIndex.
func SourceFileNames() []string {
	names := make([]string, len(sourceFiles))
	for i, rec := range sourceFiles {
		names[i] = rec.Name
	}
	return names
}

// findFileAndLine converts a token to a file-specific location
func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

func useColor() bool {
	f, ok := Output.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func paint(code, s string) string {
	if !useColor() {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// printErrorLine prints the source line and a caret indicating the position
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}
	content := sourceFiles[tok.FileIndex].Content
	if len(content) == 0 {
		return
	}

	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	col := tok.Column
	if col < 1 {
		col = 1
	}
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", col-1), paint("32", caret))
}

// Diagnostic is a compile-time error attached to a source position.
type Diagnostic struct {
	Tok token.Token
	Msg string
}

func (d *Diagnostic) Error() string {
	filename, line, col := findFileAndLine(d.Tok)
	return fmt.Sprintf("%s:%d:%d: %s", filename, line, col, d.Msg)
}

// Errorf builds a located compile-time error.
func Errorf(tok token.Token, format string, args ...interface{}) error {
	return &Diagnostic{Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// PrintError reports err on Output, with the source line when err carries a
// position.
func PrintError(err error) {
	var d *Diagnostic
	if errors.As(err, &d) {
		filename, line, col := findFileAndLine(d.Tok)
		fmt.Fprintf(Output, "%s:%d:%d: %s %s\n", filename, line, col, paint("31", "error:"), errMessage(err, d))
		printErrorLine(Output, d.Tok)
		return
	}
	fmt.Fprintf(Output, "phpgen: %s %v\n", paint("31", "error:"), err)
}

// errMessage keeps any wrapping context around the diagnostic text without
// repeating the location prefix.
func errMessage(err error, d *Diagnostic) string {
	full, loc := err.Error(), d.Error()
	if prefix, ok := strings.CutSuffix(full, loc); ok {
		return prefix + d.Msg
	}
	return d.Msg
}

// Warn prints a formatted warning message if the corresponding warning is
// enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Output, "%s:%d:%d: %s ", filename, line, col, paint("33", "warning:"))
	fmt.Fprintf(Output, format, args...)
	fmt.Fprintf(Output, " [-W%s]\n", cfg.Warnings[wt].Name)
	printErrorLine(Output, tok)
}
