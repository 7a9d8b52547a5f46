package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type parsed struct {
	Out   string
	Pkg   string
	Raw   bool
	Incl  []string
	Args  []string
	WAll  bool
	WNone bool
}

func newTestSet() (*FlagSet, *parsed) {
	p := &parsed{}
	fs := NewFlagSet("test")
	fs.String(&p.Out, "output", "o", ".", "Output directory.", "dir")
	fs.String(&p.Pkg, "package", "p", "", "Package name.", "name")
	fs.Bool(&p.Raw, "stdout", "", false, "Print to stdout.")
	fs.List(&p.Incl, "include", "I", nil, "Include path.", "path")
	fs.Bool(&p.WAll, "Wall", "", false, "All warnings.")
	fs.Bool(&p.WNone, "Wno-all", "", false, "No warnings.")
	return fs, p
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want parsed
	}{
		{"defaults", []string{"a.yaml"}, parsed{Out: ".", Args: []string{"a.yaml"}}},
		{"long forms", []string{"--output", "gen", "--package=web", "--stdout", "a.yaml"},
			parsed{Out: "gen", Pkg: "web", Raw: true, Args: []string{"a.yaml"}}},
		{"shorthands", []string{"-o", "gen", "-pweb", "-I", "x", "-Iy"},
			parsed{Out: "gen", Pkg: "web", Incl: []string{"x", "y"}}},
		{"single dash names", []string{"-Wall", "-Wno-all", "b.yaml"},
			parsed{Out: ".", WAll: true, WNone: true, Args: []string{"b.yaml"}}},
		{"explicit bool", []string{"--stdout=false"}, parsed{Out: "."}},
		{"terminator", []string{"--", "-o", "x"}, parsed{Out: ".", Args: []string{"-o", "x"}}},
		{"lone dash is an argument", []string{"-"}, parsed{Out: ".", Args: []string{"-"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, p := newTestSet()
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			p.Args = fs.Args()
			if diff := cmp.Diff(tt.want, *p); diff != "" {
				t.Errorf("parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--nope"},
		{"-x"},
		{"--output"},
		{"--stdout=maybe"},
	} {
		fs, _ := newTestSet()
		if err := fs.Parse(args); err == nil {
			t.Errorf("Parse(%q) succeeded", args)
		}
	}
}

func TestRedefinitionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("redefining a flag did not panic")
		}
	}()
	fs, _ := newTestSet()
	var s string
	fs.String(&s, "output", "", "", "", "")
}

func TestFlagGroups(t *testing.T) {
	fs := NewFlagSet("test")
	entries := []FlagGroupEntry{
		{Name: "unreachable-code", Prefix: "W", Usage: "Unreachable code.", Enabled: new(bool), Disabled: new(bool), Default: true},
		{Name: "undefined-var", Prefix: "W", Usage: "Undefined variables.", Enabled: new(bool), Disabled: new(bool)},
	}
	fs.AddFlagGroup("Warning Flags", "Warnings", "warning", "Available Warnings:", entries)

	if err := fs.Parse([]string{"-Wundefined-var", "-Wno-unreachable-code"}); err != nil {
		t.Fatal(err)
	}
	got := []bool{*entries[0].Enabled, *entries[0].Disabled, *entries[1].Enabled, *entries[1].Disabled}
	if diff := cmp.Diff([]bool{false, true, true, false}, got); diff != "" {
		t.Errorf("group flags (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	var out string
	app := NewApp("tool")
	app.FlagSet.String(&out, "output", "o", ".", "Output directory.", "dir")
	var gotArgs []string
	app.Action = func(args []string) error {
		gotArgs = args
		return nil
	}
	if err := app.Run([]string{"-o", "gen", "in.yaml"}); err != nil {
		t.Fatal(err)
	}
	if out != "gen" || !cmp.Equal(gotArgs, []string{"in.yaml"}) {
		t.Errorf("out %q args %q", out, gotArgs)
	}
}

func TestRunReportsBadFlags(t *testing.T) {
	var stderr bytes.Buffer
	app := NewApp("tool")
	app.Stderr = &stderr
	app.Synopsis = "[options] <file>"
	app.Action = func([]string) error {
		t.Error("action ran after a parse error")
		return nil
	}
	if err := app.Run([]string{"--bogus"}); err == nil {
		t.Fatal("expected an error")
	}
	msg := stderr.String()
	for _, want := range []string{"unknown flag: --bogus", "Usage: tool [options] <file>", "Run 'tool --help'"} {
		if !strings.Contains(msg, want) {
			t.Errorf("stderr lacks %q:\n%s", want, msg)
		}
	}
}

func TestHelp(t *testing.T) {
	var stdout bytes.Buffer
	app := NewApp("tool")
	app.Stdout = &stdout
	app.Synopsis = "[options] <file>"
	app.Description = "Does things."
	app.Authors = []string{"someone"}
	var out string
	app.FlagSet.String(&out, "output", "o", ".", "Output directory.", "dir")
	app.FlagSet.AddFlagGroup("Feature Flags", "Features", "feature", "Available Features:", []FlagGroupEntry{
		{Name: "line-markers", Prefix: "F", Usage: "Emit markers.", Enabled: new(bool), Disabled: new(bool), Default: true},
	})
	app.Action = func([]string) error {
		t.Error("action ran with --help")
		return nil
	}
	if err := app.Run([]string{"--help"}); err != nil {
		t.Fatal(err)
	}
	help := stdout.String()
	for _, want := range []string{
		"Synopsis",
		"tool [options] <file>",
		"Does things.",
		"-o, --output <dir>",
		"|.|",
		"Feature Flags",
		"-F<feature>",
		"-Fno-<feature>",
		"line-markers",
		"|x|",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help lacks %q:\n%s", want, help)
		}
	}
	if strings.Contains(help, "--Fline-markers") {
		t.Errorf("group switches listed as plain options:\n%s", help)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	if diff := cmp.Diff([]string{"one two", "three", "four"}, got); diff != "" {
		t.Errorf("wrap (-want +got):\n%s", diff)
	}
	if len(wrapText("", 10)) != 0 {
		t.Error("empty text wrapped to lines")
	}
}
