package emit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/phpgen/pkg/token"
)

func TestIndentation(t *testing.T) {
	w := NewWriter(2)
	w.Println("while (x) {")
	w.PushDepth()
	w.Print("a(")
	w.Print("b")
	w.Println(");")
	w.Println("")
	w.PushDepth()
	w.Printlnf("c(%d);", 1)
	w.PopDepth()
	w.PopDepth()
	w.Println("}")
	w.PopDepth() // extra pops are ignored

	want := "while (x) {\n  a(b);\n\n    c(1);\n}\n"
	if diff := cmp.Diff(want, w.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if w.Depth() != 0 {
		t.Errorf("depth = %d after balanced pops", w.Depth())
	}
}

func TestTempNamesAreUnique(t *testing.T) {
	w := NewWriter(4)
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		for _, prefix := range []string{"foreach", "sw", "ex"} {
			name := w.Temp(prefix)
			if seen[name] {
				t.Fatalf("duplicate temporary %q", name)
			}
			seen[name] = true
		}
	}
	if got := w.Temp("sw"); got != "sw_16" {
		t.Errorf("Temp = %q, want sw_16", got)
	}
}

func TestCapture(t *testing.T) {
	w := NewWriter(2)
	w.PushDepth()
	w.Print("x = ")
	inner := w.Capture(func() { w.Printf("f(%s)", w.Temp("t")) })
	w.Println(inner + ";")

	if inner != "f(t_1)" {
		t.Errorf("captured %q", inner)
	}
	if diff := cmp.Diff("  x = f(t_1);\n", w.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestLineMarkers(t *testing.T) {
	w := NewWriter(2)
	w.SetLocation(token.Token{Line: 3})
	w.Println("a;")

	w.EnableLineMarkers([]string{"index.php", "lib.php"})
	w.SetLocation(token.Token{FileIndex: 0, Line: 4})
	w.Println("b;")
	w.SetLocation(token.Token{FileIndex: 0, Line: 4})
	w.Println("c;")
	w.Print("d(")
	w.SetLocation(token.Token{FileIndex: 1, Line: 9})
	w.Println(");")
	w.SetLocation(token.Token{FileIndex: 7, Line: 1})

	want := "a;\n// index.php:4\nb;\nc;\nd(\n// lib.php:9\n);\n// unknown:1\n"
	if diff := cmp.Diff(want, w.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{`say "hi"`, `"say \"hi\""`},
		{`C:\dir`, `"C:\\dir"`},
		{"a\nb\tc\r", `"a\nb\tc\r"`},
		{"\x01", `"\u0001"`},
		{"é", `"\u00e9"`},
		{"😀", `"\ud83d\ude00"`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
