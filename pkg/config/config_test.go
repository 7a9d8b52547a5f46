package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/phpgen/pkg/cli"
)

func enabledWarnings(c *Config) []string {
	var out []string
	for i := Warning(0); i < WarnCount; i++ {
		if c.IsWarningEnabled(i) {
			out = append(out, c.Warnings[i].Name)
		}
	}
	return out
}

func TestDefaults(t *testing.T) {
	c := NewConfig()
	if c.Package != "_quercus" || c.IndentWidth != 2 {
		t.Errorf("package %q indent %d", c.Package, c.IndentWidth)
	}
	if diff := cmp.Diff(DefaultImports, c.Imports); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
	if !c.IsFeatureEnabled(FeatLineMarkers) || c.IsFeatureEnabled(FeatLegacyBreakZero) {
		t.Error("feature defaults changed")
	}
	if c.IsWarningEnabled(WarnUndefinedVar) || !c.IsWarningEnabled(WarnUnreachableCode) {
		t.Error("warning defaults changed")
	}

	// every table entry is reachable by name
	for i := Warning(0); i < WarnCount; i++ {
		if c.WarningMap[c.Warnings[i].Name] != i {
			t.Errorf("warning %d not indexed by name", i)
		}
	}
	for i := Feature(0); i < FeatCount; i++ {
		if c.FeatureMap[c.Features[i].Name] != i {
			t.Errorf("feature %d not indexed by name", i)
		}
	}

	c.Imports[0] = "changed"
	if DefaultImports[0] == "changed" {
		t.Error("config shares its import list with DefaultImports")
	}
}

func TestProcessFlags(t *testing.T) {
	c := NewConfig()
	// -Wall applies first regardless of position
	c.ProcessFlags([]string{"Wno-unreachable-code", "Wall", "Flegacy-break-zero", "Fno-line-markers", "Wbogus"})

	want := []string{"switch-continue", "break-outside", "break-depth", "undefined-var", "extra"}
	if diff := cmp.Diff(want, enabledWarnings(c)); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
	if !c.IsFeatureEnabled(FeatLegacyBreakZero) || c.IsFeatureEnabled(FeatLineMarkers) {
		t.Error("feature flags not applied")
	}

	c.ProcessFlags([]string{"Wno-all", "Wbreak-depth"})
	if diff := cmp.Diff([]string{"break-depth"}, enabledWarnings(c)); diff != "" {
		t.Errorf("warnings after -Wno-all (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	c := NewConfig()
	err := c.Load([]byte(`
package: com.example.pages
indent: 4
imports: [com.example.Runtime]
features:
  line-markers: false
warnings:
  all: false
  unreachable-code: true
flags: [-Flegacy-break-zero]
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Package != "com.example.pages" || c.IndentWidth != 4 {
		t.Errorf("package %q indent %d", c.Package, c.IndentWidth)
	}
	if diff := cmp.Diff([]string{"com.example.Runtime"}, c.Imports); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"unreachable-code"}, enabledWarnings(c)); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
	if c.IsFeatureEnabled(FeatLineMarkers) || !c.IsFeatureEnabled(FeatLegacyBreakZero) {
		t.Error("features not applied")
	}
}

func TestLoadKeepsUnsetFields(t *testing.T) {
	c := NewConfig()
	if err := c.Load([]byte("indent: 0\n")); err != nil {
		t.Fatal(err)
	}
	if c.Package != "_quercus" || c.IndentWidth != 2 || len(c.Imports) != len(DefaultImports) {
		t.Errorf("empty settings overrode defaults: %q %d %v", c.Package, c.IndentWidth, c.Imports)
	}
}

func TestLoadErrors(t *testing.T) {
	for src, want := range map[string]string{
		"features: {warp-drive: true}\n": "unknown feature 'warp-drive'",
		"warnings: {nope: true}\n":       "unknown warning 'nope'",
		"indent: [\n":                    "parsing config",
	} {
		err := NewConfig().Load([]byte(src))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("Load(%q) = %v, want %q", src, err, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phpgen.yaml")
	if err := os.WriteFile(path, []byte("package: site\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewConfig()
	if err := c.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if c.Package != "site" {
		t.Errorf("Package = %q", c.Package)
	}
	if err := c.LoadFile(filepath.Join(t.TempDir(), "none.yaml")); err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Errorf("missing file: %v", err)
	}
}

func TestFlagGroups(t *testing.T) {
	c := NewConfig()
	fs := cli.NewFlagSet("test")
	warnings, features := c.SetupFlagGroups(fs)
	if len(warnings) != int(WarnCount) || len(features) != int(FeatCount) {
		t.Fatalf("got %d warning and %d feature entries", len(warnings), len(features))
	}
	if fs.Lookup("Wundefined-var") == nil || fs.Lookup("Fno-line-markers") == nil {
		t.Fatal("group switches not registered")
	}

	// a switch that is both enabled and disabled ends up disabled
	args := []string{"-Wundefined-var", "-Wno-unreachable-code", "-Flegacy-break-zero", "-Wextra", "-Wno-extra"}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	c.ApplyFlagGroups(warnings, features)

	want := []string{"switch-continue", "break-outside", "break-depth", "undefined-var"}
	if diff := cmp.Diff(want, enabledWarnings(c)); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
	if !c.IsFeatureEnabled(FeatLegacyBreakZero) || !c.IsFeatureEnabled(FeatLineMarkers) {
		t.Error("features not applied")
	}
}
