package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xplshn/phpgen/pkg/cli"
	"gopkg.in/yaml.v3"
)

type Feature int

const (
	FeatLineMarkers Feature = iota
	FeatLegacyBreakZero
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnSwitchContinue
	WarnBreakOutside
	WarnBreakDepth
	WarnUndefinedVar
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features    map[Feature]Info
	Warnings    map[Warning]Info
	FeatureMap  map[string]Feature
	WarningMap  map[string]Warning
	Package     string
	IndentWidth int
	Imports     []string
}

// DefaultImports are the runtime packages every generated unit imports.
var DefaultImports = []string{
	"com.caucho.quercus.env.*",
	"com.caucho.quercus.function.*",
	"com.caucho.quercus.program.*",
	"com.caucho.quercus.QuercusRuntimeException",
	"com.caucho.quercus.QuercusDieException",
	"com.caucho.quercus.QuercusExitException",
}

func NewConfig() *Config {
	cfg := &Config{
		Features:    make(map[Feature]Info),
		Warnings:    make(map[Warning]Info),
		FeatureMap:  make(map[string]Feature),
		WarningMap:  make(map[string]Warning),
		Package:     "_quercus",
		IndentWidth: 2,
		Imports:     append([]string(nil), DefaultImports...),
	}

	features := map[Feature]Info{
		FeatLineMarkers:     {"line-markers", true, "Emit '// file:line' comments mapping generated code back to the script."},
		FeatLegacyBreakZero: {"legacy-break-zero", false, "Treat 'break 0' and 'continue 0' as level 1 instead of a runtime error."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that can never run and are not emitted."},
		WarnSwitchContinue:  {"switch-continue", true, "Warn when 'continue' targets a switch, where it acts like 'break'."},
		WarnBreakOutside:    {"break-outside", true, "Warn about 'break'/'continue' outside any loop or switch."},
		WarnBreakDepth:      {"break-depth", true, "Warn when a 'break'/'continue' level exceeds the loop nesting."},
		WarnUndefinedVar:    {"undefined-var", false, "Warn about reads of variables that are never assigned on any path."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// fileConfig is the on-disk form read by LoadFile.
type fileConfig struct {
	Package  string          `yaml:"package"`
	Indent   int             `yaml:"indent"`
	Imports  []string        `yaml:"imports"`
	Features map[string]bool `yaml:"features"`
	Warnings map[string]bool `yaml:"warnings"`
	Flags    []string        `yaml:"flags"`
}

// LoadFile applies the settings of a YAML configuration file on top of c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return c.Load(data)
}

func (c *Config) Load(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if fc.Package != "" {
		c.Package = fc.Package
	}
	if fc.Indent > 0 {
		c.IndentWidth = fc.Indent
	}
	if len(fc.Imports) > 0 {
		c.Imports = fc.Imports
	}
	for _, name := range sortedKeys(fc.Features) {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(ft, fc.Features[name])
	}
	for _, name := range sortedKeys(fc.Warnings) {
		if name == "all" {
			c.setAllWarnings(fc.Warnings[name])
			continue
		}
		wt, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(wt, fc.Warnings[name])
	}
	flags := make([]string, len(fc.Flags))
	for i, f := range fc.Flags {
		flags[i] = strings.TrimPrefix(f, "-")
	}
	c.ProcessFlags(flags)
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// "all" first so specific entries override it
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "all" || keys[j] == "all" {
			return keys[i] == "all"
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (c *Config) setAllWarnings(enable bool) {
	for i := Warning(0); i < WarnCount; i++ {
		c.SetWarning(i, enable)
	}
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		c.setAllWarnings(enable)
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -W/-F style flags in order, with -Wall and -Wno-all
// taking effect before any specific flag.
func (c *Config) ProcessFlags(flags []string) {
	for _, f := range flags {
		if f == "Wall" || f == "Wno-all" {
			c.applyFlag("-" + f)
		}
	}
	for _, f := range flags {
		if f != "Wall" && f != "Wno-all" {
			c.applyFlag("-" + f)
		}
	}
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name>
// for every warning and feature. The returned entries are indexed by
// Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	warnings = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}
	features = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		features[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable code generation features", "feature", "Available Features:", features)
	return warnings, features
}

// ApplyFlagGroups copies the state of the entries returned by
// SetupFlagGroups into c. Explicit -no- flags win over enabling ones.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for i, entry := range warnings {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range features {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
