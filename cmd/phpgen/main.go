package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xplshn/phpgen/pkg/cli"
	"github.com/xplshn/phpgen/pkg/codegen"
	"github.com/xplshn/phpgen/pkg/config"
	"github.com/xplshn/phpgen/pkg/loader"
	"github.com/xplshn/phpgen/pkg/util"
)

func main() {
	app := cli.NewApp("phpgen")
	app.Synopsis = "[options] <ast.yaml> ..."
	app.Description = "Compiles parsed PHP scripts, given as YAML syntax trees, into Java source for the Quercus runtime."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/phpgen>"
	app.Since = 2025

	var (
		outDir     string
		pkgName    string
		configFile string
		toStdout   bool
		allWarn    bool
		noWarn     bool
	)

	fs := app.FlagSet
	fs.String(&outDir, "output", "o", ".", "Write generated classes into <dir>.", "dir")
	fs.String(&pkgName, "package", "p", "", "Java package of the generated classes.", "name")
	fs.String(&configFile, "config", "c", "", "Read settings from a YAML file before applying flags.", "file")
	fs.Bool(&toStdout, "stdout", "", false, "Print generated source instead of writing files.")
	fs.Bool(&allWarn, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&noWarn, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) == 0 {
			err := errors.New("no input files specified")
			util.PrintError(err)
			return err
		}

		// the config file is the base layer, flags override it
		if configFile != "" {
			if err := cfg.LoadFile(configFile); err != nil {
				util.PrintError(err)
				return err
			}
		}
		if allWarn {
			cfg.ProcessFlags([]string{"Wall"})
		}
		if noWarn {
			cfg.ProcessFlags([]string{"Wno-all"})
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if pkgName != "" {
			cfg.Package = pkgName
		}

		files, err := loadFiles(inputFiles)
		if err != nil {
			util.PrintError(err)
			return err
		}

		failed := false
		for _, f := range files {
			prog := f.Program
			src, err := codegen.Compile(cfg, prog)
			if err != nil {
				reportAll(err)
				failed = true
				continue
			}
			if toStdout {
				fmt.Print(src)
				continue
			}
			out := filepath.Join(outDir, codegen.UnitName(prog.File)+".java")
			if err := os.WriteFile(out, []byte(src), 0o644); err != nil {
				util.PrintError(err)
				failed = true
				continue
			}
			fmt.Fprintf(os.Stderr, "%s -> %s\n", prog.File, out)
		}
		if failed {
			return errors.New("compilation failed")
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// loadFiles decodes every input and registers the scripts they describe so
// diagnostics and line markers can name them.
func loadFiles(paths []string) ([]*loader.File, error) {
	var files []*loader.File
	var records []util.SourceFileRecord
	for i, path := range paths {
		f, err := loader.LoadFile(path, i)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		records = append(records, util.SourceFileRecord{Name: f.Program.File, Content: []rune(f.Source)})
	}
	util.SetSourceFiles(records)
	return files, nil
}

// reportAll prints each error of a joined error on its own.
func reportAll(err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			reportAll(e)
		}
		return
	}
	util.PrintError(err)
}
