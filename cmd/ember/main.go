package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/ember-lang/ember/pkg/config"
	"github.com/ember-lang/ember/pkg/driver"
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/image"
	"github.com/ember-lang/ember/pkg/source"
)

func main() {
	disFlag := flag.Bool("dis", false, "Disassemble the image instead of running it")
	traceFlag := flag.Bool("trace", false, "Trace instruction execution to stderr")
	depthFlag := flag.Int("depth", 0, "Maximum call depth (0 uses ember.toml or the default)")
	verbosityFlag := flag.Int("v", 0, "Log verbosity")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: ember [options] <image.evm>\n")
		flag.PrintDefaults()
		os.Exit(64) // command line usage error
	}
	path := flag.Arg(0)

	cfg, err := config.FindAndLoad(filepath.Dir(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		os.Exit(78) // configuration error
	}
	verbosity := *verbosityFlag
	if verbosity == 0 {
		verbosity = cfg.Log.Verbosity
	}
	commonlog.Configure(verbosity, nil)

	prog, err := image.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		os.Exit(65) // data format error
	}

	if *disFlag {
		fmt.Print(prog.Disassemble())
		return
	}

	depth := cfg.VM.MaxCallDepth
	if *depthFlag > 0 {
		depth = *depthFlag
	}
	session := driver.NewSession(driver.Options{
		MaxCallDepth: depth,
		Stdout:       os.Stdout,
		Trace:        *traceFlag || cfg.VM.Trace,
	})
	if _, rerr := session.Run(prog); rerr != nil {
		printDiagnostics(path, session.Diagnostics())
		os.Exit(70) // internal software error
	}
}

func printDiagnostics(path string, diags []errors.Diagnostic) {
	// Images carry spans but not source text; render against the file when
	// it still sits next to the image, positions only otherwise.
	var file *source.File
	if data, err := os.ReadFile(sourceFileFor(path)); err == nil {
		file = source.FromFile(sourceFileFor(path), string(data))
	}
	if file != nil {
		fmt.Fprint(os.Stderr, errors.Render(file, diags))
		return
	}
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", d.Kind, d.Message)
	}
}

func sourceFileFor(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return imagePath[:len(imagePath)-len(ext)] + ".em"
}
