// Package config implements the driver's configuration surface
// (spec.md §6.3), parsed from the compiler command line the instrumenter
// was invoked in place of.
package config

import "coveron/internal/sourcefile"

// Config is the fully resolved instrumentation run, mirroring the
// original instrumenter's Configuration module (see
// original_source/coveron_instrumenter/Configuration.py).
type Config struct {
	CompilerExec string

	CheckpointMarkersEnabled bool
	EvaluationMarkersEnabled bool
	Verbose                  bool
	Force                    bool
	PollPPD                  bool
	NoCompCID                bool

	// OutputAbsPath is the directory .instr/.cid/.cri siblings are
	// written into, derived from a `-o`/`--output` compiler flag when
	// present.
	OutputAbsPath string

	SourceFiles []sourcefile.SourceFile

	// CompilerArgs is forwarded verbatim to the downstream compiler
	// invocation, with source files already redirected to their .instr
	// counterparts by the driver.
	CompilerArgs []string

	// ClangArgs is handed to the AST provider: every pass-through
	// compiler argument (everything except source files, -c and the
	// output arguments), then (if PollPPD is set) preprocessor defines
	// polled from the compiler itself, then -isystem paths discovered
	// from the compiler.
	ClangArgs []string
}

// Default returns the zero-value defaults both marker classes enabled,
// matching ArgumentHandler's argparse defaults.
func Default() Config {
	return Config{
		CheckpointMarkersEnabled: true,
		EvaluationMarkersEnabled: true,
	}
}
