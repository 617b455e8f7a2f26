// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"coveron/internal/astcursor"
	"coveron/internal/config"
	"coveron/internal/diagnostics"
	"coveron/internal/driver"
)

func main() {
	cfg, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		report := diagnostics.NewReporter("").Format(diagnostics.Diagnostic{
			Level:   diagnostics.Error,
			Message: err.Error(),
		})
		fmt.Fprint(os.Stderr, report)
		os.Exit(1)
	}

	log := newLogger(cfg.Verbose)

	if len(cfg.SourceFiles) == 0 {
		log.Warn().Msg("no source files detected on the command line; forwarding straight to the compiler")
	}

	provider := astcursor.NewTreeSitterProvider()
	drv := driver.New(cfg, provider, log)

	exitCode := drv.Run(context.Background())
	if exitCode == 0 {
		color.Green("✅ instrumentation and compilation succeeded")
	} else {
		fmt.Fprintln(os.Stderr, "coveron-instrument: instrumentation or compilation failed")
	}
	os.Exit(exitCode)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
