// Package driver implements the per-translation-unit orchestration that
// stands in for the downstream compiler (spec.md §5): for every source
// file on the command line it runs CoverageExtractor + MarkerPlan +
// SourceRewriter + CIDSerializer, then hands the rewritten command line
// to the real compiler. Independent translation units are fanned out
// over a bounded worker pool sized to the logical core count.
package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"coveron/internal/astcursor"
	"coveron/internal/config"
	"coveron/internal/diagnostics"
	"coveron/internal/extractor"
	"coveron/internal/markerplan"
	"coveron/internal/model"
	"coveron/internal/serializer"
	"coveron/internal/sourcefile"
)

// defaultRuntimeHeaderPath is the header the wrapper prologue #includes;
// it names the two marker macros and the ___COVERON_FILE_T struct
// (spec.md §6.2). New always uses it; Driver has no option to change it.
const defaultRuntimeHeaderPath = "coveron_runtime.h"

// TUError reports one translation unit's failure without aborting its
// siblings; Driver.Run collects every TUError before deciding the
// process exit code.
type TUError struct {
	SourceFile string
	Source     []byte
	Err        error
}

func (e *TUError) Error() string {
	return fmt.Sprintf("driver: %s: %s", e.SourceFile, e.Err)
}

func (e *TUError) Unwrap() error { return e.Err }

// Driver runs one instrumentation invocation end to end.
type Driver struct {
	cfg        config.Config
	provider   astcursor.Provider
	log        zerolog.Logger
	headerPath string
}

// New constructs a Driver. provider is the concrete ASTProvider adapter
// (normally astcursor.TreeSitterProvider); log should already carry any
// caller-configured sinks/levels.
func New(cfg config.Config, provider astcursor.Provider, log zerolog.Logger) *Driver {
	return &Driver{cfg: cfg, provider: provider, log: log, headerPath: defaultRuntimeHeaderPath}
}

// Run instruments every configured source file (fanned out over
// runtime.NumCPU() workers, per spec.md §5's recommended parallelism),
// rewrites the command line to point at the instrumented copies, then
// invokes the downstream compiler. It returns the process exit code the
// caller should use.
func (d *Driver) Run(ctx context.Context) int {
	errs := d.instrumentAll(ctx)
	for _, e := range errs {
		d.log.Error().Str("source", e.SourceFile).Err(e.Err).Msg("instrumentation failed")
		report := diagnostics.NewReporter(string(e.Source)).Format(diagnostics.Diagnostic{
			Level:   diagnostics.Error,
			Message: e.Err.Error(),
			File:    e.SourceFile,
		})
		fmt.Fprint(os.Stderr, report)
	}
	if len(errs) > 0 {
		return 1
	}

	exitCode, err := d.invokeCompiler()
	if err != nil {
		d.log.Error().Err(err).Msg("compiler invocation failed")
		return 1
	}
	return exitCode
}

// instrumentAll fans out one worker per source file, bounded to
// runtime.NumCPU() concurrent translation units.
func (d *Driver) instrumentAll(ctx context.Context) []*TUError {
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []*TUError

	for _, sf := range d.cfg.SourceFiles {
		sf := sf
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := d.instrumentOne(ctx, sf); err != nil {
				source, _ := os.ReadFile(sf.InputPath)
				mu.Lock()
				errs = append(errs, &TUError{SourceFile: sf.InputPath, Source: source, Err: err})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

// instrumentOne runs the full single-TU pipeline: cache check, parse,
// extract, plan, rewrite, serialize.
func (d *Driver) instrumentOne(ctx context.Context, sf sourcefile.SourceFile) error {
	source, err := os.ReadFile(sf.InputPath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	if !d.cfg.Force {
		if fresh, err := isCacheFresh(sf.CIDPath, source); err == nil && fresh {
			d.log.Info().Str("source", sf.InputPath).Msg("cache hit, skipping instrumentation")
			return nil
		}
	}

	store, err := model.New(sf.InputPath, source, sf.CRIPath, d.cfg.CheckpointMarkersEnabled, d.cfg.EvaluationMarkersEnabled)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	// ClangArgs already interleaves -D defines and -isystem include
	// paths in command-line order (ArgumentHandler built it that way),
	// so it is passed as defines and includePaths is left empty.
	root, err := d.provider.Parse(ctx, sf.InputPath, source, d.cfg.ClangArgs, nil)
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}

	ex := extractor.New(store, extractor.Options{
		CheckpointsEnabled: d.cfg.CheckpointMarkersEnabled,
		EvaluationsEnabled: d.cfg.EvaluationMarkersEnabled,
	}, sf.InputPath)
	if err := ex.ExtractTranslationUnit(root); err != nil {
		return fmt.Errorf("extracting: %w", err)
	}

	plan, err := markerplan.Build(store, markerplan.RuntimeConfig{
		HeaderPath:  d.headerPath,
		CRIBasename: filepath.Base(sf.CRIPath),
	})
	if err != nil {
		return fmt.Errorf("building marker plan: %w", err)
	}

	instrumented := markerplan.Apply(source, plan)
	if err := writeFileAtomic(sf.OutputPath, instrumented, 0o644); err != nil {
		return fmt.Errorf("writing instrumented source: %w", err)
	}

	payload, err := serializer.Marshal(store.Document(), serializer.Options{NoComp: d.cfg.NoCompCID})
	if err != nil {
		return fmt.Errorf("serializing CID: %w", err)
	}
	if err := writeFileAtomic(sf.CIDPath, payload, 0o644); err != nil {
		return fmt.Errorf("writing CID: %w", err)
	}

	d.log.Info().Str("source", sf.InputPath).Str("output", sf.OutputPath).Msg("instrumented")
	return nil
}

// writeFileAtomic writes data to a sibling temporary file in the same
// directory as path, then renames it into place, so that a crash or
// kill between open and flush never leaves a truncated .instr or .cid
// file for isCacheFresh (or the downstream compiler) to trip over
// (spec.md §6: "partial CID files must never be written").
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// invokeCompiler runs the configured compiler with CompilerArgs, having
// already redirected every detected source file to its .instr sibling.
func (d *Driver) invokeCompiler() (int, error) {
	args := redirectSourceArgs(d.cfg.CompilerArgs, d.cfg.SourceFiles)

	cmd := exec.Command(d.cfg.CompilerExec, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := isExitError(err, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// redirectSourceArgs replaces every recognized source-file argument with
// its instrumented sibling, leaving every other compiler argument
// untouched (spec.md §6.3).
func redirectSourceArgs(args []string, sourceFiles []sourcefile.SourceFile) []string {
	redirect := make(map[string]string, len(sourceFiles))
	for _, sf := range sourceFiles {
		redirect[sf.InputPath] = sf.OutputPath
	}

	out := make([]string, len(args))
	for i, a := range args {
		if out2, ok := redirect[a]; ok {
			out[i] = out2
			continue
		}
		out[i] = a
	}
	return out
}
