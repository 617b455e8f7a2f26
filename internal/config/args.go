package config

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"coveron/internal/sourcefile"
)

// knownFlagNames are the CVR_* flags this instrumenter understands
// (spec.md §6.3), grounded on original_source/coveron_instrumenter's
// ArgumentHandler.py. Everything else on the command line belongs to
// the downstream compiler.
var knownFlagNames = map[string]bool{
	"--CVR_COMPILER_EXEC": true,
	"--CVR_NO_CHECKPOINT": true,
	"--CVR_NO_EVALUATION": true,
	"--CVR_VERBOSE":       true,
	"--CVR_FORCE":         true,
	"--CVR_POLL_PPD":      true,
	"--CVR_NOCOMP_CID":    true,
}

// ParseArgs parses the instrumenter's view of a compiler command line:
// the CVR_* flags configure the instrumenter itself, everything else is
// either a source file (redirected to its .instr sibling by the
// driver), an output-path argument, or passed through to the compiler
// untouched.
func ParseArgs(argv []string) (Config, error) {
	cfg := Default()

	knownArgs, otherArgs := splitKnownArgs(argv)

	fs := pflag.NewFlagSet("coveron-instrument", pflag.ContinueOnError)
	compilerExec := fs.String("CVR_COMPILER_EXEC", "", "path to the executable of the downstream compiler")
	noCheckpoint := fs.Bool("CVR_NO_CHECKPOINT", false, "disable checkpoint markers")
	noEvaluation := fs.Bool("CVR_NO_EVALUATION", false, "disable evaluation markers")
	verbose := fs.Bool("CVR_VERBOSE", false, "run in verbose mode")
	force := fs.Bool("CVR_FORCE", false, "ignore the CID cache and always re-instrument")
	pollPPD := fs.Bool("CVR_POLL_PPD", false, "poll preprocessor defines from the compiler before parsing")
	nocompCID := fs.Bool("CVR_NOCOMP_CID", false, "write the CID file as plain JSON instead of gzip")

	if err := fs.Parse(knownArgs); err != nil {
		return Config{}, fmt.Errorf("config: parsing instrumenter flags: %w", err)
	}
	if *compilerExec == "" {
		return Config{}, fmt.Errorf("config: --CVR_COMPILER_EXEC is required")
	}

	cfg.CompilerExec = *compilerExec
	cfg.CheckpointMarkersEnabled = !*noCheckpoint
	cfg.EvaluationMarkersEnabled = !*noEvaluation
	cfg.Verbose = *verbose
	cfg.Force = *force
	cfg.PollPPD = *pollPPD
	cfg.NoCompCID = *nocompCID

	if err := parseOtherArgs(&cfg, otherArgs); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// splitKnownArgs separates the CVR_* tokens (and, for
// --CVR_COMPILER_EXEC, its following value) from every other argument,
// mirroring argparse's parse_known_args split in the original
// ArgumentHandler.
func splitKnownArgs(argv []string) (known, other []string) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name := arg
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			name = arg[:eq]
		}
		if !knownFlagNames[name] {
			other = append(other, arg)
			continue
		}
		known = append(known, arg)
		if name == "--CVR_COMPILER_EXEC" && !strings.Contains(arg, "=") && i+1 < len(argv) {
			known = append(known, argv[i+1])
			i++
		}
	}
	return known, other
}

// parseOtherArgs walks the compiler-facing arguments, detecting source
// files and the output path, and builds CompilerArgs/ClangArgs. Ported
// from ArgumentHandler._parse_other_args.
func parseOtherArgs(cfg *Config, otherArgs []string) error {
	var compilerArgs, clangArgs []string

	for i := 0; i < len(otherArgs); i++ {
		arg := otherArgs[i]
		lower := strings.ToLower(arg)

		switch {
		case !strings.HasPrefix(arg, "-") && sourcefile.IsSource(arg):
			cfg.SourceFiles = append(cfg.SourceFiles, sourcefile.New(arg, cfg.OutputAbsPath))
			compilerArgs = append(compilerArgs, arg)
			continue

		case lower == "-c":
			if i+1 >= len(otherArgs) {
				return fmt.Errorf("config: -c given without a following file argument")
			}
			cfg.SourceFiles = append(cfg.SourceFiles, sourcefile.New(otherArgs[i+1], cfg.OutputAbsPath))
			compilerArgs = append(compilerArgs, arg, otherArgs[i+1])
			i++
			continue

		case lower == "--output" || arg == "-o":
			if i+1 >= len(otherArgs) {
				return fmt.Errorf("config: %s given without a following path argument", arg)
			}
			compilerArgs = append(compilerArgs, arg, otherArgs[i+1])
			cfg.OutputAbsPath = absDir(otherArgs[i+1])
			i++
			continue

		case strings.HasPrefix(arg, "--output="):
			compilerArgs = append(compilerArgs, arg)
			cfg.OutputAbsPath = absDir(arg[len("--output="):])
			continue

		case strings.HasPrefix(arg, "-o") && len(arg) > 2:
			compilerArgs = append(compilerArgs, arg)
			cfg.OutputAbsPath = absDir(arg[2:])
			continue

		default:
			compilerArgs = append(compilerArgs, arg)
			clangArgs = append(clangArgs, arg)
		}
	}

	// Source files seen before the output argument were derived without
	// it; derive them again now that the output directory is known.
	for i, sf := range cfg.SourceFiles {
		cfg.SourceFiles[i] = sourcefile.New(sf.InputPath, cfg.OutputAbsPath)
	}

	if cfg.PollPPD {
		defines, err := pollPreprocessorDefines(cfg.CompilerExec)
		if err != nil {
			return fmt.Errorf("config: polling preprocessor defines: %w", err)
		}
		clangArgs = append(clangArgs, defines...)
	}

	isystemArgs, err := discoverISystemPaths(cfg.CompilerExec)
	if err != nil {
		return fmt.Errorf("config: discovering isystem paths: %w", err)
	}
	clangArgs = append(clangArgs, isystemArgs...)

	cfg.CompilerArgs = compilerArgs
	cfg.ClangArgs = clangArgs
	return nil
}

func absDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.Dir(abs)
}

// pollPreprocessorDefines runs the compiler with `-x c <null device> -dM -E`
// and turns every `#define NAME VALUE` line it prints into a
// `-DNAME=VALUE` argument, per --CVR_POLL_PPD's documented behavior.
func pollPreprocessorDefines(compilerExec string) ([]string, error) {
	cmd := exec.Command(compilerExec, "-x", "c", os.DevNull, "-dM", "-E")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var defines []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "#define ") {
			continue
		}
		rest := strings.TrimPrefix(line, "#define ")
		rest = strings.Replace(rest, " ", "=", 1)
		defines = append(defines, fmt.Sprintf("-D%s", rest))
	}
	return defines, scanner.Err()
}

// discoverISystemPaths runs the compiler with `-xc -E -v <null device>`
// and reads the "#include <...> search starts here:" block from its
// stderr to learn the compiler's default system include paths.
func discoverISystemPaths(compilerExec string) ([]string, error) {
	cmd := exec.Command(compilerExec, "-xc", "-E", "-v", os.DevNull)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	_ = cmd.Run() // compiler commonly exits non-zero for this probe; stderr is what matters

	lines := strings.Split(stderr.String(), "\n")
	startIdx, endIdx := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case "#include <...> search starts here:":
			startIdx = i + 1
		case "End of search list.":
			endIdx = i
		}
	}
	if startIdx < 0 || endIdx < 0 || startIdx > endIdx {
		return nil, nil
	}

	var paths []string
	for _, line := range lines[startIdx:endIdx] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		paths = append(paths, "-isystem", trimmed)
	}
	return paths, nil
}
