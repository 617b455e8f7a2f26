// Package sourcefile derives the set of paths the instrumenter reads
// from and writes to for a single translation unit.
package sourcefile

import (
	"path/filepath"
	"strings"
)

// SourceFile is the triple of paths derived from one input source path:
// the original input, the instrumented output, and the CID/CRI sidecar
// basenames. Mirrors DataTypes.py's SourceFile, which slices the input
// path at its rightmost '.'.
type SourceFile struct {
	// InputPath is the path given on the compiler command line.
	InputPath string
	// OutputPath is InputPath's file name with ".instr" spliced before
	// the extension, in the output directory when one is given.
	OutputPath string
	// CIDPath is the basename of the CID sidecar, prefixed with the
	// output directory when one is given.
	CIDPath string
	// CRIPath is the basename of the CRI sidecar (written by the
	// instrumented binary at runtime, not by this system), prefixed with
	// the output directory when one is given.
	CRIPath string
}

// New derives a SourceFile from an input path. outputDir, if non-empty,
// prefixes OutputPath/CIDPath/CRIPath; with an empty outputDir,
// OutputPath stays alongside the input and CIDPath/CRIPath are bare
// basenames.
func New(inputPath string, outputDir string) SourceFile {
	dir, base := filepath.Split(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	targetDir := dir
	sidecarDir := ""
	if outputDir != "" {
		targetDir = outputDir + string(filepath.Separator)
		sidecarDir = targetDir
	}

	return SourceFile{
		InputPath:  inputPath,
		OutputPath: targetDir + stem + ".instr" + ext,
		CIDPath:    sidecarDir + stem + ".cid",
		CRIPath:    sidecarDir + stem + ".cri",
	}
}

// recognizedExtensions lists the case-insensitive source extensions
// this instrumenter will intercept; all other compiler arguments pass
// through untouched.
var recognizedExtensions = map[string]bool{
	".c":   true,
	".cpp": true,
	".c++": true,
}

// IsSource reports whether path names a recognized C/C++ source file
// by extension, matched case-insensitively per spec.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return recognizedExtensions[ext]
}
