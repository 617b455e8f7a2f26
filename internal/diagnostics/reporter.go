// Package diagnostics renders Reporter-facing errors (config parsing,
// translation-unit instrumentation failures) with the same Rust-like
// caret styling the toolchain has always used for source diagnostics,
// generalized from a single-language AST position to coveron's own
// position.Position so it can report on any source file coveron reads.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"coveron/internal/position"
)

// Level is the severity of a Diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
)

// Diagnostic is a single reportable problem. Position is optional: when
// nil (e.g. a flag-parsing error with no source location) the Reporter
// prints the header and message, the file name if one is set, and the
// notes, skipping the source lines and caret.
type Diagnostic struct {
	Level    Level
	Message  string
	File     string
	Position *position.Position
	Length   int
	Notes    []string
}

// Reporter formats Diagnostics against a known source, printing a
// context line before and after the offending line plus a caret
// underline, mirroring the compiler's historical error presentation.
type Reporter struct {
	source string
	lines  []string
}

// NewReporter builds a Reporter over source, the raw bytes of the file
// named in the Diagnostics it will render. Pass an empty string when no
// source is available; Format then skips the source lines and caret.
func NewReporter(source string) *Reporter {
	r := &Reporter{source: source}
	if source != "" {
		r.lines = strings.Split(source, "\n")
	}
	return r
}

// Format renders one Diagnostic.
func (r *Reporter) Format(d Diagnostic) string {
	var b strings.Builder

	levelColor := levelColor(d.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	b.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))

	if d.Position == nil || len(r.lines) == 0 {
		if d.File != "" {
			b.WriteString(fmt.Sprintf("  %s %s\n", dim("-->"), d.File))
		}
		r.writeNotes(&b, d, dim)
		return b.String()
	}

	width := lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)

	b.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), d.File, d.Position.Line, d.Position.Column))
	b.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Position.Line > 1 && d.Position.Line-1 <= len(r.lines) {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, d.Position.Line-1)), dim("│"), r.lines[d.Position.Line-2]))
	}

	if d.Position.Line >= 1 && d.Position.Line <= len(r.lines) {
		line := r.lines[d.Position.Line-1]
		b.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("│"), line))
		b.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), caretLine(d.Position.Column, d.Length, levelColor)))
	}

	if d.Position.Line < len(r.lines) {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, d.Position.Line+1)), dim("│"), r.lines[d.Position.Line]))
	}

	r.writeNotes(&b, d, dim)
	return b.String()
}

func (r *Reporter) writeNotes(b *strings.Builder, d Diagnostic, dim func(...interface{}) string) {
	noteColor := color.New(color.FgBlue).SprintFunc()
	for _, note := range d.Notes {
		b.WriteString(fmt.Sprintf("%s %s %s\n", dim("│"), noteColor("note:"), note))
	}
	b.WriteString("\n")
}

func levelColor(level Level) func(...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func caretLine(column, length int, markerColor func(...interface{}) string) string {
	if length <= 0 {
		length = 1
	}
	spaces := strings.Repeat(" ", max(0, column-1))
	return spaces + markerColor(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3
	}
	return width
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
