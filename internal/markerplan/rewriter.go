package markerplan

import "strings"

// Apply is SourceRewriter (spec.md §4.3): it splices every insertion in
// plan.Insertions into source in order, then prepends the wrapper
// prologue. Insertions are expected pre-sorted descending by
// (line, column, rank) so that each splice leaves not-yet-applied
// coordinates, which all lie strictly to the left, untouched.
func Apply(source []byte, plan Plan) []byte {
	lines := strings.Split(string(source), "\n")

	for _, ins := range plan.Insertions {
		lines = spliceText(lines, ins.Line, ins.Column, ins.Text)
	}

	lines = spliceText(lines, 1, 1, plan.Prologue)

	return []byte(strings.Join(lines, "\n"))
}

// spliceText inserts text at the 1-based (line, column) position into
// lines, splitting it across multiple entries when text itself contains
// embedded newlines (as the wrapper prologue does). line and column
// address the state of lines as it stands when this call runs, which is
// always valid: descending application order means every prior splice
// happened at a position at or to the right of this one, so it can only
// have grown the slice at indices >= line-1, never touched what is at
// or before it.
func spliceText(lines []string, line, column int, text string) []string {
	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return lines
	}
	target := lines[idx]
	col := column - 1
	if col < 0 {
		col = 0
	}
	if col > len(target) {
		col = len(target)
	}
	left, right := target[:col], target[col:]

	parts := strings.Split(text, "\n")
	if len(parts) == 1 {
		lines[idx] = left + text + right
		return lines
	}

	replacement := make([]string, 0, len(parts))
	replacement = append(replacement, left+parts[0])
	replacement = append(replacement, parts[1:len(parts)-1]...)
	replacement = append(replacement, parts[len(parts)-1]+right)

	out := make([]string, 0, len(lines)+len(replacement)-1)
	out = append(out, lines[:idx]...)
	out = append(out, replacement...)
	out = append(out, lines[idx+1:]...)
	return out
}
