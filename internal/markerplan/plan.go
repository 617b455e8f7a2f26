// Package markerplan implements MarkerPlan (spec.md §4.3): it turns a
// model.Store's markers and synthesized-brace spans into a deterministic
// sequence of text insertions, ordered so that applying them end-of-file
// first never invalidates the coordinates of insertions still pending.
package markerplan

import (
	"fmt"
	"sort"
	"strings"

	"coveron/internal/model"
)

// InsertionKind is one of the six insertion kinds from spec.md §4.3. The
// declaration order below IS the ascending type-rank order used to break
// ties at a shared (line, column): CompoundStart sorts lowest,
// CompoundEnd highest, so that at a tied position CompoundEnd is applied
// first and CompoundStart last — matching the requirement that
// CONDITION_START nest inside DECISION_START when they coincide.
type InsertionKind int

const (
	CompoundStart InsertionKind = iota
	Checkpoint
	DecisionStart
	ConditionStart
	EvaluationEnd
	CompoundEnd
)

func (k InsertionKind) rank() int { return int(k) }

// Insertion is one text splice targeted at a 1-based (line, column).
type Insertion struct {
	Line   int
	Column int
	Kind   InsertionKind
	Text   string
}

// Plan is MarkerPlan's output: a sorted insertion list plus the wrapper
// prologue text, which is always applied last (it targets line 1 column
// 1, the minimum possible coordinate).
type Plan struct {
	Insertions []Insertion
	Prologue   string
}

// RuntimeConfig names the pieces of the wrapper prologue that come from
// outside the Store: where the runtime helper header lives, and the
// basename of the CRI file the instrumented program will write at run
// time (spec.md §6.4).
type RuntimeConfig struct {
	HeaderPath  string
	CRIBasename string
}

// Build constructs the full Plan for one Store (spec.md §4.3 steps 1-3).
func Build(store *model.Store, cfg RuntimeConfig) (Plan, error) {
	doc := store.Document()
	structName := "___COVERON_FILE_" + strings.ToUpper(doc.InstrumentationRandomHex)

	var insertions []Insertion

	for _, m := range doc.MarkerData.CheckpointMarkers {
		insertions = append(insertions, Insertion{
			Line:   m.Position.Line,
			Column: m.Position.Column,
			Kind:   Checkpoint,
			Text:   fmt.Sprintf("___COVERON_SET_CHECKPOINT_MARKER(%s, &%s);", hexBytes(m.ID), structName),
		})
	}

	for _, m := range doc.MarkerData.EvaluationMarkers {
		startKind := DecisionStart
		if m.Kind == model.EvaluationCondition {
			startKind = ConditionStart
		}
		startText := fmt.Sprintf("___COVERON_SET_EVALUATION_MARKER(%s, &%s, (int) (", hexBytes(m.ID), structName)
		insertions = append(insertions,
			Insertion{Line: m.Section.Start.Line, Column: m.Section.Start.Column, Kind: startKind, Text: startText},
			Insertion{Line: m.Section.End.Line, Column: m.Section.End.Column, Kind: EvaluationEnd, Text: "))"},
		)
	}

	for _, section := range store.SynthesizedBraces() {
		insertions = append(insertions,
			Insertion{Line: section.Start.Line, Column: section.Start.Column, Kind: CompoundStart, Text: "{"},
			Insertion{Line: section.End.Line, Column: section.End.Column, Kind: CompoundEnd, Text: "}"},
		)
	}

	sort.SliceStable(insertions, func(i, j int) bool {
		a, b := insertions[i], insertions[j]
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		if a.Column != b.Column {
			return a.Column > b.Column
		}
		return a.Kind.rank() > b.Kind.rank()
	})

	prologue := buildPrologue(structName, doc.SourceSHA256Hex, doc.InstrumentationRandomHex, cfg)

	return Plan{Insertions: insertions, Prologue: prologue}, nil
}

// buildPrologue renders the wrapper prologue exactly per spec.md §4.3.
func buildPrologue(structName, sourceHashHex, instrRandomHex string, cfg RuntimeConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#include \"%s\"\n", cfg.HeaderPath)
	fmt.Fprintf(&b, "___COVERON_FILE_T %s = {\n", structName)
	fmt.Fprintf(&b, "{%s},\n", hexByteList(sourceHashHex))
	fmt.Fprintf(&b, "{%s},\n", hexByteList(instrRandomHex))
	b.WriteString("___COVERON_BOOL_FALSE,\n")
	b.WriteString("(void *)0,\n")
	fmt.Fprintf(&b, " \"%s\"};\n\n", cfg.CRIBasename)
	return b.String()
}

// hexBytes renders a marker ID as the four big-endian hex-byte
// arguments spec.md §4.3 requires (`0xHH, 0xHH, 0xHH, 0xHH`).
func hexBytes(id uint32) string {
	return fmt.Sprintf("0x%02x, 0x%02x, 0x%02x, 0x%02x",
		byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
}

// hexByteList renders every byte of a hex string as a `0xHH, ...` list,
// used for the prologue's source-hash and instrumentation-random arrays.
func hexByteList(hexStr string) string {
	var parts []string
	for i := 0; i+1 < len(hexStr); i += 2 {
		parts = append(parts, "0x"+strings.ToUpper(hexStr[i:i+2]))
	}
	return strings.Join(parts, ", ")
}
