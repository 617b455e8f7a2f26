// Package serializer implements CIDSerializer (spec.md §4.4): it emits
// a model.Document as UTF-8 JSON, gzip-wrapped by default, with a stable
// key order and integer enum discriminants.
package serializer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"

	"coveron/internal/model"
	"coveron/internal/position"
)

// Options controls the serialized form.
type Options struct {
	// NoComp disables the default gzip wrap, writing plain JSON.
	NoComp bool
}

// Marshal renders doc as the CIDDocument JSON payload, gzip-wrapped
// unless opts.NoComp is set.
func Marshal(doc model.Document, opts Options) ([]byte, error) {
	payload, err := json.Marshal(toWire(doc))
	if err != nil {
		return nil, err
	}
	if opts.NoComp {
		return payload, nil
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wireSection is CodeSection flattened to four fields, per spec.md §4.4.
type wireSection struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
}

func flattenSection(s position.Section) wireSection {
	return wireSection{
		StartLine:   s.Start.Line,
		StartColumn: s.Start.Column,
		EndLine:     s.End.Line,
		EndColumn:   s.End.Column,
	}
}

type wirePosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func flattenPosition(p position.Position) wirePosition {
	return wirePosition{Line: p.Line, Column: p.Column}
}

type wireCheckpointMarker struct {
	ID       uint32       `json:"id"`
	Position wirePosition `json:"position"`
}

type wireEvaluationMarker struct {
	ID      uint32      `json:"id"`
	Kind    int         `json:"kind"`
	Section wireSection `json:"section"`
}

type wireConditionInfo struct {
	EvaluationMarkerID uint32      `json:"evaluation_marker_id"`
	Section            wireSection `json:"section"`
}

type wireConditionResult struct {
	EvaluationMarkerID uint32 `json:"evaluation_marker_id"`
	Value              bool   `json:"value"`
}

type wireConditionPossibility struct {
	DecisionResult bool                  `json:"decision_result"`
	Combination    []wireConditionResult `json:"combination"`
}

type wireBranchResult struct {
	EvaluationMarkerID uint32                     `json:"evaluation_marker_id"`
	Possibilities      []wireConditionPossibility `json:"possibilities"`
	Conditions         []wireConditionInfo        `json:"conditions"`
	EvaluationSection  wireSection                `json:"evaluation_section"`
	BodySection        wireSection                `json:"body_section"`
}

type wireCase struct {
	CheckpointMarkerID uint32      `json:"checkpoint_marker_id"`
	Kind               int         `json:"kind"`
	EvaluationSection  wireSection `json:"evaluation_section"`
	BodySection        wireSection `json:"body_section"`
}

type wireFunction struct {
	ID                uint32      `json:"id"`
	Name              string      `json:"name"`
	Kind              int         `json:"kind"`
	ParentID          int32       `json:"parent_id"`
	FirstCheckpointID uint32      `json:"first_checkpoint_id"`
	HeaderSection     wireSection `json:"header_section"`
	BodySection       wireSection `json:"body_section"`
}

type wireStatement struct {
	ID           uint32      `json:"id"`
	Kind         int         `json:"kind"`
	FunctionID   int32       `json:"function_id"`
	CheckpointID uint32      `json:"checkpoint_id"`
	Section      wireSection `json:"section"`
}

type wireIfBranch struct {
	ID            uint32             `json:"id"`
	FunctionID    int32              `json:"function_id"`
	BranchResults []wireBranchResult `json:"branch_results"`
}

type wireSwitchBranch struct {
	ID            uint32      `json:"id"`
	FunctionID    int32       `json:"function_id"`
	SwitchSection wireSection `json:"switch_section"`
	Cases         []wireCase  `json:"cases"`
}

type wireTernaryExpression struct {
	ID                     uint32                     `json:"id"`
	FunctionID             int32                      `json:"function_id"`
	EvaluationMarkerID     uint32                      `json:"evaluation_marker_id"`
	EvaluationSection      wireSection                `json:"evaluation_section"`
	ConditionPossibilities []wireConditionPossibility `json:"condition_possibilities"`
	Conditions             []wireConditionInfo        `json:"conditions"`
	TrueSection            wireSection                `json:"true_section"`
	FalseSection           wireSection                `json:"false_section"`
}

type wireLoop struct {
	ID                     uint32                     `json:"id"`
	Kind                   int                        `json:"kind"`
	FunctionID             int32                      `json:"function_id"`
	EvaluationMarkerID     uint32                     `json:"evaluation_marker_id"`
	EvaluationSection      wireSection                `json:"evaluation_section"`
	BodySection            wireSection                `json:"body_section"`
	ConditionPossibilities []wireConditionPossibility `json:"condition_possibilities"`
	Conditions             []wireConditionInfo        `json:"conditions"`
}

type wireMarkerData struct {
	CheckpointMarkers []wireCheckpointMarker `json:"checkpoint_markers"`
	EvaluationMarkers []wireEvaluationMarker `json:"evaluation_markers"`
}

type wireCodeData struct {
	Functions          []wireFunction          `json:"functions"`
	Statements         []wireStatement         `json:"statements"`
	IfBranches         []wireIfBranch          `json:"if_branches"`
	SwitchBranches     []wireSwitchBranch      `json:"switch_branches"`
	TernaryExpressions []wireTernaryExpression `json:"ternary_expressions"`
	Loops              []wireLoop              `json:"loops"`
}

// wireDocument field order is the CIDDocument root's stable key order
// (spec.md §4.4): Go's encoding/json always emits struct fields in
// declaration order, so this order IS the contract.
type wireDocument struct {
	SourcePath               string         `json:"source_path"`
	SourceSHA256Hex          string         `json:"source_sha256_hex"`
	SourceBase64             string         `json:"source_base64"`
	InstrumentationRandomHex string         `json:"instrumentation_random_hex"`
	CRIPath                  string         `json:"cri_path"`
	CheckpointMarkersEnabled bool           `json:"checkpoint_markers_enabled"`
	EvaluationMarkersEnabled bool           `json:"evaluation_markers_enabled"`
	MarkerData               wireMarkerData `json:"marker_data"`
	CodeData                 wireCodeData   `json:"code_data"`
}

func toWire(doc model.Document) wireDocument {
	return wireDocument{
		SourcePath:               doc.SourcePath,
		SourceSHA256Hex:          doc.SourceSHA256Hex,
		SourceBase64:             doc.SourceBase64,
		InstrumentationRandomHex: doc.InstrumentationRandomHex,
		CRIPath:                  doc.CRIPath,
		CheckpointMarkersEnabled: doc.CheckpointMarkersEnabled,
		EvaluationMarkersEnabled: doc.EvaluationMarkersEnabled,
		MarkerData: wireMarkerData{
			CheckpointMarkers: mapSlice(doc.MarkerData.CheckpointMarkers, func(m model.CheckpointMarker) wireCheckpointMarker {
				return wireCheckpointMarker{ID: m.ID, Position: flattenPosition(m.Position)}
			}),
			EvaluationMarkers: mapSlice(doc.MarkerData.EvaluationMarkers, func(m model.EvaluationMarker) wireEvaluationMarker {
				return wireEvaluationMarker{ID: m.ID, Kind: int(m.Kind), Section: flattenSection(m.Section)}
			}),
		},
		CodeData: wireCodeData{
			Functions: mapSlice(doc.CodeData.Functions, func(f model.Function) wireFunction {
				return wireFunction{
					ID: f.ID, Name: f.Name, Kind: int(f.Kind), ParentID: f.ParentID,
					FirstCheckpointID: f.FirstCheckpointID,
					HeaderSection:     flattenSection(f.HeaderSection),
					BodySection:       flattenSection(f.BodySection),
				}
			}),
			Statements: mapSlice(doc.CodeData.Statements, func(s model.Statement) wireStatement {
				return wireStatement{
					ID: s.ID, Kind: int(s.Kind), FunctionID: s.FunctionID,
					CheckpointID: s.CheckpointID, Section: flattenSection(s.Section),
				}
			}),
			IfBranches: mapSlice(doc.CodeData.IfBranches, func(b model.IfBranch) wireIfBranch {
				return wireIfBranch{
					ID: b.ID, FunctionID: b.FunctionID,
					BranchResults: mapSlice(b.BranchResults, toWireBranchResult),
				}
			}),
			SwitchBranches: mapSlice(doc.CodeData.SwitchBranches, func(sw model.SwitchBranch) wireSwitchBranch {
				return wireSwitchBranch{
					ID: sw.ID, FunctionID: sw.FunctionID,
					SwitchSection: flattenSection(sw.SwitchSection),
					Cases:         mapSlice(sw.Cases, toWireCase),
				}
			}),
			TernaryExpressions: mapSlice(doc.CodeData.TernaryExpressions, func(t model.TernaryExpression) wireTernaryExpression {
				return wireTernaryExpression{
					ID: t.ID, FunctionID: t.FunctionID, EvaluationMarkerID: t.EvaluationMarkerID,
					EvaluationSection:      flattenSection(t.EvaluationSection),
					ConditionPossibilities: mapSlice(t.ConditionPossibilities, toWirePossibility),
					Conditions:             mapSlice(t.Conditions, toWireConditionInfo),
					TrueSection:            flattenSection(t.TrueSection),
					FalseSection:           flattenSection(t.FalseSection),
				}
			}),
			Loops: mapSlice(doc.CodeData.Loops, func(l model.Loop) wireLoop {
				return wireLoop{
					ID: l.ID, Kind: int(l.Kind), FunctionID: l.FunctionID,
					EvaluationMarkerID:     l.EvaluationMarkerID,
					EvaluationSection:      flattenSection(l.EvaluationSection),
					BodySection:            flattenSection(l.BodySection),
					ConditionPossibilities: mapSlice(l.ConditionPossibilities, toWirePossibility),
					Conditions:             mapSlice(l.Conditions, toWireConditionInfo),
				}
			}),
		},
	}
}

func toWireBranchResult(b model.BranchResult) wireBranchResult {
	return wireBranchResult{
		EvaluationMarkerID: b.EvaluationMarkerID,
		Possibilities:      mapSlice(b.Possibilities, toWirePossibility),
		Conditions:         mapSlice(b.Conditions, toWireConditionInfo),
		EvaluationSection:  flattenSection(b.EvaluationSection),
		BodySection:        flattenSection(b.BodySection),
	}
}

func toWireCase(c model.Case) wireCase {
	return wireCase{
		CheckpointMarkerID: c.CheckpointMarkerID,
		Kind:               int(c.Kind),
		EvaluationSection:  flattenSection(c.EvaluationSection),
		BodySection:        flattenSection(c.BodySection),
	}
}

func toWireConditionInfo(c model.ConditionInfo) wireConditionInfo {
	return wireConditionInfo{EvaluationMarkerID: c.EvaluationMarkerID, Section: flattenSection(c.Section)}
}

func toWirePossibility(p model.ConditionPossibility) wireConditionPossibility {
	return wireConditionPossibility{
		DecisionResult: p.DecisionResult,
		Combination: mapSlice(p.Combination, func(r model.ConditionResult) wireConditionResult {
			return wireConditionResult{EvaluationMarkerID: r.EvaluationMarkerID, Value: r.Value}
		}),
	}
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
