package extractor

import (
	"fmt"

	"coveron/internal/astcursor"
	"coveron/internal/model"
	"coveron/internal/position"
)

// defaultLabelWidth is the fixed column width of the `default` keyword
// used for a default-case evaluation_section (spec.md §4.1).
const defaultLabelWidth = 7

// extractSwitch extracts one switch statement (spec.md §4.1). The
// switch_section spans the entire switch statement, not just the
// scrutinee, per spec.md §9's preserved (if oddly named) choice.
func (e *Extractor) extractSwitch(cursor astcursor.Cursor, functionID uint32) (bool, error) {
	switchSection, err := toSection(cursor.Extent())
	if err != nil {
		return false, newError("switch statement", err)
	}

	body := findCompoundChild(cursor)
	if body == nil {
		return false, newError("switch statement", ErrMissingBody)
	}

	cases, bubble, err := e.extractSwitchCases(body.Children(), functionID)
	if err != nil {
		return false, err
	}

	e.store.AddSwitchBranch(model.SwitchBranch{
		ID:            e.store.NewID(),
		FunctionID:    int32(functionID),
		SwitchSection: switchSection,
		Cases:         cases,
	})
	return bubble, nil
}

// caseLabel is one case/default label node plus its own statement
// children, prior to fall-through grouping.
type caseLabel struct {
	cursor  astcursor.Cursor
	isDefault bool
	value   astcursor.Cursor // nil for default
	stmts   []astcursor.Cursor
}

// extractSwitchCases groups consecutive empty-bodied labels (fall-
// through chains, e.g. `case 1: case 2: x=1; break;`) so they share
// the next non-empty label's body_section and checkpoint, per spec.md
// §4.1: "the innermost case is emitted first ... outer cases copy its
// body_section and checkpoint_id". Tree-sitter represents every label
// as a flat case_statement sibling rather than clang's nested CaseStmt
// chain, so grouping is done here instead of via recursive unwinding.
func (e *Extractor) extractSwitchCases(children []astcursor.Cursor, functionID uint32) ([]model.Case, bool, error) {
	var labels []caseLabel
	for _, child := range children {
		switch child.Kind() {
		case astcursor.KindCaseStmt:
			grandchildren := child.Children()
			if len(grandchildren) == 0 {
				return nil, false, newError("switch case", fmt.Errorf("case label has no value expression"))
			}
			labels = append(labels, caseLabel{cursor: child, value: grandchildren[0], stmts: grandchildren[1:]})
		case astcursor.KindDefaultStmt:
			labels = append(labels, caseLabel{cursor: child, isDefault: true, stmts: child.Children()})
		}
	}

	cases := make([]model.Case, len(labels))
	bubble := false

	group := []int{}
	for i, label := range labels {
		group = append(group, i)
		if len(label.stmts) == 0 && i != len(labels)-1 {
			continue // chained label; defer until an owner with a body is found
		}

		ownerBody := &sliceCursor{
			children: label.stmts,
			extent:   ownerExtent(label),
			loc:      label.cursor.Location(),
		}

		bodySection, err := toSection(ownerBody.Extent())
		if err != nil {
			return nil, false, newError("switch case body", err)
		}

		result, err := e.walkCompound(ownerBody, functionID, 0, false)
		if err != nil {
			return nil, false, err
		}
		if result.mustBubble {
			bubble = true
		}

		for _, idx := range group {
			evalSection, err := caseEvaluationSection(labels[idx])
			if err != nil {
				return nil, false, newError("switch case label", err)
			}
			kind := model.CaseCase
			if labels[idx].isDefault {
				kind = model.CaseDefault
			}
			cases[idx] = model.Case{
				CheckpointMarkerID: result.firstCheckpointID,
				Kind:               kind,
				EvaluationSection:  evalSection,
				BodySection:        bodySection,
			}
		}
		group = group[:0]
	}

	return cases, bubble, nil
}

func ownerExtent(label caseLabel) astcursor.Extent {
	if len(label.stmts) == 0 {
		return label.cursor.Extent()
	}
	return astcursor.Extent{
		Start: label.stmts[0].Extent().Start,
		End:   label.cursor.Extent().End,
	}
}

func caseEvaluationSection(label caseLabel) (position.Section, error) {
	start := toPosition(label.cursor.Extent().Start)
	if label.isDefault {
		end := position.Position{Line: start.Line, Column: start.Column + defaultLabelWidth}
		return position.NewSection(start, end)
	}
	end := toPosition(label.value.Extent().End)
	return position.NewSection(start, end)
}
