package extractor

import (
	"fmt"

	"coveron/internal/astcursor"
	"coveron/internal/model"
)

// scanForTernary recursively searches cursor's sub-tree for ternary
// (conditional) expressions and extracts each one it finds, including
// ternaries nested inside another ternary's arms (spec.md §4.1:
// "ternaries often appear as sub-expressions of larger statements").
func (e *Extractor) scanForTernary(cursor astcursor.Cursor, functionID uint32) error {
	for _, child := range cursor.Children() {
		if child.Kind() == astcursor.KindConditionalExpr {
			if err := e.extractTernary(child, functionID); err != nil {
				return err
			}
		}
		if err := e.scanForTernary(child, functionID); err != nil {
			return err
		}
	}
	return nil
}

// extractTernary extracts one `cond ? t : f` expression (spec.md
// §4.1).
func (e *Extractor) extractTernary(cursor astcursor.Cursor, functionID uint32) error {
	children := cursor.Children()
	if len(children) != 3 {
		return newError("ternary expression", fmt.Errorf("expected exactly 3 children, got %d", len(children)))
	}
	cond, trueExpr, falseExpr := children[0], children[1], children[2]

	marker, conditions, possibilities, err := e.extractDecision(cond)
	if err != nil {
		return err
	}

	condSection, err := toSection(cond.Extent())
	if err != nil {
		return newError("ternary condition", err)
	}
	trueSection, err := toSection(trueExpr.Extent())
	if err != nil {
		return newError("ternary true-expression", err)
	}
	falseSection, err := toSection(falseExpr.Extent())
	if err != nil {
		return newError("ternary false-expression", err)
	}

	e.store.AddTernary(model.TernaryExpression{
		ID:                     e.store.NewID(),
		FunctionID:             int32(functionID),
		EvaluationMarkerID:     marker.ID,
		EvaluationSection:      condSection,
		ConditionPossibilities: possibilities,
		Conditions:             conditions,
		TrueSection:            trueSection,
		FalseSection:           falseSection,
	})
	return nil
}
