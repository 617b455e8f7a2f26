package extractor

import (
	"fmt"

	"coveron/internal/astcursor"
	"coveron/internal/model"
)

// evalResult is the intermediate (conditions, possibilities) pair
// threaded through condition-level evaluation extraction (spec.md
// §4.1).
type evalResult struct {
	conditions    []model.ConditionInfo
	possibilities []model.ConditionPossibility
}

// extractDecision is the decision-level call (outer entry) from
// spec.md §4.1: it recurses as a condition, then wraps the whole
// expression in one DECISION EvaluationMarker.
func (e *Extractor) extractDecision(cursor astcursor.Cursor) (model.EvaluationMarker, []model.ConditionInfo, []model.ConditionPossibility, error) {
	inner, err := e.extractCondition(cursor)
	if err != nil {
		return model.EvaluationMarker{}, nil, nil, err
	}

	section, err := toSection(cursor.Extent())
	if err != nil {
		return model.EvaluationMarker{}, nil, nil, newError("decision", err)
	}

	marker := model.EvaluationMarker{
		ID:      e.store.NewID(),
		Kind:    model.EvaluationDecision,
		Section: section,
	}
	if e.opts.EvaluationsEnabled {
		if err := e.store.AddEvaluation(marker); err != nil {
			return model.EvaluationMarker{}, nil, nil, newError("decision", err)
		}
	}

	return marker, inner.conditions, inner.possibilities, nil
}

// extractCondition is the condition-level call from spec.md §4.1.
func (e *Extractor) extractCondition(cursor astcursor.Cursor) (evalResult, error) {
	switch {
	case cursor.Kind() == astcursor.KindParenExpr:
		children := cursor.Children()
		if len(children) != 1 {
			return evalResult{}, newError("parenthesized condition", fmt.Errorf("expected exactly 1 child, got %d", len(children)))
		}
		return e.extractCondition(children[0])

	case cursor.Kind() == astcursor.KindBinaryOperator && isShortCircuit(cursor.BinaryOperator()):
		children := cursor.Children()
		if len(children) != 2 {
			return evalResult{}, newError("binary condition", fmt.Errorf("expected exactly 2 children, got %d", len(children)))
		}
		left, err := e.extractCondition(children[0])
		if err != nil {
			return evalResult{}, err
		}
		right, err := e.extractCondition(children[1])
		if err != nil {
			return evalResult{}, err
		}

		conditions := make([]model.ConditionInfo, 0, len(left.conditions)+len(right.conditions))
		conditions = append(conditions, left.conditions...)
		conditions = append(conditions, right.conditions...)
		if len(conditions) > maxAtomicConditions {
			return evalResult{}, newError("decision", ErrTooManyConditions)
		}

		return evalResult{
			conditions:    conditions,
			possibilities: compose(cursor.BinaryOperator(), left.possibilities, right.possibilities),
		}, nil

	default:
		section, err := toSection(cursor.Extent())
		if err != nil {
			return evalResult{}, newError("atomic condition", err)
		}
		id := e.store.NewID()
		marker := model.EvaluationMarker{ID: id, Kind: model.EvaluationCondition, Section: section}
		if e.opts.EvaluationsEnabled {
			if err := e.store.AddEvaluation(marker); err != nil {
				return evalResult{}, newError("atomic condition", err)
			}
		}
		return evalResult{
			conditions: []model.ConditionInfo{{EvaluationMarkerID: id, Section: section}},
			possibilities: []model.ConditionPossibility{
				{DecisionResult: true, Combination: []model.ConditionResult{{EvaluationMarkerID: id, Value: true}}},
				{DecisionResult: false, Combination: []model.ConditionResult{{EvaluationMarkerID: id, Value: false}}},
			},
		}, nil
	}
}

func isShortCircuit(op astcursor.BinaryOp) bool {
	return op == astcursor.BinaryOpLogicalAnd || op == astcursor.BinaryOpLogicalOr
}

// compose implements the recursive MC/DC compose rule (spec.md §4.1,
// §9): the load-bearing algorithm that turns two short-circuit operand
// truth tables into their combined table.
//
// Logical AND: a left-true possibility composes with every right
// possibility (conjunction of combinations, decision_result = right's);
// a left-false possibility copies through verbatim since the right
// operand is never evaluated. Logical OR is the mirror image.
func compose(op astcursor.BinaryOp, left, right []model.ConditionPossibility) []model.ConditionPossibility {
	out := make([]model.ConditionPossibility, 0, len(left)*len(right))
	shortCircuitsOn := false
	if op == astcursor.BinaryOpLogicalOr {
		shortCircuitsOn = true
	}

	for _, lp := range left {
		if lp.DecisionResult == shortCircuitsOn {
			out = append(out, lp)
			continue
		}
		for _, rp := range right {
			out = append(out, model.ConditionPossibility{
				DecisionResult: rp.DecisionResult,
				Combination:    concatResults(lp.Combination, rp.Combination),
			})
		}
	}
	return out
}

func concatResults(a, b []model.ConditionResult) []model.ConditionResult {
	out := make([]model.ConditionResult, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
