package extractor

import (
	"fmt"

	"coveron/internal/astcursor"
	"coveron/internal/model"
)

// extractIf extracts one if/else-if/else chain into a single IfBranch
// entity (spec.md §4.1). It reports whether the chain must bubble a
// new checkpoint to its caller.
func (e *Extractor) extractIf(cursor astcursor.Cursor, functionID uint32) (bool, error) {
	id := e.store.NewID()
	results, bubble, err := e.collectIfChain(cursor, functionID)
	if err != nil {
		return false, err
	}
	e.store.AddIfBranch(model.IfBranch{
		ID:            id,
		FunctionID:    int32(functionID),
		BranchResults: results,
	})
	return bubble, nil
}

func (e *Extractor) collectIfChain(cursor astcursor.Cursor, functionID uint32) ([]model.BranchResult, bool, error) {
	children := cursor.Children()
	if len(children) < 2 {
		return nil, false, newError("if statement", fmt.Errorf("expected at least 2 children, got %d", len(children)))
	}
	cond := children[0]
	thenBody := e.asCompoundBody(children[1])

	marker, conditions, possibilities, err := e.extractDecision(cond)
	if err != nil {
		return nil, false, err
	}
	condSection, err := toSection(cond.Extent())
	if err != nil {
		return nil, false, newError("if condition", err)
	}
	thenSection, err := toSection(thenBody.Extent())
	if err != nil {
		return nil, false, newError("if then-body", err)
	}

	thenResult, err := e.walkCompound(thenBody, functionID, 0, false)
	if err != nil {
		return nil, false, err
	}

	results := []model.BranchResult{{
		EvaluationMarkerID: marker.ID,
		Possibilities:      possibilities,
		Conditions:         conditions,
		EvaluationSection:  condSection,
		BodySection:        thenSection,
	}}
	bubble := thenResult.mustBubble

	if len(children) < 3 {
		return results, bubble, nil
	}

	third := children[2]
	switch third.Kind() {
	case astcursor.KindIfStmt:
		rest, restBubble, err := e.collectIfChain(third, functionID)
		if err != nil {
			return nil, false, err
		}
		results = append(results, rest...)
		bubble = bubble || restBubble

	default:
		elseBody := e.asCompoundBody(third)
		elseSection, err := toSection(elseBody.Extent())
		if err != nil {
			return nil, false, newError("else body", err)
		}
		elseResult, err := e.walkCompound(elseBody, functionID, 0, false)
		if err != nil {
			return nil, false, err
		}
		results = append(results, model.BranchResult{
			EvaluationMarkerID: model.ElseSentinelID,
			Possibilities:      nil,
			Conditions:         nil,
			EvaluationSection:  elseSection,
			BodySection:        elseSection,
		})
		bubble = bubble || elseResult.mustBubble
	}

	return results, bubble, nil
}
