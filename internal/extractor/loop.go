package extractor

import (
	"fmt"

	"coveron/internal/astcursor"
	"coveron/internal/model"
	"coveron/internal/position"
)

// extractLoop extracts one for/while/do-while loop (spec.md §4.1). It
// reports whether the body walker bubbled a required checkpoint, which
// the loop itself then bubbles to its caller.
func (e *Extractor) extractLoop(cursor astcursor.Cursor, functionID uint32) (bool, error) {
	children := cursor.Children()

	var loopKind model.LoopKind
	var condCursor, bodyCursor astcursor.Cursor

	switch cursor.Kind() {
	case astcursor.KindForStmt:
		// init=0, cond=1, step=2, body=3 (spec.md §4.1).
		if len(children) < 4 {
			return false, newError("for loop", fmt.Errorf("expected 4 children, got %d", len(children)))
		}
		loopKind = model.LoopFor
		condCursor, bodyCursor = children[1], children[3]

	case astcursor.KindWhileStmt:
		if len(children) < 2 {
			return false, newError("while loop", fmt.Errorf("expected 2 children, got %d", len(children)))
		}
		loopKind = model.LoopWhile
		condCursor, bodyCursor = children[0], children[1]

	case astcursor.KindDoStmt:
		if len(children) < 2 {
			return false, newError("do-while loop", fmt.Errorf("expected 2 children, got %d", len(children)))
		}
		loopKind = model.LoopDoWhile
		bodyCursor, condCursor = children[0], children[1]

	default:
		return false, newError("loop", fmt.Errorf("unexpected cursor kind %d", cursor.Kind()))
	}

	body := e.asCompoundBody(bodyCursor)

	var marker model.EvaluationMarker
	var conditions []model.ConditionInfo
	var possibilities []model.ConditionPossibility
	var evalSection, bodySection position.Section
	var bodyResult walkResult
	var err error

	extractEvaluation := func() error {
		marker, conditions, possibilities, err = e.extractDecision(condCursor)
		if err != nil {
			return err
		}
		evalSection, err = toSection(condCursor.Extent())
		if err != nil {
			return newError("loop condition", err)
		}
		return nil
	}

	extractBody := func() error {
		bodySection, err = toSection(body.Extent())
		if err != nil {
			return newError("loop body", err)
		}
		bodyResult, err = e.walkCompound(body, functionID, 0, false)
		return err
	}

	// do-while walks body=0, cond=1 (spec.md §4.1); every other loop
	// kind evaluates its condition before entering the body, so the two
	// extraction passes run in the opposite order purely to keep marker
	// IDs allocated in the spec's stated traversal order.
	if loopKind == model.LoopDoWhile {
		if err := extractBody(); err != nil {
			return false, err
		}
		if err := extractEvaluation(); err != nil {
			return false, err
		}
	} else {
		if err := extractEvaluation(); err != nil {
			return false, err
		}
		if err := extractBody(); err != nil {
			return false, err
		}
	}

	e.store.AddLoop(model.Loop{
		ID:                     e.store.NewID(),
		Kind:                   loopKind,
		FunctionID:             int32(functionID),
		EvaluationMarkerID:     marker.ID,
		EvaluationSection:      evalSection,
		BodySection:            bodySection,
		ConditionPossibilities: possibilities,
		Conditions:             conditions,
	})

	return bodyResult.mustBubble, nil
}
