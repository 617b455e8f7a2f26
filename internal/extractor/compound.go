package extractor

import (
	"fmt"

	"coveron/internal/astcursor"
	"coveron/internal/model"
)

// walkResult is what the compound-statement walker reports to its
// caller (spec.md §4.1).
type walkResult struct {
	firstCheckpointID uint32
	mustBubble        bool
}

// asCompoundBody normalizes a construct's body to something the
// compound-statement walker can iterate: C/C++ permits an unbraced
// single statement as the body of if/else/for/while/do-while, which
// this wraps into a synthetic one-statement compound so the walker
// never special-cases bracing. When it has to wrap, it records the
// span with the Store so MarkerPlan knows it must also synthesize
// COMPOUND_START/COMPOUND_END insertions there (spec.md §4.3).
func (e *Extractor) asCompoundBody(cursor astcursor.Cursor) astcursor.Cursor {
	if cursor.Kind() == astcursor.KindCompoundStmt {
		return cursor
	}
	if section, err := toSection(cursor.Extent()); err == nil {
		e.store.AddSynthesizedBrace(section)
	}
	return &sliceCursor{
		children: []astcursor.Cursor{cursor},
		extent:   cursor.Extent(),
		loc:      cursor.Location(),
	}
}

// sliceCursor adapts a fixed slice of children (and an overriding
// extent) to the astcursor.Cursor interface, used to synthesize
// compound bodies for unbraced statements and for switch-case bodies
// whose statements are flat siblings rather than a nested compound
// (see switch.go).
type sliceCursor struct {
	children []astcursor.Cursor
	extent   astcursor.Extent
	loc      astcursor.Location
}

func (s *sliceCursor) Kind() astcursor.Kind               { return astcursor.KindCompoundStmt }
func (s *sliceCursor) DisplayName() string                { return "" }
func (s *sliceCursor) Location() astcursor.Location       { return s.loc }
func (s *sliceCursor) Extent() astcursor.Extent           { return s.extent }
func (s *sliceCursor) Children() []astcursor.Cursor       { return s.children }
func (s *sliceCursor) BinaryOperator() astcursor.BinaryOp { return astcursor.BinaryOpOther }

// walkCompound is the compound-statement walker from spec.md §4.1. When
// hasSeed is false a fresh checkpoint ID is allocated for the first
// statement; when true, seedCheckpointID (the caller's active
// checkpoint) seeds the walk, so a nested compound's first statement
// stays tied to the enclosing marker.
func (e *Extractor) walkCompound(body astcursor.Cursor, functionID uint32, seedCheckpointID uint32, hasSeed bool) (walkResult, error) {
	active := seedCheckpointID
	if !hasSeed {
		active = e.store.NewID()
	}
	firstCheckpointID := active
	firstSet := false
	needsNew := false
	mustBubble := false

	emitCheckpoint := func(id uint32, at astcursor.Cursor) error {
		if !e.opts.CheckpointsEnabled {
			return nil
		}
		return e.store.AddCheckpoint(model.CheckpointMarker{ID: id, Position: toPosition(at.Extent().Start)})
	}

	for _, child := range body.Children() {
		if child.Kind() == astcursor.KindLabelStmt {
			needsNew = true
			continue
		}

		if !firstSet {
			if err := emitCheckpoint(active, child); err != nil {
				return walkResult{}, newError("compound statement", err)
			}
			firstSet = true
		}
		if needsNew {
			active = e.store.NewID()
			if err := emitCheckpoint(active, child); err != nil {
				return walkResult{}, newError("compound statement", err)
			}
			needsNew = false
		}

		switch child.Kind() {
		case astcursor.KindReturnStmt, astcursor.KindBreakStmt, astcursor.KindContinueStmt, astcursor.KindGotoStmt:
			section, err := toSection(child.Extent())
			if err != nil {
				return walkResult{}, newError("jump statement", err)
			}
			e.store.AddStatement(model.Statement{
				ID:           e.store.NewID(),
				Kind:         statementKindFor(child.Kind()),
				FunctionID:   int32(functionID),
				CheckpointID: active,
				Section:      section,
			})
			needsNew = true
			mustBubble = true

		case astcursor.KindCompoundStmt:
			inner, err := e.walkCompound(child, functionID, active, true)
			if err != nil {
				return walkResult{}, err
			}
			if inner.mustBubble {
				needsNew = true
				mustBubble = true
			}

		case astcursor.KindIfStmt:
			bubble, err := e.extractIf(child, functionID)
			if err != nil {
				return walkResult{}, err
			}
			if bubble {
				needsNew = true
				mustBubble = true
			}

		case astcursor.KindSwitchStmt:
			bubble, err := e.extractSwitch(child, functionID)
			if err != nil {
				return walkResult{}, err
			}
			if bubble {
				needsNew = true
				mustBubble = true
			}

		case astcursor.KindForStmt, astcursor.KindWhileStmt, astcursor.KindDoStmt:
			bubble, err := e.extractLoop(child, functionID)
			if err != nil {
				return walkResult{}, err
			}
			if bubble {
				needsNew = true
				mustBubble = true
			}

		default:
			if err := e.scanForTernary(child, functionID); err != nil {
				return walkResult{}, err
			}
			section, err := toSection(child.Extent())
			if err != nil {
				return walkResult{}, newError("statement", err)
			}
			e.store.AddStatement(model.Statement{
				ID:           e.store.NewID(),
				Kind:         model.StatementNormal,
				FunctionID:   int32(functionID),
				CheckpointID: active,
				Section:      section,
			})
		}
	}

	return walkResult{firstCheckpointID: firstCheckpointID, mustBubble: mustBubble}, nil
}

func statementKindFor(k astcursor.Kind) model.StatementKind {
	switch k {
	case astcursor.KindReturnStmt:
		return model.StatementReturn
	case astcursor.KindBreakStmt:
		return model.StatementBreak
	case astcursor.KindContinueStmt:
		return model.StatementContinue
	case astcursor.KindGotoStmt:
		return model.StatementGoto
	default:
		panic(fmt.Sprintf("extractor: statementKindFor called with non-jump kind %d", k))
	}
}
