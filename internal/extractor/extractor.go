// Package extractor implements CoverageExtractor (spec.md §4.1): it
// walks an astcursor.Cursor tree rooted at a translation unit and
// populates a model.Store with functions, statements, branches, loops
// and MC/DC condition tables.
package extractor

import (
	"fmt"
	"path/filepath"

	"coveron/internal/astcursor"
	"coveron/internal/model"
	"coveron/internal/position"
)

// Options toggles the two marker classes. The extractor never attempts
// to add a disabled marker class to the Store (spec.md §9's strict
// resolution): it checks Options at every add site rather than relying
// solely on model.Store to reject the call.
type Options struct {
	CheckpointsEnabled bool
	EvaluationsEnabled bool
}

// Extractor runs one translation unit's extraction pass against a
// model.Store. Not safe for concurrent use; spec.md §5 scopes one
// Extractor + Store pair to one translation unit.
type Extractor struct {
	store           *model.Store
	opts            Options
	primaryBasename string
}

// New constructs an Extractor targeting store, honoring opts, and
// filtering root-level declarations to those whose source file matches
// primaryPath's basename (spec.md §4.1 root traversal).
func New(store *model.Store, opts Options, primaryPath string) *Extractor {
	return &Extractor{
		store:           store,
		opts:            opts,
		primaryBasename: filepath.Base(primaryPath),
	}
}

// ExtractTranslationUnit runs root traversal over root's direct
// children, extracting every function declaration whose body is a
// compound statement and whose source file matches the primary input.
func (e *Extractor) ExtractTranslationUnit(root astcursor.Cursor) error {
	for _, child := range root.Children() {
		if filepath.Base(child.Location().FileName) != e.primaryBasename {
			continue
		}
		switch child.Kind() {
		case astcursor.KindFunctionDecl, astcursor.KindConstructorDecl, astcursor.KindDestructorDecl:
			body := findCompoundChild(child)
			if body == nil {
				continue // declaration without a definition; nothing to instrument
			}
			if err := e.extractFunction(child, body, model.NoParentFunctionID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Extractor) extractFunction(decl, body astcursor.Cursor, parentID int32) error {
	id := e.store.NewID()

	headerSection, err := position.NewSection(toPosition(decl.Extent().Start), toPosition(body.Extent().Start))
	if err != nil {
		return newError(fmt.Sprintf("function %s", decl.DisplayName()), err)
	}
	bodySection, err := toSection(body.Extent())
	if err != nil {
		return newError(fmt.Sprintf("function %s", decl.DisplayName()), err)
	}

	result, err := e.walkCompound(body, id, 0, false)
	if err != nil {
		return err
	}

	kind := model.FunctionNormal
	switch decl.Kind() {
	case astcursor.KindConstructorDecl:
		kind = model.FunctionConstructor
	case astcursor.KindDestructorDecl:
		kind = model.FunctionDestructor
	}

	e.store.AddFunction(model.Function{
		ID:                id,
		Name:              decl.DisplayName(),
		Kind:              kind,
		ParentID:          parentID,
		FirstCheckpointID: result.firstCheckpointID,
		HeaderSection:     headerSection,
		BodySection:       bodySection,
	})
	return nil
}

func findCompoundChild(cursor astcursor.Cursor) astcursor.Cursor {
	for _, child := range cursor.Children() {
		if child.Kind() == astcursor.KindCompoundStmt {
			return child
		}
	}
	return nil
}

func toPosition(p astcursor.Position) position.Position {
	return position.Position{Line: p.Line, Column: p.Column}
}

func toSection(e astcursor.Extent) (position.Section, error) {
	return position.NewSection(toPosition(e.Start), toPosition(e.End))
}
