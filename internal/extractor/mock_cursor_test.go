package extractor_test

import "coveron/internal/astcursor"

// mockCursor is a hand-built astcursor.Cursor used to drive the
// extractor without a real tree-sitter parse, the way a compiler
// front-end test fixture stands in for a real file on disk.
type mockCursor struct {
	kind     astcursor.Kind
	name     string
	file     string
	start    astcursor.Position
	end      astcursor.Position
	children []astcursor.Cursor
	binOp    astcursor.BinaryOp
}

func (m *mockCursor) Kind() astcursor.Kind { return m.kind }
func (m *mockCursor) DisplayName() string  { return m.name }
func (m *mockCursor) Location() astcursor.Location {
	file := m.file
	if file == "" {
		file = "test.c"
	}
	return astcursor.Location{FileName: file, Position: m.start}
}
func (m *mockCursor) Extent() astcursor.Extent {
	return astcursor.Extent{Start: m.start, End: m.end}
}
func (m *mockCursor) Children() []astcursor.Cursor       { return m.children }
func (m *mockCursor) BinaryOperator() astcursor.BinaryOp { return m.binOp }

func pos(line, col int) astcursor.Position { return astcursor.Position{Line: line, Column: col} }

func leaf(kind astcursor.Kind, startCol, endCol int) *mockCursor {
	return &mockCursor{kind: kind, start: pos(1, startCol), end: pos(1, endCol)}
}

func atomicCond(name string, startCol, endCol int) *mockCursor {
	c := leaf(astcursor.KindUnknown, startCol, endCol)
	c.name = name
	return c
}

func binOp(op astcursor.BinaryOp, left, right *mockCursor, startCol, endCol int) *mockCursor {
	return &mockCursor{
		kind:     astcursor.KindBinaryOperator,
		binOp:    op,
		start:    pos(1, startCol),
		end:      pos(1, endCol),
		children: []astcursor.Cursor{left, right},
	}
}

func paren(inner *mockCursor, startCol, endCol int) *mockCursor {
	return &mockCursor{
		kind:     astcursor.KindParenExpr,
		start:    pos(1, startCol),
		end:      pos(1, endCol),
		children: []astcursor.Cursor{inner},
	}
}
