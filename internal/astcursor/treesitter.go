package astcursor

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Provider parses one translation unit and returns its root cursor.
// This is the "ASTProvider (adapter)" component of spec.md §2.
type Provider interface {
	Parse(ctx context.Context, path string, source []byte, defines []string, includePaths []string) (Cursor, error)
}

// TreeSitterProvider binds Provider to github.com/smacker/go-tree-sitter
// with its bundled C++ grammar, used for both .c and .cpp/.c++ inputs.
// Tree-sitter has no preprocessor, so defines/includePaths are accepted
// for interface symmetry with a libclang-style provider but otherwise
// unused; this is the precision trade-off spec.md §9 explicitly accepts.
type TreeSitterProvider struct{}

func NewTreeSitterProvider() *TreeSitterProvider {
	return &TreeSitterProvider{}
}

func (p *TreeSitterProvider) Parse(ctx context.Context, path string, source []byte, _ []string, _ []string) (Cursor, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("astcursor: tree-sitter parse failed for %s: %w", path, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("astcursor: tree-sitter produced no root node for %s", path)
	}
	return &treeSitterCursor{node: root, source: source, path: path}, nil
}

type treeSitterCursor struct {
	node   *sitter.Node
	source []byte
	path   string
}

// nodeKinds maps tree-sitter-cpp node type strings to our Kind
// taxonomy. Node types not present here fall back to KindUnknown and
// are treated by the extractor as opaque NORMAL statements, matching
// spec.md §4.1's best-effort failure semantics.
var nodeKinds = map[string]Kind{
	"translation_unit":      KindTranslationUnit,
	"function_definition":   KindFunctionDecl,
	"compound_statement":    KindCompoundStmt,
	"labeled_statement":     KindLabelStmt,
	"if_statement":          KindIfStmt,
	"switch_statement":      KindSwitchStmt,
	"case_statement":        KindCaseStmt,
	"for_statement":         KindForStmt,
	"while_statement":       KindWhileStmt,
	"do_statement":          KindDoStmt,
	"return_statement":      KindReturnStmt,
	"break_statement":       KindBreakStmt,
	"continue_statement":    KindContinueStmt,
	"goto_statement":        KindGotoStmt,
	"conditional_expression": KindConditionalExpr,
	"parenthesized_expression": KindParenExpr,
	"binary_expression":     KindBinaryOperator,
	"declaration":           KindDeclStmt,
	"expression_statement":  KindExprStmt,
}

func (c *treeSitterCursor) Kind() Kind {
	typ := c.node.Type()
	if typ == "case_statement" && c.isDefaultCase() {
		return KindDefaultStmt
	}
	if k, ok := nodeKinds[typ]; ok {
		if k == KindFunctionDecl {
			return classifyFunctionKind(c)
		}
		return k
	}
	return KindUnknown
}

// isDefaultCase distinguishes `default:` from `case E:`; tree-sitter-cpp
// represents both as "case_statement" nodes, with "default" lacking a
// "value" field child.
func (c *treeSitterCursor) isDefaultCase() bool {
	for i := 0; i < int(c.node.ChildCount()); i++ {
		child := c.node.Child(i)
		if child != nil && child.Type() == "default" {
			return true
		}
	}
	return false
}

// classifyFunctionKind inspects a function_definition's declarator text;
// tree-sitter-cpp does not emit a distinct node kind for constructors or
// destructors. A declarator that begins with '~' is classified as a
// destructor; every other definition, constructors included, is
// classified as a normal function.
func classifyFunctionKind(c *treeSitterCursor) Kind {
	name := c.DisplayName()
	if strings.HasPrefix(name, "~") {
		return KindDestructorDecl
	}
	return KindFunctionDecl
}

func (c *treeSitterCursor) DisplayName() string {
	declarator := c.node.ChildByFieldName("declarator")
	if declarator == nil {
		return c.node.Content(c.source)
	}
	return declarator.Content(c.source)
}

func (c *treeSitterCursor) Location() Location {
	pt := c.node.StartPoint()
	return Location{
		FileName: c.path,
		Position: Position{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1},
	}
}

func (c *treeSitterCursor) Extent() Extent {
	start := c.node.StartPoint()
	end := c.node.EndPoint()
	return Extent{
		Start: Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:   Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
	}
}

func (c *treeSitterCursor) Children() []Cursor {
	count := int(c.node.ChildCount())
	children := make([]Cursor, 0, count)
	for i := 0; i < count; i++ {
		child := c.node.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		children = append(children, &treeSitterCursor{node: child, source: c.source, path: c.path})
	}
	return children
}

func (c *treeSitterCursor) BinaryOperator() BinaryOp {
	op := c.node.ChildByFieldName("operator")
	if op == nil {
		return BinaryOpOther
	}
	switch op.Content(c.source) {
	case "&&":
		return BinaryOpLogicalAnd
	case "||":
		return BinaryOpLogicalOr
	default:
		return BinaryOpOther
	}
}
