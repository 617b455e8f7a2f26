package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coveron/internal/astcursor"
	"coveron/internal/extractor"
	"coveron/internal/model"
)

func newStore(t *testing.T) *model.Store {
	t.Helper()
	store, err := model.New("test.c", []byte("source"), "test.cri", true, true)
	require.NoError(t, err)
	return store
}

func functionWithBody(name string, body *mockCursor) *mockCursor {
	fn := &mockCursor{
		kind:     astcursor.KindFunctionDecl,
		name:     name,
		start:    pos(1, 1),
		end:      body.end,
		children: []astcursor.Cursor{body},
	}
	return fn
}

func translationUnit(children ...astcursor.Cursor) *mockCursor {
	return &mockCursor{kind: astcursor.KindTranslationUnit, start: pos(1, 1), end: pos(100, 1), children: children}
}

// S1 — basic function with a normal statement and a return statement.
func TestExtractFunctionAndStatements(t *testing.T) {
	stmt1 := leaf(astcursor.KindDeclStmt, 12, 19)
	stmt2 := leaf(astcursor.KindReturnStmt, 19, 27)
	body := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 11), end: pos(1, 28), children: []astcursor.Cursor{stmt1, stmt2}}
	fn := functionWithBody("main", body)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.Functions, 1)
	f := doc.CodeData.Functions[0]
	assert.Equal(t, "main", f.Name)
	assert.Equal(t, model.FunctionNormal, f.Kind)
	assert.Equal(t, model.NoParentFunctionID, f.ParentID)

	require.Len(t, doc.CodeData.Statements, 2)
	assert.Equal(t, model.StatementNormal, doc.CodeData.Statements[0].Kind)
	assert.Equal(t, model.StatementReturn, doc.CodeData.Statements[1].Kind)

	require.Len(t, doc.MarkerData.CheckpointMarkers, 1)
	assert.Equal(t, f.FirstCheckpointID, doc.MarkerData.CheckpointMarkers[0].ID)
	assert.Equal(t, 12, doc.MarkerData.CheckpointMarkers[0].Position.Column)
}

// S2 — if/else with a terminal else-sentinel branch result.
func TestExtractIfElse(t *testing.T) {
	cond := atomicCond("a==1", 5, 11)
	thenStmt := leaf(astcursor.KindExprStmt, 13, 18)
	thenBody := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(5, 12), end: pos(5, 19), children: []astcursor.Cursor{thenStmt}}
	elseStmt := leaf(astcursor.KindExprStmt, 22, 27)
	elseBody := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(6, 8), end: pos(6, 28), children: []astcursor.Cursor{elseStmt}}
	ifStmt := &mockCursor{
		kind: astcursor.KindIfStmt, start: pos(5, 1), end: pos(6, 28),
		children: []astcursor.Cursor{cond, thenBody, elseBody},
	}
	body := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 11), end: pos(7, 1), children: []astcursor.Cursor{ifStmt}}
	fn := functionWithBody("f", body)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.IfBranches, 1)
	branch := doc.CodeData.IfBranches[0]
	require.Len(t, branch.BranchResults, 2)
	assert.NotEqual(t, model.ElseSentinelID, branch.BranchResults[0].EvaluationMarkerID)
	assert.True(t, branch.BranchResults[1].IsElse())
	assert.Empty(t, branch.BranchResults[1].Conditions)
}

// S3 — compound decision (a&&b)||(c&&d) yields exactly 7 possibilities
// over 4 atomic conditions.
func TestExtractCompoundDecisionPossibilities(t *testing.T) {
	a := atomicCond("a", 5, 6)
	b := atomicCond("b", 10, 11)
	c := atomicCond("c", 16, 17)
	d := atomicCond("d", 21, 22)
	left := paren(binOp(astcursor.BinaryOpLogicalAnd, a, b, 6, 10), 4, 12)
	right := paren(binOp(astcursor.BinaryOpLogicalAnd, c, d, 17, 21), 15, 23)
	decision := binOp(astcursor.BinaryOpLogicalOr, left, right, 4, 23)

	ifStmt := &mockCursor{
		kind: astcursor.KindIfStmt, start: pos(1, 1), end: pos(1, 30),
		children: []astcursor.Cursor{
			decision,
			&mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 24), end: pos(1, 30)},
		},
	}
	body := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 11), end: pos(1, 31), children: []astcursor.Cursor{ifStmt}}
	fn := functionWithBody("f", body)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.IfBranches, 1)
	result := doc.CodeData.IfBranches[0].BranchResults[0]
	assert.Len(t, result.Conditions, 4)
	assert.Len(t, result.Possibilities, 7)

	// every possibility must be internally consistent: no condition
	// appears twice with conflicting values.
	for _, poss := range result.Possibilities {
		seen := map[uint32]bool{}
		for _, cr := range poss.Combination {
			if v, ok := seen[cr.EvaluationMarkerID]; ok {
				assert.Equal(t, v, cr.Value, "condition %d must not conflict within one possibility", cr.EvaluationMarkerID)
			}
			seen[cr.EvaluationMarkerID] = cr.Value
		}
	}
}

// S4 — switch with a fall-through case group sharing body and checkpoint.
func TestExtractSwitchFallThrough(t *testing.T) {
	value1 := atomicCond("1", 6, 7)
	case1 := &mockCursor{kind: astcursor.KindCaseStmt, start: pos(1, 1), end: pos(1, 8), children: []astcursor.Cursor{value1}}

	value2 := atomicCond("2", 16, 17)
	stmtX := leaf(astcursor.KindExprStmt, 18, 23)
	stmtBreak := leaf(astcursor.KindBreakStmt, 23, 29)
	case2 := &mockCursor{kind: astcursor.KindCaseStmt, start: pos(1, 11), end: pos(1, 29), children: []astcursor.Cursor{value2, stmtX, stmtBreak}}

	stmtY := leaf(astcursor.KindExprStmt, 38, 43)
	defaultCase := &mockCursor{kind: astcursor.KindDefaultStmt, start: pos(1, 29), end: pos(1, 43), children: []astcursor.Cursor{stmtY}}

	switchBody := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 1), end: pos(1, 43), children: []astcursor.Cursor{case1, case2, defaultCase}}
	switchStmt := &mockCursor{kind: astcursor.KindSwitchStmt, start: pos(1, 1), end: pos(1, 43), children: []astcursor.Cursor{atomicCond("x", 1, 1), switchBody}}

	fnBody := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 11), end: pos(1, 44), children: []astcursor.Cursor{switchStmt}}
	fn := functionWithBody("f", fnBody)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.SwitchBranches, 1)
	cases := doc.CodeData.SwitchBranches[0].Cases
	require.Len(t, cases, 3)
	assert.Equal(t, cases[0].CheckpointMarkerID, cases[1].CheckpointMarkerID, "chained case labels share a checkpoint")
	assert.Equal(t, cases[0].BodySection, cases[1].BodySection, "chained case labels share a body section")
	assert.Equal(t, model.CaseDefault, cases[2].Kind)
	assert.NotEqual(t, cases[1].CheckpointMarkerID, cases[2].CheckpointMarkerID)
}

// S5 — ternary expression hidden inside a normal statement.
func TestExtractHiddenTernary(t *testing.T) {
	cond := atomicCond("a>0", 10, 15)
	trueExpr := atomicCond("1", 18, 19)
	falseExpr := atomicCond("-1", 22, 24)
	ternary := &mockCursor{kind: astcursor.KindConditionalExpr, start: pos(1, 10), end: pos(1, 24), children: []astcursor.Cursor{cond, trueExpr, falseExpr}}
	assign := &mockCursor{kind: astcursor.KindExprStmt, start: pos(1, 1), end: pos(1, 25), children: []astcursor.Cursor{ternary}}

	body := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 1), end: pos(1, 26), children: []astcursor.Cursor{assign}}
	fn := functionWithBody("f", body)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.TernaryExpressions, 1)
	tern := doc.CodeData.TernaryExpressions[0]
	assert.Len(t, tern.Conditions, 1)
	assert.Equal(t, 18, tern.TrueSection.Start.Column)
	assert.Equal(t, 22, tern.FalseSection.Start.Column)
}

// S6 — a label resets the checkpoint region; no checkpoint spans both
// sides of the label.
func TestExtractLabeledGoto(t *testing.T) {
	label := leaf(astcursor.KindLabelStmt, 1, 3)
	assign := leaf(astcursor.KindExprStmt, 3, 8)
	gotoStmt := leaf(astcursor.KindGotoStmt, 8, 16)

	body := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 1), end: pos(1, 17), children: []astcursor.Cursor{label, assign, gotoStmt}}
	fn := functionWithBody("f", body)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.Statements, 2) // label itself emits no Statement entity
	assert.Equal(t, model.StatementNormal, doc.CodeData.Statements[0].Kind)
	assert.Equal(t, model.StatementGoto, doc.CodeData.Statements[1].Kind)

	// the block's first checkpoint and the fresh one forced by the label
	// both sit at the statement right after the label; nothing follows
	// the goto, so no checkpoint is placed after it.
	assert.GreaterOrEqual(t, len(doc.MarkerData.CheckpointMarkers), 2)
	for _, m := range doc.MarkerData.CheckpointMarkers {
		assert.Equal(t, 3, m.Position.Column)
	}
}

// S7 — do-while walks body=0, cond=1 (spec.md §4.1), so its body's
// checkpoint marker must be allocated before its condition's evaluation
// markers.
func TestExtractDoWhileBodyBeforeCondition(t *testing.T) {
	bodyStmt := leaf(astcursor.KindExprStmt, 3, 8)
	loopBody := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 3), end: pos(1, 9), children: []astcursor.Cursor{bodyStmt}}
	cond := atomicCond("x", 15, 16)
	doStmt := &mockCursor{kind: astcursor.KindDoStmt, start: pos(1, 1), end: pos(1, 20), children: []astcursor.Cursor{loopBody, cond}}

	fnBody := &mockCursor{kind: astcursor.KindCompoundStmt, start: pos(1, 1), end: pos(1, 21), children: []astcursor.Cursor{doStmt}}
	fn := functionWithBody("f", fnBody)

	store := newStore(t)
	e := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "test.c")
	require.NoError(t, e.ExtractTranslationUnit(translationUnit(fn)))

	doc := store.Document()
	require.Len(t, doc.CodeData.Loops, 1)
	assert.Equal(t, model.LoopDoWhile, doc.CodeData.Loops[0].Kind)

	// the function body's own checkpoint (at the do statement) comes
	// first, the loop body's checkpoint second.
	require.Len(t, doc.MarkerData.CheckpointMarkers, 2)
	require.NotEmpty(t, doc.MarkerData.EvaluationMarkers)

	bodyCheckpointID := doc.MarkerData.CheckpointMarkers[1].ID
	for _, m := range doc.MarkerData.EvaluationMarkers {
		assert.Less(t, bodyCheckpointID, m.ID,
			"do-while must allocate the body's checkpoint before any condition/decision evaluation marker")
	}
}
