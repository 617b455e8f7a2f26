package serializer_test

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coveron/internal/model"
	"coveron/internal/position"
	"coveron/internal/serializer"
)

func sampleDocument(t *testing.T) model.Document {
	t.Helper()
	store, err := model.New("test.c", []byte("int main(){return 1;}"), "test.cri", true, true)
	require.NoError(t, err)
	sec, err := position.NewSection(position.Position{Line: 1, Column: 1}, position.Position{Line: 1, Column: 10})
	require.NoError(t, err)
	store.AddFunction(model.Function{ID: 1, Name: "main", Kind: model.FunctionNormal, ParentID: model.NoParentFunctionID, HeaderSection: sec, BodySection: sec})
	return store.Document()
}

func TestMarshalNoCompProducesPlainJSONWithIntegerEnums(t *testing.T) {
	doc := sampleDocument(t)
	out, err := serializer.Marshal(doc, serializer.Options{NoComp: true})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))

	assert.Equal(t, "test.c", generic["source_path"])
	codeData := generic["code_data"].(map[string]any)
	functions := codeData["functions"].([]any)
	require.Len(t, functions, 1)
	fn := functions[0].(map[string]any)
	assert.Equal(t, float64(1), fn["kind"], "FunctionNormal must serialize as integer discriminant 1")
	assert.Equal(t, float64(model.NoParentFunctionID), fn["parent_id"])
}

func TestMarshalDefaultGzipWraps(t *testing.T) {
	doc := sampleDocument(t)
	out, err := serializer.Marshal(doc, serializer.Options{})
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(out))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(decompressed, &generic))
	assert.Equal(t, "test.c", generic["source_path"])
}

func TestMarshalEmptySlicesAreEmptyArraysNotNull(t *testing.T) {
	doc := sampleDocument(t)
	out, err := serializer.Marshal(doc, serializer.Options{NoComp: true})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	markerData := generic["marker_data"].(map[string]any)
	assert.Equal(t, []any{}, markerData["checkpoint_markers"])
}
