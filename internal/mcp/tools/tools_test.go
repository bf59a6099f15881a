package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/runner"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/source"
)

const people = `{"name":"Shaun","age":25,"likes":["cats","dogs"]}
{"name":"Tom","age":"28?","likes":"fishing"}
{"name":"Kris","age":400,"likes":[]}
`

func newDeps(t *testing.T, data string) *Deps {
	t.Helper()
	st, err := store.Open(store.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	rc, err := cache.NewRunCache(8)
	require.NoError(t, err)

	open := func(ctx context.Context, cfg source.Config) (source.Source, error) {
		return source.NewReader(strings.NewReader(data), source.NDJSON)
	}
	return &Deps{
		Runner: &runner.Runner{Store: st, Cache: rc, Open: open},
		Store:  st,
		Cache:  rc,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var coded *CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, code, coded.Code)
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestToolClassify(t *testing.T) {
	h := ToolClassify(&Deps{})

	_, out, err := h(context.Background(), nil, ClassifyInput{
		Document: `{"name":"Shaun","age":25,"id":{"$oid":"5f1d7a3b9c1e4a2b3c4d5e6f"},"tags":[]}`,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":["String"],"age":["Int32"],"id":["ObjectId"],"tags":[[]]}`, out.Encoding)
	assert.Equal(t, 4, out.Fields)
	assert.Equal(t, out.Encoding, toJSON(t, out.Schema))

	doc, ok := out.JSONSchema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Shape1", doc["title"])
	assert.Contains(t, doc["properties"], "id")
}

func TestToolClassify_InvalidInput(t *testing.T) {
	h := ToolClassify(&Deps{})
	for _, doc := range []string{"", "   ", "not json", "[1, 2]", `"text"`} {
		_, _, err := h(context.Background(), nil, ClassifyInput{Document: doc})
		requireCode(t, err, ErrCodeInvalidInput)
	}
}

func TestToolCompare(t *testing.T) {
	h := ToolCompare(&Deps{})

	tests := []struct {
		name     string
		a, b     string
		action   string
		reverse  string
		retained string
		fields   []FieldComparison
	}{
		{
			name:     "typed array replaces empty",
			a:        `{"l":[]}`,
			b:        `{"l":["x"]}`,
			action:   "take",
			reverse:  "keep",
			retained: `[{"l":[["String"]]}]`,
			fields:   []FieldComparison{{Field: "l", Action: "take"}},
		},
		{
			name:     "empty array is redundant",
			a:        `{"l":[1]}`,
			b:        `{"l":[]}`,
			action:   "keep",
			reverse:  "take",
			retained: `[{"l":[["Int32"]]}]`,
			fields:   []FieldComparison{{Field: "l", Action: "keep"}},
		},
		{
			name:     "different scalar",
			a:        `{"a":1}`,
			b:        `{"a":"x"}`,
			action:   "push",
			reverse:  "push",
			retained: `[{"a":["Int32"]},{"a":["String"]}]`,
			fields:   []FieldComparison{{Field: "a", Action: "push"}},
		},
		{
			name:     "same shape",
			a:        `{"a":1,"b":true}`,
			b:        `{"b":false,"a":2}`,
			action:   "noop",
			reverse:  "noop",
			retained: `[{"a":["Int32"],"b":["Boolean"]}]`,
			fields:   []FieldComparison{{Field: "b", Action: "noop"}, {Field: "a", Action: "noop"}},
		},
		{
			name:     "no shared fields",
			a:        `{"a":1}`,
			b:        `{"b":1}`,
			action:   "push",
			reverse:  "push",
			retained: `[{"a":["Int32"]},{"b":["Int32"]}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := h(context.Background(), nil, CompareInput{DocumentA: tt.a, DocumentB: tt.b})
			require.NoError(t, err)
			assert.Equal(t, tt.action, out.Action)
			assert.Equal(t, tt.reverse, out.Reverse)
			assert.Equal(t, tt.fields, out.Fields)

			var want, got any
			require.NoError(t, json.Unmarshal([]byte(tt.retained), &want))
			require.NoError(t, json.Unmarshal([]byte(toJSON(t, out.Retained)), &got))
			assert.Equal(t, want, got)
		})
	}
}

func TestToolCompare_InvalidInput(t *testing.T) {
	h := ToolCompare(&Deps{})
	_, _, err := h(context.Background(), nil, CompareInput{DocumentA: `{"a":1}`})
	requireCode(t, err, ErrCodeInvalidInput)
	assert.Contains(t, err.Error(), "document_b")
}

func TestToolInfer(t *testing.T) {
	d := newDeps(t, people)

	_, out, err := ToolInfer(d)(context.Background(), nil, InferInput{Path: "people.ndjson", Samples: 5})
	require.NoError(t, err)

	assert.Equal(t, "people.ndjson", out.Source)
	assert.Equal(t, "Number of schemas for 3 docs = 2", out.Summary)
	assert.Equal(t, int64(3), out.Stats.Read)
	assert.Equal(t, int64(1), out.Stats.Actions["keep"])
	assert.Empty(t, out.Error)

	require.Len(t, out.Shapes, 2)
	assert.Equal(t, "Shape1", out.Shapes[0].Title)
	assert.Equal(t, uint64(2), out.Shapes[0].Records)
	assert.Equal(t, []uint32{0, 2}, out.Shapes[0].Samples)
	assert.Equal(t, uint64(1), out.Shapes[1].Records)

	require.NotEmpty(t, out.Fields)
	assert.Equal(t, "name", out.Fields[0].Path)
	assert.True(t, out.Fields[0].Required)
	assert.InDelta(t, 1.0, out.Fields[0].Frequency, 1e-9)

	require.NotNil(t, out.Resource)
	assert.Equal(t, "shapes://run/"+out.RunID, out.Resource.URI)

	id, err := uuid.Parse(out.RunID)
	require.NoError(t, err)
	stored, err := d.Store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Shapes.Len())
}

func TestToolInfer_Filter(t *testing.T) {
	d := newDeps(t, people)

	_, out, err := ToolInfer(d)(context.Background(), nil, InferInput{Path: "people.ndjson", Filter: "{name}"})
	require.NoError(t, err)
	require.Len(t, out.Shapes, 1)
	assert.Equal(t, `{"name":["String"]}`, toJSON(t, out.Shapes[0].Schema))
}

func TestToolInfer_InvalidInput(t *testing.T) {
	d := newDeps(t, people)
	h := ToolInfer(d)

	tests := []struct {
		name  string
		input InferInput
	}{
		{"no source", InferInput{}},
		{"mongo without collection", InferInput{URI: "mongodb://localhost:27017", Database: "app"}},
		{"negative limit", InferInput{Path: "people.ndjson", Limit: -1}},
		{"unknown format", InferInput{Path: "people.ndjson", Format: "csv"}},
		{"bad filter", InferInput{Path: "people.ndjson", Filter: ".[["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h(context.Background(), nil, tt.input)
			requireCode(t, err, ErrCodeInvalidInput)
		})
	}
}

func TestToolInfer_SourceError(t *testing.T) {
	d := newDeps(t, people)
	d.Runner.Open = func(ctx context.Context, cfg source.Config) (source.Source, error) {
		return nil, errors.New("connection refused")
	}

	_, _, err := ToolInfer(d)(context.Background(), nil, InferInput{Path: "people.ndjson"})
	requireCode(t, err, ErrCodeSourceError)

	d.Runner.Open = func(ctx context.Context, cfg source.Config) (source.Source, error) {
		return nil, context.DeadlineExceeded
	}
	_, _, err = ToolInfer(d)(context.Background(), nil, InferInput{Path: "people.ndjson"})
	requireCode(t, err, ErrCodeTimeout)
}

func TestToolRuns(t *testing.T) {
	d := newDeps(t, people)
	ctx := context.Background()

	_, inferred, err := ToolInfer(d)(ctx, nil, InferInput{Path: "people.ndjson"})
	require.NoError(t, err)

	_, list, err := ToolRunsList(d)(ctx, nil, RunsListInput{})
	require.NoError(t, err)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, inferred.RunID, list.Runs[0].RunID)
	assert.Equal(t, 2, list.Runs[0].Shapes)

	_, got, err := ToolRunGet(d)(ctx, nil, RunGetInput{RunID: inferred.RunID, Export: "yaml"})
	require.NoError(t, err)
	assert.Equal(t, inferred.RunID, got.Run.RunID)
	assert.Equal(t, inferred.Summary, got.Run.Summary)
	require.Len(t, got.Run.Shapes, 2)
	assert.Zero(t, got.Run.Shapes[0].Records)
	assert.Contains(t, got.Export, "name:")
}

func TestToolRunGet_Errors(t *testing.T) {
	d := newDeps(t, people)
	h := ToolRunGet(d)

	_, _, err := h(context.Background(), nil, RunGetInput{RunID: "nope"})
	requireCode(t, err, ErrCodeInvalidInput)

	_, _, err = h(context.Background(), nil, RunGetInput{RunID: uuid.NewString()})
	requireCode(t, err, ErrCodeNotFound)

	_, _, err = h(context.Background(), nil, RunGetInput{RunID: uuid.NewString(), Export: "xml"})
	requireCode(t, err, ErrCodeInvalidInput)
}

func TestToolRunsList_NoStore(t *testing.T) {
	_, out, err := ToolRunsList(&Deps{})(context.Background(), nil, RunsListInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Runs)
}
