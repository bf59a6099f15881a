package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/shapescan/pkg/openapi"
	"github.com/usestring/shapescan/pkg/shape"
)

func sample() *shape.Set {
	return shape.SetOf(
		shape.NewSchema(
			shape.F("a", shape.Scalar(shape.KindInt32)),
			shape.F("l", shape.Array(shape.Scalar(shape.KindString))),
		),
		shape.NewSchema(
			shape.F("b", shape.Object(shape.F("c", shape.Scalar(shape.KindBoolean)))),
		),
	)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{"jsonschema", FormatJSONSchema, false},
		{"openapi", FormatOpenAPI, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_JSON(t *testing.T) {
	set := shape.SetOf(shape.NewSchema(
		shape.F("z", shape.Scalar(shape.KindInt32)),
		shape.F("a", shape.Array(shape.Scalar(shape.KindString))),
	))

	data, err := Encode(context.Background(), set, FormatJSON, openapi.Info{})
	require.NoError(t, err)

	want := `[
  {
    "z": [
      "Int32"
    ],
    "a": [
      [
        "String"
      ]
    ]
  }
]
`
	assert.Equal(t, want, string(data))
}

func TestEncode_Formats(t *testing.T) {
	ctx := context.Background()

	t.Run("yaml", func(t *testing.T) {
		data, err := Encode(ctx, sample(), FormatYAML, openapi.Info{})
		require.NoError(t, err)
		assert.Contains(t, string(data), "- Int32")
		assert.Contains(t, string(data), "c:")
	})

	t.Run("jsonschema", func(t *testing.T) {
		data, err := Encode(ctx, sample(), FormatJSONSchema, openapi.Info{})
		require.NoError(t, err)

		var docs []map[string]any
		require.NoError(t, json.Unmarshal(data, &docs))
		require.Len(t, docs, 2)
		assert.Equal(t, "Shape1", docs[0]["title"])
		assert.Equal(t, "Shape2", docs[1]["title"])
	})

	t.Run("openapi", func(t *testing.T) {
		data, err := Encode(ctx, sample(), FormatOpenAPI, openapi.Info{Title: "things"})
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, openapi.Version, doc["openapi"])
		schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
		assert.Contains(t, schemas, "Shape1")
		assert.Contains(t, schemas, "Shape2")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Encode(ctx, sample(), Format("csv"), openapi.Info{})
		assert.Error(t, err)
	})
}

func TestWriter_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shapes.json")
	w := New(path, FormatJSON, openapi.Info{})
	require.True(t, w.ToFile())

	require.NoError(t, w.Write(context.Background(), shape.NewSet()))
	require.NoError(t, w.Write(context.Background(), sample()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")

	got, err := ReadSet(path)
	require.NoError(t, err)
	assert.Equal(t, sample().String(), got.String())
}

func TestWriter_Stdout(t *testing.T) {
	w := New("-", FormatJSON, openapi.Info{})
	assert.False(t, w.ToFile())

	var buf bytes.Buffer
	w.SetStdout(&buf)
	require.NoError(t, w.Write(context.Background(), sample()))
	assert.Contains(t, buf.String(), `"Int32"`)
}

func TestReadSet_YAML(t *testing.T) {
	data, err := Encode(context.Background(), sample(), FormatYAML, openapi.Info{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "shapes.yaml")
	require.NoError(t, WriteFile(path, data))

	got, err := ReadSet(path)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	for i, s := range sample().Schemas() {
		assert.True(t, got.At(i).Equal(s), "shape %d", i)
	}
}

func TestReadSet_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadSet(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o644))
	_, err = ReadSet(bad)
	assert.Error(t, err)
}

func TestWriteFile_MissingDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "out.json"), []byte("[]"))
	assert.Error(t, err)
}
