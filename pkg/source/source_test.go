package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// drain reads src to the end, returning documents and record errors.
func drain(t *testing.T, src Source) ([]bson.Raw, []*RecordError) {
	t.Helper()
	ctx := context.Background()
	var (
		docs []bson.Raw
		bad  []*RecordError
	)
	for {
		doc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return docs, bad
		}
		var re *RecordError
		if errors.As(err, &re) {
			bad = append(bad, re)
			continue
		}
		require.NoError(t, err)
		docs = append(docs, doc)
	}
}

func keys(t *testing.T, doc bson.Raw) []string {
	t.Helper()
	elems, err := doc.Elements()
	require.NoError(t, err)
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		out = append(out, e.Key())
	}
	return out
}

func TestDetectFormat(t *testing.T) {
	empty, err := bson.Marshal(bson.D{})
	require.NoError(t, err)
	doc, err := bson.Marshal(bson.D{{Key: "a", Value: int32(1)}})
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		head []byte
		want Format
	}{
		{"ndjson extension", "x.ndjson", []byte(`{"a":1}`), NDJSON},
		{"jsonl extension", "x.jsonl", nil, NDJSON},
		{"json array", "x.json", []byte("  \n[{\"a\":1}]"), JSONArray},
		{"json lines", "x.json", []byte(`{"a":1}`), NDJSON},
		{"yaml extension", "x.yml", []byte("a: 1"), YAML},
		{"bson extension", "dump/users.bson", nil, BSON},
		{"sniff bson", "stdin", doc, BSON},
		{"sniff empty bson document", "", empty, BSON},
		{"sniff array", "", []byte(`[1]`), JSONArray},
		{"sniff object", "", []byte("\ufeff{\"a\":1}"), NDJSON},
		{"sniff yaml", "", []byte("a: 1\n---\nb: 2\n"), YAML},
		{"uppercase extension", "X.JSON", []byte(`[`), JSONArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.file, tt.head))
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Auto, false},
		{"auto", Auto, false},
		{"JSONL", NDJSON, false},
		{"json", JSONArray, false},
		{"yml", YAML, false},
		{"bson", BSON, false},
		{"csv", Auto, true},
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

func TestFileSource_NDJSON(t *testing.T) {
	in := strings.Join([]string{
		`{"name":"Shaun","age":25,"likes":["cats","dogs"]}`,
		``,
		`{"name": broken`,
		`{"_id":{"$oid":"5f1d7f1b9d1e8a0b0c0d0e0f"},"at":{"$date":"2020-01-01T00:00:00Z"},"big":{"$numberLong":"9"}}`,
		`[1,2]`,
	}, "\n")

	src, err := NewReader(strings.NewReader(in), Auto)
	require.NoError(t, err)
	assert.Equal(t, NDJSON, src.Format())

	docs, bad := drain(t, src)
	require.Len(t, docs, 2)
	require.Len(t, bad, 2)
	assert.Equal(t, int64(2), bad[0].Record)
	assert.Equal(t, int64(4), bad[1].Record)
	assert.True(t, IsRecordError(bad[0]))

	assert.Equal(t, []string{"name", "age", "likes"}, keys(t, docs[0]))
	assert.Equal(t, bsontype.Int32, docs[0].Lookup("age").Type)
	assert.Equal(t, bsontype.ObjectID, docs[1].Lookup("_id").Type)
	assert.Equal(t, bsontype.DateTime, docs[1].Lookup("at").Type)
	assert.Equal(t, bsontype.Int64, docs[1].Lookup("big").Type)
}

func TestFileSource_JSONArray(t *testing.T) {
	in := `[{"b":1.5,"a":"x"}, 7, {"n":{"inner":[]}}]`
	src, err := NewReader(strings.NewReader(in), JSONArray)
	require.NoError(t, err)

	docs, bad := drain(t, src)
	require.Len(t, docs, 2)
	require.Len(t, bad, 1)
	assert.Equal(t, int64(2), bad[0].Record)
	assert.Equal(t, []string{"b", "a"}, keys(t, docs[0]))
	assert.Equal(t, bsontype.Double, docs[0].Lookup("b").Type)
	assert.Equal(t, bsontype.Array, docs[1].Lookup("n", "inner").Type)
}

func TestFileSource_JSONArrayInvalid(t *testing.T) {
	_, err := NewReader(strings.NewReader(`{"not":"an array"}`), JSONArray)
	assert.Error(t, err)

	src, err := NewReader(strings.NewReader(`[{"a":`), JSONArray)
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.True(t, IsRecordError(err))
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, IsRecordError(err))
	assert.NotErrorIs(t, err, io.EOF)
}

func TestFileSource_JSONArrayPretty(t *testing.T) {
	in := `[{
	"_id": {
		"$oid": "5f1d7f1b9d1e8a0b0c0d0e0f"
	},
	"tags": ["a]", "b,"]
},
{
	"note": "brace { inside \" string",
	"n": 1
}]
`
	src, err := NewReader(strings.NewReader(in), Auto)
	require.NoError(t, err)
	assert.Equal(t, JSONArray, src.Format())

	docs, bad := drain(t, src)
	assert.Empty(t, bad)
	require.Len(t, docs, 2)
	assert.Equal(t, bsontype.ObjectID, docs[0].Lookup("_id").Type)
	assert.Equal(t, []string{"note", "n"}, keys(t, docs[1]))
}

func TestFileSource_JSONArrayStreams(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		_, _ = pw.Write([]byte("[{\"a\":1},\n"))
	}()

	type result struct {
		doc bson.Raw
		err error
	}
	first := make(chan result, 1)
	go func() {
		src, err := NewReader(pr, JSONArray)
		if err != nil {
			first <- result{err: err}
			return
		}
		doc, err := src.Next(context.Background())
		first <- result{doc, err}
	}()

	select {
	case r := <-first:
		require.NoError(t, r.err)
		assert.Equal(t, []string{"a"}, keys(t, r.doc))
	case <-time.After(5 * time.Second):
		t.Fatal("first element not returned before the array was complete")
	}
	pw.Close()
}

func TestFileSource_JSONArraySingleLine(t *testing.T) {
	const n = 5000
	var b strings.Builder
	b.WriteByte('[')
	for i := range n {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"i":%d,"s":"xxxxxxxx"}`, i)
	}
	b.WriteByte(']')
	require.Greater(t, b.Len(), 64*1024)

	src, err := NewReader(strings.NewReader(b.String()), Auto)
	require.NoError(t, err)
	assert.Equal(t, JSONArray, src.Format())

	docs, bad := drain(t, src)
	assert.Empty(t, bad)
	require.Len(t, docs, n)
	assert.Equal(t, int32(n-1), docs[n-1].Lookup("i").Int32())
}

func TestFileSource_LongDocument(t *testing.T) {
	long := strings.Repeat("y", 100*1024)
	in := `{"a":"` + long + `"}` + "\n" + `{"b":2}` + "\n"
	src, err := NewReader(strings.NewReader(in), NDJSON)
	require.NoError(t, err)

	docs, bad := drain(t, src)
	assert.Empty(t, bad)
	require.Len(t, docs, 2)
	assert.Equal(t, long, docs[0].Lookup("a").StringValue())
	assert.Equal(t, []string{"b"}, keys(t, docs[1]))
}

func TestFileSource_PrettyDocuments(t *testing.T) {
	in := `{
  "name": "Shaun",
  "age": 25,
  "likes": [
    "cats",
    "dogs"
  ]
}
{
  "name": "Tom",
  "address": {
    "city": "Leeds"
  }
} {"name": "Kris"}
{
  "name": broken,
{"name": "Ann"}
{
  "note": "unterminated
}
`
	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	require.NoError(t, os.WriteFile(path, []byte(in), 0o600))

	src, err := OpenFile(path, Auto)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, NDJSON, src.Format())

	docs, bad := drain(t, src)
	require.Len(t, docs, 4)
	assert.Equal(t, []string{"name", "age", "likes"}, keys(t, docs[0]))
	assert.Equal(t, bsontype.Array, docs[0].Lookup("likes").Type)
	assert.Equal(t, bsontype.EmbeddedDocument, docs[1].Lookup("address").Type)
	assert.Equal(t, "Kris", docs[2].Lookup("name").StringValue())
	assert.Equal(t, "Ann", docs[3].Lookup("name").StringValue())

	require.NotEmpty(t, bad)
	assert.Equal(t, int64(4), bad[0].Record)
}

func TestFileSource_YAML(t *testing.T) {
	in := `name: Shaun
age: 25
likes: [cats, dogs]
---
---
- not
- a mapping
---
zeta: true
alpha:
  nested: 1.5
`
	src, err := NewReader(strings.NewReader(in), YAML)
	require.NoError(t, err)

	docs, bad := drain(t, src)
	require.Len(t, docs, 2)
	require.Len(t, bad, 1)
	assert.Equal(t, []string{"name", "age", "likes"}, keys(t, docs[0]))
	assert.Equal(t, bsontype.Int32, docs[0].Lookup("age").Type)
	assert.Equal(t, bsontype.Array, docs[0].Lookup("likes").Type)
	assert.Equal(t, []string{"zeta", "alpha"}, keys(t, docs[1]))
	assert.Equal(t, bsontype.Double, docs[1].Lookup("alpha", "nested").Type)
}

func TestFileSource_YAMLSyntaxErrorIsFatal(t *testing.T) {
	src, err := NewReader(strings.NewReader("a: [1, 2\nb: }"), YAML)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, IsRecordError(err))
}

func TestFileSource_BSONDump(t *testing.T) {
	var buf bytes.Buffer
	for _, d := range []bson.D{
		{{Key: "a", Value: int32(1)}},
		{{Key: "b", Value: bson.A{"x"}}},
	} {
		raw, err := bson.Marshal(d)
		require.NoError(t, err)
		buf.Write(raw)
	}

	src, err := NewReader(bytes.NewReader(buf.Bytes()), Auto)
	require.NoError(t, err)
	assert.Equal(t, BSON, src.Format())

	docs, bad := drain(t, src)
	assert.Empty(t, bad)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"b"}, keys(t, docs[1]))
}

func TestFileSource_BSONTruncated(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "a", Value: "hello"}})
	require.NoError(t, err)

	src, err := NewReader(bytes.NewReader(raw[:len(raw)-3]), BSON)
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, IsRecordError(err))
}

func TestFileSource_CancelledContext(t *testing.T) {
	src, err := NewReader(strings.NewReader(`{"a":1}`), NDJSON)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"a":1},{"a":2},{"a":3}]`), 0o600))

	src, err := Open(context.Background(), Config{Path: path, Limit: 2})
	require.NoError(t, err)
	defer src.Close()

	docs, _ := drain(t, src)
	assert.Len(t, docs, 2)

	_, err = Open(context.Background(), Config{Path: filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{URI: "mongodb://localhost:27017"})
	assert.ErrorContains(t, err, "database and collection")
}

func TestLimit(t *testing.T) {
	src, err := FromDocuments(bson.D{{Key: "a", Value: 1}}, bson.D{{Key: "a", Value: 2}}, bson.D{{Key: "a", Value: 3}})
	require.NoError(t, err)

	docs, _ := drain(t, Limit(src, 2))
	assert.Len(t, docs, 2)

	again, err := FromDocuments(bson.D{{Key: "a", Value: 1}})
	require.NoError(t, err)
	assert.Same(t, Source(again), Limit(again, 0))
}

func TestConfig_Describe(t *testing.T) {
	assert.Equal(t, "stdin", Config{Path: "-"}.Describe())
	assert.Equal(t, "data.json", Config{Path: "data.json", URI: "mongodb://h"}.Describe())
	assert.Equal(t, "app.users", Config{URI: "mongodb+srv://h", Database: "app", Collection: "users"}.Describe())
	assert.True(t, IsMongoURI("mongodb://localhost"))
	assert.False(t, IsMongoURI("file.json"))
}
