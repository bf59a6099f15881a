package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/shape"
)

func schemaOf(t *testing.T, doc bson.D) shape.Schema {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	s, err := shape.Build(raw)
	require.NoError(t, err)
	return s
}

func TestNewRunOutput_StoredRun(t *testing.T) {
	set := shape.NewSet()
	set.Insert(schemaOf(t, bson.D{{Key: "a", Value: int32(1)}}))
	set.Insert(schemaOf(t, bson.D{{Key: "a", Value: "x"}, {Key: "b", Value: true}}))

	run := &store.Run{
		ID:        uuid.Must(uuid.NewV7()),
		Source:    "people.json",
		StartedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Stats:     pipeline.Stats{Read: 3, Inserted: 3, Shapes: 2},
		Shapes:    set,
	}

	out, err := NewRunOutput(run, nil)
	require.NoError(t, err)

	assert.Equal(t, run.ID.String(), out.RunID)
	assert.Equal(t, "2024-01-02T03:04:05Z", out.StartedAt)
	assert.Empty(t, out.FinishedAt)
	assert.Equal(t, "Number of schemas for 3 docs = 2", out.Summary)

	require.Len(t, out.Shapes, 2)
	assert.Equal(t, "Shape1", out.Shapes[0].Title)
	assert.Equal(t, "Shape2", out.Shapes[1].Title)
	assert.Zero(t, out.Shapes[0].Records)
	assert.Equal(t, map[string]any{"a": []any{"Int32"}}, out.Shapes[0].Schema)

	require.Len(t, out.Fields, 2)
	assert.Equal(t, "a", out.Fields[0].Path)
	assert.True(t, out.Fields[0].Required)
	assert.Equal(t, []string{"Int32", "String"}, out.Fields[0].BSONTypes)
	assert.Equal(t, "b", out.Fields[1].Path)
	assert.False(t, out.Fields[1].Required)
	assert.Zero(t, out.Fields[1].Frequency)
}

func TestNewRunOutput_Snapshot(t *testing.T) {
	acc := pipeline.NewAccumulator()
	acc.Add(0, schemaOf(t, bson.D{{Key: "a", Value: int32(1)}}))
	acc.Add(1, schemaOf(t, bson.D{{Key: "a", Value: int32(2)}}))
	acc.Add(2, schemaOf(t, bson.D{{Key: "b", Value: true}}))
	snap := acc.Snapshot(1)

	run := &store.Run{ID: uuid.Must(uuid.NewV7()), Stats: pipeline.Stats{Read: 3, Shapes: 2}, Shapes: acc.Set()}
	out, err := NewRunOutput(run, &snap)
	require.NoError(t, err)

	require.Len(t, out.Shapes, 2)
	assert.Equal(t, uint64(2), out.Shapes[0].Records)
	assert.Equal(t, []uint32{0}, out.Shapes[0].Samples)
	assert.Equal(t, uint64(1), out.Shapes[1].Records)

	require.Len(t, out.Fields, 2)
	assert.InDelta(t, 2.0/3.0, out.Fields[0].Frequency, 1e-9)
	assert.InDelta(t, 1.0/3.0, out.Fields[1].Frequency, 1e-9)
}

func TestNewRunOutput_NoShapes(t *testing.T) {
	out, err := NewRunOutput(&store.Run{ID: uuid.Must(uuid.NewV7()), Error: "boom"}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Shapes)
	assert.Nil(t, out.Fields)
	assert.Equal(t, "boom", out.Error)
}
