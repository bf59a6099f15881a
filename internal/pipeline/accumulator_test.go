package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

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

func TestAccumulator_TracksRecords(t *testing.T) {
	empty := schemaOf(t, bson.D{{Key: "l", Value: bson.A{}}})
	other := schemaOf(t, bson.D{{Key: "x", Value: true}})
	typed := schemaOf(t, bson.D{{Key: "l", Value: bson.A{"s"}}})

	acc := NewAccumulator()
	steps := []struct {
		ordinal uint32
		schema  shape.Schema
		want    shape.Action
	}{
		{0, empty, shape.Push},
		{1, empty, shape.NoOp},
		{2, other, shape.Push},
		{3, typed, shape.Take},
		{4, empty, shape.Keep},
		{5, other, shape.NoOp},
	}
	for _, s := range steps {
		assert.Equal(t, s.want, acc.Add(s.ordinal, s.schema).Action, "ordinal %d", s.ordinal)
	}

	require.Equal(t, 2, acc.Len())
	assert.Equal(t, []uint32{2, 5}, acc.Records(0).ToArray())
	assert.Equal(t, []uint32{0, 1, 3, 4}, acc.Records(1).ToArray())

	assert.Equal(t, map[string]int64{"noop": 2, "push": 2, "keep": 1, "take": 1}, acc.Actions())
}

func TestAccumulator_Snapshot(t *testing.T) {
	acc := NewAccumulator()
	a := schemaOf(t, bson.D{{Key: "a", Value: int32(1)}})
	b := schemaOf(t, bson.D{{Key: "a", Value: "s"}})
	for i := uint32(0); i < 10; i++ {
		if i%3 == 0 {
			acc.Add(i, b)
		} else {
			acc.Add(i, a)
		}
	}

	snap := acc.Snapshot(3)
	require.Len(t, snap.Shapes, 2)
	assert.True(t, snap.Shapes[0].Schema.Equal(b))
	assert.Equal(t, uint64(4), snap.Shapes[0].Records)
	assert.Equal(t, []uint32{0, 3, 6}, snap.Shapes[0].Samples)
	assert.Equal(t, uint64(6), snap.Shapes[1].Records)
	assert.Equal(t, []uint32{1, 2, 4}, snap.Shapes[1].Samples)

	assert.Empty(t, acc.Snapshot(0).Shapes[0].Samples)
}

func TestAccumulator_Seed(t *testing.T) {
	previous := shape.NewSet()
	previous.Insert(schemaOf(t, bson.D{{Key: "l", Value: bson.A{}}}))
	previous.Insert(schemaOf(t, bson.D{{Key: "n", Value: 1.5}}))

	acc := NewAccumulator()
	acc.Seed(previous)
	require.Equal(t, 2, acc.Len())
	assert.Equal(t, 2, acc.Snapshot(0).Seeded)
	assert.True(t, acc.Records(0).IsEmpty())

	out := acc.Add(0, schemaOf(t, bson.D{{Key: "l", Value: bson.A{int32(1)}}}))
	assert.Equal(t, shape.Take, out.Action)
	assert.Equal(t, []uint32{0}, acc.Records(1).ToArray())

	// the seeded set itself is not modified
	assert.Equal(t, 2, previous.Len())
	assert.True(t, previous.At(0).Equal(schemaOf(t, bson.D{{Key: "l", Value: bson.A{}}})))
}

func TestAccumulator_SetIsCopy(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(0, schemaOf(t, bson.D{{Key: "a", Value: true}}))

	set := acc.Set()
	set.Insert(schemaOf(t, bson.D{{Key: "b", Value: true}}))
	assert.Equal(t, 1, acc.Len())
	assert.Equal(t, 2, set.Len())
}
