// Package pipeline folds the records of a source into a shape set.
package pipeline

import (
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/usestring/shapescan/pkg/shape"
)

// Accumulator owns the shape set of one run. Next to every retained shape
// it keeps a bitmap of the ordinals of the records that shape absorbed.
//
// Add must only be called from one goroutine; readers use Snapshot.
type Accumulator struct {
	mu sync.RWMutex

	set     *shape.Set
	records []*roaring.Bitmap // parallel to set entries
	actions [4]int64          // indexed by shape.Action
	seeded  int
}

// ShapeSummary describes one retained shape. Records counts distinct
// source records: a filter that emits several documents from one record
// adds that record once, so the sum over all shapes can be lower than
// Stats.Inserted.
type ShapeSummary struct {
	Schema  shape.Schema `json:"schema"`
	Records uint64       `json:"records"`
	Samples []uint32     `json:"samples,omitempty"`
}

// Snapshot is a consistent copy of the accumulator state.
type Snapshot struct {
	Shapes  []ShapeSummary   `json:"shapes"`
	Actions map[string]int64 `json:"actions"`
	Seeded  int              `json:"seeded,omitempty"`
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{set: shape.NewSet()}
}

// Seed preloads the schemas of a previous result. Seeded shapes start
// with no records. Seed replaces any earlier state.
func (a *Accumulator) Seed(set *shape.Set) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.set = shape.SetOf(set.Schemas()...)
	a.records = make([]*roaring.Bitmap, a.set.Len())
	for i := range a.records {
		a.records[i] = roaring.New()
	}
	a.actions = [4]int64{}
	a.seeded = a.set.Len()
}

// Add inserts the schema of record ordinal and keeps the record bitmaps in
// step with the set. Documents filtered out of the same record share its
// ordinal.
func (a *Accumulator) Add(ordinal uint32, schema shape.Schema) shape.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.set.Insert(schema)
	switch out.Action {
	case shape.NoOp, shape.Keep:
		a.records[out.Index].Add(ordinal)
	case shape.Take:
		absorbed := a.records[out.Index]
		a.records = slices.Delete(a.records, out.Index, out.Index+1)
		absorbed.Add(ordinal)
		a.records = append(a.records, absorbed)
	case shape.Push:
		bm := roaring.New()
		bm.Add(ordinal)
		a.records = append(a.records, bm)
	}
	a.actions[out.Action]++
	return out
}

// Len returns the number of retained shapes.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set.Len()
}

// Set returns a copy of the current shape set.
func (a *Accumulator) Set() *shape.Set {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return shape.SetOf(a.set.Schemas()...)
}

// Records returns a copy of the record bitmap of the i-th shape.
func (a *Accumulator) Records(i int) *roaring.Bitmap {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records[i].Clone()
}

// Actions returns how often each insertion action occurred.
func (a *Accumulator) Actions() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.actionCounts()
}

func (a *Accumulator) actionCounts() map[string]int64 {
	out := make(map[string]int64, len(a.actions))
	for _, act := range shape.Actions() {
		out[act.String()] = a.actions[act]
	}
	return out
}

// Snapshot copies the current state, with up to samples record ordinals
// per shape.
func (a *Accumulator) Snapshot(samples int) Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		Shapes:  make([]ShapeSummary, a.set.Len()),
		Actions: a.actionCounts(),
		Seeded:  a.seeded,
	}
	for i := range snap.Shapes {
		bm := a.records[i]
		summary := ShapeSummary{
			Schema:  a.set.At(i),
			Records: bm.GetCardinality(),
		}
		if samples > 0 && !bm.IsEmpty() {
			it := bm.Iterator()
			for it.HasNext() && len(summary.Samples) < samples {
				summary.Samples = append(summary.Samples, it.Next())
			}
		}
		snap.Shapes[i] = summary
	}
	return snap
}
