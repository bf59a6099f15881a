package types

import (
	"time"

	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/jsonschema"
	"github.com/usestring/shapescan/pkg/shape"
)

// ShapeEntry is one retained shape.
type ShapeEntry struct {
	Index   int      `json:"index"`
	Title   string   `json:"title"`
	Schema  any      `json:"schema"` // {"field": [descriptor, ...]}
	Records uint64   `json:"records,omitempty"`
	Samples []uint32 `json:"samples,omitempty"` // 0-based record ordinals
}

// RunStats mirrors pipeline.Stats with tool-friendly encodings.
type RunStats struct {
	Read       int64            `json:"read"`
	Skipped    int64            `json:"skipped"`
	Dropped    int64            `json:"dropped"`
	Inserted   int64            `json:"inserted"`
	Shapes     int              `json:"shapes"`
	Actions    map[string]int64 `json:"actions,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// NewRunStats converts pipeline stats.
func NewRunStats(s pipeline.Stats) RunStats {
	return RunStats{
		Read:       s.Read,
		Skipped:    s.Skipped,
		Dropped:    s.Dropped,
		Inserted:   s.Inserted,
		Shapes:     s.Shapes,
		Actions:    s.Actions,
		DurationMs: s.Duration.Milliseconds(),
	}
}

// RunSummary is the listing form of a stored run.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Read       int64  `json:"read"`
	Shapes     int    `json:"shapes"`
	Error      string `json:"error,omitempty"`
}

// NewRunSummary converts a store summary.
func NewRunSummary(s store.Summary) RunSummary {
	return RunSummary{
		RunID:      s.ID.String(),
		Source:     s.Source,
		StartedAt:  formatTime(s.StartedAt),
		FinishedAt: formatTime(s.FinishedAt),
		Read:       s.Read,
		Shapes:     s.Shapes,
		Error:      s.Error,
	}
}

// ShapeEntries converts the schemas of set. counts and samples, when not
// nil, are indexed like the set.
func ShapeEntries(set *shape.Set, counts []uint64, samples [][]uint32) ([]ShapeEntry, error) {
	out := make([]ShapeEntry, 0, set.Len())
	for i, s := range set.Schemas() {
		v, err := ToAny(s)
		if err != nil {
			return nil, err
		}
		e := ShapeEntry{Index: i, Title: jsonschema.Title(i), Schema: v}
		if i < len(counts) {
			e.Records = counts[i]
		}
		if i < len(samples) {
			e.Samples = samples[i]
		}
		out = append(out, e)
	}
	return out, nil
}

// SnapshotEntries converts an accumulator snapshot.
func SnapshotEntries(snap pipeline.Snapshot) ([]ShapeEntry, error) {
	out := make([]ShapeEntry, 0, len(snap.Shapes))
	for i, s := range snap.Shapes {
		v, err := ToAny(s.Schema)
		if err != nil {
			return nil, err
		}
		out = append(out, ShapeEntry{
			Index:   i,
			Title:   jsonschema.Title(i),
			Schema:  v,
			Records: s.Records,
			Samples: s.Samples,
		})
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// RunOutput describes one inference run and the shapes it retained.
type RunOutput struct {
	RunID      string                 `json:"run_id"`
	Source     string                 `json:"source"`
	Filter     string                 `json:"filter,omitempty"`
	StartedAt  string                 `json:"started_at"`
	FinishedAt string                 `json:"finished_at,omitempty"`
	Summary    string                 `json:"summary"`
	Stats      RunStats               `json:"stats"`
	Shapes     []ShapeEntry           `json:"shapes,omitempty"`
	Fields     []jsonschema.FieldStat `json:"fields,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Resource   *ResourceRef           `json:"resource,omitempty"`
}

// NewRunOutput converts a stored run. Stored runs keep no per-record
// bookkeeping, so shapes carry no counts or samples; snap, when not nil,
// supplies them.
func NewRunOutput(run *store.Run, snap *pipeline.Snapshot) (RunOutput, error) {
	out := RunOutput{
		RunID:      run.ID.String(),
		Source:     run.Source,
		Filter:     run.Filter,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		Summary:    run.Stats.Summary(),
		Stats:      NewRunStats(run.Stats),
		Error:      run.Error,
	}

	var (
		weighted []jsonschema.Weighted
		err      error
	)
	if snap != nil {
		out.Shapes, err = SnapshotEntries(*snap)
		for _, s := range snap.Shapes {
			weighted = append(weighted, jsonschema.Weighted{Schema: s.Schema, Records: s.Records})
		}
	} else if run.Shapes != nil {
		out.Shapes, err = ShapeEntries(run.Shapes, nil, nil)
		for _, s := range run.Shapes.Schemas() {
			weighted = append(weighted, jsonschema.Weighted{Schema: s})
		}
	}
	if err != nil {
		return RunOutput{}, err
	}
	out.Fields = jsonschema.ComputeFieldStats(weighted)
	return out, nil
}
