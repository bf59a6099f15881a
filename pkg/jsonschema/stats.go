package jsonschema

import (
	"slices"

	"github.com/usestring/shapescan/pkg/shape"
)

// FieldStat contains per-field statistics computed across a set of shapes.
type FieldStat struct {
	Path      string   `json:"path"`                // Dotted path, "[]" marks array elements (e.g. "likes[]", "items[].id")
	Types     []string `json:"types"`               // JSON Schema types seen at this path
	BSONTypes []string `json:"bsonTypes,omitempty"` // BSON kinds of the scalars seen at this path
	Shapes    int      `json:"shapes"`              // Number of shapes containing the path
	Records   uint64   `json:"records"`             // Records absorbed by those shapes
	Frequency float64  `json:"frequency"`           // Records / total records (0 when no records are known)
	Required  bool     `json:"required"`            // Present in every shape
}

// Weighted is a shape with the number of records it absorbed.
type Weighted struct {
	Schema  shape.Schema
	Records uint64
}

// ComputeFieldStats walks every shape and aggregates its paths. Paths are
// returned in first-seen order.
func ComputeFieldStats(shapes []Weighted) []FieldStat {
	if len(shapes) == 0 {
		return nil
	}

	var order []string
	var total uint64
	byPath := make(map[string]*FieldStat)
	for _, w := range shapes {
		total += w.Records
		seen := make(map[string]bool)
		visit := func(path string, d shape.Descriptor) {
			st, ok := byPath[path]
			if !ok {
				st = &FieldStat{Path: path}
				byPath[path] = st
				order = append(order, path)
			}
			st.Types = appendOnce(st.Types, JSONType(d))
			if d.Tag == shape.TagScalar {
				st.BSONTypes = appendOnce(st.BSONTypes, d.Kind.String())
			}
			if !seen[path] {
				seen[path] = true
				st.Shapes++
				st.Records += w.Records
			}
		}
		walkFields("", w.Schema.Fields(), visit)
	}

	stats := make([]FieldStat, 0, len(order))
	for _, path := range order {
		st := byPath[path]
		st.Required = st.Shapes == len(shapes)
		if total > 0 {
			st.Frequency = float64(st.Records) / float64(total)
		}
		stats = append(stats, *st)
	}
	return stats
}

func walkFields(prefix string, fields []shape.Field, visit func(string, shape.Descriptor)) {
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		for _, d := range f.Types {
			walkDescriptor(path, d, visit)
		}
	}
}

func walkDescriptor(path string, d shape.Descriptor, visit func(string, shape.Descriptor)) {
	visit(path, d)
	switch d.Tag {
	case shape.TagObject:
		walkFields(path, d.Fields, visit)
	case shape.TagArray:
		for _, e := range d.Elems {
			walkDescriptor(path+"[]", e, visit)
		}
	}
}

func appendOnce(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
