package shape

import (
	"slices"
	"strings"
)

// Outcome describes what Insert did.
//
// Index is the position of the retained entry the decision refers to,
// measured before any mutation: the equal entry for NoOp, the entry that
// made the new schema redundant for Keep, and the entry removed for Take.
// For Push it is the position of the appended schema.
type Outcome struct {
	Action Action
	Index  int
}

// Set is the ordered collection of distinct shapes observed so far. The
// zero value is an empty set. A Set is not safe for concurrent use.
type Set struct {
	entries []Schema
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// SetOf returns a set holding schemas in order, as previously produced by
// Insert. Schemas equal to an earlier one are dropped; no other comparison
// is replayed.
func SetOf(schemas ...Schema) *Set {
	s := &Set{entries: make([]Schema, 0, len(schemas))}
	for _, schema := range schemas {
		if !s.Contains(schema) {
			s.entries = append(s.entries, schema)
		}
	}
	return s
}

// Len returns the number of retained schemas.
func (s *Set) Len() int {
	return len(s.entries)
}

// At returns the i-th retained schema.
func (s *Set) At(i int) Schema {
	return s.entries[i]
}

// Schemas returns the retained schemas in order.
func (s *Set) Schemas() []Schema {
	return slices.Clone(s.entries)
}

// Contains reports whether a structurally equal schema is retained.
func (s *Set) Contains(schema Schema) bool {
	return s.indexOf(schema) >= 0
}

func (s *Set) indexOf(schema Schema) int {
	for i, e := range s.entries {
		if e.Equal(schema) {
			return i
		}
	}
	return -1
}

// Insert folds schema into the set.
//
// A schema equal to a retained one is ignored. Otherwise the retained
// schemas are scanned in order, and for each one the fields shared with
// schema are compared in schema's field order. The first Take or Keep
// decides: Take replaces the retained entry (the new schema is appended),
// Keep discards schema. When the scan finds neither, schema is appended.
func (s *Set) Insert(schema Schema) Outcome {
	out := s.decide(schema)
	switch out.Action {
	case Take:
		s.entries = slices.Delete(s.entries, out.Index, out.Index+1)
		s.entries = append(s.entries, schema)
	case Push:
		s.entries = append(s.entries, schema)
	}
	return out
}

// Decide reports what Insert would do without mutating the set.
func (s *Set) Decide(schema Schema) Outcome {
	return s.decide(schema)
}

func (s *Set) decide(schema Schema) Outcome {
	if i := s.indexOf(schema); i >= 0 {
		return Outcome{Action: NoOp, Index: i}
	}
	for i, old := range s.entries {
		if a := decisive(old, schema); a == Take || a == Keep {
			return Outcome{Action: a, Index: i}
		}
	}
	return Outcome{Action: Push, Index: len(s.entries)}
}

// decisive returns the first Take or Keep found comparing the fields
// shared by old and schema, or Push when there is none.
func decisive(old, schema Schema) Action {
	for _, f := range schema.fields {
		oldTypes, ok := old.Lookup(f.Name)
		if !ok || setEqual(oldTypes, f.Types) {
			continue
		}
		for _, a := range oldTypes {
			for _, b := range f.Types {
				if act := Compare(a, b); act == Take || act == Keep {
					return act
				}
			}
		}
	}
	return Push
}

// String returns the compact JSON encoding of the set.
func (s *Set) String() string {
	var sb strings.Builder
	writeSet(&sb, s.entries)
	return sb.String()
}
