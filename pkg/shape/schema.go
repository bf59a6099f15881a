package shape

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Schema maps each top-level field of one document to the set of
// descriptors observed for it. A Schema is immutable once built.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from fields. A repeated field name replaces
// the types of the earlier occurrence.
func NewSchema(fields ...Field) Schema {
	s := Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		s.put(f)
	}
	return s
}

func (s *Schema) put(f Field) {
	if i, ok := s.index[f.Name]; ok {
		s.fields[i].Types = f.Types
		return
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
}

// Build classifies every top-level field of doc. It fails only when doc is
// not well-formed BSON.
func Build(doc bson.Raw) (Schema, error) {
	if err := doc.Validate(); err != nil {
		return Schema{}, fmt.Errorf("invalid document: %w", err)
	}
	elems := mustElements(doc)
	s := Schema{index: make(map[string]int, len(elems))}
	for _, e := range elems {
		s.put(Field{Name: e.Key(), Types: []Descriptor{Classify(e.Value())}})
	}
	return s, nil
}

// Fields returns the fields in document order. Callers must not modify
// the returned slice.
func (s Schema) Fields() []Field {
	return s.fields
}

// Len returns the number of top-level fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Lookup returns the descriptor set of a field.
func (s Schema) Lookup(name string) ([]Descriptor, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].Types, true
}

// Equal reports structural equality, ignoring field order.
func (s Schema) Equal(o Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for _, f := range s.fields {
		types, ok := o.Lookup(f.Name)
		if !ok || !setEqual(f.Types, types) {
			return false
		}
	}
	return true
}

// String returns the compact JSON encoding of s.
func (s Schema) String() string {
	var sb strings.Builder
	writeSchema(&sb, s)
	return sb.String()
}
