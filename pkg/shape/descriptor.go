// Package shape infers the structural shapes of schema-less documents.
//
// A document is classified into a tree of Descriptors, collected into a
// per-document Schema, and folded into a Set that keeps only the distinct
// shapes observed so far. The Set resolves one form of subsumption: an
// untyped empty array is less informative than a typed array for the same
// field, and is replaced by it.
package shape

import (
	"strings"
)

// Tag identifies the variant held by a Descriptor.
type Tag uint8

const (
	TagScalar Tag = iota + 1
	TagObject
	TagArray
)

// Descriptor is the structural type of a value. Exactly one variant is
// populated, selected by Tag:
//
//   - TagScalar: Kind
//   - TagObject: Fields, in document order
//   - TagArray:  Elems, unique element types in first-seen order; empty for
//     an empty array
//
// Descriptors are treated as immutable once built.
type Descriptor struct {
	Tag    Tag
	Kind   Kind
	Fields []Field
	Elems  []Descriptor
}

// Field is a named, ordered set of descriptors.
type Field struct {
	Name  string
	Types []Descriptor
}

// Scalar returns the descriptor of a leaf value of kind k.
func Scalar(k Kind) Descriptor {
	return Descriptor{Tag: TagScalar, Kind: k}
}

// Array returns an array descriptor over the given element types,
// collapsing duplicates and keeping first-seen order.
func Array(elems ...Descriptor) Descriptor {
	return Descriptor{Tag: TagArray, Elems: appendUnique(nil, elems...)}
}

// Object returns an object descriptor. A repeated field name replaces the
// types of the earlier occurrence in place.
func Object(fields ...Field) Descriptor {
	return Descriptor{Tag: TagObject, Fields: putFields(nil, fields...)}
}

// F is shorthand for a Field holding the given descriptor set.
func F(name string, types ...Descriptor) Field {
	return Field{Name: name, Types: appendUnique(nil, types...)}
}

// Lookup returns the types of the named field of an object descriptor.
func (d Descriptor) Lookup(name string) ([]Descriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Types, true
		}
	}
	return nil, false
}

// IsEmptyArray reports whether d describes an array with no elements.
func (d Descriptor) IsEmptyArray() bool {
	return d.Tag == TagArray && len(d.Elems) == 0
}

// Equal reports structural equality. Field order and element order are
// irrelevant; descriptor sets compare with set semantics.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.Tag != o.Tag {
		return false
	}
	switch d.Tag {
	case TagScalar:
		return d.Kind == o.Kind
	case TagArray:
		return setEqual(d.Elems, o.Elems)
	case TagObject:
		return fieldsEqual(d.Fields, o.Fields)
	}
	return false
}

// String returns the compact JSON encoding of d.
func (d Descriptor) String() string {
	var sb strings.Builder
	writeDescriptor(&sb, d)
	return sb.String()
}

func containsDescriptor(set []Descriptor, d Descriptor) bool {
	for _, x := range set {
		if x.Equal(d) {
			return true
		}
	}
	return false
}

// appendUnique appends each descriptor not already present in set.
func appendUnique(set []Descriptor, ds ...Descriptor) []Descriptor {
	for _, d := range ds {
		if !containsDescriptor(set, d) {
			set = append(set, d)
		}
	}
	return set
}

func setEqual(a, b []Descriptor) bool {
	for _, x := range a {
		if !containsDescriptor(b, x) {
			return false
		}
	}
	for _, y := range b {
		if !containsDescriptor(a, y) {
			return false
		}
	}
	return true
}

// putFields sets each field on fields, overwriting a same-named entry in
// place and appending new names.
func putFields(fields []Field, add ...Field) []Field {
	for _, f := range add {
		replaced := false
		for i := range fields {
			if fields[i].Name == f.Name {
				fields[i].Types = f.Types
				replaced = true
				break
			}
		}
		if !replaced {
			fields = append(fields, f)
		}
	}
	return fields
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for _, fa := range a {
		found := false
		for _, fb := range b {
			if fa.Name == fb.Name {
				if !setEqual(fa.Types, fb.Types) {
					return false
				}
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
