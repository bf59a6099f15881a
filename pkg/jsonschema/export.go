// Package jsonschema renders shapes as JSON Schema documents.
// It generates schemas following JSON Schema Draft 2020-12 for the plain JSON
// form of a document: ObjectIds as hex strings, dates as RFC 3339 strings,
// binary data as base64. The BSON kind of every leaf is kept in the
// "x-bsonType" annotation.
package jsonschema

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/usestring/shapescan/pkg/shape"
)

// BSONTypeKey is the annotation carrying the BSON kind of a leaf schema.
const BSONTypeKey = "x-bsonType"

const objectIDPattern = "^[0-9a-fA-F]{24}$"

// FromSet renders every shape of set as a standalone document titled
// "Shape1".."ShapeN", in set order.
func FromSet(set *shape.Set) []*jsonschema.Schema {
	docs := make([]*jsonschema.Schema, 0, set.Len())
	for i, s := range set.Schemas() {
		docs = append(docs, Document(s, Title(i)))
	}
	return docs
}

// Title names the shape at index i.
func Title(i int) string {
	return fmt.Sprintf("Shape%d", i+1)
}

// Document renders s as a root schema with $schema and title set.
func Document(s shape.Schema, title string) *jsonschema.Schema {
	doc := FromSchema(s)
	doc.Version = jsonschema.Version
	doc.Title = title
	return doc
}

// FromSchema renders s as an object schema. Every field of a shape is
// present in the documents it describes, so all fields are required and no
// others are allowed.
func FromSchema(s shape.Schema) *jsonschema.Schema {
	return objectSchema(s.Fields())
}

func objectSchema(fields []shape.Field) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props.Set(f.Name, unionSchema(f.Types))
		required = append(required, f.Name)
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// unionSchema returns the single schema for one descriptor, or an anyOf of
// the alternatives.
func unionSchema(ds []shape.Descriptor) *jsonschema.Schema {
	if len(ds) == 1 {
		return descriptorSchema(ds[0])
	}
	alts := make([]*jsonschema.Schema, 0, len(ds))
	for _, d := range ds {
		alts = append(alts, descriptorSchema(d))
	}
	return &jsonschema.Schema{AnyOf: alts}
}

func descriptorSchema(d shape.Descriptor) *jsonschema.Schema {
	switch d.Tag {
	case shape.TagObject:
		return objectSchema(d.Fields)
	case shape.TagArray:
		// The empty array is its own shape: it admits no items.
		if d.IsEmptyArray() {
			return &jsonschema.Schema{Type: "array", Items: jsonschema.FalseSchema}
		}
		return &jsonschema.Schema{Type: "array", Items: unionSchema(d.Elems)}
	default:
		return KindSchema(d.Kind)
	}
}

// KindSchema describes how a scalar of kind k appears in plain JSON.
func KindSchema(k shape.Kind) *jsonschema.Schema {
	s := &jsonschema.Schema{Extras: map[string]any{BSONTypeKey: k.String()}}
	switch k {
	case shape.KindDouble, shape.KindDecimal128:
		s.Type = "number"
	case shape.KindInt32, shape.KindInt64:
		s.Type = "integer"
	case shape.KindString, shape.KindSymbol, shape.KindJavaScript:
		s.Type = "string"
	case shape.KindObjectID:
		s.Type = "string"
		s.Pattern = objectIDPattern
	case shape.KindDateTime:
		s.Type = "string"
		s.Format = "date-time"
	case shape.KindBinary:
		s.Type = "string"
		s.ContentEncoding = "base64"
	case shape.KindRegex:
		s.Type = "string"
		s.Format = "regex"
	case shape.KindBoolean:
		s.Type = "boolean"
	case shape.KindNull, shape.KindUndefined:
		s.Type = "null"
	default:
		// Timestamp, MinKey, MaxKey, DBPointer, CodeWithScope keep their
		// Extended JSON wrapper object.
		s.Type = "object"
	}
	return s
}

// JSONType returns the JSON Schema type name of a descriptor.
func JSONType(d shape.Descriptor) string {
	switch d.Tag {
	case shape.TagObject:
		return "object"
	case shape.TagArray:
		return "array"
	default:
		return KindSchema(d.Kind).Type
	}
}
