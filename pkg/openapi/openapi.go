// Package openapi renders a shape set as an OpenAPI 3 document whose
// components.schemas hold one schema per shape.
package openapi

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/usestring/shapescan/pkg/jsonschema"
	"github.com/usestring/shapescan/pkg/shape"
)

// Version is the OpenAPI version written in every document.
const Version = "3.0.3"

// Info describes the generated document.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Document builds a document with components.schemas.Shape1..N.
func Document(set *shape.Set, info Info) *openapi3.T {
	if info.Title == "" {
		info.Title = "shapescan"
	}
	if info.Version == "" {
		info.Version = "1"
	}

	schemas := make(openapi3.Schemas, set.Len())
	for i, s := range set.Schemas() {
		sch := FromSchema(s)
		sch.Title = jsonschema.Title(i)
		schemas[jsonschema.Title(i)] = sch.NewRef()
	}

	return &openapi3.T{
		OpenAPI: Version,
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Paths:      openapi3.Paths{},
		Components: &openapi3.Components{Schemas: schemas},
	}
}

// Validate checks doc against the OpenAPI 3 rules kin-openapi enforces.
func Validate(ctx context.Context, doc *openapi3.T) error {
	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("invalid openapi document: %w", err)
	}
	return nil
}

// FromSchema renders s as a closed object schema.
func FromSchema(s shape.Schema) *openapi3.Schema {
	return objectSchema(s.Fields())
}

func objectSchema(fields []shape.Field) *openapi3.Schema {
	props := make(openapi3.Schemas, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = unionSchema(f.Types).NewRef()
		required = append(required, f.Name)
	}
	closed := false
	return &openapi3.Schema{
		Type:                 openapi3.TypeObject,
		Properties:           props,
		Required:             required,
		AdditionalProperties: openapi3.AdditionalProperties{Has: &closed},
	}
}

func unionSchema(ds []shape.Descriptor) *openapi3.Schema {
	if len(ds) == 1 {
		return descriptorSchema(ds[0])
	}
	alts := make(openapi3.SchemaRefs, 0, len(ds))
	for _, d := range ds {
		alts = append(alts, descriptorSchema(d).NewRef())
	}
	return &openapi3.Schema{AnyOf: alts}
}

func descriptorSchema(d shape.Descriptor) *openapi3.Schema {
	switch d.Tag {
	case shape.TagObject:
		return objectSchema(d.Fields)
	case shape.TagArray:
		if d.IsEmptyArray() {
			var none uint64
			return &openapi3.Schema{
				Type:     openapi3.TypeArray,
				Items:    openapi3.NewSchemaRef("", &openapi3.Schema{}),
				MaxItems: &none,
			}
		}
		return &openapi3.Schema{Type: openapi3.TypeArray, Items: unionSchema(d.Elems).NewRef()}
	default:
		return kindSchema(d.Kind)
	}
}

// kindSchema follows jsonschema.KindSchema, translated to the OpenAPI 3.0
// vocabulary: no null type, integer and byte formats.
func kindSchema(k shape.Kind) *openapi3.Schema {
	src := jsonschema.KindSchema(k)
	s := &openapi3.Schema{
		Extensions: map[string]interface{}{jsonschema.BSONTypeKey: k.String()},
		Format:     src.Format,
		Pattern:    src.Pattern,
	}
	switch src.Type {
	case "null":
		s.Nullable = true
	default:
		s.Type = src.Type
	}
	switch k {
	case shape.KindInt32:
		s.Format = "int32"
	case shape.KindInt64:
		s.Format = "int64"
	case shape.KindDouble:
		s.Format = "double"
	case shape.KindBinary:
		s.Format = "byte"
	}
	return s
}
