package shape

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Classify returns the descriptor of a BSON value. The value must come
// from a validated document; Classify never fails on one.
func Classify(v bson.RawValue) Descriptor {
	switch v.Type {
	case bsontype.EmbeddedDocument:
		return classifyDocument(v.Document())
	case bsontype.Array:
		return classifyArray(v)
	default:
		return Scalar(scalarKind(v.Type))
	}
}

func classifyDocument(doc bson.Raw) Descriptor {
	elems := mustElements(doc)
	fields := make([]Field, 0, len(elems))
	for _, e := range elems {
		fields = putFields(fields, Field{Name: e.Key(), Types: []Descriptor{Classify(e.Value())}})
	}
	return Descriptor{Tag: TagObject, Fields: fields}
}

func classifyArray(v bson.RawValue) Descriptor {
	values, err := v.Array().Values()
	if err != nil {
		panic(fmt.Sprintf("shape: classify unvalidated array: %v", err))
	}
	elems := make([]Descriptor, 0, 1)
	for _, v := range values {
		elems = appendUnique(elems, Classify(v))
	}
	return Descriptor{Tag: TagArray, Elems: elems}
}

// mustElements lists the elements of a document already checked by
// bson.Raw.Validate.
func mustElements(doc bson.Raw) []bson.RawElement {
	elems, err := doc.Elements()
	if err != nil {
		panic(fmt.Sprintf("shape: classify unvalidated document: %v", err))
	}
	return elems
}
