package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// Compile compiles doc with a Draft 2020-12 compiler. Every exported
// document goes through it before being written.
func Compile(doc *jsonschema.Schema) (*validator.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}

	// json.Number values keep integer checks exact
	v, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}

	c := validator.NewCompiler()
	c.DefaultDraft(validator.Draft2020)
	if err := c.AddResource("shape.json", v); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile("shape.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
}

// Check reports whether every document in docs compiles.
func Check(docs ...*jsonschema.Schema) error {
	for i, doc := range docs {
		if _, err := Compile(doc); err != nil {
			return fmt.Errorf("schema %d (%s): %w", i+1, doc.Title, err)
		}
	}
	return nil
}
