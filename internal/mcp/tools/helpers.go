// Package tools contains the MCP tool implementations of shapescan.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/usestring/shapescan/pkg/shape"
)

// MimeJSON is the MIME type of every resource.
const MimeJSON = "application/json"

// parseDocument reads one JSON or Extended JSON object.
func parseDocument(field, doc string) (shape.Schema, error) {
	trimmed := bytes.TrimSpace([]byte(doc))
	if len(trimmed) == 0 {
		return shape.Schema{}, ErrInvalidInput(field + " is required")
	}
	if !json.Valid(trimmed) {
		return shape.Schema{}, ErrInvalidInput(field + " is not valid JSON")
	}

	var d bson.D
	if err := bson.UnmarshalExtJSON(trimmed, false, &d); err != nil {
		return shape.Schema{}, ErrInvalidInput(fmt.Sprintf("%s must be a JSON object: %v", field, err))
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return shape.Schema{}, ErrInvalidInput(fmt.Sprintf("%s cannot be encoded: %v", field, err))
	}
	s, err := shape.Build(raw)
	if err != nil {
		return shape.Schema{}, ErrInvalidInput(err.Error())
	}
	return s, nil
}
