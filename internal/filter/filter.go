// Package filter applies a jq expression to each record before inference.
//
// Records are handed to jq as canonical Extended JSON, so every BSON type
// survives the round trip: an Int32 field reads as {"$numberInt": "25"}
// and comes back as Int32. jq objects are unordered; fields of a filtered
// record come back in sorted order.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"go.mongodb.org/mongo-driver/bson"
)

// Filter is a compiled jq expression.
type Filter struct {
	expr string
	code *gojq.Code
}

// Compile parses and compiles expression.
func Compile(expression string) (*Filter, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("invalid jq expression at position %d: %w", parseErr.Offset, err)
		}
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}
	return &Filter{expr: expression, code: code}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Apply runs the expression on doc. Every object output becomes a record;
// null outputs are dropped, so a select that does not match yields none.
// Any other output, or a runtime error, fails the whole record.
func (f *Filter) Apply(doc bson.Raw) ([]bson.Raw, error) {
	ext, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var input any
	if err := json.Unmarshal(ext, &input); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	var out []bson.Raw
	iter := f.code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, errors.New(formatJQError(err))
		}
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			raw, err := toBSON(val)
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		default:
			return nil, fmt.Errorf("filter produced %s, want an object", typeName(val))
		}
	}
	return out, nil
}

func toBSON(v map[string]any) (bson.Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding filter output: %w", err)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, fmt.Errorf("decoding filter output: %w", err)
	}
	return bson.Marshal(doc)
}

func typeName(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}

// formatJQError adds hints for the runtime errors users hit most often.
// gojq reports these as plain errors, so the hints key off the message.
func formatJQError(err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return "filter halted"
		}
		return fmt.Sprintf("filter halted with: %v", haltErr.Value())
	}

	errStr := err.Error()
	var hint string
	switch {
	case strings.Contains(errStr, "cannot iterate over: null"):
		hint = " (the path may not exist in this record)"
	case strings.Contains(errStr, "cannot index") && strings.Contains(errStr, "with"):
		hint = " (field not found or wrong type)"
	case strings.Contains(errStr, "number") && strings.Contains(errStr, "object"):
		hint = ` (numbers are Extended JSON objects, e.g. .n."$numberInt" | tonumber)`
	}
	return errStr + hint
}
