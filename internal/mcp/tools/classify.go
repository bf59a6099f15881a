package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/shapescan/pkg/jsonschema"
	"github.com/usestring/shapescan/pkg/shape"
	"github.com/usestring/shapescan/pkg/types"
)

// ClassifyInput is the input for shapes_classify.
type ClassifyInput struct {
	Document string `json:"document" jsonschema:"One JSON object. Extended JSON wrappers such as {\"$oid\": ...} or {\"$date\": ...} keep their BSON types"`
}

// ClassifyOutput is the output for shapes_classify.
type ClassifyOutput struct {
	Schema     any    `json:"schema"`      // {"field": [descriptor, ...]}
	Encoding   string `json:"encoding"`    // compact form of schema
	Fields     int    `json:"fields"`      // top-level field count
	JSONSchema any    `json:"json_schema"` // draft 2020-12 document
}

// CompareInput is the input for shapes_compare.
type CompareInput struct {
	DocumentA string `json:"document_a" jsonschema:"The document whose shape is already retained"`
	DocumentB string `json:"document_b" jsonschema:"The document being inserted"`
}

// FieldComparison is the comparison of one field shared by both documents.
type FieldComparison struct {
	Field  string `json:"field"`
	Action string `json:"action"` // noop, push, keep or take
}

// CompareOutput is the output for shapes_compare.
type CompareOutput struct {
	Action   string            `json:"action"`  // what inserting B into a set holding A does
	Reverse  string            `json:"reverse"` // the same with the roles swapped
	Retained any               `json:"retained"`
	Fields   []FieldComparison `json:"fields,omitempty"`
}

// ToolClassify returns the shape of a single document.
func ToolClassify(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ClassifyInput) (*sdkmcp.CallToolResult, ClassifyOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ClassifyInput) (*sdkmcp.CallToolResult, ClassifyOutput, error) {
		s, err := parseDocument("document", input.Document)
		if err != nil {
			return nil, ClassifyOutput{}, err
		}

		schema, err := types.ToAny(s)
		if err != nil {
			return nil, ClassifyOutput{}, err
		}
		doc, err := types.ToAny(jsonschema.Document(s, jsonschema.Title(0)))
		if err != nil {
			return nil, ClassifyOutput{}, err
		}

		return nil, ClassifyOutput{
			Schema:     schema,
			Encoding:   s.String(),
			Fields:     s.Len(),
			JSONSchema: doc,
		}, nil
	}
}

// ToolCompare reports how the shape set resolves two documents.
func ToolCompare(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input CompareInput) (*sdkmcp.CallToolResult, CompareOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input CompareInput) (*sdkmcp.CallToolResult, CompareOutput, error) {
		a, err := parseDocument("document_a", input.DocumentA)
		if err != nil {
			return nil, CompareOutput{}, err
		}
		b, err := parseDocument("document_b", input.DocumentB)
		if err != nil {
			return nil, CompareOutput{}, err
		}

		set := shape.SetOf(a)
		out := set.Insert(b)
		reverse := shape.SetOf(b).Decide(a)

		retained, err := types.ToAny(set)
		if err != nil {
			return nil, CompareOutput{}, err
		}

		return nil, CompareOutput{
			Action:   out.Action.String(),
			Reverse:  reverse.Action.String(),
			Retained: retained,
			Fields:   compareFields(a, b),
		}, nil
	}
}

// compareFields compares the fields of b that a also has, in b's order.
// Each field reports the first decisive descriptor comparison, NoOp for
// equal type sets and Push otherwise.
func compareFields(a, b shape.Schema) []FieldComparison {
	var out []FieldComparison
	for _, f := range b.Fields() {
		oldTypes, ok := a.Lookup(f.Name)
		if !ok {
			continue
		}
		action := shape.NoOp
		if !shape.Array(oldTypes...).Equal(shape.Array(f.Types...)) {
			action = firstDecisive(oldTypes, f.Types)
		}
		out = append(out, FieldComparison{Field: f.Name, Action: action.String()})
	}
	return out
}

func firstDecisive(old, cur []shape.Descriptor) shape.Action {
	for _, x := range old {
		for _, y := range cur {
			if act := shape.Compare(x, y); act == shape.Take || act == shape.Keep {
				return act
			}
		}
	}
	return shape.Push
}
