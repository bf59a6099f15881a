package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddTool registers a tool after checking that the zero value of Out passes
// the output schema the SDK infers for it.
func AddTool[In, Out any](srv *sdkmcp.Server, t *sdkmcp.Tool, h sdkmcp.ToolHandlerFor[In, Out]) {
	CheckOutputSchema[Out](t.Name)
	sdkmcp.AddTool(srv, t, h)
}

// CheckOutputSchema panics when T cannot be returned safely as structured
// tool output:
//
//   - a nil slice or map field without omitempty/omitzero marshals as null,
//     which fails the inferred "type": "array" or "object"
//   - a json.RawMessage field is inferred as an array of bytes but
//     marshals as arbitrary JSON; shapes and schemas go through types.ToAny
//     into an any field instead
//
// The untyped any output, and types the SDK cannot infer a schema for,
// are left to the SDK.
func CheckOutputSchema[T any](toolName string) {
	rt := reflect.TypeFor[T]()
	if rt == reflect.TypeFor[any]() {
		return
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	if paths := rawMessagePaths(rt, nil, make(map[reflect.Type]bool)); len(paths) > 0 {
		panic(fmt.Sprintf(
			"AddTool %q: output type %s has json.RawMessage at %s; use an any field filled by types.ToAny",
			toolName, rt, strings.Join(paths, ", "),
		))
	}

	if err := validateZero(rt); err != nil {
		panic(fmt.Sprintf(
			"AddTool %q: zero value of output type %s fails its schema: %v; add omitempty to nil-defaulting slice and map fields",
			toolName, rt, err,
		))
	}
}

// validateZero validates the JSON form of the zero value of rt against the
// schema inferred for rt.
func validateZero(rt reflect.Type) error {
	schema, err := jsonschema.ForType(rt, &jsonschema.ForOptions{})
	if err != nil {
		return nil
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil
	}

	data, err := json.Marshal(reflect.Zero(rt).Interface())
	if err != nil {
		return nil
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	if err := resolved.Validate(&v); err != nil {
		return fmt.Errorf("%w (json: %s)", err, data)
	}
	return nil
}

var rawMessageType = reflect.TypeFor[json.RawMessage]()

// rawMessagePaths returns the dotted paths of every json.RawMessage reachable
// from t. "[]" marks slice elements and "[value]" map values.
func rawMessagePaths(t reflect.Type, path []string, visiting map[reflect.Type]bool) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == rawMessageType {
		return []string{strings.Join(path, ".")}
	}
	if visiting[t] {
		return nil
	}
	visiting[t] = true
	defer delete(visiting, t)

	var found []string
	switch t.Kind() {
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			found = append(found, rawMessagePaths(f.Type, append(slices.Clone(path), f.Name), visiting)...)
		}
	case reflect.Slice, reflect.Array:
		found = append(found, rawMessagePaths(t.Elem(), append(slices.Clone(path), "[]"), visiting)...)
	case reflect.Map:
		found = append(found, rawMessagePaths(t.Elem(), append(slices.Clone(path), "[value]"), visiting)...)
	}
	return found
}
