// Package types holds the output types shared by the MCP tools, the
// resources and embedders of pkg/mcpsrv.
package types

import "encoding/json"

// RunURIPrefix is the scheme and host of stored run resources.
const RunURIPrefix = "shapes://run/"

// RunURI returns the resource URI of the stored run id.
func RunURI(id string) string {
	return RunURIPrefix + id
}

// ResourceRef points to an MCP resource.
type ResourceRef struct {
	URI  string `json:"uri"`
	MIME string `json:"mime"`
	Hint string `json:"hint,omitempty"`
}

// NewRunResource references the stored run id.
func NewRunResource(id string) *ResourceRef {
	return &ResourceRef{
		URI:  RunURI(id),
		MIME: "application/json",
		Hint: "Fetch later with shapes_run_get or read this resource",
	}
}

// ToAny turns v into plain maps, slices and scalars. Tool outputs hold shape
// encodings this way since the SDK validates them against inferred schemas.
func ToAny(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(b, &out)
	return out, err
}
