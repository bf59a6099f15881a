// Package sink encodes shape sets in the supported output formats and writes
// them to files or stdout.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/usestring/shapescan/pkg/jsonschema"
	"github.com/usestring/shapescan/pkg/openapi"
	"github.com/usestring/shapescan/pkg/shape"
)

// Format is an output format.
type Format string

const (
	// FormatJSON is the schema array encoding, pretty printed.
	FormatJSON Format = "json"
	// FormatYAML is the same encoding as YAML. YAML mappings are unordered,
	// so field order is not preserved.
	FormatYAML Format = "yaml"
	// FormatJSONSchema is an array of Draft 2020-12 documents, one per shape.
	FormatJSONSchema Format = "jsonschema"
	// FormatOpenAPI is an OpenAPI 3 document with one component per shape.
	FormatOpenAPI Format = "openapi"
)

// Formats lists every output format.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatJSONSchema, FormatOpenAPI}
}

// ParseFormat resolves a format name. The empty string is FormatJSON.
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatJSON, nil
	}
	for _, f := range Formats() {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want json, yaml, jsonschema or openapi)", name)
}

// Encode renders set in format f. JSON Schema and OpenAPI output is
// checked before it is returned.
func Encode(ctx context.Context, set *shape.Set, f Format, info openapi.Info) ([]byte, error) {
	switch f {
	case FormatJSON, "":
		return encodeJSON(set)

	case FormatYAML:
		data, err := json.Marshal(set)
		if err != nil {
			return nil, fmt.Errorf("encoding shapes: %w", err)
		}
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return nil, fmt.Errorf("converting shapes to yaml: %w", err)
		}
		return out, nil

	case FormatJSONSchema:
		docs := jsonschema.FromSet(set)
		if err := jsonschema.Check(docs...); err != nil {
			return nil, err
		}
		return marshalIndent(docs)

	case FormatOpenAPI:
		doc := openapi.Document(set, info)
		if err := openapi.Validate(ctx, doc); err != nil {
			return nil, err
		}
		return marshalIndent(doc)

	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

func encodeJSON(set *shape.Set) ([]byte, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encoding shapes: %w", err)
	}
	var buf bytes.Buffer
	// Indent keeps field order, unlike a round trip through a map.
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting shapes: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return append(data, '\n'), nil
}

// Writer writes encoded sets to one destination.
type Writer struct {
	path   string
	format Format
	info   openapi.Info
	stdout io.Writer
}

// New returns a Writer for path. An empty path or "-" writes to stdout.
func New(path string, f Format, info openapi.Info) *Writer {
	if path == "-" {
		path = ""
	}
	return &Writer{path: path, format: f, info: info, stdout: os.Stdout}
}

// SetStdout redirects a stdout Writer to out.
func (w *Writer) SetStdout(out io.Writer) {
	w.stdout = out
}

// Path returns the destination file, or "" for stdout.
func (w *Writer) Path() string {
	return w.path
}

// ToFile reports whether w writes to a file. Only file writers can flush
// periodically.
func (w *Writer) ToFile() bool {
	return w.path != ""
}

// Write encodes set and replaces the destination with it.
func (w *Writer) Write(ctx context.Context, set *shape.Set) error {
	data, err := Encode(ctx, set, w.format, w.info)
	if err != nil {
		return err
	}
	if w.path == "" {
		_, err := w.stdout.Write(data)
		return err
	}
	return WriteFile(w.path, data)
}

// WriteFile writes data to path through a temp file in the same directory
// and a rename, so readers never observe a partial file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	success = true
	return nil
}

// ReadSet loads a set written in the json or yaml format. The format is
// taken from the extension; anything but .yaml and .yml is read as JSON.
func ReadSet(path string) (*shape.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if data, err = yaml.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	set, err := shape.ReadSet(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return set, nil
}
