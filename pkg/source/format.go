package source

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the encoding of a file source.
type Format string

const (
	Auto Format = ""
	// NDJSON is a stream of whitespace-separated JSON or Extended JSON
	// documents: one per line, or pretty-printed across lines.
	NDJSON    Format = "ndjson"
	JSONArray Format = "json"
	YAML      Format = "yaml"
	BSON      Format = "bson"
)

// maxDocumentSize is the largest document MongoDB stores, plus headroom
// for dumps made with a raised limit.
const maxDocumentSize = 48 * 1024 * 1024

// ParseFormat resolves a user-supplied format name. "auto" and the empty
// string mean detect.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "ndjson", "jsonl", "extjson":
		return NDJSON, nil
	case "json", "jsonarray":
		return JSONArray, nil
	case "yaml", "yml":
		return YAML, nil
	case "bson":
		return BSON, nil
	}
	return Auto, fmt.Errorf("unknown input format %q", name)
}

// DetectFormat picks a format from the file name and, when the extension
// is missing or ambiguous, from the first bytes of the content.
func DetectFormat(name string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ndjson", ".jsonl":
		return NDJSON
	case ".yaml", ".yml":
		return YAML
	case ".bson":
		return BSON
	case ".json":
		if firstNonSpace(head) == '[' {
			return JSONArray
		}
		return NDJSON
	}
	return sniff(head)
}

func sniff(head []byte) Format {
	if looksLikeBSON(head) {
		return BSON
	}
	switch firstNonSpace(head) {
	case '[':
		return JSONArray
	case '{':
		return NDJSON
	}
	return YAML
}

func firstNonSpace(b []byte) byte {
	b = bytes.TrimLeft(b, " \t\r\n\ufeff")
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// looksLikeBSON checks for a plausible little-endian length prefix
// followed by a BSON element type or the terminator of an empty document.
func looksLikeBSON(head []byte) bool {
	if len(head) < 5 {
		return false
	}
	n := binary.LittleEndian.Uint32(head)
	if n < 5 || n > maxDocumentSize {
		return false
	}
	t := head[4]
	if t == 0x00 {
		return n == 5
	}
	return (t >= 0x01 && t <= 0x13) || t == 0x7F || t == 0xFF
}
