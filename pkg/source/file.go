package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/valyala/fastjson"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

const sniffSize = 512

// FileSource reads documents from an exported file or stream.
type FileSource struct {
	format Format
	closer io.Closer
	record int64

	next func() (bson.Raw, error)
}

// badRecord marks a decoding failure confined to one record.
type badRecord struct{ err error }

func (b badRecord) Error() string { return b.err.Error() }

// OpenFile opens path ("-" for stdin) and detects the format when format
// is Auto.
func OpenFile(path string, format Format) (*FileSource, error) {
	var (
		r      io.Reader
		closer io.Closer
	)
	if path == "-" {
		r = os.Stdin
		closer = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		r, closer = f, f
	}

	br := bufio.NewReaderSize(r, 64*1024)
	if format == Auto {
		head, err := br.Peek(sniffSize)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			closer.Close()
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		format = DetectFormat(path, head)
	}

	fs, err := newFileSource(br, format)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	fs.closer = closer
	return fs, nil
}

// NewReader reads documents of the given format from r. Auto sniffs the
// first bytes.
func NewReader(r io.Reader, format Format) (*FileSource, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if format == Auto {
		head, _ := br.Peek(sniffSize)
		format = sniff(head)
	}
	return newFileSource(br, format)
}

func newFileSource(br *bufio.Reader, format Format) (*FileSource, error) {
	fs := &FileSource{format: format}
	switch format {
	case NDJSON:
		fs.next = convert(valueReader(br), extJSONDecoder())
	case JSONArray:
		items, err := arrayReader(br)
		if err != nil {
			return nil, err
		}
		fs.next = convert(items, extJSONDecoder())
	case YAML:
		fs.next = yamlReader(br)
	case BSON:
		fs.next = bsonReader(br)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return fs, nil
}

// Format returns the format being read.
func (s *FileSource) Format() Format {
	return s.format
}

// Next returns the next document.
func (s *FileSource) Next(ctx context.Context) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.next()
	var bad badRecord
	switch {
	case err == nil:
		s.record++
		return doc, nil
	case errors.As(err, &bad):
		s.record++
		return nil, &RecordError{Record: s.record, Err: bad.err}
	default:
		return nil, err
	}
}

func convert(read func() ([]byte, error), conv func([]byte) (bson.Raw, error)) func() (bson.Raw, error) {
	return func() (bson.Raw, error) {
		data, err := read()
		if err != nil {
			return nil, err
		}
		doc, err := conv(data)
		if err != nil {
			return nil, badRecord{err}
		}
		return doc, nil
	}
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// jsonStream frames JSON values read from br without holding more than one
// value in memory. Input is consumed in segments of at most one buffer, so
// a single-line export is streamed too. Values may span lines, as in
// mongoexport --pretty output. A value still open when a new line starts
// with '{' at column 0 is cut there, so one malformed record does not
// swallow the records after it.
type jsonStream struct {
	br   *bufio.Reader
	seg  []byte
	line []byte // unconsumed part of seg

	started   bool
	lineStart bool // seg starts a line
	midLine   bool // seg does not end a line

	// array switches to the element syntax of a JSON array: scalars end at
	// a delimiter instead of the end of the line, and ',' is skipped.
	array bool
}

// skipSpace advances to the next non-blank byte, reading as needed. It
// reports false at the end of the input.
func (s *jsonStream) skipSpace() (bool, error) {
	for {
		s.line = bytes.TrimLeft(s.line, " \t\r\n")
		if len(s.line) > 0 {
			return true, nil
		}
		ok, err := s.readSegment()
		if !ok || err != nil {
			return false, err
		}
	}
}

func (s *jsonStream) readSegment() (bool, error) {
	seg, err := s.br.ReadSlice('\n')
	if err != nil && !errors.Is(err, bufio.ErrBufferFull) && !errors.Is(err, io.EOF) {
		return false, err
	}
	if !s.started {
		s.started = true
		seg = bytes.TrimPrefix(seg, []byte("\ufeff"))
	}
	if len(seg) == 0 {
		return false, nil
	}
	s.lineStart = !s.midLine
	s.midLine = seg[len(seg)-1] != '\n'
	s.seg = append(s.seg[:0], seg...)
	s.line = s.seg
	return true, nil
}

// next returns the bytes of the next value, which may be malformed. The
// result is only valid until the following call.
func (s *jsonStream) next() ([]byte, error) {
	ok, err := s.skipSpace()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	switch c := s.line[0]; {
	case c == '{' || c == '[':
		return s.composite()
	case !s.array:
		return s.restOfLine()
	case c == '"':
		return s.take(stringEnd(s.line)), nil
	default:
		i := bytes.IndexAny(s.line, ",]} \t\r\n")
		if i < 0 {
			i = len(s.line)
		}
		return s.take(i), nil
	}
}

func (s *jsonStream) take(n int) []byte {
	v := s.line[:n]
	s.line = s.line[n:]
	return v
}

func (s *jsonStream) restOfLine() ([]byte, error) {
	out := append([]byte(nil), s.line...)
	s.line = nil
	for s.midLine {
		ok, err := s.readSegment()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, s.line...)
		s.line = nil
		if len(out) > maxDocumentSize {
			return nil, fmt.Errorf("line exceeds %d bytes", maxDocumentSize)
		}
	}
	return bytes.TrimRight(out, " \t\r\n"), nil
}

// composite reads an object or array, tracking nesting outside strings.
func (s *jsonStream) composite() ([]byte, error) {
	var (
		buf      []byte
		depth    int
		inString bool
		escaped  bool
	)
	for {
		for i, c := range s.line {
			switch {
			case escaped:
				escaped = false
			case inString:
				switch c {
				case '\\':
					escaped = true
				case '"':
					inString = false
				}
			case c == '"':
				inString = true
			case c == '{' || c == '[':
				depth++
			case c == '}' || c == ']':
				depth--
				if depth == 0 {
					buf = append(buf, s.line[:i+1]...)
					s.line = s.line[i+1:]
					return buf, nil
				}
			}
		}
		buf = append(buf, s.line...)
		s.line = nil
		if len(buf) > maxDocumentSize {
			return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
		}

		ok, err := s.readSegment()
		if err != nil {
			return nil, err
		}
		// Truncated at the end of input, a string broken by a newline, or
		// a new top-level document: the value so far is malformed.
		if !ok || (s.lineStart && (inString || s.line[0] == '{')) {
			return buf, nil
		}
	}
}

// stringEnd returns the offset just past the string starting at b[0], or
// len(b) when it is not closed on this line.
func stringEnd(b []byte) int {
	escaped := false
	for i := 1; i < len(b); i++ {
		switch {
		case escaped:
			escaped = false
		case b[i] == '\\':
			escaped = true
		case b[i] == '"':
			return i + 1
		}
	}
	return len(b)
}

// valueReader yields the whitespace-separated JSON values of br.
func valueReader(br *bufio.Reader) func() ([]byte, error) {
	s := &jsonStream{br: br}
	return s.next
}

// arrayReader yields the elements of the JSON array in br one at a time.
// Input that does not start with '[' is rejected up front; a missing ']'
// surfaces as an error once the elements run out.
func arrayReader(br *bufio.Reader) (func() ([]byte, error), error) {
	s := &jsonStream{br: br, array: true}
	ok, err := s.skipSpace()
	if err != nil {
		return nil, fmt.Errorf("parsing json array: %w", err)
	}
	if !ok || s.line[0] != '[' {
		return nil, errors.New("parsing json array: input is not an array")
	}
	s.line = s.line[1:]

	done := false
	return func() ([]byte, error) {
		for !done {
			ok, err := s.skipSpace()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.New("parsing json array: unexpected end of input")
			}
			switch s.line[0] {
			case ']':
				done = true
			case ',':
				s.line = s.line[1:]
			default:
				return s.next()
			}
		}
		return nil, io.EOF
	}, nil
}

// yamlReader yields each document of a YAML stream. A syntax error ends
// the stream since the decoder cannot resynchronise.
func yamlReader(br *bufio.Reader) func() (bson.Raw, error) {
	dec := yaml.NewDecoder(br)
	return func() (bson.Raw, error) {
		for {
			var node yaml.Node
			if err := dec.Decode(&node); err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("decoding yaml: %w", err)
			}
			if isEmptyDocument(&node) {
				continue
			}
			doc, err := fromYAML(&node)
			if err != nil {
				return nil, badRecord{err}
			}
			return doc, nil
		}
	}
}

// bsonReader yields length-prefixed documents as found in mongodump files.
// A malformed body is a record error; a bad length prefix is fatal.
func bsonReader(br *bufio.Reader) func() (bson.Raw, error) {
	return func() (bson.Raw, error) {
		var size [4]byte
		if _, err := io.ReadFull(br, size[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading document length: %w", err)
		}
		n := binary.LittleEndian.Uint32(size[:])
		if n < 5 || n > maxDocumentSize {
			return nil, fmt.Errorf("invalid document length %d", n)
		}
		doc := make([]byte, n)
		copy(doc, size[:])
		if _, err := io.ReadFull(br, doc[4:]); err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		if err := bson.Raw(doc).Validate(); err != nil {
			return nil, badRecord{err}
		}
		return doc, nil
	}
}

// extJSONDecoder checks that each value is a JSON object before handing it
// to fromExtJSON, so syntax errors and stray scalars get precise messages.
func extJSONDecoder() func([]byte) (bson.Raw, error) {
	var p fastjson.Parser
	return func(data []byte) (bson.Raw, error) {
		v, err := p.ParseBytes(data)
		if err != nil {
			return nil, err
		}
		if t := v.Type(); t != fastjson.TypeObject {
			return nil, fmt.Errorf("document is %s, not an object", t)
		}
		return fromExtJSON(data)
	}
}

// fromExtJSON converts one Extended JSON document to BSON. Relaxed and
// canonical forms are both accepted.
func fromExtJSON(data []byte) (bson.Raw, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, err
	}
	return bson.Marshal(doc)
}

func isEmptyDocument(n *yaml.Node) bool {
	if n.Kind == 0 || (n.Kind == yaml.DocumentNode && len(n.Content) == 0) {
		return true
	}
	if n.Kind == yaml.DocumentNode {
		c := n.Content[0]
		return c.Kind == yaml.ScalarNode && c.ShortTag() == "!!null" && c.Value == ""
	}
	return false
}

// fromYAML converts one YAML document, keeping mapping key order.
func fromYAML(node *yaml.Node) (bson.Raw, error) {
	v, err := yamlValue(node)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("document is a %T, not a mapping", v)
	}
	return bson.Marshal(doc)
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		doc := make(bson.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: n.Content[i].Value, Value: v})
		}
		return doc, nil
	case yaml.SequenceNode:
		arr := make(bson.A, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}
