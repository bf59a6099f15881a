package shape

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// The JSON encoding is the result format of a run:
//
//	scalar  -> "Int32"
//	array   -> ["String", {"a": ["Int32"]}]
//	object  -> {"a": ["Int32"], "b": [["String"]]}
//	schema  -> {"name": ["String"], "likes": [["String"]]}
//	set     -> [schema, schema, ...]
//
// Object keys keep document order.

// MarshalJSON implements json.Marshaler.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	writeDescriptor(&buf, d)
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	writeSchema(&buf, s)
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	writeSet(&buf, s.entries)
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeDescriptor(dec)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeSchema(dec)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalJSON restores the entries of an encoded set in order. Entries
// equal to an earlier one are dropped; no other comparison is replayed.
func (s *Set) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '['); err != nil {
		return err
	}
	var schemas []Schema
	for dec.More() {
		schema, err := decodeSchema(dec)
		if err != nil {
			return err
		}
		schemas = append(schemas, schema)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return err
	}
	*s = *SetOf(schemas...)
	return nil
}

// ReadSet decodes an encoded set from r.
func ReadSet(r io.Reader) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := NewSet()
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

type byteWriter interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

var (
	_ byteWriter = (*bytes.Buffer)(nil)
	_ byteWriter = (*strings.Builder)(nil)
)

func writeDescriptor(w byteWriter, d Descriptor) {
	switch d.Tag {
	case TagScalar:
		writeString(w, d.Kind.String())
	case TagArray:
		writeSeq(w, d.Elems)
	case TagObject:
		writeFields(w, d.Fields)
	default:
		w.WriteString("null")
	}
}

func writeSeq(w byteWriter, ds []Descriptor) {
	w.WriteByte('[')
	for i, d := range ds {
		if i > 0 {
			w.WriteByte(',')
		}
		writeDescriptor(w, d)
	}
	w.WriteByte(']')
}

func writeFields(w byteWriter, fields []Field) {
	w.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		writeString(w, f.Name)
		w.WriteByte(':')
		writeSeq(w, f.Types)
	}
	w.WriteByte('}')
}

func writeSchema(w byteWriter, s Schema) {
	writeFields(w, s.fields)
}

func writeSet(w byteWriter, entries []Schema) {
	w.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			w.WriteByte(',')
		}
		writeSchema(w, e)
	}
	w.WriteByte(']')
}

func writeString(w byteWriter, s string) {
	b, _ := json.Marshal(s)
	w.Write(b)
}

func decodeDescriptor(dec *json.Decoder) (Descriptor, error) {
	tok, err := dec.Token()
	if err != nil {
		return Descriptor{}, err
	}
	switch t := tok.(type) {
	case string:
		k, ok := ParseKind(t)
		if !ok {
			return Descriptor{}, fmt.Errorf("unknown kind %q", t)
		}
		return Scalar(k), nil
	case json.Delim:
		switch t {
		case '[':
			elems, err := decodeRest(dec)
			if err != nil {
				return Descriptor{}, err
			}
			return Descriptor{Tag: TagArray, Elems: elems}, nil
		case '{':
			fields, err := decodeFieldsRest(dec)
			if err != nil {
				return Descriptor{}, err
			}
			return Descriptor{Tag: TagObject, Fields: fields}, nil
		}
	}
	return Descriptor{}, fmt.Errorf("unexpected token %v in descriptor", tok)
}

// decodeSeq reads a JSON array of descriptors.
func decodeSeq(dec *json.Decoder) ([]Descriptor, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	return decodeRest(dec)
}

// decodeRest reads descriptors up to and including the closing bracket.
func decodeRest(dec *json.Decoder) ([]Descriptor, error) {
	out := make([]Descriptor, 0, 1)
	for dec.More() {
		d, err := decodeDescriptor(dec)
		if err != nil {
			return nil, err
		}
		out = appendUnique(out, d)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeFieldsRest reads "name": [descriptors] pairs up to and including
// the closing brace.
func decodeFieldsRest(dec *json.Decoder) ([]Field, error) {
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v, want field name", tok)
		}
		types, err := decodeSeq(dec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields = putFields(fields, Field{Name: name, Types: types})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeSchema(dec *json.Decoder) (Schema, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return Schema{}, err
	}
	fields, err := decodeFieldsRest(dec)
	if err != nil {
		return Schema{}, err
	}
	return NewSchema(fields...), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("unexpected end of input, want %q", want)
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected token %v, want %q", tok, want)
	}
	return nil
}
