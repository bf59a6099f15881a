package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Source yields documents one at a time.
type Source interface {
	// Next returns the next document, io.EOF when there are none left, or
	// a *RecordError for a document that could not be decoded.
	Next(ctx context.Context) (bson.Raw, error)
	// Close releases the underlying connection or file.
	Close() error
}

// RecordError reports a single undecodable record. Record is the 1-based
// position of the record in the input.
type RecordError struct {
	Record int64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsRecordError reports whether err is a skippable *RecordError.
func IsRecordError(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// Config selects and configures a source.
type Config struct {
	// URI is a mongodb:// or mongodb+srv:// connection string. A URI with
	// any other scheme is treated as a file path.
	URI        string
	Database   string
	Collection string

	// Path is a file to read, or "-" for stdin. It takes precedence over a
	// non-Mongo URI.
	Path   string
	Format Format

	// Limit caps the number of records read. Zero means no cap.
	Limit          int64
	BatchSize      int32
	ConnectTimeout time.Duration
}

// IsMongoURI reports whether uri names a MongoDB deployment.
func IsMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

// Describe returns a short human-readable name of the configured input.
func (c Config) Describe() string {
	switch {
	case c.Path != "":
		if c.Path == "-" {
			return "stdin"
		}
		return c.Path
	case IsMongoURI(c.URI):
		return c.Database + "." + c.Collection
	default:
		return c.URI
	}
}

// Open opens the source described by cfg and applies its limit.
func Open(ctx context.Context, cfg Config) (Source, error) {
	var (
		src Source
		err error
	)
	switch {
	case cfg.Path != "":
		src, err = OpenFile(cfg.Path, cfg.Format)
	case IsMongoURI(cfg.URI):
		if cfg.Database == "" || cfg.Collection == "" {
			return nil, errors.New("database and collection are required for a MongoDB source")
		}
		src, err = OpenMongo(ctx, cfg.URI, cfg.Database, cfg.Collection,
			WithLimit(cfg.Limit),
			WithBatchSize(cfg.BatchSize),
			WithConnectTimeout(cfg.ConnectTimeout),
		)
	case cfg.URI != "":
		src, err = OpenFile(cfg.URI, cfg.Format)
	default:
		return nil, errors.New("no source configured: set a MongoDB URI or a file path")
	}
	if err != nil {
		return nil, err
	}
	return Limit(src, cfg.Limit), nil
}

type limited struct {
	Source
	left int64
}

// Limit caps src at n records. A non-positive n returns src unchanged.
func Limit(src Source, n int64) Source {
	if n <= 0 {
		return src
	}
	return &limited{Source: src, left: n}
}

func (l *limited) Next(ctx context.Context) (bson.Raw, error) {
	if l.left <= 0 {
		return nil, io.EOF
	}
	l.left--
	return l.Source.Next(ctx)
}

// Slice is an in-memory source over already encoded documents.
type Slice struct {
	docs []bson.Raw
	pos  int
}

// FromDocuments marshals each value with bson.Marshal into a Slice.
func FromDocuments(docs ...any) (*Slice, error) {
	s := &Slice{docs: make([]bson.Raw, 0, len(docs))}
	for i, d := range docs {
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("marshaling document %d: %w", i, err)
		}
		s.docs = append(s.docs, raw)
	}
	return s, nil
}

func (s *Slice) Next(ctx context.Context) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	d := s.docs[s.pos]
	s.pos++
	return d, nil
}

func (s *Slice) Close() error { return nil }
