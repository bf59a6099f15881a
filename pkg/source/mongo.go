package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultBatchSize is the cursor batch size when none is configured.
	DefaultBatchSize int32 = 1000
	// DefaultConnectTimeout bounds connecting and the initial ping.
	DefaultConnectTimeout = 10 * time.Second

	closeTimeout = 5 * time.Second
)

// MongoSource reads every document of a collection through a cursor.
type MongoSource struct {
	client *mongo.Client
	cursor *mongo.Cursor

	limit          int64
	batchSize      int32
	connectTimeout time.Duration
}

// MongoOption configures a MongoSource.
type MongoOption func(*MongoSource)

// WithLimit sets a server-side limit on the number of documents returned.
func WithLimit(n int64) MongoOption {
	return func(s *MongoSource) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithBatchSize sets the cursor batch size.
func WithBatchSize(n int32) MongoOption {
	return func(s *MongoSource) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithConnectTimeout bounds connecting and the initial ping.
func WithConnectTimeout(d time.Duration) MongoOption {
	return func(s *MongoSource) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// OpenMongo connects to uri and opens a cursor over db.coll.
func OpenMongo(ctx context.Context, uri, db, coll string, opts ...MongoOption) (*MongoSource, error) {
	s := &MongoSource{
		batchSize:      DefaultBatchSize,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	start := time.Now()
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(s.connectTimeout).
		SetServerSelectionTimeout(s.connectTimeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	src, err := FromCollection(ctx, client.Database(db).Collection(coll), opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	src.client = client

	slog.Debug("mongodb cursor opened",
		slog.String("database", db),
		slog.String("collection", coll),
		slog.Int64("limit", src.limit),
		slog.Int("batch_size", int(src.batchSize)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return src, nil
}

// FromCollection opens a cursor over coll on a client the caller owns.
// Close then closes the cursor but leaves the client connected.
func FromCollection(ctx context.Context, coll *mongo.Collection, opts ...MongoOption) (*MongoSource, error) {
	s := &MongoSource{
		batchSize:      DefaultBatchSize,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	findOpts := options.Find().SetBatchSize(s.batchSize)
	if s.limit > 0 {
		findOpts.SetLimit(s.limit)
	}
	cursor, err := coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("querying %s.%s: %w", coll.Database().Name(), coll.Name(), err)
	}
	s.cursor = cursor
	return s, nil
}

// Next returns a copy of the next document. The cursor reuses its buffer,
// so the copy stays valid after further calls.
func (s *MongoSource) Next(ctx context.Context) (bson.Raw, error) {
	if s.cursor.Next(ctx) {
		return append(bson.Raw(nil), s.cursor.Current...), nil
	}
	if err := s.cursor.Err(); err != nil {
		return nil, fmt.Errorf("reading cursor: %w", err)
	}
	return nil, io.EOF
}

// Close closes the cursor, then disconnects a client opened by OpenMongo.
func (s *MongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	cerr := s.cursor.Close(ctx)
	if s.client != nil {
		if err := s.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnecting: %w", err)
		}
	}
	if cerr != nil {
		return fmt.Errorf("closing cursor: %w", cerr)
	}
	return nil
}
