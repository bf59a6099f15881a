// Package store persists completed inference runs in Badger.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/pkg/shape"
)

// ErrNotFound is returned by Get for an unknown run.
var ErrNotFound = errors.New("run not found")

const runPrefix = "run/"

// Run is one stored inference run.
type Run struct {
	ID         uuid.UUID      `json:"id"`
	Source     string         `json:"source"`
	Filter     string         `json:"filter,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Stats      pipeline.Stats `json:"stats"`
	Shapes     *shape.Set     `json:"shapes"`
	Error      string         `json:"error,omitempty"`
}

// Summary is the listing form of a run.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Read       int64     `json:"read"`
	Shapes     int       `json:"shapes"`
	Error      string    `json:"error,omitempty"`
}

// NewRun starts a run record for source. IDs are UUIDv7, so their string
// form sorts by start time.
func NewRun(source string) (*Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	return &Run{ID: id, Source: source, StartedAt: time.Now().UTC()}, nil
}

// Summary returns the listing form of r.
func (r *Run) Summary() Summary {
	s := Summary{
		ID:         r.ID,
		Source:     r.Source,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Read:       r.Stats.Read,
		Error:      r.Error,
	}
	if r.Shapes != nil {
		s.Shapes = r.Shapes.Len()
	}
	return s
}

// Config configures the store.
type Config struct {
	// Dir is the database directory. Empty keeps the database in memory.
	Dir string
	// GCInterval runs value log GC periodically on persistent stores. Zero
	// disables it.
	GCInterval time.Duration
	Logger     *slog.Logger
}

// Store is a Badger database of runs.
type Store struct {
	db     *badger.DB
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && cfg.Dir != "" {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.Logger)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration, logger *slog.Logger) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("run store GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func runKey(id uuid.UUID) []byte {
	return []byte(runPrefix + id.String())
}

// Put stores r, replacing any run with the same ID.
func (s *Store) Put(r *Run) error {
	data, err := encodeRun(r)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(r.ID), data)
	})
	if err != nil {
		return fmt.Errorf("storing run %s: %w", r.ID, err)
	}
	return nil
}

// Get loads the run with the given ID.
func (s *Store) Get(id uuid.UUID) (*Run, error) {
	var r *Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err = decodeRun(val)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek finds the last key <= the seek key.
		for it.Seek([]byte(runPrefix + "\xff")); it.ValidForPrefix([]byte(runPrefix)); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				r, err := decodeRun(val)
				if err != nil {
					return err
				}
				out = append(out, r.Summary())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return out, nil
}
