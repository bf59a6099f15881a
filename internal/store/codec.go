package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/usestring/shapescan/pkg/shape"
)

func encodeRun(r *Run) ([]byte, error) {
	if r.Shapes == nil {
		r.Shapes = shape.NewSet()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding run %s: %w", r.ID, err)
	}
	return data, nil
}

func decodeRun(data []byte) (*Run, error) {
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	return &r, nil
}

// badgerLogger routes Badger's logs through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
