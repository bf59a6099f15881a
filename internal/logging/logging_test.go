package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestUseJSON(t *testing.T) {
	tests := []struct {
		format   string
		terminal bool
		want     bool
	}{
		{"json", true, true},
		{"text", false, false},
		{"auto", true, false},
		{"auto", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, useJSON(tt.format, tt.terminal), "%s terminal=%v", tt.format, tt.terminal)
	}
}

func TestNewHandler_Formats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler(&buf, Config{Level: "info", Format: "json"}, false)).Info("hello", slog.Int("n", 1))
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"n":1`)

	buf.Reset()
	slog.New(newHandler(&buf, Config{Level: "info", Format: "text"}, false)).Info("hello", slog.Int("n", 1))
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	slog.New(newHandler(&buf, Config{Level: "warn", Format: "text"}, false)).Info("quiet")
	assert.Empty(t, buf.String())
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "shapescan.log")
	cfg := DefaultConfig()
	cfg.FilePath = path

	cleanup, err := Setup(cfg)
	require.NoError(t, err)
	slog.Info("written to file")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// a log file is not a terminal, so auto selects JSON
	assert.Contains(t, string(data), `"msg":"written to file"`)
}
