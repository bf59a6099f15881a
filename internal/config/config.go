// Package config provides configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/logging"
	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/pkg/source"
)

// Config holds all configuration for a run or the MCP server.
type Config struct {
	URI            string        // SHAPESCAN_URI: mongodb:// URI or file path
	Database       string        // SHAPESCAN_DB
	Collection     string        // SHAPESCAN_COLLECTION
	File           string        // SHAPESCAN_FILE, "-" for stdin
	InputFormat    string        `validate:"omitempty,oneof=ndjson json yaml bson"` // SHAPESCAN_INPUT_FORMAT, default detect
	Limit          int64         `validate:"gte=0"`                                 // SHAPESCAN_LIMIT, 0 = all
	BatchSize      int           `validate:"gte=0"`                                 // SHAPESCAN_BATCH_SIZE, default 1000
	ConnectTimeout time.Duration `validate:"gt=0"`                                  // CONNECT_TIMEOUT_MS, default 10000ms

	Rate          float64 `validate:"gte=0"` // SHAPESCAN_RATE, records/s, 0 = unlimited
	Filter        string  // SHAPESCAN_FILTER, jq expression
	ProgressEvery int64   // SHAPESCAN_PROGRESS_EVERY, default 100000, negative disables
	FlushEvery    int64   `validate:"gte=0"` // SHAPESCAN_FLUSH_EVERY, 0 = only at the end

	Output     string // SHAPESCAN_OUTPUT, default "" (stdout)
	Format     string `validate:"oneof=json yaml jsonschema openapi"` // SHAPESCAN_FORMAT, default "json"
	ResumeFrom string // SHAPESCAN_RESUME_FROM, a previous json/yaml result

	Listen           string `validate:"omitempty,hostname_port"` // SHAPESCAN_LISTEN, status server address
	StoreDir         string // SHAPESCAN_STORE_DIR, default "" (in memory)
	RunCacheMaxItems int    `validate:"gt=0"` // RUN_CACHE_MAX_ITEMS, default 64

	// Logging configuration
	LogLevel      string `validate:"oneof=debug info warn warning error"` // LOG_LEVEL, default "info"
	LogFormat     string `validate:"oneof=text json auto"`               // LOG_FORMAT, default "auto"
	LogFile       string // LOG_FILE, default "" (stderr only)
	LogMaxSizeMB  int    `validate:"gt=0"`  // LOG_MAX_SIZE_MB, default 10
	LogMaxBackups int    `validate:"gte=0"` // LOG_MAX_BACKUPS, default 5
	LogMaxAgeDays int    `validate:"gte=0"` // LOG_MAX_AGE_DAYS, default 28
	LogCompress   bool   // LOG_COMPRESS, default true
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		URI:            getEnvString("SHAPESCAN_URI", ""),
		Database:       getEnvString("SHAPESCAN_DB", ""),
		Collection:     getEnvString("SHAPESCAN_COLLECTION", ""),
		File:           getEnvString("SHAPESCAN_FILE", ""),
		InputFormat:    strings.ToLower(getEnvString("SHAPESCAN_INPUT_FORMAT", "")),
		Limit:          getEnvInt64("SHAPESCAN_LIMIT", 0),
		BatchSize:      getEnvInt("SHAPESCAN_BATCH_SIZE", 1000),
		ConnectTimeout: getEnvDurationMs("CONNECT_TIMEOUT_MS", 10000),

		Rate:          getEnvFloat("SHAPESCAN_RATE", 0),
		Filter:        getEnvString("SHAPESCAN_FILTER", ""),
		ProgressEvery: getEnvInt64("SHAPESCAN_PROGRESS_EVERY", pipeline.DefaultProgressEvery),
		FlushEvery:    getEnvInt64("SHAPESCAN_FLUSH_EVERY", 0),

		Output:     getEnvString("SHAPESCAN_OUTPUT", ""),
		Format:     strings.ToLower(getEnvString("SHAPESCAN_FORMAT", "json")),
		ResumeFrom: getEnvString("SHAPESCAN_RESUME_FROM", ""),

		Listen:           getEnvString("SHAPESCAN_LISTEN", ""),
		StoreDir:         getEnvString("SHAPESCAN_STORE_DIR", ""),
		RunCacheMaxItems: getEnvInt("RUN_CACHE_MAX_ITEMS", cache.DefaultMaxItems),

		LogLevel:      strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnvString("LOG_FORMAT", "auto")),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// LoadDotEnv loads files into the environment without overriding variables
// that are already set. With no files it loads ./.env when present.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints. Errors name the offending fields.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Source returns the record source settings.
func (c *Config) Source() source.Config {
	return source.Config{
		URI:            c.URI,
		Database:       c.Database,
		Collection:     c.Collection,
		Path:           c.File,
		Format:         source.Format(c.InputFormat),
		Limit:          c.Limit,
		BatchSize:      int32(c.BatchSize),
		ConnectTimeout: c.ConnectTimeout,
	}
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		FilePath:   c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   c.LogCompress,
	}
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
