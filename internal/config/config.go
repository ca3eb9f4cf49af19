// Package config loads the splitledger configuration file.
//
// The file is YAML and decoded strictly: unknown keys are errors. After
// decoding, the result is checked against an embedded CUE schema so that
// out-of-range values are reported with their field path.
//
//	force_double_entry: 1
//	log_level: debug
//	journal:
//	  path: ./ledger.db
//	metrics:
//	  enabled: true
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/splitledger/internal/engine"
)

//go:embed schema.cue
var schemaSource string

// Config is the decoded configuration file.
type Config struct {
	ForceDoubleEntry int           `yaml:"force_double_entry" json:"force_double_entry"`
	LogLevel         string        `yaml:"log_level" json:"log_level"`
	Journal          JournalConfig `yaml:"journal" json:"journal"`
	Metrics          MetricsConfig `yaml:"metrics" json:"metrics"`
}

// JournalConfig locates the SQLite journal. An empty Path keeps the
// journal in memory.
type JournalConfig struct {
	Path string `yaml:"path" json:"path,omitempty"`
}

// MetricsConfig toggles the Prometheus observer.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ForceDoubleEntry: int(engine.DoubleEntryUnchecked),
		LogLevel:         "info",
	}
}

// Load reads and validates a configuration file. A relative journal path
// is resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if cfg.Journal.Path != "" && !filepath.IsAbs(cfg.Journal.Path) {
		cfg.Journal.Path = filepath.Join(filepath.Dir(path), cfg.Journal.Path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Empty
// input yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level maps LogLevel to a slog level. Unknown values map to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BookOptions converts the engine-facing settings to book options.
func (c *Config) BookOptions() []engine.BookOption {
	return []engine.BookOption{
		engine.WithForceDoubleEntry(engine.DoubleEntryPolicy(c.ForceDoubleEntry)),
	}
}
