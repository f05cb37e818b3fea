package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"pdfshrink/internal/common"
)

// Config holds application configuration
type Config struct {
	MaxFileSizeKB int    `koanf:"max_file_size_kb"`
	InputDir      string `koanf:"input_dir"`
	OutputDir     string `koanf:"output_dir"`
	HistoryDB     string `koanf:"history_db"`
	LogLevel      string `koanf:"log_level"`
	LogFormat     string `koanf:"log_format"`

	Logger *slog.Logger `koanf:"-"`
}

// New creates a configuration with default values
func New() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Logger = NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg
}

// Budget returns the maximum output size in bytes.
func (c *Config) Budget() int64 {
	return int64(c.MaxFileSizeKB) * common.BytesPerKB
}

// Validate checks the configuration for values the run cannot work with.
func (c *Config) Validate() error {
	if c.MaxFileSizeKB < 0 {
		return fmt.Errorf("%w: max_file_size_kb must not be negative, got %d", common.ErrInvalidConfig, c.MaxFileSizeKB)
	}
	if c.InputDir == "" {
		return fmt.Errorf("%w: input_dir is required", common.ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", common.ErrInvalidConfig)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", common.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	// Absent, empty and zero all mean "use the default budget".
	if cfg.MaxFileSizeKB == 0 {
		cfg.MaxFileSizeKB = common.DefaultMaxFileSizeKB
	}
	if cfg.InputDir == "" {
		cfg.InputDir = common.DefaultInputDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = common.DefaultOutputDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

// NewLogger builds the application logger. Unknown levels fall back to info.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("%w: unknown log_level %q", common.ErrInvalidConfig, level)
	}
	return lvl, nil
}
