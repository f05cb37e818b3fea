package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"pdfshrink/internal/common"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"
)

// Keys understood in every configuration source. Environment variables and
// .env entries use the upper-case form.
var knownKeys = map[string]bool{
	"max_file_size_kb": true,
	"input_dir":        true,
	"output_dir":       true,
	"history_db":       true,
	"log_level":        true,
	"log_format":       true,
}

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. It must exist when set.
	ConfigFile string
	// EnvFile is an optional dotenv file. A missing file is ignored.
	EnvFile string
	// Overrides take precedence over every other source. Keys are the
	// lower-case configuration keys.
	Overrides map[string]any
	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer
}

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. Overrides (command-line flags)
//  2. Process environment (MAX_FILE_SIZE_KB, INPUT_DIR, ...)
//  3. The .env file
//  4. The YAML config file
//  5. Defaults
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if opts.ConfigFile != "" {
		content, err := readLimited(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file %s: %v", common.ErrInvalidConfig, opts.ConfigFile, err)
		}
	}

	if opts.EnvFile != "" {
		if err := loadEnvFile(k, opts.EnvFile); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for key, val := range opts.Overrides {
		if !knownKeys[key] {
			return nil, fmt.Errorf("%w: unknown key %q", common.ErrInvalidConfig, key)
		}
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	cfg.Logger = NewLogger(cfg.LogLevel, cfg.LogFormat, out)

	return &cfg, nil
}

// envKey maps MAX_FILE_SIZE_KB to max_file_size_kb and drops everything
// that is not a configuration key.
func envKey(s string) string {
	key := strings.ToLower(s)
	if !knownKeys[key] {
		return ""
	}
	return key
}

// loadEnvFile merges a dotenv file. Keys are normalized the same way as the
// process environment.
func loadEnvFile(k *koanf.Koanf, path string) error {
	content, err := readLimited(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	fileKeys := koanf.New(".")
	if err := fileKeys.Load(rawbytes.Provider(content), dotenv.Parser()); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", common.ErrInvalidConfig, path, err)
	}

	for name, val := range fileKeys.All() {
		key := envKey(name)
		if key == "" {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}
	}
	return nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}
