package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Store drivers selectable in the config file
const (
	driverPgx    = "pgx"
	driverSQL    = "sql"
	driverMemory = "memory"
)

const (
	envConfig      = "AGENTSTREAM_CONFIG"
	envDatabaseURL = "AGENTSTREAM_DATABASE_URL"
	envAPIKey      = "ANTHROPIC_API_KEY"
)

// Config is the CLI configuration file.
type Config struct {
	// DatabaseURL is a PostgreSQL connection string. Empty selects the
	// in-memory store.
	DatabaseURL string `yaml:"database_url"`

	// Driver is pgx, sql or memory. Defaults to pgx when DatabaseURL is set.
	Driver string `yaml:"driver"`

	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxSteps     int    `yaml:"max_steps"`
	MaxTokens    int64  `yaml:"max_tokens"`

	// Workdir is where builtin tools run; defaults to the current directory
	Workdir string `yaml:"workdir"`

	// LogLevel is debug, info, warn or error
	LogLevel string `yaml:"log_level"`

	// APIKey is only read from the environment
	APIKey string `yaml:"-"`
}

func defaultConfig() Config {
	return Config{
		Model:        "claude-sonnet-4-5",
		SystemPrompt: "You are a helpful coding assistant. Use the available tools to inspect the working directory.",
		MaxSteps:     10,
		MaxTokens:    4096,
		Workdir:      ".",
		LogLevel:     "info",
	}
}

// loadConfig reads path over the defaults and applies environment
// overrides. An empty path falls back to AGENTSTREAM_CONFIG; with neither
// set only defaults and environment apply.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = getenv(envConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if v := getenv(envDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	cfg.APIKey = getenv(envAPIKey)

	if cfg.Driver == "" {
		cfg.Driver = driverMemory
		if cfg.DatabaseURL != "" {
			cfg.Driver = driverPgx
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Driver {
	case driverPgx, driverSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("driver %q requires database_url", c.Driver)
		}
	case driverMemory:
	default:
		return fmt.Errorf("unknown driver %q (want pgx, sql or memory)", c.Driver)
	}

	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}
