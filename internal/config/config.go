// Package config assembles the configuration of every pipeline component
// from defaults, the project's .elab/config.yaml, a .env file and ELAB_*
// environment variables, in increasing order of precedence. Command-line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/elab/internal/elaboration"
	"github.com/steveyegge/elab/internal/gaps"
	"github.com/steveyegge/elab/internal/hygiene"
)

const (
	// FileName is the config file inside the project directory
	FileName = "config.yaml"
	// ProjectDir holds the config file and the database
	ProjectDir = ".elab"
)

// Config is the full elab configuration
type Config struct {
	Gaps        gaps.Config          `yaml:"gaps"`
	Hygiene     hygiene.Config       `yaml:"hygiene"`
	Elaboration elaboration.Config   `yaml:"elaboration"`
	Events      EventRetentionConfig `yaml:"events"`

	// LogLevel is the minimum level of diagnostic logs: debug, info, warn
	// or error
	// Default: warn
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns defaults for every component
func DefaultConfig() Config {
	return Config{
		Gaps:        gaps.DefaultConfig(),
		Hygiene:     hygiene.DefaultConfig(),
		Elaboration: elaboration.DefaultConfig(),
		Events:      DefaultEventRetentionConfig(),
		LogLevel:    "warn",
	}
}

// Validate checks every component configuration
func (c Config) Validate() error {
	if err := c.Gaps.Validate(); err != nil {
		return fmt.Errorf("gaps: %w", err)
	}
	if err := c.Hygiene.Validate(); err != nil {
		return fmt.Errorf("hygiene: %w", err)
	}
	if err := c.Elaboration.Validate(); err != nil {
		return fmt.Errorf("elaboration: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns LogLevel as a slog level
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelWarn, fmt.Errorf("log_level must be debug, info, warn or error (got %q)", s)
}

// Path returns the config file location for a project root
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, ProjectDir, FileName)
}

// Load reads the configuration for projectRoot. A missing config file or
// .env file is not an error. The result is validated.
func Load(projectRoot string) (Config, error) {
	if err := loadDotEnv(filepath.Join(projectRoot, ".env")); err != nil {
		return Config{}, err
	}

	cfg, err := LoadFile(Path(projectRoot))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv exports the variables of a .env file. Variables already set
// in the environment keep their values.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a YAML config file over the defaults. Keys absent from the
// file keep their default values. A missing file yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the project's config file, creating the project
// directory if needed
func Save(projectRoot string, cfg Config) error {
	path := Path(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# elab configuration. Environment variables (ELAB_*) and flags override these values.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides configuration values from ELAB_* environment variables
//
// Environment variables:
//   - ELAB_LOG_LEVEL: Diagnostic log level (default: warn)
//   - ELAB_READINESS_THRESHOLD: Score at which a story is ready (default: 85)
//   - ELAB_NODE_TIMEOUT: Per-phase timeout, e.g. "45s" (default: 30s)
//   - ELAB_RECALCULATE_READINESS: Rescore after elaboration (default: true)
//   - ELAB_ESCAPE_HATCH_THRESHOLD: Trigger confidence threshold (default: 0.7)
//   - ELAB_ESCAPE_HATCH_MIN_TRIGGERS: Triggers needed to fire (default: 1)
//   - ELAB_HYGIENE_MAX_GAPS: Ranked gaps kept per story (default: 50)
//   - ELAB_HYGIENE_SIMILARITY_THRESHOLD: Deduplication threshold (default: 0.7)
//   - ELAB_EVENT_*: see EventRetentionConfigFromEnv
func (c *Config) ApplyEnv() error {
	if err := parseEnvString("ELAB_LOG_LEVEL", &c.LogLevel); err != nil {
		return err
	}
	if err := parseEnvInt("ELAB_READINESS_THRESHOLD", &c.Elaboration.Readiness.Threshold); err != nil {
		return err
	}
	if err := parseEnvDuration("ELAB_NODE_TIMEOUT", &c.Elaboration.NodeTimeout); err != nil {
		return err
	}
	if err := parseEnvBool("ELAB_RECALCULATE_READINESS", &c.Elaboration.RecalculateReadiness); err != nil {
		return err
	}
	if err := parseEnvFloat("ELAB_ESCAPE_HATCH_THRESHOLD", &c.Elaboration.EscapeHatch.TriggerThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("ELAB_ESCAPE_HATCH_MIN_TRIGGERS", &c.Elaboration.EscapeHatch.MinTriggers); err != nil {
		return err
	}
	if err := parseEnvInt("ELAB_HYGIENE_MAX_GAPS", &c.Hygiene.MaxGaps); err != nil {
		return err
	}
	if err := parseEnvFloat("ELAB_HYGIENE_SIMILARITY_THRESHOLD", &c.Hygiene.SimilarityThreshold); err != nil {
		return err
	}
	return c.Events.applyEnv()
}
