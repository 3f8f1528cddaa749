package elaboration

import (
	"fmt"
	"time"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/escapehatch"
	"github.com/steveyegge/elab/internal/readiness"
)

const (
	// MinNodeTimeout is the shortest allowed per-node timeout
	MinNodeTimeout = time.Second
	// MaxNodeTimeout is the longest allowed per-node timeout
	MaxNodeTimeout = 10 * time.Minute
)

// Config holds the configuration of one elaboration run. Every component
// config is validated before any node executes.
type Config struct {
	Detect      delta.DetectConfig `yaml:"delta_detect"`
	Review      delta.ReviewConfig `yaml:"delta_review"`
	EscapeHatch escapehatch.Config `yaml:"escape_hatch"`
	Readiness   readiness.Config   `yaml:"readiness"`

	// NodeTimeout bounds how long a single node may run. Exceeding it is a
	// node failure.
	// Default: 30s, Range: 1s-10m
	NodeTimeout time.Duration `yaml:"node_timeout"`

	// RecalculateReadiness rescores the story after aggregation. When false
	// the update_readiness phase does nothing but still advances.
	// Default: true
	RecalculateReadiness bool `yaml:"recalculate_readiness"`
}

// DefaultConfig returns the default elaboration configuration
func DefaultConfig() Config {
	return Config{
		Detect:               delta.DefaultDetectConfig(),
		Review:               delta.DefaultReviewConfig(),
		EscapeHatch:          escapehatch.DefaultConfig(),
		Readiness:            readiness.DefaultConfig(),
		NodeTimeout:          30 * time.Second,
		RecalculateReadiness: true,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.NodeTimeout < MinNodeTimeout || c.NodeTimeout > MaxNodeTimeout {
		return fmt.Errorf("node_timeout must be between %v and %v (got %v)", MinNodeTimeout, MaxNodeTimeout, c.NodeTimeout)
	}
	if err := c.Detect.Validate(); err != nil {
		return fmt.Errorf("delta_detect: %w", err)
	}
	if err := c.Review.Validate(); err != nil {
		return fmt.Errorf("delta_review: %w", err)
	}
	if err := c.EscapeHatch.Validate(); err != nil {
		return fmt.Errorf("escape_hatch: %w", err)
	}
	if err := c.Readiness.Validate(); err != nil {
		return fmt.Errorf("readiness: %w", err)
	}
	return nil
}
