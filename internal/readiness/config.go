package readiness

import (
	"fmt"
)

// Config holds the scoring weights of the readiness scorer
type Config struct {
	// Threshold is the minimum score at which a story is ready
	// Default: 85, Range: 0-100
	Threshold int `yaml:"threshold"`

	// MVPBlockingDeduction is subtracted per unresolved mvp_blocking gap
	// Default: 20
	MVPBlockingDeduction int `yaml:"mvp_blocking_deduction"`

	// MVPImportantDeduction is subtracted per unresolved mvp_important gap
	// Default: 5
	MVPImportantDeduction int `yaml:"mvp_important_deduction"`

	// UnknownDeduction is subtracted per TBD-like marker found in the story
	// Default: 3
	UnknownDeduction int `yaml:"unknown_deduction"`

	// ContextBonus is added when at least StrongContextFiles files were loaded
	// Default: 5
	ContextBonus int `yaml:"context_bonus"`

	// BaselineBonus is added when a baseline document is present
	// Default: 5
	BaselineBonus int `yaml:"baseline_bonus"`

	// MaxRecommendations caps the recommendation list
	// Default: 5
	MaxRecommendations int `yaml:"max_recommendations"`
}

// DefaultConfig returns the default readiness configuration
func DefaultConfig() Config {
	return Config{
		Threshold:             85,
		MVPBlockingDeduction:  20,
		MVPImportantDeduction: 5,
		UnknownDeduction:      3,
		ContextBonus:          5,
		BaselineBonus:         5,
		MaxRecommendations:    5,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Threshold < MinScore || c.Threshold > MaxScore {
		return fmt.Errorf("threshold must be between %d and %d (got %d)", MinScore, MaxScore, c.Threshold)
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"mvp_blocking_deduction", c.MVPBlockingDeduction},
		{"mvp_important_deduction", c.MVPImportantDeduction},
		{"unknown_deduction", c.UnknownDeduction},
		{"context_bonus", c.ContextBonus},
		{"baseline_bonus", c.BaselineBonus},
		{"max_recommendations", c.MaxRecommendations},
	} {
		if f.value < 1 {
			return fmt.Errorf("%s must be positive (got %d)", f.name, f.value)
		}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{Threshold: %d, Deductions: %d/%d/%d, Bonuses: %d/%d, MaxRecommendations: %d}",
		c.Threshold, c.MVPBlockingDeduction, c.MVPImportantDeduction, c.UnknownDeduction,
		c.ContextBonus, c.BaselineBonus, c.MaxRecommendations)
}
