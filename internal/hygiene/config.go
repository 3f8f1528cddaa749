package hygiene

import (
	"fmt"
)

// Config holds configuration for gap hygiene processing
type Config struct {
	// MaxGaps caps the ranked output after MinScore filtering
	// Default: 50, Range: 1-500
	MaxGaps int `yaml:"max_gaps"`

	// MinScore drops ranked gaps scoring below this value
	// Default: 1, Range: 1-25
	MinScore int `yaml:"min_score"`

	// EnableDeduplication merges near-identical gaps before ranking
	// Default: true
	EnableDeduplication bool `yaml:"enable_deduplication"`

	// SimilarityThreshold is the token-overlap ratio (0.0-1.0) at which two
	// gaps are considered duplicates
	// Higher values = only near-verbatim gaps merge
	// Default: 0.7
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// IncludeResolved keeps gaps marked resolved in a previous run
	// Default: false
	IncludeResolved bool `yaml:"include_resolved"`

	// BlockingThreshold is the minimum score for mvp_blocking
	// Default: 20
	BlockingThreshold int `yaml:"blocking_threshold"`

	// ImportantThreshold is the minimum score for mvp_important
	// Default: 12
	ImportantThreshold int `yaml:"important_threshold"`

	// FutureThreshold is the minimum score for future; anything below is deferred
	// Default: 5
	FutureThreshold int `yaml:"future_threshold"`
}

// DefaultConfig returns the default hygiene configuration
func DefaultConfig() Config {
	return Config{
		MaxGaps:             50,   // Ranked gaps kept per story
		MinScore:            1,    // Keep everything
		EnableDeduplication: true, // Merge similar gaps
		SimilarityThreshold: 0.7,  // Token overlap ratio
		IncludeResolved:     false,
		BlockingThreshold:   20,
		ImportantThreshold:  12,
		FutureThreshold:     5,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MaxGaps < 1 || c.MaxGaps > 500 {
		return fmt.Errorf("max_gaps must be between 1 and 500 (got %d)", c.MaxGaps)
	}
	if c.MinScore < 1 || c.MinScore > MaxScore {
		return fmt.Errorf("min_score must be between 1 and %d (got %d)", MaxScore, c.MinScore)
	}
	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.SimilarityThreshold)
	}
	for _, t := range []struct {
		name  string
		value int
	}{
		{"blocking_threshold", c.BlockingThreshold},
		{"important_threshold", c.ImportantThreshold},
		{"future_threshold", c.FutureThreshold},
	} {
		if t.value < 1 || t.value > MaxScore {
			return fmt.Errorf("%s must be between 1 and %d (got %d)", t.name, MaxScore, t.value)
		}
	}
	if !(c.BlockingThreshold > c.ImportantThreshold && c.ImportantThreshold > c.FutureThreshold) {
		return fmt.Errorf("thresholds must be strictly decreasing: blocking (%d) > important (%d) > future (%d)",
			c.BlockingThreshold, c.ImportantThreshold, c.FutureThreshold)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{MaxGaps: %d, MinScore: %d, Dedup: %t, Similarity: %.2f, "+
			"IncludeResolved: %t, Thresholds: %d/%d/%d}",
		c.MaxGaps, c.MinScore, c.EnableDeduplication, c.SimilarityThreshold,
		c.IncludeResolved, c.BlockingThreshold, c.ImportantThreshold, c.FutureThreshold,
	)
}
