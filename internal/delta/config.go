package delta

import (
	"fmt"
)

// DetectConfig controls delta detection
type DetectConfig struct {
	// MinSignificance drops changes below this significance
	// Default: 1, Range: 1-10
	MinSignificance int `yaml:"min_significance"`

	// SubstantialChangeThreshold is the number of changes at which a delta
	// counts as substantial
	// Default: 3
	SubstantialChangeThreshold int `yaml:"substantial_change_threshold"`

	// TrackFieldChanges records field-level differences for modified items
	// Default: true
	TrackFieldChanges bool `yaml:"track_field_changes"`

	// Sections restricts comparison to these sections (empty = all)
	Sections []Section `yaml:"sections"`
}

// DefaultDetectConfig returns the default detection configuration
func DefaultDetectConfig() DetectConfig {
	return DetectConfig{
		MinSignificance:            1,
		SubstantialChangeThreshold: 3,
		TrackFieldChanges:          true,
	}
}

// Validate checks if the configuration has valid values
func (c DetectConfig) Validate() error {
	if c.MinSignificance < MinSignificance || c.MinSignificance > MaxSignificance {
		return fmt.Errorf("min_significance must be between %d and %d (got %d)",
			MinSignificance, MaxSignificance, c.MinSignificance)
	}
	if c.SubstantialChangeThreshold < 1 {
		return fmt.Errorf("substantial_change_threshold must be positive (got %d)", c.SubstantialChangeThreshold)
	}
	for _, s := range c.Sections {
		if !s.IsValid() {
			return fmt.Errorf("sections: unknown section %q", s)
		}
	}
	return nil
}

func (c DetectConfig) sections() []Section {
	if len(c.Sections) == 0 {
		return AllSections
	}
	return c.Sections
}

// ReviewConfig controls delta review
type ReviewConfig struct {
	// MinSeverity drops findings below this severity
	// Default: info
	MinSeverity Severity `yaml:"min_severity"`

	ReviewAdded    bool `yaml:"review_added"`    // Default: true
	ReviewModified bool `yaml:"review_modified"` // Default: true
	ReviewRemoved  bool `yaml:"review_removed"`  // Default: true

	// MaxFindingsPerSection caps findings per section, keeping the most severe
	// Default: 10
	MaxFindingsPerSection int `yaml:"max_findings_per_section"`

	// FailOnCritical fails the review when any critical finding remains
	// Default: true
	FailOnCritical bool `yaml:"fail_on_critical"`

	// FailOnMajor fails the review when any major finding remains
	// Default: false
	FailOnMajor bool `yaml:"fail_on_major"`
}

// DefaultReviewConfig returns the default review configuration
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		MinSeverity:           SeverityInfo,
		ReviewAdded:           true,
		ReviewModified:        true,
		ReviewRemoved:         true,
		MaxFindingsPerSection: 10,
		FailOnCritical:        true,
		FailOnMajor:           false,
	}
}

// Validate checks if the configuration has valid values
func (c ReviewConfig) Validate() error {
	if !c.MinSeverity.IsValid() {
		return fmt.Errorf("min_severity must be critical, major, minor or info (got %q)", c.MinSeverity)
	}
	if c.MaxFindingsPerSection < 1 {
		return fmt.Errorf("max_findings_per_section must be positive (got %d)", c.MaxFindingsPerSection)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c ReviewConfig) String() string {
	return fmt.Sprintf("ReviewConfig{MinSeverity: %s, Added: %t, Modified: %t, Removed: %t, "+
		"MaxPerSection: %d, FailOnCritical: %t, FailOnMajor: %t}",
		c.MinSeverity, c.ReviewAdded, c.ReviewModified, c.ReviewRemoved,
		c.MaxFindingsPerSection, c.FailOnCritical, c.FailOnMajor)
}
