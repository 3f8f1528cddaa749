package gaps

import (
	"fmt"
)

// PMConfig controls the product-management analyzer
type PMConfig struct {
	// MinSeverity drops gaps below this severity (1-5)
	// Default: 1
	MinSeverity int `yaml:"min_severity"`

	CheckScope        bool `yaml:"check_scope"`
	CheckRequirements bool `yaml:"check_requirements"`
	CheckDependencies bool `yaml:"check_dependencies"`
	CheckPriority     bool `yaml:"check_priority"`

	// IncludeSuggestions keeps the suggested fix on each gap
	// Default: true
	IncludeSuggestions bool `yaml:"include_suggestions"`
}

// DefaultPMConfig returns the default PM analyzer configuration
func DefaultPMConfig() PMConfig {
	return PMConfig{
		MinSeverity:        1,
		CheckScope:         true,
		CheckRequirements:  true,
		CheckDependencies:  true,
		CheckPriority:      true,
		IncludeSuggestions: true,
	}
}

// Validate checks if the configuration has valid values
func (c PMConfig) Validate() error {
	if c.MinSeverity < 1 || c.MinSeverity > 5 {
		return fmt.Errorf("pm min_severity must be between 1 and 5 (got %d)", c.MinSeverity)
	}
	return nil
}

// UXConfig controls the UX analyzer
type UXConfig struct {
	// WCAGLevel is the conformance target; accessibility gaps for criteria
	// above this level are not reported
	// Default: AA
	WCAGLevel WCAGLevel `yaml:"wcag_level"`

	CheckDesignPatterns bool `yaml:"check_design_patterns"`
	CheckUserFlows      bool `yaml:"check_user_flows"`

	// BlockingSeverity is the lowest severity that marks UX readiness blocked
	// Default: critical
	BlockingSeverity UXSeverity `yaml:"blocking_severity"`

	// MaxGapsPerCategory caps each of the four UX gap lists
	// Default: 10
	MaxGapsPerCategory int `yaml:"max_gaps_per_category"`
}

// DefaultUXConfig returns the default UX analyzer configuration
func DefaultUXConfig() UXConfig {
	return UXConfig{
		WCAGLevel:           WCAGLevelAA,
		CheckDesignPatterns: true,
		CheckUserFlows:      true,
		BlockingSeverity:    UXSeverityCritical,
		MaxGapsPerCategory:  10,
	}
}

// Validate checks if the configuration has valid values
func (c UXConfig) Validate() error {
	if !c.WCAGLevel.IsValid() {
		return fmt.Errorf("ux wcag_level must be A, AA or AAA (got %q)", c.WCAGLevel)
	}
	if !c.BlockingSeverity.IsValid() {
		return fmt.Errorf("ux blocking_severity must be critical, major, minor or suggestion (got %q)", c.BlockingSeverity)
	}
	if c.MaxGapsPerCategory < 1 {
		return fmt.Errorf("ux max_gaps_per_category must be positive (got %d)", c.MaxGapsPerCategory)
	}
	return nil
}

// QAConfig controls the QA analyzer
type QAConfig struct {
	MaxTestabilityGaps int `yaml:"max_testability_gaps"` // Default: 10
	MaxEdgeCaseGaps    int `yaml:"max_edge_case_gaps"`   // Default: 15
	MaxACClarityGaps   int `yaml:"max_ac_clarity_gaps"`  // Default: 10
	MaxCoverageGaps    int `yaml:"max_coverage_gaps"`    // Default: 10

	// MinTestabilitySeverity drops testability gaps below this level
	// Default: low
	MinTestabilitySeverity Level `yaml:"min_testability_severity"`

	// IncludeExamples keeps the example scenario on edge case gaps
	IncludeExamples bool `yaml:"include_examples"`

	// IncludeRewrites keeps suggested rewrites on AC clarity gaps
	IncludeRewrites bool `yaml:"include_rewrites"`
}

// DefaultQAConfig returns the default QA analyzer configuration
func DefaultQAConfig() QAConfig {
	return QAConfig{
		MaxTestabilityGaps:     10,
		MaxEdgeCaseGaps:        15,
		MaxACClarityGaps:       10,
		MaxCoverageGaps:        10,
		MinTestabilitySeverity: LevelLow,
		IncludeExamples:        true,
		IncludeRewrites:        true,
	}
}

// Validate checks if the configuration has valid values
func (c QAConfig) Validate() error {
	for name, v := range map[string]int{
		"max_testability_gaps": c.MaxTestabilityGaps,
		"max_edge_case_gaps":   c.MaxEdgeCaseGaps,
		"max_ac_clarity_gaps":  c.MaxACClarityGaps,
		"max_coverage_gaps":    c.MaxCoverageGaps,
	} {
		if v < 1 {
			return fmt.Errorf("qa %s must be positive (got %d)", name, v)
		}
	}
	if !c.MinTestabilitySeverity.IsValid() {
		return fmt.Errorf("qa min_testability_severity must be high, medium or low (got %q)", c.MinTestabilitySeverity)
	}
	return nil
}

// AttackConfig bounds the adversarial analyzer
type AttackConfig struct {
	// MaxAssumptionChallenges caps how many assumptions are challenged
	// Default: 5
	MaxAssumptionChallenges int `yaml:"max_assumption_challenges"`

	// MaxEdgeCases caps the reported edge cases (highest risk kept)
	// Default: 10
	MaxEdgeCases int `yaml:"max_edge_cases"`

	// MaxIterationsPerAssumption bounds the challenge loop per assumption
	// Default: 3
	MaxIterationsPerAssumption int `yaml:"max_iterations_per_assumption"`

	// MinConfidence drops assumptions held with less confidence than this.
	// "unknown" keeps everything.
	// Default: unknown
	MinConfidence Confidence `yaml:"min_confidence"`

	// MinRiskScore drops edge cases below this likelihood x impact score
	// Default: 1, Range: 1-25
	MinRiskScore int `yaml:"min_risk_score"`
}

// DefaultAttackConfig returns the default attack analyzer configuration
func DefaultAttackConfig() AttackConfig {
	return AttackConfig{
		MaxAssumptionChallenges:    5,
		MaxEdgeCases:               10,
		MaxIterationsPerAssumption: 3,
		MinConfidence:              ConfidenceUnknown,
		MinRiskScore:               1,
	}
}

// Validate checks if the configuration has valid values
func (c AttackConfig) Validate() error {
	if c.MaxAssumptionChallenges < 1 {
		return fmt.Errorf("attack max_assumption_challenges must be positive (got %d)", c.MaxAssumptionChallenges)
	}
	if c.MaxEdgeCases < 1 {
		return fmt.Errorf("attack max_edge_cases must be positive (got %d)", c.MaxEdgeCases)
	}
	if c.MaxIterationsPerAssumption < 1 || c.MaxIterationsPerAssumption > 10 {
		return fmt.Errorf("attack max_iterations_per_assumption must be between 1 and 10 (got %d)",
			c.MaxIterationsPerAssumption)
	}
	if !c.MinConfidence.IsValid() {
		return fmt.Errorf("attack min_confidence must be high, medium, low or unknown (got %q)", c.MinConfidence)
	}
	if c.MinRiskScore < 1 || c.MinRiskScore > 25 {
		return fmt.Errorf("attack min_risk_score must be between 1 and 25 (got %d)", c.MinRiskScore)
	}
	return nil
}

// Config groups the configuration of all four analyzers
type Config struct {
	PM     PMConfig     `yaml:"pm"`
	UX     UXConfig     `yaml:"ux"`
	QA     QAConfig     `yaml:"qa"`
	Attack AttackConfig `yaml:"attack"`
}

// DefaultConfig returns defaults for every analyzer
func DefaultConfig() Config {
	return Config{
		PM:     DefaultPMConfig(),
		UX:     DefaultUXConfig(),
		QA:     DefaultQAConfig(),
		Attack: DefaultAttackConfig(),
	}
}

// Validate checks every analyzer configuration
func (c Config) Validate() error {
	if err := c.PM.Validate(); err != nil {
		return err
	}
	if err := c.UX.Validate(); err != nil {
		return err
	}
	if err := c.QA.Validate(); err != nil {
		return err
	}
	return c.Attack.Validate()
}
