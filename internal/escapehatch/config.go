package escapehatch

import (
	"fmt"
)

// Config holds configuration for escape hatch evaluation
type Config struct {
	// TriggerThreshold is the confidence (0.0-1.0) at which a detected
	// trigger becomes active
	// Default: 0.7
	TriggerThreshold float64 `yaml:"trigger_threshold"`

	// MinTriggers is the number of active triggers needed to widen review
	// Default: 1
	MinTriggers int `yaml:"min_triggers"`

	EvaluateAttackImpact   bool `yaml:"evaluate_attack_impact"`   // Default: true
	EvaluateCrossCutting   bool `yaml:"evaluate_cross_cutting"`   // Default: true
	EvaluateScopeExpansion bool `yaml:"evaluate_scope_expansion"` // Default: true
	EvaluateConsistency    bool `yaml:"evaluate_consistency"`     // Default: true

	// ReadinessDropThreshold is the score drop between iterations that
	// signals scope expansion
	// Default: 10
	ReadinessDropThreshold int `yaml:"readiness_drop_threshold"`

	// CrossCuttingSectionThreshold is the number of changed sections at
	// which a change counts as cross-cutting
	// Default: 3
	CrossCuttingSectionThreshold int `yaml:"cross_cutting_section_threshold"`
}

// DefaultConfig returns the default escape hatch configuration
func DefaultConfig() Config {
	return Config{
		TriggerThreshold:             0.7,
		MinTriggers:                  1,
		EvaluateAttackImpact:         true,
		EvaluateCrossCutting:         true,
		EvaluateScopeExpansion:       true,
		EvaluateConsistency:          true,
		ReadinessDropThreshold:       10,
		CrossCuttingSectionThreshold: 3,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.TriggerThreshold < 0.0 || c.TriggerThreshold > 1.0 {
		return fmt.Errorf("trigger_threshold must be between 0.0 and 1.0 (got %.2f)", c.TriggerThreshold)
	}
	if c.MinTriggers < 1 || c.MinTriggers > len(AllTriggers) {
		return fmt.Errorf("min_triggers must be between 1 and %d (got %d)", len(AllTriggers), c.MinTriggers)
	}
	if c.ReadinessDropThreshold < 1 {
		return fmt.Errorf("readiness_drop_threshold must be positive (got %d)", c.ReadinessDropThreshold)
	}
	if c.CrossCuttingSectionThreshold < 1 {
		return fmt.Errorf("cross_cutting_section_threshold must be positive (got %d)", c.CrossCuttingSectionThreshold)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{Threshold: %.2f, MinTriggers: %d, Attack: %t, CrossCutting: %t, "+
		"Scope: %t, Consistency: %t, ReadinessDrop: %d, CrossCuttingSections: %d}",
		c.TriggerThreshold, c.MinTriggers, c.EvaluateAttackImpact, c.EvaluateCrossCutting,
		c.EvaluateScopeExpansion, c.EvaluateConsistency, c.ReadinessDropThreshold,
		c.CrossCuttingSectionThreshold)
}
