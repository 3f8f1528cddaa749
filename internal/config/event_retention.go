package config

import (
	"fmt"
)

// EventRetentionConfig controls how long pipeline events are kept
type EventRetentionConfig struct {
	// RetentionDays is the retention period for info and warning events
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// RetentionCriticalDays is the retention period for error and critical
	// events. Must be >= RetentionDays.
	// Default: 90, Range: 1-730
	RetentionCriticalDays int `yaml:"retention_critical_days"`

	// PerStoryLimitEvents is the maximum number of regular events kept per
	// story. Error and critical events do not count against it.
	// Default: 500, Range: 0 (unlimited) or 50-10000
	PerStoryLimitEvents int `yaml:"per_story_limit_events"`

	// CleanupBatchSize is the number of events deleted per statement
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupVacuum runs VACUUM after a prune
	// Default: false
	CleanupVacuum bool `yaml:"cleanup_vacuum"`
}

// DefaultEventRetentionConfig returns the default event retention configuration
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:         30,
		RetentionCriticalDays: 90,
		PerStoryLimitEvents:   500,
		CleanupBatchSize:      1000,
		CleanupVacuum:         false,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}
	if c.RetentionCriticalDays < 1 || c.RetentionCriticalDays > 730 {
		return fmt.Errorf("retention_critical_days must be between 1 and 730 (got %d)",
			c.RetentionCriticalDays)
	}
	if c.RetentionCriticalDays < c.RetentionDays {
		return fmt.Errorf("retention_critical_days (%d) must be >= retention_days (%d)",
			c.RetentionCriticalDays, c.RetentionDays)
	}

	if c.PerStoryLimitEvents < 0 {
		return fmt.Errorf("per_story_limit_events cannot be negative (got %d)", c.PerStoryLimitEvents)
	}
	if c.PerStoryLimitEvents > 0 && c.PerStoryLimitEvents < 50 {
		return fmt.Errorf("per_story_limit_events must be 0 (unlimited) or >= 50 (got %d)",
			c.PerStoryLimitEvents)
	}
	if c.PerStoryLimitEvents > 10000 {
		return fmt.Errorf("per_story_limit_events too large (got %d, max 10000)", c.PerStoryLimitEvents)
	}

	if c.CleanupBatchSize < 100 || c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size must be between 100 and 10000 (got %d)", c.CleanupBatchSize)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, RetentionCriticalDays: %d, "+
			"PerStoryLimit: %d, BatchSize: %d, Vacuum: %t}",
		c.RetentionDays, c.RetentionCriticalDays, c.PerStoryLimitEvents,
		c.CleanupBatchSize, c.CleanupVacuum,
	)
}

// EventRetentionConfigFromEnv creates an EventRetentionConfig from
// environment variables, falling back to defaults
//
// Environment variables:
//   - ELAB_EVENT_RETENTION_DAYS: Retention period for regular events in days (default: 30)
//   - ELAB_EVENT_RETENTION_CRITICAL_DAYS: Retention period for error/critical events (default: 90)
//   - ELAB_EVENT_PER_STORY_LIMIT: Maximum regular events per story, 0 for unlimited (default: 500)
//   - ELAB_EVENT_CLEANUP_BATCH_SIZE: Events deleted per statement (default: 1000)
//   - ELAB_EVENT_CLEANUP_VACUUM: Run VACUUM after a prune (default: false)
func EventRetentionConfigFromEnv() (EventRetentionConfig, error) {
	cfg := DefaultEventRetentionConfig()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid event retention configuration from environment: %w", err)
	}
	return cfg, nil
}

func (c *EventRetentionConfig) applyEnv() error {
	if err := parseEnvInt("ELAB_EVENT_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := parseEnvInt("ELAB_EVENT_RETENTION_CRITICAL_DAYS", &c.RetentionCriticalDays); err != nil {
		return err
	}
	if err := parseEnvInt("ELAB_EVENT_PER_STORY_LIMIT", &c.PerStoryLimitEvents); err != nil {
		return err
	}
	if err := parseEnvInt("ELAB_EVENT_CLEANUP_BATCH_SIZE", &c.CleanupBatchSize); err != nil {
		return err
	}
	return parseEnvBool("ELAB_EVENT_CLEANUP_VACUUM", &c.CleanupVacuum)
}
