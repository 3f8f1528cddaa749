package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// storyIDPattern matches story identifiers such as "flow-024" or "WISH-7"
var storyIDPattern = regexp.MustCompile(`(?i)^[a-z]+-\d+$`)

// Story is an immutable snapshot of a structured work item.
// Stories are produced upstream (seed/synthesize) and are read-only to the
// elaboration pipeline.
type Story struct {
	ID                  string                `json:"id" yaml:"id"`
	Title               string                `json:"title" yaml:"title"`
	Description         string                `json:"description" yaml:"description"`
	Domain              string                `json:"domain" yaml:"domain"`
	EstimatedComplexity Complexity            `json:"estimated_complexity,omitempty" yaml:"estimated_complexity,omitempty"`
	AcceptanceCriteria  []AcceptanceCriterion `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	NonGoals            []NonGoal             `json:"non_goals,omitempty" yaml:"non_goals,omitempty"`
	TestHints           []TestHint            `json:"test_hints,omitempty" yaml:"test_hints,omitempty"`
	KnownUnknowns       []KnownUnknown        `json:"known_unknowns,omitempty" yaml:"known_unknowns,omitempty"`
	Constraints         []string              `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	AffectedFiles       []string              `json:"affected_files,omitempty" yaml:"affected_files,omitempty"`
	Dependencies        []string              `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Tags                []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Validate checks if the story has valid field values
func (s *Story) Validate() error {
	if !storyIDPattern.MatchString(s.ID) {
		return fmt.Errorf("story id must look like <prefix>-<number> (got %q)", s.ID)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if s.EstimatedComplexity != "" && !s.EstimatedComplexity.IsValid() {
		return fmt.Errorf("invalid estimated complexity: %s", s.EstimatedComplexity)
	}

	seen := make(map[string]bool, len(s.AcceptanceCriteria))
	for i, ac := range s.AcceptanceCriteria {
		if err := ac.Validate(); err != nil {
			return fmt.Errorf("acceptance criterion %d: %w", i, err)
		}
		if seen[ac.ID] {
			return fmt.Errorf("duplicate acceptance criterion id %q", ac.ID)
		}
		seen[ac.ID] = true
	}
	for i, th := range s.TestHints {
		if th.Category != "" && !th.Category.IsValid() {
			return fmt.Errorf("test hint %d: invalid category: %s", i, th.Category)
		}
	}
	for i, ku := range s.KnownUnknowns {
		if ku.Impact != "" && !ku.Impact.IsValid() {
			return fmt.Errorf("known unknown %d: invalid impact: %s", i, ku.Impact)
		}
	}
	return nil
}

// Complexity is the upstream size estimate of a story
type Complexity string

const (
	ComplexitySmall  Complexity = "small"
	ComplexityMedium Complexity = "medium"
	ComplexityLarge  Complexity = "large"
)

// IsValid checks if the complexity value is valid
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexitySmall, ComplexityMedium, ComplexityLarge:
		return true
	}
	return false
}

// AcceptanceCriterion is a single verifiable outcome of a story
type AcceptanceCriterion struct {
	ID            string   `json:"id" yaml:"id"`
	Description   string   `json:"description" yaml:"description"`
	FromBaseline  bool     `json:"from_baseline,omitempty" yaml:"from_baseline,omitempty"`
	Priority      int      `json:"priority,omitempty" yaml:"priority,omitempty"` // 1 (highest) to 3
	TestHint      string   `json:"test_hint,omitempty" yaml:"test_hint,omitempty"`
	RelatedGapIDs []string `json:"related_gap_ids,omitempty" yaml:"related_gap_ids,omitempty"`
}

// Validate checks if the acceptance criterion has valid field values
func (ac *AcceptanceCriterion) Validate() error {
	if ac.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(ac.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if ac.Priority != 0 && (ac.Priority < 1 || ac.Priority > 3) {
		return fmt.Errorf("priority must be between 1 and 3 (got %d)", ac.Priority)
	}
	return nil
}

// NonGoal is an explicit exclusion from story scope
type NonGoal struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
}

// TestHintCategory categorizes a test hint
type TestHintCategory string

const (
	TestHintUnit        TestHintCategory = "unit"
	TestHintIntegration TestHintCategory = "integration"
	TestHintE2E         TestHintCategory = "e2e"
	TestHintEdgeCase    TestHintCategory = "edge_case"
	TestHintPerformance TestHintCategory = "performance"
	TestHintSecurity    TestHintCategory = "security"
)

// IsValid checks if the test hint category value is valid
func (c TestHintCategory) IsValid() bool {
	switch c {
	case TestHintUnit, TestHintIntegration, TestHintE2E, TestHintEdgeCase, TestHintPerformance, TestHintSecurity:
		return true
	}
	return false
}

// TestHint suggests how part of the story should be tested
type TestHint struct {
	ID          string           `json:"id" yaml:"id"`
	Description string           `json:"description" yaml:"description"`
	Category    TestHintCategory `json:"category,omitempty" yaml:"category,omitempty"`
	Priority    int              `json:"priority,omitempty" yaml:"priority,omitempty"`
	RelatedACID string           `json:"related_ac_id,omitempty" yaml:"related_ac_id,omitempty"`
}

// UnknownImpact rates how much an open question affects the story
type UnknownImpact string

const (
	ImpactBlocking UnknownImpact = "blocking"
	ImpactHigh     UnknownImpact = "high"
	ImpactMedium   UnknownImpact = "medium"
	ImpactLow      UnknownImpact = "low"
)

// IsValid checks if the impact value is valid
func (i UnknownImpact) IsValid() bool {
	switch i {
	case ImpactBlocking, ImpactHigh, ImpactMedium, ImpactLow:
		return true
	}
	return false
}

// KnownUnknown is an open question that was identified but not resolved
type KnownUnknown struct {
	ID           string        `json:"id" yaml:"id"`
	Description  string        `json:"description" yaml:"description"`
	Source       string        `json:"source,omitempty" yaml:"source,omitempty"`
	Impact       UnknownImpact `json:"impact,omitempty" yaml:"impact,omitempty"`
	Resolution   string        `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Acknowledged bool          `json:"acknowledged,omitempty" yaml:"acknowledged,omitempty"`
}

// Baseline is the "baseline reality" document describing the current
// state of the codebase around a story.
type Baseline struct {
	Date           string   `json:"date,omitempty" yaml:"date,omitempty"`
	FilePath       string   `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	WhatExists     []string `json:"what_exists,omitempty" yaml:"what_exists,omitempty"`
	WhatInProgress []string `json:"what_in_progress,omitempty" yaml:"what_in_progress,omitempty"`
	NoRework       []string `json:"no_rework,omitempty" yaml:"no_rework,omitempty"`
}

// RetrievedContext summarizes how much supporting context was loaded
type RetrievedContext struct {
	FilesLoaded     int `json:"files_loaded" yaml:"files_loaded"`
	TotalFilesFound int `json:"total_files_found" yaml:"total_files_found"`
}

// WorkflowState is where a story sits after elaboration
type WorkflowState string

const (
	WorkflowReadyToWork WorkflowState = "ready-to-work"
	WorkflowBacklog     WorkflowState = "backlog"
)

// IsValid checks if the workflow state value is valid
func (s WorkflowState) IsValid() bool {
	return s == WorkflowReadyToWork || s == WorkflowBacklog
}

// StoryState is the recorded workflow state of a story
type StoryState struct {
	StoryID   string        `json:"story_id"`
	State     WorkflowState `json:"state"`
	Reason    string        `json:"reason,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
