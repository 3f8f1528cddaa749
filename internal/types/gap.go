package types

import (
	"fmt"
	"time"
)

// Perspective identifies which analyzer produced a gap
type Perspective string

const (
	PerspectivePM     Perspective = "pm"
	PerspectiveUX     Perspective = "ux"
	PerspectiveQA     Perspective = "qa"
	PerspectiveAttack Perspective = "attack"
)

// GapSource is the closed set of generator categories a gap can come from.
// Every source belongs to exactly one Perspective.
type GapSource string

const (
	SourcePMScope          GapSource = "pm_scope"
	SourcePMRequirement    GapSource = "pm_requirement"
	SourcePMDependency     GapSource = "pm_dependency"
	SourcePMPriority       GapSource = "pm_priority"
	SourceUXAccessibility  GapSource = "ux_accessibility"
	SourceUXUsability      GapSource = "ux_usability"
	SourceUXDesignPattern  GapSource = "ux_design_pattern"
	SourceUXUserFlow       GapSource = "ux_user_flow"
	SourceQATestability    GapSource = "qa_testability"
	SourceQAEdgeCase       GapSource = "qa_edge_case"
	SourceQAACClarity      GapSource = "qa_ac_clarity"
	SourceQACoverage       GapSource = "qa_coverage"
	SourceAttackEdgeCase   GapSource = "attack_edge_case"
	SourceAttackAssumption GapSource = "attack_assumption"
)

// AllGapSources lists every source in a stable order
var AllGapSources = []GapSource{
	SourcePMScope, SourcePMRequirement, SourcePMDependency, SourcePMPriority,
	SourceUXAccessibility, SourceUXUsability, SourceUXDesignPattern, SourceUXUserFlow,
	SourceQATestability, SourceQAEdgeCase, SourceQAACClarity, SourceQACoverage,
	SourceAttackEdgeCase, SourceAttackAssumption,
}

// IsValid checks if the gap source value is valid
func (s GapSource) IsValid() bool {
	return s.Perspective() != ""
}

// Perspective returns the analyzer that owns this source, or "" for an
// unknown source.
func (s GapSource) Perspective() Perspective {
	switch s {
	case SourcePMScope, SourcePMRequirement, SourcePMDependency, SourcePMPriority:
		return PerspectivePM
	case SourceUXAccessibility, SourceUXUsability, SourceUXDesignPattern, SourceUXUserFlow:
		return PerspectiveUX
	case SourceQATestability, SourceQAEdgeCase, SourceQAACClarity, SourceQACoverage:
		return PerspectiveQA
	case SourceAttackEdgeCase, SourceAttackAssumption:
		return PerspectiveAttack
	}
	return ""
}

// ParseGapSource converts a string into a GapSource
func ParseGapSource(s string) (GapSource, error) {
	src := GapSource(s)
	if !src.IsValid() {
		return "", fmt.Errorf("invalid gap source: %s", s)
	}
	return src, nil
}

// GapCategory buckets a ranked gap by score
type GapCategory string

const (
	CategoryMVPBlocking  GapCategory = "mvp_blocking"
	CategoryMVPImportant GapCategory = "mvp_important"
	CategoryFuture       GapCategory = "future"
	CategoryDeferred     GapCategory = "deferred"
)

// AllGapCategories lists every category from most to least strict
var AllGapCategories = []GapCategory{
	CategoryMVPBlocking, CategoryMVPImportant, CategoryFuture, CategoryDeferred,
}

// IsValid checks if the category value is valid
func (c GapCategory) IsValid() bool {
	return c.Rank() > 0
}

// Rank orders categories by strictness: deferred=1 up to mvp_blocking=4.
// Unknown categories rank 0.
func (c GapCategory) Rank() int {
	switch c {
	case CategoryMVPBlocking:
		return 4
	case CategoryMVPImportant:
		return 3
	case CategoryFuture:
		return 2
	case CategoryDeferred:
		return 1
	}
	return 0
}

// DefaultLikelihood is used when a generator does not state a likelihood
const DefaultLikelihood = 3

// Gap is a single weakness reported by a generator. Gaps are immutable
// once emitted.
type Gap struct {
	ID          string    `json:"id"`
	Source      GapSource `json:"source"`
	Description string    `json:"description"`
	Severity    int       `json:"severity"`   // 1-5
	Likelihood  int       `json:"likelihood"` // 1-5, 0 means unstated
	Suggestion  string    `json:"suggestion,omitempty"`
	RelatedACs  []string  `json:"related_acs,omitempty"`
}

// EffectiveLikelihood returns the likelihood, defaulting unstated values
func (g Gap) EffectiveLikelihood() int {
	if g.Likelihood == 0 {
		return DefaultLikelihood
	}
	return g.Likelihood
}

// Validate checks if the gap has valid field values
func (g *Gap) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("gap id is required")
	}
	if !g.Source.IsValid() {
		return fmt.Errorf("invalid gap source: %s", g.Source)
	}
	if g.Description == "" {
		return fmt.Errorf("gap description is required")
	}
	if g.Severity < 1 || g.Severity > 5 {
		return fmt.Errorf("severity must be between 1 and 5 (got %d)", g.Severity)
	}
	if g.Likelihood != 0 && (g.Likelihood < 1 || g.Likelihood > 5) {
		return fmt.Errorf("likelihood must be between 1 and 5 (got %d)", g.Likelihood)
	}
	return nil
}

// HistoryAction is what happened to a ranked gap in one run
type HistoryAction string

const (
	ActionCreated       HistoryAction = "created"
	ActionMerged        HistoryAction = "merged"
	ActionRecategorized HistoryAction = "recategorized"
	ActionRescored      HistoryAction = "rescored"
	ActionAcknowledged  HistoryAction = "acknowledged"
	ActionResolved      HistoryAction = "resolved"
	ActionDeferred      HistoryAction = "deferred"
)

// IsValid checks if the history action value is valid
func (a HistoryAction) IsValid() bool {
	switch a {
	case ActionCreated, ActionMerged, ActionRecategorized, ActionRescored,
		ActionAcknowledged, ActionResolved, ActionDeferred:
		return true
	}
	return false
}

// HistoryEntry is one element of a ranked gap's append-only log
type HistoryEntry struct {
	Action        HistoryAction `json:"action"`
	Timestamp     time.Time     `json:"timestamp"`
	PreviousValue string        `json:"previous_value,omitempty"`
	NewValue      string        `json:"new_value,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// RankedGap is a gap after deduplication, scoring and categorization.
// History is append-only across runs; use WithHistory to extend it.
type RankedGap struct {
	ID           string         `json:"id"`
	OriginalID   string         `json:"original_id"`
	Source       GapSource      `json:"source"`
	Description  string         `json:"description"`
	Severity     int            `json:"severity"`
	Likelihood   int            `json:"likelihood"`
	Score        int            `json:"score"`
	Category     GapCategory    `json:"category"`
	Suggestion   string         `json:"suggestion,omitempty"`
	RelatedACs   []string       `json:"related_acs,omitempty"`
	MergedFrom   []string       `json:"merged_from,omitempty"`
	History      []HistoryEntry `json:"history"`
	Resolved     bool           `json:"resolved"`
	Acknowledged bool           `json:"acknowledged"`
}

// WithHistory returns a copy of the gap whose history is the current
// history followed by entry. The receiver's history is left untouched.
func (g RankedGap) WithHistory(entry HistoryEntry) RankedGap {
	history := make([]HistoryEntry, len(g.History), len(g.History)+1)
	copy(history, g.History)
	g.History = append(history, entry)
	return g
}

// IsOpen reports whether the gap still counts against readiness
func (g RankedGap) IsOpen() bool {
	return !g.Resolved
}
