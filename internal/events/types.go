package events

import (
	"context"
	"time"
)

// EventType represents the type of event that occurred during an elaboration run.
type EventType string

const (
	// Run lifecycle
	// EventTypeRunStarted indicates an elaboration run started for a story
	EventTypeRunStarted EventType = "run_started"
	// EventTypeRunCompleted indicates an elaboration run reached a terminal phase
	EventTypeRunCompleted EventType = "run_completed"

	// Phase lifecycle
	// EventTypePhaseCompleted indicates a phase node returned an update
	EventTypePhaseCompleted EventType = "phase_completed"
	// EventTypePhaseFailed indicates a phase node failed, timed out or moved the run to error
	EventTypePhaseFailed EventType = "phase_failed"

	// Analysis results
	// EventTypeGapsRanked indicates gap hygiene produced a ranked gap list
	EventTypeGapsRanked EventType = "gaps_ranked"
	// EventTypeDeltaDetected indicates delta detection compared two story versions
	EventTypeDeltaDetected EventType = "delta_detected"
	// EventTypeDeltaReviewed indicates the changed sections were reviewed
	EventTypeDeltaReviewed EventType = "delta_reviewed"
	// EventTypeEscapeHatchTriggered indicates the escape hatch widened review scope
	EventTypeEscapeHatchTriggered EventType = "escape_hatch_triggered"
	// EventTypeReadinessScored indicates a readiness score was calculated
	EventTypeReadinessScored EventType = "readiness_scored"

	// Workflow state
	// EventTypeStoryStateChanged indicates the story moved between ready-to-work and backlog
	EventTypeStoryStateChanged EventType = "story_state_changed"
)

// IsValid checks if the event type value is valid
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeRunStarted, EventTypeRunCompleted,
		EventTypePhaseCompleted, EventTypePhaseFailed,
		EventTypeGapsRanked, EventTypeDeltaDetected, EventTypeDeltaReviewed,
		EventTypeEscapeHatchTriggered, EventTypeReadinessScored,
		EventTypeStoryStateChanged:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates critical events requiring immediate attention
	SeverityCritical EventSeverity = "critical"
)

// PipelineEvent represents something that happened while elaborating a story.
// Events are emitted by the orchestrator and stored for later inspection.
type PipelineEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// StoryID is the story being elaborated when this event occurred
	StoryID string `json:"story_id"`
	// RunID groups the events of a single elaboration run
	RunID string `json:"run_id"`
	// Phase is the phase that produced the event (empty for run-level events)
	Phase string `json:"phase,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// PhaseData contains structured data for phase lifecycle events.
type PhaseData struct {
	// Phase is the phase the node ran for
	Phase string `json:"phase"`
	// NextPhase is the phase the run moved to after the node
	NextPhase string `json:"next_phase,omitempty"`
	// Duration is how long the node ran
	Duration time.Duration `json:"duration"`
	// Error is the failure message for failed phases
	Error string `json:"error,omitempty"`
}

// GapsRankedData contains structured data for gap hygiene events.
type GapsRankedData struct {
	// TotalGaps is the number of ranked gaps after dedup, filter and cap
	TotalGaps int `json:"total_gaps"`
	// BlockingCount is the number of mvp_blocking gaps
	BlockingCount int `json:"blocking_count"`
	// MergedCount is the number of gaps absorbed by deduplication
	MergedCount int `json:"merged_count"`
	// HighestScore is the top gap score (1-25)
	HighestScore int `json:"highest_score"`
}

// DeltaDetectedData contains structured data for delta detection events.
type DeltaDetectedData struct {
	PreviousIteration int  `json:"previous_iteration"`
	CurrentIteration  int  `json:"current_iteration"`
	TotalChanges      int  `json:"total_changes"`
	Added             int  `json:"added"`
	Modified          int  `json:"modified"`
	Removed           int  `json:"removed"`
	Substantial       bool `json:"substantial"`
}

// DeltaReviewedData contains structured data for delta review events.
type DeltaReviewedData struct {
	// SectionsReviewed lists the changed sections that were reviewed
	SectionsReviewed []string `json:"sections_reviewed"`
	// Findings is the number of findings after severity filtering
	Findings int  `json:"findings"`
	Critical int  `json:"critical"`
	Major    int  `json:"major"`
	Passed   bool `json:"passed"`
}

// EscapeHatchData contains structured data for escape hatch events.
type EscapeHatchData struct {
	// Triggers lists the triggers that met the threshold
	Triggers []string `json:"triggers"`
	// Stakeholders lists the reviewer roles to involve
	Stakeholders []string `json:"stakeholders"`
	// FullReview is true when the whole story must be re-reviewed
	FullReview bool `json:"full_review"`
	// Priority is the review priority, 1 (urgent) to 3
	Priority   int     `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// ReadinessScoredData contains structured data for readiness events.
type ReadinessScoredData struct {
	// PreviousScore is the score of the prior iteration (nil on first run)
	PreviousScore *int   `json:"previous_score,omitempty"`
	Score         int    `json:"score"`
	Threshold     int    `json:"threshold"`
	Ready         bool   `json:"ready"`
	Confidence    string `json:"confidence"`
}

// StoryStateData contains structured data for story workflow state changes.
type StoryStateData struct {
	// State is the new workflow state ("ready-to-work" or "backlog")
	State string `json:"state"`
	// Reason explains the transition
	Reason string `json:"reason"`
}

// EventStore is the persistence interface for pipeline events. The
// orchestrator emits through it and the CLI reads back from it.
type EventStore interface {
	// StoreEvent persists an event
	StoreEvent(ctx context.Context, event *PipelineEvent) error
	// GetEvents retrieves events matching the filter, newest first
	GetEvents(ctx context.Context, filter EventFilter) ([]*PipelineEvent, error)
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	// StoryID filters events for a specific story
	StoryID string
	// RunID filters events for a specific run
	RunID string
	// Type filters by event type
	Type EventType
	// Severity filters by severity level
	Severity EventSeverity
	// AfterTime filters events after this time
	AfterTime time.Time
	// Limit limits the number of results (0 means no limit)
	Limit int
}
