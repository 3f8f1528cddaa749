package events

import (
	"time"

	"github.com/google/uuid"
)

// NewSimpleEvent creates a new PipelineEvent with no structured data.
func NewSimpleEvent(eventType EventType, storyID, runID string, severity EventSeverity, message string) *PipelineEvent {
	return &PipelineEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		StoryID:   storyID,
		RunID:     runID,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}

// NewPhaseEvent creates a phase lifecycle event with type-safe data.
func NewPhaseEvent(eventType EventType, storyID, runID string, severity EventSeverity, message string, data PhaseData) (*PipelineEvent, error) {
	event := NewSimpleEvent(eventType, storyID, runID, severity, message)
	event.Phase = data.Phase
	if err := event.SetPhaseData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewGapsRankedEvent creates a gap hygiene event with type-safe data.
func NewGapsRankedEvent(storyID, runID, message string, data GapsRankedData) (*PipelineEvent, error) {
	severity := SeverityInfo
	if data.BlockingCount > 0 {
		severity = SeverityWarning
	}
	event := NewSimpleEvent(EventTypeGapsRanked, storyID, runID, severity, message)
	if err := event.SetGapsRankedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewDeltaDetectedEvent creates a delta detection event with type-safe data.
func NewDeltaDetectedEvent(storyID, runID, message string, data DeltaDetectedData) (*PipelineEvent, error) {
	event := NewSimpleEvent(EventTypeDeltaDetected, storyID, runID, SeverityInfo, message)
	if err := event.SetDeltaDetectedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewDeltaReviewedEvent creates a delta review event with type-safe data.
func NewDeltaReviewedEvent(storyID, runID, message string, data DeltaReviewedData) (*PipelineEvent, error) {
	severity := SeverityInfo
	if !data.Passed {
		severity = SeverityWarning
	}
	event := NewSimpleEvent(EventTypeDeltaReviewed, storyID, runID, severity, message)
	if err := event.SetDeltaReviewedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewEscapeHatchEvent creates an escape hatch event with type-safe data.
func NewEscapeHatchEvent(storyID, runID, message string, data EscapeHatchData) (*PipelineEvent, error) {
	event := NewSimpleEvent(EventTypeEscapeHatchTriggered, storyID, runID, SeverityWarning, message)
	if err := event.SetEscapeHatchData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewReadinessScoredEvent creates a readiness event with type-safe data.
func NewReadinessScoredEvent(storyID, runID, message string, data ReadinessScoredData) (*PipelineEvent, error) {
	severity := SeverityInfo
	if !data.Ready {
		severity = SeverityWarning
	}
	event := NewSimpleEvent(EventTypeReadinessScored, storyID, runID, severity, message)
	if err := event.SetReadinessScoredData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewStoryStateEvent creates a workflow state change event with type-safe data.
func NewStoryStateEvent(storyID, runID, message string, data StoryStateData) (*PipelineEvent, error) {
	event := NewSimpleEvent(EventTypeStoryStateChanged, storyID, runID, SeverityInfo, message)
	if err := event.SetStoryStateData(data); err != nil {
		return nil, err
	}
	return event, nil
}
