package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/elab/internal/events"
)

// Event writes a single event in a two-line format: a headline with time,
// story, type and message, then a gray line of key data fields
func Event(w io.Writer, event *events.PipelineEvent) {
	emoji := eventEmoji(event)
	severityColor := SeverityColor(event.Severity)

	timestamp := event.Timestamp.Local().Format("15:04:05")
	storyID := color.New(color.FgGreen).Sprint(event.StoryID)
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	// Keep the headline near 80 columns
	maxMessageLen := 60 - len(event.StoryID) - len(string(event.Type))
	message := truncateString(event.Message, maxMessageLen)

	fmt.Fprintf(w, "%s [%s] %s %s: %s\n", emoji, timestamp, storyID, eventType, severityColor.Sprint(message))

	if metadata := eventMetadata(event); metadata != "" {
		fmt.Fprintf(w, "  %s\n", color.New(color.FgHiBlack).Sprint(metadata))
	} else {
		fmt.Fprintln(w)
	}
}

func eventEmoji(event *events.PipelineEvent) string {
	switch event.Type {
	case events.EventTypeRunStarted:
		return "🚀"
	case events.EventTypeRunCompleted:
		return "🏁"
	case events.EventTypePhaseCompleted:
		return "✅"
	case events.EventTypePhaseFailed:
		return "🚫"
	case events.EventTypeGapsRanked:
		return "📋"
	case events.EventTypeDeltaDetected:
		return "🔀"
	case events.EventTypeDeltaReviewed:
		return "🔍"
	case events.EventTypeEscapeHatchTriggered:
		return "🚨"
	case events.EventTypeReadinessScored:
		return "🎯"
	case events.EventTypeStoryStateChanged:
		return "📌"
	}

	switch event.Severity {
	case events.SeverityInfo:
		return "ℹ️"
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	case events.SeverityCritical:
		return "🔥"
	default:
		return "•"
	}
}

// SeverityColor returns the color for an event severity
func SeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

// eventMetadata picks the few data fields worth showing for each event type
func eventMetadata(event *events.PipelineEvent) string {
	var fields []string

	switch event.Type {
	case events.EventTypePhaseCompleted, events.EventTypePhaseFailed:
		// phase: phase -> next | duration | error
		phase := getStringField(event.Data, "phase", event.Phase)
		if next := getStringField(event.Data, "next_phase", ""); next != "" {
			phase += " → " + next
		}
		duration := formatDurationNs(getIntField(event.Data, "duration", 0))
		errMsg := truncateString(getStringField(event.Data, "error", ""), 40)
		fields = []string{phase, duration, errMsg}

	case events.EventTypeGapsRanked:
		// gaps_ranked: total | blocking | merged | top score
		total := fmt.Sprintf("%d gaps", getIntField(event.Data, "total_gaps", 0))
		blocking := fmt.Sprintf("%d blocking", getIntField(event.Data, "blocking_count", 0))
		merged := fmt.Sprintf("%d merged", getIntField(event.Data, "merged_count", 0))
		top := fmt.Sprintf("top %d", getIntField(event.Data, "highest_score", 0))
		fields = []string{total, blocking, merged, top}

	case events.EventTypeDeltaDetected:
		// delta_detected: iterations | +added ~modified -removed | substantial
		iterations := fmt.Sprintf("v%d → v%d",
			getIntField(event.Data, "previous_iteration", 0),
			getIntField(event.Data, "current_iteration", 0))
		counts := fmt.Sprintf("+%d ~%d -%d",
			getIntField(event.Data, "added", 0),
			getIntField(event.Data, "modified", 0),
			getIntField(event.Data, "removed", 0))
		substantial := ""
		if getBoolField(event.Data, "substantial", false) {
			substantial = "substantial"
		}
		fields = []string{iterations, counts, substantial}

	case events.EventTypeDeltaReviewed:
		// delta_reviewed: passed | findings | critical | major
		passed := "✓ passed"
		if !getBoolField(event.Data, "passed", false) {
			passed = "✗ failed"
		}
		findings := fmt.Sprintf("%d findings", getIntField(event.Data, "findings", 0))
		critical := fmt.Sprintf("%d critical", getIntField(event.Data, "critical", 0))
		major := fmt.Sprintf("%d major", getIntField(event.Data, "major", 0))
		fields = []string{passed, findings, critical, major}

	case events.EventTypeEscapeHatchTriggered:
		// escape_hatch: triggers | priority | confidence
		triggers := truncateString(strings.Join(getStringsField(event.Data, "triggers"), ","), 30)
		priority := fmt.Sprintf("P%d", getIntField(event.Data, "priority", 0))
		confidence := fmt.Sprintf("%.0f%%", getFloatField(event.Data, "confidence", 0)*100)
		fields = []string{triggers, priority, confidence}

	case events.EventTypeReadinessScored:
		// readiness: score/threshold | ready | confidence | delta
		score := getIntField(event.Data, "score", 0)
		scoreText := fmt.Sprintf("%d/%d", score, getIntField(event.Data, "threshold", 0))
		ready := "not ready"
		if getBoolField(event.Data, "ready", false) {
			ready = "ready"
		}
		confidence := getStringField(event.Data, "confidence", "")
		change := ""
		if _, ok := event.Data["previous_score"]; ok {
			change = fmt.Sprintf("%+d", score-getIntField(event.Data, "previous_score", 0))
		}
		fields = []string{scoreText, ready, confidence, change}

	case events.EventTypeStoryStateChanged:
		// story_state: state | reason
		state := getStringField(event.Data, "state", "unknown")
		reason := truncateString(getStringField(event.Data, "reason", ""), 45)
		fields = []string{state, reason}

	default:
		if err, ok := event.Data["error"].(string); ok {
			fields = append(fields, truncateString(err, 50))
		}
	}

	return truncateString(joinFields(fields), 70)
}

func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getStringsField(data map[string]interface{}, key string) []string {
	switch val := data[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	switch val := data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

func getFloatField(data map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

// formatDurationNs formats a time.Duration that went through JSON as
// nanoseconds
func formatDurationNs(ns int) string {
	ms := ns / 1e6
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins the non-empty fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// truncateString truncates a string to maxLen, adding "..." if needed
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}
