package elaboration

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/escapehatch"
)

// AggregatedFindings is the pass/fail rollup of one elaboration run
type AggregatedFindings struct {
	StoryID      string    `json:"story_id"`
	AggregatedAt time.Time `json:"aggregated_at"`

	TotalFindings int `json:"total_findings"`
	CriticalCount int `json:"critical_count"`
	MajorCount    int `json:"major_count"`
	MinorCount    int `json:"minor_count"`
	InfoCount     int `json:"info_count"`

	EscapeHatchTriggered     bool                      `json:"escape_hatch_triggered"`
	SectionsNeedingAttention []delta.Section           `json:"sections_needing_attention"`
	RecommendedStakeholders  []escapehatch.Stakeholder `json:"recommended_stakeholders"`

	Passed  bool   `json:"passed"`
	Summary string `json:"summary"`
}

// Aggregate merges the delta review and the escape hatch outcome into one
// verdict. Any input may be nil. The rollup fails on a critical finding, on
// a failed review, or when the escape hatch triggered; with no review at
// all it is empty and passing.
func Aggregate(storyID string, det *delta.DetectionResult, rev *delta.ReviewResult, hatch *escapehatch.Result) *AggregatedFindings {
	agg := &AggregatedFindings{
		StoryID:                  storyID,
		AggregatedAt:             time.Now(),
		SectionsNeedingAttention: []delta.Section{},
		RecommendedStakeholders:  []escapehatch.Stakeholder{},
	}

	seen := make(map[delta.Section]bool)
	attention := func(s delta.Section) {
		if !seen[s] {
			seen[s] = true
			agg.SectionsNeedingAttention = append(agg.SectionsNeedingAttention, s)
		}
	}

	reviewPassed := true
	if rev != nil {
		agg.TotalFindings = len(rev.Findings)
		agg.CriticalCount = rev.BySeverity.Critical
		agg.MajorCount = rev.BySeverity.Major
		agg.MinorCount = rev.BySeverity.Minor
		agg.InfoCount = rev.BySeverity.Info
		reviewPassed = rev.Passed
		for _, sum := range rev.SectionSummaries {
			if !sum.Passed {
				attention(sum.Section)
			}
		}
	}

	if hatch != nil {
		agg.EscapeHatchTriggered = hatch.Triggered
		if hatch.ReviewScope != nil {
			for _, s := range hatch.ReviewScope.Sections {
				attention(s)
			}
		}
		agg.RecommendedStakeholders = append(agg.RecommendedStakeholders, hatch.Stakeholders...)
	}

	agg.Passed = agg.CriticalCount == 0 && reviewPassed && !agg.EscapeHatchTriggered
	agg.Summary = aggregateSummary(agg, det)
	return agg
}

func aggregateSummary(agg *AggregatedFindings, det *delta.DetectionResult) string {
	parts := []string{fmt.Sprintf("Elaboration analysis for %s:", agg.StoryID)}
	if det != nil && det.Detected && det.Stats.TotalChanges > 0 {
		parts = append(parts, fmt.Sprintf("Detected %d change(s).", det.Stats.TotalChanges))
	} else {
		parts = append(parts, "No significant changes detected.")
	}
	if agg.TotalFindings > 0 {
		parts = append(parts, fmt.Sprintf("Found %d finding(s).", agg.TotalFindings))
	}
	if agg.EscapeHatchTriggered {
		parts = append(parts, "Escape hatch triggered - targeted review performed.")
	}
	if agg.Passed {
		parts = append(parts, "Elaboration PASSED.")
	} else {
		parts = append(parts, "Elaboration FAILED.")
	}
	return strings.Join(parts, " ")
}
