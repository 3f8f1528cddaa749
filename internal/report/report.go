// Package report renders pipeline results for terminals. Colors come from
// fatih/color and switch off automatically when output is not a TTY.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/elaboration"
	"github.com/steveyegge/elab/internal/escapehatch"
	"github.com/steveyegge/elab/internal/pipeline"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n\n", cyan("=== "+title+" ==="))
}

func check(ok bool) string {
	if ok {
		return green("✓")
	}
	return red("✗")
}

// Analysis writes the ranked gaps and readiness verdict of an analysis
func Analysis(w io.Writer, an *pipeline.Analysis, maxGaps int) {
	header(w, "Analysis: "+an.StoryID)
	if h := an.Hygiene; h != nil {
		if h.Analyzed {
			fmt.Fprintf(w, "%s %s\n", yellow("Gaps:"), h.Summary)
			if h.DedupStats.Merged > 0 {
				fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("%d duplicate gap(s) merged", h.DedupStats.Merged)))
			}
			Gaps(w, h.RankedGaps, maxGaps)
		} else {
			fmt.Fprintf(w, "%s %s\n", red("✗ Gap hygiene failed:"), h.Error)
		}
	}
	if an.Readiness != nil {
		fmt.Fprintln(w)
		Readiness(w, an.Readiness, an.PreviousScore)
	}
	Warnings(w, an.Warnings)
}

// Gaps lists ranked gaps, highest score first, up to limit (0 means all)
func Gaps(w io.Writer, gaps []types.RankedGap, limit int) {
	if len(gaps) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No gaps"))
		return
	}
	shown := gaps
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, g := range shown {
		fmt.Fprintf(w, "  %s %s %s %s\n",
			categoryColor(g.Category)(fmt.Sprintf("%2d", g.Score)),
			gray(fmt.Sprintf("%-13s", g.Category)),
			bold(g.ID),
			truncateString(g.Description, 70))
		if g.Suggestion != "" {
			fmt.Fprintf(w, "     %s %s\n", gray("→"), truncateString(g.Suggestion, 70))
		}
	}
	if len(shown) < len(gaps) {
		fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("... and %d more", len(gaps)-len(shown))))
	}
}

func categoryColor(c types.GapCategory) func(a ...interface{}) string {
	switch c {
	case types.CategoryMVPBlocking:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.CategoryMVPImportant:
		return color.New(color.FgYellow).SprintFunc()
	case types.CategoryFuture:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return gray
	}
}

// Readiness writes a readiness verdict with its score breakdown and
// recommendations. previous is the last recorded score, if any.
func Readiness(w io.Writer, r *readiness.Result, previous *int) {
	if !r.Analyzed {
		fmt.Fprintf(w, "%s %s\n", red("✗ Readiness scoring failed:"), r.Error)
		return
	}

	verdict := red("NOT READY")
	if r.Ready {
		verdict = green("READY")
	}
	fmt.Fprintf(w, "%s %s %s (threshold %d, confidence %s)\n",
		yellow("Readiness:"), bold(fmt.Sprintf("%d/100", r.Score)), verdict, r.Threshold, r.Confidence)
	if previous != nil {
		fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("previous %d, change %+d", *previous, r.Score-*previous)))
	}

	for _, d := range r.Breakdown.Deductions {
		fmt.Fprintf(w, "  %s %s\n", red(fmt.Sprintf("%+4d", d.Points)), d.Reason)
	}
	for _, a := range r.Breakdown.Additions {
		fmt.Fprintf(w, "  %s %s\n", green(fmt.Sprintf("%+4d", a.Points)), a.Reason)
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("Recommendations:"))
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  %s %s %s\n",
				recommendationColor(rec.Severity)(fmt.Sprintf("[%s]", rec.Severity)),
				rec.Description,
				gray(fmt.Sprintf("(+%d)", rec.ExpectedPointsGain)))
		}
	}
	for _, u := range r.Unknowns {
		fmt.Fprintf(w, "  %s %s\n", yellow("?"), u)
	}
}

func recommendationColor(s readiness.RecommendationSeverity) func(a ...interface{}) string {
	switch s {
	case readiness.RecCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case readiness.RecImportant:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}

// Comparison writes a delta detection and, when present, its review. With
// showDiff set, modified items are followed by a unified diff.
func Comparison(w io.Writer, cmp *pipeline.Comparison, showDiff bool) {
	det := cmp.Detection
	header(w, fmt.Sprintf("Changes: %s v%d → v%d", det.StoryID, det.PreviousIteration, det.CurrentIteration))
	Detection(w, det, showDiff)
	if cmp.Review != nil {
		fmt.Fprintln(w)
		Review(w, cmp.Review)
	}
}

// Detection writes the changes found between two story versions
func Detection(w io.Writer, det *delta.DetectionResult, showDiff bool) {
	if !det.Detected {
		fmt.Fprintf(w, "%s %s\n", red("✗ Delta detection failed:"), det.Error)
		return
	}
	fmt.Fprintf(w, "%s %s\n", yellow("Delta:"), det.Summary)
	for _, c := range det.Changes {
		fmt.Fprintf(w, "  %s %-20s %s %s\n",
			changeGlyph(c.ChangeType), c.Section, bold(c.ItemID),
			gray(fmt.Sprintf("(significance %d)", c.Significance)))
		if !showDiff {
			continue
		}
		if diff := UnifiedDiff(c); diff != "" {
			writeDiff(w, diff)
		}
	}
}

func changeGlyph(ct delta.ChangeType) string {
	switch ct {
	case delta.ChangeAdded:
		return green("+")
	case delta.ChangeRemoved:
		return red("-")
	case delta.ChangeModified:
		return yellow("~")
	}
	return " "
}

// Review writes the findings of a delta review
func Review(w io.Writer, rev *delta.ReviewResult) {
	if !rev.Reviewed {
		fmt.Fprintf(w, "%s %s\n", red("✗ Delta review failed:"), rev.Error)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", yellow("Review:"), check(rev.Passed), rev.Summary)
	for _, f := range rev.Findings {
		fmt.Fprintf(w, "  %s %s %s\n",
			findingColor(f.Severity)(fmt.Sprintf("[%s]", f.Severity)),
			gray(fmt.Sprintf("%s/%s", f.Section, f.ItemID)),
			f.Issue)
		if f.Recommendation != "" {
			fmt.Fprintf(w, "     %s %s\n", gray("→"), f.Recommendation)
		}
	}
}

func findingColor(s delta.Severity) func(a ...interface{}) string {
	switch s {
	case delta.SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case delta.SeverityMajor:
		return color.New(color.FgRed).SprintFunc()
	case delta.SeverityMinor:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}

// Elaboration writes the outcome of an elaboration run
func Elaboration(w io.Writer, res *elaboration.Result) {
	header(w, "Elaboration: "+res.StoryID)

	fmt.Fprintf(w, "%s %s phase %s, v%d → v%d, %s\n",
		yellow("Run:"), check(res.Success), res.Phase,
		res.PreviousIteration, res.CurrentIteration, res.Duration.Round(1e6))
	fmt.Fprintf(w, "  %s\n", gray(res.RunID))

	if res.Detection != nil {
		fmt.Fprintln(w)
		Detection(w, res.Detection, false)
	}
	if res.Review != nil {
		fmt.Fprintln(w)
		Review(w, res.Review)
	}
	if res.EscapeHatch != nil && res.EscapeHatch.Triggered {
		fmt.Fprintln(w)
		EscapeHatch(w, res.EscapeHatch)
	}
	for _, f := range res.TargetedFindings {
		fmt.Fprintf(w, "  %s %s\n", yellow("▶"), f)
	}
	if agg := res.Aggregated; agg != nil {
		fmt.Fprintf(w, "\n%s %s %s\n", yellow("Verdict:"), check(agg.Passed), agg.Summary)
		if len(agg.SectionsNeedingAttention) > 0 {
			sections := make([]string, len(agg.SectionsNeedingAttention))
			for i, s := range agg.SectionsNeedingAttention {
				sections[i] = string(s)
			}
			fmt.Fprintf(w, "  Sections needing attention: %s\n", strings.Join(sections, ", "))
		}
	}
	if res.Readiness != nil {
		fmt.Fprintln(w)
		Readiness(w, res.Readiness, res.PreviousReadinessScore)
	}
	if state, reason := res.WorkflowState(); res.Phase == elaboration.PhaseComplete {
		fmt.Fprintf(w, "\n%s %s %s\n", yellow("State:"), bold(state), gray("("+reason+")"))
	}

	Warnings(w, res.Warnings)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "%s %s\n", red("Error:"), e)
	}
}

// EscapeHatch writes an opened escape hatch: its triggers, scope and the
// stakeholders to involve
func EscapeHatch(w io.Writer, h *escapehatch.Result) {
	fmt.Fprintf(w, "%s %s\n", red("🚨 Escape hatch:"), h.Summary)
	for _, t := range h.TriggersActivated {
		fmt.Fprintf(w, "  %s %s\n", red("▶"), t)
	}
	if s := h.ReviewScope; s != nil {
		scope := "targeted"
		if s.FullReview {
			scope = "full story"
		}
		fmt.Fprintf(w, "  Review: %s, priority %d (%s)\n", scope, s.Priority, s.Reason)
	}
	if len(h.Stakeholders) > 0 {
		names := make([]string, len(h.Stakeholders))
		for i, s := range h.Stakeholders {
			names[i] = string(s)
		}
		fmt.Fprintf(w, "  Stakeholders: %s\n", strings.Join(names, ", "))
	}
}

// History writes the stored state and run history of a story
func History(w io.Writer, h *pipeline.History) {
	header(w, "History: "+h.StoryID)

	if h.State != nil {
		fmt.Fprintf(w, "%s %s %s\n", yellow("State:"), bold(h.State.State),
			gray(fmt.Sprintf("(%s, %s)", h.State.Reason, h.State.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	} else {
		fmt.Fprintf(w, "%s %s\n", yellow("State:"), gray("never elaborated"))
	}
	if h.Readiness != nil {
		fmt.Fprintf(w, "%s %d/100 at %s\n", yellow("Latest readiness:"),
			h.Readiness.Score, h.Readiness.AnalyzedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "%s %d\n", yellow("Open gaps:"), len(h.RankedGaps))

	fmt.Fprintf(w, "\n%s\n", yellow("Runs:"))
	if len(h.Runs) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No elaboration runs"))
		return
	}
	for _, run := range h.Runs {
		score := "-"
		if run.NewReadinessScore != nil {
			score = fmt.Sprintf("%d", *run.NewReadinessScore)
		}
		fmt.Fprintf(w, "  %s %s v%d → v%d  score %s  %s\n",
			check(run.Success),
			run.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			run.PreviousIteration, run.CurrentIteration, score,
			gray(run.RunID))
	}
}

// Prune writes the outcome of an event retention pass
func Prune(w io.Writer, p *pipeline.PruneResult) {
	fmt.Fprintf(w, "%s Deleted %d event(s) (%d by age, %d by per-story limit)\n",
		green("✓"), p.Deleted(), p.DeletedByAge, p.DeletedByStoryLimit)
	if p.Vacuumed {
		fmt.Fprintf(w, "  %s\n", gray("Database vacuumed"))
	}
	fmt.Fprintf(w, "  %d event(s) remaining\n", p.Remaining)
	Warnings(w, p.Warnings)
}

// Warnings writes each warning on its own line
func Warnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("Warning:"), msg)
	}
}
