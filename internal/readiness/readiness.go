package readiness

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// Score bounds
const (
	MinScore  = 0
	MaxScore  = 100
	BaseScore = 100
)

// StrongContextFiles is the number of loaded context files that counts as
// strong context
const StrongContextFiles = 3

// ErrNoStory is returned by CalculateStrict without a story
var ErrNoStory = errors.New("story structure is required for readiness analysis")

// AdjustmentCategory groups score adjustments
type AdjustmentCategory string

const (
	AdjustBlocker  AdjustmentCategory = "blocker"
	AdjustGap      AdjustmentCategory = "gap"
	AdjustUnknown  AdjustmentCategory = "unknown"
	AdjustContext  AdjustmentCategory = "context"
	AdjustBaseline AdjustmentCategory = "baseline"
)

// Adjustment is one deduction (negative points) or addition (positive)
type Adjustment struct {
	Reason   string             `json:"reason"`
	Points   int                `json:"points"`
	Category AdjustmentCategory `json:"category"`
}

// Breakdown shows how the final score was reached
type Breakdown struct {
	BaseScore       int          `json:"base_score"`
	Deductions      []Adjustment `json:"deductions"`
	Additions       []Adjustment `json:"additions"`
	TotalDeductions int          `json:"total_deductions"`
	TotalAdditions  int          `json:"total_additions"`
	FinalScore      int          `json:"final_score"`
}

// Factors are the inputs the score is computed from
type Factors struct {
	MVPBlockingCount     int  `json:"mvp_blocking_count"`
	MVPImportantCount    int  `json:"mvp_important_count"`
	KnownUnknownsCount   int  `json:"known_unknowns_count"`
	HasStrongContext     bool `json:"has_strong_context"`
	HasBaselineAlignment bool `json:"has_baseline_alignment"`
	TotalGapsAnalyzed    int  `json:"total_gaps_analyzed"`
}

// RecommendationSeverity orders recommendations
type RecommendationSeverity string

const (
	RecCritical   RecommendationSeverity = "critical"
	RecImportant  RecommendationSeverity = "important"
	RecSuggestion RecommendationSeverity = "suggestion"
)

func (s RecommendationSeverity) order() int {
	switch s {
	case RecCritical:
		return 0
	case RecImportant:
		return 1
	}
	return 2
}

// Recommendation is one action that would raise the score
type Recommendation struct {
	ID                 string                 `json:"id"`
	Severity           RecommendationSeverity `json:"severity"`
	Description        string                 `json:"description"`
	ExpectedPointsGain int                    `json:"expected_points_gain"`
	RelatedGapIDs      []string               `json:"related_gap_ids"`
}

// Confidence is how much the score can be trusted given the inputs available
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Input is everything one readiness calculation needs. Only Story is
// required.
type Input struct {
	Story    *types.Story
	Baseline *types.Baseline
	Context  *types.RetrievedContext

	// RankedGaps is the hygiene output. nil means hygiene never ran, which
	// lowers confidence; an empty slice means it ran and found nothing.
	RankedGaps []types.RankedGap
}

// Result is the readiness verdict for a story
type Result struct {
	StoryID         string           `json:"story_id"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
	Score           int              `json:"score"`
	Breakdown       Breakdown        `json:"breakdown"`
	Ready           bool             `json:"ready"`
	Threshold       int              `json:"threshold"`
	Factors         Factors          `json:"factors"`
	Unknowns        []string         `json:"unknowns,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
	Confidence      Confidence       `json:"confidence"`

	Analyzed bool     `json:"analyzed"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// CriticalRecommendationIDs returns the IDs of critical recommendations
func (r *Result) CriticalRecommendationIDs() []string {
	if r == nil {
		return nil
	}
	var ids []string
	for _, rec := range r.Recommendations {
		if rec.Severity == RecCritical {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// uncertaintyPatterns mark text that is still undecided
var uncertaintyPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\btbd\b`), "tbd"},
	{regexp.MustCompile(`(?i)\bto be determined\b`), "to be determined"},
	{regexp.MustCompile(`(?i)\bunknown\b`), "unknown"},
	{regexp.MustCompile(`\?{2,}`), "??"},
	{regexp.MustCompile(`(?i)\btbc\b`), "tbc"},
}

func uncertainty(text string) (string, bool) {
	for _, p := range uncertaintyPatterns {
		if p.re.MatchString(text) {
			return p.label, true
		}
	}
	return "", false
}

// IdentifyUnknowns scans the description, acceptance criteria and
// constraints for TBD-like markers. Each text counts at most once.
func IdentifyUnknowns(story *types.Story) []string {
	if story == nil {
		return nil
	}
	var out []string
	if label, ok := uncertainty(story.Description); ok {
		out = append(out, fmt.Sprintf("Description contains uncertainty: %q", label))
	}
	for _, ac := range story.AcceptanceCriteria {
		if label, ok := uncertainty(ac.Description); ok {
			out = append(out, fmt.Sprintf("AC %s contains uncertainty: %q", ac.ID, label))
		}
	}
	for _, c := range story.Constraints {
		if _, ok := uncertainty(c); ok {
			if r := []rune(c); len(r) > 50 {
				c = string(r[:50]) + "..."
			}
			out = append(out, fmt.Sprintf("Constraint contains uncertainty: %q", c))
		}
	}
	return out
}

// CountOpenGaps counts unresolved ranked gaps in a category
func CountOpenGaps(ranked []types.RankedGap, category types.GapCategory) int {
	n := 0
	for _, g := range ranked {
		if g.Category == category && g.IsOpen() {
			n++
		}
	}
	return n
}

func openGapIDs(ranked []types.RankedGap, category types.GapCategory) []string {
	var ids []string
	for _, g := range ranked {
		if g.Category == category && g.IsOpen() {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// AssessContext reports whether the story is backed by strong retrieved
// context and by a baseline document, with reasons for each signal found
func AssessContext(baseline *types.Baseline, ctx *types.RetrievedContext) (strong, aligned bool, reasons []string) {
	if ctx != nil {
		if ctx.FilesLoaded >= StrongContextFiles {
			strong = true
			reasons = append(reasons, fmt.Sprintf("Strong context: %d relevant files loaded", ctx.FilesLoaded))
		}
		if ctx.TotalFilesFound > 0 && float64(ctx.FilesLoaded)/float64(ctx.TotalFilesFound) >= 0.5 {
			pct := math.Round(float64(ctx.FilesLoaded) / float64(ctx.TotalFilesFound) * 100)
			reasons = append(reasons, fmt.Sprintf("Good file coverage: %.0f%%", pct))
		}
	}
	if baseline != nil {
		aligned = true
		reasons = append(reasons, "Baseline reality loaded and available")
		if len(baseline.WhatExists) > 0 || len(baseline.WhatInProgress) > 0 {
			reasons = append(reasons, "Baseline contains relevant domain information")
		}
	}
	return strong, aligned, reasons
}

// CalculateScore applies the configured deductions and additions to the
// base score and clamps the result to [0, 100]
func CalculateScore(f Factors, cfg Config) Breakdown {
	b := Breakdown{BaseScore: BaseScore}
	if f.MVPBlockingCount > 0 {
		b.Deductions = append(b.Deductions, Adjustment{
			Reason:   fmt.Sprintf("%d MVP-blocking gap(s) identified", f.MVPBlockingCount),
			Points:   -f.MVPBlockingCount * cfg.MVPBlockingDeduction,
			Category: AdjustBlocker,
		})
	}
	if f.MVPImportantCount > 0 {
		b.Deductions = append(b.Deductions, Adjustment{
			Reason:   fmt.Sprintf("%d MVP-important gap(s) identified", f.MVPImportantCount),
			Points:   -f.MVPImportantCount * cfg.MVPImportantDeduction,
			Category: AdjustGap,
		})
	}
	if f.KnownUnknownsCount > 0 {
		b.Deductions = append(b.Deductions, Adjustment{
			Reason:   fmt.Sprintf("%d known unknown(s) in story definition", f.KnownUnknownsCount),
			Points:   -f.KnownUnknownsCount * cfg.UnknownDeduction,
			Category: AdjustUnknown,
		})
	}
	if f.HasStrongContext {
		b.Additions = append(b.Additions, Adjustment{
			Reason:   "Strong context alignment with codebase",
			Points:   cfg.ContextBonus,
			Category: AdjustContext,
		})
	}
	if f.HasBaselineAlignment {
		b.Additions = append(b.Additions, Adjustment{
			Reason:   "Baseline reality grounding available",
			Points:   cfg.BaselineBonus,
			Category: AdjustBaseline,
		})
	}

	for _, d := range b.Deductions {
		b.TotalDeductions -= d.Points
	}
	for _, a := range b.Additions {
		b.TotalAdditions += a.Points
	}
	b.FinalScore = max(MinScore, min(MaxScore, BaseScore-b.TotalDeductions+b.TotalAdditions))
	return b
}

// Recommend lists one recommendation per unmet factor, most severe first,
// capped at MaxRecommendations
func Recommend(f Factors, ranked []types.RankedGap, cfg Config) []Recommendation {
	var recs []Recommendation
	add := func(sev RecommendationSeverity, desc string, gain int, gapIDs []string) {
		if gapIDs == nil {
			gapIDs = []string{}
		}
		recs = append(recs, Recommendation{
			ID:                 fmt.Sprintf("REC-%03d", len(recs)+1),
			Severity:           sev,
			Description:        desc,
			ExpectedPointsGain: gain,
			RelatedGapIDs:      gapIDs,
		})
	}

	if f.MVPBlockingCount > 0 {
		add(RecCritical,
			fmt.Sprintf("Resolve %d MVP-blocking gap(s) before implementation", f.MVPBlockingCount),
			f.MVPBlockingCount*cfg.MVPBlockingDeduction,
			openGapIDs(ranked, types.CategoryMVPBlocking))
	}
	if f.KnownUnknownsCount > 0 {
		add(RecImportant,
			fmt.Sprintf("Clarify %d known unknown(s) in story definition", f.KnownUnknownsCount),
			f.KnownUnknownsCount*cfg.UnknownDeduction, nil)
	}
	if !f.HasStrongContext {
		add(RecImportant, "Retrieve more relevant codebase context for better grounding", cfg.ContextBonus, nil)
	}
	if !f.HasBaselineAlignment {
		add(RecSuggestion, "Load baseline reality for better domain understanding", cfg.BaselineBonus, nil)
	}
	if f.MVPImportantCount > 0 {
		ids := openGapIDs(ranked, types.CategoryMVPImportant)
		if len(ids) > 5 {
			ids = ids[:5]
		}
		add(RecSuggestion,
			fmt.Sprintf("Consider addressing %d MVP-important gap(s) to improve quality", f.MVPImportantCount),
			f.MVPImportantCount*cfg.MVPImportantDeduction, ids)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Severity.order() < recs[j].Severity.order()
	})
	if len(recs) > cfg.MaxRecommendations {
		recs = recs[:cfg.MaxRecommendations]
	}
	return recs
}

// DetermineConfidence scores the evidence behind a readiness result:
// hygiene output with gaps counts 2, strong context 1, baseline 1 and at
// least five analyzed gaps 1. High at 4 or more, medium at 2 or more.
func DetermineConfidence(f Factors, hasHygiene bool) Confidence {
	points := 0
	if hasHygiene && f.TotalGapsAnalyzed > 0 {
		points += 2
	}
	if f.HasStrongContext {
		points++
	}
	if f.HasBaselineAlignment {
		points++
	}
	if f.TotalGapsAnalyzed >= 5 {
		points++
	}
	switch {
	case points >= 4:
		return ConfidenceHigh
	case points >= 2:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func summarize(score int, ready bool, f Factors) string {
	parts := []string{fmt.Sprintf("Readiness score: %d/100.", score)}
	if ready {
		parts = append(parts, "Story is READY for implementation.")
	} else {
		parts = append(parts, "Story is NOT READY for implementation.")
	}
	if f.MVPBlockingCount > 0 {
		parts = append(parts, fmt.Sprintf("%d MVP-blocking gap(s) require immediate attention.", f.MVPBlockingCount))
	}
	if f.KnownUnknownsCount > 0 {
		parts = append(parts, fmt.Sprintf("%d known unknown(s) need clarification.", f.KnownUnknownsCount))
	}
	switch {
	case f.HasStrongContext && f.HasBaselineAlignment:
		parts = append(parts, "Story is well-grounded in codebase reality.")
	case !f.HasStrongContext && !f.HasBaselineAlignment:
		parts = append(parts, "Story lacks grounding in codebase reality.")
	}
	return strings.Join(parts, " ")
}

// CalculateStrict scores a story's readiness for implementation
func CalculateStrict(in Input, cfg Config) (*Result, error) {
	if in.Story == nil {
		return nil, ErrNoStory
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid readiness config: %w", err)
	}

	var warnings []string
	if len(in.RankedGaps) == 0 {
		warnings = append(warnings, "No gap hygiene analysis available - scoring may be incomplete")
	}

	unknowns := IdentifyUnknowns(in.Story)
	strong, aligned, _ := AssessContext(in.Baseline, in.Context)
	f := Factors{
		MVPBlockingCount:     CountOpenGaps(in.RankedGaps, types.CategoryMVPBlocking),
		MVPImportantCount:    CountOpenGaps(in.RankedGaps, types.CategoryMVPImportant),
		KnownUnknownsCount:   len(unknowns),
		HasStrongContext:     strong,
		HasBaselineAlignment: aligned,
		TotalGapsAnalyzed:    len(in.RankedGaps),
	}

	breakdown := CalculateScore(f, cfg)
	ready := breakdown.FinalScore >= cfg.Threshold
	return &Result{
		StoryID:         in.Story.ID,
		AnalyzedAt:      time.Now(),
		Score:           breakdown.FinalScore,
		Breakdown:       breakdown,
		Ready:           ready,
		Threshold:       cfg.Threshold,
		Factors:         f,
		Unknowns:        unknowns,
		Recommendations: Recommend(f, in.RankedGaps, cfg),
		Summary:         summarize(breakdown.FinalScore, ready, f),
		Confidence:      DetermineConfidence(f, in.RankedGaps != nil),
		Analyzed:        true,
		Warnings:        warnings,
	}, nil
}

// Calculate is CalculateStrict that never returns an error: failures are
// reported through Analyzed and Error, and a failed result is never ready.
func Calculate(in Input, cfg Config) (res *Result) {
	failed := func(msg string) *Result {
		r := &Result{AnalyzedAt: time.Now(), Threshold: cfg.Threshold, Error: msg}
		if in.Story != nil {
			r.StoryID = in.Story.ID
		}
		return r
	}
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Sprintf("readiness analysis failed: %v", r))
		}
	}()

	res, err := CalculateStrict(in, cfg)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNoStory) {
			msg = "Story structure is required for readiness analysis"
		}
		return failed(msg)
	}
	return res
}
