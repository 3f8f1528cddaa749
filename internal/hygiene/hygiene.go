package hygiene

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// ErrNoGaps is returned by ProcessStrict when no generator output was supplied
var ErrNoGaps = errors.New("no gap analyses provided for hygiene processing")

// Input is everything one hygiene run needs
type Input struct {
	StoryID string

	// Gaps from all generators, in generator order
	Gaps []types.Gap

	// Analyzed is false when no generator produced output at all. An
	// analyzed story with zero gaps is still valid input.
	Analyzed bool

	// Previous is the ranked output of the prior run for this story. It is
	// the only cross-run state; pass nil for a first run.
	Previous []types.RankedGap

	// Now overrides the timestamp used for history entries
	Now time.Time
}

// CategoryCounts tallies ranked gaps per category
type CategoryCounts map[types.GapCategory]int

// Result is the outcome of a hygiene run
type Result struct {
	StoryID        string            `json:"story_id"`
	AnalyzedAt     time.Time         `json:"analyzed_at"`
	RankedGaps     []types.RankedGap `json:"ranked_gaps"`
	DedupStats     DedupStats        `json:"dedup_stats"`
	CategoryCounts CategoryCounts    `json:"category_counts"`
	TotalGaps      int               `json:"total_gaps"`
	BlockingCount  int               `json:"mvp_blocking_count"`
	HighestScore   int               `json:"highest_score"`
	AverageScore   float64           `json:"average_score"`
	Summary        string            `json:"summary"`
	ActionItems    []string          `json:"action_items"`

	Analyzed bool     `json:"analyzed"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Count returns the number of ranked gaps in a category
func (r *Result) Count(category types.GapCategory) int {
	if r == nil {
		return 0
	}
	return r.CategoryCounts[category]
}

// Process deduplicates, scores, ranks and categorizes gaps, carrying history
// forward from in.Previous. It never returns an error: failures are reported
// through Result.Analyzed and Result.Error.
func Process(in Input, cfg Config) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{
				StoryID: in.StoryID,
				Error:   fmt.Sprintf("gap hygiene failed: %v", r),
			}
		}
	}()

	res, err := ProcessStrict(in, cfg)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNoGaps) {
			msg = "No gap analyses provided for hygiene processing"
		}
		return &Result{StoryID: in.StoryID, Error: msg}
	}
	return res
}

// ProcessStrict is Process for callers that want errors returned
func ProcessStrict(in Input, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hygiene config: %w", err)
	}
	if !in.Analyzed && len(in.Gaps) == 0 {
		return nil, ErrNoGaps
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var warnings []string
	var dedup DedupResult
	if cfg.EnableDeduplication {
		dedup = DeduplicateGaps(in.Gaps, cfg.SimilarityThreshold)
		if dedup.Stats.Merged > 0 {
			warnings = append(warnings, fmt.Sprintf("Merged %d similar gaps", dedup.Stats.Merged))
		}
	} else {
		dedup = DedupResult{Gaps: in.Gaps, MergedFrom: map[string][]string{}}
		dedup.Stats = DedupStats{TotalBefore: len(in.Gaps), TotalAfter: len(in.Gaps)}
	}

	ranked := RankGaps(dedup.Gaps, dedup.MergedFrom, cfg, now)

	if in.Previous != nil {
		idx := newPreviousIndex(in.Previous)
		for i, g := range ranked {
			if prior, ok := idx.lookup(g); ok {
				ranked[i] = carryForward(g, prior, now)
			}
		}
	}
	if !cfg.IncludeResolved {
		open := ranked[:0]
		for _, g := range ranked {
			if !g.Resolved {
				open = append(open, g)
			}
		}
		ranked = open
	}

	res := &Result{
		StoryID:        in.StoryID,
		AnalyzedAt:     now,
		RankedGaps:     ranked,
		DedupStats:     dedup.Stats,
		CategoryCounts: countCategories(ranked),
		TotalGaps:      len(ranked),
		Analyzed:       true,
		Warnings:       warnings,
	}
	res.BlockingCount = res.CategoryCounts[types.CategoryMVPBlocking]

	sum := 0
	for _, g := range ranked {
		sum += g.Score
		if g.Score > res.HighestScore {
			res.HighestScore = g.Score
		}
	}
	if len(ranked) > 0 {
		res.AverageScore = math.Round(float64(sum)/float64(len(ranked))*100) / 100
	}
	res.Summary = summarize(res)
	res.ActionItems = actionItems(ranked)
	return res, nil
}

// RankGaps turns deduplicated gaps into ranked gaps: IDs are assigned in
// input order, then gaps are sorted by score descending (stable), filtered by
// MinScore and capped at MaxGaps. The cap applies after the filter.
func RankGaps(gaps []types.Gap, mergedFrom map[string][]string, cfg Config, now time.Time) []types.RankedGap {
	ranked := make([]types.RankedGap, 0, len(gaps))
	for i, g := range gaps {
		likelihood := g.EffectiveLikelihood()
		score := CalculateGapScore(g.Severity, likelihood)

		notes := fmt.Sprintf("Created from %s gap %s", g.Source, g.ID)
		if absorbed := mergedFrom[g.ID]; len(absorbed) > 0 {
			notes += fmt.Sprintf(" (merged %s)", strings.Join(absorbed, ", "))
		}

		rg := types.RankedGap{
			ID:          fmt.Sprintf("RG-%03d", i+1),
			OriginalID:  g.ID,
			Source:      g.Source,
			Description: g.Description,
			Severity:    g.Severity,
			Likelihood:  likelihood,
			Score:       score,
			Category:    CategorizeGap(score, cfg),
			Suggestion:  g.Suggestion,
			RelatedACs:  g.RelatedACs,
			MergedFrom:  mergedFrom[g.ID],
		}
		ranked = append(ranked, recordHistoryAt(rg, types.ActionCreated, "", "", notes, now))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	filtered := ranked[:0]
	for _, g := range ranked {
		if g.Score >= cfg.MinScore {
			filtered = append(filtered, g)
		}
	}
	if len(filtered) > cfg.MaxGaps {
		filtered = filtered[:cfg.MaxGaps]
	}
	return filtered
}

func countCategories(ranked []types.RankedGap) CategoryCounts {
	counts := make(CategoryCounts, len(types.AllGapCategories))
	for _, c := range types.AllGapCategories {
		counts[c] = 0
	}
	for _, g := range ranked {
		counts[g.Category]++
	}
	return counts
}

func summarize(res *Result) string {
	if res.TotalGaps == 0 {
		return "No gaps identified across all analyses. Story appears well-defined."
	}

	parts := []string{fmt.Sprintf("Identified %d gap(s) across all analyses.", res.TotalGaps)}
	if n := res.CategoryCounts[types.CategoryMVPBlocking]; n > 0 {
		parts = append(parts, fmt.Sprintf("CRITICAL: %d gap(s) are MVP-blocking and require immediate attention.", n))
	}
	if n := res.CategoryCounts[types.CategoryMVPImportant]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d gap(s) are important for MVP.", n))
	}
	if n := res.CategoryCounts[types.CategoryFuture]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d gap(s) can be deferred to future iterations.", n))
	}
	if n := res.CategoryCounts[types.CategoryDeferred]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d gap(s) are low priority.", n))
	}
	return strings.Join(parts, " ")
}

// actionItems lists every blocking gap, tops up with important gaps to five,
// and caps the list at ten.
func actionItems(ranked []types.RankedGap) []string {
	var items []string
	var blocking, important []types.RankedGap
	for _, g := range ranked {
		switch g.Category {
		case types.CategoryMVPBlocking:
			blocking = append(blocking, g)
		case types.CategoryMVPImportant:
			important = append(important, g)
		}
	}

	for _, g := range blocking {
		items = append(items, formatActionItem(g))
	}
	if len(blocking) < 5 {
		room := 5 - len(blocking)
		if room > len(important) {
			room = len(important)
		}
		for _, g := range important[:room] {
			items = append(items, formatActionItem(g))
		}
	}
	if len(items) > 10 {
		items = items[:10]
	}
	return items
}

func formatActionItem(g types.RankedGap) string {
	if g.Suggestion != "" {
		return fmt.Sprintf("[%s] %s - %s", g.Source, g.Description, g.Suggestion)
	}
	return fmt.Sprintf("[%s] %s", g.Source, g.Description)
}
