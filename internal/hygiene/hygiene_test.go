package hygiene

import (
	"reflect"
	"testing"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

func TestCalculateGapScoreBounds(t *testing.T) {
	for sev := 1; sev <= 5; sev++ {
		for lik := 1; lik <= 5; lik++ {
			score := CalculateGapScore(sev, lik)
			if score < MinScore || score > MaxScore {
				t.Errorf("CalculateGapScore(%d, %d) = %d, want within [1, 25]", sev, lik, score)
			}
			if score != sev*lik {
				t.Errorf("CalculateGapScore(%d, %d) = %d, want %d", sev, lik, score, sev*lik)
			}
		}
	}

	if got := CalculateGapScore(0, 3); got != 1 {
		t.Errorf("CalculateGapScore(0, 3) = %d, want clamp to 1", got)
	}
	if got := CalculateGapScore(9, 9); got != 25 {
		t.Errorf("CalculateGapScore(9, 9) = %d, want clamp to 25", got)
	}
}

func TestCategorizeGapMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	prev := 0
	for score := 1; score <= 25; score++ {
		rank := CategorizeGap(score, cfg).Rank()
		if rank < prev {
			t.Fatalf("category rank decreased at score %d: %d < %d", score, rank, prev)
		}
		prev = rank
	}

	tests := []struct {
		score int
		want  types.GapCategory
	}{
		{25, types.CategoryMVPBlocking},
		{20, types.CategoryMVPBlocking},
		{19, types.CategoryMVPImportant},
		{12, types.CategoryMVPImportant},
		{11, types.CategoryFuture},
		{5, types.CategoryFuture},
		{4, types.CategoryDeferred},
		{1, types.CategoryDeferred},
	}
	for _, tt := range tests {
		if got := CategorizeGap(tt.score, cfg); got != tt.want {
			t.Errorf("CategorizeGap(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1.0},
		{"only short words", "a an of", "to be", 1.0},
		{"one empty", "missing keyboard support", "", 0.0},
		{"identical", "Missing keyboard support", "missing KEYBOARD support", 1.0},
		{"disjoint", "keyboard focus trap", "database schema migration", 0.0},
		{"half overlap", "alpha beta gamma", "alpha beta delta", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDeduplicateMergesNearDuplicates(t *testing.T) {
	gaps := []types.Gap{
		{
			ID: "A11Y-GAP-001", Source: types.SourceUXAccessibility,
			Description: "story involves interactive elements but does not mention keyboard accessibility support today",
			Severity:    3, Likelihood: 4, Suggestion: "Add keyboard AC", RelatedACs: []string{"AC-1"},
		},
		{
			ID: "EDGE-1", Source: types.SourceQAEdgeCase,
			Description: "story involves interactive elements but does not mention keyboard accessibility support anywhere",
			Severity:    5, Likelihood: 2, Suggestion: "Test tab order", RelatedACs: []string{"AC-1", "AC-2"},
		},
	}

	res := DeduplicateGaps(gaps, 0.6)
	if len(res.Gaps) != 1 {
		t.Fatalf("expected 1 gap after dedup, got %d", len(res.Gaps))
	}
	merged := res.Gaps[0]
	if merged.ID != "A11Y-GAP-001" {
		t.Errorf("survivor should be the earlier gap, got %s", merged.ID)
	}
	if merged.Severity != 5 {
		t.Errorf("severity = %d, want max 5", merged.Severity)
	}
	if merged.Likelihood != 4 {
		t.Errorf("likelihood = %d, want max 4", merged.Likelihood)
	}
	if !reflect.DeepEqual(merged.RelatedACs, []string{"AC-1", "AC-2"}) {
		t.Errorf("related ACs = %v, want union", merged.RelatedACs)
	}
	if merged.Suggestion != "Add keyboard AC; Test tab order" {
		t.Errorf("suggestion = %q", merged.Suggestion)
	}
	if !reflect.DeepEqual(res.MergedFrom["A11Y-GAP-001"], []string{"EDGE-1"}) {
		t.Errorf("merged from = %v", res.MergedFrom)
	}
	if res.Stats.TotalBefore != 2 || res.Stats.TotalAfter != 1 || res.Stats.Merged != 1 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}

	// Input must not be modified
	if gaps[0].Severity != 3 {
		t.Errorf("input gap was mutated: severity %d", gaps[0].Severity)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	gaps := []types.Gap{
		{ID: "G1", Source: types.SourcePMScope, Description: "no affected files identified scope boundaries unclear", Severity: 3},
		{ID: "G2", Source: types.SourcePMScope, Description: "no affected files identified scope boundaries vague", Severity: 2},
		{ID: "G3", Source: types.SourceQACoverage, Description: "security related changes require security testing", Severity: 4},
		{ID: "G4", Source: types.SourceQACoverage, Description: "ui changes should include accessibility testing", Severity: 3},
		{ID: "G5", Source: types.SourceAttackEdgeCase, Description: "security related changes require security testing", Severity: 5},
	}

	for _, threshold := range []float64{0.3, 0.5, 0.7, 0.9, 1.0} {
		once := DeduplicateGaps(gaps, threshold)
		twice := DeduplicateGaps(once.Gaps, threshold)
		if len(twice.Gaps) != len(once.Gaps) {
			t.Errorf("threshold %.1f: second pass changed count %d -> %d",
				threshold, len(once.Gaps), len(twice.Gaps))
		}
		if len(once.Gaps) > len(gaps) {
			t.Errorf("threshold %.1f: dedup increased gap count", threshold)
		}
	}
}

func TestRecordHistoryAppendOnly(t *testing.T) {
	gap := types.RankedGap{ID: "RG-001", OriginalID: "SG-1"}
	gap = RecordHistory(gap, types.ActionCreated, "", "", "first")
	gap = RecordHistory(gap, types.ActionRescored, "9", "12", "")

	before := append([]types.HistoryEntry(nil), gap.History...)
	next := RecordHistory(gap, types.ActionAcknowledged, "", "", "seen")

	if len(next.History) != len(gap.History)+1 {
		t.Fatalf("history length = %d, want %d", len(next.History), len(gap.History)+1)
	}
	if !reflect.DeepEqual(next.History[:len(before)], before) {
		t.Error("prior history entries changed")
	}
	if !reflect.DeepEqual(gap.History, before) {
		t.Error("original gap history was mutated")
	}
	if next.History[len(next.History)-1].Action != types.ActionAcknowledged {
		t.Errorf("last action = %s", next.History[len(next.History)-1].Action)
	}
}

func TestProcessMergesSimilarGaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0.6

	res := Process(Input{
		StoryID:  "flow-1",
		Analyzed: true,
		Gaps: []types.Gap{
			{ID: "SG-1", Source: types.SourcePMScope, Description: "one two three four five six seven eight nine ten", Severity: 2, Likelihood: 3},
			{ID: "REQ-1", Source: types.SourcePMRequirement, Description: "one two three four five six seven eight nine eleven", Severity: 4, Likelihood: 3},
		},
	}, cfg)

	if !res.Analyzed {
		t.Fatalf("expected analyzed result, got error %q", res.Error)
	}
	if len(res.RankedGaps) != 1 {
		t.Fatalf("expected 1 ranked gap, got %d", len(res.RankedGaps))
	}
	rg := res.RankedGaps[0]
	if rg.Severity != 4 {
		t.Errorf("severity = %d, want 4", rg.Severity)
	}
	if !reflect.DeepEqual(rg.MergedFrom, []string{"REQ-1"}) {
		t.Errorf("merged from = %v, want [REQ-1]", rg.MergedFrom)
	}
	if len(rg.History) != 1 || rg.History[0].Action != types.ActionCreated {
		t.Errorf("expected single created entry, got %+v", rg.History)
	}
}

func TestProcessRanking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableDeduplication = false
	cfg.MinScore = 5
	cfg.MaxGaps = 2

	res := Process(Input{
		StoryID:  "flow-2",
		Analyzed: true,
		Gaps: []types.Gap{
			{ID: "a", Source: types.SourcePMScope, Description: "low", Severity: 1, Likelihood: 2},
			{ID: "b", Source: types.SourcePMScope, Description: "mid", Severity: 3, Likelihood: 3},
			{ID: "c", Source: types.SourcePMScope, Description: "top", Severity: 5, Likelihood: 5},
			{ID: "d", Source: types.SourcePMScope, Description: "high", Severity: 4, Likelihood: 4},
		},
	}, cfg)

	if len(res.RankedGaps) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(res.RankedGaps))
	}
	if res.RankedGaps[0].OriginalID != "c" || res.RankedGaps[1].OriginalID != "d" {
		t.Errorf("unexpected order: %s, %s", res.RankedGaps[0].OriginalID, res.RankedGaps[1].OriginalID)
	}
	if res.RankedGaps[0].ID != "RG-003" {
		t.Errorf("ranked id = %s, want RG-003 (assigned in input order)", res.RankedGaps[0].ID)
	}
	if res.BlockingCount != 1 || res.Count(types.CategoryMVPImportant) != 1 {
		t.Errorf("unexpected counts: %+v", res.CategoryCounts)
	}
	if res.HighestScore != 25 || res.AverageScore != 20.5 {
		t.Errorf("highest = %d average = %v", res.HighestScore, res.AverageScore)
	}
	if len(res.ActionItems) != 2 {
		t.Errorf("expected 2 action items, got %v", res.ActionItems)
	}
}

func TestProcessCarriesHistoryForward(t *testing.T) {
	cfg := DefaultConfig()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	gaps := []types.Gap{
		{ID: "SG-1", Source: types.SourcePMScope, Description: "No affected files identified", Severity: 3, Likelihood: 3},
		{ID: "EDGE-1", Source: types.SourceQAEdgeCase, Description: "Consider empty/null input handling", Severity: 4, Likelihood: 3},
	}
	run1 := Process(Input{StoryID: "flow-3", Gaps: gaps, Analyzed: true, Now: first}, cfg)
	if !run1.Analyzed {
		t.Fatalf("run1 failed: %s", run1.Error)
	}

	// Mark the edge case resolved and bump the scope gap's severity
	prev := append([]types.RankedGap(nil), run1.RankedGaps...)
	for i := range prev {
		if prev[i].OriginalID == "EDGE-1" {
			prev[i] = RecordHistory(prev[i], types.ActionResolved, "", "", "handled")
			prev[i].Resolved = true
		}
	}
	gaps[0].Severity = 5

	run2 := Process(Input{StoryID: "flow-3", Gaps: gaps, Analyzed: true, Previous: prev, Now: second}, cfg)
	if len(run2.RankedGaps) != 1 {
		t.Fatalf("resolved gap should be filtered, got %d gaps", len(run2.RankedGaps))
	}
	rg := run2.RankedGaps[0]
	if rg.OriginalID != "SG-1" {
		t.Fatalf("unexpected survivor %s", rg.OriginalID)
	}
	if len(rg.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(rg.History))
	}
	if rg.History[0].Timestamp != first {
		t.Error("first history entry was not carried forward")
	}
	last := rg.History[1]
	if last.Action != types.ActionRecategorized || last.PreviousValue != "future" || last.NewValue != "mvp_important" {
		t.Errorf("unexpected last entry: %+v", last)
	}

	cfg.IncludeResolved = true
	run3 := Process(Input{StoryID: "flow-3", Gaps: gaps, Analyzed: true, Previous: prev, Now: second}, cfg)
	if len(run3.RankedGaps) != 2 {
		t.Fatalf("IncludeResolved should keep resolved gaps, got %d", len(run3.RankedGaps))
	}
	for _, g := range run3.RankedGaps {
		if g.OriginalID == "EDGE-1" {
			if !g.Resolved {
				t.Error("resolved flag not carried forward")
			}
			if len(g.History) != 3 || g.History[2].Action != types.ActionRescored {
				t.Errorf("unexpected history: %+v", g.History)
			}
		}
	}
}

func TestProcessWithoutInput(t *testing.T) {
	res := Process(Input{StoryID: "flow-4"}, DefaultConfig())
	if res.Analyzed {
		t.Fatal("expected not analyzed")
	}
	if res.Error != "No gap analyses provided for hygiene processing" {
		t.Errorf("unexpected error: %q", res.Error)
	}

	if _, err := ProcessStrict(Input{StoryID: "flow-4"}, DefaultConfig()); err != ErrNoGaps {
		t.Errorf("ProcessStrict error = %v, want ErrNoGaps", err)
	}

	empty := Process(Input{StoryID: "flow-4", Analyzed: true}, DefaultConfig())
	if !empty.Analyzed || empty.TotalGaps != 0 {
		t.Errorf("analyzed story with no gaps should succeed: %+v", empty)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"threshold above 1", func(c *Config) { c.SimilarityThreshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.SimilarityThreshold = -0.1 }, true},
		{"zero max gaps", func(c *Config) { c.MaxGaps = 0 }, true},
		{"min score above 25", func(c *Config) { c.MinScore = 26 }, true},
		{"thresholds out of order", func(c *Config) { c.ImportantThreshold = 21 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateReportsFirstBadThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockingThreshold = 0
	cfg.ImportantThreshold = 30
	cfg.FutureThreshold = -1

	want := "blocking_threshold must be between 1 and 25 (got 0)"
	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		if err == nil || err.Error() != want {
			t.Fatalf("Validate() = %v, want %q", err, want)
		}
	}
}
