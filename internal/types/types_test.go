package types

import (
	"strings"
	"testing"
	"time"
)

func validStory() Story {
	return Story{
		ID:    "flow-024",
		Title: "Export session transcripts",
		AcceptanceCriteria: []AcceptanceCriterion{
			{ID: "AC-1", Description: "Transcripts export as markdown"},
			{ID: "AC-2", Description: "Export finishes within 5 seconds", Priority: 2},
		},
	}
}

func TestStoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Story)
		wantErr string
	}{
		{"valid", func(s *Story) {}, ""},
		{"uppercase prefix", func(s *Story) { s.ID = "WISH-7" }, ""},
		{"bad id", func(s *Story) { s.ID = "flow024" }, "story id"},
		{"blank title", func(s *Story) { s.Title = "  " }, "title is required"},
		{"bad complexity", func(s *Story) { s.EstimatedComplexity = "huge" }, "estimated complexity"},
		{"ac without description", func(s *Story) { s.AcceptanceCriteria[0].Description = "" }, "acceptance criterion 0"},
		{"ac priority out of range", func(s *Story) { s.AcceptanceCriteria[1].Priority = 4 }, "priority must be between 1 and 3"},
		{"duplicate ac id", func(s *Story) { s.AcceptanceCriteria[1].ID = "AC-1" }, "duplicate acceptance criterion"},
		{"bad test hint category", func(s *Story) {
			s.TestHints = []TestHint{{ID: "TH-1", Description: "x", Category: "smoke"}}
		}, "test hint 0"},
		{"bad unknown impact", func(s *Story) {
			s.KnownUnknowns = []KnownUnknown{{ID: "KU-1", Description: "x", Impact: "fatal"}}
		}, "known unknown 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStory()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGapSourcePerspective(t *testing.T) {
	counts := make(map[Perspective]int)
	for _, src := range AllGapSources {
		p := src.Perspective()
		if p == "" {
			t.Errorf("source %s has no perspective", src)
		}
		if !strings.HasPrefix(string(src), string(p)+"_") {
			t.Errorf("source %s mapped to %s", src, p)
		}
		counts[p]++
	}
	if counts[PerspectiveAttack] != 2 {
		t.Errorf("attack sources = %d, want 2", counts[PerspectiveAttack])
	}

	if _, err := ParseGapSource("qa_coverage"); err != nil {
		t.Errorf("ParseGapSource(qa_coverage) failed: %v", err)
	}
	if _, err := ParseGapSource("security"); err == nil {
		t.Error("ParseGapSource(security) should fail")
	}
}

func TestGapCategoryRank(t *testing.T) {
	prev := 5
	for _, c := range AllGapCategories {
		if r := c.Rank(); r >= prev {
			t.Errorf("%s rank %d should be below %d", c, r, prev)
		} else {
			prev = r
		}
	}
	if GapCategory("urgent").IsValid() {
		t.Error("unknown category should be invalid")
	}
}

func TestGapValidate(t *testing.T) {
	g := Gap{ID: "qa-1", Source: SourceQAEdgeCase, Description: "Empty transcript", Severity: 3}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if g.EffectiveLikelihood() != DefaultLikelihood {
		t.Errorf("EffectiveLikelihood() = %d, want %d", g.EffectiveLikelihood(), DefaultLikelihood)
	}

	g.Likelihood = 6
	if err := g.Validate(); err == nil {
		t.Error("likelihood 6 should be rejected")
	}
	g.Likelihood = 0
	g.Severity = 0
	if err := g.Validate(); err == nil {
		t.Error("severity 0 should be rejected")
	}
}

func TestRankedGapWithHistoryDoesNotAlias(t *testing.T) {
	now := time.Now()
	base := RankedGap{ID: "g-1", History: []HistoryEntry{{Action: ActionCreated, Timestamp: now}}}

	a := base.WithHistory(HistoryEntry{Action: ActionRescored, Timestamp: now})
	b := base.WithHistory(HistoryEntry{Action: ActionResolved, Timestamp: now})

	if len(base.History) != 1 {
		t.Errorf("receiver history changed: %d entries", len(base.History))
	}
	if a.History[1].Action != ActionRescored || b.History[1].Action != ActionResolved {
		t.Errorf("histories share storage: %s / %s", a.History[1].Action, b.History[1].Action)
	}
	if !a.IsOpen() {
		t.Error("unresolved gap should be open")
	}
}
