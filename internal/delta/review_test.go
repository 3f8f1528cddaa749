package delta

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/steveyegge/elab/internal/types"
)

// reviewPair returns a previous and current story whose diff touches every
// review rule at least once
func reviewPair() (*types.Story, *types.Story) {
	prev := exportStory()
	prev.Constraints = []string{"Use existing export service", "No new database tables"}

	curr := cloneStory(prev)
	curr.AcceptanceCriteria = []types.AcceptanceCriterion{
		{ID: "AC-1", Description: "Export should be fast, exact limit TBD", Priority: 1, FromBaseline: true},
	}
	curr.NonGoals = nil
	curr.TestHints = append(curr.TestHints, types.TestHint{ID: "TH-2", Description: "Check CSV headers"})
	curr.KnownUnknowns = append(curr.KnownUnknowns, types.KnownUnknown{
		ID: "KU-2", Description: "Which encoding do spreadsheets expect", Impact: types.ImpactBlocking,
	})
	curr.Constraints = []string{"Use existing export service"}
	curr.Dependencies = []string{"flow-13"}
	return prev, curr
}

func reviewFixture(t *testing.T, cfg ReviewConfig) *ReviewResult {
	t.Helper()
	prev, curr := reviewPair()
	det := DetectDeltas(prev, curr, 1, 2, DefaultDetectConfig())
	if !det.Detected {
		t.Fatalf("detection failed: %s", det.Error)
	}
	res := ReviewDeltas(det, curr, cfg)
	if !res.Reviewed {
		t.Fatalf("review failed: %s", res.Error)
	}
	return res
}

func TestReviewDeltas_Rules(t *testing.T) {
	res := reviewFixture(t, DefaultReviewConfig())

	want := []struct {
		id       string
		section  Section
		item     string
		severity Severity
		category Category
	}{
		{"RF-1", SectionAcceptanceCriteria, "AC-1", SeverityMinor, CategoryClarity},
		{"RF-2", SectionAcceptanceCriteria, "AC-1", SeverityCritical, CategoryCompleteness},
		{"RF-3", SectionAcceptanceCriteria, "AC-2", SeverityMajor, CategoryScope},
		{"RF-4", SectionNonGoals, "NG-1", SeverityMinor, CategoryScope},
		{"RF-5", SectionTestHints, "TH-2", SeverityMinor, CategoryTestability},
		{"RF-6", SectionKnownUnknowns, "KU-2", SeverityCritical, CategoryRisk},
		{"RF-7", SectionConstraints, "item-1", SeverityMajor, CategoryConsistency},
	}
	if len(res.Findings) != len(want) {
		for _, f := range res.Findings {
			t.Logf("%s %s/%s %s: %s", f.ID, f.Section, f.ItemID, f.Severity, f.Issue)
		}
		t.Fatalf("expected %d findings, got %d", len(want), len(res.Findings))
	}
	for i, w := range want {
		f := res.Findings[i]
		if f.ID != w.id || f.Section != w.section || f.ItemID != w.item ||
			f.Severity != w.severity || f.Category != w.category {
			t.Errorf("finding %d = %s %s/%s %s %s, want %s %s/%s %s %s", i,
				f.ID, f.Section, f.ItemID, f.Severity, f.Category,
				w.id, w.section, w.item, w.severity, w.category)
		}
		if !f.DeltaRelated {
			t.Errorf("%s should be delta related", f.ID)
		}
	}

	if res.Findings[0].Issue != `AC contains vague language: "should"` {
		t.Errorf("vague issue = %q", res.Findings[0].Issue)
	}
	if res.Findings[1].Issue != `AC contains unresolved placeholder: "tbd"` {
		t.Errorf("placeholder issue = %q", res.Findings[1].Issue)
	}
	if res.Findings[2].ChangeType != ChangeRemoved || res.Findings[2].Context != "Export completes within 5 seconds" {
		t.Errorf("removed AC finding = %+v", res.Findings[2])
	}

	if res.BySeverity != (SeverityCounts{Critical: 2, Major: 2, Minor: 3}) {
		t.Errorf("BySeverity = %+v", res.BySeverity)
	}
	if res.Passed {
		t.Error("review with critical findings should fail")
	}

	wantReviewed := []Section{SectionAcceptanceCriteria, SectionNonGoals, SectionTestHints,
		SectionKnownUnknowns, SectionConstraints, SectionDependencies}
	if !slices.Equal(res.SectionsReviewed, wantReviewed) {
		t.Errorf("SectionsReviewed = %v", res.SectionsReviewed)
	}
	if !slices.Equal(res.SectionsSkipped, []Section{SectionAffectedFiles}) {
		t.Errorf("SectionsSkipped = %v", res.SectionsSkipped)
	}

	wantSummary := "Delta review for story flow-1: reviewed 6 section(s), skipped 1 unchanged section(s). " +
		"Found 7 issue(s): 2 critical, 2 major, 3 minor. Review FAILED."
	if res.Summary != wantSummary {
		t.Errorf("Summary =\n%q\nwant\n%q", res.Summary, wantSummary)
	}
}

func TestReviewDeltas_SectionSummaries(t *testing.T) {
	res := reviewFixture(t, DefaultReviewConfig())
	if len(res.SectionSummaries) != len(res.SectionsReviewed) {
		t.Fatalf("expected one summary per reviewed section, got %d", len(res.SectionSummaries))
	}

	ac := res.SectionSummaries[0]
	if ac.Section != SectionAcceptanceCriteria || ac.ItemsReviewed != 1 || ac.FindingsCount != 3 || ac.Passed {
		t.Errorf("acceptance criteria summary = %+v", ac)
	}
	if ac.Note != "3 finding(s) identified" {
		t.Errorf("Note = %q", ac.Note)
	}

	deps := res.SectionSummaries[len(res.SectionSummaries)-1]
	if deps.Section != SectionDependencies || !deps.Passed || deps.Note != "No issues found" {
		t.Errorf("dependencies summary = %+v", deps)
	}

	ng := res.SectionSummaries[1]
	if !ng.Passed || ng.FindingsCount != 1 {
		t.Errorf("minor-only section should pass, got %+v", ng)
	}
}

func TestReviewDeltas_Config(t *testing.T) {
	t.Run("min severity", func(t *testing.T) {
		cfg := DefaultReviewConfig()
		cfg.MinSeverity = SeverityMajor
		res := reviewFixture(t, cfg)
		if len(res.Findings) != 4 {
			t.Fatalf("expected 4 findings at major and above, got %d", len(res.Findings))
		}
		for i, f := range res.Findings {
			if f.Severity.Weight() < SeverityMajor.Weight() {
				t.Errorf("%s kept with severity %s", f.ID, f.Severity)
			}
			if want := "RF-" + string(rune('1'+i)); f.ID != want {
				t.Errorf("finding %d ID = %s, want %s", i, f.ID, want)
			}
		}
	})

	t.Run("pass policy", func(t *testing.T) {
		cfg := DefaultReviewConfig()
		cfg.FailOnCritical = false
		if res := reviewFixture(t, cfg); !res.Passed {
			t.Error("expected pass with FailOnCritical off")
		}
		cfg.FailOnMajor = true
		if res := reviewFixture(t, cfg); res.Passed {
			t.Error("expected failure with FailOnMajor on")
		}
	})

	t.Run("skip removed items", func(t *testing.T) {
		cfg := DefaultReviewConfig()
		cfg.ReviewRemoved = false
		res := reviewFixture(t, cfg)
		if len(res.Findings) != 4 {
			t.Fatalf("expected 4 findings without removals, got %d", len(res.Findings))
		}
		for _, f := range res.Findings {
			if f.ChangeType == ChangeRemoved {
				t.Errorf("%s reviews a removed item", f.ID)
			}
		}
	})

	t.Run("per section cap", func(t *testing.T) {
		cfg := DefaultReviewConfig()
		cfg.MaxFindingsPerSection = 1
		res := reviewFixture(t, cfg)
		if len(res.Findings) != 5 {
			t.Fatalf("expected one finding per section with rules, got %d", len(res.Findings))
		}
		if res.Findings[0].Severity != SeverityCritical {
			t.Errorf("cap should keep the most severe acceptance criteria finding, got %s", res.Findings[0].Severity)
		}
	})
}

func TestReviewSection_CapKeepsLateCriticalFinding(t *testing.T) {
	prev := exportStory()
	prev.AcceptanceCriteria = nil
	curr := cloneStory(prev)
	for i := 1; i <= 10; i++ {
		curr.AcceptanceCriteria = append(curr.AcceptanceCriteria, types.AcceptanceCriterion{
			ID: fmt.Sprintf("AC-%d", i), Description: "Export should work for the report",
		})
	}
	curr.AcceptanceCriteria = append(curr.AcceptanceCriteria, types.AcceptanceCriterion{
		ID: "AC-11", Description: "Row limit is TBD",
	})

	det := DetectDeltas(prev, curr, 1, 2, DefaultDetectConfig())
	if !det.Detected {
		t.Fatalf("detection failed: %s", det.Error)
	}

	cfg := DefaultReviewConfig()
	findings := ReviewSection(SectionAcceptanceCriteria, det.Changes, curr, cfg)
	if len(findings) != cfg.MaxFindingsPerSection {
		t.Fatalf("expected %d findings, got %d", cfg.MaxFindingsPerSection, len(findings))
	}
	last := findings[len(findings)-1]
	if last.Severity != SeverityCritical || last.ItemID != "AC-11" {
		t.Errorf("last finding = %s %s, want critical AC-11", last.ItemID, last.Severity)
	}

	res := ReviewDeltas(det, curr, cfg)
	if res.BySeverity.Critical != 1 {
		t.Errorf("critical findings = %d, want 1", res.BySeverity.Critical)
	}
	if res.Passed {
		t.Error("review with a critical placeholder should fail")
	}
}

func TestReviewSection_AcceptanceCriteria(t *testing.T) {
	story := exportStory()
	cfg := DefaultReviewConfig()
	added := func(content string) []SectionChange {
		return []SectionChange{{
			ItemID:     "AC-9",
			Section:    SectionAcceptanceCriteria,
			ChangeType: ChangeAdded,
			NewContent: &content,
		}}
	}

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"specific", "Export returns HTTP 200 with a CSV body", 0},
		{"word boundary", "Serve mayonnaise on request", 0},
		{"multi word vague", "Retry as needed", 1},
		{"overly long", strings.Repeat("a ", 151), 1},
		{"to be determined", "Format to be determined", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReviewSection(SectionAcceptanceCriteria, added(tt.content), story, cfg)
			if len(got) != tt.want {
				t.Errorf("ReviewSection(%q) returned %d findings, want %d", tt.content, len(got), tt.want)
			}
		})
	}

	if got := ReviewSection(SectionAffectedFiles, added("anything TBD"), story, cfg); got != nil {
		t.Errorf("affected files have no rules, got %+v", got)
	}
}

func TestReviewSection_KnownUnknownsUsesCurrentStory(t *testing.T) {
	story := exportStory()
	content := "Maximum report size"
	changes := []SectionChange{{
		ItemID:     "KU-1",
		Section:    SectionKnownUnknowns,
		ChangeType: ChangeAdded,
		NewContent: &content,
	}}
	if got := ReviewSection(SectionKnownUnknowns, changes, story, DefaultReviewConfig()); len(got) != 1 {
		t.Errorf("expected blocking unknown finding, got %d", len(got))
	}

	story.KnownUnknowns[0].Impact = types.ImpactLow
	if got := ReviewSection(SectionKnownUnknowns, changes, story, DefaultReviewConfig()); len(got) != 0 {
		t.Errorf("non-blocking unknown should pass, got %d findings", len(got))
	}
}

func TestReviewDeltas_NoChanges(t *testing.T) {
	story := exportStory()
	det := DetectDeltas(story, story, 1, 2, DefaultDetectConfig())
	res := ReviewDeltas(det, story, DefaultReviewConfig())

	if !res.Reviewed || !res.Passed {
		t.Fatalf("expected a passing review, got %+v", res)
	}
	if len(res.SectionsReviewed) != 0 || len(res.SectionsSkipped) != len(AllSections) {
		t.Errorf("reviewed %v, skipped %v", res.SectionsReviewed, res.SectionsSkipped)
	}
	if res.Summary != "Delta review for story flow-1: No changed sections to review." {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestReviewDeltas_Failures(t *testing.T) {
	story := exportStory()
	det := DetectDeltas(nil, story, 0, 1, DefaultDetectConfig())

	res := ReviewDeltas(nil, story, DefaultReviewConfig())
	if res.Reviewed || res.Passed {
		t.Error("review without detection should fail")
	}
	if res.Error != ErrNoDetection.Error() {
		t.Errorf("Error = %q", res.Error)
	}

	if _, err := ReviewDeltasStrict(det, nil, DefaultReviewConfig()); !errors.Is(err, ErrNoStory) {
		t.Errorf("expected ErrNoStory, got %v", err)
	}
	if _, err := ReviewDeltasStrict(nil, story, DefaultReviewConfig()); !errors.Is(err, ErrNoDetection) {
		t.Errorf("expected ErrNoDetection, got %v", err)
	}

	cfg := DefaultReviewConfig()
	cfg.MinSeverity = "blocker"
	if _, err := ReviewDeltasStrict(det, story, cfg); err == nil {
		t.Error("expected config validation error")
	}
}

func TestClipKeepsRunes(t *testing.T) {
	s := strings.Repeat("é", maxContextLength+5)
	got := clip(s)
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxContextLength {
		t.Errorf("clip kept %d runes, want %d", n, maxContextLength)
	}
	if clip("short") != "short" {
		t.Error("short content should be unchanged")
	}
}
