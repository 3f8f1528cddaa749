package gaps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/steveyegge/elab/internal/types"
)

// ErrNoStory is returned by the strict generators when no story is supplied
var ErrNoStory = errors.New("no story structure provided")

// Generator is one of the four independent gap analyzers.
// Implementations must be safe for concurrent use: they read the story and
// baseline and never write shared state.
type Generator interface {
	Name() string
	Perspective() types.Perspective
	Generate(ctx context.Context, story *types.Story, baseline *types.Baseline) (*Result, error)
}

// Result is the output of a single generator run
type Result struct {
	Perspective     types.Perspective `json:"perspective"`
	StoryID         string            `json:"story_id"`
	Gaps            []types.Gap       `json:"gaps"`
	HighestSeverity int               `json:"highest_severity"`
	Summary         string            `json:"summary"`

	// Perspective-specific reports; at most one is set
	UX     *UXReport       `json:"ux,omitempty"`
	QA     *QAReport       `json:"qa,omitempty"`
	Attack *AttackAnalysis `json:"attack,omitempty"`

	Analyzed bool     `json:"analyzed"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// CountBySource tallies the result's gaps per source
func (r *Result) CountBySource() map[types.GapSource]int {
	counts := make(map[types.GapSource]int)
	if r == nil {
		return counts
	}
	for _, g := range r.Gaps {
		counts[g.Source]++
	}
	return counts
}

func highestSeverity(gaps []types.Gap) int {
	highest := 0
	for _, g := range gaps {
		if g.Severity > highest {
			highest = g.Severity
		}
	}
	return highest
}

// safeGenerate runs a generator and converts errors and panics into a
// non-analyzed result. noStoryMsg is the message used for a missing story.
func safeGenerate(gen Generator, story *types.Story, baseline *types.Baseline, noStoryMsg string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failedResult(gen.Perspective(), story, fmt.Sprintf("%s analysis failed: %v", gen.Name(), r))
		}
	}()

	res, err := gen.Generate(context.Background(), story, baseline)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNoStory) {
			msg = noStoryMsg
		}
		return failedResult(gen.Perspective(), story, msg)
	}
	return res
}

func failedResult(p types.Perspective, story *types.Story, msg string) *Result {
	res := &Result{Perspective: p, Error: msg}
	if story != nil {
		res.StoryID = story.ID
	}
	return res
}

// containsAny reports whether s contains any of the substrings
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// storyText is the lowercased title and description used by keyword rules
func storyText(story *types.Story) string {
	return strings.ToLower(story.Title + " " + story.Description)
}

func acIDs(story *types.Story) []string {
	ids := make([]string, 0, len(story.AcceptanceCriteria))
	for _, ac := range story.AcceptanceCriteria {
		ids = append(ids, ac.ID)
	}
	return ids
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
