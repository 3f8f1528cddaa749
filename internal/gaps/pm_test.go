package gaps

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elab/internal/types"
)

func thinStory() *types.Story {
	return &types.Story{
		ID:                  "flow-1",
		Title:               "Add",
		Description:         "x",
		EstimatedComplexity: types.ComplexityMedium,
		AcceptanceCriteria: []types.AcceptanceCriterion{
			{ID: "AC-1", Description: "works"},
		},
	}
}

func gapIDs(gaps []types.Gap) []string {
	ids := make([]string, 0, len(gaps))
	for _, g := range gaps {
		ids = append(ids, g.ID)
	}
	return ids
}

func TestAnalyzePM_ThinStory(t *testing.T) {
	res := AnalyzePM(thinStory(), nil)
	require.True(t, res.Analyzed)

	assert.Equal(t, []string{"SG-1", "SG-2", "SG-3", "REQ-1", "REQ-2", "REQ-3"}, gapIDs(res.Gaps))
	assert.Equal(t, 4, res.HighestSeverity)
	assert.Equal(t, "Found 6 gap(s) in: scope, requirements. Highest severity: 4/5.", res.Summary)
	assert.Equal(t, []string{"No baseline available - dependency and priority analysis may be incomplete"}, res.Warnings)

	// Vague AC gap points at the offending criterion
	assert.Equal(t, []string{"AC-1"}, res.Gaps[2].RelatedACs)

	// Missing requirements are rated more likely than incomplete ones
	assert.Equal(t, 3, res.Gaps[3].Likelihood)
	assert.Equal(t, 4, res.Gaps[4].Likelihood)
	assert.Equal(t, 4, res.Gaps[5].Likelihood)

	for _, g := range res.Gaps {
		assert.NoError(t, g.Validate(), g.ID)
		assert.Equal(t, types.PerspectivePM, g.Source.Perspective())
	}
}

func TestAnalyzePM_Dependencies(t *testing.T) {
	story := &types.Story{
		ID:                  "flow-2",
		Title:               "Sync invoices to the ledger",
		Description:         "Push invoices to the external ledger.",
		Domain:              "external-api",
		EstimatedComplexity: types.ComplexitySmall,
		AcceptanceCriteria: []types.AcceptanceCriterion{
			{ID: "AC-1", Description: "Invoices appear in the ledger within one hour"},
			{ID: "AC-2", Description: "Invalid invoices are reported with an error"},
		},
		Constraints:   []string{"Must not modify billing tables"},
		AffectedFiles: []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go"},
	}
	baseline := &types.Baseline{WhatInProgress: []string{"auth rewrite"}}

	res := AnalyzePM(story, baseline)
	require.True(t, res.Analyzed)
	assert.Empty(t, res.Warnings)

	var deps []types.Gap
	for _, g := range res.Gaps {
		if g.Source == types.SourcePMDependency {
			deps = append(deps, g)
		}
	}
	require.Len(t, deps, 4)
	assert.Equal(t, "No dependencies declared but baseline shows in-progress work", deps[0].Description)
	assert.Equal(t, 4, deps[1].Likelihood, "blocking constraint gaps are likely")
	assert.Equal(t, "Domain suggests external integration but no external dependencies declared", deps[2].Description)
	assert.Equal(t, "Many files affected but no internal dependencies identified", deps[3].Description)
}

func TestAnalyzePM_NoStory(t *testing.T) {
	res := AnalyzePM(nil, nil)
	assert.False(t, res.Analyzed)
	assert.Equal(t, "No story structure provided for analysis", res.Error)
	assert.Empty(t, res.Gaps)
}

func TestNewPMGenerator(t *testing.T) {
	_, err := NewPMGenerator(PMConfig{MinSeverity: 0})
	assert.Error(t, err)

	cfg := DefaultPMConfig()
	cfg.MinSeverity = 3
	cfg.IncludeSuggestions = false
	gen, err := NewPMGenerator(cfg)
	require.NoError(t, err)

	res, err := gen.Generate(context.Background(), thinStory(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SG-2", "REQ-1", "REQ-2"}, gapIDs(res.Gaps))
	for _, g := range res.Gaps {
		assert.Empty(t, g.Suggestion)
	}

	_, err = gen.Generate(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, ErrNoStory))
}

func TestAnalyzePM_Priority(t *testing.T) {
	story := &types.Story{
		ID:                  "flow-3",
		Title:               "Rebuild the billing dashboard",
		Description:         "Replace the dashboard.",
		Domain:              "billing",
		EstimatedComplexity: types.ComplexityLarge,
		Constraints:         []string{"Coordinate with in-progress: billing export"},
		AffectedFiles:       []string{"dashboard.go"},
		Dependencies:        []string{"metrics service"},
	}
	baseline := &types.Baseline{WhatInProgress: []string{"billing export", "billing alerts", "search"}}

	gen, err := NewPMGenerator(PMConfig{MinSeverity: 1, CheckPriority: true, IncludeSuggestions: true})
	require.NoError(t, err)
	res, err := gen.Generate(context.Background(), story, baseline)
	require.NoError(t, err)

	assert.Equal(t, []string{"PG-1", "PG-2", "PG-3"}, gapIDs(res.Gaps))
	assert.Equal(t, "1 coordination requirement(s) may affect resource planning", res.Gaps[0].Description)
	assert.Equal(t, "Multiple in-progress items in same domain may affect timeline", res.Gaps[1].Description)
	assert.Equal(t, "Large story without clear value indicator tags", res.Gaps[2].Description)
	assert.Equal(t, 2, res.Gaps[2].Likelihood)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "日本語", truncate("日本語のテキスト", 3))
	assert.Equal(t, "short", truncate("short", 10))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("ñ", 60), 50)))
}
