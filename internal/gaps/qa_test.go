package gaps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elab/internal/types"
)

func TestAnalyzeACClarity(t *testing.T) {
	tests := []struct {
		name     string
		desc     string
		wantOK   bool
		category string
	}{
		{"vague term", "Page loads fast", true, "vague"},
		{"unmeasurable", "It works", true, "unmeasurable"},
		{"ambiguous", "The API returns 404 for unknown IDs and/or logs it", true, "ambiguous"},
		{"clear", "The endpoint returns 200 with the created record", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := analyzeACClarity(types.AcceptanceCriterion{ID: "AC-7", Description: tt.desc}, 6)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.category, f.Category)
			assert.Equal(t, "AC-CLARITY-7", f.ID)
			assert.Equal(t, "AC-7", f.ACID)
			assert.Equal(t, tt.desc, f.OriginalText)
		})
	}
}

func TestIdentifyEdgeCases(t *testing.T) {
	story := &types.Story{
		Description: "Users submit a form; the api stores items.",
		Domain:      "backend",
	}

	edges := identifyEdgeCases(story)
	require.Len(t, edges, 4)

	var categories []string
	for _, e := range edges {
		categories = append(categories, e.Category)
	}
	assert.Equal(t, []string{"null_empty", "boundary", "error", "error"}, categories)
	assert.Equal(t, "EDGE-4", edges[3].ID)
	assert.Equal(t, "Consider partial failure scenarios", edges[3].Description)
}

func TestIdentifyCoverageGaps_CodeFiles(t *testing.T) {
	story := &types.Story{AffectedFiles: []string{"README.md", "internal/x/handler.go"}}

	cov := identifyCoverageGaps(story)
	require.Len(t, cov, 2)
	assert.Equal(t, "unit", cov[0].Category)
	assert.Equal(t, "integration", cov[1].Category)
	assert.Equal(t, "COV-2", cov[1].ID)

	assert.Empty(t, identifyCoverageGaps(&types.Story{AffectedFiles: []string{"docs/guide.md"}}))
}

func TestTestabilityScore(t *testing.T) {
	report := &QAReport{
		Testability: []QAFinding{{Severity: LevelMedium}},
		EdgeCases:   []QAFinding{{Severity: LevelHigh}, {Severity: LevelMedium}},
		ACClarity:   []QAFinding{{Severity: LevelMedium}},
		Coverage:    []QAFinding{{Severity: LevelHigh}},
	}
	assert.Equal(t, 77, testabilityScore(report))

	many := make([]QAFinding, 20)
	for i := range many {
		many[i].Severity = LevelHigh
	}
	assert.Equal(t, 0, testabilityScore(&QAReport{Testability: many}))
}

func qaStory() *types.Story {
	return &types.Story{
		ID:          "flow-qa",
		Title:       "Store submitted items",
		Description: "Users submit a form; the api stores items.",
		Domain:      "backend",
		AcceptanceCriteria: []types.AcceptanceCriterion{
			{ID: "AC-1", Description: "Page loads fast"},
			{ID: "AC-2", Description: "It works"},
			{ID: "AC-3", Description: "The API returns 404 for unknown IDs and/or logs it"},
			{ID: "AC-4", Description: "The endpoint returns 200 with the created record"},
		},
	}
}

func TestAnalyzeQA(t *testing.T) {
	res := AnalyzeQA(qaStory(), nil)
	require.True(t, res.Analyzed)
	require.NotNil(t, res.QA)

	qa := res.QA
	assert.Len(t, qa.Testability, 1)
	assert.Len(t, qa.EdgeCases, 4)
	assert.Len(t, qa.ACClarity, 3)
	assert.Len(t, qa.Coverage, 3)
	assert.Equal(t, 51, qa.TestabilityScore)
	assert.Contains(t, res.Summary, "Testability score 51/100 (Needs improvement)")
	assert.Contains(t, qa.KeyRisks, "3 high-impact edge cases not addressed in acceptance criteria")
	assert.Contains(t, qa.KeyRisks, "External dependencies require mocking strategy to prevent flaky tests")
	assert.Contains(t, qa.Recommendations, "Ensure test plan includes: integration testing")

	// Testability first, coverage last
	assert.Equal(t, "TEST-1", res.Gaps[0].ID)
	assert.Equal(t, 4, res.Gaps[0].Likelihood, "external dependencies are likely to bite")
	assert.Equal(t, "COV-3", res.Gaps[len(res.Gaps)-1].ID)

	clarity := res.Gaps[5]
	assert.Equal(t, "AC-CLARITY-1", clarity.ID)
	assert.Equal(t, []string{"AC-1"}, clarity.RelatedACs)
	assert.Equal(t, 3, clarity.Severity)

	assert.Equal(t, []string{"No baseline reality available - some context-aware checks skipped"}, res.Warnings)
}

func TestQAGenerator_Limits(t *testing.T) {
	cfg := DefaultQAConfig()
	cfg.MaxEdgeCaseGaps = 1
	cfg.IncludeExamples = false
	cfg.IncludeRewrites = false
	cfg.MinTestabilitySeverity = LevelHigh
	gen, err := NewQAGenerator(cfg)
	require.NoError(t, err)

	res, err := gen.Generate(context.Background(), qaStory(), &types.Baseline{})
	require.NoError(t, err)

	assert.Empty(t, res.QA.Testability)
	require.Len(t, res.QA.EdgeCases, 1)
	assert.Empty(t, res.QA.EdgeCases[0].Suggestion)
	for _, f := range res.QA.ACClarity {
		assert.Empty(t, f.Suggestion)
	}
	assert.Equal(t, []string{"Truncated edge case gaps from 4 to 1"}, res.Warnings)
}

func TestQAGenerator_BaselineIsolation(t *testing.T) {
	story := qaStory()
	baseline := &types.Baseline{WhatInProgress: []string{"Backend queue migration", "Frontend redesign"}}

	res := AnalyzeQA(story, baseline)
	require.Len(t, res.QA.Testability, 2)
	assert.Equal(t, "isolation", res.QA.Testability[1].Category)
	assert.Equal(t, "In-progress work may affect test stability: Backend queue migration", res.QA.Testability[1].Description)
}

func TestQAConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultQAConfig().Validate())

	cfg := DefaultQAConfig()
	cfg.MaxCoverageGaps = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultQAConfig()
	cfg.MinTestabilitySeverity = "urgent"
	assert.Error(t, cfg.Validate())
}
