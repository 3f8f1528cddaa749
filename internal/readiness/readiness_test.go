package readiness

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elab/internal/types"
)

func rankedGap(id string, category types.GapCategory, score int) types.RankedGap {
	return types.RankedGap{ID: id, OriginalID: id, Category: category, Score: score}
}

func TestCalculate_BlockingGapWithStrongContext(t *testing.T) {
	res := Calculate(Input{
		Story:      &types.Story{ID: "flow-1", Title: "Export", Description: "Export reports as CSV"},
		RankedGaps: []types.RankedGap{rankedGap("RG-001", types.CategoryMVPBlocking, 25)},
		Baseline:   &types.Baseline{},
		Context:    &types.RetrievedContext{FilesLoaded: 4, TotalFilesFound: 6},
	}, DefaultConfig())
	require.True(t, res.Analyzed, res.Error)

	assert.Equal(t, 20, res.Breakdown.TotalDeductions)
	assert.Equal(t, 10, res.Breakdown.TotalAdditions)
	assert.Equal(t, 90, res.Score)
	assert.True(t, res.Ready)
	assert.Equal(t, 85, res.Threshold)
	assert.Equal(t, ConfidenceHigh, res.Confidence)

	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.Equal(t, "REC-001", rec.ID)
	assert.Equal(t, RecCritical, rec.Severity)
	assert.Equal(t, 20, rec.ExpectedPointsGain)
	assert.Equal(t, []string{"RG-001"}, rec.RelatedGapIDs)
	assert.Equal(t, []string{"REC-001"}, res.CriticalRecommendationIDs())

	assert.Equal(t, "Readiness score: 90/100. Story is READY for implementation. "+
		"1 MVP-blocking gap(s) require immediate attention. "+
		"Story is well-grounded in codebase reality.", res.Summary)
	assert.Empty(t, res.Warnings)
}

func TestCalculate_UnknownsWithoutGrounding(t *testing.T) {
	res := Calculate(Input{
		Story: &types.Story{ID: "flow-2", Title: "Export", Description: "Export format TBD"},
	}, DefaultConfig())
	require.True(t, res.Analyzed, res.Error)

	assert.Equal(t, 1, res.Factors.KnownUnknownsCount)
	assert.Equal(t, 3, res.Breakdown.TotalDeductions)
	assert.False(t, res.Factors.HasBaselineAlignment)
	assert.Equal(t, 97, res.Score)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, []string{`Description contains uncertainty: "tbd"`}, res.Unknowns)
	assert.Equal(t, []string{"No gap hygiene analysis available - scoring may be incomplete"}, res.Warnings)

	var ids []string
	for _, r := range res.Recommendations {
		ids = append(ids, r.ID+":"+string(r.Severity))
	}
	assert.Equal(t, []string{"REC-001:important", "REC-002:important", "REC-003:suggestion"}, ids)
	assert.Contains(t, res.Summary, "Story lacks grounding in codebase reality.")
}

func TestCalculate_ScoreClamped(t *testing.T) {
	var ranked []types.RankedGap
	for _, id := range []string{"RG-001", "RG-002", "RG-003", "RG-004", "RG-005", "RG-006"} {
		ranked = append(ranked, rankedGap(id, types.CategoryMVPBlocking, 25))
	}
	res := Calculate(Input{Story: &types.Story{ID: "flow-3", Title: "Big"}, RankedGaps: ranked}, DefaultConfig())
	require.True(t, res.Analyzed)

	assert.Equal(t, 120, res.Breakdown.TotalDeductions)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Ready)
	assert.Equal(t, ConfidenceMedium, res.Confidence)
}

func TestCalculate_ReadyMatchesThreshold(t *testing.T) {
	story := &types.Story{ID: "flow-4", Title: "Export"}
	ranked := []types.RankedGap{
		rankedGap("RG-001", types.CategoryMVPImportant, 15),
		rankedGap("RG-002", types.CategoryMVPImportant, 12),
		rankedGap("RG-003", types.CategoryMVPImportant, 12),
	}
	for threshold := 0; threshold <= 100; threshold += 5 {
		cfg := DefaultConfig()
		cfg.Threshold = threshold
		res := Calculate(Input{Story: story, RankedGaps: ranked}, cfg)
		require.True(t, res.Analyzed)
		assert.Equal(t, 85, res.Score)
		assert.Equal(t, res.Score >= threshold, res.Ready, "threshold %d", threshold)
	}
}

func TestCalculate_IgnoresResolvedGaps(t *testing.T) {
	resolved := rankedGap("RG-001", types.CategoryMVPBlocking, 25)
	resolved.Resolved = true
	res := Calculate(Input{
		Story:      &types.Story{ID: "flow-5", Title: "Export"},
		RankedGaps: []types.RankedGap{resolved, rankedGap("RG-002", types.CategoryFuture, 6)},
	}, DefaultConfig())
	require.True(t, res.Analyzed)

	assert.Zero(t, res.Factors.MVPBlockingCount)
	assert.Equal(t, 2, res.Factors.TotalGapsAnalyzed)
	assert.Equal(t, 100, res.Score)
}

func TestIdentifyUnknowns(t *testing.T) {
	story := &types.Story{
		ID:          "flow-6",
		Description: "Which format?? Nobody knows",
		AcceptanceCriteria: []types.AcceptanceCriterion{
			{ID: "AC-1", Description: "Limit is to be determined"},
			{ID: "AC-2", Description: "Returns the report"},
			{ID: "AC-3", Description: "Handles unknown columns and TBD rows"},
		},
		Constraints: []string{
			"Storage backend tbc after the platform review with the infrastructure team",
			"Use the existing queue",
		},
	}

	assert.Equal(t, []string{
		`Description contains uncertainty: "??"`,
		`AC AC-1 contains uncertainty: "to be determined"`,
		`AC AC-3 contains uncertainty: "tbd"`,
		`Constraint contains uncertainty: "Storage backend tbc after the platform review with..."`,
	}, IdentifyUnknowns(story))

	assert.Nil(t, IdentifyUnknowns(nil))
	assert.Empty(t, IdentifyUnknowns(&types.Story{Description: "Tbdx is a product name"}))
}

func TestAssessContext(t *testing.T) {
	strong, aligned, reasons := AssessContext(nil, &types.RetrievedContext{FilesLoaded: 2, TotalFilesFound: 3})
	assert.False(t, strong)
	assert.False(t, aligned)
	assert.Equal(t, []string{"Good file coverage: 67%"}, reasons)

	strong, aligned, reasons = AssessContext(&types.Baseline{WhatExists: []string{"CSV writer"}},
		&types.RetrievedContext{FilesLoaded: 3, TotalFilesFound: 10})
	assert.True(t, strong)
	assert.True(t, aligned)
	assert.Equal(t, []string{
		"Strong context: 3 relevant files loaded",
		"Baseline reality loaded and available",
		"Baseline contains relevant domain information",
	}, reasons)
}

func TestRecommend_OrderAndCap(t *testing.T) {
	f := Factors{MVPBlockingCount: 1, MVPImportantCount: 7, KnownUnknownsCount: 2}
	var ranked []types.RankedGap
	ranked = append(ranked, rankedGap("RG-001", types.CategoryMVPBlocking, 20))
	for _, id := range []string{"RG-002", "RG-003", "RG-004", "RG-005", "RG-006", "RG-007", "RG-008"} {
		ranked = append(ranked, rankedGap(id, types.CategoryMVPImportant, 12))
	}

	recs := Recommend(f, ranked, DefaultConfig())
	require.Len(t, recs, 5)
	var severities []RecommendationSeverity
	for _, r := range recs {
		severities = append(severities, r.Severity)
	}
	assert.Equal(t, []RecommendationSeverity{RecCritical, RecImportant, RecImportant, RecSuggestion, RecSuggestion}, severities)
	assert.Len(t, recs[4].RelatedGapIDs, 5)
	assert.Equal(t, 35, recs[4].ExpectedPointsGain)

	cfg := DefaultConfig()
	cfg.MaxRecommendations = 2
	assert.Len(t, Recommend(f, ranked, cfg), 2)
}

func TestDetermineConfidence(t *testing.T) {
	tests := []struct {
		name       string
		f          Factors
		hasHygiene bool
		want       Confidence
	}{
		{"nothing", Factors{}, false, ConfidenceLow},
		{"hygiene without gaps", Factors{}, true, ConfidenceLow},
		{"context and baseline", Factors{HasStrongContext: true, HasBaselineAlignment: true}, false, ConfidenceMedium},
		{"hygiene with gaps", Factors{TotalGapsAnalyzed: 2}, true, ConfidenceMedium},
		{"many gaps", Factors{TotalGapsAnalyzed: 5, HasBaselineAlignment: true}, true, ConfidenceHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineConfidence(tt.f, tt.hasHygiene))
		})
	}
}

func TestCalculate_NoStory(t *testing.T) {
	res := Calculate(Input{}, DefaultConfig())
	assert.False(t, res.Analyzed)
	assert.False(t, res.Ready)
	assert.Equal(t, "Story structure is required for readiness analysis", res.Error)

	_, err := CalculateStrict(Input{}, DefaultConfig())
	assert.True(t, errors.Is(err, ErrNoStory))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Threshold = 101
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.UnknownDeduction = 0
	assert.EqualError(t, cfg.Validate(), "unknown_deduction must be positive (got 0)")

	cfg = DefaultConfig()
	cfg.MaxRecommendations = 0
	_, err := CalculateStrict(Input{Story: &types.Story{ID: "flow-7"}}, cfg)
	assert.Error(t, err)
}

func TestIdentifyUnknowns_LongConstraintKeepsRunes(t *testing.T) {
	constraint := strings.Repeat("ü", 49) + "€ limit TBD"
	unknowns := IdentifyUnknowns(&types.Story{Constraints: []string{constraint}})
	require.Len(t, unknowns, 1)
	assert.True(t, utf8.ValidString(unknowns[0]))
	assert.Contains(t, unknowns[0], strings.Repeat("ü", 49)+"€...")
}
