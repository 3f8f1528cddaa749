package gaps

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elab/internal/types"
)

func attackStory() *types.Story {
	return &types.Story{
		ID:          "flow-atk",
		Title:       "Always sync",
		Description: "Sync runs fast",
		AcceptanceCriteria: []types.AcceptanceCriterion{
			{ID: "AC-1", Description: "Data is never lost"},
		},
		Constraints:   []string{"Keep API stable"},
		Dependencies:  []string{"billing-service"},
		AffectedFiles: []string{"a.go"},
		Domain:        "backend",
	}
}

func TestExtractAssumptions(t *testing.T) {
	assumptions := ExtractAssumptions(attackStory())
	require.Len(t, assumptions, 7)

	want := []struct {
		source     AssumptionSource
		confidence Confidence
	}{
		{AssumptionFromTitle, ConfidenceLow},
		{AssumptionFromDescription, ConfidenceMedium},
		{AssumptionFromAC, ConfidenceLow},
		{AssumptionFromConstraints, ConfidenceMedium},
		{AssumptionFromDeps, ConfidenceMedium},
		{AssumptionFromFiles, ConfidenceLow},
		{AssumptionFromDomain, ConfidenceMedium},
	}
	for i, w := range want {
		assert.Equal(t, w.source, assumptions[i].Source, assumptions[i].ID)
		assert.Equal(t, w.confidence, assumptions[i].Confidence, assumptions[i].ID)
	}

	assert.Equal(t, "ASM-1", assumptions[0].ID)
	assert.Equal(t, `Assumes universal applicability: "Always sync"`, assumptions[0].Description)
	assert.Equal(t, `Assumes absolute negation: "Data is never lost"`, assumptions[2].Description)
	assert.Equal(t, "AC-1", assumptions[2].SourceRef)
	assert.Equal(t, "All 1 dependencies will be available and functional", assumptions[4].Description)
	assert.Equal(t, "API endpoints will maintain backward compatibility", assumptions[6].Description)
	assert.Equal(t, "Domain: backend", assumptions[6].SourceRef)
}

func TestRelevantPhrase(t *testing.T) {
	text := strings.Repeat("x", 30) + "always" + strings.Repeat("y", 40)
	want := "..." + strings.Repeat("x", 20) + "always" + strings.Repeat("y", 30) + "..."
	assert.Equal(t, want, relevantPhrase(text, []string{"always"}))

	assert.Equal(t, "short always", relevantPhrase("short always", []string{"always"}))
	assert.Equal(t, "no keyword", relevantPhrase("no keyword", []string{"always"}))
}

func TestChallengeAssumption(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want Validity
	}{
		{"universal", `Assumes universal applicability: "every request"`, PartiallyValid},
		{"security", `Assumes security property: "secure upload"`, Uncertain},
		{"ripple", "Changes will be contained to the 3 identified files", Uncertain},
		{"catch-all", "Workflow state will be preserved across node executions", Uncertain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ChallengeAssumption(Assumption{ID: "ASM-1", Description: tt.desc}, 2)
			assert.Equal(t, tt.want, c.Validity)
			assert.Equal(t, 2, c.Iteration)
			assert.NotEmpty(t, c.Challenge)
			assert.NotEmpty(t, c.Remediation)
		})
	}
}

func TestRateRisk(t *testing.T) {
	assert.Equal(t, 16, RateRisk(LikelihoodLikely, ImpactHigh))
	assert.Equal(t, 25, RateRisk(LikelihoodCertain, ImpactCritical))
	assert.Equal(t, 1, RateRisk(LikelihoodRare, ImpactNegligible))
}

func TestAnalyzeAttack(t *testing.T) {
	res := AnalyzeAttack(attackStory(), nil)
	require.True(t, res.Analyzed)
	require.NotNil(t, res.Attack)

	a := res.Attack
	assert.Equal(t, []string{"Limited assumptions from 7 to 5"}, res.Warnings)
	assert.Len(t, a.Assumptions, 7)
	require.Len(t, a.Challenges, 5, "repeated verdicts end the challenge loop")
	for _, c := range a.Challenges {
		assert.Equal(t, PartiallyValid, c.Validity, c.Assumption.ID)
		assert.Equal(t, 1, c.Iteration)
	}

	require.Len(t, a.EdgeCases, 5)
	assert.Empty(t, a.HighRiskEdgeCases())
	data := a.EdgeCases[2]
	assert.Equal(t, "ASM-3", data.RelatedAssumptionID)
	assert.Equal(t, EdgeData, data.Category)
	assert.Equal(t, ImpactHigh, data.Impact)
	assert.Equal(t, 12, data.RiskScore)
	assert.Equal(t, EdgePerformance, a.EdgeCases[1].Category)
	assert.Equal(t, EdgeIntegration, a.EdgeCases[3].Category)

	assert.Equal(t, 5, a.Summary.WeakAssumptions)
	assert.Equal(t, AttackCritical, a.Summary.Readiness)
	assert.Equal(t, `Attack analysis for "Always sync" identified 7 assumptions, of which 5 require attention. Identified 5 edge cases with manageable risk levels.`,
		a.Summary.Narrative)
	assert.Equal(t, a.Summary.Narrative, res.Summary)
	assert.Empty(t, a.KeyVulnerabilities)
	assert.Contains(t, a.Recommendations, "CRITICAL: Address high-risk edge cases before development begins")
	assert.Contains(t, a.Recommendations, "Define specific performance requirements and test them")

	require.Len(t, res.Gaps, 10)
	assert.Equal(t, "EDGE-ATK-1", res.Gaps[0].ID)
	assumptionGap := res.Gaps[5]
	assert.Equal(t, "ATK-ASM-1", assumptionGap.ID)
	assert.Equal(t, types.SourceAttackAssumption, assumptionGap.Source)
	assert.Equal(t, 3, assumptionGap.Severity)
	assert.True(t, strings.HasPrefix(assumptionGap.Description, "Challenged assumption: "))

	// ASM-3 was read from AC-1; gaps trace back to the criterion, not the assumption
	assert.Equal(t, []string{"AC-1"}, res.Gaps[2].RelatedACs)
	assert.Equal(t, "ATK-ASM-3", res.Gaps[7].ID)
	assert.Equal(t, []string{"AC-1"}, res.Gaps[7].RelatedACs)
	assert.Nil(t, res.Gaps[0].RelatedACs, "title assumptions relate to no AC")
	for _, g := range res.Gaps {
		for _, id := range g.RelatedACs {
			assert.True(t, strings.HasPrefix(id, "AC-"), "%s related to %s", g.ID, id)
		}
	}
}

func TestAttackGenerator_Filters(t *testing.T) {
	t.Run("min confidence", func(t *testing.T) {
		cfg := DefaultAttackConfig()
		cfg.MinConfidence = ConfidenceMedium
		gen, err := NewAttackGenerator(cfg)
		require.NoError(t, err)

		res, err := gen.Generate(context.Background(), attackStory(), nil)
		require.NoError(t, err)

		var ids []string
		for _, a := range res.Attack.Assumptions {
			ids = append(ids, a.ID)
		}
		assert.Equal(t, []string{"ASM-2", "ASM-4", "ASM-5", "ASM-7"}, ids)
		assert.Empty(t, res.Warnings)
		// The domain assumption falls through to the catch-all challenge
		assert.Equal(t, Uncertain, res.Attack.Challenges[3].Validity)
	})

	t.Run("max edge cases keeps highest risk", func(t *testing.T) {
		cfg := DefaultAttackConfig()
		cfg.MaxEdgeCases = 2
		gen, err := NewAttackGenerator(cfg)
		require.NoError(t, err)

		res, err := gen.Generate(context.Background(), attackStory(), nil)
		require.NoError(t, err)
		require.Len(t, res.Attack.EdgeCases, 2)
		assert.Equal(t, "EDGE-ATK-3", res.Attack.EdgeCases[0].ID)
		assert.Equal(t, "EDGE-ATK-1", res.Attack.EdgeCases[1].ID)
		assert.Contains(t, res.Warnings, "Limited edge cases from 5 to 2")
	})

	t.Run("min risk score", func(t *testing.T) {
		cfg := DefaultAttackConfig()
		cfg.MinRiskScore = 10
		gen, err := NewAttackGenerator(cfg)
		require.NoError(t, err)

		res, err := gen.Generate(context.Background(), attackStory(), nil)
		require.NoError(t, err)
		require.Len(t, res.Attack.EdgeCases, 1)
		assert.Equal(t, 12, res.Attack.EdgeCases[0].RiskScore)
	})
}

func TestAnalyzeAttack_ContentEdgeCases(t *testing.T) {
	story := &types.Story{
		ID:          "flow-atk-2",
		Title:       "Profile editor",
		Description: "Users edit their profile and we save the record via the api.",
	}

	res := AnalyzeAttack(story, nil)
	require.True(t, res.Analyzed)

	var categories []EdgeCaseCategory
	for _, ec := range res.Attack.EdgeCases {
		categories = append(categories, ec.Category)
	}
	assert.Equal(t, []EdgeCaseCategory{EdgeSecurity, EdgeConcurrency, EdgeIntegration, EdgeData}, categories)

	high := res.Attack.HighRiskEdgeCases()
	require.Len(t, high, 1)
	assert.Equal(t, "Malformed or malicious input data", high[0].Description)
	assert.Equal(t, AttackCritical, res.Attack.Summary.Readiness)
	assert.Contains(t, res.Attack.KeyVulnerabilities, "1 security-related edge case(s) identified")
}

func TestAttackConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultAttackConfig().Validate())

	cfg := DefaultAttackConfig()
	cfg.MaxIterationsPerAssumption = 11
	assert.Error(t, cfg.Validate())

	cfg = DefaultAttackConfig()
	cfg.MinRiskScore = 26
	assert.Error(t, cfg.Validate())

	cfg = DefaultAttackConfig()
	cfg.MinConfidence = "certain"
	assert.Error(t, cfg.Validate())
}
