package gaps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elab/internal/types"
)

func TestAnalyzeUX_DestructiveModal(t *testing.T) {
	story := &types.Story{
		ID:          "flow-ux",
		Title:       "Delete image from gallery modal",
		Description: "User clicks a button to remove the image.",
	}

	res := AnalyzeUX(story, nil)
	require.True(t, res.Analyzed)
	require.NotNil(t, res.UX)

	assert.Equal(t, []string{"A11Y-GAP-001", "A11Y-GAP-002", "USAB-GAP-001", "DPAT-GAP-001"}, gapIDs(res.Gaps))
	assert.Equal(t, UXBlocked, res.UX.Readiness)
	assert.Equal(t, UXSummary{Critical: 2, Major: 2, Total: 4}, res.UX.Summary)
	assert.Equal(t, 5, res.HighestSeverity)

	keyboard := res.UX.Accessibility[0]
	require.NotNil(t, keyboard.WCAG)
	assert.Equal(t, "2.1.1", keyboard.WCAG.ID)
	assert.Equal(t, 5, res.Gaps[0].Likelihood, "level A criteria are the most likely to bite")
	assert.Equal(t, 4, res.Gaps[0].Severity)

	assert.Equal(t, "Error prevention", res.UX.Usability[0].Heuristic)
	assert.Equal(t, "Modal Dialog Pattern", res.UX.DesignPattern[0].Pattern)
	assert.Len(t, res.Warnings, 1)
}

func TestAnalyzeUX_Ready(t *testing.T) {
	story := &types.Story{
		ID:          "flow-ux-ok",
		Title:       "Show account summary totals",
		Description: "Render the monthly totals for the signed-in customer.",
	}

	res := AnalyzeUX(story, &types.Baseline{})
	require.True(t, res.Analyzed)
	assert.Empty(t, res.Gaps)
	assert.Equal(t, UXReady, res.UX.Readiness)
	assert.Equal(t, "UX readiness: ready. 0 gap(s): 0 critical, 0 major, 0 minor, 0 suggestion(s).", res.Summary)
	assert.Empty(t, res.Warnings)
}

func TestAnalyzeUX_BaselineConstraints(t *testing.T) {
	story := &types.Story{
		ID:          "flow-ux-base",
		Title:       "Show account summary totals",
		Description: "Render the monthly totals for the signed-in customer.",
	}
	baseline := &types.Baseline{NoRework: []string{"Screen reader a11y labels", "Shared design system tokens"}}

	res := AnalyzeUX(story, baseline)
	require.Len(t, res.UX.Accessibility, 1)
	require.Len(t, res.UX.DesignPattern, 1)

	a11y := res.UX.Accessibility[0]
	assert.True(t, a11y.FromBaseline)
	assert.Equal(t, "Screen reader a11y labels", a11y.BaselineRef)
	assert.Equal(t, UXSeverityMinor, a11y.Severity)
	assert.Equal(t, UXSeveritySuggestion, res.UX.DesignPattern[0].Severity)
	assert.Equal(t, UXNeedsReview, res.UX.Readiness)
}

func TestUXGenerator_BlockingSeverity(t *testing.T) {
	story := &types.Story{
		ID:          "flow-ux-dd",
		Title:       "Currency picker",
		Description: "Add a dropdown to choose currency",
	}

	tests := []struct {
		name     string
		blocking UXSeverity
		want     UXReadiness
	}{
		{"critical only", UXSeverityCritical, UXNeedsReview},
		{"major blocks", UXSeverityMajor, UXBlocked},
		{"minor blocks", UXSeverityMinor, UXBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultUXConfig()
			cfg.BlockingSeverity = tt.blocking
			gen, err := NewUXGenerator(cfg)
			require.NoError(t, err)

			res, err := gen.Generate(context.Background(), story, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.UX.Readiness)
			assert.Equal(t, []string{"A11Y-GAP-001"}, gapIDs(res.Gaps))
		})
	}
}

func TestUXGenerator_Toggles(t *testing.T) {
	story := &types.Story{
		ID:          "flow-ux-wiz",
		Title:       "Onboarding wizard",
		Description: "A three step wizard shown in a modal with a list of plans.",
	}

	gen, err := NewUXGenerator(DefaultUXConfig())
	require.NoError(t, err)
	res, err := gen.Generate(context.Background(), story, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.UX.DesignPattern)
	assert.NotEmpty(t, res.UX.UserFlow)

	cfg := DefaultUXConfig()
	cfg.CheckDesignPatterns = false
	cfg.CheckUserFlows = false
	cfg.MaxGapsPerCategory = 1
	gen, err = NewUXGenerator(cfg)
	require.NoError(t, err)
	res, err = gen.Generate(context.Background(), story, nil)
	require.NoError(t, err)
	assert.Empty(t, res.UX.DesignPattern)
	assert.Empty(t, res.UX.UserFlow)
	assert.LessOrEqual(t, len(res.UX.Accessibility), 1)
}

func TestUXConfig_Validate(t *testing.T) {
	cfg := DefaultUXConfig()
	require.NoError(t, cfg.Validate())

	cfg.WCAGLevel = "AAAA"
	assert.Error(t, cfg.Validate())

	cfg = DefaultUXConfig()
	cfg.BlockingSeverity = "severe"
	assert.Error(t, cfg.Validate())

	cfg = DefaultUXConfig()
	cfg.MaxGapsPerCategory = 0
	assert.Error(t, cfg.Validate())
}

func TestAnalyzeUX_NoStory(t *testing.T) {
	res := AnalyzeUX(nil, nil)
	assert.False(t, res.Analyzed)
	assert.Equal(t, "No story structure provided for UX analysis", res.Error)
}
