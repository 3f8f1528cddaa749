package gaps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// WCAGLevel is a WCAG conformance level
type WCAGLevel string

const (
	WCAGLevelA   WCAGLevel = "A"
	WCAGLevelAA  WCAGLevel = "AA"
	WCAGLevelAAA WCAGLevel = "AAA"
)

// IsValid checks if the level value is valid
func (l WCAGLevel) IsValid() bool {
	return l.rank() > 0
}

func (l WCAGLevel) rank() int {
	switch l {
	case WCAGLevelA:
		return 1
	case WCAGLevelAA:
		return 2
	case WCAGLevelAAA:
		return 3
	}
	return 0
}

// WCAGCriterion is a WCAG success criterion reference
type WCAGCriterion struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Level WCAGLevel `json:"level"`
}

// WCAG criteria referenced by the accessibility checks
var (
	WCAGNonTextContent      = WCAGCriterion{"1.1.1", "Non-text Content", WCAGLevelA}
	WCAGKeyboard            = WCAGCriterion{"2.1.1", "Keyboard", WCAGLevelA}
	WCAGNoKeyboardTrap      = WCAGCriterion{"2.1.2", "No Keyboard Trap", WCAGLevelA}
	WCAGFocusOrder          = WCAGCriterion{"2.4.3", "Focus Order", WCAGLevelA}
	WCAGLinkPurpose         = WCAGCriterion{"2.4.4", "Link Purpose (In Context)", WCAGLevelA}
	WCAGNameRoleValue       = WCAGCriterion{"4.1.2", "Name, Role, Value", WCAGLevelA}
	WCAGContrastMinimum     = WCAGCriterion{"1.4.3", "Contrast (Minimum)", WCAGLevelAA}
	WCAGResizeText          = WCAGCriterion{"1.4.4", "Resize Text", WCAGLevelAA}
	WCAGHeadingsLabels      = WCAGCriterion{"2.4.6", "Headings and Labels", WCAGLevelAA}
	WCAGFocusVisible        = WCAGCriterion{"2.4.7", "Focus Visible", WCAGLevelAA}
	WCAGLanguageOfPage      = WCAGCriterion{"3.1.1", "Language of Page", WCAGLevelA}
	WCAGConsistentNav       = WCAGCriterion{"3.2.3", "Consistent Navigation", WCAGLevelAA}
	WCAGErrorIdentification = WCAGCriterion{"3.3.1", "Error Identification", WCAGLevelA}
	WCAGErrorSuggestion     = WCAGCriterion{"3.3.3", "Error Suggestion", WCAGLevelAA}
	WCAGSignLanguage        = WCAGCriterion{"1.2.6", "Sign Language (Prerecorded)", WCAGLevelAAA}
	WCAGContrastEnhanced    = WCAGCriterion{"1.4.6", "Contrast (Enhanced)", WCAGLevelAAA}
)

// UXSeverity is the UX analyzer's own severity scale
type UXSeverity string

const (
	UXSeverityCritical   UXSeverity = "critical"
	UXSeverityMajor      UXSeverity = "major"
	UXSeverityMinor      UXSeverity = "minor"
	UXSeveritySuggestion UXSeverity = "suggestion"
)

// IsValid checks if the severity value is valid
func (s UXSeverity) IsValid() bool {
	return s.Score() > 0
}

// Score maps the UX severity onto the 1-5 gap severity scale
func (s UXSeverity) Score() int {
	switch s {
	case UXSeverityCritical:
		return 5
	case UXSeverityMajor:
		return 4
	case UXSeverityMinor:
		return 2
	case UXSeveritySuggestion:
		return 1
	}
	return 0
}

// UXReadiness is the UX analyzer's verdict
type UXReadiness string

const (
	UXReady       UXReadiness = "ready"
	UXNeedsReview UXReadiness = "needs_review"
	UXBlocked     UXReadiness = "blocked"
)

// UXFinding is one UX gap with its perspective-specific detail.
// Exactly one of WCAG, Heuristic, Pattern or Flow is set, matching Source.
type UXFinding struct {
	ID             string          `json:"id"`
	Source         types.GapSource `json:"source"`
	Description    string          `json:"description"`
	Severity       UXSeverity      `json:"severity"`
	Recommendation string          `json:"recommendation"`
	FromBaseline   bool            `json:"from_baseline,omitempty"`
	BaselineRef    string          `json:"baseline_ref,omitempty"`
	AffectedACs    []string        `json:"affected_acs,omitempty"`

	WCAG       *WCAGCriterion `json:"wcag,omitempty"`
	UserImpact string         `json:"user_impact,omitempty"`
	Heuristic  string         `json:"heuristic,omitempty"`
	Pattern    string         `json:"expected_pattern,omitempty"`
	Flow       string         `json:"affected_flow,omitempty"`
}

// UXSummary counts UX findings by severity
type UXSummary struct {
	Critical   int `json:"critical"`
	Major      int `json:"major"`
	Minor      int `json:"minor"`
	Suggestion int `json:"suggestion"`
	Total      int `json:"total"`
}

// UXReport is the detailed UX analysis
type UXReport struct {
	AnalyzedAt    time.Time   `json:"analyzed_at"`
	Accessibility []UXFinding `json:"accessibility"`
	Usability     []UXFinding `json:"usability"`
	DesignPattern []UXFinding `json:"design_pattern"`
	UserFlow      []UXFinding `json:"user_flow"`
	Summary       UXSummary   `json:"summary"`
	Readiness     UXReadiness `json:"readiness"`
}

// Findings returns every finding in category order
func (r *UXReport) Findings() []UXFinding {
	all := make([]UXFinding, 0, len(r.Accessibility)+len(r.Usability)+len(r.DesignPattern)+len(r.UserFlow))
	all = append(all, r.Accessibility...)
	all = append(all, r.Usability...)
	all = append(all, r.DesignPattern...)
	return append(all, r.UserFlow...)
}

// UXGenerator flags accessibility, usability, design pattern and user flow gaps
type UXGenerator struct {
	cfg UXConfig
}

// NewUXGenerator creates a UX generator, rejecting invalid configuration
func NewUXGenerator(cfg UXConfig) (*UXGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid UX config: %w", err)
	}
	return &UXGenerator{cfg: cfg}, nil
}

// AnalyzeUX runs the UX generator with default configuration
func AnalyzeUX(story *types.Story, baseline *types.Baseline) *Result {
	return safeGenerate(&UXGenerator{cfg: DefaultUXConfig()}, story, baseline,
		"No story structure provided for UX analysis")
}

func (g *UXGenerator) Name() string                   { return "ux" }
func (g *UXGenerator) Perspective() types.Perspective { return types.PerspectiveUX }

// Generate implements Generator
func (g *UXGenerator) Generate(ctx context.Context, story *types.Story, baseline *types.Baseline) (*Result, error) {
	if story == nil {
		return nil, ErrNoStory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := storyText(story)
	report := &UXReport{
		AnalyzedAt:    time.Now(),
		Accessibility: g.capped(g.accessibility(story, text, baseline)),
		Usability:     g.capped(usability(story, text)),
	}
	if g.cfg.CheckDesignPatterns {
		report.DesignPattern = g.capped(designPatterns(text, baseline))
	}
	if g.cfg.CheckUserFlows {
		report.UserFlow = g.capped(userFlows(text))
	}

	findings := report.Findings()
	report.Summary = summarizeUX(findings)
	report.Readiness = uxReadiness(report.Summary, g.cfg.BlockingSeverity)

	gaps := make([]types.Gap, 0, len(findings))
	for _, f := range findings {
		gaps = append(gaps, f.toGap())
	}

	res := &Result{
		Perspective:     types.PerspectiveUX,
		StoryID:         story.ID,
		Gaps:            gaps,
		HighestSeverity: highestSeverity(gaps),
		UX:              report,
		Analyzed:        true,
		Summary: fmt.Sprintf("UX readiness: %s. %d gap(s): %d critical, %d major, %d minor, %d suggestion(s).",
			report.Readiness, report.Summary.Total, report.Summary.Critical, report.Summary.Major,
			report.Summary.Minor, report.Summary.Suggestion),
	}
	if baseline == nil {
		res.Warnings = append(res.Warnings, "No baseline reality available - some context-dependent gaps may be missed")
	}
	return res, nil
}

func (g *UXGenerator) capped(findings []UXFinding) []UXFinding {
	if len(findings) > g.cfg.MaxGapsPerCategory {
		return findings[:g.cfg.MaxGapsPerCategory]
	}
	return findings
}

func (f UXFinding) toGap() types.Gap {
	likelihood := 3
	if f.WCAG != nil {
		// Lower conformance levels are failed by more users
		switch f.WCAG.Level {
		case WCAGLevelA:
			likelihood = 5
		case WCAGLevelAA:
			likelihood = 4
		}
	}
	return types.Gap{
		ID:          f.ID,
		Source:      f.Source,
		Description: f.Description,
		Severity:    f.Severity.Score(),
		Likelihood:  likelihood,
		Suggestion:  f.Recommendation,
		RelatedACs:  f.AffectedACs,
	}
}

func (g *UXGenerator) accessibility(story *types.Story, text string, baseline *types.Baseline) []UXFinding {
	var out []UXFinding
	next := idSeq("A11Y-GAP-%03d")
	add := func(f UXFinding, wcag WCAGCriterion) {
		if wcag.Level.rank() > g.cfg.WCAGLevel.rank() {
			return
		}
		f.ID = next()
		f.Source = types.SourceUXAccessibility
		f.WCAG = &wcag
		out = append(out, f)
	}

	if containsAny(text, "button", "modal", "dialog", "dropdown") && !containsAny(text, "keyboard", "focus") {
		add(UXFinding{
			Description:    "Story involves interactive elements but does not mention keyboard accessibility",
			Severity:       UXSeverityMajor,
			Recommendation: "Add acceptance criteria for keyboard navigation and focus management for interactive elements",
			UserImpact:     "Users who navigate via keyboard will be unable to interact with these elements",
			AffectedACs:    acIDs(story),
		}, WCAGKeyboard)
	}
	if containsAny(text, "image", "icon", "graphic") && !containsAny(text, "alt", "alternative") {
		add(UXFinding{
			Description:    "Story involves visual content but does not mention alternative text",
			Severity:       UXSeverityCritical,
			Recommendation: "Add requirement for alt text on all non-decorative images and icons",
			UserImpact:     "Screen reader users will have no information about the content of these images",
		}, WCAGNonTextContent)
	}
	if containsAny(text, "form", "input", "field") && !containsAny(text, "error", "validation") {
		add(UXFinding{
			Description:    "Story involves form elements but does not address error handling",
			Severity:       UXSeverityMajor,
			Recommendation: "Add acceptance criteria for accessible error identification and suggestions",
			UserImpact:     "Users may not understand what went wrong or how to fix form errors",
		}, WCAGErrorIdentification)
	}
	if baseline != nil {
		for _, item := range baseline.NoRework {
			if containsAny(strings.ToLower(item), "accessibility", "a11y") {
				add(UXFinding{
					Description:    "Baseline contains accessibility constraint that must be preserved: " + item,
					Severity:       UXSeverityMinor,
					Recommendation: "Ensure changes do not regress existing accessibility features",
					UserImpact:     "Regression could break existing assistive technology compatibility",
					FromBaseline:   true,
					BaselineRef:    item,
				}, WCAGNameRoleValue)
			}
		}
	}
	return out
}

func usability(story *types.Story, text string) []UXFinding {
	var out []UXFinding
	next := idSeq("USAB-GAP-%03d")
	add := func(f UXFinding) {
		f.ID = next()
		f.Source = types.SourceUXUsability
		out = append(out, f)
	}

	if containsAny(text, "save", "submit", "update", "create") && !containsAny(text, "feedback", "confirm", "notification") {
		add(UXFinding{
			Description:    "Story involves state changes but lacks feedback mechanism specification",
			Severity:       UXSeverityMajor,
			Recommendation: "Add acceptance criteria for user feedback on successful/failed operations",
			Heuristic:      "Visibility of system status",
		})
	}
	if containsAny(text, "delete", "remove", "clear") && !containsAny(text, "confirm", "undo") {
		add(UXFinding{
			Description:    "Story involves destructive actions without confirmation or undo mechanism",
			Severity:       UXSeverityCritical,
			Recommendation: "Add confirmation dialog or undo capability for destructive actions",
			Heuristic:      "Error prevention",
		})
	}
	isComplex := story.EstimatedComplexity == types.ComplexityLarge || len(story.AcceptanceCriteria) > 5
	if isComplex && !containsAny(text, "help", "guide", "tip") {
		add(UXFinding{
			Description:    "Complex feature without help or guidance specification",
			Severity:       UXSeverityMinor,
			Recommendation: "Consider adding contextual help or onboarding for complex features",
			Heuristic:      "Help and documentation",
		})
	}
	return out
}

func designPatterns(text string, baseline *types.Baseline) []UXFinding {
	var out []UXFinding
	next := idSeq("DPAT-GAP-%03d")
	add := func(f UXFinding) {
		f.ID = next()
		f.Source = types.SourceUXDesignPattern
		out = append(out, f)
	}

	if containsAny(text, "table", "list", "grid") && !containsAny(text, "pagination", "sort", "filter") {
		add(UXFinding{
			Description:    "Data display component without pagination, sorting, or filtering",
			Severity:       UXSeverityMinor,
			Recommendation: "Consider standard data table patterns with pagination, sorting, and filtering",
			Pattern:        "Data Table with Controls",
		})
	}
	if containsAny(text, "modal", "dialog", "popup") && !containsAny(text, "close", "dismiss", "escape") {
		add(UXFinding{
			Description:    "Modal/dialog without explicit close mechanism specification",
			Severity:       UXSeverityMajor,
			Recommendation: "Specify close button, escape key, and click-outside behavior for modals",
			Pattern:        "Modal Dialog Pattern",
		})
	}
	if baseline != nil {
		for _, item := range baseline.NoRework {
			if containsAny(strings.ToLower(item), "design system", "component library") {
				add(UXFinding{
					Description:    "Must align with existing design system: " + item,
					Severity:       UXSeveritySuggestion,
					Recommendation: "Verify new components align with existing design system patterns",
					Pattern:        "Design System Consistency",
					FromBaseline:   true,
					BaselineRef:    item,
				})
			}
		}
	}
	return out
}

func userFlows(text string) []UXFinding {
	var out []UXFinding
	next := idSeq("FLOW-GAP-%03d")
	add := func(f UXFinding) {
		f.ID = next()
		f.Source = types.SourceUXUserFlow
		out = append(out, f)
	}

	if containsAny(text, "wizard", "step", "workflow", "process") && !containsAny(text, "progress", "indicator") {
		add(UXFinding{
			Description:    "Multi-step process without progress indication",
			Severity:       UXSeverityMajor,
			Recommendation: "Add progress indicator showing current step and total steps",
			Flow:           "Multi-step workflow",
		})
	}
	if containsAny(text, "navigate", "page", "screen") && !containsAny(text, "back", "breadcrumb", "navigation") {
		add(UXFinding{
			Description:    "Navigation without clear wayfinding or return path",
			Severity:       UXSeverityMinor,
			Recommendation: "Ensure users can orient themselves and return to previous context",
			Flow:           "Page navigation",
		})
	}
	if containsAny(text, "login", "auth", "permission") && !containsAny(text, "redirect", "return") {
		add(UXFinding{
			Description:    "Authentication flow without return-to-original-page handling",
			Severity:       UXSeverityMajor,
			Recommendation: "Add deep-link preservation through authentication flow",
			Flow:           "Authentication",
		})
	}
	return out
}

func summarizeUX(findings []UXFinding) UXSummary {
	s := UXSummary{Total: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case UXSeverityCritical:
			s.Critical++
		case UXSeverityMajor:
			s.Major++
		case UXSeverityMinor:
			s.Minor++
		case UXSeveritySuggestion:
			s.Suggestion++
		}
	}
	return s
}

// uxReadiness blocks on any critical finding, and additionally on any
// finding at or above blocking severity.
func uxReadiness(s UXSummary, blocking UXSeverity) UXReadiness {
	if s.Critical > 0 {
		return UXBlocked
	}
	switch blocking {
	case UXSeverityMajor:
		if s.Major > 0 {
			return UXBlocked
		}
	case UXSeverityMinor:
		if s.Major > 0 || s.Minor > 0 {
			return UXBlocked
		}
	case UXSeveritySuggestion:
		if s.Total > 0 {
			return UXBlocked
		}
	}
	if s.Major > 0 || s.Minor > 0 || s.Suggestion > 0 {
		return UXNeedsReview
	}
	return UXReady
}
