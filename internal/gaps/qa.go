package gaps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// Level is the QA analyzer's three-step severity/priority scale
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// IsValid checks if the level value is valid
func (l Level) IsValid() bool {
	return l.rank() > 0
}

func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	}
	return 0
}

// Score maps the level onto the 1-5 gap severity scale
func (l Level) Score() int {
	switch l {
	case LevelHigh:
		return 4
	case LevelMedium:
		return 3
	}
	return 2
}

// QAFinding is one QA gap. Category is the QA-specific sub-category
// (e.g. "vague", "null_empty", "external", "unit").
type QAFinding struct {
	ID          string          `json:"id"`
	Source      types.GapSource `json:"source"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Severity    Level           `json:"severity"`
	Suggestion  string          `json:"suggestion,omitempty"`

	// AC clarity only
	ACID         string `json:"ac_id,omitempty"`
	OriginalText string `json:"original_text,omitempty"`
}

// QAReport is the detailed QA analysis
type QAReport struct {
	AnalyzedAt       time.Time   `json:"analyzed_at"`
	Testability      []QAFinding `json:"testability"`
	EdgeCases        []QAFinding `json:"edge_cases"`
	ACClarity        []QAFinding `json:"ac_clarity"`
	Coverage         []QAFinding `json:"coverage"`
	TestabilityScore int         `json:"testability_score"`
	KeyRisks         []string    `json:"key_risks"`
	Recommendations  []string    `json:"recommendations"`
}

// vagueTerms are subjective words that make an acceptance criterion hard to verify
var vagueTerms = []string{
	"should work", "properly", "correctly", "appropriate", "reasonable",
	"good", "nice", "fast", "slow", "easy", "simple", "user-friendly",
	"intuitive", "performant", "efficient", "optimal", "better", "improved",
	"enhanced", "quickly", "smoothly",
}

var (
	digitPattern        = regexp.MustCompile(`\d`)
	specificVerbPattern = regexp.MustCompile(`(displays?|shows?|returns?|creates?|deletes?|updates?|sends?|receives?)`)
	ambiguousPattern    = regexp.MustCompile(`(and/or|optionally|may|might|could|possibly)`)
	codeFilePattern     = regexp.MustCompile(`\.(go|ts|tsx|js|jsx|py|rs|java)$`)
)

type keywordRule struct {
	pattern     *regexp.Regexp
	category    string
	description string
	severity    Level
	detail      string
}

var edgeCaseRules = []keywordRule{
	{regexp.MustCompile(`(input|form|field|data|user|submit)`), "null_empty",
		"Consider empty/null input handling", LevelHigh,
		"What happens when user submits empty form or null values?"},
	{regexp.MustCompile(`(list|array|collection|items|multiple)`), "boundary",
		"Consider boundary cases for collections", LevelMedium,
		"What happens with 0 items, 1 item, or very large collections?"},
	{regexp.MustCompile(`(api|request|fetch|network|server|endpoint)`), "error",
		"Consider network failure scenarios", LevelHigh,
		"What happens on timeout, 500 error, or network disconnection?"},
	{regexp.MustCompile(`(auth|login|permission|role|access)`), "security",
		"Consider session expiry and token refresh scenarios", LevelHigh,
		"What happens when session expires mid-operation?"},
	{regexp.MustCompile(`(update|edit|modify|save|concurrent)`), "concurrent",
		"Consider concurrent modification scenarios", LevelMedium,
		"What happens when two users edit the same resource simultaneously?"},
	{regexp.MustCompile(`(load|display|render|process|large|many)`), "performance",
		"Consider performance with large data sets", LevelMedium,
		"How does the feature perform with 10x expected data volume?"},
}

var testabilityRules = []keywordRule{
	{regexp.MustCompile(`(external|third.?party|api|service)`), "external",
		"External service dependencies may require mocking strategy", LevelMedium,
		"Define mock/stub strategy for external services in test plan"},
	{regexp.MustCompile(`(async|await|timeout|delay|interval|schedule)`), "timing",
		"Asynchronous behavior may be difficult to test deterministically", LevelMedium,
		"Use fake clocks or deterministic async patterns in tests"},
	{regexp.MustCompile(`(environment|config|env|secret|credential)`), "environment",
		"Environment-specific behavior may be hard to test consistently", LevelMedium,
		"Use dependency injection or test-specific configuration"},
	{regexp.MustCompile(`(random|uuid|timestamp|now|date)`), "deterministic",
		"Non-deterministic values may cause flaky tests", LevelLow,
		"Use deterministic mocks for random/time-based values"},
	{regexp.MustCompile(`(ui|visual|display|render|component)`), "observable",
		"Visual behavior may require screenshot/snapshot testing", LevelLow,
		"Consider visual regression testing for UI components"},
}

var coverageRules = []keywordRule{
	{regexp.MustCompile(`(user|workflow|flow|journey|feature)`), "e2e",
		"User-facing changes may require E2E test coverage", LevelMedium,
		"Write end-to-end tests for critical user journeys"},
	{regexp.MustCompile(`(ui|component|form|button|input|modal|dialog)`), "accessibility",
		"UI changes should include accessibility testing", LevelMedium,
		"Use axe-core or similar for automated a11y checks"},
	{regexp.MustCompile(`(performance|load|scale|large|many|batch)`), "performance",
		"Performance-sensitive changes need performance testing", LevelMedium,
		"Add performance benchmarks or load tests"},
	{regexp.MustCompile(`(auth|permission|credential|sensitive|secure)`), "security",
		"Security-related changes require security testing", LevelHigh,
		"Include security-focused test cases for auth and data protection"},
}

var integrationPattern = regexp.MustCompile(`(api|endpoint|route|handler|service)`)

// QAGenerator flags AC clarity, edge case, testability and coverage gaps
type QAGenerator struct {
	cfg QAConfig
}

// NewQAGenerator creates a QA generator, rejecting invalid configuration
func NewQAGenerator(cfg QAConfig) (*QAGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid QA config: %w", err)
	}
	return &QAGenerator{cfg: cfg}, nil
}

// AnalyzeQA runs the QA generator with default configuration
func AnalyzeQA(story *types.Story, baseline *types.Baseline) *Result {
	return safeGenerate(&QAGenerator{cfg: DefaultQAConfig()}, story, baseline,
		"No story structure provided for QA analysis")
}

func (g *QAGenerator) Name() string                   { return "qa" }
func (g *QAGenerator) Perspective() types.Perspective { return types.PerspectiveQA }

// Generate implements Generator
func (g *QAGenerator) Generate(ctx context.Context, story *types.Story, baseline *types.Baseline) (*Result, error) {
	if story == nil {
		return nil, ErrNoStory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var warnings []string
	limit := func(kind string, findings []QAFinding, maxN int) []QAFinding {
		if len(findings) > maxN {
			warnings = append(warnings, fmt.Sprintf("Truncated %s gaps from %d to %d", kind, len(findings), maxN))
			return findings[:maxN]
		}
		return findings
	}

	var clarity []QAFinding
	for i, ac := range story.AcceptanceCriteria {
		if f, ok := analyzeACClarity(ac, i); ok {
			if !g.cfg.IncludeRewrites {
				f.Suggestion = ""
			}
			clarity = append(clarity, f)
		}
	}

	edges := identifyEdgeCases(story)
	if !g.cfg.IncludeExamples {
		for i := range edges {
			edges[i].Suggestion = ""
		}
	}

	var testability []QAFinding
	for _, f := range identifyTestabilityGaps(story, baseline) {
		if f.Severity.rank() >= g.cfg.MinTestabilitySeverity.rank() {
			testability = append(testability, f)
		}
	}

	report := &QAReport{
		AnalyzedAt:  time.Now(),
		Testability: limit("testability", testability, g.cfg.MaxTestabilityGaps),
		EdgeCases:   limit("edge case", edges, g.cfg.MaxEdgeCaseGaps),
		ACClarity:   limit("AC clarity", clarity, g.cfg.MaxACClarityGaps),
		Coverage:    limit("coverage", identifyCoverageGaps(story), g.cfg.MaxCoverageGaps),
	}
	if baseline == nil {
		warnings = append(warnings, "No baseline reality available - some context-aware checks skipped")
	}

	report.TestabilityScore = testabilityScore(report)
	report.KeyRisks = qaKeyRisks(report)
	report.Recommendations = qaRecommendations(report)

	gaps := report.gaps()
	return &Result{
		Perspective:     types.PerspectiveQA,
		StoryID:         story.ID,
		Gaps:            gaps,
		HighestSeverity: highestSeverity(gaps),
		Summary:         qaSummary(story, report),
		QA:              report,
		Analyzed:        true,
		Warnings:        warnings,
	}, nil
}

// analyzeACClarity reports the first clarity problem of an acceptance
// criterion: vague terms, then missing measurable outcome, then ambiguity.
func analyzeACClarity(ac types.AcceptanceCriterion, index int) (QAFinding, bool) {
	desc := strings.ToLower(ac.Description)
	f := QAFinding{
		ID:           fmt.Sprintf("AC-CLARITY-%d", index+1),
		Source:       types.SourceQAACClarity,
		Severity:     LevelMedium,
		ACID:         ac.ID,
		OriginalText: ac.Description,
	}

	for _, term := range vagueTerms {
		if strings.Contains(desc, term) {
			f.Category = "vague"
			f.Description = fmt.Sprintf("AC uses vague term %q which is subjective and hard to verify", term)
			f.Suggestion = fmt.Sprintf("Consider replacing %q with specific, measurable criteria", term)
			return f, true
		}
	}

	if !digitPattern.MatchString(desc) && !specificVerbPattern.MatchString(desc) && len(desc) < 50 {
		f.Category = "unmeasurable"
		f.Description = "AC lacks specific, measurable success criteria"
		f.Suggestion = "Add specific expected outcomes, values, or behaviors that can be verified"
		return f, true
	}

	if ambiguousPattern.MatchString(desc) {
		f.Category = "ambiguous"
		f.Description = "AC contains ambiguous language that allows multiple interpretations"
		f.Suggestion = "Make the requirement explicit and deterministic"
		return f, true
	}
	return QAFinding{}, false
}

func identifyEdgeCases(story *types.Story) []QAFinding {
	desc := strings.ToLower(story.Description)
	next := idSeq("EDGE-%d")
	var out []QAFinding
	for _, r := range edgeCaseRules {
		if r.pattern.MatchString(desc) {
			out = append(out, r.finding(next(), types.SourceQAEdgeCase))
		}
	}
	switch strings.ToLower(story.Domain) {
	case "orchestrator", "backend":
		out = append(out, QAFinding{
			ID:          next(),
			Source:      types.SourceQAEdgeCase,
			Category:    "error",
			Description: "Consider partial failure scenarios",
			Severity:    LevelHigh,
			Suggestion:  "What happens if the process fails midway? Is state recoverable?",
		})
	}
	return out
}

func identifyTestabilityGaps(story *types.Story, baseline *types.Baseline) []QAFinding {
	desc := strings.ToLower(story.Description)
	next := idSeq("TEST-%d")
	var out []QAFinding
	for _, r := range testabilityRules {
		if r.pattern.MatchString(desc) {
			out = append(out, r.finding(next(), types.SourceQATestability))
		}
	}
	if baseline != nil && story.Domain != "" {
		domain := strings.ToLower(story.Domain)
		for _, item := range baseline.WhatInProgress {
			if strings.Contains(strings.ToLower(item), domain) {
				out = append(out, QAFinding{
					ID:          next(),
					Source:      types.SourceQATestability,
					Category:    "isolation",
					Description: "In-progress work may affect test stability: " + item,
					Severity:    LevelMedium,
					Suggestion:  "Coordinate testing strategy with in-progress work",
				})
			}
		}
	}
	return out
}

func identifyCoverageGaps(story *types.Story) []QAFinding {
	desc := strings.ToLower(story.Description)
	files := strings.ToLower(strings.Join(story.AffectedFiles, " "))
	next := idSeq("COV-%d")
	var out []QAFinding

	for _, f := range story.AffectedFiles {
		if codeFilePattern.MatchString(f) {
			out = append(out, QAFinding{
				ID:          next(),
				Source:      types.SourceQACoverage,
				Category:    "unit",
				Description: "New/modified code requires unit test coverage",
				Severity:    LevelHigh,
				Suggestion:  "Write unit tests for new functions and types",
			})
			break
		}
	}
	if integrationPattern.MatchString(desc + files) {
		out = append(out, QAFinding{
			ID:          next(),
			Source:      types.SourceQACoverage,
			Category:    "integration",
			Description: "API/service changes require integration test coverage",
			Severity:    LevelHigh,
			Suggestion:  "Write integration tests for API endpoints and service interactions",
		})
	}
	for _, r := range coverageRules {
		if r.pattern.MatchString(desc) {
			out = append(out, r.finding(next(), types.SourceQACoverage))
		}
	}
	return out
}

func (r keywordRule) finding(id string, source types.GapSource) QAFinding {
	return QAFinding{
		ID:          id,
		Source:      source,
		Category:    r.category,
		Description: r.description,
		Severity:    r.severity,
		Suggestion:  r.detail,
	}
}

var (
	testabilityPenalty = map[Level]int{LevelHigh: 8, LevelMedium: 5, LevelLow: 2}
	edgeCasePenalty    = map[Level]int{LevelHigh: 6, LevelMedium: 3, LevelLow: 1}
	coveragePenalty    = map[Level]int{LevelHigh: 4, LevelMedium: 2, LevelLow: 1}
)

// testabilityScore starts at 100 and deducts per finding, weighted by severity
func testabilityScore(r *QAReport) int {
	score := 100
	for _, f := range r.Testability {
		score -= testabilityPenalty[f.Severity]
	}
	for _, f := range r.EdgeCases {
		score -= edgeCasePenalty[f.Severity]
	}
	score -= 5 * len(r.ACClarity)
	for _, f := range r.Coverage {
		score -= coveragePenalty[f.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}

func countLevel(findings []QAFinding, level Level) int {
	n := 0
	for _, f := range findings {
		if f.Severity == level {
			n++
		}
	}
	return n
}

func hasCategory(findings []QAFinding, category string) bool {
	for _, f := range findings {
		if f.Category == category {
			return true
		}
	}
	return false
}

func qaKeyRisks(r *QAReport) []string {
	var risks []string
	if n := countLevel(r.Testability, LevelHigh); n > 0 {
		risks = append(risks, fmt.Sprintf("%d high-severity testability concerns may block effective testing", n))
	}
	if n := countLevel(r.EdgeCases, LevelHigh); n > 0 {
		risks = append(risks, fmt.Sprintf("%d high-impact edge cases not addressed in acceptance criteria", n))
	}
	if n := len(r.ACClarity); n > 0 {
		risks = append(risks, fmt.Sprintf("%d acceptance criteria have clarity issues that may cause ambiguous test results", n))
	}
	if hasCategory(r.Testability, "external") {
		risks = append(risks, "External dependencies require mocking strategy to prevent flaky tests")
	}
	if hasCategory(r.EdgeCases, "concurrent") {
		risks = append(risks, "Concurrent access scenarios may cause race conditions if not handled")
	}
	if hasCategory(r.EdgeCases, "security") {
		risks = append(risks, "Security edge cases require explicit handling to prevent vulnerabilities")
	}
	return risks
}

func qaRecommendations(r *QAReport) []string {
	var recs []string
	switch {
	case r.TestabilityScore < 50:
		recs = append(recs, "CRITICAL: Address testability concerns before development to avoid major rework")
	case r.TestabilityScore < 70:
		recs = append(recs, "Review and address high-severity gaps before development begins")
	case r.TestabilityScore < 85:
		recs = append(recs, "Consider addressing medium-severity gaps during development")
	}
	if len(r.ACClarity) > 0 {
		recs = append(recs, "Rewrite vague or ambiguous acceptance criteria with specific, measurable outcomes")
	}

	var categories []string
	seen := make(map[string]bool)
	for _, f := range r.Coverage {
		if f.Severity == LevelHigh && !seen[f.Category] {
			seen[f.Category] = true
			categories = append(categories, f.Category)
		}
	}
	if len(categories) > 0 {
		recs = append(recs, fmt.Sprintf("Ensure test plan includes: %s testing", strings.Join(categories, ", ")))
	}
	if hasCategory(r.Testability, "timing") {
		recs = append(recs, "Document async testing strategy using fake clocks or controlled async patterns")
	}
	if hasCategory(r.Testability, "external") {
		recs = append(recs, "Define mock/stub approach for external service dependencies")
	}
	return recs
}

func qaSummary(story *types.Story, r *QAReport) string {
	var label string
	switch {
	case r.TestabilityScore >= 85:
		label = "Good"
	case r.TestabilityScore >= 70:
		label = "Acceptable with concerns"
	case r.TestabilityScore >= 50:
		label = "Needs improvement"
	default:
		label = "Critical issues"
	}
	total := len(r.Testability) + len(r.EdgeCases) + len(r.ACClarity) + len(r.Coverage)
	return fmt.Sprintf("QA Analysis for %q: Testability score %d/100 (%s). Found %d total gaps: %d testability, %d edge cases, %d AC clarity, %d coverage.",
		story.Title, r.TestabilityScore, label, total,
		len(r.Testability), len(r.EdgeCases), len(r.ACClarity), len(r.Coverage))
}

// gaps converts the report into generic gaps, in testability, edge case,
// AC clarity, coverage order.
func (r *QAReport) gaps() []types.Gap {
	var out []types.Gap
	for _, f := range r.Testability {
		likelihood := 3
		if f.Category == "external" {
			likelihood = 4
		}
		out = append(out, f.toGap(f.Severity.Score(), likelihood, nil))
	}
	for _, f := range r.EdgeCases {
		likelihood := 3
		if f.Category == "security" {
			likelihood = 4
		}
		out = append(out, f.toGap(f.Severity.Score(), likelihood, nil))
	}
	for _, f := range r.ACClarity {
		severity := 3
		if f.Category == "untestable" {
			severity = 4
		}
		out = append(out, f.toGap(severity, 4, []string{f.ACID}))
	}
	for _, f := range r.Coverage {
		out = append(out, f.toGap(f.Severity.Score(), 4, nil))
	}
	return out
}

func (f QAFinding) toGap(severity, likelihood int, related []string) types.Gap {
	return types.Gap{
		ID:          f.ID,
		Source:      f.Source,
		Description: f.Description,
		Severity:    severity,
		Likelihood:  likelihood,
		Suggestion:  f.Suggestion,
		RelatedACs:  related,
	}
}
