package gaps

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// Confidence is how strongly an assumption is held
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// IsValid checks if the confidence value is valid
func (c Confidence) IsValid() bool {
	return c.order() >= 0
}

// order ranks confidence from high (0) to unknown (3); -1 for invalid
func (c Confidence) order() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceLow:
		return 2
	case ConfidenceUnknown:
		return 3
	}
	return -1
}

// AssumptionSource is where an assumption was extracted from
type AssumptionSource string

const (
	AssumptionFromTitle       AssumptionSource = "story_title"
	AssumptionFromDescription AssumptionSource = "story_description"
	AssumptionFromAC          AssumptionSource = "acceptance_criteria"
	AssumptionFromConstraints AssumptionSource = "constraints"
	AssumptionFromDeps        AssumptionSource = "dependencies"
	AssumptionFromFiles       AssumptionSource = "affected_files"
	AssumptionFromDomain      AssumptionSource = "domain_knowledge"
)

// Validity is the verdict of a challenge
type Validity string

const (
	Valid          Validity = "valid"
	PartiallyValid Validity = "partially_valid"
	Invalid        Validity = "invalid"
	Uncertain      Validity = "uncertain"
)

// IsWeak reports whether the verdict leaves the assumption open to attack
func (v Validity) IsWeak() bool {
	return v == Invalid || v == PartiallyValid
}

// EdgeCaseCategory classifies an attack edge case
type EdgeCaseCategory string

const (
	EdgeBoundary     EdgeCaseCategory = "boundary"
	EdgeConcurrency  EdgeCaseCategory = "concurrency"
	EdgeFailure      EdgeCaseCategory = "failure"
	EdgeSecurity     EdgeCaseCategory = "security"
	EdgePerformance  EdgeCaseCategory = "performance"
	EdgeIntegration  EdgeCaseCategory = "integration"
	EdgeData         EdgeCaseCategory = "data"
	EdgeUserBehavior EdgeCaseCategory = "user_behavior"
	EdgeEnvironment  EdgeCaseCategory = "environment"
	EdgeTiming       EdgeCaseCategory = "timing"
)

// Likelihood is how likely an edge case is to occur
type Likelihood string

const (
	LikelihoodCertain  Likelihood = "certain"
	LikelihoodLikely   Likelihood = "likely"
	LikelihoodPossible Likelihood = "possible"
	LikelihoodUnlikely Likelihood = "unlikely"
	LikelihoodRare     Likelihood = "rare"
)

// Value maps the likelihood onto 1-5
func (l Likelihood) Value() int {
	switch l {
	case LikelihoodCertain:
		return 5
	case LikelihoodLikely:
		return 4
	case LikelihoodPossible:
		return 3
	case LikelihoodUnlikely:
		return 2
	case LikelihoodRare:
		return 1
	}
	return 0
}

// Impact is how bad an edge case would be
type Impact string

const (
	ImpactCritical   Impact = "critical"
	ImpactHigh       Impact = "high"
	ImpactMedium     Impact = "medium"
	ImpactLow        Impact = "low"
	ImpactNegligible Impact = "negligible"
)

// Value maps the impact onto 1-5
func (i Impact) Value() int {
	switch i {
	case ImpactCritical:
		return 5
	case ImpactHigh:
		return 4
	case ImpactMedium:
		return 3
	case ImpactLow:
		return 2
	case ImpactNegligible:
		return 1
	}
	return 0
}

// RateRisk returns likelihood x impact, 1-25
func RateRisk(l Likelihood, i Impact) int {
	return l.Value() * i.Value()
}

// HighRiskScore is the risk score at which an edge case counts as high risk
const HighRiskScore = 15

// AttackReadiness is the adversarial verdict on a story
type AttackReadiness string

const (
	AttackReady          AttackReadiness = "ready"
	AttackNeedsAttention AttackReadiness = "needs_attention"
	AttackCritical       AttackReadiness = "critical"
)

// Assumption is an implicit or explicit belief the story relies on
type Assumption struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Source      AssumptionSource `json:"source"`
	Confidence  Confidence       `json:"confidence"`
	SourceRef   string           `json:"source_ref,omitempty"`
}

// Challenge is one scripted rebuttal of an assumption
type Challenge struct {
	Assumption  Assumption `json:"assumption"`
	Challenge   string     `json:"challenge"`
	Validity    Validity   `json:"validity"`
	Evidence    string     `json:"evidence"`
	Iteration   int        `json:"iteration"`
	Remediation string     `json:"remediation,omitempty"`
}

// EdgeCase is an attack scenario with a likelihood x impact risk score
type EdgeCase struct {
	ID                  string           `json:"id"`
	Description         string           `json:"description"`
	Category            EdgeCaseCategory `json:"category"`
	Likelihood          Likelihood       `json:"likelihood"`
	Impact              Impact           `json:"impact"`
	RiskScore           int              `json:"risk_score"`
	RelatedAssumptionID string           `json:"related_assumption_id,omitempty"`
	Mitigation          string           `json:"mitigation,omitempty"`
}

// AttackSummary rolls up an attack analysis
type AttackSummary struct {
	TotalAssumptions  int             `json:"total_assumptions"`
	TotalChallenges   int             `json:"total_challenges"`
	WeakAssumptions   int             `json:"weak_assumptions"`
	TotalEdgeCases    int             `json:"total_edge_cases"`
	HighRiskEdgeCases int             `json:"high_risk_edge_cases"`
	Readiness         AttackReadiness `json:"attack_readiness"`
	Narrative         string          `json:"narrative"`
}

// AttackAnalysis is the detailed adversarial analysis
type AttackAnalysis struct {
	AnalyzedAt         time.Time     `json:"analyzed_at"`
	Assumptions        []Assumption  `json:"assumptions"`
	Challenges         []Challenge   `json:"challenges"`
	EdgeCases          []EdgeCase    `json:"edge_cases"`
	Summary            AttackSummary `json:"summary"`
	KeyVulnerabilities []string      `json:"key_vulnerabilities"`
	Recommendations    []string      `json:"recommendations"`
}

// HighRiskEdgeCases returns edge cases at or above HighRiskScore
func (a *AttackAnalysis) HighRiskEdgeCases() []EdgeCase {
	if a == nil {
		return nil
	}
	var out []EdgeCase
	for _, ec := range a.EdgeCases {
		if ec.RiskScore >= HighRiskScore {
			out = append(out, ec)
		}
	}
	return out
}

type assumptionPattern struct {
	keywords   []string
	label      string
	confidence Confidence
}

// assumptionPatterns are checked in order against every text field
var assumptionPatterns = []assumptionPattern{
	{[]string{"always", "all", "every", "must", "will"}, "Assumes universal applicability", ConfidenceLow},
	{[]string{"never", "none", "no", "not", "cannot"}, "Assumes absolute negation", ConfidenceLow},
	{[]string{"fast", "quick", "instant", "real-time", "responsive"}, "Assumes performance characteristic", ConfidenceMedium},
	{[]string{"reliable", "stable", "consistent", "guaranteed"}, "Assumes reliability", ConfidenceMedium},
	{[]string{"secure", "safe", "protected", "authenticated"}, "Assumes security property", ConfidenceMedium},
	{[]string{"scalable", "unlimited", "any number", "large"}, "Assumes scalability", ConfidenceLow},
}

type scriptedChallenge struct {
	keywords    []string
	challenge   string
	validity    Validity
	evidence    string
	remediation string
}

// scriptedChallenges are matched in order against the assumption text; the
// first match wins and the last entry matches everything.
var scriptedChallenges = []scriptedChallenge{
	{[]string{"always", "all", "every"},
		"What if the universal condition is not met in edge cases?", PartiallyValid,
		"Universal claims often have exceptions. Consider boundary conditions, error states, and unusual inputs.",
		"Replace universal language with specific conditions and document known exceptions."},
	{[]string{"never", "none", "cannot"},
		"What scenario could violate this absolute negation?", PartiallyValid,
		"Absolute negations can be violated by system failures, adversarial inputs, or unforeseen use cases.",
		"Define what happens if the negation is violated and add defensive handling."},
	{[]string{"fast", "quick", "instant", "performance"},
		"What happens under load or with degraded resources?", PartiallyValid,
		"Performance characteristics change under stress. Define specific metrics and acceptable degradation.",
		`Add measurable performance criteria (e.g., "responds in <200ms at p95").`},
	{[]string{"reliable", "stable", "consistent", "guaranteed"},
		"What failure modes could compromise this reliability?", PartiallyValid,
		"No system is perfectly reliable. Network issues, resource exhaustion, and bugs can cause failures.",
		"Define retry strategies, fallbacks, and graceful degradation paths."},
	{[]string{"secure", "safe", "protected", "security"},
		"What attack vectors could bypass this security measure?", Uncertain,
		"Security assumptions require validation. Consider authentication bypass, injection, and authorization flaws.",
		"Document specific security controls and consider a security review or threat model."},
	{[]string{"scalable", "unlimited", "any number", "scale"},
		"What resource constraints could limit scalability?", PartiallyValid,
		"All systems have limits. Memory, CPU, network bandwidth, and database connections can bottleneck.",
		"Define expected scale limits and behavior when approaching them."},
	{[]string{"dependencies", "available", "functional"},
		"What if a dependency is unavailable or returns unexpected data?", PartiallyValid,
		"Dependencies can fail, be slow, or return unexpected responses. Plan for dependency failures.",
		"Add circuit breakers, timeouts, and fallback behaviors for dependencies."},
	{[]string{"contained", "scoped", "affected"},
		"What unexpected areas might be affected by ripple effects?", Uncertain,
		"Code changes often have unintended consequences in shared modules, tests, or downstream consumers.",
		"Expand impact analysis to include transitive dependencies and consumers."},
	{nil,
		"Under what conditions might this assumption not hold?", Uncertain,
		"The assumption may hold under normal conditions but could fail in edge cases or under stress.",
		"Consider adding explicit validation or documentation for this assumption."},
}

type contentEdgeRule struct {
	pattern     *regexp.Regexp
	description string
	category    EdgeCaseCategory
	likelihood  Likelihood
	impact      Impact
	mitigation  string
}

var contentEdgeRules = []contentEdgeRule{
	{regexp.MustCompile(`(input|form|data|user|parameter)`), "Malformed or malicious input data",
		EdgeSecurity, LikelihoodLikely, ImpactHigh,
		"Validate and sanitize all inputs; use parameterized queries"},
	{regexp.MustCompile(`(update|edit|modify|concurrent|parallel)`), "Concurrent modifications causing data inconsistency",
		EdgeConcurrency, LikelihoodPossible, ImpactHigh,
		"Implement optimistic locking or transaction isolation"},
	{regexp.MustCompile(`(api|endpoint|fetch|request|external|service)`), "Network timeout or partial response during API call",
		EdgeIntegration, LikelihoodLikely, ImpactMedium,
		"Implement timeouts, retries, and circuit breakers"},
	{regexp.MustCompile(`(state|session|workflow|process)`), "State corruption or loss during process interruption",
		EdgeFailure, LikelihoodPossible, ImpactHigh,
		"Implement checkpointing and recovery mechanisms"},
	{regexp.MustCompile(`(load|process|handle|large|many|batch)`), "Resource exhaustion with large or numerous inputs",
		EdgePerformance, LikelihoodPossible, ImpactMedium,
		"Implement pagination, rate limiting, and resource quotas"},
	{regexp.MustCompile(`(auth|login|permission|role|access|token)`), "Token expiry or session invalidation mid-operation",
		EdgeSecurity, LikelihoodLikely, ImpactMedium,
		"Handle auth errors gracefully with automatic refresh or re-auth prompt"},
	{regexp.MustCompile(`(save|store|persist|database|record)`), "Partial write or data corruption during save operation",
		EdgeData, LikelihoodUnlikely, ImpactCritical,
		"Use transactions and implement data validation on read"},
	{regexp.MustCompile(`(async|await|timeout|delay|schedule|queue)`), "Race condition in async operation ordering",
		EdgeTiming, LikelihoodPossible, ImpactMedium,
		"Use proper synchronization primitives and deterministic ordering"},
	{regexp.MustCompile(`(config|environment|env|setting|feature flag)`), "Configuration mismatch between environments",
		EdgeEnvironment, LikelihoodPossible, ImpactMedium,
		"Document required configuration and validate on startup"},
}

// AttackGenerator challenges a story's assumptions and derives edge cases
type AttackGenerator struct {
	cfg AttackConfig
}

// NewAttackGenerator creates an attack generator, rejecting invalid configuration
func NewAttackGenerator(cfg AttackConfig) (*AttackGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid attack config: %w", err)
	}
	return &AttackGenerator{cfg: cfg}, nil
}

// AnalyzeAttack runs the attack generator with default configuration
func AnalyzeAttack(story *types.Story, baseline *types.Baseline) *Result {
	return safeGenerate(&AttackGenerator{cfg: DefaultAttackConfig()}, story, baseline,
		"No story structure provided for attack analysis")
}

func (g *AttackGenerator) Name() string                   { return "attack" }
func (g *AttackGenerator) Perspective() types.Perspective { return types.PerspectiveAttack }

// Generate implements Generator. The baseline is not consulted.
func (g *AttackGenerator) Generate(ctx context.Context, story *types.Story, _ *types.Baseline) (*Result, error) {
	if story == nil {
		return nil, ErrNoStory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var warnings []string
	assumptions := ExtractAssumptions(story)
	if g.cfg.MinConfidence != ConfidenceUnknown {
		kept := assumptions[:0]
		for _, a := range assumptions {
			if a.Confidence.order() <= g.cfg.MinConfidence.order() {
				kept = append(kept, a)
			}
		}
		assumptions = kept
	}

	toChallenge := assumptions
	if len(toChallenge) > g.cfg.MaxAssumptionChallenges {
		warnings = append(warnings, fmt.Sprintf("Limited assumptions from %d to %d",
			len(toChallenge), g.cfg.MaxAssumptionChallenges))
		toChallenge = toChallenge[:g.cfg.MaxAssumptionChallenges]
	}

	var challenges []Challenge
	for _, a := range toChallenge {
		challenges = append(challenges, g.challengeUntilSettled(a)...)
	}

	var edgeCases []EdgeCase
	for _, ec := range identifyAttackEdgeCases(story, challenges) {
		if ec.RiskScore >= g.cfg.MinRiskScore {
			edgeCases = append(edgeCases, ec)
		}
	}
	if len(edgeCases) > g.cfg.MaxEdgeCases {
		warnings = append(warnings, fmt.Sprintf("Limited edge cases from %d to %d", len(edgeCases), g.cfg.MaxEdgeCases))
		sort.SliceStable(edgeCases, func(i, j int) bool {
			return edgeCases[i].RiskScore > edgeCases[j].RiskScore
		})
		edgeCases = edgeCases[:g.cfg.MaxEdgeCases]
	}

	analysis := &AttackAnalysis{
		AnalyzedAt:  time.Now(),
		Assumptions: assumptions,
		Challenges:  challenges,
		EdgeCases:   edgeCases,
	}
	analysis.Summary = summarizeAttack(story, analysis)
	analysis.KeyVulnerabilities = keyVulnerabilities(analysis)
	analysis.Recommendations = attackRecommendations(analysis)

	gaps := analysis.gaps()
	return &Result{
		Perspective:     types.PerspectiveAttack,
		StoryID:         story.ID,
		Gaps:            gaps,
		HighestSeverity: highestSeverity(gaps),
		Summary:         analysis.Summary.Narrative,
		Attack:          analysis,
		Analyzed:        true,
		Warnings:        warnings,
	}, nil
}

// challengeUntilSettled challenges an assumption for up to
// MaxIterationsPerAssumption rounds. It stops on a decisive verdict (valid
// or invalid) or when a round repeats the previous verdict.
func (g *AttackGenerator) challengeUntilSettled(a Assumption) []Challenge {
	var out []Challenge
	for iteration := 1; iteration <= g.cfg.MaxIterationsPerAssumption; iteration++ {
		c := ChallengeAssumption(a, iteration)
		if len(out) > 0 && out[len(out)-1].Validity == c.Validity {
			break
		}
		out = append(out, c)
		if c.Validity == Valid || c.Validity == Invalid {
			break
		}
	}
	return out
}

// ExtractAssumptions pulls assumptions out of a story's text fields,
// constraints, dependencies, affected files and domain. IDs are ASM-1.. in
// extraction order.
func ExtractAssumptions(story *types.Story) []Assumption {
	var out []Assumption
	next := idSeq("ASM-%d")
	add := func(a Assumption) {
		a.ID = next()
		out = append(out, a)
	}

	for _, a := range textAssumptions(story.Title, AssumptionFromTitle, story.Title) {
		add(a)
	}
	for _, a := range textAssumptions(story.Description, AssumptionFromDescription, truncate(story.Description, 100)) {
		add(a)
	}
	for _, ac := range story.AcceptanceCriteria {
		for _, a := range textAssumptions(ac.Description, AssumptionFromAC, ac.ID) {
			add(a)
		}
	}
	for _, c := range story.Constraints {
		add(Assumption{
			Description: fmt.Sprintf("Constraint will be respected: %q", c),
			Source:      AssumptionFromConstraints,
			Confidence:  ConfidenceMedium,
			SourceRef:   c,
		})
	}
	if n := len(story.Dependencies); n > 0 {
		add(Assumption{
			Description: fmt.Sprintf("All %d dependencies will be available and functional", n),
			Source:      AssumptionFromDeps,
			Confidence:  ConfidenceMedium,
			SourceRef:   strings.Join(story.Dependencies, ", "),
		})
	}
	if n := len(story.AffectedFiles); n > 0 {
		ref := story.AffectedFiles
		if len(ref) > 3 {
			ref = ref[:3]
		}
		add(Assumption{
			Description: fmt.Sprintf("Changes will be contained to the %d identified files", n),
			Source:      AssumptionFromFiles,
			Confidence:  ConfidenceLow,
			SourceRef:   strings.Join(ref, ", "),
		})
	}
	if a, ok := domainAssumption(story.Domain); ok {
		add(a)
	}
	return out
}

func textAssumptions(text string, source AssumptionSource, ref string) []Assumption {
	lower := strings.ToLower(text)
	var out []Assumption
	for _, p := range assumptionPatterns {
		if containsAny(lower, p.keywords...) {
			out = append(out, Assumption{
				Description: fmt.Sprintf("%s: %q", p.label, relevantPhrase(text, p.keywords)),
				Source:      source,
				Confidence:  p.confidence,
				SourceRef:   ref,
			})
		}
	}
	return out
}

// relevantPhrase returns the text around the first matching keyword, with
// ellipses where it was cut
func relevantPhrase(text string, keywords []string) string {
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// byte offsets into lower would not line up with text
		return truncate(text, 50)
	}
	for _, kw := range keywords {
		idx := strings.Index(lower, kw)
		if idx == -1 {
			continue
		}
		start := max(0, idx-20)
		end := min(len(text), idx+len(kw)+30)
		phrase := strings.TrimSpace(text[start:end])
		if start > 0 {
			phrase = "..." + phrase
		}
		if end < len(text) {
			phrase += "..."
		}
		return phrase
	}
	return truncate(text, 50)
}

func domainAssumption(domain string) (Assumption, bool) {
	lower := strings.ToLower(domain)
	var desc string
	switch {
	case containsAny(lower, "api", "backend"):
		desc = "API endpoints will maintain backward compatibility"
	case containsAny(lower, "ui", "frontend"):
		desc = "UI changes will not break existing user workflows"
	case containsAny(lower, "orchestrator", "workflow"):
		desc = "Workflow state will be preserved across node executions"
	case containsAny(lower, "database", "data"):
		desc = "Database schema changes will be backward compatible"
	default:
		return Assumption{}, false
	}
	return Assumption{
		Description: desc,
		Source:      AssumptionFromDomain,
		Confidence:  ConfidenceMedium,
		SourceRef:   "Domain: " + domain,
	}, true
}

// ChallengeAssumption applies the scripted rebuttal for an assumption's type
func ChallengeAssumption(a Assumption, iteration int) Challenge {
	desc := strings.ToLower(a.Description)
	for _, sc := range scriptedChallenges {
		if sc.keywords == nil || containsAny(desc, sc.keywords...) {
			return Challenge{
				Assumption:  a,
				Challenge:   sc.challenge,
				Validity:    sc.validity,
				Evidence:    sc.evidence,
				Iteration:   iteration,
				Remediation: sc.remediation,
			}
		}
	}
	panic("unreachable: scripted challenges end with a catch-all")
}

func identifyAttackEdgeCases(story *types.Story, challenges []Challenge) []EdgeCase {
	var out []EdgeCase
	next := idSeq("EDGE-ATK-%d")

	for _, c := range challenges {
		if c.Validity.IsWeak() {
			out = append(out, edgeCaseFromChallenge(c, next()))
		}
	}

	desc := strings.ToLower(story.Description)
	for _, r := range contentEdgeRules {
		if r.pattern.MatchString(desc) {
			out = append(out, EdgeCase{
				ID:          next(),
				Description: r.description,
				Category:    r.category,
				Likelihood:  r.likelihood,
				Impact:      r.impact,
				RiskScore:   RateRisk(r.likelihood, r.impact),
				Mitigation:  r.mitigation,
			})
		}
	}
	return out
}

func edgeCaseFromChallenge(c Challenge, id string) EdgeCase {
	desc := strings.ToLower(c.Assumption.Description)

	category := EdgeFailure
	switch {
	case containsAny(desc, "security", "auth"):
		category = EdgeSecurity
	case containsAny(desc, "performance", "fast"):
		category = EdgePerformance
	case containsAny(desc, "concurrent", "parallel"):
		category = EdgeConcurrency
	case containsAny(desc, "data", "state"):
		category = EdgeData
	case containsAny(desc, "dependency", "api"):
		category = EdgeIntegration
	}

	likelihood := LikelihoodPossible
	if c.Validity == Invalid {
		likelihood = LikelihoodLikely
	}

	impact := ImpactMedium
	if c.Assumption.Source == AssumptionFromAC {
		impact = ImpactHigh
	}
	if containsAny(desc, "security", "critical") {
		impact = ImpactCritical
	}

	return EdgeCase{
		ID:                  id,
		Description:         "Violated assumption: " + c.Assumption.Description,
		Category:            category,
		Likelihood:          likelihood,
		Impact:              impact,
		RiskScore:           RateRisk(likelihood, impact),
		RelatedAssumptionID: c.Assumption.ID,
		Mitigation:          c.Remediation,
	}
}

func summarizeAttack(story *types.Story, a *AttackAnalysis) AttackSummary {
	weak := make(map[string]bool)
	for _, c := range a.Challenges {
		if c.Validity.IsWeak() {
			weak[c.Assumption.ID] = true
		}
	}
	s := AttackSummary{
		TotalAssumptions:  len(a.Assumptions),
		TotalChallenges:   len(a.Challenges),
		WeakAssumptions:   len(weak),
		TotalEdgeCases:    len(a.EdgeCases),
		HighRiskEdgeCases: len(a.HighRiskEdgeCases()),
		Readiness:         AttackReady,
	}

	switch {
	case s.HighRiskEdgeCases > 0 || float64(s.WeakAssumptions) > float64(s.TotalAssumptions)/2:
		s.Readiness = AttackCritical
	case s.TotalEdgeCases > 5 || s.WeakAssumptions > 0:
		s.Readiness = AttackNeedsAttention
	}

	parts := []string{fmt.Sprintf("Attack analysis for %q", story.Title)}
	if s.TotalAssumptions == 0 {
		parts = append(parts, "found no explicit assumptions to challenge.")
	} else {
		parts = append(parts, fmt.Sprintf("identified %d assumptions, of which %d require attention.",
			s.TotalAssumptions, s.WeakAssumptions))
	}
	switch {
	case s.TotalEdgeCases == 0:
		parts = append(parts, "No significant edge cases were identified.")
	case s.HighRiskEdgeCases > 0:
		parts = append(parts, fmt.Sprintf("Identified %d edge cases including %d high-risk scenarios requiring immediate attention.",
			s.TotalEdgeCases, s.HighRiskEdgeCases))
	default:
		parts = append(parts, fmt.Sprintf("Identified %d edge cases with manageable risk levels.", s.TotalEdgeCases))
	}
	s.Narrative = strings.Join(parts, " ")
	return s
}

func keyVulnerabilities(a *AttackAnalysis) []string {
	var out []string
	n := 0
	for _, c := range a.Challenges {
		if c.Validity == Invalid && n < 3 {
			out = append(out, "Invalid assumption: "+c.Assumption.Description)
			n++
		}
	}
	for i, ec := range a.HighRiskEdgeCases() {
		if i == 3 {
			break
		}
		out = append(out, "High-risk edge case: "+ec.Description)
	}
	security := 0
	for _, ec := range a.EdgeCases {
		if ec.Category == EdgeSecurity {
			security++
		}
	}
	if security > 0 {
		out = append(out, fmt.Sprintf("%d security-related edge case(s) identified", security))
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func attackRecommendations(a *AttackAnalysis) []string {
	var out []string
	switch a.Summary.Readiness {
	case AttackCritical:
		out = append(out, "CRITICAL: Address high-risk edge cases before development begins")
	case AttackNeedsAttention:
		out = append(out, "Review identified assumptions and edge cases during story refinement")
	}

	seen := make(map[string]bool)
	addOnce := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, c := range a.Challenges {
		if c.Validity.IsWeak() {
			addOnce(c.Remediation)
		}
	}
	for _, ec := range a.EdgeCases {
		if ec.RiskScore >= 9 {
			addOnce(ec.Mitigation)
		}
	}

	categories := make(map[EdgeCaseCategory]bool)
	for _, ec := range a.EdgeCases {
		categories[ec.Category] = true
	}
	if categories[EdgeSecurity] {
		out = append(out, "Consider a security review or threat modeling session")
	}
	if categories[EdgeConcurrency] {
		out = append(out, "Add acceptance criteria for concurrent access scenarios")
	}
	if categories[EdgePerformance] {
		out = append(out, "Define specific performance requirements and test them")
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// relatedACs returns the acceptance criterion an assumption was read from,
// or nil for assumptions from other parts of the story
func relatedACs(a Assumption) []string {
	if a.Source != AssumptionFromAC || a.SourceRef == "" {
		return nil
	}
	return []string{a.SourceRef}
}

// gaps converts edge cases and weak challenges into generic gaps
func (a *AttackAnalysis) gaps() []types.Gap {
	byID := make(map[string]Assumption, len(a.Assumptions))
	for _, asm := range a.Assumptions {
		byID[asm.ID] = asm
	}

	var out []types.Gap
	for _, ec := range a.EdgeCases {
		var related []string
		if asm, ok := byID[ec.RelatedAssumptionID]; ok {
			related = relatedACs(asm)
		}
		out = append(out, types.Gap{
			ID:          ec.ID,
			Source:      types.SourceAttackEdgeCase,
			Description: ec.Description,
			Severity:    ec.Impact.Value(),
			Likelihood:  ec.Likelihood.Value(),
			Suggestion:  ec.Mitigation,
			RelatedACs:  related,
		})
	}
	for _, c := range a.Challenges {
		if !c.Validity.IsWeak() {
			continue
		}
		score := 3
		if c.Validity == Invalid {
			score = 4
		}
		out = append(out, types.Gap{
			ID:          "ATK-" + c.Assumption.ID,
			Source:      types.SourceAttackAssumption,
			Description: "Challenged assumption: " + c.Assumption.Description,
			Severity:    score,
			Likelihood:  score,
			Suggestion:  c.Remediation,
			RelatedACs:  relatedACs(c.Assumption),
		})
	}
	return out
}
