package gaps

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/elab/internal/types"
)

// PMGenerator flags scope, requirement, dependency and priority ambiguity
type PMGenerator struct {
	cfg PMConfig
}

// NewPMGenerator creates a PM generator, rejecting invalid configuration
func NewPMGenerator(cfg PMConfig) (*PMGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PM config: %w", err)
	}
	return &PMGenerator{cfg: cfg}, nil
}

// AnalyzePM runs the PM generator with default configuration. It never
// returns an error; failures are reported on the result.
func AnalyzePM(story *types.Story, baseline *types.Baseline) *Result {
	return safeGenerate(&PMGenerator{cfg: DefaultPMConfig()}, story, baseline,
		"No story structure provided for analysis")
}

func (g *PMGenerator) Name() string                   { return "pm" }
func (g *PMGenerator) Perspective() types.Perspective { return types.PerspectivePM }

// Generate implements Generator
func (g *PMGenerator) Generate(ctx context.Context, story *types.Story, baseline *types.Baseline) (*Result, error) {
	if story == nil {
		return nil, ErrNoStory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []types.Gap
	var areas []string
	add := func(enabled bool, area string, found []types.Gap) {
		if !enabled {
			return
		}
		kept := found[:0]
		for _, gap := range found {
			if gap.Severity < g.cfg.MinSeverity {
				continue
			}
			if !g.cfg.IncludeSuggestions {
				gap.Suggestion = ""
			}
			kept = append(kept, gap)
		}
		if len(kept) > 0 {
			areas = append(areas, area)
		}
		all = append(all, kept...)
	}

	add(g.cfg.CheckScope, "scope", scopeGaps(story))
	add(g.cfg.CheckRequirements, "requirements", requirementGaps(story))
	add(g.cfg.CheckDependencies, "dependencies", dependencyGaps(story, baseline))
	add(g.cfg.CheckPriority, "priority", priorityGaps(story, baseline))

	res := &Result{
		Perspective:     types.PerspectivePM,
		StoryID:         story.ID,
		Gaps:            all,
		HighestSeverity: highestSeverity(all),
		Analyzed:        true,
	}
	if len(all) == 0 {
		res.Summary = "No PM perspective gaps identified. Story appears well-defined."
	} else {
		res.Summary = fmt.Sprintf("Found %d gap(s) in: %s. Highest severity: %d/5.",
			len(all), strings.Join(areas, ", "), res.HighestSeverity)
	}
	if baseline == nil {
		res.Warnings = append(res.Warnings, "No baseline available - dependency and priority analysis may be incomplete")
	}
	return res, nil
}

func scopeGaps(story *types.Story) []types.Gap {
	var gaps []types.Gap
	next := idSeq("SG-%d")
	scope := func(desc string, severity int, suggestion string, related []string) {
		gaps = append(gaps, types.Gap{
			ID:          next(),
			Source:      types.SourcePMScope,
			Description: desc,
			Severity:    severity,
			Likelihood:  3,
			Suggestion:  suggestion,
			RelatedACs:  related,
		})
	}

	if len(story.Title) < 10 {
		scope("Story title may be too brief to clearly define scope", 2,
			"Consider expanding the title to better describe the feature scope", nil)
	}
	if len(story.AffectedFiles) == 0 {
		scope("No affected files identified - scope boundaries may be unclear", 3,
			"Identify specific files or modules that will be affected", nil)
	}

	coordinate := 0
	for _, c := range story.Constraints {
		if strings.HasPrefix(c, "Coordinate with in-progress:") {
			coordinate++
		}
	}
	if coordinate > 0 {
		scope(fmt.Sprintf("Potential overlap with %d in-progress work item(s)", coordinate), 3,
			"Review coordination points to avoid scope overlap", nil)
	}

	var vague []string
	for _, ac := range story.AcceptanceCriteria {
		if len(ac.Description) < 20 || strings.Contains(ac.Description, "etc") {
			vague = append(vague, ac.ID)
		}
	}
	if len(vague) > 0 {
		scope(fmt.Sprintf("%d acceptance criteria may be too vague for clear scope", len(vague)), 2,
			"Refine acceptance criteria with specific, measurable outcomes", vague)
	}
	return gaps
}

func requirementGaps(story *types.Story) []types.Gap {
	var gaps []types.Gap
	next := idSeq("REQ-%d")
	// Missing requirements are the likeliest to bite during implementation
	requirement := func(missing bool, desc string, severity int, suggestion string) {
		likelihood := 3
		if missing {
			likelihood = 4
		}
		gaps = append(gaps, types.Gap{
			ID:          next(),
			Source:      types.SourcePMRequirement,
			Description: desc,
			Severity:    severity,
			Likelihood:  likelihood,
			Suggestion:  suggestion,
		})
	}

	if len(story.AcceptanceCriteria) < 2 {
		requirement(false, "Story has fewer than 2 acceptance criteria - requirements may be incomplete", 4,
			"Add more acceptance criteria to fully specify expected behavior")
	}

	untestable, hasNFR, hasErrorHandling := 0, false, false
	for _, ac := range story.AcceptanceCriteria {
		desc := strings.ToLower(ac.Description)
		if strings.Contains(desc, "should") && !containsAny(desc, "verify", "test", "check") {
			untestable++
		}
		if containsAny(desc, "performance", "security", "accessibility", "scalab") {
			hasNFR = true
		}
		if containsAny(desc, "error", "fail", "invalid") {
			hasErrorHandling = true
		}
	}
	if untestable > 0 {
		requirement(false, fmt.Sprintf("%d acceptance criteria may be difficult to verify", untestable), 2,
			"Rewrite criteria with clear verification steps")
	}
	if !hasNFR && story.EstimatedComplexity != types.ComplexitySmall {
		requirement(true, "No non-functional requirements identified for a medium/large story", 3,
			"Consider adding acceptance criteria for performance, security, or accessibility")
	}
	if !hasErrorHandling {
		requirement(true, "No error handling or edge case requirements identified", 2,
			"Add acceptance criteria for error scenarios and edge cases")
	}
	return gaps
}

func dependencyGaps(story *types.Story, baseline *types.Baseline) []types.Gap {
	var gaps []types.Gap
	next := idSeq("DG-%d")
	dependency := func(blocking bool, desc string, severity int, suggestion string) {
		likelihood := 3
		if blocking {
			likelihood = 4
		}
		gaps = append(gaps, types.Gap{
			ID:          next(),
			Source:      types.SourcePMDependency,
			Description: desc,
			Severity:    severity,
			Likelihood:  likelihood,
			Suggestion:  suggestion,
		})
	}

	if len(story.Dependencies) == 0 && baseline != nil && len(baseline.WhatInProgress) > 0 {
		dependency(false, "No dependencies declared but baseline shows in-progress work", 2,
			"Review in-progress items for potential dependencies")
	}

	blocking := 0
	for _, c := range story.Constraints {
		if containsAny(strings.ToLower(c), "must not modify", "coordinate with") {
			blocking++
		}
	}
	if blocking > len(story.Dependencies) {
		dependency(true, "More constraints than declared dependencies - may have hidden dependencies", 3,
			"Review constraints to identify implicit dependencies")
	}

	if containsAny(strings.ToLower(story.Domain), "api", "integration", "external", "third-party") {
		external := false
		for _, dep := range story.Dependencies {
			if containsAny(dep, "external", "api", "service") {
				external = true
				break
			}
		}
		if !external {
			dependency(false, "Domain suggests external integration but no external dependencies declared", 3,
				"Identify and document any external service dependencies")
		}
	}

	if len(story.AffectedFiles) > 5 {
		internal := false
		for _, dep := range story.Dependencies {
			if !strings.Contains(dep, "external") && !strings.Contains(dep, "api") {
				internal = true
				break
			}
		}
		if !internal {
			dependency(false, "Many files affected but no internal dependencies identified", 2,
				"Review affected files for shared module dependencies")
		}
	}
	return gaps
}

var valueTags = []string{"mvp", "critical", "blocking", "customer-facing", "revenue"}

func priorityGaps(story *types.Story, baseline *types.Baseline) []types.Gap {
	var gaps []types.Gap
	next := idSeq("PG-%d")
	priority := func(affectsPlanning bool, desc string, severity int, suggestion string) {
		likelihood := 2
		if affectsPlanning {
			likelihood = 4
		}
		gaps = append(gaps, types.Gap{
			ID:          next(),
			Source:      types.SourcePMPriority,
			Description: desc,
			Severity:    severity,
			Likelihood:  likelihood,
			Suggestion:  suggestion,
		})
	}

	large := story.EstimatedComplexity == types.ComplexityLarge
	if large && len(story.Dependencies) == 0 {
		priority(true, "Large complexity story with no dependencies - verify sequencing is correct", 2,
			"Confirm this story can be worked independently or identify blockers")
	}

	coordination := 0
	for _, c := range story.Constraints {
		if strings.Contains(strings.ToLower(c), "coordinate") {
			coordination++
		}
	}
	if coordination > 0 {
		priority(true, fmt.Sprintf("%d coordination requirement(s) may affect resource planning", coordination), 2,
			"Plan coordination meetings or pairing sessions")
	}

	if baseline != nil && len(baseline.WhatInProgress) > 2 && story.Domain != "" {
		domain := strings.ToLower(story.Domain)
		for _, item := range baseline.WhatInProgress {
			if strings.Contains(strings.ToLower(item), domain) {
				priority(true, "Multiple in-progress items in same domain may affect timeline", 3,
					"Review domain capacity and adjust timeline expectations")
				break
			}
		}
	}

	hasValueTag := false
	for _, tag := range story.Tags {
		if containsAny(strings.ToLower(tag), valueTags...) {
			hasValueTag = true
			break
		}
	}
	if !hasValueTag && large {
		priority(false, "Large story without clear value indicator tags", 2,
			"Add tags to indicate business value for prioritization")
	}
	return gaps
}

// idSeq returns a generator of sequential IDs from a format with one %d verb
func idSeq(format string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf(format, n)
	}
}
