package escapehatch

import (
	"fmt"
	"math"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/gaps"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

// attackSections maps each attack edge case category to the story sections
// a successful attack in that category would invalidate
var attackSections = map[gaps.EdgeCaseCategory][]delta.Section{
	gaps.EdgeSecurity:     {delta.SectionAcceptanceCriteria, delta.SectionConstraints},
	gaps.EdgeData:         {delta.SectionAcceptanceCriteria, delta.SectionTestHints},
	gaps.EdgeIntegration:  {delta.SectionDependencies, delta.SectionAffectedFiles},
	gaps.EdgePerformance:  {delta.SectionAcceptanceCriteria, delta.SectionTestHints},
	gaps.EdgeConcurrency:  {delta.SectionAcceptanceCriteria, delta.SectionTestHints},
	gaps.EdgeBoundary:     {delta.SectionAcceptanceCriteria, delta.SectionKnownUnknowns},
	gaps.EdgeFailure:      {delta.SectionTestHints, delta.SectionKnownUnknowns},
	gaps.EdgeUserBehavior: {delta.SectionAcceptanceCriteria, delta.SectionNonGoals},
	gaps.EdgeEnvironment:  {delta.SectionConstraints, delta.SectionDependencies},
	gaps.EdgeTiming:       {delta.SectionTestHints, delta.SectionKnownUnknowns},
}

// raise lifts the evaluation's confidence to at least c, clamped to [0,1],
// and marks it detected
func (e *Evaluation) raise(c float64, evidence string) {
	e.Detected = true
	e.Confidence = math.Max(e.Confidence, round2(math.Min(1, math.Max(0, c))))
	e.Evidence = append(e.Evidence, evidence)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func findingsWhere(rev *delta.ReviewResult, keep func(delta.Finding) bool) []delta.Finding {
	var out []delta.Finding
	for _, f := range rev.Findings {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

func byCategory(c delta.Category) func(delta.Finding) bool {
	return func(f delta.Finding) bool { return f.Category == c }
}

func bySectionChange(s delta.Section, ct delta.ChangeType) func(delta.Finding) bool {
	return func(f delta.Finding) bool { return f.Section == s && f.ChangeType == ct }
}

func itemIDs(findings []delta.Finding) []string {
	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.ItemID
	}
	return ids
}

// EvaluateAttackImpact fires when high-risk attack edge cases reach
// sections the delta review skipped, when several assumptions failed their
// challenges, or when the attack verdict is critical.
func EvaluateAttackImpact(attack *gaps.AttackAnalysis, rev *delta.ReviewResult) Evaluation {
	e := newEvaluation(TriggerAttackImpact)
	if attack == nil {
		e.Evidence = append(e.Evidence, "No attack analysis available")
		return e
	}

	reviewed := make(map[delta.Section]bool)
	if rev != nil {
		for _, s := range rev.SectionsReviewed {
			reviewed[s] = true
		}
	}

	highRisk := attack.HighRiskEdgeCases()
	affected := make(map[delta.Section]bool)
	for _, ec := range highRisk {
		for _, s := range attackSections[ec.Category] {
			affected[s] = true
		}
	}
	var unreviewed []string
	for _, s := range delta.AllSections {
		if affected[s] && !reviewed[s] {
			unreviewed = append(unreviewed, string(s))
		}
	}
	if len(unreviewed) > 0 {
		e.raise(math.Min(0.9, 0.3+float64(len(highRisk))*0.2),
			fmt.Sprintf("%d high-risk edge case(s) affect unreviewed sections", len(highRisk)))
		e.AffectedItems = unreviewed
	}

	var weak []gaps.Challenge
	for _, c := range attack.Challenges {
		if c.Validity.IsWeak() {
			weak = append(weak, c)
		}
	}
	if len(weak) >= 3 {
		e.raise(0.6, fmt.Sprintf("%d weak assumption(s) identified requiring broader review", len(weak)))
		for _, c := range weak[:min(5, len(weak))] {
			e.AffectedItems = append(e.AffectedItems, c.Assumption.ID)
		}
	}

	if attack.Summary.Readiness == gaps.AttackCritical {
		e.raise(0.8, "Attack analysis indicates critical readiness - full review needed")
	}
	return e
}

// EvaluateCrossCutting fires when a change spans many sections or produced
// consistency and dependency findings, or when serious AC findings may have
// invalidated existing test hints.
func EvaluateCrossCutting(rev *delta.ReviewResult, story *types.Story, cfg Config) Evaluation {
	e := newEvaluation(TriggerCrossCutting)
	if rev == nil {
		e.Evidence = append(e.Evidence, "No delta review result available")
		return e
	}

	if n := len(rev.SectionsReviewed); n >= cfg.CrossCuttingSectionThreshold {
		e.raise(math.Min(0.9, 0.4+float64(n)*0.1),
			fmt.Sprintf("Changes span %d sections (threshold: %d)", n, cfg.CrossCuttingSectionThreshold))
		e.AffectedItems = make([]string, n)
		for i, s := range rev.SectionsReviewed {
			e.AffectedItems[i] = string(s)
		}
	}

	consistency := findingsWhere(rev, byCategory(delta.CategoryConsistency))
	dependency := findingsWhere(rev, byCategory(delta.CategoryDependency))
	if n := len(consistency) + len(dependency); n > 0 {
		e.raise(math.Min(0.9, 0.5+float64(n)*0.15),
			fmt.Sprintf("%d cross-section finding(s) (consistency/dependency issues)", n))
		e.AffectedItems = append(e.AffectedItems, itemIDs(consistency)...)
		e.AffectedItems = append(e.AffectedItems, itemIDs(dependency)...)
	}

	if story != nil && len(story.TestHints) > 0 {
		serious := findingsWhere(rev, func(f delta.Finding) bool {
			return f.Section == delta.SectionAcceptanceCriteria &&
				(f.Severity == delta.SeverityCritical || f.Severity == delta.SeverityMajor)
		})
		if len(serious) > 0 {
			e.raise(0.6, fmt.Sprintf("%d high-priority AC finding(s) may affect %d test hint(s)",
				len(serious), len(story.TestHints)))
		}
	}
	return e
}

// EvaluateScopeExpansion fires on scope findings, a readiness drop between
// iterations, MVP-blocking gaps keeping the story unready, removed non-goals
// or a burst of new acceptance criteria.
func EvaluateScopeExpansion(rev *delta.ReviewResult, current *readiness.Result, previousScore *int, cfg Config) Evaluation {
	e := newEvaluation(TriggerScopeExpansion)
	if rev == nil {
		e.Evidence = append(e.Evidence, "No delta review result available")
		return e
	}

	if scope := findingsWhere(rev, byCategory(delta.CategoryScope)); len(scope) > 0 {
		e.raise(math.Min(0.9, 0.4+float64(len(scope))*0.2),
			fmt.Sprintf("%d scope-related finding(s) detected", len(scope)))
		e.AffectedItems = append(e.AffectedItems, itemIDs(scope)...)
	}

	if current != nil && current.Analyzed {
		if previousScore != nil {
			if drop := *previousScore - current.Score; drop >= cfg.ReadinessDropThreshold {
				e.raise(0.7, fmt.Sprintf("Readiness score dropped by %d points (%d -> %d)",
					drop, *previousScore, current.Score))
			}
		}
		if n := current.Factors.MVPBlockingCount; !current.Ready && n > 0 {
			e.raise(0.6, fmt.Sprintf("Story has %d MVP-blocking gap(s) preventing readiness", n))
			e.AffectedItems = append(e.AffectedItems, current.CriticalRecommendationIDs()...)
		}
	}

	if removed := findingsWhere(rev, bySectionChange(delta.SectionNonGoals, delta.ChangeRemoved)); len(removed) > 0 {
		e.raise(0.5, fmt.Sprintf("%d non-goal(s) removed - potential scope expansion", len(removed)))
		e.AffectedItems = append(e.AffectedItems, itemIDs(removed)...)
	}

	if added := findingsWhere(rev, bySectionChange(delta.SectionAcceptanceCriteria, delta.ChangeAdded)); len(added) > 2 {
		e.raise(0.4, fmt.Sprintf("%d new AC(s) added - review scope expansion", len(added)))
	}
	return e
}

// EvaluateConsistency fires on explicit consistency findings, removed
// constraints, a lopsided AC to test hint ratio, blocking unknowns on a
// story scored ready, or dependencies without any constraints.
func EvaluateConsistency(rev *delta.ReviewResult, story *types.Story, current *readiness.Result) Evaluation {
	e := newEvaluation(TriggerConsistencyViolation)
	if rev == nil || story == nil {
		e.Evidence = append(e.Evidence, "Insufficient data for consistency evaluation")
		return e
	}

	if found := findingsWhere(rev, byCategory(delta.CategoryConsistency)); len(found) > 0 {
		e.raise(math.Min(0.9, 0.5+float64(len(found))*0.2),
			fmt.Sprintf("%d explicit consistency finding(s)", len(found)))
		e.AffectedItems = append(e.AffectedItems, itemIDs(found)...)
	}

	if removed := findingsWhere(rev, bySectionChange(delta.SectionConstraints, delta.ChangeRemoved)); len(removed) > 0 {
		e.raise(0.7, fmt.Sprintf("%d constraint(s) removed - may violate baseline consistency", len(removed)))
		e.AffectedItems = append(e.AffectedItems, itemIDs(removed)...)
	}

	acs, hints := len(story.AcceptanceCriteria), len(story.TestHints)
	if acs > hints*2 && acs > 5 {
		e.raise(0.4, fmt.Sprintf("AC to test hint ratio imbalanced: %d ACs vs %d test hints", acs, hints))
	}

	if current != nil && current.Ready {
		var blocking []string
		for _, ku := range story.KnownUnknowns {
			if ku.Impact == types.ImpactBlocking {
				blocking = append(blocking, ku.ID)
			}
		}
		if len(blocking) > 0 {
			e.raise(0.6, fmt.Sprintf("Story marked ready but has %d blocking unknown(s) - inconsistent state", len(blocking)))
			e.AffectedItems = append(e.AffectedItems, blocking...)
		}
	}

	if len(story.Dependencies) > 0 && len(story.Constraints) == 0 {
		deps := findingsWhere(rev, func(f delta.Finding) bool { return f.Section == delta.SectionDependencies })
		if len(deps) > 0 {
			e.raise(0.3, fmt.Sprintf("%d dependency(ies) present but no constraints - review alignment",
				len(story.Dependencies)))
		}
	}
	return e
}
