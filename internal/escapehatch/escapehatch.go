package escapehatch

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/gaps"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

// ErrNoStory is returned by EvaluateStrict without a story
var ErrNoStory = errors.New("story is required for escape hatch evaluation")

// Trigger is a risk signal that can widen review beyond the changed sections
type Trigger string

const (
	TriggerAttackImpact         Trigger = "attack_impact"
	TriggerCrossCutting         Trigger = "cross_cutting"
	TriggerScopeExpansion       Trigger = "scope_expansion"
	TriggerConsistencyViolation Trigger = "consistency_violation"
)

// AllTriggers lists every trigger in evaluation order
var AllTriggers = []Trigger{
	TriggerAttackImpact,
	TriggerCrossCutting,
	TriggerScopeExpansion,
	TriggerConsistencyViolation,
}

// Stakeholder is a reviewer role pulled in when the hatch opens
type Stakeholder string

const (
	StakeholderAttacker  Stakeholder = "attacker"
	StakeholderArchitect Stakeholder = "architect"
	StakeholderPM        Stakeholder = "pm"
	StakeholderUIUX      Stakeholder = "uiux"
	StakeholderQA        Stakeholder = "qa"
)

// Evaluation is the outcome of checking one trigger
type Evaluation struct {
	Trigger       Trigger  `json:"trigger"`
	Detected      bool     `json:"detected"`
	Confidence    float64  `json:"confidence"` // 0.0-1.0
	Evidence      []string `json:"evidence"`
	AffectedItems []string `json:"affected_items"`
}

func newEvaluation(t Trigger) Evaluation {
	return Evaluation{Trigger: t, Evidence: []string{}, AffectedItems: []string{}}
}

// ReviewScope tells targeted review what to look at
type ReviewScope struct {
	Sections   []delta.Section `json:"sections"`
	Items      []string        `json:"items"`
	FullReview bool            `json:"full_review"`
	Priority   int             `json:"priority"` // 1 (urgent) to 3
	Reason     string          `json:"reason"`
}

// Input is everything one escape hatch evaluation reads. Only Story is
// required; missing signals simply cannot fire their triggers.
type Input struct {
	Story     *types.Story
	Review    *delta.ReviewResult
	Attack    *gaps.AttackAnalysis
	Readiness *readiness.Result

	// PreviousScore is the readiness score of the prior iteration
	PreviousScore *int
}

// Result is the escape hatch verdict
type Result struct {
	StoryID           string        `json:"story_id"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
	Triggered         bool          `json:"triggered"`
	TriggersActivated []Trigger     `json:"triggers_activated"`
	Evaluations       []Evaluation  `json:"evaluations"`
	ReviewScope       *ReviewScope  `json:"review_scope"` // nil unless triggered
	Stakeholders      []Stakeholder `json:"stakeholders_to_involve"`
	Confidence        float64       `json:"confidence"`
	Summary           string        `json:"summary"`

	Evaluated bool   `json:"evaluated"`
	Error     string `json:"error,omitempty"`
}

// EvaluateStrict runs every enabled trigger. A trigger is active when it is
// detected with at least TriggerThreshold confidence; the hatch opens when
// at least MinTriggers are active. Overall confidence is the mean over
// detected triggers, active or not.
func EvaluateStrict(in Input, cfg Config) (*Result, error) {
	if in.Story == nil {
		return nil, ErrNoStory
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escape hatch config: %w", err)
	}

	var evals []Evaluation
	if cfg.EvaluateAttackImpact {
		evals = append(evals, EvaluateAttackImpact(in.Attack, in.Review))
	}
	if cfg.EvaluateCrossCutting {
		evals = append(evals, EvaluateCrossCutting(in.Review, in.Story, cfg))
	}
	if cfg.EvaluateScopeExpansion {
		evals = append(evals, EvaluateScopeExpansion(in.Review, in.Readiness, in.PreviousScore, cfg))
	}
	if cfg.EvaluateConsistency {
		evals = append(evals, EvaluateConsistency(in.Review, in.Story, in.Readiness))
	}

	active := []Trigger{}
	detected, sum := 0, 0.0
	for _, e := range evals {
		if !e.Detected {
			continue
		}
		detected++
		sum += e.Confidence
		if e.Confidence >= cfg.TriggerThreshold {
			active = append(active, e.Trigger)
		}
	}
	confidence := 0.0
	if detected > 0 {
		confidence = round2(sum / float64(detected))
	}

	res := &Result{
		StoryID:           in.Story.ID,
		EvaluatedAt:       time.Now(),
		Triggered:         len(active) >= cfg.MinTriggers,
		TriggersActivated: active,
		Evaluations:       evals,
		Stakeholders:      []Stakeholder{},
		Confidence:        confidence,
		Evaluated:         true,
	}
	if res.Triggered {
		res.Stakeholders = Stakeholders(evals, in.Review, in.Attack)
		scope := DetermineScope(evals)
		res.ReviewScope = &scope
	}
	res.Summary = summarize(res, detected)
	return res, nil
}

// Evaluate is EvaluateStrict that never returns an error: failures are
// reported through Evaluated and Error, and a failed evaluation never
// triggers.
func Evaluate(in Input, cfg Config) (res *Result) {
	failed := func(msg string) *Result {
		r := &Result{
			StoryID:           "unknown",
			EvaluatedAt:       time.Now(),
			TriggersActivated: []Trigger{},
			Stakeholders:      []Stakeholder{},
			Summary:           "Escape hatch evaluation failed: " + msg,
			Error:             msg,
		}
		if in.Story != nil {
			r.StoryID = in.Story.ID
		}
		return r
	}
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Sprintf("%v", r))
		}
	}()

	res, err := EvaluateStrict(in, cfg)
	if err != nil {
		if errors.Is(err, ErrNoStory) {
			r := failed("Story is required for escape hatch evaluation")
			r.Summary = "Escape hatch evaluation failed: No story provided"
			return r
		}
		return failed(err.Error())
	}
	return res
}

// Stakeholders picks reviewers for every detected trigger. QA is always
// involved when the delta review found critical or major issues.
func Stakeholders(evals []Evaluation, rev *delta.ReviewResult, attack *gaps.AttackAnalysis) []Stakeholder {
	var out []Stakeholder
	seen := make(map[Stakeholder]bool)
	add := func(s Stakeholder) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, e := range evals {
		if !e.Detected {
			continue
		}
		switch e.Trigger {
		case TriggerAttackImpact:
			add(StakeholderAttacker)
			if attack != nil && hasSecurityEdgeCase(attack) {
				add(StakeholderArchitect)
			}
		case TriggerCrossCutting:
			add(StakeholderArchitect)
			if anyContains(e.AffectedItems, true, string(delta.SectionAcceptanceCriteria),
				string(delta.SectionNonGoals), "ui", "ux") {
				add(StakeholderUIUX)
			}
		case TriggerScopeExpansion:
			add(StakeholderPM)
			if anyContains(e.Evidence, false, "readiness", "blocking") {
				add(StakeholderQA)
			}
		case TriggerConsistencyViolation:
			add(StakeholderQA)
			if anyContains(e.Evidence, false, "constraint") {
				add(StakeholderArchitect)
			}
		}
	}
	if rev != nil && (rev.BySeverity.Critical > 0 || rev.BySeverity.Major > 0) {
		add(StakeholderQA)
	}
	if out == nil {
		out = []Stakeholder{}
	}
	return out
}

func hasSecurityEdgeCase(a *gaps.AttackAnalysis) bool {
	for _, ec := range a.EdgeCases {
		if ec.Category == gaps.EdgeSecurity {
			return true
		}
	}
	return false
}

func anyContains(values []string, fold bool, needles ...string) bool {
	for _, v := range values {
		if fold {
			v = strings.ToLower(v)
		}
		for _, n := range needles {
			if strings.Contains(v, n) {
				return true
			}
		}
	}
	return false
}

// DetermineScope merges the affected items of every detected trigger into a
// review scope. Items naming a story section put that section in scope.
func DetermineScope(evals []Evaluation) ReviewScope {
	var detected []Evaluation
	for _, e := range evals {
		if e.Detected {
			detected = append(detected, e)
		}
	}
	if len(detected) == 0 {
		return ReviewScope{
			Sections: []delta.Section{},
			Items:    []string{},
			Priority: 3,
			Reason:   "No escape hatch triggers detected - delta review is sufficient",
		}
	}

	scope := ReviewScope{Sections: []delta.Section{}, Items: []string{}}
	seenItem := make(map[string]bool)
	seenSection := make(map[delta.Section]bool)
	maxConfidence := 0.0
	kinds := make(map[Trigger]bool)
	var names []string

	for _, e := range detected {
		maxConfidence = math.Max(maxConfidence, e.Confidence)
		if !kinds[e.Trigger] {
			kinds[e.Trigger] = true
			names = append(names, string(e.Trigger))
		}
		for _, item := range e.AffectedItems {
			if !seenItem[item] {
				seenItem[item] = true
				scope.Items = append(scope.Items, item)
			}
			if s, ok := sectionOf(item); ok && !seenSection[s] {
				seenSection[s] = true
				scope.Sections = append(scope.Sections, s)
			}
		}
	}

	scope.FullReview = len(kinds) >= 3 ||
		maxConfidence >= 0.85 ||
		len(scope.Sections) >= 5 ||
		(kinds[TriggerAttackImpact] && kinds[TriggerConsistencyViolation])

	scope.Priority = 2
	switch {
	case maxConfidence >= 0.8 || kinds[TriggerAttackImpact]:
		scope.Priority = 1
	case maxConfidence < 0.5 && len(detected) == 1:
		scope.Priority = 3
	}

	triggerNames := strings.Join(names, ", ")
	if scope.FullReview {
		scope.Reason = fmt.Sprintf("Full review required: %s trigger(s) with %.0f%% confidence",
			triggerNames, math.Round(maxConfidence*100))
	} else {
		scope.Reason = fmt.Sprintf("Targeted review needed for %d section(s): %s",
			len(scope.Sections), triggerNames)
	}
	return scope
}

// sectionOf finds the first story section named inside an affected item
func sectionOf(item string) (delta.Section, bool) {
	lower := strings.ToLower(item)
	for _, s := range delta.AllSections {
		if strings.Contains(lower, string(s)) {
			return s, true
		}
	}
	return "", false
}

func summarize(r *Result, detected int) string {
	parts := []string{fmt.Sprintf("Escape hatch evaluation for %s:", r.StoryID)}
	if !r.Triggered {
		if detected == 0 {
			parts = append(parts, "No triggers detected - delta review is sufficient.")
		} else {
			parts = append(parts, fmt.Sprintf("%d trigger(s) detected but below threshold - delta review is sufficient.", detected))
		}
		return strings.Join(parts, " ")
	}

	names := make([]string, len(r.TriggersActivated))
	for i, t := range r.TriggersActivated {
		names[i] = string(t)
	}
	parts = append(parts,
		fmt.Sprintf("TRIGGERED with %d active trigger(s):", len(r.TriggersActivated)),
		strings.Join(names, ", ")+".")
	if len(r.Stakeholders) > 0 {
		roles := make([]string, len(r.Stakeholders))
		for i, s := range r.Stakeholders {
			roles[i] = string(s)
		}
		parts = append(parts, fmt.Sprintf("Stakeholders to involve: %s.", strings.Join(roles, ", ")))
	}
	if s := r.ReviewScope; s != nil {
		if s.FullReview {
			parts = append(parts, fmt.Sprintf("Full story re-review required (priority %d).", s.Priority))
		} else {
			parts = append(parts, fmt.Sprintf("Targeted review of %d section(s) required (priority %d).",
				len(s.Sections), s.Priority))
		}
	}
	return strings.Join(parts, " ")
}
