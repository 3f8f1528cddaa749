package elaboration

import (
	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/escapehatch"
	"github.com/steveyegge/elab/internal/gaps"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

// Flag records that a step of the run has happened. Flags are only ever set.
type Flag uint16

const (
	FlagPreviousLoaded Flag = 1 << iota
	FlagDeltaDetected
	FlagDeltaReviewed
	FlagEscapeHatchEvaluated
	FlagEscapeHatchTriggered
	FlagTargetedReviewed
	FlagAggregated
	FlagReadinessUpdated
)

// State is the working memory of one elaboration run. It is a value: nodes
// read a snapshot and describe their changes as an Update, which Apply
// merges into a new State.
type State struct {
	RunID  string
	Phase  Phase
	Config Config

	Current           *types.Story
	Previous          *types.Story
	PreviousIteration int
	CurrentIteration  int

	// Inputs produced upstream of the run
	Attack            *gaps.AttackAnalysis
	RankedGaps        []types.RankedGap
	Baseline          *types.Baseline
	Context           *types.RetrievedContext
	PreviousReadiness *readiness.Result

	Detection        *delta.DetectionResult
	Review           *delta.ReviewResult
	EscapeHatch      *escapehatch.Result
	TargetedFindings []string
	Aggregated       *AggregatedFindings
	Readiness        *readiness.Result

	Flags    Flag
	Warnings []string
	Errors   []string
}

// Has reports whether every flag in f is set
func (s State) Has(f Flag) bool {
	return s.Flags&f == f
}

// StoryID returns the id of the story being elaborated
func (s State) StoryID() string {
	if s.Current == nil {
		return ""
	}
	return s.Current.ID
}

// Iterations numbers the two story versions being compared
type Iterations struct {
	Previous int
	Current  int
}

// Update is the partial state a node returns. Nil and empty fields leave
// the state untouched. Warnings and Errors are appended.
type Update struct {
	// Phase set to PhaseError halts the run. Nodes leave it empty to let
	// the transition function advance.
	Phase Phase

	Previous   *types.Story
	Iterations *Iterations

	Detection        *delta.DetectionResult
	Review           *delta.ReviewResult
	EscapeHatch      *escapehatch.Result
	TargetedFindings []string
	Aggregated       *AggregatedFindings
	Readiness        *readiness.Result

	Flags    Flag
	Warnings []string
	Errors   []string
}

// Apply returns a new State with u merged in. The receiver is not modified
// and the returned State shares no slice storage with it.
func (s State) Apply(u Update) State {
	next := s
	if u.Phase != "" {
		next.Phase = u.Phase
	}
	if u.Previous != nil {
		next.Previous = u.Previous
	}
	if u.Iterations != nil {
		next.PreviousIteration = u.Iterations.Previous
		next.CurrentIteration = u.Iterations.Current
	}
	if u.Detection != nil {
		next.Detection = u.Detection
	}
	if u.Review != nil {
		next.Review = u.Review
	}
	if u.EscapeHatch != nil {
		next.EscapeHatch = u.EscapeHatch
	}
	if u.TargetedFindings != nil {
		next.TargetedFindings = concat(nil, u.TargetedFindings)
	}
	if u.Aggregated != nil {
		next.Aggregated = u.Aggregated
	}
	if u.Readiness != nil {
		next.Readiness = u.Readiness
	}
	next.Flags |= u.Flags
	next.Warnings = concat(s.Warnings, u.Warnings)
	next.Errors = concat(s.Errors, u.Errors)
	return next
}

func concat(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// failure is the update that moves a run to the error phase
func failure(msg string) Update {
	return Update{Phase: PhaseError, Errors: []string{msg}}
}
