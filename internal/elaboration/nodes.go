package elaboration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/escapehatch"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

var (
	// ErrNoStory is returned when a node needs the current story and there is none
	ErrNoStory = errors.New("no current story available")
	// ErrNoStoryID is returned when the current story has an empty id
	ErrNoStoryID = errors.New("no story id provided")
	// ErrNoDetection is returned when delta review runs without a detection result
	ErrNoDetection = errors.New("no delta detection result available")
)

// Node executes one phase. It reads a snapshot of the state and returns the
// changes to make. A returned error is a precondition failure.
type Node func(ctx context.Context, s State) (Update, error)

// Graph maps every non-terminal phase to its node
type Graph map[Phase]Node

// SnapshotLoader finds the most recently elaborated version of a story.
// It returns a nil story when there is none.
type SnapshotLoader interface {
	LatestSnapshot(ctx context.Context, storyID string) (*types.Story, int, error)
}

// StrictGraph returns nodes that report missing preconditions as errors so
// the caller can apply its own retry policy. loader may be nil.
func StrictGraph(loader SnapshotLoader) Graph {
	return Graph{
		PhaseLoadPrevious:    loadPrevious(loader),
		PhaseDeltaDetect:     detectDeltas,
		PhaseDeltaReview:     reviewDeltas,
		PhaseEscapeHatch:     evaluateEscapeHatch,
		PhaseTargetedReview:  targetedReview,
		PhaseAggregate:       aggregate,
		PhaseUpdateReadiness: updateReadiness,
	}
}

// DefaultGraph returns nodes that never fail: a missing precondition moves
// the run to the error phase with the message appended to Errors.
func DefaultGraph(loader SnapshotLoader) Graph {
	g := StrictGraph(loader)
	for phase, node := range g {
		g[phase] = Graceful(node)
	}
	return g
}

// Graceful converts the errors of a node into an error-phase update
func Graceful(node Node) Node {
	return func(ctx context.Context, s State) (Update, error) {
		u, err := node(ctx, s)
		if err != nil {
			return failure(err.Error()), nil
		}
		return u, nil
	}
}

func requireStory(phase Phase, s State) error {
	if s.Current == nil {
		return fmt.Errorf("%s: %w", phase, ErrNoStory)
	}
	return nil
}

func loadPrevious(loader SnapshotLoader) Node {
	return func(ctx context.Context, s State) (Update, error) {
		if err := requireStory(PhaseLoadPrevious, s); err != nil {
			return Update{}, err
		}
		if s.Current.ID == "" {
			return Update{}, fmt.Errorf("%s: %w", PhaseLoadPrevious, ErrNoStoryID)
		}
		if s.Previous != nil {
			return Update{Flags: FlagPreviousLoaded}, nil
		}

		var u Update
		if loader != nil {
			prev, iteration, err := loader.LatestSnapshot(ctx, s.Current.ID)
			switch {
			case err != nil:
				u.Warnings = append(u.Warnings, fmt.Sprintf("Failed to load previous story version: %v", err))
			case prev != nil:
				return Update{
					Previous:   prev,
					Iterations: &Iterations{Previous: iteration, Current: iteration + 1},
					Flags:      FlagPreviousLoaded,
				}, nil
			}
		}
		u.Warnings = append(u.Warnings, "No previous story version provided - initial elaboration")
		return u, nil
	}
}

func detectDeltas(_ context.Context, s State) (Update, error) {
	if err := requireStory(PhaseDeltaDetect, s); err != nil {
		return Update{}, err
	}
	res := delta.DetectDeltas(s.Previous, s.Current, s.PreviousIteration, s.CurrentIteration, s.Config.Detect)
	if !res.Detected {
		return Update{Detection: res, Warnings: []string{orDefault(res.Error, "Delta detection failed")}}, nil
	}
	return Update{Detection: res, Flags: FlagDeltaDetected}, nil
}

func reviewDeltas(_ context.Context, s State) (Update, error) {
	if s.Detection == nil {
		return Update{}, fmt.Errorf("%s: %w", PhaseDeltaReview, ErrNoDetection)
	}
	if err := requireStory(PhaseDeltaReview, s); err != nil {
		return Update{}, err
	}
	if !s.Detection.Detected {
		return Update{Warnings: []string{"Skipping delta review: delta detection did not complete"}}, nil
	}
	if s.Detection.Stats.TotalChanges == 0 {
		return Update{Warnings: []string{"Delta detection found no changes"}}, nil
	}

	res := delta.ReviewDeltas(s.Detection, s.Current, s.Config.Review)
	if !res.Reviewed {
		return Update{Review: res, Warnings: []string{orDefault(res.Error, "Delta review failed")}}, nil
	}
	return Update{Review: res, Flags: FlagDeltaReviewed}, nil
}

// provisionalReadiness scores the story from the run's upstream inputs so
// the escape hatch can compare against the previous iteration
func provisionalReadiness(s State) *readiness.Result {
	return readiness.Calculate(readiness.Input{
		Story:      s.Current,
		Baseline:   s.Baseline,
		Context:    s.Context,
		RankedGaps: s.RankedGaps,
	}, s.Config.Readiness)
}

func evaluateEscapeHatch(_ context.Context, s State) (Update, error) {
	if err := requireStory(PhaseEscapeHatch, s); err != nil {
		return Update{}, err
	}

	var previousScore *int
	if p := s.PreviousReadiness; p != nil && p.Analyzed {
		score := p.Score
		previousScore = &score
	}
	res := escapehatch.Evaluate(escapehatch.Input{
		Story:         s.Current,
		Review:        s.Review,
		Attack:        s.Attack,
		Readiness:     provisionalReadiness(s),
		PreviousScore: previousScore,
	}, s.Config.EscapeHatch)

	if !res.Evaluated {
		return Update{EscapeHatch: res, Warnings: []string{orDefault(res.Error, "Escape hatch evaluation failed")}}, nil
	}
	u := Update{EscapeHatch: res, Flags: FlagEscapeHatchEvaluated}
	if res.Triggered {
		u.Flags |= FlagEscapeHatchTriggered
	}
	return u, nil
}

func targetedReview(_ context.Context, s State) (Update, error) {
	if !s.Has(FlagEscapeHatchTriggered) {
		return Update{}, nil
	}
	hatch := s.EscapeHatch
	if hatch == nil || hatch.ReviewScope == nil {
		return Update{Warnings: []string{"No review scope determined for targeted review"}}, nil
	}

	scope := hatch.ReviewScope
	var findings []string
	if scope.FullReview {
		findings = append(findings, "Full story review required due to escape hatch triggers")
	}
	if len(scope.Sections) > 0 {
		names := make([]string, len(scope.Sections))
		for i, sec := range scope.Sections {
			names[i] = string(sec)
		}
		findings = append(findings, "Targeted review needed for sections: "+strings.Join(names, ", "))
	}
	if len(hatch.Stakeholders) > 0 {
		roles := make([]string, len(hatch.Stakeholders))
		for i, r := range hatch.Stakeholders {
			roles[i] = string(r)
		}
		findings = append(findings, "Stakeholders to involve: "+strings.Join(roles, ", "))
	}
	findings = append(findings,
		fmt.Sprintf("Review priority: %d", scope.Priority),
		"Review reason: "+scope.Reason)

	return Update{TargetedFindings: findings, Flags: FlagTargetedReviewed}, nil
}

func aggregate(_ context.Context, s State) (Update, error) {
	agg := Aggregate(s.StoryID(), s.Detection, s.Review, s.EscapeHatch)
	return Update{Aggregated: agg, Flags: FlagAggregated}, nil
}

func updateReadiness(_ context.Context, s State) (Update, error) {
	if !s.Config.RecalculateReadiness {
		return Update{}, nil
	}
	if s.Current == nil {
		return Update{Warnings: []string{"No current story available for readiness update"}}, nil
	}

	res := provisionalReadiness(s)
	if !res.Analyzed {
		return Update{Warnings: []string{orDefault(res.Error, "Readiness update failed")}}, nil
	}
	return Update{Readiness: res, Flags: FlagReadinessUpdated}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
