package elaboration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/escapehatch"
	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/gaps"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

// ErrNodeTimeout is returned when a node runs longer than Config.NodeTimeout
var ErrNodeTimeout = errors.New("node timed out")

// Store persists the outcome of completed runs. It also serves as the
// source of previous story versions for load_previous.
type Store interface {
	SnapshotLoader

	// SaveElaboration records a completed run together with the story
	// version it analyzed
	SaveElaboration(ctx context.Context, res *Result, story *types.Story) error

	// SetStoryState moves the story to its post-elaboration workflow state
	SetStoryState(ctx context.Context, storyID string, state types.WorkflowState, reason string) error
}

// Input is one elaboration request. Only Current is required.
type Input struct {
	Current  *types.Story
	Previous *types.Story

	// Iterations overrides the default numbering: 1 and 2 when Previous is
	// given, 0 and 1 otherwise
	Iterations *Iterations

	// Attack is the attack analysis of the current story, if one ran
	Attack *gaps.AttackAnalysis

	// RankedGaps is the gap hygiene output for the current story. Nil means
	// hygiene never ran.
	RankedGaps []types.RankedGap

	Baseline *types.Baseline
	Context  *types.RetrievedContext

	// PreviousReadiness is the readiness result of the prior iteration
	PreviousReadiness *readiness.Result
}

// Result is the outcome of one elaboration run
type Result struct {
	RunID   string `json:"run_id"`
	StoryID string `json:"story_id"`
	Phase   Phase  `json:"phase"`
	Success bool   `json:"success"`

	PreviousIteration int `json:"previous_iteration"`
	CurrentIteration  int `json:"current_iteration"`

	Detection        *delta.DetectionResult `json:"delta_detection,omitempty"`
	Review           *delta.ReviewResult    `json:"delta_review,omitempty"`
	EscapeHatch      *escapehatch.Result    `json:"escape_hatch,omitempty"`
	TargetedFindings []string               `json:"targeted_findings,omitempty"`
	Aggregated       *AggregatedFindings    `json:"aggregated_findings,omitempty"`
	Readiness        *readiness.Result      `json:"updated_readiness,omitempty"`

	PreviousReadinessScore *int `json:"previous_readiness_score"`
	NewReadinessScore      *int `json:"new_readiness_score"`

	Warnings    []string      `json:"warnings"`
	Errors      []string      `json:"errors"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// WorkflowState is the state the story should move to after this run
func (r *Result) WorkflowState() (types.WorkflowState, string) {
	if r.Success {
		return types.WorkflowReadyToWork, "Passed elaboration"
	}
	issues := 0
	if r.Aggregated != nil {
		issues = r.Aggregated.TotalFindings
	}
	return types.WorkflowBacklog, fmt.Sprintf("Elaboration found %d issue(s) requiring attention", issues)
}

// Orchestrator sequences the phases of an elaboration run
type Orchestrator struct {
	config    Config
	store     Store
	events    events.EventStore
	logger    *slog.Logger
	overrides map[Phase]Node
}

// NewOrchestrator creates an orchestrator. store and eventStore are
// optional; a nil config means DefaultConfig. The config is validated here
// so an invalid one fails before any node executes.
func NewOrchestrator(store Store, eventStore events.EventStore, config *Config, logger *slog.Logger) (*Orchestrator, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid elaboration config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config:    cfg,
		store:     store,
		events:    eventStore,
		logger:    logger,
		overrides: make(map[Phase]Node),
	}, nil
}

// SetNode replaces the node that runs for a phase
func (o *Orchestrator) SetNode(phase Phase, node Node) {
	o.overrides[phase] = node
}

// Run executes one elaboration iteration. It never returns an error:
// precondition failures, timeouts and panics end the run in the error
// phase with the messages in Result.Errors.
func (o *Orchestrator) Run(ctx context.Context, in Input) *Result {
	res, _ := o.run(ctx, in, false)
	return res
}

// RunStrict is Run with strict nodes: the first node failure is also
// returned as an error so the caller can retry.
func (o *Orchestrator) RunStrict(ctx context.Context, in Input) (*Result, error) {
	return o.run(ctx, in, true)
}

func (o *Orchestrator) graph(strict bool) Graph {
	var loader SnapshotLoader
	if o.store != nil {
		loader = o.store
	}
	g := DefaultGraph(loader)
	if strict {
		g = StrictGraph(loader)
	}
	for phase, node := range o.overrides {
		if !strict {
			node = Graceful(node)
		}
		g[phase] = node
	}
	return g
}

func (o *Orchestrator) initialState(in Input) State {
	s := State{
		RunID:             uuid.New().String(),
		Phase:             PhaseLoadPrevious,
		Config:            o.config,
		Current:           in.Current,
		Previous:          in.Previous,
		Attack:            in.Attack,
		RankedGaps:        in.RankedGaps,
		Baseline:          in.Baseline,
		Context:           in.Context,
		PreviousReadiness: in.PreviousReadiness,
		CurrentIteration:  1,
	}
	if in.Previous != nil {
		s.PreviousIteration, s.CurrentIteration = 1, 2
	}
	if in.Iterations != nil {
		s.PreviousIteration, s.CurrentIteration = in.Iterations.Previous, in.Iterations.Current
	}
	return s
}

func (o *Orchestrator) run(ctx context.Context, in Input, strict bool) (*Result, error) {
	start := time.Now()
	graph := o.graph(strict)
	state := o.initialState(in)
	log := o.logger.With("run", state.RunID, "story", state.StoryID())

	o.emit(ctx, events.NewSimpleEvent(events.EventTypeRunStarted, state.StoryID(), state.RunID,
		events.SeverityInfo, fmt.Sprintf("Elaboration started for %s", state.StoryID())))

	var runErr error
	for !state.Phase.IsTerminal() {
		phase := state.Phase
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("elaboration cancelled before %s: %w", phase, err)
			state = state.Apply(failure(runErr.Error()))
			break
		}

		nodeStart := time.Now()
		u, err := o.runNode(ctx, phase, graph[phase], state)
		elapsed := time.Since(nodeStart)
		if err != nil {
			runErr = err
			state = state.Apply(failure(err.Error()))
			log.Warn("phase failed", "phase", phase, "error", err, "duration", elapsed)
			o.emitPhase(ctx, state, phase, elapsed, err.Error())
			break
		}

		state = state.Apply(u)
		state.Phase = Next(phase, state)
		if state.Phase == PhaseError {
			msg := lastOr(state.Errors, "node moved run to error phase")
			log.Warn("phase failed", "phase", phase, "error", msg, "duration", elapsed)
			o.emitPhase(ctx, state, phase, elapsed, msg)
			break
		}
		log.Debug("phase completed", "phase", phase, "next", state.Phase, "duration", elapsed)
		o.emitPhase(ctx, state, phase, elapsed, "")
		o.emitOutcome(ctx, state, phase)
	}

	res := buildResult(state)
	res.Duration = time.Since(start)
	res.CompletedAt = time.Now()
	if res.Phase == PhaseComplete {
		o.persist(ctx, res, state.Current)
	}

	severity := events.SeverityInfo
	if !res.Success {
		severity = events.SeverityWarning
	}
	o.emit(ctx, events.NewSimpleEvent(events.EventTypeRunCompleted, res.StoryID, res.RunID, severity,
		fmt.Sprintf("Elaboration finished in phase %s (success=%v)", res.Phase, res.Success)))
	log.Info("elaboration finished", "phase", res.Phase, "success", res.Success,
		"warnings", len(res.Warnings), "errors", len(res.Errors), "duration", res.Duration)

	if strict && runErr != nil {
		return res, runErr
	}
	return res, nil
}

// runNode executes one node under the per-node timeout. Panics and
// timeouts become errors.
func (o *Orchestrator) runNode(ctx context.Context, phase Phase, node Node, s State) (Update, error) {
	if node == nil {
		return Update{}, fmt.Errorf("%s: no node registered", phase)
	}

	nodeCtx, cancel := context.WithTimeout(ctx, o.config.NodeTimeout)
	defer cancel()

	type outcome struct {
		update Update
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s: node panicked: %v", phase, r)}
			}
		}()
		u, err := node(nodeCtx, s)
		done <- outcome{update: u, err: err}
	}()

	select {
	case out := <-done:
		return out.update, out.err
	case <-nodeCtx.Done():
		if ctx.Err() == nil {
			return Update{}, fmt.Errorf("%s: %w after %v", phase, ErrNodeTimeout, o.config.NodeTimeout)
		}
		return Update{}, fmt.Errorf("%s: %w", phase, ctx.Err())
	}
}

func buildResult(s State) *Result {
	res := &Result{
		RunID:             s.RunID,
		StoryID:           s.StoryID(),
		Phase:             s.Phase,
		PreviousIteration: s.PreviousIteration,
		CurrentIteration:  s.CurrentIteration,
		Detection:         s.Detection,
		Review:            s.Review,
		EscapeHatch:       s.EscapeHatch,
		TargetedFindings:  s.TargetedFindings,
		Aggregated:        s.Aggregated,
		Readiness:         s.Readiness,
		Warnings:          concat(nil, s.Warnings),
		Errors:            concat(nil, s.Errors),
	}
	res.Success = s.Phase == PhaseComplete && s.Aggregated != nil && s.Aggregated.Passed
	if p := s.PreviousReadiness; p != nil && p.Analyzed {
		score := p.Score
		res.PreviousReadinessScore = &score
	}
	if s.Readiness != nil {
		score := s.Readiness.Score
		res.NewReadinessScore = &score
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res
}

// persist saves a completed run and moves the story to its workflow state.
// Storage failures are warnings; they never fail the run.
func (o *Orchestrator) persist(ctx context.Context, res *Result, story *types.Story) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveElaboration(ctx, res, story); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Failed to save elaboration: %v", err))
		return
	}
	state, reason := res.WorkflowState()
	if err := o.store.SetStoryState(ctx, res.StoryID, state, reason); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Failed to update story state: %v", err))
		return
	}
	if ev, err := events.NewStoryStateEvent(res.StoryID, res.RunID,
		fmt.Sprintf("Story %s moved to %s", res.StoryID, state),
		events.StoryStateData{State: string(state), Reason: reason}); err == nil {
		o.emit(ctx, ev)
	}
}

func (o *Orchestrator) emit(ctx context.Context, ev *events.PipelineEvent) {
	if o.events == nil || ev == nil {
		return
	}
	if err := o.events.StoreEvent(ctx, ev); err != nil {
		o.logger.Warn("failed to store event", "type", ev.Type, "story", ev.StoryID, "error", err)
	}
}

func (o *Orchestrator) emitPhase(ctx context.Context, s State, phase Phase, elapsed time.Duration, failMsg string) {
	if o.events == nil {
		return
	}
	eventType, severity := events.EventTypePhaseCompleted, events.SeverityInfo
	msg := fmt.Sprintf("Phase %s completed", phase)
	if failMsg != "" {
		eventType, severity = events.EventTypePhaseFailed, events.SeverityError
		msg = fmt.Sprintf("Phase %s failed: %s", phase, failMsg)
	}
	ev, err := events.NewPhaseEvent(eventType, s.StoryID(), s.RunID, severity, msg, events.PhaseData{
		Phase:     string(phase),
		NextPhase: string(s.Phase),
		Duration:  elapsed,
		Error:     failMsg,
	})
	if err != nil {
		o.logger.Warn("failed to build phase event", "phase", phase, "error", err)
		return
	}
	o.emit(ctx, ev)
}

// emitOutcome records the domain result a phase produced, if any
func (o *Orchestrator) emitOutcome(ctx context.Context, s State, phase Phase) {
	if o.events == nil {
		return
	}
	var (
		ev  *events.PipelineEvent
		err error
	)
	switch {
	case phase == PhaseDeltaDetect && s.Has(FlagDeltaDetected):
		st := s.Detection.Stats
		ev, err = events.NewDeltaDetectedEvent(s.StoryID(), s.RunID, s.Detection.Summary, events.DeltaDetectedData{
			PreviousIteration: s.PreviousIteration,
			CurrentIteration:  s.CurrentIteration,
			TotalChanges:      st.TotalChanges,
			Added:             st.AddedCount,
			Modified:          st.ModifiedCount,
			Removed:           st.RemovedCount,
			Substantial:       st.HasSubstantialChanges,
		})
	case phase == PhaseDeltaReview && s.Has(FlagDeltaReviewed):
		sections := make([]string, len(s.Review.SectionsReviewed))
		for i, sec := range s.Review.SectionsReviewed {
			sections[i] = string(sec)
		}
		ev, err = events.NewDeltaReviewedEvent(s.StoryID(), s.RunID, s.Review.Summary, events.DeltaReviewedData{
			SectionsReviewed: sections,
			Findings:         len(s.Review.Findings),
			Critical:         s.Review.BySeverity.Critical,
			Major:            s.Review.BySeverity.Major,
			Passed:           s.Review.Passed,
		})
	case phase == PhaseEscapeHatch && s.Has(FlagEscapeHatchTriggered):
		h := s.EscapeHatch
		data := events.EscapeHatchData{Confidence: h.Confidence}
		for _, t := range h.TriggersActivated {
			data.Triggers = append(data.Triggers, string(t))
		}
		for _, r := range h.Stakeholders {
			data.Stakeholders = append(data.Stakeholders, string(r))
		}
		if h.ReviewScope != nil {
			data.FullReview = h.ReviewScope.FullReview
			data.Priority = h.ReviewScope.Priority
		}
		ev, err = events.NewEscapeHatchEvent(s.StoryID(), s.RunID, h.Summary, data)
	case phase == PhaseUpdateReadiness && s.Has(FlagReadinessUpdated):
		r := s.Readiness
		data := events.ReadinessScoredData{
			Score:      r.Score,
			Threshold:  r.Threshold,
			Ready:      r.Ready,
			Confidence: string(r.Confidence),
		}
		if p := s.PreviousReadiness; p != nil && p.Analyzed {
			score := p.Score
			data.PreviousScore = &score
		}
		ev, err = events.NewReadinessScoredEvent(s.StoryID(), s.RunID, r.Summary, data)
	default:
		return
	}
	if err != nil {
		o.logger.Warn("failed to build event", "phase", phase, "error", err)
		return
	}
	o.emit(ctx, ev)
}

func lastOr(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	return values[len(values)-1]
}
