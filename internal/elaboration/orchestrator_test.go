package elaboration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/escapehatch"
	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

type memoryStore struct {
	mu        sync.Mutex
	snapshot  *types.Story
	iteration int
	loadErr   error
	saved     []*Result
	states    map[string]types.WorkflowState
	reasons   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: make(map[string]types.WorkflowState), reasons: make(map[string]string)}
}

func (m *memoryStore) LatestSnapshot(_ context.Context, _ string) (*types.Story, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.iteration, m.loadErr
}

func (m *memoryStore) SaveElaboration(_ context.Context, res *Result, _ *types.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, res)
	return nil
}

func (m *memoryStore) SetStoryState(_ context.Context, storyID string, state types.WorkflowState, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[storyID] = state
	m.reasons[storyID] = reason
	return nil
}

type memoryEvents struct {
	mu     sync.Mutex
	events []*events.PipelineEvent
}

func (m *memoryEvents) StoreEvent(_ context.Context, ev *events.PipelineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryEvents) GetEvents(_ context.Context, _ events.EventFilter) ([]*events.PipelineEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events, nil
}

func (m *memoryEvents) types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.EventType, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

func exportStory() *types.Story {
	return &types.Story{
		ID:          "flow-8",
		Title:       "Export reports",
		Description: "Export reports as CSV",
		AcceptanceCriteria: []types.AcceptanceCriterion{
			{ID: "AC-1", Description: "Export the report as CSV", Priority: 1},
		},
		Constraints: []string{"Use the existing queue"},
	}
}

func revisedExportStory() *types.Story {
	s := exportStory()
	s.AcceptanceCriteria = []types.AcceptanceCriterion{
		{ID: "AC-1", Description: "Export format TBD", Priority: 1},
	}
	s.Constraints = nil
	return s
}

func newTestOrchestrator(t *testing.T, store Store, ev events.EventStore, cfg *Config) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(store, ev, cfg, nil)
	require.NoError(t, err)
	return o
}

func TestNext_FollowsPhaseOrder(t *testing.T) {
	var visited []Phase
	p := PhaseLoadPrevious
	for !p.IsTerminal() {
		visited = append(visited, p)
		p = Next(p, State{Phase: p})
	}
	visited = append(visited, p)
	assert.Equal(t, Phases(), visited)

	assert.Equal(t, PhaseComplete, Next(PhaseComplete, State{}))
	assert.Equal(t, PhaseError, Next(PhaseDeltaReview, State{Phase: PhaseError}))
	assert.Equal(t, PhaseError, Next(PhaseError, State{}))
	assert.Equal(t, PhaseError, Next(Phase("bogus"), State{}))
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("targeted_review")
	require.NoError(t, err)
	assert.Equal(t, PhaseTargetedReview, p)

	_, err = ParsePhase("initialize")
	assert.Error(t, err)
}

func TestStateApply_DoesNotModifyReceiver(t *testing.T) {
	base := State{Phase: PhaseDeltaDetect, Warnings: make([]string, 1, 8)}
	base.Warnings[0] = "first"

	a := base.Apply(Update{Warnings: []string{"a"}, Flags: FlagDeltaDetected})
	b := base.Apply(Update{Warnings: []string{"b"}, Errors: []string{"boom"}, Phase: PhaseError})

	assert.Equal(t, []string{"first"}, base.Warnings)
	assert.Equal(t, []string{"first", "a"}, a.Warnings)
	assert.Equal(t, []string{"first", "b"}, b.Warnings)
	assert.Equal(t, PhaseDeltaDetect, a.Phase)
	assert.Equal(t, PhaseError, b.Phase)
	assert.True(t, a.Has(FlagDeltaDetected))
	assert.False(t, base.Has(FlagDeltaDetected))
	assert.Empty(t, a.Errors)
	assert.Equal(t, []string{"boom"}, b.Errors)
}

func TestRun_InitialElaboration(t *testing.T) {
	ev := &memoryEvents{}
	o := newTestOrchestrator(t, nil, ev, nil)

	res := o.Run(context.Background(), Input{Current: exportStory()})

	assert.Equal(t, PhaseComplete, res.Phase)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Warnings, "No previous story version provided - initial elaboration")
	assert.Equal(t, 0, res.PreviousIteration)
	assert.Equal(t, 1, res.CurrentIteration)

	require.NotNil(t, res.Detection)
	assert.True(t, res.Detection.Detected)
	for _, c := range res.Detection.Changes {
		assert.Equal(t, delta.ChangeAdded, c.ChangeType)
	}
	assert.Equal(t, 2, res.Detection.Stats.TotalChanges)

	require.NotNil(t, res.Review)
	assert.True(t, res.Review.Passed)
	require.NotNil(t, res.EscapeHatch)
	assert.False(t, res.EscapeHatch.Triggered)
	assert.Empty(t, res.TargetedFindings)

	require.NotNil(t, res.Aggregated)
	assert.True(t, res.Aggregated.Passed)
	assert.Equal(t, "Elaboration analysis for flow-8: Detected 2 change(s). Elaboration PASSED.", res.Aggregated.Summary)

	require.NotNil(t, res.NewReadinessScore)
	assert.Equal(t, 100, *res.NewReadinessScore)
	assert.Nil(t, res.PreviousReadinessScore)

	got := ev.types()
	assert.Equal(t, events.EventTypeRunStarted, got[0])
	assert.Equal(t, events.EventTypeRunCompleted, got[len(got)-1])
	assert.Contains(t, got, events.EventTypeDeltaDetected)
	assert.Contains(t, got, events.EventTypeReadinessScored)
	assert.NotContains(t, got, events.EventTypeEscapeHatchTriggered)
	assert.NotContains(t, got, events.EventTypePhaseFailed)
}

func TestRun_RevisionTriggersEscapeHatch(t *testing.T) {
	store := newMemoryStore()
	ev := &memoryEvents{}
	o := newTestOrchestrator(t, store, ev, nil)

	res := o.Run(context.Background(), Input{
		Current:           revisedExportStory(),
		Previous:          exportStory(),
		PreviousReadiness: &readiness.Result{Score: 100, Analyzed: true},
	})

	assert.Equal(t, PhaseComplete, res.Phase)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.PreviousIteration)
	assert.Equal(t, 2, res.CurrentIteration)
	assert.NotContains(t, res.Warnings, "No previous story version provided - initial elaboration")

	require.NotNil(t, res.Detection)
	assert.Equal(t, 2, res.Detection.Stats.TotalChanges)
	assert.Equal(t, 1, res.Detection.Stats.ModifiedCount)
	assert.Equal(t, 1, res.Detection.Stats.RemovedCount)

	require.NotNil(t, res.Review)
	assert.False(t, res.Review.Passed)
	assert.Equal(t, 1, res.Review.BySeverity.Critical)
	assert.Equal(t, 1, res.Review.BySeverity.Major)

	require.NotNil(t, res.EscapeHatch)
	assert.True(t, res.EscapeHatch.Triggered)
	assert.Equal(t, []escapehatch.Trigger{escapehatch.TriggerConsistencyViolation}, res.EscapeHatch.TriggersActivated)
	assert.Equal(t, []escapehatch.Stakeholder{escapehatch.StakeholderArchitect, escapehatch.StakeholderQA},
		res.EscapeHatch.Stakeholders)

	assert.Equal(t, []string{
		"Stakeholders to involve: architect, qa",
		"Review priority: 2",
		"Review reason: Targeted review needed for 0 section(s): cross_cutting, consistency_violation",
	}, res.TargetedFindings)

	agg := res.Aggregated
	require.NotNil(t, agg)
	assert.False(t, agg.Passed)
	assert.Equal(t, 2, agg.TotalFindings)
	assert.Equal(t, 1, agg.CriticalCount)
	assert.Equal(t, 1, agg.MajorCount)
	assert.True(t, agg.EscapeHatchTriggered)
	assert.ElementsMatch(t, []delta.Section{delta.SectionAcceptanceCriteria, delta.SectionConstraints}, agg.SectionsNeedingAttention)
	assert.Equal(t, "Elaboration analysis for flow-8: Detected 2 change(s). Found 2 finding(s). "+
		"Escape hatch triggered - targeted review performed. Elaboration FAILED.", agg.Summary)

	require.NotNil(t, res.PreviousReadinessScore)
	assert.Equal(t, 100, *res.PreviousReadinessScore)
	require.NotNil(t, res.NewReadinessScore)
	assert.Equal(t, 97, *res.NewReadinessScore)

	require.Len(t, store.saved, 1)
	assert.Equal(t, types.WorkflowBacklog, store.states["flow-8"])
	assert.Equal(t, "Elaboration found 2 issue(s) requiring attention", store.reasons["flow-8"])

	got := ev.types()
	assert.Contains(t, got, events.EventTypeDeltaReviewed)
	assert.Contains(t, got, events.EventTypeEscapeHatchTriggered)
	assert.Contains(t, got, events.EventTypeStoryStateChanged)
}

func TestRun_UnchangedStoryPasses(t *testing.T) {
	store := newMemoryStore()
	o := newTestOrchestrator(t, store, nil, nil)

	res := o.Run(context.Background(), Input{Current: exportStory(), Previous: exportStory()})

	assert.Equal(t, PhaseComplete, res.Phase)
	assert.True(t, res.Success)
	assert.Zero(t, res.Detection.Stats.TotalChanges)
	assert.Nil(t, res.Review)
	assert.Contains(t, res.Warnings, "Delta detection found no changes")
	assert.False(t, res.EscapeHatch.Triggered)
	assert.Equal(t, "Elaboration analysis for flow-8: No significant changes detected. Elaboration PASSED.",
		res.Aggregated.Summary)
	assert.Equal(t, types.WorkflowReadyToWork, store.states["flow-8"])
	assert.Equal(t, "Passed elaboration", store.reasons["flow-8"])
}

func TestRun_LoadsPreviousSnapshot(t *testing.T) {
	store := newMemoryStore()
	store.snapshot = exportStory()
	store.iteration = 3
	o := newTestOrchestrator(t, store, nil, nil)

	res := o.Run(context.Background(), Input{Current: revisedExportStory()})

	assert.Equal(t, 3, res.PreviousIteration)
	assert.Equal(t, 4, res.CurrentIteration)
	assert.Equal(t, 2, res.Detection.Stats.TotalChanges)
	assert.NotContains(t, res.Warnings, "No previous story version provided - initial elaboration")
}

func TestRun_SnapshotLoadFailureIsWarning(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("database is locked")
	o := newTestOrchestrator(t, store, nil, nil)

	res := o.Run(context.Background(), Input{Current: exportStory()})

	assert.Equal(t, PhaseComplete, res.Phase)
	assert.Contains(t, res.Warnings, "Failed to load previous story version: database is locked")
	assert.Contains(t, res.Warnings, "No previous story version provided - initial elaboration")
}

func TestRun_MissingStoryHalts(t *testing.T) {
	ev := &memoryEvents{}
	o := newTestOrchestrator(t, nil, ev, nil)

	res := o.Run(context.Background(), Input{})

	assert.Equal(t, PhaseError, res.Phase)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"load_previous: no current story available"}, res.Errors)
	assert.Nil(t, res.Detection)
	assert.Nil(t, res.Aggregated)
	assert.Contains(t, ev.types(), events.EventTypePhaseFailed)

	_, err := o.RunStrict(context.Background(), Input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStory))
}

func TestRun_ErrorPhaseStopsLaterNodes(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil, nil)
	ran := make(map[Phase]bool)
	for _, p := range []Phase{PhaseEscapeHatch, PhaseTargetedReview, PhaseAggregate, PhaseUpdateReadiness} {
		p := p
		o.SetNode(p, func(context.Context, State) (Update, error) {
			ran[p] = true
			return Update{}, nil
		})
	}
	o.SetNode(PhaseDeltaReview, func(context.Context, State) (Update, error) {
		return Update{}, errors.New("review backend unavailable")
	})

	res := o.Run(context.Background(), Input{Current: exportStory()})

	assert.Equal(t, PhaseError, res.Phase)
	assert.Equal(t, []string{"review backend unavailable"}, res.Errors)
	assert.NotNil(t, res.Detection)
	assert.Empty(t, ran)
}

func TestRun_SkipsReadinessWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecalculateReadiness = false
	o := newTestOrchestrator(t, nil, nil, &cfg)

	res := o.Run(context.Background(), Input{Current: exportStory()})

	assert.Equal(t, PhaseComplete, res.Phase)
	assert.True(t, res.Success)
	assert.Nil(t, res.Readiness)
	assert.Nil(t, res.NewReadinessScore)
}

func TestRun_NodeTimeoutFailsRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeTimeout = time.Second
	o := newTestOrchestrator(t, nil, nil, &cfg)

	release := make(chan struct{})
	defer close(release)
	o.SetNode(PhaseEscapeHatch, func(context.Context, State) (Update, error) {
		<-release
		return Update{}, nil
	})

	res, err := o.RunStrict(context.Background(), Input{Current: exportStory()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeTimeout))
	assert.Equal(t, PhaseError, res.Phase)
	assert.Equal(t, []string{"escape_hatch: node timed out after 1s"}, res.Errors)
	assert.NotNil(t, res.Review)
	assert.Nil(t, res.Aggregated)
}

func TestRun_NodePanicIsFailure(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil, nil)
	o.SetNode(PhaseAggregate, func(context.Context, State) (Update, error) {
		panic("unexpected nil")
	})

	res := o.Run(context.Background(), Input{Current: exportStory()})

	assert.Equal(t, PhaseError, res.Phase)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "aggregate: node panicked: unexpected nil")
}

func TestRun_CancelledContext(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.RunStrict(ctx, Input{Current: exportStory()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, PhaseError, res.Phase)
}

func TestNewOrchestrator_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeTimeout = 0
	_, err := NewOrchestrator(nil, nil, &cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.EscapeHatch.TriggerThreshold = 1.5
	_, err = NewOrchestrator(nil, nil, &cfg, nil)
	assert.ErrorContains(t, err, "escape_hatch")
}

func TestAggregate_NoReviewPasses(t *testing.T) {
	agg := Aggregate("flow-1", nil, nil, nil)
	assert.True(t, agg.Passed)
	assert.Zero(t, agg.TotalFindings)
	assert.Empty(t, agg.SectionsNeedingAttention)
	assert.Empty(t, agg.RecommendedStakeholders)
	assert.Equal(t, "Elaboration analysis for flow-1: No significant changes detected. Elaboration PASSED.", agg.Summary)
}

func TestAggregate_PassRules(t *testing.T) {
	tests := []struct {
		name  string
		rev   *delta.ReviewResult
		hatch *escapehatch.Result
		want  bool
	}{
		{"clean review", &delta.ReviewResult{Passed: true}, nil, true},
		{"critical finding", &delta.ReviewResult{Passed: true, BySeverity: delta.SeverityCounts{Critical: 1}}, nil, false},
		{"review failed", &delta.ReviewResult{Passed: false, BySeverity: delta.SeverityCounts{Major: 1}}, nil, false},
		{"escape hatch", &delta.ReviewResult{Passed: true}, &escapehatch.Result{Triggered: true}, false},
		{"hatch evaluated but quiet", nil, &escapehatch.Result{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate("flow-2", nil, tt.rev, tt.hatch).Passed)
		})
	}
}
