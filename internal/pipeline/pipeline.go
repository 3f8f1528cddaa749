// Package pipeline runs the elaboration components against story documents
// and records the results in storage. It backs both the elab commands and
// the interactive shell, so every entry point analyzes a story the same way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/steveyegge/elab/internal/config"
	"github.com/steveyegge/elab/internal/elaboration"
	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/gaps"
	"github.com/steveyegge/elab/internal/hygiene"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/storage"
	"github.com/steveyegge/elab/internal/storyfile"
	"github.com/steveyegge/elab/internal/types"
)

// ErrNoStore is returned by operations that only make sense with a database
var ErrNoStore = errors.New("no database configured (run 'elab init' first)")

// ErrNoPrevious is returned when a diff has no earlier story version to
// compare against
var ErrNoPrevious = errors.New("no previous story version found")

// Runner executes pipeline operations with one configuration. The store is
// optional; without it nothing is persisted and cross-run inputs (previous
// ranked gaps, previous story versions) must be passed explicitly.
type Runner struct {
	store  storage.Storage
	cfg    config.Config
	logger *slog.Logger
}

// NewRunner creates a runner. A nil config means config.DefaultConfig().
func NewRunner(store storage.Storage, cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	c := config.DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, cfg: c, logger: logger}, nil
}

// Config returns the configuration the runner was created with
func (r *Runner) Config() config.Config {
	return r.cfg
}

// Store returns the runner's store, which may be nil
func (r *Runner) Store() storage.Storage {
	return r.store
}

// Analysis is the outcome of gap generation, hygiene and readiness scoring
// for one story document
type Analysis struct {
	RunID     string             `json:"run_id"`
	StoryID   string             `json:"story_id"`
	Gaps      *gaps.FanoutResult `json:"-"`
	Hygiene   *hygiene.Result    `json:"hygiene"`
	Readiness *readiness.Result  `json:"readiness"`

	// PreviousScore is the last recorded readiness score, nil when the story
	// was never scored
	PreviousScore *int `json:"previous_score,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// RankedGaps returns the hygiene output, or nil when hygiene did not run
func (a *Analysis) RankedGaps() []types.RankedGap {
	if a == nil || a.Hygiene == nil || !a.Hygiene.Analyzed {
		return nil
	}
	if a.Hygiene.RankedGaps == nil {
		return []types.RankedGap{}
	}
	return a.Hygiene.RankedGaps
}

func (a *Analysis) warn(format string, args ...any) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

// Analyze runs every gap generator, ranks the gaps against the story's
// previous ranking and scores readiness. Storage failures become warnings.
func (r *Runner) Analyze(ctx context.Context, doc *storyfile.Document) (*Analysis, error) {
	if doc == nil {
		return nil, fmt.Errorf("story document is required")
	}
	story := &doc.Story
	an := &Analysis{RunID: uuid.New().String(), StoryID: story.ID}

	generators, err := gaps.NewGenerators(r.cfg.Gaps)
	if err != nil {
		return nil, fmt.Errorf("failed to create gap generators: %w", err)
	}
	fan, err := gaps.RunAll(ctx, generators, story, doc.Baseline)
	if err != nil {
		return nil, fmt.Errorf("gap analysis failed: %w", err)
	}
	an.Gaps = fan
	an.Warnings = append(an.Warnings, fan.Warnings()...)

	var previous []types.RankedGap
	if r.store != nil {
		previous, err = r.store.GetRankedGaps(ctx, story.ID)
		if err != nil {
			an.warn("Failed to load previous ranked gaps: %v", err)
		}
	}

	an.Hygiene = hygiene.Process(hygiene.Input{
		StoryID:  story.ID,
		Gaps:     fan.Gaps(),
		Analyzed: fan.Analyzed(),
		Previous: previous,
	}, r.cfg.Hygiene)
	an.Warnings = append(an.Warnings, an.Hygiene.Warnings...)
	if an.Hygiene.Analyzed {
		r.recordRankedGaps(ctx, an)
	} else if an.Hygiene.Error != "" {
		an.warn("Gap hygiene failed: %s", an.Hygiene.Error)
	}

	an.Readiness = readiness.Calculate(readiness.Input{
		Story:      story,
		Baseline:   doc.Baseline,
		Context:    doc.Context,
		RankedGaps: an.RankedGaps(),
	}, r.cfg.Elaboration.Readiness)
	if an.Readiness.Analyzed {
		r.recordReadiness(ctx, an)
	} else if an.Readiness.Error != "" {
		an.warn("Readiness scoring failed: %s", an.Readiness.Error)
	}

	r.logger.Debug("analysis complete",
		"story_id", story.ID,
		"run_id", an.RunID,
		"gaps", an.Hygiene.TotalGaps,
		"score", an.Readiness.Score)
	return an, nil
}

func (r *Runner) recordRankedGaps(ctx context.Context, an *Analysis) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRankedGaps(ctx, an.StoryID, an.RunID, an.RankedGaps()); err != nil {
		an.warn("Failed to save ranked gaps: %v", err)
		return
	}
	h := an.Hygiene
	ev, err := events.NewGapsRankedEvent(an.StoryID, an.RunID, h.Summary, events.GapsRankedData{
		TotalGaps:     h.TotalGaps,
		BlockingCount: h.BlockingCount,
		MergedCount:   h.DedupStats.Merged,
		HighestScore:  h.HighestScore,
	})
	if err == nil {
		r.emit(ctx, ev)
	}
}

func (r *Runner) recordReadiness(ctx context.Context, an *Analysis) {
	if r.store == nil {
		return
	}
	prev, err := r.store.GetLatestReadiness(ctx, an.StoryID)
	if err != nil {
		an.warn("Failed to load previous readiness: %v", err)
	} else if prev != nil {
		score := prev.Score
		an.PreviousScore = &score
	}

	rd := an.Readiness
	if err := r.store.SaveReadiness(ctx, rd); err != nil {
		an.warn("Failed to save readiness: %v", err)
		return
	}
	ev, err := events.NewReadinessScoredEvent(an.StoryID, an.RunID, rd.Summary, events.ReadinessScoredData{
		PreviousScore: an.PreviousScore,
		Score:         rd.Score,
		Threshold:     rd.Threshold,
		Ready:         rd.Ready,
		Confidence:    string(rd.Confidence),
	})
	if err == nil {
		r.emit(ctx, ev)
	}
}

func (r *Runner) emit(ctx context.Context, ev *events.PipelineEvent) {
	if err := r.store.StoreEvent(ctx, ev); err != nil {
		r.logger.Warn("failed to store event", "type", ev.Type, "error", err)
	}
}

// Elaboration is an analysis followed by an elaboration run
type Elaboration struct {
	Analysis *Analysis           `json:"analysis"`
	Result   *elaboration.Result `json:"elaboration"`
}

// Elaborate analyzes the document and then runs the elaboration phases
// against previous. A nil previous makes the orchestrator load the latest
// stored snapshot, if any.
func (r *Runner) Elaborate(ctx context.Context, doc *storyfile.Document, previous *types.Story) (*Elaboration, error) {
	an, err := r.Analyze(ctx, doc)
	if err != nil {
		return nil, err
	}

	// The readiness saved by Analyze describes this version; the baseline for
	// the score delta is the readiness of the last completed run.
	var prevReadiness *readiness.Result
	var store elaboration.Store
	var eventStore events.EventStore
	if r.store != nil {
		store, eventStore = r.store, r.store
		runs, err := r.store.ListElaborations(ctx, doc.Story.ID, 1)
		if err != nil {
			an.warn("Failed to load previous elaboration: %v", err)
		} else if len(runs) > 0 {
			prevReadiness = runs[0].Readiness
		}
	}

	cfg := r.cfg.Elaboration
	orch, err := elaboration.NewOrchestrator(store, eventStore, &cfg, r.logger)
	if err != nil {
		return nil, err
	}

	in := elaboration.Input{
		Current:           &doc.Story,
		Previous:          previous,
		Attack:            an.Gaps.Attack(),
		RankedGaps:        an.RankedGaps(),
		Baseline:          doc.Baseline,
		Context:           doc.Context,
		PreviousReadiness: prevReadiness,
	}
	return &Elaboration{Analysis: an, Result: orch.Run(ctx, in)}, nil
}
