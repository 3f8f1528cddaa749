package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/elab/internal/elaboration"
	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/storage/sqlite"
	"github.com/steveyegge/elab/internal/types"
)

// History is what the store knows about one story
type History struct {
	StoryID    string                `json:"story_id"`
	State      *types.StoryState     `json:"state,omitempty"`
	Readiness  *readiness.Result     `json:"latest_readiness,omitempty"`
	RankedGaps []types.RankedGap     `json:"ranked_gaps,omitempty"`
	Runs       []*elaboration.Result `json:"runs"`
}

// History returns the workflow state, latest readiness, current ranked gaps
// and the most recent elaboration runs of a story, newest first
func (r *Runner) History(ctx context.Context, storyID string, limit int) (*History, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	h := &History{StoryID: storyID}

	var err error
	if h.State, err = r.store.GetStoryState(ctx, storyID); err != nil {
		return nil, fmt.Errorf("failed to get story state: %w", err)
	}
	if h.Readiness, err = r.store.GetLatestReadiness(ctx, storyID); err != nil {
		return nil, fmt.Errorf("failed to get readiness: %w", err)
	}
	if h.RankedGaps, err = r.store.GetRankedGaps(ctx, storyID); err != nil {
		return nil, fmt.Errorf("failed to get ranked gaps: %w", err)
	}
	if h.Runs, err = r.store.ListElaborations(ctx, storyID, limit); err != nil {
		return nil, fmt.Errorf("failed to list elaborations: %w", err)
	}
	return h, nil
}

// Events returns stored pipeline events matching filter, newest first
func (r *Runner) Events(ctx context.Context, filter events.EventFilter) ([]*events.PipelineEvent, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.GetEvents(ctx, filter)
}

// PruneResult reports one retention pass
type PruneResult struct {
	DeletedByAge        int           `json:"deleted_by_age"`
	DeletedByStoryLimit int           `json:"deleted_by_story_limit"`
	Vacuumed            bool          `json:"vacuumed"`
	Remaining           int           `json:"remaining"`
	Duration            time.Duration `json:"duration"`
	Warnings            []string      `json:"warnings,omitempty"`
}

// Deleted is the total number of events removed
func (p *PruneResult) Deleted() int {
	return p.DeletedByAge + p.DeletedByStoryLimit
}

// PruneEvents applies the event retention policy: age-based deletion first,
// then the per-story cap, then an optional VACUUM when anything was removed.
// A failed VACUUM or count is a warning.
func (r *Runner) PruneEvents(ctx context.Context) (*PruneResult, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	cfg := r.cfg.Events
	start := time.Now()
	res := &PruneResult{}

	deleted, err := r.store.CleanupEventsByAge(ctx, cfg.RetentionDays, cfg.RetentionCriticalDays, cfg.CleanupBatchSize)
	if err != nil {
		return nil, fmt.Errorf("time-based cleanup failed: %w", err)
	}
	res.DeletedByAge = deleted

	deleted, err = r.store.CleanupEventsByStoryLimit(ctx, cfg.PerStoryLimitEvents, cfg.CleanupBatchSize)
	if err != nil {
		return nil, fmt.Errorf("per-story limit cleanup failed: %w", err)
	}
	res.DeletedByStoryLimit = deleted

	if cfg.CleanupVacuum && res.Deleted() > 0 {
		if err := r.store.VacuumDatabase(ctx); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("VACUUM failed: %v", err))
		} else {
			res.Vacuumed = true
		}
	}

	var counts *sqlite.EventCounts
	if counts, err = r.store.GetEventCounts(ctx); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("failed to get event counts: %v", err))
	} else if counts != nil {
		res.Remaining = counts.TotalEvents
	}
	res.Duration = time.Since(start)

	r.logger.Info("event cleanup complete",
		"deleted_by_age", res.DeletedByAge,
		"deleted_by_story_limit", res.DeletedByStoryLimit,
		"vacuumed", res.Vacuumed,
		"remaining", res.Remaining,
		"duration", res.Duration)
	return res, nil
}
