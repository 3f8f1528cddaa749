package pipeline

import (
	"context"
	"fmt"

	"github.com/steveyegge/elab/internal/delta"
	"github.com/steveyegge/elab/internal/types"
)

// Comparison is a delta detection with the review of its changed sections
type Comparison struct {
	Previous  *types.Story           `json:"-"`
	Detection *delta.DetectionResult `json:"delta_detection"`
	Review    *delta.ReviewResult    `json:"delta_review,omitempty"`
}

// Diff compares current against previous. A nil previous is replaced by the
// latest stored snapshot of the story; ErrNoPrevious is returned when there
// is none. The review is omitted when review is false or nothing changed.
func (r *Runner) Diff(ctx context.Context, current, previous *types.Story, review bool) (*Comparison, error) {
	if current == nil {
		return nil, fmt.Errorf("current story is required")
	}

	prevIter, currIter := 1, 2
	if previous == nil {
		if r.store == nil {
			return nil, ErrNoPrevious
		}
		prev, iteration, err := r.store.LatestSnapshot(ctx, current.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous version: %w", err)
		}
		if prev == nil {
			return nil, fmt.Errorf("%w for story %s", ErrNoPrevious, current.ID)
		}
		previous = prev
		prevIter, currIter = iteration, iteration+1
	}

	det, err := delta.DetectDeltasStrict(previous, current, prevIter, currIter, r.cfg.Elaboration.Detect)
	if err != nil {
		return nil, err
	}
	cmp := &Comparison{Previous: previous, Detection: det}
	if review && det.Stats.TotalChanges > 0 {
		cmp.Review, err = delta.ReviewDeltasStrict(det, current, r.cfg.Elaboration.Review)
		if err != nil {
			return nil, err
		}
	}
	return cmp, nil
}
