package hygiene

import (
	"fmt"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// RecordHistory returns a copy of gap with one history entry appended.
// Prior entries are never rewritten.
func RecordHistory(gap types.RankedGap, action types.HistoryAction, previousValue, newValue, notes string) types.RankedGap {
	return recordHistoryAt(gap, action, previousValue, newValue, notes, time.Now())
}

func recordHistoryAt(gap types.RankedGap, action types.HistoryAction, previousValue, newValue, notes string, at time.Time) types.RankedGap {
	return gap.WithHistory(types.HistoryEntry{
		Action:        action,
		Timestamp:     at,
		PreviousValue: previousValue,
		NewValue:      newValue,
		Notes:         notes,
	})
}

// previousIndex looks up prior ranked gaps by original gap ID, falling back
// to an exact description match for gaps whose generator ID shifted.
type previousIndex struct {
	byOriginalID  map[string]types.RankedGap
	byDescription map[string]types.RankedGap
}

func newPreviousIndex(previous []types.RankedGap) previousIndex {
	idx := previousIndex{
		byOriginalID:  make(map[string]types.RankedGap, len(previous)),
		byDescription: make(map[string]types.RankedGap, len(previous)),
	}
	for _, pg := range previous {
		if _, ok := idx.byOriginalID[pg.OriginalID]; !ok && pg.OriginalID != "" {
			idx.byOriginalID[pg.OriginalID] = pg
		}
		if _, ok := idx.byDescription[pg.Description]; !ok {
			idx.byDescription[pg.Description] = pg
		}
	}
	return idx
}

func (idx previousIndex) lookup(gap types.RankedGap) (types.RankedGap, bool) {
	if pg, ok := idx.byOriginalID[gap.OriginalID]; ok {
		return pg, true
	}
	pg, ok := idx.byDescription[gap.Description]
	return pg, ok
}

// carryForward replaces a fresh gap's history with the prior gap's history
// plus a single entry describing what changed in this run.
func carryForward(fresh, prior types.RankedGap, at time.Time) types.RankedGap {
	fresh.History = prior.History
	fresh.Resolved = prior.Resolved
	fresh.Acknowledged = prior.Acknowledged

	switch {
	case prior.Category != fresh.Category:
		return recordHistoryAt(fresh, types.ActionRecategorized,
			string(prior.Category), string(fresh.Category),
			"Category changed during re-analysis", at)
	case prior.Score != fresh.Score:
		return recordHistoryAt(fresh, types.ActionRescored,
			fmt.Sprint(prior.Score), fmt.Sprint(fresh.Score),
			"Score changed during re-analysis", at)
	default:
		return recordHistoryAt(fresh, types.ActionRescored,
			fmt.Sprint(prior.Score), fmt.Sprint(fresh.Score),
			"Confirmed during re-analysis", at)
	}
}
