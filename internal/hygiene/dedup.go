package hygiene

import (
	"github.com/steveyegge/elab/internal/types"
)

// MergeGroup records which gaps were folded into a surviving gap
type MergeGroup struct {
	PrimaryID string   `json:"primary_id"`
	MergedIDs []string `json:"merged_ids"`
}

// DedupStats summarizes a deduplication pass
type DedupStats struct {
	TotalBefore int          `json:"total_before"`
	TotalAfter  int          `json:"total_after"`
	Merged      int          `json:"merged"`
	MergeGroups []MergeGroup `json:"merge_groups,omitempty"`
}

// DedupResult is the output of DeduplicateGaps
type DedupResult struct {
	// Gaps are the survivors in input order
	Gaps []types.Gap

	// MergedFrom maps a surviving gap ID to the IDs it absorbed
	MergedFrom map[string][]string

	Stats DedupStats
}

// DeduplicateGaps merges later gaps into earlier ones whose descriptions
// overlap by at least threshold. The survivor keeps its own description and
// takes the maximum severity and likelihood of its group, the union of
// related ACs, and any differing suggestions joined with "; ".
//
// The output never has more gaps than the input, and running the function
// again on its own output merges nothing further: survivors are pairwise
// below the threshold because merging never changes a survivor's text.
func DeduplicateGaps(gaps []types.Gap, threshold float64) DedupResult {
	work := make([]types.Gap, len(gaps))
	for i, g := range gaps {
		g.Likelihood = g.EffectiveLikelihood()
		g.RelatedACs = append([]string(nil), g.RelatedACs...)
		work[i] = g
	}

	merged := make([]bool, len(work))
	result := DedupResult{
		MergedFrom: make(map[string][]string),
		Stats:      DedupStats{TotalBefore: len(work)},
	}

	for i := range work {
		if merged[i] {
			continue
		}
		var absorbed []string
		for j := i + 1; j < len(work); j++ {
			if merged[j] {
				continue
			}
			if Similarity(work[i].Description, work[j].Description) < threshold {
				continue
			}
			merged[j] = true
			absorbed = append(absorbed, work[j].ID)
			work[i] = mergeInto(work[i], work[j])
		}
		if len(absorbed) > 0 {
			result.MergedFrom[work[i].ID] = absorbed
			result.Stats.MergeGroups = append(result.Stats.MergeGroups, MergeGroup{
				PrimaryID: work[i].ID,
				MergedIDs: absorbed,
			})
			result.Stats.Merged += len(absorbed)
		}
	}

	for i, g := range work {
		if !merged[i] {
			result.Gaps = append(result.Gaps, g)
		}
	}
	result.Stats.TotalAfter = len(result.Gaps)
	return result
}

// mergeInto folds other into primary
func mergeInto(primary, other types.Gap) types.Gap {
	if other.Severity > primary.Severity {
		primary.Severity = other.Severity
	}
	if other.Likelihood > primary.Likelihood {
		primary.Likelihood = other.Likelihood
	}
	primary.RelatedACs = unionStrings(primary.RelatedACs, other.RelatedACs)
	if other.Suggestion != "" && other.Suggestion != primary.Suggestion {
		if primary.Suggestion == "" {
			primary.Suggestion = other.Suggestion
		} else {
			primary.Suggestion = primary.Suggestion + "; " + other.Suggestion
		}
	}
	return primary
}

// unionStrings appends the members of b missing from a, preserving order
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
