package delta

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/steveyegge/elab/internal/types"
)

// Significance bounds
const (
	MinSignificance = 1
	MaxSignificance = 10
)

var (
	// ErrNoStory is returned by the strict variants when the current story is missing
	ErrNoStory = errors.New("current story is required")

	// ErrNoDetection is returned by ReviewDeltasStrict without a detection result
	ErrNoDetection = errors.New("delta detection result is required")
)

// sectionWeights is the base significance of a change per section
var sectionWeights = map[Section]int{
	SectionAcceptanceCriteria: 8,
	SectionNonGoals:           6,
	SectionTestHints:          5,
	SectionKnownUnknowns:      7,
	SectionConstraints:        6,
	SectionAffectedFiles:      4,
	SectionDependencies:       5,
}

type field struct {
	name  string
	value any
}

// item is one comparable entry of a section. Object items carry their
// fields for field-level diffing; string items have none.
type item struct {
	id      string
	content string
	fields  []field

	// significance inputs
	priority     int
	fromBaseline bool
	blocking     bool
}

func sectionItems(story *types.Story, s Section) []item {
	if story == nil {
		return nil
	}
	switch s {
	case SectionAcceptanceCriteria:
		out := make([]item, len(story.AcceptanceCriteria))
		for i, ac := range story.AcceptanceCriteria {
			out[i] = item{
				id:      itemID(ac.ID, i),
				content: ac.Description,
				fields: []field{
					{"description", ac.Description},
					{"from_baseline", ac.FromBaseline},
					{"priority", ac.Priority},
					{"test_hint", ac.TestHint},
					{"related_gap_ids", ac.RelatedGapIDs},
				},
				priority:     ac.Priority,
				fromBaseline: ac.FromBaseline,
			}
		}
		return out
	case SectionNonGoals:
		out := make([]item, len(story.NonGoals))
		for i, ng := range story.NonGoals {
			out[i] = item{
				id:      itemID(ng.ID, i),
				content: ng.Description,
				fields: []field{
					{"description", ng.Description},
					{"reason", ng.Reason},
					{"source", ng.Source},
				},
			}
		}
		return out
	case SectionTestHints:
		out := make([]item, len(story.TestHints))
		for i, th := range story.TestHints {
			out[i] = item{
				id:      itemID(th.ID, i),
				content: th.Description,
				fields: []field{
					{"description", th.Description},
					{"category", string(th.Category)},
					{"priority", th.Priority},
					{"related_ac_id", th.RelatedACID},
				},
			}
		}
		return out
	case SectionKnownUnknowns:
		out := make([]item, len(story.KnownUnknowns))
		for i, ku := range story.KnownUnknowns {
			out[i] = item{
				id:      itemID(ku.ID, i),
				content: ku.Description,
				fields: []field{
					{"description", ku.Description},
					{"source", ku.Source},
					{"impact", string(ku.Impact)},
					{"resolution", ku.Resolution},
					{"acknowledged", ku.Acknowledged},
				},
				blocking: ku.Impact == types.ImpactBlocking,
			}
		}
		return out
	case SectionConstraints:
		return stringItems(story.Constraints)
	case SectionAffectedFiles:
		return stringItems(story.AffectedFiles)
	case SectionDependencies:
		return stringItems(story.Dependencies)
	}
	return nil
}

// stringItems keys plain string entries by position
func stringItems(values []string) []item {
	out := make([]item, len(values))
	for i, v := range values {
		out[i] = item{id: fmt.Sprintf("item-%d", i), content: v}
	}
	return out
}

func itemID(id string, index int) string {
	if id == "" {
		return fmt.Sprintf("item-%d", index)
	}
	return id
}

// indexItems maps item IDs to items and returns the IDs in first-seen order.
// A repeated ID keeps its first position but the last item wins.
func indexItems(items []item) (map[string]item, []string) {
	index := make(map[string]item, len(items))
	var order []string
	for _, it := range items {
		if _, ok := index[it.id]; !ok {
			order = append(order, it.id)
		}
		index[it.id] = it
	}
	return index, order
}

// classifyChange compares two versions of an item; nil means absent
func classifyChange(old, cur *item) ChangeType {
	switch {
	case old == nil:
		return ChangeAdded
	case cur == nil:
		return ChangeRemoved
	case old.content != cur.content:
		return ChangeModified
	case len(fieldChanges(old, cur)) > 0:
		return ChangeModified
	}
	return ChangeUnchanged
}

// fieldChanges lists the fields (other than the ID) that differ between two
// object items. It is empty unless both sides are present.
func fieldChanges(old, cur *item) []FieldChange {
	if old == nil || cur == nil {
		return nil
	}
	var out []FieldChange
	for i, f := range old.fields {
		if i >= len(cur.fields) {
			break
		}
		nf := cur.fields[i]
		if !sameValue(f.value, nf.value) {
			out = append(out, FieldChange{Field: f.name, OldValue: f.value, NewValue: nf.value})
		}
	}
	return out
}

// sameValue treats nil and empty string slices as equal
func sameValue(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok || bok {
		return slices.Equal(as, bs)
	}
	return a == b
}

// significance rates a change 1-10: a per-section base weight, raised for
// additions and removals and for high-stakes items
func significance(section Section, ct ChangeType, it *item) int {
	sig, ok := sectionWeights[section]
	if !ok {
		sig = 5
	}
	switch ct {
	case ChangeAdded:
		sig++
	case ChangeRemoved:
		sig += 2
	case ChangeUnchanged:
		sig = 1
	}
	if it != nil {
		if section == SectionAcceptanceCriteria {
			if it.priority == 1 {
				sig++
			}
			if it.fromBaseline {
				sig++
			}
		}
		if section == SectionKnownUnknowns && it.blocking {
			sig += 2
		}
	}
	return min(MaxSignificance, sig)
}

// DiffSections compares one section of two story versions. Either story may
// be nil. Unchanged items are included so callers can count them.
func DiffSections(prev, curr *types.Story, section Section, cfg DetectConfig) []SectionChange {
	oldIndex, oldOrder := indexItems(sectionItems(prev, section))
	newIndex, newOrder := indexItems(sectionItems(curr, section))

	ids := oldOrder
	for _, id := range newOrder {
		if _, ok := oldIndex[id]; !ok {
			ids = append(ids, id)
		}
	}

	var changes []SectionChange
	for _, id := range ids {
		var old, cur *item
		if it, ok := oldIndex[id]; ok {
			old = &it
		}
		if it, ok := newIndex[id]; ok {
			cur = &it
		}

		ct := classifyChange(old, cur)
		subject := cur
		if subject == nil {
			subject = old
		}
		sig := significance(section, ct, subject)
		if sig < cfg.MinSignificance {
			continue
		}

		change := SectionChange{
			ItemID:       id,
			Section:      section,
			ChangeType:   ct,
			Significance: sig,
		}
		if old != nil {
			change.OldContent = &old.content
		}
		if cur != nil {
			change.NewContent = &cur.content
		}
		if cfg.TrackFieldChanges {
			change.FieldChanges = fieldChanges(old, cur)
		}
		changes = append(changes, change)
	}
	return changes
}

func calculateStats(all []SectionChange, cfg DetectConfig) Stats {
	stats := Stats{ChangesBySection: make(map[Section]int)}
	sigTotal := 0
	for _, c := range all {
		switch c.ChangeType {
		case ChangeAdded:
			stats.AddedCount++
		case ChangeModified:
			stats.ModifiedCount++
		case ChangeRemoved:
			stats.RemovedCount++
		case ChangeUnchanged:
			stats.UnchangedCount++
			continue
		}
		stats.ChangesBySection[c.Section]++
		sigTotal += c.Significance
	}
	stats.TotalChanges = stats.AddedCount + stats.ModifiedCount + stats.RemovedCount
	if stats.TotalChanges > 0 {
		avg := float64(sigTotal) / float64(stats.TotalChanges)
		stats.AverageSignificance = math.Round(avg*100) / 100
	}
	stats.HasSubstantialChanges = stats.TotalChanges >= cfg.SubstantialChangeThreshold
	return stats
}

func detectionSummary(changes []SectionChange, stats Stats, storyID string) string {
	if stats.TotalChanges == 0 {
		return fmt.Sprintf("No changes detected between elaboration iterations for story %s.", storyID)
	}

	var counts []string
	if stats.AddedCount > 0 {
		counts = append(counts, fmt.Sprintf("%d item(s) added", stats.AddedCount))
	}
	if stats.ModifiedCount > 0 {
		counts = append(counts, fmt.Sprintf("%d item(s) modified", stats.ModifiedCount))
	}
	if stats.RemovedCount > 0 {
		counts = append(counts, fmt.Sprintf("%d item(s) removed", stats.RemovedCount))
	}
	summary := fmt.Sprintf("Detected %d change(s) for story %s: %s.",
		stats.TotalChanges, storyID, strings.Join(counts, ", "))

	var notable []string
	seen := make(map[Section]bool)
	for _, c := range changes {
		if c.Significance >= 7 && !seen[c.Section] {
			seen[c.Section] = true
			notable = append(notable, string(c.Section))
		}
	}
	if len(notable) > 0 {
		summary += " Notable changes in: " + strings.Join(notable, ", ") + "."
	}
	if stats.HasSubstantialChanges {
		summary += " Changes are substantial and may require review."
	}
	return summary
}

// DetectDeltasStrict compares two story versions section by section. A nil
// previous story is an initial elaboration: every item is added.
func DetectDeltasStrict(prev, curr *types.Story, prevIteration, currIteration int, cfg DetectConfig) (*DetectionResult, error) {
	if curr == nil {
		return nil, ErrNoStory
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detect config: %w", err)
	}
	if prevIteration < 0 {
		return nil, fmt.Errorf("previous iteration must not be negative (got %d)", prevIteration)
	}
	if currIteration < 1 {
		return nil, fmt.Errorf("current iteration must be at least 1 (got %d)", currIteration)
	}

	var all []SectionChange
	for _, section := range cfg.sections() {
		all = append(all, DiffSections(prev, curr, section, cfg)...)
	}

	changes := make([]SectionChange, 0, len(all))
	for _, c := range all {
		if c.ChangeType != ChangeUnchanged {
			changes = append(changes, c)
		}
	}
	stats := calculateStats(all, cfg)

	return &DetectionResult{
		StoryID:           curr.ID,
		DetectedAt:        time.Now(),
		PreviousIteration: prevIteration,
		CurrentIteration:  currIteration,
		Changes:           changes,
		Stats:             stats,
		Summary:           detectionSummary(changes, stats, curr.ID),
		Detected:          true,
	}, nil
}

// DetectDeltas is DetectDeltasStrict that never returns an error: failures
// are reported through Detected and Error.
func DetectDeltas(prev, curr *types.Story, prevIteration, currIteration int, cfg DetectConfig) (res *DetectionResult) {
	failed := func(msg string) *DetectionResult {
		r := &DetectionResult{
			DetectedAt:        time.Now(),
			PreviousIteration: prevIteration,
			CurrentIteration:  currIteration,
			Stats:             Stats{ChangesBySection: map[Section]int{}},
			Summary:           "Delta detection failed: " + msg,
			Error:             msg,
		}
		if curr != nil {
			r.StoryID = curr.ID
		}
		return r
	}
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Sprintf("%v", r))
		}
	}()

	res, err := DetectDeltasStrict(prev, curr, prevIteration, currIteration, cfg)
	if err != nil {
		return failed(err.Error())
	}
	return res
}
