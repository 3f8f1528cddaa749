package delta

import (
	"fmt"
	"time"
)

// Section is a comparable list section of a story
type Section string

const (
	SectionAcceptanceCriteria Section = "acceptance_criteria"
	SectionNonGoals           Section = "non_goals"
	SectionTestHints          Section = "test_hints"
	SectionKnownUnknowns      Section = "known_unknowns"
	SectionConstraints        Section = "constraints"
	SectionAffectedFiles      Section = "affected_files"
	SectionDependencies       Section = "dependencies"
)

// AllSections lists every comparable section in review order
var AllSections = []Section{
	SectionAcceptanceCriteria,
	SectionNonGoals,
	SectionTestHints,
	SectionKnownUnknowns,
	SectionConstraints,
	SectionAffectedFiles,
	SectionDependencies,
}

// IsValid checks if the section value is valid
func (s Section) IsValid() bool {
	for _, known := range AllSections {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSection converts a string into a Section
func ParseSection(s string) (Section, error) {
	sec := Section(s)
	if !sec.IsValid() {
		return "", fmt.Errorf("unknown story section %q", s)
	}
	return sec, nil
}

// ChangeType classifies one item between two story versions
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeModified  ChangeType = "modified"
	ChangeRemoved   ChangeType = "removed"
	ChangeUnchanged ChangeType = "unchanged"
)

// FieldChange is a single field that differs between two versions of an item
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// SectionChange is one diff record
type SectionChange struct {
	ItemID       string        `json:"item_id"`
	Section      Section       `json:"section"`
	ChangeType   ChangeType    `json:"change_type"`
	OldContent   *string       `json:"old_content"` // nil when added
	NewContent   *string       `json:"new_content"` // nil when removed
	FieldChanges []FieldChange `json:"field_changes,omitempty"`
	Significance int           `json:"significance"` // 1-10
}

// Content returns the newest content of the item: new content unless the item
// was removed
func (c SectionChange) Content() string {
	if c.NewContent != nil {
		return *c.NewContent
	}
	if c.OldContent != nil {
		return *c.OldContent
	}
	return ""
}

// Stats summarizes a detection run. Unchanged items are counted here even
// though they are not emitted as changes.
type Stats struct {
	TotalChanges          int             `json:"total_changes"`
	AddedCount            int             `json:"added_count"`
	ModifiedCount         int             `json:"modified_count"`
	RemovedCount          int             `json:"removed_count"`
	UnchangedCount        int             `json:"unchanged_count"`
	ChangesBySection      map[Section]int `json:"changes_by_section"`
	AverageSignificance   float64         `json:"average_significance"`
	HasSubstantialChanges bool            `json:"has_substantial_changes"`
}

// DetectionResult is the outcome of comparing two story versions
type DetectionResult struct {
	StoryID           string          `json:"story_id"`
	DetectedAt        time.Time       `json:"detected_at"`
	PreviousIteration int             `json:"previous_iteration"`
	CurrentIteration  int             `json:"current_iteration"`
	Changes           []SectionChange `json:"changes"`
	Stats             Stats           `json:"stats"`
	Summary           string          `json:"summary"`

	Detected bool   `json:"detected"`
	Error    string `json:"error,omitempty"`
}

// ChangedSections returns the sections that have at least one change, in
// AllSections order
func (r *DetectionResult) ChangedSections() []Section {
	if r == nil {
		return nil
	}
	changed := make(map[Section]bool)
	for _, c := range r.Changes {
		changed[c.Section] = true
	}
	var out []Section
	for _, s := range AllSections {
		if changed[s] {
			out = append(out, s)
		}
	}
	return out
}
