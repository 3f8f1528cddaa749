package delta

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/steveyegge/elab/internal/types"
)

// Severity is the severity of a review finding
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	return s.Weight() > 0
}

// Weight orders severities: critical 4 down to info 1
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityMajor:
		return 3
	case SeverityMinor:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Category classifies what kind of problem a finding describes
type Category string

const (
	CategoryClarity      Category = "clarity"
	CategoryCompleteness Category = "completeness"
	CategoryConsistency  Category = "consistency"
	CategoryTestability  Category = "testability"
	CategoryScope        Category = "scope"
	CategoryFeasibility  Category = "feasibility"
	CategoryDependency   Category = "dependency"
	CategoryRisk         Category = "risk"
)

// Finding is one issue raised by the delta review
type Finding struct {
	ID             string     `json:"id"`
	Section        Section    `json:"section"`
	ItemID         string     `json:"item_id"`
	Severity       Severity   `json:"severity"`
	Category       Category   `json:"category"`
	Issue          string     `json:"issue"`
	Recommendation string     `json:"recommendation"`
	DeltaRelated   bool       `json:"delta_related"`
	ChangeType     ChangeType `json:"change_type,omitempty"`
	Context        string     `json:"context,omitempty"`
}

// SectionSummary reports the review outcome for one reviewed section
type SectionSummary struct {
	Section       Section `json:"section"`
	ItemsReviewed int     `json:"items_reviewed"`
	FindingsCount int     `json:"findings_count"`
	Passed        bool    `json:"passed"`
	Note          string  `json:"note,omitempty"`
}

// SeverityCounts tallies findings per severity
type SeverityCounts struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Info     int `json:"info"`
}

// Total returns the number of findings counted
func (c SeverityCounts) Total() int {
	return c.Critical + c.Major + c.Minor + c.Info
}

// ReviewResult is the outcome of reviewing the changed sections of a story
type ReviewResult struct {
	StoryID          string           `json:"story_id"`
	ReviewedAt       time.Time        `json:"reviewed_at"`
	Findings         []Finding        `json:"findings"`
	SectionsReviewed []Section        `json:"sections_reviewed"`
	SectionsSkipped  []Section        `json:"sections_skipped"`
	SectionSummaries []SectionSummary `json:"section_summaries"`
	Passed           bool             `json:"passed"`
	BySeverity       SeverityCounts   `json:"findings_by_severity"`
	Summary          string           `json:"summary"`

	Reviewed bool   `json:"reviewed"`
	Error    string `json:"error,omitempty"`
}

type termPattern struct {
	re   *regexp.Regexp
	term string
}

func wordPatterns(terms ...string) []termPattern {
	out := make([]termPattern, len(terms))
	for i, t := range terms {
		out[i] = termPattern{regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`), t}
	}
	return out
}

var (
	acVaguePatterns = wordPatterns("should", "may", "might", "could", "possibly",
		"appropriate", "reasonable", "as needed")
	acPlaceholderPatterns = wordPatterns("tbd", "to be determined", "tbc", "placeholder")
)

const (
	maxACLength      = 300
	minTestHintLen   = 50
	maxContextLength = 100
)

// sectionReviewer produces raw findings (without IDs) for one section's changes
type sectionReviewer func(changes []SectionChange, story *types.Story) []Finding

// sectionReviewers holds the rule set per section; sections without an
// entry are recorded as reviewed but have no rules.
var sectionReviewers = map[Section]sectionReviewer{
	SectionAcceptanceCriteria: reviewAcceptanceCriteria,
	SectionTestHints:          reviewTestHints,
	SectionKnownUnknowns:      reviewKnownUnknowns,
	SectionConstraints:        reviewConstraints,
	SectionNonGoals:           reviewNonGoals,
}

func finding(c SectionChange, sev Severity, cat Category, issue, rec string) Finding {
	return Finding{
		Section:        c.Section,
		ItemID:         c.ItemID,
		Severity:       sev,
		Category:       cat,
		Issue:          issue,
		Recommendation: rec,
		DeltaRelated:   true,
		ChangeType:     c.ChangeType,
	}
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxContextLength {
		return s
	}
	return string([]rune(s)[:maxContextLength])
}

func firstMatch(content string, patterns []termPattern) (string, bool) {
	for _, p := range patterns {
		if p.re.MatchString(content) {
			return p.term, true
		}
	}
	return "", false
}

func reviewAcceptanceCriteria(changes []SectionChange, _ *types.Story) []Finding {
	var out []Finding
	for _, c := range changes {
		content := c.Content()

		if term, ok := firstMatch(content, acVaguePatterns); ok {
			f := finding(c, SeverityMinor, CategoryClarity,
				fmt.Sprintf("AC contains vague language: %q", term),
				"Replace vague terms with specific, measurable criteria")
			f.Context = clip(content)
			out = append(out, f)
		}
		if term, ok := firstMatch(content, acPlaceholderPatterns); ok {
			f := finding(c, SeverityCritical, CategoryCompleteness,
				fmt.Sprintf("AC contains unresolved placeholder: %q", term),
				"Define specific acceptance criteria before implementation")
			f.Context = clip(content)
			out = append(out, f)
		}
		if len(content) > maxACLength {
			out = append(out, finding(c, SeverityMinor, CategoryClarity,
				"AC is overly long and may be difficult to verify",
				"Consider breaking down into smaller, focused criteria"))
		}
		if c.ChangeType == ChangeRemoved {
			f := finding(c, SeverityMajor, CategoryScope,
				"Acceptance criterion was removed - verify intentional scope reduction",
				"Confirm removal is intentional and document reason if scope is reduced")
			f.Context = clip(content)
			out = append(out, f)
		}
	}
	return out
}

func reviewTestHints(changes []SectionChange, _ *types.Story) []Finding {
	var out []Finding
	for _, c := range changes {
		content := c.Content()
		if c.ChangeType != ChangeRemoved && len(content) < minTestHintLen {
			f := finding(c, SeverityMinor, CategoryTestability,
				"Test hint is brief and may lack sufficient detail for implementation",
				"Expand with specific test scenarios, inputs, and expected outcomes")
			f.Context = content
			out = append(out, f)
		}
	}
	return out
}

func reviewKnownUnknowns(changes []SectionChange, story *types.Story) []Finding {
	blocking := make(map[string]bool)
	for _, ku := range story.KnownUnknowns {
		if ku.Impact == types.ImpactBlocking {
			blocking[ku.ID] = true
		}
	}

	var out []Finding
	for _, c := range changes {
		if c.ChangeType == ChangeAdded && blocking[c.ItemID] {
			f := finding(c, SeverityCritical, CategoryRisk,
				"New blocking unknown added - requires resolution before implementation",
				"Address blocking unknown before committing to implementation")
			f.Context = clip(c.Content())
			out = append(out, f)
		}
	}
	return out
}

func reviewConstraints(changes []SectionChange, _ *types.Story) []Finding {
	var out []Finding
	for _, c := range changes {
		if c.ChangeType == ChangeRemoved {
			f := finding(c, SeverityMajor, CategoryConsistency,
				"Constraint was removed - verify this does not violate baseline reality",
				"Confirm removal is compatible with system constraints and baseline")
			f.Context = clip(c.Content())
			out = append(out, f)
		}
	}
	return out
}

func reviewNonGoals(changes []SectionChange, _ *types.Story) []Finding {
	var out []Finding
	for _, c := range changes {
		if c.ChangeType == ChangeRemoved {
			f := finding(c, SeverityMinor, CategoryScope,
				"Non-goal was removed - verify this does not indicate scope creep",
				"Confirm scope remains well-defined after removing this exclusion")
			f.Context = clip(c.Content())
			out = append(out, f)
		}
	}
	return out
}

func (c ReviewConfig) wants(ct ChangeType) bool {
	switch ct {
	case ChangeAdded:
		return c.ReviewAdded
	case ChangeModified:
		return c.ReviewModified
	case ChangeRemoved:
		return c.ReviewRemoved
	}
	return false
}

// ReviewSection runs the rule set of one section against that section's
// changes. Findings below MinSeverity are dropped, then the most severe
// MaxFindingsPerSection are kept in the order the rules raised them.
// Findings carry no IDs; ReviewDeltas numbers them.
func ReviewSection(section Section, changes []SectionChange, story *types.Story, cfg ReviewConfig) []Finding {
	reviewer, ok := sectionReviewers[section]
	if !ok {
		return nil
	}
	var relevant []SectionChange
	for _, c := range changes {
		if c.Section == section && cfg.wants(c.ChangeType) {
			relevant = append(relevant, c)
		}
	}
	if len(relevant) == 0 {
		return nil
	}
	var findings []Finding
	for _, f := range reviewer(relevant, story) {
		if f.Severity.Weight() >= cfg.MinSeverity.Weight() {
			findings = append(findings, f)
		}
	}
	return capFindings(findings, cfg.MaxFindingsPerSection)
}

// capFindings keeps the max most severe findings, preserving their order
func capFindings(findings []Finding, max int) []Finding {
	if len(findings) <= max {
		return findings
	}
	idx := make([]int, len(findings))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return findings[b].Severity.Weight() - findings[a].Severity.Weight()
	})
	idx = idx[:max]
	slices.Sort(idx)

	kept := make([]Finding, 0, max)
	for _, i := range idx {
		kept = append(kept, findings[i])
	}
	return kept
}

// ReviewDeltasStrict reviews only the sections the detector flagged as
// changed. Unchanged sections are recorded as skipped.
func ReviewDeltasStrict(det *DetectionResult, story *types.Story, cfg ReviewConfig) (*ReviewResult, error) {
	if det == nil {
		return nil, ErrNoDetection
	}
	if story == nil {
		return nil, ErrNoStory
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid review config: %w", err)
	}

	reviewed := det.ChangedSections()
	isReviewed := make(map[Section]bool, len(reviewed))
	for _, s := range reviewed {
		isReviewed[s] = true
	}
	var skipped []Section
	for _, s := range AllSections {
		if !isReviewed[s] {
			skipped = append(skipped, s)
		}
	}

	var findings []Finding
	for _, s := range reviewed {
		for _, f := range ReviewSection(s, det.Changes, story, cfg) {
			if f.Severity.Weight() >= cfg.MinSeverity.Weight() {
				f.ID = fmt.Sprintf("RF-%d", len(findings)+1)
				findings = append(findings, f)
			}
		}
	}

	var counts SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			counts.Critical++
		case SeverityMajor:
			counts.Major++
		case SeverityMinor:
			counts.Minor++
		case SeverityInfo:
			counts.Info++
		}
	}
	passed := !(cfg.FailOnCritical && counts.Critical > 0) && !(cfg.FailOnMajor && counts.Major > 0)

	return &ReviewResult{
		StoryID:          story.ID,
		ReviewedAt:       time.Now(),
		Findings:         findings,
		SectionsReviewed: reviewed,
		SectionsSkipped:  skipped,
		SectionSummaries: sectionSummaries(reviewed, findings, story),
		Passed:           passed,
		BySeverity:       counts,
		Summary:          reviewSummary(story.ID, findings, counts, len(reviewed), len(skipped), passed),
		Reviewed:         true,
	}, nil
}

// ReviewDeltas is ReviewDeltasStrict that never returns an error: failures
// are reported through Reviewed and Error, and a failed review never passes.
func ReviewDeltas(det *DetectionResult, story *types.Story, cfg ReviewConfig) (res *ReviewResult) {
	failed := func(msg string) *ReviewResult {
		r := &ReviewResult{
			ReviewedAt: time.Now(),
			Summary:    "Delta review failed: " + msg,
			Error:      msg,
		}
		if story != nil {
			r.StoryID = story.ID
		}
		return r
	}
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Sprintf("%v", r))
		}
	}()

	res, err := ReviewDeltasStrict(det, story, cfg)
	if err != nil {
		return failed(err.Error())
	}
	return res
}

func sectionSummaries(reviewed []Section, findings []Finding, story *types.Story) []SectionSummary {
	out := make([]SectionSummary, 0, len(reviewed))
	for _, s := range reviewed {
		sum := SectionSummary{
			Section:       s,
			ItemsReviewed: len(sectionItems(story, s)),
			Passed:        true,
		}
		for _, f := range findings {
			if f.Section != s {
				continue
			}
			sum.FindingsCount++
			if f.Severity == SeverityCritical || f.Severity == SeverityMajor {
				sum.Passed = false
			}
		}
		if sum.FindingsCount == 0 {
			sum.Note = "No issues found"
		} else {
			sum.Note = fmt.Sprintf("%d finding(s) identified", sum.FindingsCount)
		}
		out = append(out, sum)
	}
	return out
}

func reviewSummary(storyID string, findings []Finding, counts SeverityCounts, reviewed, skipped int, passed bool) string {
	prefix := fmt.Sprintf("Delta review for story %s:", storyID)
	if reviewed == 0 {
		return prefix + " No changed sections to review."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s reviewed %d section(s)", prefix, reviewed)
	if skipped > 0 {
		fmt.Fprintf(&b, ", skipped %d unchanged section(s)", skipped)
	}
	if len(findings) == 0 {
		b.WriteString(". No issues found. Review PASSED.")
		return b.String()
	}

	var parts []string
	if counts.Critical > 0 {
		parts = append(parts, fmt.Sprintf("%d critical", counts.Critical))
	}
	if counts.Major > 0 {
		parts = append(parts, fmt.Sprintf("%d major", counts.Major))
	}
	if counts.Minor > 0 {
		parts = append(parts, fmt.Sprintf("%d minor", counts.Minor))
	}
	if counts.Info > 0 {
		parts = append(parts, fmt.Sprintf("%d info", counts.Info))
	}
	verdict := "PASSED"
	if !passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, ". Found %d issue(s): %s. Review %s.", len(findings), strings.Join(parts, ", "), verdict)
	return b.String()
}
