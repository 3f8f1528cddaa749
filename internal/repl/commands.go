package repl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fatih/color"

	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/report"
	"github.com/steveyegge/elab/internal/storyfile"
	"github.com/steveyegge/elab/internal/types"
)

var errNoStory = errors.New("no story loaded (use 'load <file>')")

// cmdLoad loads a story file and makes it current
func (r *REPL) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <file>")
	}
	doc, err := storyfile.Load(args[0])
	if err != nil {
		return err
	}
	r.path, r.doc, r.last = args[0], doc, nil

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s Loaded %s: %s (%d acceptance criteria)\n",
		green("✓"), doc.Story.ID, doc.Story.Title, len(doc.Story.AcceptanceCriteria))
	return nil
}

// current re-reads the loaded story file. A file that no longer parses
// keeps the last good version and reports why.
func (r *REPL) current() (*storyfile.Document, error) {
	if r.doc == nil {
		return nil, errNoStory
	}
	doc, err := storyfile.Load(r.path)
	if err != nil {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "%s %v (using last loaded version)\n", yellow("Warning:"), err)
		return r.doc, nil
	}
	if doc.Story.ID != r.doc.Story.ID {
		r.last = nil
	}
	r.doc = doc
	return doc, nil
}

// cmdShow prints the loaded story
func (r *REPL) cmdShow(args []string) error {
	doc, err := r.current()
	if err != nil {
		return err
	}
	data, err := storyfile.Marshal(doc, storyfile.FormatYAML)
	if err != nil {
		return err
	}
	_, err = r.out.Write(data)
	return err
}

// cmdAnalyze runs gap analysis and readiness scoring
func (r *REPL) cmdAnalyze(args []string) error {
	doc, err := r.current()
	if err != nil {
		return err
	}
	an, err := r.runner.Analyze(r.ctx, doc)
	if err != nil {
		return err
	}
	r.last = an
	report.Analysis(r.out, an, 10)
	return nil
}

// analysis returns the last analysis, running one if there is none
func (r *REPL) analysis() error {
	if r.last != nil {
		return nil
	}
	doc, err := r.current()
	if err != nil {
		return err
	}
	an, err := r.runner.Analyze(r.ctx, doc)
	if err != nil {
		return err
	}
	r.last = an
	return nil
}

// cmdGaps lists the ranked gaps of the last analysis
func (r *REPL) cmdGaps(args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("usage: gaps [n] (n must be a positive number)")
		}
		limit = n
	}
	if err := r.analysis(); err != nil {
		return err
	}
	report.Gaps(r.out, r.last.RankedGaps(), limit)
	return nil
}

// cmdReadiness shows the readiness verdict of the last analysis
func (r *REPL) cmdReadiness(args []string) error {
	if err := r.analysis(); err != nil {
		return err
	}
	report.Readiness(r.out, r.last.Readiness, r.last.PreviousScore)
	return nil
}

// previous loads the optional previous-version file argument
func previous(args []string) (*types.Story, error) {
	if len(args) == 0 {
		return nil, nil
	}
	doc, err := storyfile.Load(args[0])
	if err != nil {
		return nil, err
	}
	return &doc.Story, nil
}

// cmdDiff compares the story with a previous version
func (r *REPL) cmdDiff(args []string) error {
	doc, err := r.current()
	if err != nil {
		return err
	}
	prev, err := previous(args)
	if err != nil {
		return err
	}
	cmp, err := r.runner.Diff(r.ctx, &doc.Story, prev, true)
	if err != nil {
		return err
	}
	report.Comparison(r.out, cmp, true)
	return nil
}

// cmdElaborate runs the full elaboration pipeline
func (r *REPL) cmdElaborate(args []string) error {
	doc, err := r.current()
	if err != nil {
		return err
	}
	prev, err := previous(args)
	if err != nil {
		return err
	}
	el, err := r.runner.Elaborate(r.ctx, doc, prev)
	if err != nil {
		return err
	}
	r.last = el.Analysis
	report.Elaboration(r.out, el.Result)
	return nil
}

// cmdHistory shows stored state and runs for a story
func (r *REPL) cmdHistory(args []string) error {
	var storyID string
	switch {
	case len(args) > 0:
		storyID = args[0]
	case r.doc != nil:
		storyID = r.doc.Story.ID
	default:
		return errNoStory
	}
	h, err := r.runner.History(r.ctx, storyID, 10)
	if err != nil {
		return err
	}
	report.History(r.out, h)
	return nil
}

// cmdEvents shows recent events, for the loaded story when there is one
func (r *REPL) cmdEvents(args []string) error {
	filter := events.EventFilter{Limit: 20}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("usage: events [n] (n must be a positive number)")
		}
		filter.Limit = n
	}
	if r.doc != nil {
		filter.StoryID = r.doc.Story.ID
	}

	evs, err := r.runner.Events(r.ctx, filter)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintf(r.out, "%s\n", gray("No events"))
		return nil
	}
	// Oldest first so the newest lands next to the prompt
	for i := len(evs) - 1; i >= 0; i-- {
		report.Event(r.out, evs[i])
	}
	return nil
}

// cmdPrune applies the event retention policy
func (r *REPL) cmdPrune(args []string) error {
	res, err := r.runner.PruneEvents(r.ctx)
	if err != nil {
		return err
	}
	report.Prune(r.out, res)
	return nil
}
