package gaps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/elab/internal/types"
)

// NewGenerators builds the four generators in canonical order (PM, UX, QA,
// Attack), validating each configuration.
func NewGenerators(cfg Config) ([]Generator, error) {
	pm, err := NewPMGenerator(cfg.PM)
	if err != nil {
		return nil, err
	}
	ux, err := NewUXGenerator(cfg.UX)
	if err != nil {
		return nil, err
	}
	qa, err := NewQAGenerator(cfg.QA)
	if err != nil {
		return nil, err
	}
	attack, err := NewAttackGenerator(cfg.Attack)
	if err != nil {
		return nil, err
	}
	return []Generator{pm, ux, qa, attack}, nil
}

// FanoutResult collects the output of every generator in a fan-out.
// Results are indexed in generator order regardless of completion order.
type FanoutResult struct {
	Results []*Result
}

// Gaps concatenates every analyzed generator's gaps in generator order
func (f *FanoutResult) Gaps() []types.Gap {
	var all []types.Gap
	for _, r := range f.Results {
		if r != nil && r.Analyzed {
			all = append(all, r.Gaps...)
		}
	}
	return all
}

// Analyzed reports whether at least one generator produced output
func (f *FanoutResult) Analyzed() bool {
	for _, r := range f.Results {
		if r != nil && r.Analyzed {
			return true
		}
	}
	return false
}

// Warnings collects warnings and errors from every generator, prefixed with
// the generator perspective
func (f *FanoutResult) Warnings() []string {
	var out []string
	for _, r := range f.Results {
		if r == nil {
			continue
		}
		for _, w := range r.Warnings {
			out = append(out, fmt.Sprintf("[%s] %s", r.Perspective, w))
		}
		if r.Error != "" {
			out = append(out, fmt.Sprintf("[%s] %s", r.Perspective, r.Error))
		}
	}
	return out
}

// Get returns the result for a perspective, or nil
func (f *FanoutResult) Get(p types.Perspective) *Result {
	for _, r := range f.Results {
		if r != nil && r.Perspective == p {
			return r
		}
	}
	return nil
}

// Attack returns the attack analysis if the attack generator ran
func (f *FanoutResult) Attack() *AttackAnalysis {
	if r := f.Get(types.PerspectiveAttack); r != nil {
		return r.Attack
	}
	return nil
}

// RunAll runs the generators concurrently. Each generator writes only its own
// slot, so output order matches the input order. The first generator error
// cancels the others and is returned.
func RunAll(ctx context.Context, generators []Generator, story *types.Story, baseline *types.Baseline) (*FanoutResult, error) {
	results := make([]*Result, len(generators))

	g, gctx := errgroup.WithContext(ctx)
	for i, gen := range generators {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s generator panicked: %v", gen.Name(), r)
				}
			}()
			res, err := gen.Generate(gctx, story, baseline)
			if err != nil {
				return fmt.Errorf("%s generator failed: %w", gen.Name(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &FanoutResult{Results: results}, nil
}

// AnalyzeAll runs the default-configured generators concurrently. It never
// returns an error; generators that fail report Analyzed false.
func AnalyzeAll(story *types.Story, baseline *types.Baseline) *FanoutResult {
	analyzers := []func(*types.Story, *types.Baseline) *Result{AnalyzePM, AnalyzeUX, AnalyzeQA, AnalyzeAttack}
	results := make([]*Result, len(analyzers))

	var g errgroup.Group
	for i, analyze := range analyzers {
		g.Go(func() error {
			results[i] = analyze(story, baseline)
			return nil
		})
	}
	_ = g.Wait()
	return &FanoutResult{Results: results}
}
