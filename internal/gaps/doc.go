// Package gaps implements the four independent gap generators that scan a
// story for weaknesses from different perspectives.
//
// # Generators
//
//   - PM: scope, requirement, dependency and priority ambiguity
//   - UX: WCAG accessibility, usability heuristics, design patterns, user flows
//   - QA: acceptance criteria clarity, edge cases, testability, test coverage
//   - Attack: assumption extraction, scripted challenges, risk-scored edge cases
//
// Every heuristic is deterministic keyword or regex matching over the story's
// title, description, acceptance criteria, constraints and the optional
// baseline. No generator consults another's output, so they can run
// concurrently (see RunAll).
//
// # Variants
//
// AnalyzePM, AnalyzeUX, AnalyzeQA and AnalyzeAttack use default configuration
// and never return an error: a missing story or a panic inside a heuristic
// yields a Result with Analyzed false and Error set. NewPMGenerator and the
// other constructors validate a custom configuration and return generators
// whose Generate method reports failures as errors, leaving retry policy to
// the caller.
//
// # Gap conversion
//
// Each perspective's findings are mapped onto the shared 1-5 severity and
// likelihood scales before hygiene:
//
//	UX severity   critical=5 major=4 minor=2 suggestion=1
//	UX likelihood WCAG A=5 AA=4 AAA=3, otherwise 3
//	QA severity   high=4 medium=3 low=2
//	Attack        severity=impact, likelihood=likelihood (both 1-5)
package gaps
