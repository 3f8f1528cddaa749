// Package escapehatch decides whether a delta-only review is enough for a
// revised story or whether review has to widen.
//
// Four triggers are evaluated independently, each producing a confidence in
// [0, 1] with the evidence behind it:
//
//   - attack_impact: high-risk attack edge cases touch sections the delta
//     review skipped, assumptions failed their challenges, or the attack
//     verdict is critical
//   - cross_cutting: the change spans many sections or produced
//     consistency and dependency findings
//   - scope_expansion: scope findings, a readiness drop, removed non-goals
//   - consistency_violation: removed constraints, ready stories with
//     blocking unknowns, lopsided AC to test hint ratios
//
// When enough triggers clear the threshold the result carries a ReviewScope
// and the stakeholders to involve; otherwise ReviewScope is nil and targeted
// review has nothing to do.
package escapehatch
