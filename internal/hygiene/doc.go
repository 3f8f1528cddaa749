// Package hygiene deduplicates, scores, ranks and categorizes the gaps found
// by the gap generators.
//
// # Overview
//
// Each generator reports gaps independently, so the same weakness is often
// reported more than once ("No error handling requirements" from PM and
// "Consider empty/null input handling" from QA rarely collide, but two
// generators flagging missing keyboard support will). Hygiene folds those
// together and turns the survivors into RankedGaps that the readiness scorer
// consumes.
//
// # Pipeline
//
//  1. Deduplicate: pairwise Jaccard similarity over word sets; later gaps
//     merge into earlier ones at or above SimilarityThreshold.
//  2. Score: severity x likelihood, clamped to [1, 25].
//  3. Categorize: mvp_blocking (>=20), mvp_important (>=12), future (>=5),
//     deferred otherwise.
//  4. Rank: stable sort by score descending, MinScore filter, MaxGaps cap.
//  5. History: gaps matching a previous run (by original ID, then by
//     description) inherit the previous history and append one entry.
//
// # History
//
// History is an append-only log. A RankedGap is never edited in place; every
// change produces a new value whose history is the old history plus one
// entry. Callers that want history to survive across runs must pass the
// previous ranked gaps back in; this package does not persist anything.
//
// # Usage
//
//	res := hygiene.Process(hygiene.Input{
//	    StoryID:  story.ID,
//	    Gaps:     fanout.Gaps(),
//	    Analyzed: true,
//	    Previous: previousRanked,
//	}, hygiene.DefaultConfig())
//	if !res.Analyzed {
//	    log.Printf("hygiene failed: %s", res.Error)
//	}
package hygiene
