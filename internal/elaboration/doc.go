// Package elaboration runs one elaboration iteration of a story as an
// explicit phase state machine:
//
//	load_previous -> delta_detect -> delta_review -> escape_hatch ->
//	targeted_review -> aggregate -> update_readiness -> complete
//
// Each phase is a Node that reads an immutable State snapshot and returns an
// Update. The Orchestrator merges updates, advances with Next and stops as
// soon as a node moves the run to the error phase. Every node runs under a
// per-node timeout; exceeding it fails the node rather than the process.
//
// Gap generation and hygiene happen upstream: callers pass the ranked gaps,
// the attack analysis and the previous readiness result in Input.
package elaboration
