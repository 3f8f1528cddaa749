// Package delta compares two revisions of a story and reviews only what
// changed between them.
//
// DetectDeltas walks every list section of the story. Object sections
// (acceptance criteria, non-goals, test hints, known unknowns) are keyed by
// item ID; string sections (constraints, affected files, dependencies) are
// keyed by position. Each item is classified as added, modified, removed or
// unchanged and given a significance from 1 to 10. Unchanged items are
// counted in Stats but never emitted as changes.
//
// ReviewDeltas then runs a small rule set over the sections that actually
// changed and records the remaining sections as skipped:
//
//	det := delta.DetectDeltas(prev, curr, 1, 2, delta.DefaultDetectConfig())
//	rev := delta.ReviewDeltas(det, curr, delta.DefaultReviewConfig())
//	if !rev.Passed {
//	    fmt.Println(rev.Summary)
//	}
package delta
