// Package merge combines pattern and AI findings into one AnalysisReport.
//
// Findings are deduplicated by review.Key. On a collision the pattern
// finding is kept and a distinct AI suggestion is appended to it. The
// report lists findings in fixed category order, then by severity, and
// derives the key-file table, the review checklist and the coverage
// disclosure from the same inputs.
package merge
