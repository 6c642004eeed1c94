// Package pipeline runs one change-request analysis end to end.
//
// The stages run in order: load, prioritize, detect and AI analysis,
// merge, render, publish. Detection and AI analysis are independent and run
// concurrently unless the AI pass is configured to see pattern findings,
// in which case it waits for them. The merge is the synchronization point.
//
// The whole run is bounded by a wall-clock budget. AI failures, including
// running out of budget, degrade the report; load and publish failures end
// the run with an error. A nil publisher renders without publishing.
package pipeline
