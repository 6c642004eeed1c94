// Package detect finds risk signatures in the added lines of unified diffs.
//
// Rules live in a static, ordered registry. Each rule pairs metadata
// (category, severity, title, suggestion) with one of two matchers: a
// lineMatcher that fires on a single added line, or a followMatcher that
// fires when an anchor line is followed within a few added lines by a
// completing line, such as a concatenated query that is later executed.
//
// Line numbers are new-file line numbers derived from hunk headers. Only
// added lines are scanned, so existing code in context lines is never
// re-flagged. Two file-level heuristics run alongside the registry: removed
// public declarations (breaking changes) and source files changed without a
// matching test file (test coverage).
//
// A file whose hunks cannot be parsed is skipped and reported in
// Result.Malformed. Files are scanned in parallel; results are deterministic.
package detect
