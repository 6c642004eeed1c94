// Package ai asks a language model for a change request summary and the
// risks pattern rules cannot see.
//
// The context sent is bounded by a Budget and redacted before it leaves the
// process. Responses are validated as a whole: one bad finding or a path the
// model was never shown discards the response. Failures never propagate as
// errors; Analyze returns a NoContribution carrying a reason that is safe to
// publish.
package ai
