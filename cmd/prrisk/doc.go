// Prrisk analyzes pull requests for risky changes and keeps a single,
// up-to-date analysis comment on each pull request.
//
// It runs deterministic pattern rules for security, performance, breaking
// changes and test coverage, optionally adds an AI review, and degrades to
// pattern findings alone when the AI service is unavailable.
//
// Usage:
//
//	prrisk analyze                         # analyze $GITHUB_REPOSITORY PR $GITHUB_EVENT_NUMBER
//	prrisk analyze --repo o/r --pr 42      # analyze a specific pull request
//	prrisk analyze --dry-run               # render without publishing
//	prrisk local origin/main..HEAD         # analyze a local revision range
//	prrisk config init                     # write .prrisk.yml with defaults
//
// Exit codes: 0 success, 1 findings at or above --fail-on, 2 usage or
// configuration error, 3 authentication error, 4 runtime error.
package main
