// Package output renders analysis reports.
//
// Three formats are supported:
//   - markdown: the pull request comment body, with configurable sections
//   - json: the full structured report
//   - sarif: SARIF v2.1.0 for code scanning upload
//
// Use [GetWriter] to obtain a [Writer] for a format string, or
// [RenderMarkdown] for the comment body with explicit [Sections].
package output
