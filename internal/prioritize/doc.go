// Package prioritize orders a change request's files by review risk and
// bounds how much of it goes into analysis.
//
// Files on security-sensitive paths rank first, documentation, test and
// configuration files last, and change volume breaks ties. Binary, generated
// and vendored files are skipped outright. Files beyond the count ceiling are
// excluded with an advisory finding, and diffs beyond the line ceiling are
// cut with a visible marker line.
package prioritize
