// Package review defines the data model shared by every stage of the risk
// analysis pipeline.
//
// A run starts from a ChangeRequest and its ChangedFile set, produces
// Findings from pattern rules and from the language-model pass, and ends
// with one AnalysisReport that the output package renders and the publish
// package posts.
//
// Findings are value objects. Their deduplication identity (Key) is the
// category, path, line and normalized title, so two detections of the same
// risk on the same line collapse regardless of which rule or source found
// them.
package review
