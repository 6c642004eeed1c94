// Package gitctx reads local git changes for analysis without a pull
// request: working tree, index or a revision range.
//
// Diff text is split per file with sourcegraph/go-diff and converted to
// review.ChangedFile values in the same shape the platform client returns,
// so local runs go through the same pipeline.
package gitctx
