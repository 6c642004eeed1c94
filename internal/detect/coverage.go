package detect

import (
	"fmt"
	"path"
	"strings"

	"github.com/dshills/prrisk/internal/review"
)

// RuleMissingTests is the rule id of the test-coverage heuristic.
const RuleMissingTests = "missing-test-update"

var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".kt": true, ".scala": true, ".rb": true, ".php": true, ".cs": true,
	".rs": true, ".swift": true, ".c": true, ".cc": true, ".cpp": true, ".h": true,
	".hpp": true, ".m": true, ".vue": true, ".svelte": true,
}

// isTestPath reports whether p looks like a test file.
func isTestPath(p string) bool {
	lower := strings.ToLower(p)
	base := path.Base(lower)
	return strings.Contains(base, "test") ||
		strings.Contains(base, "spec") ||
		strings.Contains(lower, "__tests__/") ||
		strings.HasPrefix(lower, "tests/") ||
		strings.Contains(lower, "/tests/") ||
		strings.HasPrefix(lower, "test/") ||
		strings.Contains(lower, "/test/")
}

// stem returns the lower-cased file name without its extension.
func stem(p string) string {
	base := strings.ToLower(path.Base(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

// missingTest reports a source file with at least minChanges changed lines
// and no test file for its stem anywhere in the change request.
func missingTest(f review.ChangedFile, allPaths []string, minChanges int) (review.Finding, bool) {
	if f.Status == review.StatusRemoved || f.Changes() < minChanges {
		return review.Finding{}, false
	}
	if !sourceExts[strings.ToLower(path.Ext(f.Path))] || isTestPath(f.Path) {
		return review.Finding{}, false
	}
	s := stem(f.Path)
	for _, p := range allPaths {
		if isTestPath(p) && strings.Contains(strings.ToLower(path.Base(p)), s) {
			return review.Finding{}, false
		}
	}
	return review.Finding{
		Category:    review.CategoryTestCoverage,
		Severity:    review.SeverityMedium,
		Title:       "No test updates for changed file",
		Explanation: fmt.Sprintf("%s changed by %d lines with no matching test file in this pull request.", f.Path, f.Changes()),
		Path:        f.Path,
		Source:      review.SourcePattern,
		Suggestion:  "Add or update tests that cover the changed behavior.",
		RuleID:      RuleMissingTests,
	}, true
}
