package prioritize

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dshills/prrisk/internal/review"
)

// TruncationTitle is the title of the advisory emitted when files are dropped.
const TruncationTitle = "file set truncated"

// TruncationRuleID identifies the truncation advisory.
const TruncationRuleID = "file-set-truncated"

// Limits bounds how much of a change request is analyzed in full.
type Limits struct {
	MaxFiles     int
	MaxDiffLines int
}

// Result is the admitted, ordered file set plus what was left out.
type Result struct {
	// Files are admitted files in priority order. Diffs over the line
	// ceiling are truncated copies.
	Files []review.ChangedFile
	// Excluded are ranked files dropped by the file-count ceiling.
	Excluded []review.ChangedFile
	// Skipped are binary, generated or vendored files never considered.
	Skipped []review.ChangedFile
	// Advisory is set when Excluded is non-empty.
	Advisory *review.Finding
}

// Truncated lists the paths whose diff text was cut to the line ceiling.
func (r Result) Truncated() []string {
	var paths []string
	for _, f := range r.Files {
		if f.Truncated {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Prioritize ranks files, skips ones not worth analyzing and applies limits.
// A zero limit disables that ceiling.
func Prioritize(files []review.ChangedFile, limits Limits) Result {
	var res Result
	var candidates []review.ChangedFile
	for _, f := range files {
		if Skip(f) {
			res.Skipped = append(res.Skipped, f)
			continue
		}
		candidates = append(candidates, f)
	}

	ranked := Rank(candidates)

	if limits.MaxFiles > 0 && len(ranked) > limits.MaxFiles {
		res.Excluded = ranked[limits.MaxFiles:]
		ranked = ranked[:limits.MaxFiles]
		res.Advisory = truncationAdvisory(len(ranked), len(candidates), res.Excluded)
	}

	res.Files = make([]review.ChangedFile, len(ranked))
	for i, f := range ranked {
		res.Files[i] = bound(f, limits.MaxDiffLines)
	}
	return res
}

// Rank returns a copy of files ordered by descending priority score.
// Ties break on path so the order is deterministic.
func Rank(files []review.ChangedFile) []review.ChangedFile {
	out := make([]review.ChangedFile, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := ScoreOf(out[i]), ScoreOf(out[j])
		if si != sj {
			return sj.Less(si)
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Score is a file's priority. Tier dominates, change volume breaks ties.
type Score struct {
	Tier   int
	Volume int
}

// Less reports whether s ranks below o.
func (s Score) Less(o Score) bool {
	if s.Tier != o.Tier {
		return s.Tier < o.Tier
	}
	return s.Volume < o.Volume
}

const (
	tierLow       = 1
	tierDefault   = 2
	tierSensitive = 3
)

// sensitiveTerms mark security-sensitive paths: authentication, credentials,
// cryptography, data access and external API boundaries.
var sensitiveTerms = []string{
	"auth", "login", "session", "oauth", "jwt", "credential", "password",
	"secret", "token", "crypto", "cipher", "encrypt", "security",
	"sql", "database", "query", "repository", "model",
	"api", "endpoint", "route", "controller", "handler", "webhook",
	"payment", "billing", "transaction",
}

// sensitiveSegments only count as a whole path segment or name stem.
var sensitiveSegments = []string{"db", "dal", "store"}

var lowTerms = []string{
	"test", "spec", "mock", "fixture", "testdata",
	"readme", "changelog", "docs/", "doc/", "config", "setting", "migration",
}

var lowExts = []string{".md", ".rst", ".txt", ".yml", ".yaml", ".json", ".toml", ".ini", ".cfg"}

// ScoreOf computes the priority score for one file.
func ScoreOf(f review.ChangedFile) Score {
	return Score{Tier: tierOf(f.Path), Volume: f.Changes()}
}

func tierOf(p string) int {
	lower := strings.ToLower(p)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return tierSensitive
		}
	}
	for _, seg := range strings.Split(lower, "/") {
		stem := strings.TrimSuffix(seg, path.Ext(seg))
		for _, s := range sensitiveSegments {
			if seg == s || stem == s {
				return tierSensitive
			}
		}
	}
	for _, term := range lowTerms {
		if strings.Contains(lower, term) {
			return tierLow
		}
	}
	for _, ext := range lowExts {
		if strings.HasSuffix(lower, ext) {
			return tierLow
		}
	}
	return tierDefault
}

var skipDirs = []string{
	"vendor/", "node_modules/", "third_party/", "dist/", "build/",
	"__pycache__/", ".git/", "bower_components/",
}

var skipSuffixes = []string{
	// media and archives
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg", ".webp",
	".pdf", ".zip", ".tar", ".gz", ".bz2", ".7z", ".xz",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".woff", ".woff2", ".ttf", ".eot",
	// compiled output
	".pyc", ".pyo", ".so", ".dll", ".exe", ".class", ".jar", ".o", ".a", ".wasm",
	// generated
	".min.js", ".min.css", ".map", ".pb.go", "_gen.go", ".gen.go", "_generated.go",
	".pb.gw.go", "_pb2.py", ".snap",
	// lock files
	".lock", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
}

// Skip reports whether a file is binary, generated or vendored and should
// never be analyzed.
func Skip(f review.ChangedFile) bool {
	if f.Binary {
		return true
	}
	lower := strings.ToLower(f.Path)
	for _, dir := range skipDirs {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return true
		}
	}
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// TruncationMarkerPrefix starts the line appended to a cut diff. The leading
// backslash keeps the hunk parseable as a unified diff annotation.
const TruncationMarkerPrefix = `\ prrisk: diff truncated`

func bound(f review.ChangedFile, maxLines int) review.ChangedFile {
	if maxLines <= 0 || f.Diff == "" {
		return f
	}
	lines := strings.Split(strings.TrimSuffix(f.Diff, "\n"), "\n")
	if len(lines) <= maxLines {
		return f
	}
	omitted := len(lines) - maxLines
	kept := append([]string(nil), lines[:maxLines]...)
	kept = append(kept, fmt.Sprintf("%s, %d more lines omitted", TruncationMarkerPrefix, omitted))
	f.Diff = strings.Join(kept, "\n") + "\n"
	f.Truncated = true
	return f
}

func truncationAdvisory(admitted, total int, dropped []review.ChangedFile) *review.Finding {
	names := make([]string, 0, 5)
	for i, f := range dropped {
		if i == 5 {
			names = append(names, fmt.Sprintf("and %d more", len(dropped)-5))
			break
		}
		names = append(names, f.Path)
	}
	return &review.Finding{
		Category: review.CategoryPerformance,
		Severity: review.SeverityLow,
		Title:    TruncationTitle,
		Explanation: fmt.Sprintf(
			"Analysis covered the top %d of %d eligible files by priority. Not analyzed: %s.",
			admitted, total, strings.Join(names, ", ")),
		Source:     review.SourcePattern,
		Suggestion: "Review the excluded files manually or split the change into smaller pull requests.",
		RuleID:     TruncationRuleID,
	}
}
