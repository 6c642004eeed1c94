package review

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Severities lists the valid severities, most severe first.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity accepts any casing of high, medium or low.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if SeverityRank(sev) == 0 {
		return "", false
	}
	return sev, true
}

// MeetsThreshold returns true if severity is at or above the threshold.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	t, ok := ParseSeverity(threshold)
	if !ok {
		return false
	}
	return SeverityRank(s) >= SeverityRank(t)
}

// Category represents the type of risk a finding describes.
type Category string

const (
	CategorySecurity       Category = "security"
	CategoryBreakingChange Category = "breaking-change"
	CategoryPerformance    Category = "performance"
	CategoryTestCoverage   Category = "test-coverage"
)

// Categories is the fixed report order of categories.
var Categories = []Category{
	CategorySecurity,
	CategoryBreakingChange,
	CategoryPerformance,
	CategoryTestCoverage,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns a human readable category name.
func (c Category) Label() string {
	switch c {
	case CategorySecurity:
		return "Security"
	case CategoryBreakingChange:
		return "Breaking Changes"
	case CategoryPerformance:
		return "Performance"
	case CategoryTestCoverage:
		return "Test Coverage"
	default:
		return string(c)
	}
}

// Source records which analysis produced a finding.
type Source string

const (
	SourcePattern Source = "pattern"
	SourceAI      Source = "ai"
)

// FileStatus is the change status of a file in a change request.
type FileStatus string

const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusRemoved  FileStatus = "removed"
	StatusRenamed  FileStatus = "renamed"
)

// ChangedFile is one file touched by a change request.
type ChangedFile struct {
	Path         string     `json:"path"`
	PreviousPath string     `json:"previousPath,omitempty"`
	Status       FileStatus `json:"status"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	Diff         string     `json:"-"`
	Binary       bool       `json:"binary,omitempty"`
	Truncated    bool       `json:"truncated,omitempty"`
}

// Changes returns the total changed line count.
func (f ChangedFile) Changes() int {
	return f.Additions + f.Deletions
}

// ChangeRequest describes the pull request under analysis.
type ChangeRequest struct {
	Owner       string `json:"owner,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Number      int    `json:"number,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"-"`
	Author      string `json:"author,omitempty"`
	BaseRef     string `json:"baseRef,omitempty"`
	HeadRef     string `json:"headRef,omitempty"`
	HeadSHA     string `json:"headSha,omitempty"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
}

// Finding represents one detected risk.
type Finding struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Explanation string   `json:"explanation"`
	Path        string   `json:"path,omitempty"`
	// Line is the new-file line number; 0 means the finding is not line attributable.
	Line       int    `json:"line,omitempty"`
	Source     Source `json:"source"`
	Suggestion string `json:"suggestion,omitempty"`
	RuleID     string `json:"ruleId,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Key is the deduplication identity of a finding.
type Key struct {
	Category Category
	Path     string
	Line     int
	Title    string
}

// Key returns the identity used to deduplicate findings.
func (f Finding) Key() Key {
	return Key{
		Category: f.Category,
		Path:     f.Path,
		Line:     f.Line,
		Title:    NormalizeTitle(f.Title),
	}
}

// Location renders path:line, or just the path when there is no line.
func (f Finding) Location() string {
	if f.Path == "" {
		return ""
	}
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.Path, f.Line)
	}
	return f.Path
}

// NormalizeTitle lowercases a title and collapses punctuation and whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// Clip returns s cut to at most n bytes without splitting a UTF-8 sequence.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Impact is the coarse impact tier of a key file.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// ImpactFor classifies a file by its changed line count.
func ImpactFor(changes int) Impact {
	switch {
	case changes > 100:
		return ImpactHigh
	case changes > 50:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// KeyFile is one row in the key-files table.
type KeyFile struct {
	Path      string     `json:"path"`
	Status    FileStatus `json:"status"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Impact    Impact     `json:"impact"`
}

// ChecklistItem is one review-focus entry.
type ChecklistItem struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
}

// Coverage discloses how much of the change request was analyzed.
type Coverage struct {
	TotalFiles    int      `json:"totalFiles"`
	AnalyzedFiles int      `json:"analyzedFiles"`
	ExcludedFiles int      `json:"excludedFiles"`
	SkippedFiles  int      `json:"skippedFiles"`
	TruncatedDiff []string `json:"truncatedDiffs,omitempty"`
	Malformed     []string `json:"malformedDiffs,omitempty"`
}

// Partial reports whether any part of the change request was not fully analyzed.
func (c Coverage) Partial() bool {
	return c.ExcludedFiles > 0 || len(c.TruncatedDiff) > 0 || len(c.Malformed) > 0
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Summary provides an overview of findings.
type Summary struct {
	Counts          SeverityCounts `json:"counts"`
	HighestSeverity Severity       `json:"highestSeverity,omitempty"`
}

// AnalysisReport is the merged result of one analysis run.
type AnalysisReport struct {
	Tool           string          `json:"tool"`
	Version        string          `json:"version"`
	RunID          string          `json:"runId"`
	Change         ChangeRequest   `json:"change"`
	Summary        string          `json:"summary,omitempty"`
	KeyFiles       []KeyFile       `json:"keyFiles"`
	Findings       []Finding       `json:"findings"`
	Checklist      []ChecklistItem `json:"checklist"`
	Degraded       bool            `json:"degraded"`
	DegradedReason string          `json:"degradedReason,omitempty"`
	Coverage       Coverage        `json:"coverage"`
	Counts         Summary         `json:"counts"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// FindingsIn returns the report's findings for one category, in report order.
func (r *AnalysisReport) FindingsIn(c Category) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// ComputeSummary calculates the summary from findings.
func ComputeSummary(findings []Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityLow:
			s.Counts.Low++
		case SeverityMedium:
			s.Counts.Medium++
		case SeverityHigh:
			s.Counts.High++
		}
		if SeverityRank(f.Severity) > SeverityRank(s.HighestSeverity) {
			s.HighestSeverity = f.Severity
		}
	}
	return s
}
