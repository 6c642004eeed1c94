package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/prrisk/internal/ai"
	"github.com/dshills/prrisk/internal/detect"
	"github.com/dshills/prrisk/internal/prioritize"
	"github.com/dshills/prrisk/internal/review"
)

const (
	defaultMaxKeyFiles = 10
	maxChecklistRefs   = 3
)

// Input is everything one run produced before merging.
type Input struct {
	Change      review.ChangeRequest
	Files       []review.ChangedFile
	Prioritized prioritize.Result
	Detected    detect.Result
	// AI is nil when the AI pass never ran.
	AI ai.Outcome
}

// Options controls report assembly.
type Options struct {
	Tool    string
	Version string
	// Enabled gates categories. A nil map enables every category.
	Enabled     map[review.Category]bool
	MaxKeyFiles int
	// RunID and Now are generated when empty.
	RunID string
	Now   time.Time
}

// Merge builds the report for one run.
func Merge(in Input, opts Options) *review.AnalysisReport {
	if opts.MaxKeyFiles <= 0 {
		opts.MaxKeyFiles = defaultMaxKeyFiles
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	report := &review.AnalysisReport{
		Tool:        opts.Tool,
		Version:     opts.Version,
		RunID:       opts.RunID,
		Change:      in.Change,
		GeneratedAt: opts.Now,
	}

	pattern := in.Detected.Findings
	if in.Prioritized.Advisory != nil {
		pattern = append([]review.Finding{*in.Prioritized.Advisory}, pattern...)
	}

	var aiFindings []review.Finding
	switch out := in.AI.(type) {
	case ai.Contribution:
		report.Summary = out.Summary
		aiFindings = out.Findings
	case ai.NoContribution:
		report.Degraded = true
		report.DegradedReason = out.Reason
	default:
		report.Degraded = true
		report.DegradedReason = "AI analysis did not run"
	}

	findings := dedupe(pattern, aiFindings)
	findings = gate(findings, opts.Enabled)
	sortFindings(findings)

	report.Findings = findings
	report.Counts = review.ComputeSummary(findings)
	report.KeyFiles = keyFiles(in.Prioritized.Files, opts.MaxKeyFiles)
	report.Checklist = checklist(findings)
	report.Coverage = review.Coverage{
		TotalFiles:    len(in.Files),
		AnalyzedFiles: len(in.Prioritized.Files) - len(in.Detected.Malformed),
		ExcludedFiles: len(in.Prioritized.Excluded),
		SkippedFiles:  len(in.Prioritized.Skipped),
		TruncatedDiff: in.Prioritized.Truncated(),
		Malformed:     in.Detected.Malformed,
	}
	return report
}

// dedupe collapses findings with the same identity. Pattern findings come
// first so they win; a colliding AI suggestion is appended when it says
// something new.
func dedupe(pattern, fromAI []review.Finding) []review.Finding {
	out := make([]review.Finding, 0, len(pattern)+len(fromAI))
	index := make(map[review.Key]int)

	add := func(f review.Finding) {
		k := f.Key()
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, f)
			return
		}
		kept := &out[i]
		if kept.Source == review.SourcePattern && f.Source == review.SourceAI {
			kept.Suggestion = appendSuggestion(kept.Suggestion, f.Suggestion)
		}
	}
	for _, f := range pattern {
		add(f)
	}
	for _, f := range fromAI {
		add(f)
	}
	return out
}

func appendSuggestion(existing, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" || strings.Contains(strings.ToLower(existing), strings.ToLower(extra)) {
		return existing
	}
	if existing == "" {
		return extra
	}
	return existing + " " + extra
}

// gate drops findings of disabled categories. The file-set truncation
// advisory is a coverage disclosure and always survives.
func gate(findings []review.Finding, enabled map[review.Category]bool) []review.Finding {
	if enabled == nil {
		return findings
	}
	out := findings[:0]
	for _, f := range findings {
		if enabled[f.Category] || f.RuleID == prioritize.TruncationRuleID {
			out = append(out, f)
		}
	}
	return out
}

func categoryIndex(c review.Category) int {
	for i, known := range review.Categories {
		if c == known {
			return i
		}
	}
	return len(review.Categories)
}

func sortFindings(findings []review.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ci, cj := categoryIndex(findings[i].Category), categoryIndex(findings[j].Category)
		if ci != cj {
			return ci < cj
		}
		return review.SeverityRank(findings[i].Severity) > review.SeverityRank(findings[j].Severity)
	})
}

func keyFiles(files []review.ChangedFile, limit int) []review.KeyFile {
	ranked := prioritize.Rank(files)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]review.KeyFile, len(ranked))
	for i, f := range ranked {
		out[i] = review.KeyFile{
			Path:      f.Path,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Impact:    review.ImpactFor(f.Changes()),
		}
	}
	return out
}

type checkKey struct {
	category review.Category
	title    string
}

// checklist emits one item per distinct HIGH or MEDIUM finding title within
// a category, listing where it occurs. Findings must already be sorted.
func checklist(findings []review.Finding) []review.ChecklistItem {
	var items []review.ChecklistItem
	refs := make(map[checkKey][]string)
	index := make(map[checkKey]int)

	for _, f := range findings {
		if review.SeverityRank(f.Severity) < review.SeverityRank(review.SeverityMedium) {
			continue
		}
		k := checkKey{f.Category, review.NormalizeTitle(f.Title)}
		if _, ok := index[k]; !ok {
			index[k] = len(items)
			items = append(items, review.ChecklistItem{
				Category: f.Category,
				Severity: f.Severity,
				Title:    f.Title,
			})
		}
		if loc := f.Location(); loc != "" {
			refs[k] = append(refs[k], loc)
		}
	}

	for k, i := range index {
		items[i].Text = checkText(items[i].Title, refs[k])
	}
	return items
}

func checkText(title string, locs []string) string {
	switch {
	case len(locs) == 0:
		return title
	case len(locs) <= maxChecklistRefs:
		return fmt.Sprintf("%s (%s)", title, strings.Join(locs, ", "))
	default:
		return fmt.Sprintf("%s (%s and %d more)", title,
			strings.Join(locs[:maxChecklistRefs], ", "), len(locs)-maxChecklistRefs)
	}
}
