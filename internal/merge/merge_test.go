package merge

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/prrisk/internal/ai"
	"github.com/dshills/prrisk/internal/detect"
	"github.com/dshills/prrisk/internal/prioritize"
	"github.com/dshills/prrisk/internal/review"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func opts() Options {
	return Options{Tool: "prrisk", Version: "test", RunID: "run-1", Now: fixedNow}
}

func secretFinding() review.Finding {
	return review.Finding{
		Category: review.CategorySecurity, Severity: review.SeverityHigh,
		Title: "Hardcoded secret detected", Path: "config.py", Line: 1,
		Source: review.SourcePattern, Suggestion: "Load it from the environment.", RuleID: "hardcoded-secret",
	}
}

func titles(findings []review.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Title
	}
	return out
}

func TestMerge_DedupPatternWins(t *testing.T) {
	aiDup := secretFinding()
	aiDup.Source = review.SourceAI
	aiDup.Title = "Hardcoded  secret detected!"
	aiDup.Severity = review.SeverityMedium
	aiDup.Suggestion = "Rotate the exposed key."

	in := Input{
		Detected: detect.Result{Findings: []review.Finding{secretFinding()}},
		AI:       ai.Contribution{Summary: "s", Findings: []review.Finding{aiDup}},
	}
	r := Merge(in, opts())

	if len(r.Findings) != 1 {
		t.Fatalf("got %d findings, want 1: %+v", len(r.Findings), r.Findings)
	}
	f := r.Findings[0]
	if f.Source != review.SourcePattern || f.Severity != review.SeverityHigh {
		t.Errorf("kept finding = %s/%s, want pattern/HIGH", f.Source, f.Severity)
	}
	if want := "Load it from the environment. Rotate the exposed key."; f.Suggestion != want {
		t.Errorf("suggestion = %q, want %q", f.Suggestion, want)
	}
}

func TestMerge_DuplicateSuggestionNotRepeated(t *testing.T) {
	aiDup := secretFinding()
	aiDup.Source = review.SourceAI
	aiDup.Suggestion = "load it from the environment."

	r := Merge(Input{
		Detected: detect.Result{Findings: []review.Finding{secretFinding()}},
		AI:       ai.Contribution{Summary: "s", Findings: []review.Finding{aiDup}},
	}, opts())
	if got := r.Findings[0].Suggestion; got != "Load it from the environment." {
		t.Errorf("suggestion = %q", got)
	}
}

func TestMerge_OrderCategoryThenSeverity(t *testing.T) {
	in := Input{
		Detected: detect.Result{Findings: []review.Finding{
			{Category: review.CategoryPerformance, Severity: review.SeverityLow, Title: "p-low", Path: "a.py", Source: review.SourcePattern},
			{Category: review.CategoryTestCoverage, Severity: review.SeverityMedium, Title: "t-med", Path: "a.py", Source: review.SourcePattern},
			{Category: review.CategorySecurity, Severity: review.SeverityMedium, Title: "s-med", Path: "a.py", Source: review.SourcePattern},
			{Category: review.CategoryPerformance, Severity: review.SeverityHigh, Title: "p-high", Path: "a.py", Source: review.SourcePattern},
		}},
		AI: ai.Contribution{Summary: "s", Findings: []review.Finding{
			{Category: review.CategorySecurity, Severity: review.SeverityHigh, Title: "s-high-ai", Path: "a.py", Source: review.SourceAI},
			{Category: review.CategorySecurity, Severity: review.SeverityMedium, Title: "s-med-ai", Path: "a.py", Source: review.SourceAI},
			{Category: review.CategoryBreakingChange, Severity: review.SeverityLow, Title: "b-low-ai", Path: "a.py", Source: review.SourceAI},
		}},
	}
	got := titles(Merge(in, opts()).Findings)
	want := []string{"s-high-ai", "s-med", "s-med-ai", "b-low-ai", "p-high", "p-low", "t-med"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Degraded(t *testing.T) {
	r := Merge(Input{
		Detected: detect.Result{Findings: []review.Finding{secretFinding()}},
		AI:       ai.NoContribution{Reason: "AI analysis timed out", Err: errors.New("deadline")},
	}, opts())

	if !r.Degraded || r.DegradedReason != "AI analysis timed out" {
		t.Errorf("degraded = %v %q", r.Degraded, r.DegradedReason)
	}
	if r.Summary != "" {
		t.Errorf("summary = %q, want empty", r.Summary)
	}
	if len(r.Findings) != 1 {
		t.Errorf("pattern findings lost: %+v", r.Findings)
	}

	r = Merge(Input{}, opts())
	if !r.Degraded {
		t.Error("nil outcome should degrade")
	}

	r = Merge(Input{AI: ai.Contribution{Summary: "fine"}}, opts())
	if r.Degraded || r.Summary != "fine" {
		t.Errorf("contribution: degraded=%v summary=%q", r.Degraded, r.Summary)
	}
}

func TestMerge_CategoryGatingKeepsAdvisory(t *testing.T) {
	advisory := review.Finding{
		Category: review.CategoryPerformance, Severity: review.SeverityLow,
		Title: prioritize.TruncationTitle, RuleID: prioritize.TruncationRuleID, Source: review.SourcePattern,
	}
	perf := review.Finding{Category: review.CategoryPerformance, Severity: review.SeverityMedium, Title: "slow", Path: "a.py", Source: review.SourceAI}

	o := opts()
	o.Enabled = map[review.Category]bool{review.CategorySecurity: true}
	r := Merge(Input{
		Prioritized: prioritize.Result{Advisory: &advisory},
		Detected:    detect.Result{Findings: []review.Finding{secretFinding()}},
		AI:          ai.Contribution{Summary: "s", Findings: []review.Finding{perf}},
	}, o)

	got := titles(r.Findings)
	want := []string{"Hardcoded secret detected", prioritize.TruncationTitle}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_KeyFilesAndCoverage(t *testing.T) {
	admitted := []review.ChangedFile{
		{Path: "README.md", Status: review.StatusModified, Additions: 300},
		{Path: "src/auth/session.py", Status: review.StatusModified, Additions: 40, Deletions: 20, Truncated: true},
		{Path: "src/util.py", Status: review.StatusAdded, Additions: 120},
	}
	in := Input{
		Files: make([]review.ChangedFile, 7),
		Prioritized: prioritize.Result{
			Files:    admitted,
			Excluded: make([]review.ChangedFile, 2),
			Skipped:  make([]review.ChangedFile, 2),
		},
		Detected: detect.Result{Malformed: []string{"src/util.py"}},
	}
	o := opts()
	o.MaxKeyFiles = 2
	r := Merge(in, o)

	wantKeys := []review.KeyFile{
		{Path: "src/auth/session.py", Status: review.StatusModified, Additions: 40, Deletions: 20, Impact: review.ImpactMedium},
		{Path: "src/util.py", Status: review.StatusAdded, Additions: 120, Impact: review.ImpactHigh},
	}
	if diff := cmp.Diff(wantKeys, r.KeyFiles); diff != "" {
		t.Errorf("key files mismatch (-want +got):\n%s", diff)
	}

	wantCov := review.Coverage{
		TotalFiles: 7, AnalyzedFiles: 2, ExcludedFiles: 2, SkippedFiles: 2,
		TruncatedDiff: []string{"src/auth/session.py"},
		Malformed:     []string{"src/util.py"},
	}
	if diff := cmp.Diff(wantCov, r.Coverage); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Checklist(t *testing.T) {
	sql := func(path string, line int) review.Finding {
		return review.Finding{Category: review.CategorySecurity, Severity: review.SeverityHigh,
			Title: "Unsafe SQL query construction", Path: path, Line: line, Source: review.SourcePattern}
	}
	in := Input{Detected: detect.Result{Findings: []review.Finding{
		sql("a.py", 1), sql("a.py", 9), sql("b.py", 3), sql("c.py", 4),
		{Category: review.CategoryPerformance, Severity: review.SeverityLow, Title: "Blocking sleep", Path: "a.py", Line: 2, Source: review.SourcePattern},
		{Category: review.CategoryTestCoverage, Severity: review.SeverityMedium, Title: "No test updates for changed file", Path: "a.py", Source: review.SourcePattern},
	}}}
	r := Merge(in, opts())

	want := []review.ChecklistItem{
		{Category: review.CategorySecurity, Severity: review.SeverityHigh, Title: "Unsafe SQL query construction",
			Text: "Unsafe SQL query construction (a.py:1, a.py:9, b.py:3 and 1 more)"},
		{Category: review.CategoryTestCoverage, Severity: review.SeverityMedium, Title: "No test updates for changed file",
			Text: "No test updates for changed file (a.py)"},
	}
	if diff := cmp.Diff(want, r.Checklist); diff != "" {
		t.Errorf("checklist mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Metadata(t *testing.T) {
	r := Merge(Input{Change: review.ChangeRequest{Number: 7}}, Options{Tool: "prrisk"})
	if r.RunID == "" || r.GeneratedAt.IsZero() {
		t.Errorf("run id %q, generated %v", r.RunID, r.GeneratedAt)
	}
	if r.Change.Number != 7 || r.Tool != "prrisk" {
		t.Errorf("report = %+v", r)
	}
	if r.Counts.HighestSeverity != "" {
		t.Errorf("highest = %q, want none", r.Counts.HighestSeverity)
	}
}
