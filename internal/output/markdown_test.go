package output

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dshills/prrisk/internal/review"
)

func sampleReport() *review.AnalysisReport {
	findings := []review.Finding{
		{
			Category: review.CategorySecurity, Severity: review.SeverityHigh,
			Title: "Hardcoded secret detected", Explanation: "A credential literal was added.",
			Path: "config.py", Line: 1, Source: review.SourcePattern,
			Suggestion: "Load the value from the environment.", RuleID: "hardcoded-secret",
		},
		{
			Category: review.CategoryPerformance, Severity: review.SeverityMedium,
			Title: "N+1 query pattern", Explanation: "A query runs inside a loop.",
			Path: "api/users.py", Line: 12, Source: review.SourceAI,
			Suggestion: "Use select_related() to batch the lookup.",
		},
	}
	return &review.AnalysisReport{
		Tool:     "prrisk",
		Version:  "1.2.0",
		RunID:    "run-123",
		Summary:  "Adds configuration loading and a user listing endpoint.",
		Findings: findings,
		Counts:   review.ComputeSummary(findings),
		KeyFiles: []review.KeyFile{
			{Path: "api/users.py", Status: review.StatusModified, Additions: 80, Deletions: 5, Impact: review.ImpactMedium},
			{Path: "config.py", Status: review.StatusAdded, Additions: 3, Impact: review.ImpactLow},
		},
		Checklist: []review.ChecklistItem{
			{Category: review.CategorySecurity, Severity: review.SeverityHigh, Title: "Hardcoded secret detected", Text: "Hardcoded secret detected (config.py:1)"},
		},
		Coverage:    review.Coverage{TotalFiles: 2, AnalyzedFiles: 2},
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func render(t *testing.T, r *review.AnalysisReport, s Sections) string {
	t.Helper()
	out, err := RenderMarkdown(r, s)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	return out
}

func TestMarkdown_Full(t *testing.T) {
	out := render(t, sampleReport(), DefaultSections())

	for _, want := range []string{
		"## PR Risk Analysis",
		"**Coverage:** analyzed 2 of 2 changed files",
		"### Summary\n\nAdds configuration loading",
		"| :memo: `api/users.py` | +80, -5 | Medium |",
		"| :sparkles: `config.py` | +3, -0 | Low |",
		"#### :lock: Security (1)",
		"- :red_circle: **HIGH**: Hardcoded secret detected\n  - `config.py:1`",
		"#### :zap: Performance (1)",
		"N+1 query pattern _(AI)_",
		"```python",
		"- [ ] **HIGH** Hardcoded secret detected (config.py:1)",
		"Generated by prrisk 1.2.0 on 2026-03-01 09:30:00 UTC | pattern analysis + AI | run `run-123`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Partial analysis") {
		t.Error("complete run rendered a partial notice")
	}
	if strings.Index(out, "Security") > strings.Index(out, "Performance") {
		t.Error("categories out of order")
	}
}

func TestMarkdown_NoFindings(t *testing.T) {
	r := sampleReport()
	r.Findings = nil
	r.Checklist = nil
	r.Counts = review.ComputeSummary(nil)
	out := render(t, r, DefaultSections())

	if !strings.Contains(out, "No significant risks detected.") {
		t.Errorf("missing no-risk notice:\n%s", out)
	}
	if strings.Contains(out, "Review Focus Areas") {
		t.Error("empty checklist rendered")
	}
}

func TestMarkdown_Degraded(t *testing.T) {
	r := sampleReport()
	r.Summary = ""
	r.Degraded = true
	r.DegradedReason = "AI analysis timed out after 1m0s"
	out := render(t, r, DefaultSections())

	for _, want := range []string{
		"AI summary unavailable: AI analysis timed out after 1m0s.",
		"> :warning: **Partial analysis**",
		"> - AI analysis unavailable: AI analysis timed out after 1m0s",
		"pattern analysis only",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestMarkdown_CoverageDisclosure(t *testing.T) {
	r := sampleReport()
	r.Coverage = review.Coverage{
		TotalFiles: 64, AnalyzedFiles: 49, ExcludedFiles: 10, SkippedFiles: 4,
		TruncatedDiff: []string{"big.go"}, Malformed: []string{"broken.py"},
	}
	out := render(t, r, DefaultSections())

	for _, want := range []string{
		"analyzed 49 of 64 changed files (4 skipped as binary, generated or vendored)",
		"> - 10 lower-priority files were not analyzed (file limit)",
		"> - Diffs cut at the line limit: `big.go`",
		"> - Diffs that could not be parsed: `broken.py`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestMarkdown_SectionsAndCollapse(t *testing.T) {
	r := sampleReport()
	out := render(t, r, Sections{Risks: true})
	for _, unwanted := range []string{"### Summary", "### Key Files Changed", "### Review Focus Areas"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("disabled section %q rendered", unwanted)
		}
	}

	s := DefaultSections()
	s.CollapseAfter = 1
	out = render(t, r, s)
	if !strings.Contains(out, "<details>\n<summary>:file_folder: 2 key files of 2 changed</summary>") {
		t.Errorf("expected collapsed key files:\n%s", out)
	}
}

func evalFindings(n int) *review.AnalysisReport {
	findings := make([]review.Finding, n)
	for i := range findings {
		findings[i] = review.Finding{
			Category: review.CategorySecurity, Severity: review.SeverityHigh,
			Title: "Dynamic code execution", Explanation: "Code is evaluated from a runtime string.",
			Path: "src/plugins/loader.py", Line: i + 1, Source: review.SourcePattern,
			Suggestion: "Replace eval or exec with explicit parsing such as JSON decoding or a dispatch table.",
			RuleID:     "dynamic-eval",
		}
	}
	r := sampleReport()
	r.Findings = findings
	r.Counts = review.ComputeSummary(findings)
	return r
}

func TestMarkdown_LargeReportFitsCommentLimit(t *testing.T) {
	r := evalFindings(400)

	unbounded := render(t, r, Sections{Risks: true})
	if len(unbounded) <= 65536 {
		t.Fatalf("fixture too small: %d bytes", len(unbounded))
	}

	out := render(t, r, DefaultSections())
	if len(out) > DefaultMaxBytes {
		t.Errorf("body is %d bytes, limit %d", len(out), DefaultMaxBytes)
	}
	if !strings.Contains(out, "_375 more security findings not shown._") {
		t.Errorf("missing hidden-findings line")
	}
	if !strings.Contains(out, "Generated by prrisk") {
		t.Errorf("footer dropped")
	}
}

func TestMarkdown_HalvesListingUntilFits(t *testing.T) {
	r := evalFindings(100)
	s := DefaultSections()
	s.MaxPerCategory = 0
	s.MaxBytes = 6000

	out := render(t, r, s)
	if len(out) > s.MaxBytes {
		t.Errorf("body is %d bytes, limit %d", len(out), s.MaxBytes)
	}
	if !strings.Contains(out, "more security findings not shown._") {
		t.Errorf("missing hidden-findings line:\n%s", out)
	}
	if strings.Contains(out, "size limit") {
		t.Errorf("listing cut should suffice without truncation")
	}
}

func TestMarkdown_TruncatesOversizedBody(t *testing.T) {
	r := sampleReport()
	r.Summary = strings.Repeat("Ünïcödé summary text. ", 5000)
	s := DefaultSections()
	s.MaxBytes = 5000

	out := render(t, r, s)
	if len(out) > s.MaxBytes {
		t.Errorf("body is %d bytes, limit %d", len(out), s.MaxBytes)
	}
	if !utf8.ValidString(out) {
		t.Error("truncated body is not valid UTF-8")
	}
	if !strings.HasSuffix(out, "_Comment truncated to fit the size limit._\n") {
		t.Errorf("missing truncation note")
	}
}

func TestMarkdown_Deterministic(t *testing.T) {
	a := render(t, sampleReport(), DefaultSections())
	b := render(t, sampleReport(), DefaultSections())
	if a != b {
		t.Error("rendering the same report twice differed")
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"func main() {}", true},
		{"cursor.execute(query, params)", false},
		{"Add more documentation", false},
		{"var x = 42", true},
		{"Use tests for the new branch", false},
	}
	for _, tt := range tests {
		got := looksLikeCode(tt.input)
		if got != tt.want {
			t.Errorf("looksLikeCode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInferLang(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app.PY", "python"},
		{"index.ts", "typescript"},
		{"unknown.xyz", ""},
	}
	for _, tt := range tests {
		got := inferLang(tt.path)
		if got != tt.want {
			t.Errorf("inferLang(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMdSeverityIcon(t *testing.T) {
	if mdSeverityIcon(review.SeverityHigh) != ":red_circle:" {
		t.Error("High severity should be red")
	}
	if mdSeverityIcon(review.SeverityMedium) != ":orange_circle:" {
		t.Error("Medium severity should be orange")
	}
	if mdSeverityIcon(review.SeverityLow) != ":yellow_circle:" {
		t.Error("Low severity should be yellow")
	}
}
