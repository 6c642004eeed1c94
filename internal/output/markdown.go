package output

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dshills/prrisk/internal/review"
)

// Heading opens every comment body.
const Heading = "## PR Risk Analysis"

// Sections selects which parts of the comment are rendered.
type Sections struct {
	Summary   bool
	KeyFiles  bool
	Risks     bool
	Checklist bool
	// CollapseAfter folds the key-file table into a details block when it
	// has more rows than this. Zero never folds.
	CollapseAfter int
	// MaxPerCategory caps the findings listed per category. Zero lists all.
	MaxPerCategory int
	// MaxBytes caps the rendered body. Zero is unbounded.
	MaxBytes int
}

// DefaultMaxBytes keeps a body, plus marker and stamp, under GitHub's
// 65536 character comment limit.
const DefaultMaxBytes = 60000

// DefaultSections renders everything, folds tables over ten rows and
// fits GitHub's comment limit.
func DefaultSections() Sections {
	return Sections{
		Summary:        true,
		KeyFiles:       true,
		Risks:          true,
		Checklist:      true,
		CollapseAfter:  10,
		MaxPerCategory: 25,
		MaxBytes:       DefaultMaxBytes,
	}
}

const truncatedNote = "\n\n_Comment truncated to fit the size limit._\n"

// MarkdownWriter renders the pull request comment body.
type MarkdownWriter struct {
	Sections Sections
}

// Write renders report. When the body exceeds MaxBytes the per-category
// listing is halved until it fits; hidden findings are counted in the body.
func (m *MarkdownWriter) Write(w io.Writer, report *review.AnalysisReport) error {
	limit := m.Sections.MaxPerCategory
	if limit <= 0 {
		limit = -1
	}
	for {
		var buf bytes.Buffer
		m.render(&buf, report, limit)
		if m.Sections.MaxBytes <= 0 || buf.Len() <= m.Sections.MaxBytes {
			_, err := w.Write(buf.Bytes())
			return err
		}
		if limit == 0 {
			body := review.Clip(buf.String(), m.Sections.MaxBytes-len(truncatedNote)) + truncatedNote
			_, err := io.WriteString(w, body)
			return err
		}
		if largest := largestCategory(report); limit < 0 || limit > largest {
			limit = largest
		}
		limit /= 2
	}
}

func largestCategory(report *review.AnalysisReport) int {
	n := 0
	for _, c := range review.Categories {
		n = max(n, len(report.FindingsIn(c)))
	}
	return n
}

// render writes the body listing at most limit findings per category. A
// negative limit lists all.
func (m *MarkdownWriter) render(w io.Writer, report *review.AnalysisReport, limit int) {
	fmt.Fprintf(w, "%s\n\n", Heading)

	writeCoverage(w, report)

	if m.Sections.Summary {
		fmt.Fprintf(w, "### Summary\n\n")
		if report.Degraded || report.Summary == "" {
			reason := report.DegradedReason
			if reason == "" {
				reason = "no summary was produced"
			}
			fmt.Fprintf(w, "_AI summary unavailable: %s. Findings below come from pattern analysis only._\n\n", reason)
		} else {
			fmt.Fprintf(w, "%s\n\n", report.Summary)
		}
	}

	if m.Sections.KeyFiles && len(report.KeyFiles) > 0 {
		m.writeKeyFiles(w, report)
	}

	if m.Sections.Risks {
		writeRisks(w, report, limit)
	}

	if m.Sections.Checklist && len(report.Checklist) > 0 {
		fmt.Fprintf(w, "### Review Focus Areas\n\n")
		for _, item := range report.Checklist {
			fmt.Fprintf(w, "- [ ] **%s** %s\n", item.Severity, item.Text)
		}
		fmt.Fprintln(w)
	}

	source := "pattern analysis + AI"
	if report.Degraded {
		source = "pattern analysis only"
	}
	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "<sub>Generated by %s %s on %s | %s | run `%s`</sub>\n",
		report.Tool, report.Version,
		report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		source, report.RunID)
}

func writeCoverage(w io.Writer, report *review.AnalysisReport) {
	c := report.Coverage
	fmt.Fprintf(w, "**Coverage:** analyzed %d of %d changed files", c.AnalyzedFiles, c.TotalFiles)
	if c.SkippedFiles > 0 {
		fmt.Fprintf(w, " (%d skipped as binary, generated or vendored)", c.SkippedFiles)
	}
	fmt.Fprintf(w, "\n\n")

	if !c.Partial() && !report.Degraded {
		return
	}
	fmt.Fprintf(w, "> :warning: **Partial analysis**\n")
	if report.Degraded {
		fmt.Fprintf(w, "> - AI analysis unavailable: %s\n", orDefault(report.DegradedReason, "unknown reason"))
	}
	if c.ExcludedFiles > 0 {
		fmt.Fprintf(w, "> - %d lower-priority files were not analyzed (file limit)\n", c.ExcludedFiles)
	}
	if len(c.TruncatedDiff) > 0 {
		fmt.Fprintf(w, "> - Diffs cut at the line limit: %s\n", codeList(c.TruncatedDiff))
	}
	if len(c.Malformed) > 0 {
		fmt.Fprintf(w, "> - Diffs that could not be parsed: %s\n", codeList(c.Malformed))
	}
	fmt.Fprintln(w)
}

func (m *MarkdownWriter) writeKeyFiles(w io.Writer, report *review.AnalysisReport) {
	fmt.Fprintf(w, "### Key Files Changed\n\n")
	collapse := m.Sections.CollapseAfter > 0 && len(report.KeyFiles) > m.Sections.CollapseAfter
	if collapse {
		fmt.Fprintf(w, "<details>\n<summary>:file_folder: %d key files of %d changed</summary>\n\n",
			len(report.KeyFiles), report.Coverage.TotalFiles)
	}
	fmt.Fprintf(w, "| File | Changes | Impact |\n")
	fmt.Fprintf(w, "|------|---------|--------|\n")
	for _, f := range report.KeyFiles {
		fmt.Fprintf(w, "| %s `%s` | +%d, -%d | %s |\n", statusIcon(f.Status), f.Path, f.Additions, f.Deletions, f.Impact)
	}
	if collapse {
		fmt.Fprintf(w, "\n</details>\n")
	}
	fmt.Fprintln(w)
}

func writeRisks(w io.Writer, report *review.AnalysisReport, limit int) {
	fmt.Fprintf(w, "### Risk Analysis\n\n")
	if len(report.Findings) == 0 {
		fmt.Fprintf(w, ":white_check_mark: No significant risks detected.\n\n")
		return
	}

	c := report.Counts.Counts
	fmt.Fprintf(w, "%s %d high | %s %d medium | %s %d low\n\n",
		mdSeverityIcon(review.SeverityHigh), c.High,
		mdSeverityIcon(review.SeverityMedium), c.Medium,
		mdSeverityIcon(review.SeverityLow), c.Low)

	for _, cat := range review.Categories {
		findings := report.FindingsIn(cat)
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(w, "#### %s %s (%d)\n\n", categoryIcon(cat), cat.Label(), len(findings))
		shown := findings
		if limit >= 0 && len(shown) > limit {
			shown = shown[:limit]
		}
		for _, f := range shown {
			writeFinding(w, f)
		}
		if hidden := len(findings) - len(shown); hidden > 0 {
			fmt.Fprintf(w, "_%d more %s findings not shown._\n\n", hidden, strings.ToLower(cat.Label()))
		}
	}
}

func writeFinding(w io.Writer, f review.Finding) {
	fmt.Fprintf(w, "- %s **%s**: %s", mdSeverityIcon(f.Severity), f.Severity, f.Title)
	if f.Source == review.SourceAI {
		fmt.Fprintf(w, " _(AI)_")
	}
	fmt.Fprintln(w)

	if loc := f.Location(); loc != "" {
		fmt.Fprintf(w, "  - `%s`\n", loc)
	}
	if f.Explanation != "" && f.Explanation != f.Title {
		fmt.Fprintf(w, "  - %s\n", indent(f.Explanation, "    "))
	}
	if f.Suggestion != "" {
		if looksLikeCode(f.Suggestion) {
			fmt.Fprintf(w, "  - Suggestion:\n\n    ```%s\n    %s\n    ```\n", inferLang(f.Path), indent(f.Suggestion, "    "))
		} else {
			fmt.Fprintf(w, "  - Suggestion: %s\n", indent(f.Suggestion, "    "))
		}
	}
	fmt.Fprintln(w)
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n"+prefix)
}

func codeList(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = "`" + p + "`"
	}
	return strings.Join(quoted, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityHigh:
		return ":red_circle:"
	case review.SeverityMedium:
		return ":orange_circle:"
	case review.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func categoryIcon(c review.Category) string {
	switch c {
	case review.CategorySecurity:
		return ":lock:"
	case review.CategoryBreakingChange:
		return ":warning:"
	case review.CategoryPerformance:
		return ":zap:"
	case review.CategoryTestCoverage:
		return ":test_tube:"
	default:
		return ":pushpin:"
	}
}

func statusIcon(s review.FileStatus) string {
	switch s {
	case review.StatusAdded:
		return ":sparkles:"
	case review.StatusRemoved:
		return ":wastebasket:"
	case review.StatusRenamed:
		return ":arrows_counterclockwise:"
	default:
		return ":memo:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "return ", "var ", "const ",
		"def ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

var fenceLangs = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".cpp":  "cpp",
	".c":    "c",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".tf":   "hcl",
}

func inferLang(p string) string {
	return fenceLangs[strings.ToLower(path.Ext(p))]
}
