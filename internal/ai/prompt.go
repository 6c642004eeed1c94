package ai

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dshills/prrisk/internal/redact"
	"github.com/dshills/prrisk/internal/review"
)

const systemPrompt = `You are a senior software engineer assessing the risk of a pull request. You receive the pull request metadata and the unified diffs of its highest-priority files. Identify risks that need real code understanding: logic errors, race conditions, context-specific security problems, algorithmic or query performance problems, breaking changes for callers, and missing tests for risky behavior.

Rules:
1. Only report problems in the lines the diff adds or changes.
2. Only use file paths that appear in the provided diffs.
3. "line" is the new-file line number derived from the hunk headers, or 0 if the risk is not tied to one line.
4. Do not repeat findings that are listed as already reported.
5. Skip style nits. Every finding must carry a concrete suggestion.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble.

The object must have this exact structure:
{
  "summary": "Two or three sentences on what the pull request does and where its risk lies",
  "findings": [
    {
      "category": "security|breaking-change|performance|test-coverage",
      "severity": "HIGH|MEDIUM|LOW",
      "title": "Short descriptive title",
      "explanation": "What is wrong and why it matters",
      "path": "relative/file/path",
      "line": 1,
      "suggestion": "How to fix it"
    }
  ]
}

If there are no additional risks, respond with an empty findings array.`

const repairPrompt = `Your previous response was not valid JSON. The error was: %s

Respond again with ONLY the JSON object described in the instructions, with no surrounding text.

Your previous response was:
%s`

const maxDescription = 2000

// Budget bounds what is sent to the model.
type Budget struct {
	MaxContextBytes int
	MaxFiles        int
	MaxLinesPerFile int
	MaxTokens       int
	Temperature     float64
}

// promptContext is the bounded, redacted diff payload.
type promptContext struct {
	text       string
	sent       map[string]bool
	order      []string
	omitted    []string
	redactions int
}

// buildContext packs file diffs in priority order until the budget is
// spent. A file that only partly fits is cut at a line boundary.
func buildContext(files []review.ChangedFile, b Budget, redactSecrets bool, redactPaths []string) promptContext {
	pc := promptContext{sent: make(map[string]bool)}
	var out strings.Builder

	for _, f := range files {
		if f.Diff == "" || (b.MaxFiles > 0 && len(pc.order) >= b.MaxFiles) {
			pc.omitted = append(pc.omitted, f.Path)
			continue
		}

		diffText := capLines(f.Diff, b.MaxLinesPerFile)
		if redactSecrets {
			var n int
			diffText, n = redact.Content(diffText, f.Path, redactPaths)
			pc.redactions += n
		}

		header := fmt.Sprintf("### %s (%s, +%d/-%d)\n```diff\n", f.Path, f.Status, f.Additions, f.Deletions)
		footer := "```\n\n"
		section := header + diffText + footer

		if b.MaxContextBytes > 0 {
			remaining := b.MaxContextBytes - out.Len()
			if len(section) > remaining {
				room := remaining - len(header) - len(footer)
				cut := cutBytes(diffText, room)
				if cut == "" {
					pc.omitted = append(pc.omitted, f.Path)
					continue
				}
				section = header + cut + footer
			}
		}

		out.WriteString(section)
		pc.sent[f.Path] = true
		pc.order = append(pc.order, f.Path)
	}
	pc.text = out.String()
	return pc
}

// capLines keeps at most n lines of text.
func capLines(text string, n int) string {
	if n <= 0 {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[:n], "") + fmt.Sprintf("\\ %d more lines not shown\n", len(lines)-n)
}

// cutBytes returns the longest prefix of whole lines within n bytes.
func cutBytes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	idx := strings.LastIndex(text[:n], "\n")
	if idx < 0 {
		return ""
	}
	return text[:idx+1]
}

// buildUserPrompt renders the change request metadata, prior findings and
// the diff payload.
func buildUserPrompt(change review.ChangeRequest, files []review.ChangedFile, pc promptContext, prior []review.Finding, redactSecrets bool) string {
	var b strings.Builder

	b.WriteString("Assess the risk of the following pull request.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", change.Title)
	if change.BaseRef != "" || change.HeadRef != "" {
		fmt.Fprintf(&b, "Branches: %s <- %s\n", change.BaseRef, change.HeadRef)
	}
	desc := strings.TrimSpace(change.Description)
	if len(desc) > maxDescription {
		desc = review.Clip(desc, maxDescription) + "..."
	}
	if redactSecrets {
		desc = redact.Secrets(desc)
	}
	if desc != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", desc)
	}

	var adds, dels int
	paths := make([]string, 0, len(files))
	for _, f := range files {
		adds += f.Additions
		dels += f.Deletions
		paths = append(paths, f.Path)
	}
	fmt.Fprintf(&b, "\nFiles: %d (+%d/-%d)\n", len(files), adds, dels)
	if langs := detectLanguages(paths); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}
	if len(pc.omitted) > 0 {
		fmt.Fprintf(&b, "Not shown for size: %s\n", strings.Join(pc.omitted, ", "))
	}

	if len(prior) > 0 {
		b.WriteString("\nAlready reported by pattern rules (do not repeat):\n")
		for _, f := range prior {
			fmt.Fprintf(&b, "- [%s] %s %s: %s\n", f.Severity, f.Category, f.Location(), f.Title)
		}
	}

	b.WriteString("\n--- BEGIN DIFFS ---\n")
	b.WriteString(pc.text)
	b.WriteString("--- END DIFFS ---\n")

	return b.String()
}

var langMap = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".tf":    "Terraform",
}

func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		if lang, ok := langMap[strings.ToLower(path.Ext(f))]; ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}
