package detect

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dshills/prrisk/internal/review"
)

// Breaking-change rule ids.
const (
	RuleSignatureChanged = "public-signature-changed"
	RuleAPIRemoved       = "public-api-removed"
)

type declKind int

const (
	declFunc declKind = iota
	declType
)

// decl is a public declaration seen on a diff line.
type decl struct {
	Kind declKind
	Name string
	// Sig is the declaration line with whitespace collapsed.
	Sig  string
	Line int
}

type declPattern struct {
	re   *regexp.Regexp
	kind declKind
	// goExported requires an upper-case first letter instead of no
	// leading underscore.
	goExported bool
}

var declPatterns = []declPattern{
	{regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z]\w*)\s*[\[(]`), declFunc, true},
	{regexp.MustCompile(`^type\s+([A-Za-z]\w*)\s+(?:struct|interface)\b`), declType, true},
	{regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`), declFunc, false},
	{regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)\s*[(:]`), declType, false},
	{regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`), declFunc, false},
	{regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:abstract\s+)?(?:class|interface)\s+([A-Za-z_$][\w$]*)`), declType, false},
	{regexp.MustCompile(`^\s*public\s+(?:abstract\s+|final\s+)*(?:class|interface|enum|record)\s+(\w+)`), declType, false},
	{regexp.MustCompile(`^\s*public\s+(?:static\s+|final\s+|synchronized\s+|abstract\s+)*[\w<>\[\],.?\s]+?\s+(\w+)\s*\(`), declFunc, false},
}

func parseDecl(text string, line int) (decl, bool) {
	for _, p := range declPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := m[1]
		if p.goExported && !unicode.IsUpper([]rune(name)[0]) {
			return decl{}, false
		}
		if !p.goExported && strings.HasPrefix(name, "_") {
			return decl{}, false
		}
		return decl{Kind: p.kind, Name: name, Sig: strings.Join(strings.Fields(text), " "), Line: line}, true
	}
	return decl{}, false
}

// breakingChanges compares removed public declarations against the ones
// added in the same file. A removed declaration re-added verbatim is a move.
// One added with the same name but a different shape is a signature change.
// Otherwise the API was removed or renamed.
//
// This is a textual heuristic: it cannot see callers, and a declaration moved
// to another file reports as removed.
func breakingChanges(path string, lines fileLines) []review.Finding {
	added := make(map[string][]decl)
	sigs := make(map[string]bool)
	for _, a := range lines.Added {
		if d, ok := parseDecl(a.Text, a.Line); ok {
			added[d.Name] = append(added[d.Name], d)
			sigs[d.Sig] = true
		}
	}

	var findings []review.Finding
	seen := make(map[string]bool)
	for _, r := range lines.Removed {
		d, ok := parseDecl(r.Text, r.Pos)
		if !ok || sigs[d.Sig] || seen[d.Sig] {
			continue
		}
		seen[d.Sig] = true

		if repl := sameKind(added[d.Name], d.Kind); repl != nil {
			findings = append(findings, review.Finding{
				Category:    review.CategoryBreakingChange,
				Severity:    review.SeverityMedium,
				Title:       "Public signature changed",
				Explanation: fmt.Sprintf("%s changed from `%s` to `%s`.", d.Name, d.Sig, repl.Sig),
				Path:        path,
				Line:        repl.Line,
				Source:      review.SourcePattern,
				Suggestion:  "Verify all callers are updated or keep a compatible wrapper.",
				RuleID:      RuleSignatureChanged,
				Snippet:     repl.Sig,
			})
			continue
		}

		sev := review.SeverityMedium
		if d.Kind == declType {
			sev = review.SeverityHigh
		}
		findings = append(findings, review.Finding{
			Category:    review.CategoryBreakingChange,
			Severity:    sev,
			Title:       "Public API removed or renamed",
			Explanation: fmt.Sprintf("`%s` was removed without a replacement of the same name in this file.", d.Sig),
			Path:        path,
			Line:        d.Line,
			Source:      review.SourcePattern,
			Suggestion:  "Keep a deprecated alias or confirm no external callers depend on it.",
			RuleID:      RuleAPIRemoved,
			Snippet:     d.Sig,
		})
	}
	return findings
}

func sameKind(ds []decl, kind declKind) *decl {
	for i := range ds {
		if ds[i].Kind == kind {
			return &ds[i]
		}
	}
	return nil
}
