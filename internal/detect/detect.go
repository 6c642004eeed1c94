package detect

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/prrisk/internal/logging"
	"github.com/dshills/prrisk/internal/redact"
	"github.com/dshills/prrisk/internal/review"
)

const maxSnippet = 160

// Config controls which rule families run and how.
type Config struct {
	// Enabled gates categories. A nil map enables every category.
	Enabled map[review.Category]bool
	// Workers bounds parallel file scans. Zero means one per file.
	Workers int
	// CoverageMinChanges is the changed-line threshold of the test
	// coverage heuristic.
	CoverageMinChanges int
}

// Context carries change-request wide facts the file-level heuristics need.
type Context struct {
	// AllPaths are every path in the change request, admitted or not.
	AllPaths []string
}

// Result holds the findings of one Detect call.
type Result struct {
	Findings  []review.Finding
	Malformed []string
}

// Detector scans diffs against the rule registry.
type Detector struct {
	cfg    Config
	rules  []Rule
	logger *slog.Logger
}

// New creates a Detector. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Detector {
	if cfg.CoverageMinChanges <= 0 {
		cfg.CoverageMinChanges = 10
	}
	return &Detector{cfg: cfg, rules: rules, logger: logging.OrDiscard(logger)}
}

func (d *Detector) enabled(c review.Category) bool {
	if d.cfg.Enabled == nil {
		return true
	}
	return d.cfg.Enabled[c]
}

type fileResult struct {
	findings  []review.Finding
	malformed bool
}

// Detect scans files in parallel and returns findings in input file order,
// then line, then rule order. It only fails when ctx is done.
func (d *Detector) Detect(ctx context.Context, files []review.ChangedFile, dctx Context) (Result, error) {
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if d.cfg.Workers > 0 {
		g.SetLimit(d.cfg.Workers)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.scanFile(f, dctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	for i, r := range results {
		if r.malformed {
			res.Malformed = append(res.Malformed, files[i].Path)
			continue
		}
		res.Findings = append(res.Findings, r.findings...)
	}
	d.logger.Debug("detection complete",
		slog.Int("files", len(files)),
		slog.Int("findings", len(res.Findings)),
		slog.Int("malformed", len(res.Malformed)))
	return res, nil
}

type ranked struct {
	finding review.Finding
	order   int
}

func (d *Detector) scanFile(f review.ChangedFile, dctx Context) fileResult {
	lines, err := parseDiff(f.Diff)
	if err != nil {
		d.logger.Warn("skipping malformed diff", slog.String("path", f.Path), slog.Any("error", err))
		return fileResult{malformed: true}
	}

	var out []ranked
	for idx, r := range d.rules {
		if !d.enabled(r.Category) {
			continue
		}
		for _, line := range matchRule(r, lines.Added) {
			out = append(out, ranked{finding: newFinding(r, f.Path, line), order: idx})
		}
	}

	next := len(d.rules)
	if d.enabled(review.CategoryBreakingChange) {
		for _, fnd := range breakingChanges(f.Path, lines) {
			out = append(out, ranked{finding: fnd, order: next})
		}
	}
	next++
	if d.enabled(review.CategoryTestCoverage) {
		if fnd, ok := missingTest(f, dctx.AllPaths, d.cfg.CoverageMinChanges); ok {
			out = append(out, ranked{finding: fnd, order: next})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].finding.Line != out[j].finding.Line {
			return out[i].finding.Line < out[j].finding.Line
		}
		return out[i].order < out[j].order
	})
	findings := make([]review.Finding, len(out))
	for i, r := range out {
		findings[i] = r.finding
	}
	return fileResult{findings: findings}
}

// matchRule returns each distinct added line a rule fires on.
func matchRule(r Rule, added []addedLine) []addedLine {
	var hits []addedLine
	seen := make(map[int]bool)
	record := func(l addedLine) {
		if !seen[l.Line] {
			seen[l.Line] = true
			hits = append(hits, l)
		}
	}

	switch m := r.match.(type) {
	case lineMatcher:
		for _, l := range added {
			if m.matches(l.Text) {
				record(l)
			}
		}
	case followMatcher:
		cache := make(map[string]*regexp.Regexp)
		for i, l := range added {
			if hit, ok := m.scan(added, i, cache); ok {
				if m.ReportFollow {
					record(hit)
				} else {
					record(l)
				}
			}
		}
	}
	return hits
}

func (m lineMatcher) matches(text string) bool {
	if !m.Pattern.MatchString(text) {
		return false
	}
	if m.Require != nil && !m.Require.MatchString(text) {
		return false
	}
	if m.Exclude != nil && m.Exclude.MatchString(text) {
		return false
	}
	return true
}

// scan checks whether added[i] anchors the matcher and returns the
// following line that completes it.
func (m followMatcher) scan(added []addedLine, i int, cache map[string]*regexp.Regexp) (addedLine, bool) {
	anchor := added[i]
	sub := m.Anchor.FindStringSubmatch(anchor.Text)
	if sub == nil {
		return addedLine{}, false
	}
	if m.Require != nil && !m.Require.MatchString(anchor.Text) {
		return addedLine{}, false
	}

	variable := ""
	if idx := m.Anchor.SubexpIndex("var"); idx > 0 {
		variable = sub[idx]
	}
	follow, ok := cache[variable]
	if !ok {
		pattern := strings.ReplaceAll(m.Follow, "{var}", regexp.QuoteMeta(variable))
		var err error
		follow, err = regexp.Compile(pattern)
		if err != nil {
			return addedLine{}, false
		}
		cache[variable] = follow
	}

	base := indentOf(anchor.Text)
	for j := i + 1; j < len(added) && j <= i+m.Window; j++ {
		next := added[j]
		if next.Hunk != anchor.Hunk {
			break
		}
		if m.Body && strings.TrimSpace(next.Text) != "" && indentOf(next.Text) <= base {
			break
		}
		if follow.MatchString(next.Text) {
			return next, true
		}
	}
	return addedLine{}, false
}

func newFinding(r Rule, path string, l addedLine) review.Finding {
	snippet := strings.TrimSpace(l.Text)
	if r.Redact {
		snippet = redact.Secrets(snippet)
	}
	if len(snippet) > maxSnippet {
		snippet = review.Clip(snippet, maxSnippet) + "…"
	}
	return review.Finding{
		Category:    r.Category,
		Severity:    r.Severity,
		Title:       r.Title,
		Explanation: r.Explanation,
		Path:        path,
		Line:        l.Line,
		Source:      review.SourcePattern,
		Suggestion:  r.Suggestion,
		RuleID:      r.ID,
		Snippet:     snippet,
	}
}
