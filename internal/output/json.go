package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/prrisk/internal/review"
)

// JSONSchemaVersion is bumped on incompatible changes to the JSON layout.
const JSONSchemaVersion = "1"

// jsonReport adds per-category totals and a partial flag to the report
// fields, which stay at the top level.
type jsonReport struct {
	SchemaVersion string `json:"schemaVersion"`
	*review.AnalysisReport
	Partial    bool            `json:"partial"`
	ByCategory []categoryTotal `json:"byCategory"`
}

type categoryTotal struct {
	Category review.Category       `json:"category"`
	Label    string                `json:"label"`
	Total    int                   `json:"total"`
	Counts   review.SeverityCounts `json:"counts"`
}

func newJSONReport(report *review.AnalysisReport) jsonReport {
	out := jsonReport{
		SchemaVersion:  JSONSchemaVersion,
		AnalysisReport: report,
		Partial:        report.Degraded || report.Coverage.Partial(),
		ByCategory:     make([]categoryTotal, 0, len(review.Categories)),
	}
	for _, c := range review.Categories {
		findings := report.FindingsIn(c)
		out.ByCategory = append(out.ByCategory, categoryTotal{
			Category: c,
			Label:    c.Label(),
			Total:    len(findings),
			Counts:   review.ComputeSummary(findings).Counts,
		})
	}
	return out
}

// JSONWriter outputs the report with per-category totals for CI tooling.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, report *review.AnalysisReport) error {
	data, err := json.MarshalIndent(newJSONReport(report), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
