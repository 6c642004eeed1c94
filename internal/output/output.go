package output

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dshills/prrisk/internal/review"
)

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *review.AnalysisReport) error
}

// Formats lists the supported format names.
var Formats = []string{"markdown", "json", "sarif"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "markdown", "md", "":
		return &MarkdownWriter{Sections: DefaultSections()}, nil
	case "json":
		return &JSONWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// RenderMarkdown returns the comment body for a report.
func RenderMarkdown(report *review.AnalysisReport, sections Sections) (string, error) {
	var buf bytes.Buffer
	w := &MarkdownWriter{Sections: sections}
	if err := w.Write(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteReport writes the report to outPath, or to stdout when outPath is
// empty. Markdown uses sections; other formats ignore them.
func WriteReport(report *review.AnalysisReport, format string, sections Sections, outPath string, stdout io.Writer) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}
	if mw, ok := writer.(*MarkdownWriter); ok {
		mw.Sections = sections
	}

	w := stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if w == nil {
		w = os.Stdout
	}

	return writer.Write(w, report)
}
