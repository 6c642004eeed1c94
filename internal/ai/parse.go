package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/prrisk/internal/review"
)

// errSyntax marks a response that is not parseable JSON. Only these get a
// repair request; a well-formed but invalid response is discarded.
var errSyntax = errors.New("response is not valid JSON")

var responseValidate *validator.Validate

func init() {
	responseValidate = validator.New()
}

type rawResponse struct {
	Summary  string       `json:"summary" validate:"required"`
	Findings []rawFinding `json:"findings" validate:"max=50,dive"`
}

type rawFinding struct {
	Category    string `json:"category" validate:"required,oneof=security breaking-change performance test-coverage"`
	Severity    string `json:"severity" validate:"required,oneof=HIGH MEDIUM LOW"`
	Title       string `json:"title" validate:"required,max=200"`
	Explanation string `json:"explanation" validate:"required"`
	Path        string `json:"path" validate:"required"`
	Line        int    `json:"line" validate:"gte=0"`
	Suggestion  string `json:"suggestion" validate:"required"`
}

// stripFences removes a surrounding markdown code fence.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 2 {
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end--
			}
			content = strings.Join(lines[1:end], "\n")
		}
	}
	return strings.TrimSpace(content)
}

// parseResponse decodes and validates a model response. Any invalid
// finding rejects the whole response. Paths must be among those sent.
func parseResponse(content string, sent map[string]bool) (Contribution, error) {
	var raw rawResponse
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return Contribution{}, fmt.Errorf("%w: %v", errSyntax, err)
	}

	for i := range raw.Findings {
		f := &raw.Findings[i]
		f.Category = strings.ToLower(strings.TrimSpace(f.Category))
		f.Severity = strings.ToUpper(strings.TrimSpace(f.Severity))
		f.Path = strings.TrimPrefix(strings.TrimSpace(f.Path), "./")
		f.Title = strings.TrimSpace(f.Title)
	}
	raw.Summary = strings.TrimSpace(raw.Summary)

	if err := responseValidate.Struct(raw); err != nil {
		return Contribution{}, fmt.Errorf("response failed validation: %w", err)
	}

	out := Contribution{Summary: raw.Summary}
	for _, r := range raw.Findings {
		if !sent[r.Path] {
			return Contribution{}, fmt.Errorf("finding %q references unknown path %q", r.Title, r.Path)
		}
		out.Findings = append(out.Findings, review.Finding{
			Category:    review.Category(r.Category),
			Severity:    review.Severity(r.Severity),
			Title:       r.Title,
			Explanation: strings.TrimSpace(r.Explanation),
			Path:        r.Path,
			Line:        r.Line,
			Source:      review.SourceAI,
			Suggestion:  strings.TrimSpace(r.Suggestion),
		})
	}
	return out, nil
}
