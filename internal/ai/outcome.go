package ai

import "github.com/dshills/prrisk/internal/review"

// Outcome is the result of one analysis attempt: either a Contribution or
// a NoContribution. Absence of a contribution is routine, not an error.
type Outcome interface {
	isOutcome()
}

// Contribution is a validated model response.
type Contribution struct {
	Summary    string
	Findings   []review.Finding
	TokensUsed int
}

// NoContribution records why the model added nothing to this run.
type NoContribution struct {
	// Reason is safe to show in the published report.
	Reason string
	// Err is the underlying failure, for logs only.
	Err error
}

func (Contribution) isOutcome()   {}
func (NoContribution) isOutcome() {}

// Label is a short metrics label for the outcome kind.
func Label(o Outcome) string {
	if _, ok := o.(Contribution); ok {
		return "contribution"
	}
	return "no_contribution"
}
