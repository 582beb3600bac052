package service

import "context"

// SelfCheckCase pairs a judge input with the output a reference solution must
// produce for it.
type SelfCheckCase struct {
	Input          string
	ExpectedOutput string
}

// SelfCheckOutcome reports how a reference solution fared against the check
// cases. FailedCase is the zero-based index of the first non-matching case,
// or -1 when every case matched.
type SelfCheckOutcome struct {
	Passed       int
	Total        int
	FailedCase   int
	ErrorMessage string
}

// OK reports whether the solution matched every case.
func (o SelfCheckOutcome) OK() bool {
	return o.FailedCase < 0 && o.Passed == o.Total
}

// SolutionChecker runs candidate code against test cases through the judge
// backend. The evaluation pipeline provides the production implementation.
type SolutionChecker interface {
	SelfCheck(ctx context.Context, language, code string, cases []SelfCheckCase) (SelfCheckOutcome, error)
}
