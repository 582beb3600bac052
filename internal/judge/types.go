// Package judge talks to a Judge0-compatible execution backend and turns
// its per-test-case results into submission-level verdicts.
package judge

// BatchItem is one test case execution request sent to the judge backend.
type BatchItem struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// Status is the execution status reported by the judge backend.
// Values 1 and 2 mean the case is still queued or running. Value 3 means
// the output matched the expected output. Value 4 means the run failed
// with a runtime or compile error. Any other value means wrong output.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

const (
	statusInQueue    = 1
	statusProcessing = 2

	// StatusMatched is the backend status for a case whose output matched.
	StatusMatched = 3
	// StatusRuntimeError is the backend status for a runtime or compile failure.
	StatusRuntimeError = 4
)

// Terminal reports whether the status will not change on further polling.
func (s Status) Terminal() bool {
	return s.ID > statusProcessing
}

// Result is one per-test-case outcome returned by the judge backend.
// Time is elapsed wall time in seconds, serialized by the backend as a
// decimal string. Memory is in kilobytes.
type Result struct {
	Token         string `json:"token"`
	Status        Status `json:"status"`
	Time          string `json:"time"`
	Memory        int64  `json:"memory"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
}

// errorOutput returns the most useful diagnostic for a failed case.
func (r Result) errorOutput() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.CompileOutput
}
