package judge

import "strconv"

// SubmissionStatus is the submission-level outcome of a batch evaluation.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusAccepted SubmissionStatus = "accepted"
	StatusWrong    SubmissionStatus = "wrong"
	StatusError    SubmissionStatus = "error"
)

// AggregationPolicy controls how per-case failures affect the verdict.
type AggregationPolicy int

const (
	// Exhaustive evaluates every case regardless of earlier failures, so
	// the passed count reflects all cases.
	Exhaustive AggregationPolicy = iota

	// FailFast stops counting after the first non-matching case and
	// reports a partial passed count.
	FailFast
)

// Verdict is the aggregate outcome across all test cases of one batch.
type Verdict struct {
	Status SubmissionStatus

	// Passed is the number of cases whose output matched.
	Passed int

	// Runtime is the summed elapsed time, in seconds, of passed cases.
	Runtime float64

	// Memory is the peak memory, in kilobytes, across all evaluated cases.
	Memory int64

	// ErrorMessage is the stderr or compile output of the first failing
	// case. Empty when the verdict is accepted.
	ErrorMessage string
}

// Aggregate reduces per-case results into a single verdict. Results must
// be in the same order as the submitted test cases. The first failing
// case fixes Status and ErrorMessage; later failures only affect counts
// under the Exhaustive policy.
func Aggregate(results []Result, policy AggregationPolicy) Verdict {
	verdict := Verdict{Status: StatusAccepted}

	for _, result := range results {
		if result.Status.ID == StatusMatched {
			verdict.Passed++
			verdict.Runtime += parseSeconds(result.Time)
			if result.Memory > verdict.Memory {
				verdict.Memory = result.Memory
			}
			continue
		}

		if verdict.Status == StatusAccepted {
			if result.Status.ID == StatusRuntimeError {
				verdict.Status = StatusError
			} else {
				verdict.Status = StatusWrong
			}
			verdict.ErrorMessage = result.errorOutput()
			if policy == FailFast {
				break
			}
		}
		if result.Memory > verdict.Memory {
			verdict.Memory = result.Memory
		}
	}

	return verdict
}

// parseSeconds converts the backend's decimal-string elapsed time.
// Missing or malformed values count as zero.
func parseSeconds(raw string) float64 {
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
