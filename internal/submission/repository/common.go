package repository

import "errors"

var (
	// ErrSubmissionNotFound is returned when no submission matches the given ID.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrNotPending is returned when a finalize targets a submission that has
	// already left the pending state. Finalization happens at most once.
	ErrNotPending = errors.New("submission is not pending")
)
