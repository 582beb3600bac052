package repository

import "errors"

var (
	// ErrProblemNotFound is returned when no problem matches the given ID.
	ErrProblemNotFound = errors.New("problem not found")
)
