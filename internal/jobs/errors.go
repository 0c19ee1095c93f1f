package jobs

import "github.com/pkg/errors"

// Admission errors. Surfaced to the requester immediately, never retried.
var (
	ErrInvalidRequest = errors.New("jobs: invalid request")
	ErrOverloaded     = errors.New("jobs: overloaded")
)

var (
	ErrNotFound          = errors.New("jobs: job not found")
	ErrIllegalTransition = errors.New("jobs: illegal status transition")
)
