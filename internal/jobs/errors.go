package jobs

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrAlreadyClaimed is returned when a lease attempt loses the race:
	// the job is held by another worker, already finished, or cancelled
	ErrAlreadyClaimed = errors.New("job already claimed or not claimable")

	// ErrInvalidPayload is returned when a job payload does not decode
	// into the shape its type requires
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrUnknownType is returned for a type string with no payload schema
	ErrUnknownType = errors.New("unknown job type")

	// ErrNoHandler is returned when no handler is registered for a job type
	ErrNoHandler = errors.New("no handler registered for job type")

	// ErrNotCancellable is returned when cancelling a finished job
	ErrNotCancellable = errors.New("job is not in a cancellable state")
)
