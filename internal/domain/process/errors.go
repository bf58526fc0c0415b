package process

import "errors"

var (
	// ErrNotFound is returned when the referenced process does not exist
	ErrNotFound = errors.New("process not found")

	// ErrInvalidTransition is returned when a (state, event) pair is not
	// in the strategy's transition table
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoStrategy is returned when a process type declares no strategy
	// binding, or the binding resolves to nothing
	ErrNoStrategy = errors.New("no strategy configured for process type")

	// ErrMissingData is returned when a strategy reads a request data key
	// its process never populated
	ErrMissingData = errors.New("missing process data")

	// ErrConflict is returned when a concurrent writer changed the process
	// between load and save; the caller may retry
	ErrConflict = errors.New("process modified concurrently")
)
