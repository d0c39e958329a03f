package cleanhands

import "errors"

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Agent].
	ErrClosed = errors.New("cleanhands: agent is closed")

	// ErrNavigation is returned (wrapped) when the mandatory navigation or
	// form-fill path fails and the compliance status cannot be determined.
	// Capture failures are never reported through it; an episode that could
	// not save a PDF still returns a result.
	ErrNavigation = errors.New("cleanhands: site navigation failed")
)
