package monitor

import "errors"

var (
	// ErrProviderRead is returned when the managed record could not be read.
	// The cycle is abandoned without probing or changing state.
	ErrProviderRead = errors.New("failed to read dns record")

	// ErrProviderWrite is returned when a transition's record update failed.
	// The transition is not committed and is retried on the next cycle.
	ErrProviderWrite = errors.New("failed to update dns record")
)
