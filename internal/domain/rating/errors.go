package rating

import "errors"

// Sentinel error kinds for this package. Callers use errors.Is to detect a
// malformed upstream record, which is fatal to a run's integrity.
var (
	ErrInvalidScore = errors.New("invalid set score")
)
