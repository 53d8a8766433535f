package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrTeamNotFound = errors.New("team not found")
	ErrNoCheckpoint = errors.New("no checkpoint recorded")
)
