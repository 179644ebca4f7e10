package incident

import "errors"

// Sentinel errors returned by the incident service and repositories.
var (
	// ErrNotFound is returned when resolving an unknown incident id.
	ErrNotFound = errors.New("incident not found")
)
