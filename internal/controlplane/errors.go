package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrStaleSnapshot = errors.New("catalog snapshot is stale")
	ErrNoWrappers    = errors.New("no reconciled resources to read into")
	ErrNoCharacter   = errors.New("character is not set")
	ErrNoGalaxy      = errors.New("galaxy is not set")
)
