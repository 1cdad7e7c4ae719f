package sdk

import "errors"

// Sentinel errors for common failure cases.
var (
	// ErrEngineClosed is returned by every method called after Close.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrRunNotFound is returned by Resume and Status when no checkpoint exists for the run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilOption is returned when an option is given a nil value it cannot use.
	ErrNilOption = errors.New("option value must not be nil")
)
