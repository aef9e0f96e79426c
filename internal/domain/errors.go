package domain

import "errors"

var (
	// ErrConfigIncomplete means the settings do not allow a remote sync.
	// It is not a failure: captures are saved locally instead.
	ErrConfigIncomplete = errors.New("configuration incomplete")

	// ErrInvalidCapture is returned when a capture lacks its url or title.
	ErrInvalidCapture = errors.New("invalid capture")

	// ErrHistoryNotFound is returned when a history entry id is unknown.
	ErrHistoryNotFound = errors.New("history entry not found")
)
