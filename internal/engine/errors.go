package engine

import "errors"

var (
	// ErrOutputMissing means the engine exited cleanly without writing its declared artifact.
	ErrOutputMissing = errors.New("declared output artifact missing")

	// ErrTimeout means the stage exceeded its time budget and was killed.
	ErrTimeout = errors.New("stage timed out")
)
