package telemetry

import "errors"

var (
	// ErrInvalidConfig is returned when processing options or anomaly
	// parameter configuration fail validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotRunning is returned by operations that require a started
	// processor.
	ErrNotRunning = errors.New("processor is not running")
)
