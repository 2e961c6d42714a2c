package sensorlog

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller mistakes. These are distinct from the
// transient conditions (missing file, malformed line) that the engine
// absorbs into empty results, and from genuine I/O failures, which surface
// as *QueryError.
var (
	// ErrUnknownSensor is returned when a query names a sensor id that is
	// not in the catalog.
	ErrUnknownSensor = errors.New("unknown sensor")

	// ErrInvalidRange is returned when a range query supplies only one
	// bound, or a start after its end.
	ErrInvalidRange = errors.New("invalid time range")
)

// QueryError wraps an unexpected I/O failure with enough context to
// diagnose it: the operation, the sensor, and the file involved. This is
// the only error category that should alarm an operator.
type QueryError struct {
	Op     string
	Sensor string
	Path   string
	Cause  error
}

func (e *QueryError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Op, e.Sensor, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Sensor, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// newQueryError creates a QueryError.
func newQueryError(op, sensor, path string, cause error) *QueryError {
	return &QueryError{Op: op, Sensor: sensor, Path: path, Cause: cause}
}
