package grid

import "fmt"

// ConfigError reports invalid grid parameters. It is always raised
// before any point is generated.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "grid config: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// GeometryError reports a boundary geometry that cannot be used for
// membership testing.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return "boundary geometry: " + e.Reason
}

// ConsumerError wraps a dispatch failure. In incremental mode PointID
// identifies the failing point and everything dispatched before it
// stays committed; in batch mode the whole collection failed as a unit.
type ConsumerError struct {
	PointID int64
	Batch   bool
	Err     error
}

func (e *ConsumerError) Error() string {
	if e.Batch {
		return fmt.Sprintf("batch dispatch failed: %v", e.Err)
	}
	return fmt.Sprintf("dispatch of point %d failed: %v", e.PointID, e.Err)
}

func (e *ConsumerError) Unwrap() error { return e.Err }
