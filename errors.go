package paintbynumbers

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptions is returned (wrapped) for any configuration rejected
	// before the pipeline starts.
	ErrInvalidOptions = errors.New("invalid options")
	// ErrEmptyImage is returned when the input image has no pixels.
	ErrEmptyImage = errors.New("empty image")
	// ErrCancelled marks a run stopped through its context. It is a terminal
	// status, not a failure: no result is published.
	ErrCancelled = errors.New("pipeline cancelled")
	// ErrUnknownFiletype is returned when no encoder is registered for a
	// profile's filetype.
	ErrUnknownFiletype = errors.New("unknown filetype")
)

// OptionError describes a single rejected option.
//
// It unwraps to ErrInvalidOptions.
type OptionError struct {
	Field  string
	Value  any
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *OptionError) Unwrap() error { return ErrInvalidOptions }

// ExcludedFacet records a facet dropped from rendering after a geometric
// failure. The run continues without it.
type ExcludedFacet struct {
	ID     int
	Pixels int
	Reason string
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
