package geo

import "errors"

var (
	// ErrInvalidRange is returned when a latitude or longitude is outside its bounds.
	ErrInvalidRange = errors.New("coordinate out of range")
	// ErrInvalidType is returned when a coordinate is not a finite real number.
	ErrInvalidType = errors.New("coordinate is not a real number")
	// ErrMissingInput is returned when the source or destination is absent.
	ErrMissingInput = errors.New("missing position")
	// ErrUnknownUnit is returned for a unit token outside the supported set.
	ErrUnknownUnit = errors.New("unknown distance unit")
)
