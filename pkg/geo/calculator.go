package geo

import (
	"errors"
	"fmt"
)

// SentinelDistance marks a result computed from invalid coordinates.
const SentinelDistance = -1.0

// DistanceResult is a distance together with the label of its unit.
type DistanceResult struct {
	Distance float64 `json:"distance"`
	Unit     string  `json:"unit"`
}

// InvalidResult is returned when either position fails validation.
var InvalidResult = DistanceResult{Distance: SentinelDistance, Unit: LabelInvalid}

// IsInvalid reports whether r is the invalid-input sentinel.
func (r DistanceResult) IsInvalid() bool {
	return r == InvalidResult
}

// DistanceCalculator validates coordinate pairs and measures the distance between them.
// It holds no mutable state.
type DistanceCalculator struct {
	geodesic GeodesicFunc
}

// NewDistanceCalculator returns a calculator backed by fn, or by Vincenty when fn is nil.
func NewDistanceCalculator(fn GeodesicFunc) *DistanceCalculator {
	if fn == nil {
		fn = Vincenty
	}
	return &DistanceCalculator{geodesic: fn}
}

// Compute returns the distance from src to dst expressed in the unit named by unitToken.
//
// Out-of-range or non-numeric coordinates are not errors: they produce InvalidResult.
// A nil src or dst yields ErrMissingInput and an unrecognized unit yields ErrUnknownUnit.
func (c *DistanceCalculator) Compute(src, dst *Coordinates, unitToken string) (DistanceResult, error) {
	if src == nil {
		return DistanceResult{}, fmt.Errorf("source: %w", ErrMissingInput)
	}
	if dst == nil {
		return DistanceResult{}, fmt.Errorf("destination: %w", ErrMissingInput)
	}

	from, err := src.Position()
	if err != nil {
		return recoverInvalid(err)
	}
	to, err := dst.Position()
	if err != nil {
		return recoverInvalid(err)
	}

	unit, err := ParseUnit(unitToken)
	if err != nil {
		return DistanceResult{}, err
	}

	km, err := c.geodesic(from, to)
	if err != nil {
		return DistanceResult{}, fmt.Errorf("geodesic %v -> %v: %w", from, to, err)
	}

	return DistanceResult{Distance: unit.FromKilometers(km), Unit: unit.String()}, nil
}

func recoverInvalid(err error) (DistanceResult, error) {
	if errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrInvalidType) {
		return InvalidResult, nil
	}
	return DistanceResult{}, err
}
