package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Coordinates is a caller-supplied coordinate triple as it arrives off the wire.
// Values are left untyped so that non-numeric input can be told apart from bad ranges.
type Coordinates struct {
	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`
	Altitude  any `json:"altitude,omitempty"`
}

// Position is a validated geographic point. The zero value is (0, 0, 0), which is valid.
type Position struct {
	latitude  float64
	longitude float64
	altitude  float64
}

// NewPosition validates the bounds of latitude and longitude and returns a Position.
func NewPosition(latitude, longitude, altitude float64) (Position, error) {
	if err := checkReal("latitude", latitude); err != nil {
		return Position{}, err
	}
	if err := checkReal("longitude", longitude); err != nil {
		return Position{}, err
	}
	if err := checkReal("altitude", altitude); err != nil {
		return Position{}, err
	}

	if latitude < MinLatitude || latitude > MaxLatitude {
		return Position{}, fmt.Errorf("%w: latitude %v not in [%v, %v]", ErrInvalidRange, latitude, MinLatitude, MaxLatitude)
	}
	if longitude < MinLongitude || longitude > MaxLongitude {
		return Position{}, fmt.Errorf("%w: longitude %v not in [%v, %v]", ErrInvalidRange, longitude, MinLongitude, MaxLongitude)
	}

	return Position{latitude: latitude, longitude: longitude, altitude: altitude}, nil
}

// PositionFromValues builds a Position from untyped values. Latitude and longitude
// must be numeric; strings are never parsed. A nil altitude is treated as 0.
func PositionFromValues(latitude, longitude, altitude any) (Position, error) {
	lat, err := toFloat("latitude", latitude)
	if err != nil {
		return Position{}, err
	}
	lon, err := toFloat("longitude", longitude)
	if err != nil {
		return Position{}, err
	}

	var alt float64
	if altitude != nil {
		if alt, err = toFloat("altitude", altitude); err != nil {
			return Position{}, err
		}
	}

	return NewPosition(lat, lon, alt)
}

// Position validates the triple. A nil receiver yields ErrMissingInput.
func (c *Coordinates) Position() (Position, error) {
	if c == nil {
		return Position{}, ErrMissingInput
	}
	return PositionFromValues(c.Latitude, c.Longitude, c.Altitude)
}

func (p Position) Latitude() float64  { return p.latitude }
func (p Position) Longitude() float64 { return p.longitude }
func (p Position) Altitude() float64  { return p.altitude }

func (p Position) String() string {
	return fmt.Sprintf("(%.7f, %.7f, %.1f)", p.latitude, p.longitude, p.altitude)
}

func checkReal(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is %v", ErrInvalidType, name, v)
	}
	return nil
}

// toFloat accepts Go numeric kinds and json.Number. Everything else, including nil
// and numeric-looking strings, is ErrInvalidType.
func toFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s is absent", ErrInvalidType, name)
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidType, name, n.String(), err)
		}
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}

	return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidType, name, v)
}
