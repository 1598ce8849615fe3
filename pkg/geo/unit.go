package geo

import (
	"fmt"
	"strings"
)

// KilometersPerNauticalMile is the definitional length of one nautical mile.
const KilometersPerNauticalMile = 1.852

// Unit is the closed set of units a distance can be expressed in.
type Unit int

const (
	Kilometers Unit = iota
	NauticalMiles
)

// Unit labels as they appear on the wire.
const (
	LabelKilometers    = "km"
	LabelNauticalMiles = "nm"
	LabelInvalid       = "invalid"
)

// ParseUnit resolves a unit token. A blank token means kilometers.
func ParseUnit(token string) (Unit, error) {
	switch strings.TrimSpace(token) {
	case "", LabelKilometers:
		return Kilometers, nil
	case LabelNauticalMiles:
		return NauticalMiles, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, token)
	}
}

// FromKilometers converts a distance in kilometers into u.
func (u Unit) FromKilometers(km float64) float64 {
	switch u {
	case NauticalMiles:
		return km / KilometersPerNauticalMile
	default:
		return km
	}
}

func (u Unit) String() string {
	switch u {
	case Kilometers:
		return LabelKilometers
	case NauticalMiles:
		return LabelNauticalMiles
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}
