package location

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrianmo/go-nmea"
)

// ErrNoFix is returned for a GGA sentence whose receiver had no position fix.
var ErrNoFix = errors.New("gps receiver has no fix")

// ParseGGA parses a GGA sentence from any talker ($GPGGA, $GNGGA, ...).
func ParseGGA(sentence string) (Fix, error) {
	s, err := nmea.Parse(strings.TrimSpace(sentence))
	if err != nil {
		return Fix{}, fmt.Errorf("parse nmea sentence: %w", err)
	}

	gga, ok := s.(nmea.GGA)
	if !ok {
		return Fix{}, fmt.Errorf("expected GGA sentence, got %s", s.DataType())
	}
	if gga.FixQuality == nmea.Invalid || gga.FixQuality == "" {
		return Fix{}, ErrNoFix
	}

	return Fix{
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Altitude:  gga.Altitude,
		Accuracy:  gga.HDOP,
	}, nil
}

// isGGA reports whether a raw line looks like a GGA sentence from any talker.
func isGGA(line string) bool {
	return len(line) > 6 && line[0] == '$' && line[3:6] == "GGA"
}
