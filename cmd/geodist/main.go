package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/geo-distance/pkg/geo"
	"github.com/benmeehan/geo-distance/pkg/location"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := newRootCmd().Execute(); err != nil {
		logger.Error().Err(err).Msg("geodist failed")
		os.Exit(1)
	}
}

type options struct {
	from     string
	to       string
	unit     string
	fromNMEA string
	gpsPort  string
	gpsBaud  int
	mapsKey  string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "geodist",
		Short:         "Print the geodesic distance between two points",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "", `origin as "lat,lon[,alt]"`)
	f.StringVar(&opts.to, "to", "", `destination as "lat,lon[,alt]"`)
	f.StringVar(&opts.unit, "unit", "km", "unit of the result: km or nm")
	f.StringVar(&opts.fromNMEA, "from-nmea", "", "origin as an NMEA GGA sentence")
	f.StringVar(&opts.gpsPort, "gps-port", "", "serial port of a GPS receiver to read the origin from")
	f.IntVar(&opts.gpsBaud, "gps-baud", 9600, "baud rate of the GPS receiver")
	f.StringVar(&opts.mapsKey, "maps-key", "", "Google Maps API key to geolocate the origin")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "upper bound on acquiring the origin")
	cmd.MarkFlagsMutuallyExclusive("from", "from-nmea", "gps-port", "maps-key")

	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	src, err := origin(ctx, opts)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}

	var dst *geo.Coordinates
	if opts.to != "" {
		if dst, err = parsePoint(opts.to); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	}

	result, err := geo.NewDistanceCalculator(nil).Compute(src, dst, opts.unit)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(result)
}

// origin resolves the source point from whichever flag was given. A nil result with
// no error means no origin was supplied.
func origin(ctx context.Context, opts options) (*geo.Coordinates, error) {
	switch {
	case opts.from != "":
		return parsePoint(opts.from)
	case opts.fromNMEA != "":
		fix, err := location.ParseGGA(opts.fromNMEA)
		if err != nil {
			return nil, err
		}
		return fix.Coordinates(), nil
	case opts.gpsPort != "":
		return fromProvider(ctx, location.NewSerialGPSProvider(opts.gpsPort, opts.gpsBaud))
	case opts.mapsKey != "":
		p, err := location.NewGoogleGeolocationProvider(opts.mapsKey)
		if err != nil {
			return nil, err
		}
		return fromProvider(ctx, p)
	}
	return nil, nil
}

func fromProvider(ctx context.Context, p location.Provider) (*geo.Coordinates, error) {
	defer p.Close()

	fix, err := p.GetLocation(ctx)
	if err != nil {
		return nil, err
	}
	return fix.Coordinates(), nil
}

// parsePoint splits "lat,lon[,alt]". Fields that are not numbers are passed through as
// strings so the calculator reports them with the invalid result.
func parsePoint(s string) (*geo.Coordinates, error) {
	fields := strings.Split(s, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("point %q: want lat,lon[,alt]", s)
	}

	values := make([]any, 3)
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			values[i] = v
		} else {
			values[i] = f
		}
	}
	return &geo.Coordinates{Latitude: values[0], Longitude: values[1], Altitude: values[2]}, nil
}
