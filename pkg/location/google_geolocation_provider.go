package location

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider locates the host through the Google Maps Geolocation API,
// using nearby WiFi access points when nmcli is available and the public IP otherwise.
type GoogleGeolocationProvider struct {
	client *maps.Client
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleGeolocationProvider{client: c}, nil
}

// GetLocation sends one geolocation request.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Fix, error) {
	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: scanWiFi(ctx),
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Fix{}, err
	}

	return Fix{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
	}, nil
}

// Close releases nothing; the maps client has no persistent resources.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}

// scanWiFi lists visible access points with nmcli. Any failure yields nil, which makes
// the request fall back to IP-based location.
func scanWiFi(ctx context.Context) []maps.WiFiAccessPoint {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil
	}

	out, err := exec.CommandContext(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list").Output()
	if err != nil {
		return nil
	}
	return parseNmcli(string(out))
}

// parseNmcli reads terse nmcli output, where colons inside the BSSID are escaped as "\:".
func parseNmcli(out string) []maps.WiFiAccessPoint {
	var aps []maps.WiFiAccessPoint

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}

		mac := strings.ReplaceAll(line[:idx], `\:`, ":")
		if !isValidMAC(mac) {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}

		aps = append(aps, maps.WiFiAccessPoint{
			MACAddress:     mac,
			SignalStrength: float64(signal),
		})
	}
	return aps
}

// isValidMAC checks for six colon-separated hex octets.
func isValidMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}
	for _, part := range parts {
		if len(part) != 2 {
			return false
		}
		if _, err := strconv.ParseUint(part, 16, 8); err != nil {
			return false
		}
	}
	return true
}
