package location

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// SerialGPSProvider reads NMEA output from a GPS receiver on a serial port.
type SerialGPSProvider struct {
	port     string
	baudRate int
}

// NewSerialGPSProvider creates a provider for the receiver attached to port.
func NewSerialGPSProvider(port string, baudRate int) *SerialGPSProvider {
	if baudRate == 0 {
		baudRate = 9600
	}
	return &SerialGPSProvider{port: port, baudRate: baudRate}
}

// GetLocation returns the first GGA fix read from the port. Sentences without a fix
// are skipped until ctx is done.
func (p *SerialGPSProvider) GetLocation(ctx context.Context) (Fix, error) {
	s, err := serial.OpenPort(&serial.Config{Name: p.port, Baud: p.baudRate, ReadTimeout: time.Second})
	if err != nil {
		return Fix{}, err
	}
	defer s.Close()

	type result struct {
		fix Fix
		err error
	}
	done := make(chan result, 1)

	go func() {
		fix, err := readFix(ctx, s)
		done <- result{fix, err}
	}()

	select {
	case r := <-done:
		return r.fix, r.err
	case <-ctx.Done():
		return Fix{}, ctx.Err()
	}
}

// readFix returns the first GGA sentence with a fix. Empty reads from a timed out
// port are retried until ctx is done.
func readFix(ctx context.Context, r io.Reader) (Fix, error) {
	br := bufio.NewReader(r)
	var pending strings.Builder

	for ctx.Err() == nil {
		chunk, err := br.ReadString('\n')
		pending.WriteString(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
				continue
			}
			return Fix{}, err
		}

		line := strings.TrimSpace(pending.String())
		pending.Reset()
		if !isGGA(line) {
			continue
		}

		fix, err := ParseGGA(line)
		if errors.Is(err, ErrNoFix) {
			continue
		}
		return fix, err
	}
	return Fix{}, ctx.Err()
}

// Close is a no-op; the port is opened per call.
func (p *SerialGPSProvider) Close() error {
	return nil
}
