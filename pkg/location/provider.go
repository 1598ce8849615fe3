package location

import "context"

// Provider reports the current position of the host.
type Provider interface {
	GetLocation(ctx context.Context) (Fix, error)
	Close() error
}
