package market

import "context"

// Source fetches one asset's raw price history from an upstream vendor.
// Implementations return the payload bytes untouched together with the shape
// tag the normalizer should use; all parsing happens in the normalizer so
// that every source converges on the same coercion rules.
type Source interface {
	// Name identifies the vendor, stored on the Asset row.
	Name() string
	// Shape returns the normalizer shape tag for this source's payloads.
	Shape() string
	// Fetch pulls up to limit observations for symbol, oldest first.
	Fetch(ctx context.Context, symbol string, limit int) ([]byte, error)
}
