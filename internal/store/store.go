package store

import (
	"context"
	"time"

	"PixelBoard/internal/state"
)

// Store is the durable authority for cell state. Implementations must be
// safe for concurrent use; every mutation touches exactly one coordinate.
type Store interface {
	// All returns every painted cell ordered by UpdatedAt ascending.
	All(ctx context.Context) ([]state.Cell, error)

	// Get returns the cell at (x, y) or state.ErrNotFound.
	Get(ctx context.Context, x, y int) (state.Cell, error)

	// Upsert creates or overwrites the cell at (x, y) and returns it with the
	// store-assigned UpdatedAt. An empty author is recorded as Anonymous.
	Upsert(ctx context.Context, x, y int, color, author string) (state.Cell, error)

	// Delete removes the cell at (x, y) and returns what was removed, or
	// state.ErrNotFound when nothing was painted there.
	Delete(ctx context.Context, x, y int) (state.Cell, error)

	// Count returns the number of painted cells.
	Count(ctx context.Context) (int, error)

	// TopPainters aggregates cells per attribution, highest count first and
	// ties broken by label.
	TopPainters(ctx context.Context, limit int) ([]state.PainterCount, error)

	Close() error
}

// Option configures a store implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

func defaults() options {
	return options{now: time.Now}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
