package adapter

import (
	"context"
	"time"

	"netbloom/internal/domain"
)

// AdapterType defines how an adapter interacts with its data source
type AdapterType string

const (
	// AdapterTypePolling - adapter pulls a snapshot on a schedule
	AdapterTypePolling AdapterType = "polling"
	// AdapterTypeWatch - adapter is polled and also signals changes itself
	AdapterTypeWatch AdapterType = "watch"
	// AdapterTypeOneShot - manual trigger only
	AdapterTypeOneShot AdapterType = "oneshot"
)

// AdapterConfig holds configuration for an adapter instance
type AdapterConfig struct {
	// Enabled determines if the adapter should run
	Enabled bool `json:"enabled"`
	// PollInterval for polling and watch adapters
	PollInterval time.Duration `json:"poll_interval,omitempty"`
}

// Adapter produces connection snapshots from one source
type Adapter interface {
	// Name returns the unique identifier for this adapter
	Name() string

	// Type returns how this adapter interacts with its source
	Type() AdapterType

	// Start initializes the adapter (called once on startup)
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter
	Stop() error

	// Sync returns the current full snapshot of the source. A nil slice
	// means no data is available this cycle.
	Sync(ctx context.Context) ([]domain.Connection, error)
}

// WatchAdapter is an adapter that can report source changes between polls
type WatchAdapter interface {
	Adapter

	// Watch blocks until ctx is done, calling notify when the source changed
	Watch(ctx context.Context, notify func()) error
}
