package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"netbloom/internal/domain"
)

// DefaultPollInterval is used when an adapter has no interval configured
const DefaultPollInterval = 5 * time.Second

// SubmitFunc receives the merged snapshot after every successful sync
type SubmitFunc func(ctx context.Context, conns []domain.Connection) error

// Registry manages all registered adapters and their lifecycle
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	configs  map[string]AdapterConfig
	latest   map[string][]domain.Connection
	submit   SubmitFunc
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRegistry creates a new adapter registry
func NewRegistry(submit SubmitFunc, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		configs:  make(map[string]AdapterConfig),
		latest:   make(map[string][]domain.Connection),
		submit:   submit,
		logger:   logger,
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter, config AdapterConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	r.adapters[name] = adapter
	r.configs[name] = config
	r.logger.Info("registered adapter",
		"adapter", name,
		"type", adapter.Type(),
		"enabled", config.Enabled)

	return nil
}

// Start initializes all enabled adapters and begins their sync cycles
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)

	for name, adapter := range r.adapters {
		config := r.configs[name]
		if !config.Enabled {
			r.logger.Info("adapter disabled, skipping", "adapter", name)
			continue
		}

		if err := adapter.Start(r.ctx); err != nil {
			r.logger.Error("failed to start adapter", "adapter", name, "error", err)
			continue
		}

		switch adapter.Type() {
		case AdapterTypePolling:
			r.startPollingLoop(name, adapter, config)
		case AdapterTypeWatch:
			r.startPollingLoop(name, adapter, config)
			if wa, ok := adapter.(WatchAdapter); ok {
				r.startWatchLoop(name, wa)
			}
		}
	}

	return nil
}

// Stop gracefully shuts down all adapters
func (r *Registry) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Wait for all loops to finish
	r.wg.Wait()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, adapter := range r.adapters {
		if err := adapter.Stop(); err != nil {
			r.logger.Warn("error stopping adapter", "adapter", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// TriggerSync manually triggers a sync for a specific adapter
func (r *Registry) TriggerSync(ctx context.Context, name string) error {
	r.mu.RLock()
	adapter, exists := r.adapters[name]
	config := r.configs[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("adapter %s not found", name)
	}

	if !config.Enabled {
		return fmt.Errorf("adapter %s is disabled", name)
	}

	return r.runSync(ctx, name, adapter)
}

// ListAdapters returns information about registered adapters
func (r *Registry) ListAdapters() []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for name, adapter := range r.adapters {
		config := r.configs[name]
		infos = append(infos, AdapterInfo{
			Name:         name,
			Type:         adapter.Type(),
			Enabled:      config.Enabled,
			PollInterval: config.PollInterval.String(),
			Connections:  len(r.latest[name]),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// AdapterInfo provides read-only information about an adapter
type AdapterInfo struct {
	Name         string      `json:"name"`
	Type         AdapterType `json:"type"`
	Enabled      bool        `json:"enabled"`
	PollInterval string      `json:"poll_interval,omitempty"`
	Connections  int         `json:"connections"`
}

// startPollingLoop starts a goroutine that polls the adapter on schedule.
// Callers hold r.mu.
func (r *Registry) startPollingLoop(name string, adapter Adapter, config AdapterConfig) {
	interval := config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx := r.ctx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// Initial sync
		if err := r.runSync(ctx, name, adapter); err != nil {
			r.logger.Warn("sync failed", "adapter", name, "error", err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.runSync(ctx, name, adapter); err != nil {
					r.logger.Warn("sync failed", "adapter", name, "error", err)
				}
			}
		}
	}()

	r.logger.Debug("started polling loop", "adapter", name, "interval", interval)
}

// startWatchLoop syncs the adapter whenever it reports a change.
// Callers hold r.mu.
func (r *Registry) startWatchLoop(name string, adapter WatchAdapter) {
	ctx := r.ctx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := adapter.Watch(ctx, func() {
			if err := r.runSync(ctx, name, adapter); err != nil {
				r.logger.Warn("sync failed", "adapter", name, "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("watch stopped", "adapter", name, "error", err)
		}
	}()
}

// runSync executes a sync and submits the merged snapshot of all adapters
func (r *Registry) runSync(ctx context.Context, name string, adapter Adapter) error {
	conns, err := adapter.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if conns == nil {
		r.logger.Debug("adapter returned no snapshot", "adapter", name)
		return nil
	}

	r.mu.Lock()
	r.latest[name] = conns
	merged := r.mergedLocked()
	r.mu.Unlock()

	if err := r.submit(ctx, merged); err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	r.logger.Debug("adapter sync complete", "adapter", name, "connections", len(conns), "merged", len(merged))
	return nil
}

// mergedLocked returns the union of the latest snapshots, in adapter name
// order so port star indices are stable across cycles
func (r *Registry) mergedLocked() []domain.Connection {
	names := make([]string, 0, len(r.latest))
	for name := range r.latest {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := make([]domain.Connection, 0)
	for _, name := range names {
		merged = append(merged, r.latest[name]...)
	}
	return merged
}
