// Package positions saves and restores node coordinates through a KVStore so
// that layouts survive restarts without visual jumps.
package positions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"netbloom/internal/domain"
	"netbloom/internal/repository"
)

// DefaultPrefix namespaces position records in the store
const DefaultPrefix = "netbloom_positions"

// Key returns the store key for a data source
func Key(prefix, dataSource string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + dataSource
}

// Bridge reads and writes the position record of one data source.
// The record is read from the store once and kept in memory; every
// successful save updates the positions it wrote and keeps the others. Failures are logged and never returned.
type Bridge struct {
	store  repository.KVStore
	key    string
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	cached record
}

// NewBridge creates a bridge writing under Key(prefix, dataSource)
func NewBridge(store repository.KVStore, prefix, dataSource string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		store:  store,
		key:    Key(prefix, dataSource),
		logger: logger,
	}
}

// Key returns the store key this bridge uses
func (b *Bridge) Key() string {
	return b.key
}

// record is the stored JSON document: {id: {x, y, fx, fy}}
type record map[string]domain.NodePosition

// Save writes every position under the bridge key. It reports whether the
// write succeeded.
func (b *Bridge) Save(ctx context.Context, positions []domain.NodePosition) bool {
	rec := make(record, len(positions))
	for _, p := range positions {
		rec[p.NodeID] = p
	}

	data, err := json.Marshal(rec)
	if err != nil {
		b.logger.Warn("encode positions failed", "key", b.key, "error", err)
		return false
	}
	if err := b.store.Set(ctx, b.key, string(data)); err != nil {
		b.logger.Warn("save positions failed", "key", b.key, "error", err)
		return false
	}

	b.mu.Lock()
	b.loaded = true
	if b.cached == nil {
		b.cached = make(record, len(rec))
	}
	for id, p := range rec {
		b.cached[id] = p
	}
	b.mu.Unlock()

	b.logger.Debug("positions saved", "key", b.key, "nodes", len(rec))
	return true
}

// Load reads the stored record into memory. Only the first call touches the
// store; it returns the number of stored positions.
func (b *Bridge) Load(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded {
		return len(b.cached)
	}
	b.loaded = true

	raw, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		b.logger.Warn("load positions failed", "key", b.key, "error", err)
		return 0
	}
	if !ok {
		return 0
	}

	rec, err := decode(raw)
	if err != nil {
		b.logger.Warn("decode positions failed", "key", b.key, "error", err)
		return 0
	}
	b.cached = rec
	return len(rec)
}

// Apply overwrites x, y, fx, fy of every node that has a loaded position.
// Only numeric stored values are applied; missing or non-numeric fields
// leave the node untouched. It returns the number of nodes that received at
// least one value.
func (b *Bridge) Apply(nodes map[string]*domain.Node) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	applied := 0
	for id, n := range nodes {
		pos, ok := b.cached[id]
		if !ok {
			continue
		}
		if pos.X == nil && pos.Y == nil && pos.FX == nil && pos.FY == nil {
			continue
		}
		pos.ApplyTo(n)
		applied++
	}
	return applied
}

// Restore loads the record if needed and applies it to nodes
func (b *Bridge) Restore(ctx context.Context, nodes map[string]*domain.Node) int {
	b.Load(ctx)
	restored := b.Apply(nodes)
	if restored > 0 {
		b.logger.Info("positions restored", "key", b.key, "nodes", restored)
	}
	return restored
}

// decode parses the record field by field so a non-numeric value for one
// coordinate is skipped instead of failing the whole document
func decode(raw string) (record, error) {
	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}

	rec := make(record, len(doc))
	for id, fields := range doc {
		pos := domain.NodePosition{NodeID: id}
		pos.X = number(fields["x"])
		pos.Y = number(fields["y"])
		pos.FX = number(fields["fx"])
		pos.FY = number(fields["fy"])
		rec[id] = pos
	}
	return rec, nil
}

func number(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}
