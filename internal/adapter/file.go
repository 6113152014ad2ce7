package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"netbloom/internal/codec"
	"netbloom/internal/domain"
	"netbloom/internal/watcher"
)

// FileAdapter reads a snapshot file written by an external collector
type FileAdapter struct {
	name   string
	path   string
	codec  codec.Importer
	logger *slog.Logger
}

// NewFileAdapter creates an adapter for path. The format follows the file
// extension (.json, .yaml, .yml).
func NewFileAdapter(name, path string, logger *slog.Logger) (*FileAdapter, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileAdapter{name: name, path: path, codec: c, logger: logger}, nil
}

// Name returns the adapter identifier
func (f *FileAdapter) Name() string {
	return f.name
}

// Type returns the adapter type
func (f *FileAdapter) Type() AdapterType {
	return AdapterTypeWatch
}

// Start initializes the adapter
func (f *FileAdapter) Start(ctx context.Context) error {
	f.logger.Debug("file adapter started", "path", f.path)
	return nil
}

// Stop shuts down the adapter
func (f *FileAdapter) Stop() error {
	return nil
}

// Sync reads the file. A missing file means no data yet.
func (f *FileAdapter) Sync(ctx context.Context) ([]domain.Connection, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	conns, err := f.codec.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return conns, nil
}

// Watch reports writes to the snapshot file
func (f *FileAdapter) Watch(ctx context.Context, notify func()) error {
	return watcher.New(f.path, notify).WithLogger(f.logger).Watch(ctx)
}
