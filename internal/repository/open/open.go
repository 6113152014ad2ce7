// Package open selects and constructs a repository.KVStore from configuration
package open

import (
	"context"
	"fmt"

	"netbloom/internal/config"
	"netbloom/internal/repository"
	"netbloom/internal/repository/memory"
	"netbloom/internal/repository/postgres"
	"netbloom/internal/repository/s3"
	"netbloom/internal/repository/sqlite"
)

// Open returns the store named by cfg.Driver. An empty driver means memory.
func Open(ctx context.Context, cfg config.StorageConfig) (repository.KVStore, error) {
	switch cfg.Driver {
	case "", repository.DriverMemory:
		return memory.New(), nil

	case repository.DriverSQLite:
		repo, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repo, nil

	case repository.DriverPostgres:
		store, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil

	case repository.DriverS3:
		store, err := s3.New(ctx, s3.Config{
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, cfg.Driver)
	}
}
