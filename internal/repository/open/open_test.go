package open

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbloom/internal/config"
	"netbloom/internal/repository"
	"netbloom/internal/repository/memory"
	"netbloom/internal/repository/sqlite"
)

func TestOpenMemory(t *testing.T) {
	for _, driver := range []string{"", repository.DriverMemory} {
		store, err := Open(context.Background(), config.StorageConfig{Driver: driver})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
		require.NoError(t, store.Close())
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "positions.db")

	store, err := Open(ctx, config.StorageConfig{
		Driver: repository.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: path},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.IsType(t, &sqlite.Repository{}, store)

	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpenS3RequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: repository.DriverS3})
	require.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "redis"})
	require.ErrorIs(t, err, repository.ErrUnknownDriver)
}
