package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"assembly-ledger/pkg/config"
)

func TestEnsureSchema_CreatesTableOnce(t *testing.T) {
	handle, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, handle))
	_, err = handle.ExecContext(ctx,
		`INSERT INTO video_record (session_number, video_date, video_time, external_id) VALUES ('219', '2025-12-10', '11:30', 'abc123')`)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, handle))

	var externalID string
	require.NoError(t, handle.QueryRowContext(ctx,
		`SELECT external_id FROM video_record WHERE session_number = '219'`).Scan(&externalID))
	assert.Equal(t, "abc123", externalID)
}

func TestEnsureSchema_NilHandle(t *testing.T) {
	assert.ErrorContains(t, EnsureSchema(context.Background(), nil), "not connected")
}

func TestPostgresClient_ConnectRequiresDSN(t *testing.T) {
	c := NewPostgresClient(config.MirrorConfig{Workers: 4})

	err := c.Connect(context.Background())

	assert.ErrorContains(t, err, "mirror.postgres_dsn")
	assert.Nil(t, c.DB())
	assert.NoError(t, c.Close())
}

func TestConfigurePool_SizesForWorkers(t *testing.T) {
	handle, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	configurePool(handle, 3)
	assert.Equal(t, 3, handle.Stats().MaxOpenConnections)

	configurePool(handle, 0)
	assert.Equal(t, 1, handle.Stats().MaxOpenConnections)
}
