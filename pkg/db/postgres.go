package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"assembly-ledger/pkg/config"
)

// mirrorIdleTimeout closes pooled connections left idle between mirror runs.
const mirrorIdleTimeout = 5 * time.Minute

const videoRecordDDL = `
CREATE TABLE IF NOT EXISTS video_record (
  session_number TEXT NOT NULL,
  session_date TEXT NOT NULL DEFAULT '',
  page_url TEXT NOT NULL DEFAULT '',
  agenda_url TEXT NOT NULL DEFAULT '',
  provisional_transcript_url TEXT NOT NULL DEFAULT '',
  final_transcript_url TEXT NOT NULL DEFAULT '',
  attachment_url TEXT NOT NULL DEFAULT '',
  video_id TEXT NOT NULL DEFAULT '',
  video_date TEXT NOT NULL,
  video_time TEXT NOT NULL,
  stream_url TEXT NOT NULL DEFAULT '',
  video_page_url TEXT NOT NULL DEFAULT '',
  external_id TEXT NOT NULL DEFAULT '',
  last_check TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  failure_reason TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (session_number, video_date, video_time)
);`

// EnsureSchema creates the video_record mirror table when it is missing.
func EnsureSchema(ctx context.Context, handle *sql.DB) error {
	if handle == nil {
		return errors.New("mirror database not connected")
	}
	if _, err := handle.ExecContext(ctx, videoRecordDDL); err != nil {
		return fmt.Errorf("create video_record table: %w", err)
	}
	return nil
}

// PostgresClient is the SQL mirror target. Once connected its pool is sized
// for the replication workers and the video_record table exists.
type PostgresClient struct {
	db      *sql.DB
	dsn     string
	workers int
}

// NewPostgresClient builds an unconnected client from the mirror settings.
func NewPostgresClient(cfg config.MirrorConfig) *PostgresClient {
	return &PostgresClient{dsn: cfg.PostgresDSN, workers: cfg.Workers}
}

// Connect opens the pool, verifies connectivity and bootstraps the schema.
func (c *PostgresClient) Connect(ctx context.Context) error {
	if c.dsn == "" {
		return errors.New("mirror.postgres_dsn is required")
	}
	handle, err := openMirror(ctx, c.dsn, c.workers)
	if err != nil {
		return fmt.Errorf("postgres mirror: %w", err)
	}
	c.db = handle
	return nil
}

// Close closes the pool.
func (c *PostgresClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the pool. It is nil before Connect.
func (c *PostgresClient) DB() *sql.DB {
	return c.db
}

// openMirror opens a pgx pool on dsn with one connection per worker, pings it
// and creates the mirror table.
func openMirror(ctx context.Context, dsn string, workers int) (*sql.DB, error) {
	handle, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	configurePool(handle, workers)

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := EnsureSchema(ctx, handle); err != nil {
		_ = handle.Close()
		return nil, err
	}
	return handle, nil
}

func configurePool(handle *sql.DB, workers int) {
	if workers <= 0 {
		workers = 1
	}
	handle.SetMaxOpenConns(workers)
	handle.SetMaxIdleConns(workers)
	handle.SetConnMaxIdleTime(mirrorIdleTimeout)
}
