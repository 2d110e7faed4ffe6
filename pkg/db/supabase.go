package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	supabase "github.com/supabase-community/supabase-go"

	"assembly-ledger/pkg/config"
)

// SupabaseClient mirrors into the Postgres database of a Supabase project.
// The SDK client is built when an API key is configured; the direct
// connection needs the database password.
type SupabaseClient struct {
	db          *sql.DB
	supabaseSDK *supabase.Client
	projectURL  string
	apiKey      string
	password    string
	workers     int
}

// NewSupabaseClient builds an unconnected client from the mirror settings.
func NewSupabaseClient(cfg config.MirrorConfig) *SupabaseClient {
	return &SupabaseClient{
		projectURL: cfg.SupabaseURL,
		apiKey:     cfg.SupabaseKey,
		password:   cfg.SupabaseDBPassword,
		workers:    cfg.Workers,
	}
}

// Connect initializes the SDK client when a key is set and opens the direct
// database connection when a password is set. With a key and no password the
// client works in REST-only mode and DB returns nil.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.projectURL != "" && c.apiKey != "" {
		sdkClient, err := supabase.NewClient(c.projectURL, c.apiKey, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.supabaseSDK = sdkClient
	}

	if c.password == "" {
		if c.supabaseSDK == nil {
			return errors.New("supabase mirror needs mirror.supabase_db_password or mirror.supabase_key")
		}
		return nil
	}

	connStr, err := buildConnectionString(c.projectURL, c.password)
	if err != nil {
		return fmt.Errorf("build connection string: %w", err)
	}
	// Supabase pools through pgbouncer, which cannot share prepared statements.
	connStr = addConnectionParam(connStr, "default_query_exec_mode", "simple_protocol")

	handle, err := openMirror(ctx, connStr, c.workers)
	if err != nil {
		return fmt.Errorf("supabase mirror: %w", err)
	}
	c.db = handle
	return nil
}

// Close closes the direct connection.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the direct connection. It is nil in REST-only mode.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// HasDirectDB reports whether the direct connection is open.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// SDK returns the Supabase client, or nil when no key was configured.
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.supabaseSDK
}

// buildConnectionString derives the direct Postgres DSN of the project behind
// projectURL (https://<project-ref>.supabase.co).
func buildConnectionString(projectURL, password string) (string, error) {
	if projectURL == "" {
		return "", errors.New("supabase URL is required")
	}
	if password == "" {
		return "", errors.New("supabase database password is required")
	}

	parsed, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}
	parts := strings.Split(parsed.Host, ".")
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("invalid supabase URL %q: expected https://<project-ref>.supabase.co", projectURL)
	}

	return fmt.Sprintf("postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require&statement_cache_capacity=0",
		url.QueryEscape(password), parts[0]), nil
}

// addConnectionParam appends key=value unless connStr already sets key.
func addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}
	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return connStr + separator + key + "=" + value
}
