// Package config loads the ledger tools configuration from a YAML file, .env
// files and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"assembly-ledger/pkg/httpclient"
	"assembly-ledger/pkg/reconcile"
	"assembly-ledger/pkg/source"
)

// DefaultPath is read when no path is given and CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

// Config is the full configuration.
type Config struct {
	Ledger  LedgerConfig   `yaml:"ledger"`
	Crawl   CrawlConfig    `yaml:"crawl"`
	HTTP    HTTPConfig     `yaml:"http"`
	Source  source.Profile `yaml:"source"`
	Logging LoggingConfig  `yaml:"logging"`
	Mirror  MirrorConfig   `yaml:"mirror"`
}

// LedgerConfig locates the ledger file.
type LedgerConfig struct {
	Path string `yaml:"path" env:"LEDGER_PATH"`
}

// CrawlConfig drives the crawl controller and start page discovery.
type CrawlConfig struct {
	StartURL      string        `yaml:"start_url" env:"CRAWL_START_URL"`
	ListingURL    string        `yaml:"listing_url" env:"CRAWL_LISTING_URL"`
	FeedURL       string        `yaml:"feed_url" env:"CRAWL_FEED_URL"`
	SitemapURL    string        `yaml:"sitemap_url" env:"CRAWL_SITEMAP_URL"`
	SessionMarker string        `yaml:"session_marker" env:"CRAWL_SESSION_MARKER"`
	MinDate       string        `yaml:"min_date" env:"CRAWL_MIN_DATE"`
	RecencyDays   int           `yaml:"recency_days" env:"CRAWL_RECENCY_DAYS"`
	Delay         time.Duration `yaml:"delay" env:"CRAWL_DELAY"`
	MaxSessions   int           `yaml:"max_sessions" env:"CRAWL_MAX_SESSIONS"`
}

// HTTPConfig configures page fetching.
type HTTPConfig struct {
	UserAgent string        `yaml:"user_agent" env:"HTTP_USER_AGENT"`
	Profile   string        `yaml:"profile" env:"HTTP_PROFILE"`
	Timeout   time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT"`
	Retries   int           `yaml:"retries" env:"HTTP_RETRIES"`
	Backoff   time.Duration `yaml:"backoff" env:"HTTP_BACKOFF"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

// MirrorConfig names the optional database mirrors.
type MirrorConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" env:"MIRROR_POSTGRES_DSN"`
	// Supabase settings are used when no postgres_dsn is set.
	SupabaseURL        string `yaml:"supabase_url" env:"MIRROR_SUPABASE_URL"`
	SupabaseKey        string `yaml:"supabase_key" env:"MIRROR_SUPABASE_KEY"`
	SupabaseDBPassword string `yaml:"supabase_db_password" env:"MIRROR_SUPABASE_DB_PASSWORD"`
	MongoURI           string `yaml:"mongo_uri" env:"MIRROR_MONGO_URI"`
	MongoDatabase      string `yaml:"mongo_database" env:"MIRROR_MONGO_DATABASE"`
	MongoCollection    string `yaml:"mongo_collection" env:"MIRROR_MONGO_COLLECTION"`
	Workers            int    `yaml:"workers" env:"MIRROR_WORKERS"`
}

// Load builds the configuration. An empty path falls back to CONFIG_PATH and
// then DefaultPath; a missing default file means defaults only, while a
// missing explicit file is an error.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	explicit := path != ""
	if !explicit {
		if env := os.Getenv("CONFIG_PATH"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecencyWindow is the trailing window in which sessions are always
// re-validated. recency_days: 0 disables forced refreshes.
func (c *Config) RecencyWindow() time.Duration {
	if c.Crawl.RecencyDays == 0 {
		return reconcile.NoRecencyWindow
	}
	return time.Duration(c.Crawl.RecencyDays) * 24 * time.Hour
}

// ClientType maps the configured HTTP profile to a client type.
func (c *Config) ClientType() httpclient.ClientType {
	return httpclient.ClientType(c.HTTP.Profile)
}

// HTTPOptions returns the client options.
func (c *Config) HTTPOptions() httpclient.Options {
	return httpclient.Options{
		UserAgent: c.HTTP.UserAgent,
		Timeout:   c.HTTP.Timeout,
		Retries:   c.HTTP.Retries,
		Backoff:   c.HTTP.Backoff,
	}
}
