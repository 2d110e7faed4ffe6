package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/httpclient"
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Ledger.Path) == "" {
		add("ledger.path", "is required")
	}

	for field, value := range map[string]string{
		"crawl.start_url":   c.Crawl.StartURL,
		"crawl.listing_url": c.Crawl.ListingURL,
		"crawl.feed_url":    c.Crawl.FeedURL,
		"crawl.sitemap_url": c.Crawl.SitemapURL,
	} {
		if value != "" && !isHTTPURL(value) {
			add(field, "must be an http(s) URL, got %q", value)
		}
	}
	if c.Crawl.MinDate != "" {
		if _, err := domain.ParseDate(c.Crawl.MinDate); err != nil {
			add("crawl.min_date", "must be YYYY-MM-DD, got %q", c.Crawl.MinDate)
		}
	}
	if c.Crawl.RecencyDays < 0 {
		add("crawl.recency_days", "must not be negative")
	}
	if c.Crawl.Delay < 0 {
		add("crawl.delay", "must not be negative")
	}
	if c.Crawl.MaxSessions < 0 {
		add("crawl.max_sessions", "must not be negative")
	}

	switch httpclient.ClientType(c.HTTP.Profile) {
	case httpclient.BrowserClient, httpclient.CloudflareClient, httpclient.BotClient:
	default:
		add("http.profile", "must be one of: browser, cloudflare, bot")
	}
	if c.HTTP.Retries < 0 {
		add("http.retries", "must not be negative")
	}
	if c.HTTP.Timeout < 0 || c.HTTP.Backoff < 0 {
		add("http", "timeout and backoff must not be negative")
	}

	if err := c.Source.Validate(); err != nil {
		add("source", "%v", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "must be one of: debug, info, warn, error")
	}

	if c.Mirror.MongoURI != "" && (c.Mirror.MongoDatabase == "" || c.Mirror.MongoCollection == "") {
		add("mirror", "mongo_database and mongo_collection are required with mongo_uri")
	}
	if c.Mirror.SupabaseURL != "" && !isHTTPURL(c.Mirror.SupabaseURL) {
		add("mirror.supabase_url", "must be an http(s) URL, got %q", c.Mirror.SupabaseURL)
	}
	if c.Mirror.SupabaseURL == "" && (c.Mirror.SupabaseKey != "" || c.Mirror.SupabaseDBPassword != "") {
		add("mirror.supabase_url", "is required with supabase_key or supabase_db_password")
	}
	if c.Mirror.Workers < 0 {
		add("mirror.workers", "must not be negative")
	}

	return errors.Join(errs...)
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
