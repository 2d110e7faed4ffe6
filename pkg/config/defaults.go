package config

import (
	"time"

	"assembly-ledger/pkg/httpclient"
	"assembly-ledger/pkg/source"
	"assembly-ledger/pkg/urls"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Path: "data/ledger.csv",
		},
		Crawl: CrawlConfig{
			ListingURL:    "https://www.ars.sicilia.it/agenda/lavori-aula",
			SessionMarker: urls.DefaultSessionMarker,
			RecencyDays:   14,
			Delay:         time.Second,
		},
		HTTP: HTTPConfig{
			UserAgent: "ARS-YouTube-Bot/1.0",
			Profile:   string(httpclient.BotClient),
			Timeout:   30 * time.Second,
			Retries:   3,
			Backoff:   500 * time.Millisecond,
		},
		Source: source.DefaultProfile(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Mirror: MirrorConfig{
			MongoDatabase:   "assembly",
			MongoCollection: "video_records",
			Workers:         4,
		},
	}
}
