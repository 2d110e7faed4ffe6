package urls

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/filter"
	"assembly-ledger/pkg/sitemap"
)

// SitemapFetcher reads session page links from a sitemap or sitemap index.
type SitemapFetcher struct {
	parser *sitemap.Parser
	marker string
}

// NewSitemapFetcher creates a sitemap fetcher keeping entries whose path contains marker.
func NewSitemapFetcher(parser *sitemap.Parser, marker string) *SitemapFetcher {
	return &SitemapFetcher{parser: parser, marker: marker}
}

// Fetch retrieves the sitemap at sitemapURL. The session date comes from the
// link suffix, falling back to the entry's lastmod in its own time zone.
func (f *SitemapFetcher) Fetch(ctx context.Context, sitemapURL string) ([]URL, error) {
	entries, err := f.parser.ParseFromURL(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(entries))
	lastMod := make(map[string]string, len(entries))
	for _, e := range entries {
		links = append(links, e.Location)
		if _, ok := lastMod[e.Location]; !ok {
			lastMod[e.Location] = e.LastMod
		}
	}

	kept, err := filter.FilterURLs(ctx, links,
		filter.NewSchemeFilter(),
		filter.NewBaseURLFilter(),
		filter.NewContainsFilter(f.marker))
	if err != nil {
		return nil, err
	}

	urls := make([]URL, 0, len(kept))
	for _, link := range kept {
		date := SessionDateFromHref(link)
		if date == "" && lastMod[link] != "" {
			if t, err := dateparse.ParseIn(lastMod[link], time.UTC); err == nil {
				date = t.Format(domain.DateLayout)
			}
		}
		urls = append(urls, URL{Location: link, Date: date})
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w in sitemap %s", ErrNoSessionLinks, sitemapURL)
	}
	return urls, nil
}
