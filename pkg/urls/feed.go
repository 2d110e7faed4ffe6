package urls

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/filter"
)

// FeedFetcher reads session page links from an RSS/Atom feed.
type FeedFetcher struct {
	client     Getter
	feedParser *gofeed.Parser
	marker     string
}

// NewFeedFetcher creates a feed fetcher keeping items whose link contains marker.
func NewFeedFetcher(client Getter, marker string) *FeedFetcher {
	return &FeedFetcher{
		client:     client,
		feedParser: gofeed.NewParser(),
		marker:     marker,
	}
}

// Fetch retrieves and parses the feed at feedURL. The session date comes from
// the link suffix, falling back to the item's publication time.
func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) ([]URL, error) {
	body, err := f.client.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := f.feedParser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}

	links := make([]string, 0, len(feed.Items))
	items := make(map[string]*gofeed.Item, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		links = append(links, item.Link)
		if _, ok := items[item.Link]; !ok {
			items[item.Link] = item
		}
	}

	kept, err := filter.FilterURLs(ctx, links, filter.NewSchemeFilter(), filter.NewContainsFilter(f.marker))
	if err != nil {
		return nil, err
	}

	urls := make([]URL, 0, len(kept))
	for _, link := range kept {
		item := items[link]
		date := SessionDateFromHref(link)
		if date == "" {
			switch {
			case item.PublishedParsed != nil:
				date = item.PublishedParsed.UTC().Format(domain.DateLayout)
			case item.UpdatedParsed != nil:
				date = item.UpdatedParsed.UTC().Format(domain.DateLayout)
			}
		}
		urls = append(urls, URL{Location: link, Title: item.Title, Date: date})
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w in feed %s", ErrNoSessionLinks, feedURL)
	}
	return urls, nil
}
