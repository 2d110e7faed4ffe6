package urls

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"assembly-ledger/pkg/filter"
)

// Getter retrieves a page body. *httpclient.HTTPClient satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// URLExtractor is a function type that extracts URLs from HTML content.
type URLExtractor func(ctx context.Context, pageURL string, html []byte) ([]URL, error)

// HTMLFetcher handles fetching HTML pages and extracting URLs using a provided extractor.
type HTMLFetcher struct {
	client    Getter
	extractor URLExtractor
}

// NewHTMLFetcher creates a new HTML fetcher with the given extractor function.
func NewHTMLFetcher(client Getter, extractor URLExtractor) *HTMLFetcher {
	return &HTMLFetcher{
		client:    client,
		extractor: extractor,
	}
}

// Fetch downloads the page at the given URL and returns the URLs the extractor finds in it.
func (f *HTMLFetcher) Fetch(ctx context.Context, pageURL string) ([]URL, error) {
	if f.extractor == nil {
		return nil, fmt.Errorf("extractor function is not set")
	}

	html, err := f.client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTML: %w", err)
	}

	urls, err := f.extractor(ctx, pageURL, html)
	if err != nil {
		return nil, fmt.Errorf("failed to extract URLs: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoSessionLinks, pageURL)
	}

	return urls, nil
}

// SessionLinkExtractor returns an extractor that keeps links whose path
// contains marker, resolved against the page URL, in page order.
func SessionLinkExtractor(marker string) URLExtractor {
	return func(ctx context.Context, pageURL string, html []byte) ([]URL, error) {
		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL: %w", err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}

		var links []string
		titles := make(map[string]string)
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref).String()
			links = append(links, abs)
			if _, ok := titles[abs]; !ok {
				titles[abs] = strings.TrimSpace(a.Text())
			}
		})

		kept, err := filter.FilterURLs(ctx, links,
			filter.NewSchemeFilter(),
			filter.NewBaseURLFilter(),
			filter.NewContainsFilter(marker))
		if err != nil {
			return nil, err
		}

		urls := make([]URL, 0, len(kept))
		for _, link := range kept {
			urls = append(urls, URL{
				Location: link,
				Title:    titles[link],
				Date:     SessionDateFromHref(link),
			})
		}
		return urls, nil
	}
}
