// Package sitemap reads sitemap and sitemap index documents.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"

	"assembly-ledger/pkg/logger"
)

// ErrEmpty is returned when neither the sitemap nor any sitemap it indexes
// yields an entry.
var ErrEmpty = errors.New("sitemap has no entries")

// maxDepth bounds nested sitemap indexes.
const maxDepth = 3

// Entry represents a single URL entry from a sitemap.
type Entry struct {
	Location string
	LastMod  string // optional, W3C datetime
}

// urlSet represents a regular sitemap structure.
type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
}

// sitemapIndex represents a sitemap index structure.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Location string `xml:"loc"`
}

// Getter fetches a URL body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Parser handles sitemap parsing operations.
type Parser struct {
	client Getter
	log    logger.Logger
}

// NewParser creates a new sitemap parser. A nil log discards messages.
func NewParser(client Getter, log logger.Logger) *Parser {
	if log == nil {
		log = logger.NewNop()
	}
	return &Parser{client: client, log: log}
}

// ParseFromURL fetches the sitemap at sitemapURL. Indexes are followed; a
// child sitemap that fails is logged and skipped.
func (p *Parser) ParseFromURL(ctx context.Context, sitemapURL string) ([]Entry, error) {
	entries, err := p.parse(ctx, sitemapURL, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, sitemapURL)
	}
	return entries, nil
}

func (p *Parser) parse(ctx context.Context, sitemapURL string, depth int) ([]Entry, error) {
	body, err := p.client.Get(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	if !isIndex(body) {
		return Parse(body)
	}
	if depth >= maxDepth {
		return nil, fmt.Errorf("sitemap index nested deeper than %d: %s", maxDepth, sitemapURL)
	}

	children, err := parseIndex(body)
	if err != nil {
		return nil, err
	}

	var all []Entry
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := p.parse(ctx, child, depth+1)
		if err != nil {
			p.log.Warn("Skipping sitemap",
				logger.String("sitemap", child),
				logger.String("index", sitemapURL),
				logger.Error(err))
			continue
		}
		all = append(all, entries...)
	}
	return all, nil
}

// isIndex sniffs the root element name.
func isIndex(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<sitemapindex"))
}

func parseIndex(body []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap index XML: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, ref := range index.Sitemaps {
		if ref.Location != "" {
			urls = append(urls, ref.Location)
		}
	}
	return urls, nil
}

// Parse decodes a regular sitemap document.
func Parse(body []byte) ([]Entry, error) {
	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap XML: %w", err)
	}

	entries := make([]Entry, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Location != "" {
			entries = append(entries, Entry{Location: u.Location, LastMod: u.LastMod})
		}
	}
	return entries, nil
}
