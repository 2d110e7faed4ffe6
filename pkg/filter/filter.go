package filter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Filter defines the interface for URL filtering.
type Filter interface {
	ShouldKeep(ctx context.Context, url string) (bool, error)
}

// FilterURLs applies all filters to a list of URLs, keeping order and
// dropping duplicates.
func FilterURLs(ctx context.Context, urls []string, filters ...Filter) ([]string, error) {
	filtered := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))

	for _, urlStr := range urls {
		if seen[urlStr] {
			continue
		}
		seen[urlStr] = true

		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, urlStr)
			if err != nil {
				return nil, fmt.Errorf("filter error for URL %s: %w", urlStr, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, urlStr)
		}
	}

	return filtered, nil
}

// BaseURLFilter filters out base/root URLs.
type BaseURLFilter struct{}

// NewBaseURLFilter creates a new base URL filter.
func NewBaseURLFilter() *BaseURLFilter {
	return &BaseURLFilter{}
}

// ShouldKeep returns false if URL is a base/root URL.
func (f *BaseURLFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		// Unparseable URLs are left for the fetch to reject
		return true, nil
	}

	path := strings.Trim(parsed.Path, "/")
	return path != "", nil
}

// ContainsFilter keeps URLs whose path contains a marker such as "seduta-numero-".
type ContainsFilter struct {
	marker string
}

// NewContainsFilter creates a filter for the given marker. An empty marker keeps everything.
func NewContainsFilter(marker string) *ContainsFilter {
	return &ContainsFilter{marker: marker}
}

// ShouldKeep returns true if the URL path contains the marker.
func (f *ContainsFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	if f.marker == "" {
		return true, nil
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return strings.Contains(urlStr, f.marker), nil
	}
	return strings.Contains(parsed.Path, f.marker), nil
}

// SchemeFilter keeps http and https URLs only, dropping mailto:, javascript: and the like.
type SchemeFilter struct{}

// NewSchemeFilter creates a new scheme filter.
func NewSchemeFilter() *SchemeFilter {
	return &SchemeFilter{}
}

// ShouldKeep returns true for http(s) URLs.
func (f *SchemeFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false, nil
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https", nil
}
