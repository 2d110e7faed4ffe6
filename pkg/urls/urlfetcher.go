package urls

import (
	"context"
	"errors"
	"regexp"
	"time"

	"assembly-ledger/pkg/domain"
)

// DefaultSessionMarker is the path fragment shared by all session page URLs.
const DefaultSessionMarker = "seduta-numero-"

// ErrNoSessionLinks is returned when a listing yields no session page.
var ErrNoSessionLinks = errors.New("no session links found")

// URL represents a session page link found on a listing page or feed.
type URL struct {
	Location string // absolute URL of the session page
	Title    string // link text or feed item title (optional)
	Date     string // session date (YYYY-MM-DD) when known
}

// URLsFetcher defines the interface for session link sources (listing page, feed).
type URLsFetcher interface {
	Fetch(ctx context.Context, baseURL string) ([]URL, error)
}

var hrefDate = regexp.MustCompile(`-del-(\d{8})(?:\D|$)`)

// SessionDateFromHref reads the DDMMYYYY suffix of links such as
// ".../seduta-numero-219-del-10122025". It returns "" when there is none.
func SessionDateFromHref(href string) string {
	m := hrefDate.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	t, err := time.Parse("02012006", m[1])
	if err != nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}

// Latest picks the most recent dated link, or the first link when none is dated.
func Latest(urls []URL) (URL, error) {
	if len(urls) == 0 {
		return URL{}, ErrNoSessionLinks
	}
	best := -1
	for i, u := range urls {
		if u.Date == "" {
			continue
		}
		if best < 0 || u.Date > urls[best].Date {
			best = i
		}
	}
	if best < 0 {
		return urls[0], nil
	}
	return urls[best], nil
}

// Discover fetches the links at baseURL and returns the latest session page.
func Discover(ctx context.Context, fetcher URLsFetcher, baseURL string) (string, error) {
	links, err := fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return "", err
	}
	latest, err := Latest(links)
	if err != nil {
		return "", err
	}
	return latest.Location, nil
}
