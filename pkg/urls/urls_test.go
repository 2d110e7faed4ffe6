package urls

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assembly-ledger/pkg/httpclient"
	"assembly-ledger/pkg/sitemap"
)

const listingPage = `<html><body>
<a href="/">Home</a>
<a href="/agenda/lavori-aula">Lavori d'aula</a>
<a href="/seduta-numero-217-del-03122025">Seduta 217</a>
<a href="/seduta-numero-219-del-10122025">Seduta 219</a>
<a href="https://www.example.org/seduta-numero-218-del-09122025">Seduta 218</a>
<a href="mailto:info@example.org">Scrivici</a>
</body></html>`

const sessionFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Sedute</title>
    <link>https://www.example.org/</link>
    <item>
      <title>Seduta n. 219</title>
      <link>https://www.example.org/seduta-numero-219</link>
      <pubDate>Wed, 10 Dec 2025 18:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Seduta n. 220</title>
      <link>https://www.example.org/seduta-numero-220-del-16122025</link>
    </item>
    <item>
      <title>Comunicato</title>
      <link>https://www.example.org/news/comunicato</link>
      <pubDate>Thu, 18 Dec 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const sessionSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://www.example.org/</loc></url>
  <url><loc>https://www.example.org/seduta-numero-219-del-10122025</loc></url>
  <url>
    <loc>https://www.example.org/seduta-numero-221</loc>
    <lastmod>2025-12-17T23:30:00+01:00</lastmod>
  </url>
  <url><loc>https://www.example.org/seduta-numero-222</loc></url>
  <url><loc>https://www.example.org/news/comunicato</loc></url>
</urlset>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/agenda/lavori-aula":
			_, _ = w.Write([]byte(listingPage))
		case "/feed":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(sessionFeed))
		case "/sitemap.xml":
			_, _ = w.Write([]byte(sessionSitemap))
		case "/empty":
			_, _ = w.Write([]byte(`<html><body><a href="/">Home</a></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client() *httpclient.HTTPClient {
	return httpclient.NewClient(httpclient.BotClient, httpclient.Options{})
}

func TestHTMLFetcher_SessionLinks(t *testing.T) {
	srv := newServer(t)
	fetcher := NewHTMLFetcher(client(), SessionLinkExtractor(DefaultSessionMarker))

	links, err := fetcher.Fetch(context.Background(), srv.URL+"/agenda/lavori-aula")

	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, srv.URL+"/seduta-numero-217-del-03122025", links[0].Location)
	assert.Equal(t, "Seduta 217", links[0].Title)
	assert.Equal(t, "2025-12-03", links[0].Date)
	assert.Equal(t, "https://www.example.org/seduta-numero-218-del-09122025", links[2].Location)
}

func TestHTMLFetcher_NoLinks(t *testing.T) {
	srv := newServer(t)
	fetcher := NewHTMLFetcher(client(), SessionLinkExtractor(DefaultSessionMarker))

	_, err := fetcher.Fetch(context.Background(), srv.URL+"/empty")

	assert.ErrorIs(t, err, ErrNoSessionLinks)
}

func TestDiscover_PicksLatestDatedLink(t *testing.T) {
	srv := newServer(t)
	fetcher := NewHTMLFetcher(client(), SessionLinkExtractor(DefaultSessionMarker))

	got, err := Discover(context.Background(), fetcher, srv.URL+"/agenda/lavori-aula")

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/seduta-numero-219-del-10122025", got)
}

func TestFeedFetcher_UsesLinkDateThenPublicationDate(t *testing.T) {
	srv := newServer(t)
	fetcher := NewFeedFetcher(client(), DefaultSessionMarker)

	links, err := fetcher.Fetch(context.Background(), srv.URL+"/feed")

	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "2025-12-10", links[0].Date)
	assert.Equal(t, "2025-12-16", links[1].Date)

	latest, err := Latest(links)
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.org/seduta-numero-220-del-16122025", latest.Location)
}

func TestFeedFetcher_FetchError(t *testing.T) {
	srv := newServer(t)
	fetcher := NewFeedFetcher(client(), DefaultSessionMarker)

	_, err := fetcher.Fetch(context.Background(), srv.URL+"/missing")

	assert.ErrorIs(t, err, httpclient.ErrStatus)
}

func TestSitemapFetcher_UsesLinkDateThenLastMod(t *testing.T) {
	srv := newServer(t)
	fetcher := NewSitemapFetcher(sitemap.NewParser(client(), nil), DefaultSessionMarker)

	links, err := fetcher.Fetch(context.Background(), srv.URL+"/sitemap.xml")

	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "2025-12-10", links[0].Date)
	assert.Equal(t, "2025-12-17", links[1].Date)
	assert.Equal(t, "", links[2].Date)

	got, err := Discover(context.Background(), fetcher, srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.org/seduta-numero-221", got)
}

func TestLatest(t *testing.T) {
	_, err := Latest(nil)
	assert.True(t, errors.Is(err, ErrNoSessionLinks))

	first, err := Latest([]URL{{Location: "a"}, {Location: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a", first.Location)

	dated, err := Latest([]URL{{Location: "a"}, {Location: "b", Date: "2025-01-02"}, {Location: "c", Date: "2024-12-31"}})
	require.NoError(t, err)
	assert.Equal(t, "b", dated.Location)
}

func TestSessionDateFromHref(t *testing.T) {
	assert.Equal(t, "2025-12-10", SessionDateFromHref("/seduta-numero-219-del-10122025"))
	assert.Equal(t, "2025-12-10", SessionDateFromHref("/seduta-numero-219-del-10122025?tab=video"))
	assert.Equal(t, "", SessionDateFromHref("/seduta-numero-219"))
	assert.Equal(t, "", SessionDateFromHref("/seduta-numero-219-del-32132025"))
}
