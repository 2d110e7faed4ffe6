// Package source reads session pages and turns them into session descriptors.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"assembly-ledger/pkg/domain"
)

// ErrMissingNumber is wrapped by parse errors for pages without a session number.
var ErrMissingNumber = errors.New("session number not found")

// Getter retrieves a page body. *httpclient.HTTPClient satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTMLSource fetches session pages over HTTP and reads them with a Profile.
type HTMLSource struct {
	client  Getter
	profile *compiledProfile
}

// NewHTMLSource creates a source. It fails when the profile does not compile.
func NewHTMLSource(client Getter, profile Profile) (*HTMLSource, error) {
	compiled, err := profile.compile()
	if err != nil {
		return nil, fmt.Errorf("invalid source profile: %w", err)
	}
	return &HTMLSource{client: client, profile: compiled}, nil
}

// Fetch retrieves pageURL and parses it.
func (s *HTMLSource) Fetch(ctx context.Context, pageURL string) (*domain.SessionDescriptor, error) {
	body, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, fetchError(pageURL, err)
	}
	return s.Parse(pageURL, body)
}

// Parse builds a descriptor from an already retrieved page. When the session
// number is missing the returned *FetchError still carries the next link.
func (s *HTMLSource) Parse(pageURL string, body []byte) (*domain.SessionDescriptor, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, parseError(pageURL, "", fmt.Errorf("invalid page url: %w", err))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(pageURL, "", fmt.Errorf("failed to parse HTML: %w", err))
	}

	p := s.profile
	desc := &domain.SessionDescriptor{PageURL: pageURL}

	if p.NextLinkSelector != "" {
		if href, ok := doc.Find(p.NextLinkSelector).First().Attr("href"); ok {
			desc.NextURL = resolve(base, href)
		}
	}

	text := doc.Text()
	if m := p.number.FindStringSubmatch(text); m != nil {
		desc.Number = strings.TrimSpace(m[1])
	}
	if desc.Number == "" {
		return nil, parseError(pageURL, desc.NextURL, ErrMissingNumber)
	}
	if m := p.date.FindStringSubmatch(text); m != nil {
		if date, err := ParseItalianDate(m[1]); err == nil {
			desc.Date = date
		}
	}

	s.extractDocuments(doc, base, desc)
	s.extractVideos(doc, base, desc)
	return desc, nil
}

// extractDocuments fills the document links. The first link matching a field
// wins; each link fills at most one field.
func (s *HTMLSource) extractDocuments(doc *goquery.Document, base *url.URL, desc *domain.SessionDescriptor) {
	targets := map[string]*string{
		FieldAgenda:                &desc.AgendaURL,
		FieldProvisionalTranscript: &desc.ProvisionalTranscriptURL,
		FieldFinalTranscript:       &desc.FinalTranscriptURL,
		FieldAttachment:            &desc.AttachmentURL,
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		for _, rule := range s.profile.DocumentRules {
			if !rule.matches(href, text) {
				continue
			}
			if target := targets[rule.Field]; *target == "" {
				*target = resolve(base, href)
			}
			return
		}
	})
}

// extractVideos walks date headings and video boxes in document order. Each
// video takes the date of the closest heading before it.
func (s *HTMLSource) extractVideos(doc *goquery.Document, base *url.URL, desc *domain.SessionDescriptor) {
	p := s.profile
	selector := p.VideoSelector
	if p.DateHeadingSelector != "" {
		selector = p.DateHeadingSelector + ", " + p.VideoSelector
	}

	currentDate := ""
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if p.DateHeadingSelector != "" && sel.Is(p.DateHeadingSelector) && !sel.Is(p.VideoSelector) {
			if date, err := ParseItalianDate(strings.TrimSpace(sel.Text())); err == nil {
				currentDate = date
			}
			return
		}

		link, ok := sel.Attr(p.VideoURLAttr)
		if !ok || link == "" {
			return
		}
		m := p.videoID.FindStringSubmatch(link)
		if m == nil {
			return
		}
		v := domain.VideoDescriptor{
			SourceID: m[1],
			PageURL:  resolve(base, link),
		}
		if c := p.clock.FindStringSubmatch(sel.Text()); c != nil {
			if clock, ok := normalizeClock(c[1], c[2]); ok {
				v.StartTime = clock
			}
		}
		if currentDate != desc.Date {
			v.Date = currentDate
		}
		if p.StreamURLAttr != "" {
			if stream, ok := sel.Attr(p.StreamURLAttr); ok && stream != "" {
				v.StreamURL = resolve(base, stream)
			}
		}
		desc.Videos = append(desc.Videos, v)
	})
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
