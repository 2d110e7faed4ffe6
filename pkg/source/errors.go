package source

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch is wrapped by every failure to retrieve a session page.
	ErrFetch = errors.New("fetch failed")
	// ErrParse is wrapped when a page was retrieved but required fields are absent.
	ErrParse = errors.New("parse failed")
)

// Kind classifies a FetchError.
type Kind string

const (
	KindFetch Kind = "fetch"
	KindParse Kind = "parse"
)

// FetchError reports a per-session failure. NextURL carries the forward link
// when it could still be read from the partially processed page.
type FetchError struct {
	URL     string
	Kind    Kind
	NextURL string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	sentinel := ErrFetch
	if e.Kind == KindParse {
		sentinel = ErrParse
	}
	return []error{sentinel, e.Err}
}

func fetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Kind: KindFetch, Err: err}
}

func parseError(url, next string, err error) *FetchError {
	return &FetchError{URL: url, Kind: KindParse, NextURL: next, Err: err}
}
