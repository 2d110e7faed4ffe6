package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for session and video dates.
const DateLayout = "2006-01-02"

// TimeLayout is the time-of-day format used for video start times.
const TimeLayout = "15:04"

// VideoDescriptor is one recorded video segment as observed on a session page.
// It is ephemeral: it only lives for the duration of one fetch.
type VideoDescriptor struct {
	// SourceID is the site's identifier for the video. The site may reassign it
	// across crawls of the same logical video, so it is not part of the identity.
	SourceID string

	// StartTime is the video start time (HH:MM). Empty when the page did not
	// expose a parseable time.
	StartTime string

	// Date is the video date (YYYY-MM-DD). Empty means "same as the session".
	Date string

	// StreamURL is the playable URL, when the page exposes one.
	StreamURL string

	// PageURL is the human-facing page of the video.
	PageURL string
}

// SessionDescriptor is the structured view of one fetched session page.
type SessionDescriptor struct {
	Number  string // e.g. "219" or "219/A"
	Date    string // YYYY-MM-DD, may be empty
	PageURL string

	AgendaURL                string
	ProvisionalTranscriptURL string
	FinalTranscriptURL       string
	AttachmentURL            string

	Videos []VideoDescriptor

	// NextURL is the forward link read from the same page. Empty when the site
	// reports no further session.
	NextURL string
}

// VideoDate returns the date of v, defaulting to the session date.
func (s *SessionDescriptor) VideoDate(v VideoDescriptor) string {
	if v.Date != "" {
		return v.Date
	}
	return s.Date
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// Before reports whether date a is strictly before date b. Both must be
// YYYY-MM-DD, which orders lexically.
func Before(a, b string) bool {
	return a < b
}
