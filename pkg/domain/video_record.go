package domain

import (
	"fmt"
	"time"
)

// Publication statuses written by the publishing pipeline.
const (
	StatusNone    = ""
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// Identity is the composite key of a video record. It is schedule based
// (session, date, start time) rather than the volatile source video id.
type Identity struct {
	Session string
	Date    string
	Time    string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s@%s %s", id.Session, id.Date, id.Time)
}

// Slot identifies a video within one session.
type Slot struct {
	Date string
	Time string
}

// Slot returns the per-session part of the identity.
func (id Identity) Slot() Slot {
	return Slot{Date: id.Date, Time: id.Time}
}

// VideoRecord is one persisted ledger row.
type VideoRecord struct {
	SessionNumber            string
	SessionDate              string
	PageURL                  string
	AgendaURL                string
	ProvisionalTranscriptURL string
	FinalTranscriptURL       string
	AttachmentURL            string

	VideoID      string
	VideoTime    string
	VideoDate    string
	StreamURL    string
	VideoPageURL string

	// Fields owned by the publishing pipeline.
	ExternalID    string
	LastCheck     string
	Status        string
	FailureReason string

	// Extra holds values of columns this version does not know about, so they
	// survive rewrites.
	Extra map[string]string
}

// Identity returns the composite key of the record.
func (r VideoRecord) Identity() Identity {
	return Identity{Session: r.SessionNumber, Date: r.VideoDate, Time: r.VideoTime}
}

// Slot returns the per-session key of the record.
func (r VideoRecord) Slot() Slot {
	return Slot{Date: r.VideoDate, Time: r.VideoTime}
}

// Published reports whether the video has been published externally.
func (r VideoRecord) Published() bool {
	return r.ExternalID != ""
}

// Preserved is the set of foreign fields carried across a delete+reinsert of a
// session.
type Preserved struct {
	ExternalID    string
	LastCheck     string
	Status        string
	FailureReason string
	Extra         map[string]string
}

// PreservedFields extracts the foreign fields of r.
func (r VideoRecord) PreservedFields() Preserved {
	return Preserved{
		ExternalID:    r.ExternalID,
		LastCheck:     r.LastCheck,
		Status:        r.Status,
		FailureReason: r.FailureReason,
		Extra:         r.Extra,
	}
}

// NewRecord builds a fresh record (no external fields) for video v of session s.
func NewRecord(s *SessionDescriptor, v VideoDescriptor) VideoRecord {
	return VideoRecord{
		SessionNumber:            s.Number,
		SessionDate:              s.Date,
		PageURL:                  s.PageURL,
		AgendaURL:                s.AgendaURL,
		ProvisionalTranscriptURL: s.ProvisionalTranscriptURL,
		FinalTranscriptURL:       s.FinalTranscriptURL,
		AttachmentURL:            s.AttachmentURL,
		VideoID:                  v.SourceID,
		VideoTime:                v.StartTime,
		VideoDate:                s.VideoDate(v),
		StreamURL:                v.StreamURL,
		VideoPageURL:             v.PageURL,
	}
}

// Preserve applies the preservation rule to rec: when its slot matches a prior
// row the external id, status and failure reason are carried over, and
// last_check is carried only if the prior row was already published. Any other
// row gets a fresh last_check and empty external fields.
func Preserve(rec VideoRecord, preserved map[Slot]Preserved, now time.Time) VideoRecord {
	stamp := FormatTimestamp(now)
	prior, ok := preserved[rec.Slot()]
	if !ok {
		rec.ExternalID = ""
		rec.Status = StatusNone
		rec.FailureReason = ""
		rec.LastCheck = stamp
		return rec
	}

	rec.ExternalID = prior.ExternalID
	rec.Status = prior.Status
	rec.FailureReason = prior.FailureReason
	if prior.ExternalID != "" {
		rec.LastCheck = prior.LastCheck
	} else {
		rec.LastCheck = stamp
	}
	if len(prior.Extra) > 0 {
		rec.Extra = make(map[string]string, len(prior.Extra))
		for k, v := range prior.Extra {
			rec.Extra[k] = v
		}
	}
	return rec
}

// FormatTimestamp renders a last_check timestamp.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
