package crawler

import "time"

// Outcome is the result of one crawl step.
type Outcome string

const (
	OutcomeNew        Outcome = "new"
	OutcomeUpdated    Outcome = "updated"
	OutcomeSkip       Outcome = "skip"
	OutcomeBelowBound Outcome = "below-bound"
	OutcomeError      Outcome = "error"
)

// StepReport describes what happened to one visited page.
type StepReport struct {
	URL      string
	Session  string
	Date     string
	Outcome  Outcome
	Videos   int
	Dropped  int
	Orphaned int
	Err      error
	Duration time.Duration
}

// Stats aggregates a crawl run.
type Stats struct {
	RunID           string
	NewSessions     int
	UpdatedSessions int
	SkippedSessions int
	BelowBound      int
	VideosPersisted int
	Errors          int
	Visited         int
	Steps           []StepReport
}

func (s *Stats) record(r StepReport) {
	switch r.Outcome {
	case OutcomeNew:
		s.NewSessions++
		s.VideosPersisted += r.Videos
	case OutcomeUpdated:
		s.UpdatedSessions++
		s.VideosPersisted += r.Videos
	case OutcomeSkip:
		s.SkippedSessions++
	case OutcomeBelowBound:
		s.BelowBound++
	case OutcomeError:
		s.Errors++
	}
	s.Steps = append(s.Steps, r)
}
