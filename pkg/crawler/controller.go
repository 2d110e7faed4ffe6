// Package crawler walks the site's chain of session pages forward and keeps
// the ledger in step with what it finds.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/ledger"
	"assembly-ledger/pkg/logger"
	"assembly-ledger/pkg/reconcile"
	"assembly-ledger/pkg/source"
)

// PageSource turns a session page URL into a descriptor.
type PageSource interface {
	// Fetch returns the descriptor of the page at url. Failures should be
	// *source.FetchError so the forward link can be recovered.
	Fetch(ctx context.Context, url string) (*domain.SessionDescriptor, error)
}

// Ledger is the part of the ledger store the controller needs.
type Ledger interface {
	IndexBySession() map[string]ledger.SessionIndex
	PreservedFields(session string) map[domain.Slot]domain.Preserved
	AppendRows(rows []domain.VideoRecord, preserved map[domain.Slot]domain.Preserved) (int, error)
	ReplaceSession(session string, rows []domain.VideoRecord) error
}

// State is a phase of the crawl state machine, used in log lines.
type State string

const (
	StateFetching    State = "fetching"
	StateDescribing  State = "describing"
	StateBelowBound  State = "below-bound"
	StateReconciling State = "reconciling"
	StatePersisting  State = "persisting"
	StateAdvancing   State = "advancing"
	StateFailedItem  State = "failed-item"
	StateDone        State = "done"
)

// Options tunes a crawl run.
type Options struct {
	// MinDate (YYYY-MM-DD) excludes sessions dated before it.
	MinDate string
	// MaxSessions caps the number of visited pages. Zero means no cap.
	MaxSessions int
	// Delay is slept between steps.
	Delay time.Duration
	// RecencyWindow forces a refresh of stored sessions dated inside it. Zero
	// means reconcile.DefaultRecencyWindow; reconcile.NoRecencyWindow turns
	// forced refreshes off.
	RecencyWindow time.Duration
	Now           func() time.Time
}

// Controller drives one forward crawl at a time. All crawl state is local
// to Run.
type Controller struct {
	source PageSource
	ledger Ledger
	opts   Options
	log    logger.Logger
}

// New creates a controller.
func New(src PageSource, store Ledger, opts Options, log logger.Logger) *Controller {
	if opts.RecencyWindow == 0 {
		opts.RecencyWindow = reconcile.DefaultRecencyWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{source: src, ledger: store, opts: opts, log: log}
}

// Run crawls from startURL until a page has no forward link. Per-session
// failures are recorded and skipped over when the forward link survives;
// otherwise the crawl stops. A ledger write failure aborts the run and is
// returned together with the stats gathered so far.
func (c *Controller) Run(ctx context.Context, startURL string) (Stats, error) {
	stats := Stats{RunID: uuid.NewString()}
	log := c.log.With(logger.String("run_id", stats.RunID))
	log.Info("Crawl started",
		logger.String("start_url", startURL),
		logger.String("min_date", c.opts.MinDate),
		logger.Int("max_sessions", c.opts.MaxSessions))

	visited := make(map[string]bool)
	cursor := startURL
	for cursor != "" {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if c.opts.MaxSessions > 0 && stats.Visited >= c.opts.MaxSessions {
			log.Info("Session limit reached", logger.Int("max_sessions", c.opts.MaxSessions))
			break
		}
		if visited[cursor] {
			log.Warn("Forward link points to an already visited page, stopping",
				logger.String("url", cursor))
			break
		}
		visited[cursor] = true
		stats.Visited++

		report, next, err := c.step(ctx, log, cursor)
		stats.record(report)
		if err != nil {
			log.Error("Crawl aborted", logger.String("url", cursor), logger.Error(err))
			return stats, err
		}

		if next != "" {
			log.Debug("Advancing", logger.String("state", string(StateAdvancing)), logger.String("next_url", next))
			if c.opts.Delay > 0 {
				time.Sleep(c.opts.Delay)
			}
		}
		cursor = next
	}

	log.Info("Crawl finished",
		logger.String("state", string(StateDone)),
		logger.Int("new", stats.NewSessions),
		logger.Int("updated", stats.UpdatedSessions),
		logger.Int("skipped", stats.SkippedSessions),
		logger.Int("below_bound", stats.BelowBound),
		logger.Int("videos", stats.VideosPersisted),
		logger.Int("errors", stats.Errors))
	return stats, nil
}

// step processes one page and returns the forward link to follow. The error
// is non-nil only for ledger failures, which end the run.
func (c *Controller) step(ctx context.Context, log logger.Logger, url string) (StepReport, string, error) {
	started := time.Now()
	report := StepReport{URL: url}
	finish := func(outcome Outcome) StepReport {
		report.Outcome = outcome
		report.Duration = time.Since(started)
		return report
	}

	log.Debug("Fetching session page", logger.String("state", string(StateFetching)), logger.String("url", url))
	desc, err := c.source.Fetch(ctx, url)
	if err == nil && desc.Number == "" {
		err = &source.FetchError{URL: url, Kind: source.KindParse, NextURL: desc.NextURL,
			Err: errors.New("session number missing")}
	}
	if err != nil {
		report.Err = err
		next := recoverNext(err, url)
		if next == "" {
			log.Error("Session failed and no forward link could be recovered, stopping",
				logger.String("state", string(StateFailedItem)), logger.String("url", url), logger.Error(err))
		} else {
			log.Warn("Session failed, continuing with recovered forward link",
				logger.String("state", string(StateFailedItem)), logger.String("url", url),
				logger.String("next_url", next), logger.Error(err))
		}
		return finish(OutcomeError), next, nil
	}

	report.Session = desc.Number
	report.Date = desc.Date
	sessionLog := log.With(logger.String("session", desc.Number), logger.String("date", desc.Date))
	sessionLog.Debug("Session described", logger.String("state", string(StateDescribing)),
		logger.Int("videos", len(desc.Videos)))

	if c.opts.MinDate != "" && desc.Date != "" && domain.Before(desc.Date, c.opts.MinDate) {
		sessionLog.Info("Session before lower bound, not reconciled",
			logger.String("state", string(StateBelowBound)), logger.String("min_date", c.opts.MinDate))
		return finish(OutcomeBelowBound), desc.NextURL, nil
	}

	index, stored := c.ledger.IndexBySession()[desc.Number]
	in := reconcile.Input{
		Session:     desc,
		Stored:      stored,
		StoredCount: index.Count,
		Recent:      reconcile.IsRecent(desc.Date, c.opts.Now(), c.opts.RecencyWindow),
	}
	if stored {
		in.Preserved = c.ledger.PreservedFields(desc.Number)
	}
	plan := reconcile.Reconcile(in, c.opts.Now())
	report.Dropped = plan.Dropped
	report.Orphaned = len(plan.Orphaned)
	sessionLog.Debug("Session reconciled", logger.String("state", string(StateReconciling)),
		logger.String("decision", string(plan.Decision)),
		logger.Int("stored", index.Count), logger.Int("incoming", len(plan.Rows)),
		logger.Bool("recent", in.Recent))
	if plan.Dropped > 0 {
		sessionLog.Warn("Videos without a start time dropped", logger.Int("dropped", plan.Dropped))
	}
	if plan.Conflicts > 0 {
		sessionLog.Warn("Videos sharing a start time collapsed", logger.Int("conflicts", plan.Conflicts))
	}
	for _, slot := range plan.Orphaned {
		sessionLog.Warn("Published video no longer listed by the site",
			logger.String("video_date", slot.Date), logger.String("video_time", slot.Time),
			logger.String("external_id", in.Preserved[slot].ExternalID))
	}

	switch plan.Decision {
	case reconcile.DecisionSkip:
		sessionLog.Info("Session unchanged", logger.Int("videos", index.Count))
		return finish(OutcomeSkip), desc.NextURL, nil

	case reconcile.DecisionNew:
		if len(plan.Rows) == 0 {
			sessionLog.Info("Session has no videos, nothing to store")
			return finish(OutcomeSkip), desc.NextURL, nil
		}
		sessionLog.Debug("Persisting session", logger.String("state", string(StatePersisting)))
		n, err := c.ledger.AppendRows(plan.Rows, nil)
		if err != nil {
			report.Err = err
			return finish(OutcomeError), "", fmt.Errorf("store session %s: %w", desc.Number, err)
		}
		report.Videos = n
		sessionLog.Info("New session stored", logger.Int("videos", n))
		return finish(OutcomeNew), desc.NextURL, nil

	default:
		sessionLog.Debug("Persisting session", logger.String("state", string(StatePersisting)))
		if err := c.ledger.ReplaceSession(desc.Number, plan.Rows); err != nil {
			report.Err = err
			return finish(OutcomeError), "", fmt.Errorf("refresh session %s: %w", desc.Number, err)
		}
		report.Videos = len(plan.Rows)
		sessionLog.Info("Session refreshed",
			logger.Int("previous", index.Count), logger.Int("videos", len(plan.Rows)))
		return finish(OutcomeUpdated), desc.NextURL, nil
	}
}

// recoverNext extracts the forward link a failing source managed to read.
func recoverNext(err error, current string) string {
	var fe *source.FetchError
	if !errors.As(err, &fe) || fe.NextURL == current {
		return ""
	}
	return fe.NextURL
}
