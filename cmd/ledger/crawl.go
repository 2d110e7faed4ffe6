package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"assembly-ledger/pkg/config"
	"assembly-ledger/pkg/crawler"
	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/httpclient"
	"assembly-ledger/pkg/ledger"
	"assembly-ledger/pkg/logger"
	"assembly-ledger/pkg/sitemap"
	"assembly-ledger/pkg/source"
	"assembly-ledger/pkg/urls"
)

func newCrawlCommand(ctx *commandContext) *cobra.Command {
	var (
		startURL    string
		minDate     string
		maxSessions int
		mirror      bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Walk session pages forward and reconcile the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, log, err := ctx.openLedger()
			if err != nil {
				return err
			}

			if minDate != "" {
				if _, err := domain.ParseDate(minDate); err != nil {
					return fmt.Errorf("--min-date: %w", err)
				}
			} else {
				minDate = cfg.Crawl.MinDate
			}
			if maxSessions <= 0 {
				maxSessions = cfg.Crawl.MaxSessions
			}

			lock, err := ledger.AcquireRunLock(store.Path())
			if err != nil {
				if errors.Is(err, ledger.ErrLocked) {
					return fmt.Errorf("another run is using %s: %w", store.Path(), err)
				}
				return err
			}
			defer func() {
				if err := lock.Release(); err != nil {
					log.Warn("Failed to release run lock", logger.Error(err))
				}
			}()

			client := httpclient.NewClient(cfg.ClientType(), cfg.HTTPOptions())
			src, err := source.NewHTMLSource(client, cfg.Source)
			if err != nil {
				return err
			}

			start, err := resolveStartURL(cmd.Context(), cfg, client, startURL, log)
			if err != nil {
				return err
			}

			controller := crawler.New(src, store, crawler.Options{
				MinDate:       minDate,
				MaxSessions:   maxSessions,
				Delay:         cfg.Crawl.Delay,
				RecencyWindow: cfg.RecencyWindow(),
			}, log)

			stats, runErr := controller.Run(cmd.Context(), start)
			out := cmd.OutOrStdout()
			printCrawlReport(out, stats)
			if runErr != nil {
				return runErr
			}

			if mirror {
				return mirrorLedger(cmd.Context(), cfg, store, log, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startURL, "start-url", "", "Session page to start from (overrides discovery)")
	cmd.Flags().StringVar(&minDate, "min-date", "", "Ignore sessions dated before YYYY-MM-DD")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "Stop after visiting N pages (0 means no limit)")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "Mirror the ledger into the configured databases after the crawl")

	return cmd
}

// resolveStartURL picks the first page of the crawl: the flag, then the
// configured start_url, then the latest session advertised by the feed, the
// sitemap or the listing page.
func resolveStartURL(ctx context.Context, cfg *config.Config, client *httpclient.HTTPClient, flagURL string, log logger.Logger) (string, error) {
	if u := strings.TrimSpace(flagURL); u != "" {
		return u, nil
	}
	if cfg.Crawl.StartURL != "" {
		return cfg.Crawl.StartURL, nil
	}

	var (
		fetcher urls.URLsFetcher
		from    string
	)
	switch {
	case cfg.Crawl.FeedURL != "":
		fetcher, from = urls.NewFeedFetcher(client, cfg.Crawl.SessionMarker), cfg.Crawl.FeedURL
	case cfg.Crawl.SitemapURL != "":
		parser := sitemap.NewParser(client, log)
		fetcher, from = urls.NewSitemapFetcher(parser, cfg.Crawl.SessionMarker), cfg.Crawl.SitemapURL
	case cfg.Crawl.ListingURL != "":
		fetcher, from = urls.NewHTMLFetcher(client, urls.SessionLinkExtractor(cfg.Crawl.SessionMarker)), cfg.Crawl.ListingURL
	default:
		return "", errors.New("no start URL: set one of crawl.start_url, crawl.feed_url, crawl.sitemap_url, crawl.listing_url")
	}

	start, err := urls.Discover(ctx, fetcher, from)
	if err != nil {
		return "", fmt.Errorf("discover start page from %s: %w", from, err)
	}
	log.Info("Discovered start page", logger.String("from", from), logger.String("url", start))
	return start, nil
}

func printCrawlReport(out io.Writer, stats crawler.Stats) {
	colorize := shouldColorize(out)

	if len(stats.Steps) > 0 {
		rows := make([][]string, 0, len(stats.Steps))
		for i, step := range stats.Steps {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				step.Session,
				step.Date,
				colorOutcome(step.Outcome, colorize),
				strconv.Itoa(step.Videos),
				stepNotes(step),
				step.Duration.Round(time.Millisecond).String(),
			})
		}
		fmt.Fprintln(out, renderTable("Steps",
			[]string{"#", "Session", "Date", "Outcome", "Videos", "Notes", "Took"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight}))
	}

	fmt.Fprintln(out, renderTable("Run "+stats.RunID,
		[]string{"New", "Updated", "Skipped", "Below bound", "Videos", "Errors", "Visited"},
		[][]string{{
			strconv.Itoa(stats.NewSessions),
			strconv.Itoa(stats.UpdatedSessions),
			strconv.Itoa(stats.SkippedSessions),
			strconv.Itoa(stats.BelowBound),
			strconv.Itoa(stats.VideosPersisted),
			strconv.Itoa(stats.Errors),
			strconv.Itoa(stats.Visited),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}))
}

func stepNotes(step crawler.StepReport) string {
	var notes []string
	if step.Err != nil {
		notes = append(notes, step.Err.Error())
	}
	if step.Dropped > 0 {
		notes = append(notes, fmt.Sprintf("%d without start time", step.Dropped))
	}
	if step.Orphaned > 0 {
		notes = append(notes, fmt.Sprintf("%d published videos gone", step.Orphaned))
	}
	if len(notes) == 0 && step.Outcome == crawler.OutcomeError {
		notes = append(notes, step.URL)
	}
	return strings.Join(notes, "; ")
}
