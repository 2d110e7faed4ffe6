package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"assembly-ledger/pkg/domain"
)

func newPendingCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List videos not yet published",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := ctx.openLedger()
			if err != nil {
				return err
			}

			pending := store.Pending()
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending videos.")
				return nil
			}

			sort.SliceStable(pending, func(i, j int) bool {
				a, b := pending[i], pending[j]
				if a.VideoDate != b.VideoDate {
					return a.VideoDate < b.VideoDate
				}
				return a.VideoTime < b.VideoTime
			})
			total := len(pending)
			if limit > 0 && total > limit {
				pending = pending[:limit]
			}

			rows := make([][]string, 0, len(pending))
			for _, rec := range pending {
				rows = append(rows, []string{
					rec.SessionNumber,
					rec.VideoDate,
					rec.VideoTime,
					rec.VideoID,
					statusLabel(rec.Status),
					checkedAgo(rec.LastCheck, time.Now()),
				})
			}
			title := fmt.Sprintf("Pending (%d)", total)
			fmt.Fprintln(out, renderTable(title,
				[]string{"Session", "Date", "Time", "Video", "Status", "Last check"},
				rows, nil))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N rows (0 means all)")
	return cmd
}

func statusLabel(status string) string {
	if status == domain.StatusNone {
		return "-"
	}
	return status
}

func checkedAgo(lastCheck string, now time.Time) string {
	if lastCheck == "" {
		return "never"
	}
	t, err := time.Parse(time.RFC3339, lastCheck)
	if err != nil {
		return lastCheck
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
