package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/ledger"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var (
		id         domain.Identity
		externalID string
		status     string
		reason     string
		checkedAt  string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Record the publication result of one video",
		RunE: func(cmd *cobra.Command, args []string) error {
			status = strings.ToLower(strings.TrimSpace(status))
			switch status {
			case domain.StatusSuccess, domain.StatusFailed, domain.StatusPending, domain.StatusNone:
			default:
				return fmt.Errorf("--status must be one of success, failed, pending")
			}
			if status == domain.StatusSuccess && externalID == "" {
				return errors.New("--external-id is required with --status success")
			}

			var checked time.Time
			if checkedAt != "" {
				t, err := dateparse.ParseIn(checkedAt, time.UTC)
				if err != nil {
					return fmt.Errorf("--checked-at: %w", err)
				}
				checked = t
			}

			_, store, _, err := ctx.openLedger()
			if err != nil {
				return err
			}

			lock, err := ledger.AcquireRunLock(store.Path())
			if err != nil {
				return err
			}
			defer lock.Release()

			err = store.UpdatePublication(id, ledger.Publication{
				ExternalID:    externalID,
				Status:        status,
				FailureReason: reason,
				CheckedAt:     checked,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id.Session, "session", "", "Session number")
	cmd.Flags().StringVar(&id.Date, "date", "", "Video date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&id.Time, "time", "", "Video start time (HH:MM)")
	cmd.Flags().StringVar(&externalID, "external-id", "", "Identifier on the publishing platform")
	cmd.Flags().StringVar(&status, "status", domain.StatusSuccess, "Publication status (success, failed, pending)")
	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason")
	cmd.Flags().StringVar(&checkedAt, "checked-at", "", "Check time in any common format, UTC unless a zone is given (default now)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")

	return cmd
}
