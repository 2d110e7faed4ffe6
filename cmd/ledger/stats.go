package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count ledger rows by publication state",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := ctx.openLedger()
			if err != nil {
				return err
			}

			st := store.Stats()
			rows := [][]string{
				{"Total", strconv.Itoa(st.Total)},
				{"Published", strconv.Itoa(st.Published)},
				{"Unpublished", strconv.Itoa(st.Unpublished)},
				{"Success", strconv.Itoa(st.Success)},
				{"Failed", strconv.Itoa(st.Failed)},
				{"Pending", strconv.Itoa(st.Pending)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(store.Path(),
				[]string{"Rows", "Count"}, rows,
				[]columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
