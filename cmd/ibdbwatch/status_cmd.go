package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/ibdbwatch/internal/config"
	"github.com/John-Robertt/ibdbwatch/internal/history"
)

func newStatusCmd(rf *rootFlags, lookup config.LookupFunc) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "status [--n 10]",
		Short: "列出最近的 run 摘要（来自 runs.db）。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(rf, lookup, nil)
			if err != nil {
				return err
			}
			store, err := history.Open(eff.LedgerPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "还没有 run 记录")
				return nil
			}
			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 10, "显示的条数")
	return cmd
}
