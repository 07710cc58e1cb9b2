package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/ibdbwatch/internal/config"
	"github.com/John-Robertt/ibdbwatch/internal/dashboard"
	"github.com/John-Robertt/ibdbwatch/internal/dataset"
	"github.com/John-Robertt/ibdbwatch/internal/runlog"
)

func newServeCmd(rf *rootFlags, lookup config.LookupFunc) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [--addr :8080]",
		Short: "启动图表页面：剧目类型分布、剧院分布，以及累积的新剧目报告。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(rf, lookup, func(cli *config.CLIArgs) {
				cli.DashboardAddr = addr
			})
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(runlog.NewHandler(cmd.ErrOrStderr(), slog.LevelInfo)))
			slog.Info("dashboard 已启动", "addr", eff.DashboardAddr, "dataset", eff.DatasetPath())

			h := dashboard.Handler(dataset.New(eff.DatasetPath()), eff.ReportPath())
			return dashboard.Serve(cmd.Context(), eff.DashboardAddr, h)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址（默认 :8080）")
	return cmd
}
