package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/ibdbwatch/internal/config"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/extract"
	"github.com/John-Robertt/ibdbwatch/internal/infra/cache"
)

func newInspectCmd(rf *rootFlags, lookup config.LookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <detail-url>",
		Short: "用页面快照离线重新解析一个详情页（需要 cache_pages: true）。",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(rf, lookup, nil)
			if err != nil {
				return err
			}
			store := cache.New(eff.CachePath(), true)
			html, ok, err := store.ReadPage(args[0])
			if err != nil {
				return err
			}
			if !ok {
				path, _ := store.PagePath(args[0])
				return fmt.Errorf("没有该页面的快照：%s", path)
			}
			rec, err := extract.Parse(html, args[0], domain.SiteOrigin)
			if err != nil {
				return fmt.Errorf("%s：%w", domain.ErrCodeParseFailed, err)
			}
			renderRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}
