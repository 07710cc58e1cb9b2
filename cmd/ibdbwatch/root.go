package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/ibdbwatch/internal/config"
)

type rootFlags struct {
	configPath string
	dataDir    string
}

func newRootCmd(lookup config.LookupFunc) *cobra.Command {
	rf := &rootFlags{}
	f := &runFlags{}
	root := &cobra.Command{
		Use:           "ibdbwatch",
		Short:         "ibdbwatch 定期抓取 IBDB 百老汇剧目，合并到主数据集并报告新剧目。",
		Long:          "不带子命令时等同于 ibdbwatch run：立即抓取一次，然后按 interval 周期执行。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          f.runE(rf, lookup),
	}
	f.bind(root.Flags())
	root.PersistentFlags().StringVar(&rf.configPath, "config", "", "配置文件路径（默认 ./ibdbwatch.json5，可选）")
	root.PersistentFlags().StringVar(&rf.dataDir, "data", "", "数据目录（默认 ./output）")

	root.AddCommand(
		newRunCmd(rf, lookup),
		newStatusCmd(rf, lookup),
		newServeCmd(rf, lookup),
		newInspectCmd(rf, lookup),
	)
	return root
}

// loadConfig 按 CLI > env > 文件 > 默认 合并出最终配置；fill 用于子命令补充自己的 CLI 项。
func loadConfig(rf *rootFlags, lookup config.LookupFunc, fill func(*config.CLIArgs)) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	cli := config.CLIArgs{
		ConfigPath: rf.configPath,
		DataDir:    rf.dataDir,
	}
	if fill != nil {
		fill(&cli)
	}
	return config.LoadEffective(cwd, cli, lookup)
}
