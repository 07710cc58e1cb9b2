package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/John-Robertt/ibdbwatch/internal/app/run"
	"github.com/John-Robertt/ibdbwatch/internal/app/schedule"
	"github.com/John-Robertt/ibdbwatch/internal/config"
	"github.com/John-Robertt/ibdbwatch/internal/dataset"
	"github.com/John-Robertt/ibdbwatch/internal/discover"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/fetch"
	"github.com/John-Robertt/ibdbwatch/internal/fetch/browser"
	"github.com/John-Robertt/ibdbwatch/internal/fetch/httpfetch"
	"github.com/John-Robertt/ibdbwatch/internal/history"
	"github.com/John-Robertt/ibdbwatch/internal/infra/cache"
	"github.com/John-Robertt/ibdbwatch/internal/reconcile"
	"github.com/John-Robertt/ibdbwatch/internal/report"
	"github.com/John-Robertt/ibdbwatch/internal/runlog"
)

type runFlags struct {
	limit    int
	once     bool
	fetcher  string
	headless bool
}

// bind 把 run 的参数注册到 fs；根命令与 run 子命令共用同一组参数。
func (f *runFlags) bind(fs *pflag.FlagSet) {
	fs.IntVar(&f.limit, "limit", 0, "每次 run 最多处理的详情页数量（0 表示不限制）")
	fs.BoolVar(&f.once, "once", false, "只执行一次，不进入周期调度")
	fs.StringVar(&f.fetcher, "fetcher", "", "页面抓取方式：browser（默认，chromedp）或 http")
	fs.BoolVar(&f.headless, "headless", true, "浏览器是否以 headless 模式运行")
}

// runE 是根命令与 run 子命令的执行入口。
func (f *runFlags) runE(rf *rootFlags, lookup config.LookupFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eff, err := loadConfig(rf, lookup, func(cli *config.CLIArgs) {
			cli.Fetcher = f.fetcher
			cli.Limit, cli.LimitSet = f.limit, cmd.Flags().Changed("limit")
			cli.Headless, cli.HeadlessSet = f.headless, cmd.Flags().Changed("headless")
		})
		if err != nil {
			return err
		}
		return runLoop(cmd.Context(), eff, f.once, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
}

func newRunCmd(rf *rootFlags, lookup config.LookupFunc) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [--limit N] [--once] [--fetcher browser|http] [--headless]",
		Short: "立即执行一次抓取，然后按 interval（默认 24h）周期执行（不带子命令时的默认行为）。",
		Args:  cobra.NoArgs,
		RunE:  f.runE(rf, lookup),
	}
	f.bind(cmd.Flags())
	return cmd
}

// runLoop 持有进程级资源（fetch 会话、run log、ledger），并把它们借给每次 run。
// 资源在这里获取、在这里释放；pipeline 本身不关心生命周期。
func runLoop(ctx context.Context, eff config.EffectiveConfig, once bool, stdout, stderr io.Writer) error {
	if err := os.MkdirAll(eff.DataDir, 0o755); err != nil {
		return fmt.Errorf("%s：创建数据目录失败：%w", domain.ErrCodeIOFailed, err)
	}

	progressW, interactive := pickProgressWriter(stderr)
	var console io.Writer
	if !interactive {
		console = stderr
	}
	lg, err := runlog.Open(eff.LogPath(), console, slog.LevelInfo)
	if err != nil {
		return fmt.Errorf("%s：打开 run log 失败：%w", domain.ErrCodeIOFailed, err)
	}
	defer lg.Close()
	slog.SetDefault(lg.Logger)

	lg.Info("启动", "config", eff.ConfigPath, "data", eff.DataDir, "fetcher", eff.Fetcher,
		"interval", eff.Interval.String(), "limit", eff.Limit, "once", once)

	fetcher, err := openFetcher(ctx, eff)
	if err != nil {
		lg.Error("初始化页面抓取失败", "fetcher", eff.Fetcher, "err", err)
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			lg.Warn("释放页面抓取资源失败", "err", err)
		}
	}()

	ledger, err := history.Open(eff.LedgerPath())
	if err != nil {
		lg.Error("打开 run ledger 失败", "path", eff.LedgerPath(), "err", err)
		return err
	}
	defer ledger.Close()

	deps := run.Deps{
		Fetcher:    fetcher,
		Discoverer: discover.Default(),
		Reconciler: reconcile.Reconciler{Store: dataset.New(eff.DatasetPath())},
		Sink:       report.New(eff.ReportPath()),
		Ledger:     ledger,
		Limiter:    run.NewLimiter(eff.RequestsPerSecond),
		Logger:     lg.Logger,
	}
	if eff.CachePages {
		deps.Cache = cache.New(eff.CachePath(), false)
	}
	opts := run.OptionsFrom(eff)

	job := func(ctx context.Context) error {
		var obs run.Observer
		if interactive {
			obs = newProgressUI(progressW)
		}
		rr, err := run.Execute(ctx, deps, opts, obs)
		if len(rr.NewShows) > 0 {
			renderNewShows(stdout, rr.NewShows)
		}
		return err
	}

	if once {
		err = job(ctx)
	} else {
		err = schedule.Every(ctx, eff.Interval, job, func(err error) {
			lg.Error("本次 run 失败，等待下一次调度", "err", err)
		})
	}
	if errors.Is(err, context.Canceled) {
		lg.Info("收到退出信号，停止")
		return nil
	}
	if err != nil {
		lg.Error("run 失败", "err", err)
	}
	return err
}

func openFetcher(ctx context.Context, eff config.EffectiveConfig) (fetch.Fetcher, error) {
	if eff.Fetcher == config.FetcherHTTP {
		c, err := httpfetch.New(eff.ProxyURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	s, err := browser.Start(ctx, browser.Options{
		Headless: eff.Headless,
		ProxyURL: eff.ProxyURL,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// pickProgressWriter：进度输出只在交互终端启用；否则日志直接写到 w。
func pickProgressWriter(w io.Writer) (io.Writer, bool) {
	if f, ok := w.(*os.File); ok && isTTY(f) {
		return f, true
	}
	return nil, false
}
