package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/ibdbwatch/internal/config"
	"github.com/John-Robertt/ibdbwatch/internal/discover"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/extract"
	"github.com/John-Robertt/ibdbwatch/internal/fetch"
	"github.com/John-Robertt/ibdbwatch/internal/reconcile"
)

// Sink 接收本次 run 新发现的记录（累积 HTML 报告）。
type Sink interface {
	Append(at time.Time, shows []domain.ShowRecord) error
}

// Ledger 记录每次 run 的摘要（sqlite run ledger）。
type Ledger interface {
	Record(ctx context.Context, rr domain.RunReport) error
}

// PageCache 保存详情页快照；只写不读。
type PageCache interface {
	WritePage(pageURL string, html []byte) error
}

// Deps 是一次 run 借用的外部资源；生命周期由宿主管理，Execute 不负责释放。
type Deps struct {
	Fetcher    fetch.Fetcher
	Discoverer discover.Discoverer
	Reconciler reconcile.Reconciler
	Sink       Sink

	// 以下可选：为 nil 时跳过对应能力。
	Ledger  Ledger
	Cache   PageCache
	Limiter *rate.Limiter
	Logger  *slog.Logger

	// Now 仅用于测试注入报告时间；nil 时使用 time.Now。
	Now func() time.Time
}

// Options 是单次 run 的参数（由 EffectiveConfig 派生）。
type Options struct {
	ListingURL string
	Origin     string
	// Limit 为 0 表示处理全部发现的链接；否则只处理排序后的前 Limit 条。
	Limit int

	ScrollTimes int
	ScrollPause time.Duration
	SettleDelay time.Duration
	WaitTimeout time.Duration
}

// OptionsFrom 从最终配置派生 run 参数。
func OptionsFrom(eff config.EffectiveConfig) Options {
	return Options{
		ListingURL:  eff.ListingURL,
		Origin:      domain.SiteOrigin,
		Limit:       eff.Limit,
		ScrollTimes: eff.ScrollTimes,
		ScrollPause: eff.ScrollPause,
		SettleDelay: eff.SettleDelay,
		WaitTimeout: eff.WaitTimeout,
	}
}

// NewLimiter 返回详情页抓取的节流器（每秒 rps 次，突发 1）。
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// PersistError 表示数据集/报告/ledger 写入失败；这类错误对本次 run 是致命的。
type PersistError struct {
	Target string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s：写入 %s 失败：%v", domain.ErrCodeIOFailed, e.Target, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Execute 执行一次完整的 run：发现 -> 逐条抽取 -> 合并落盘 -> 追加报告 -> 写 ledger。
//
// 单条抽取失败被折叠为 item 级结果（降级或跳过），不影响其它条目；
// 只有 ctx 取消或持久化失败会让 Execute 返回错误，此时返回的 RunReport 只包含已完成的部分。
func Execute(ctx context.Context, deps Deps, opts Options, obs Observer) (rr domain.RunReport, err error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	rr = domain.RunReport{
		StartedAt: now().UTC(),
		Items:     make([]domain.ItemResult, 0, 64),
	}
	defer func() {
		rr.FinishedAt = now().UTC()
		rr.Finalize()
		if obs != nil {
			obs.OnDone(rr, err)
		}
	}()

	if obs != nil {
		obs.OnStart(opts)
	}
	if deps.Fetcher == nil {
		return rr, errors.New("run: fetcher 不能为空")
	}

	// 1) 发现：列表页抓取或解析失败都视为“空集合”，本次 run 照常完成。
	discoverStarted := time.Now()
	links, err := discoverLinks(ctx, deps, opts, log)
	if err != nil {
		return rr, err
	}
	rr.Discovered = len(links)
	if opts.Limit > 0 && len(links) > opts.Limit {
		links = links[:opts.Limit]
	}
	rr.Processed = len(links)
	if obs != nil {
		obs.OnPhaseDone("discover", map[string]any{
			"discovered": rr.Discovered,
			"processing": rr.Processed,
		}, time.Since(discoverStarted))
	}

	// 2) 抽取：严格串行，按发现顺序。
	extractStarted := time.Now()
	ex := extract.Extractor{
		Fetcher:     deps.Fetcher,
		Origin:      opts.Origin,
		WaitTimeout: opts.WaitTimeout,
	}
	fresh := make([]domain.ShowRecord, 0, len(links))
	for i, link := range links {
		itemStarted := time.Now()
		if deps.Limiter != nil {
			if werr := deps.Limiter.Wait(ctx); werr != nil {
				return rr, abortErr(ctx, werr)
			}
		}

		res := ex.Extract(ctx, link.URL)
		if res.Kind == extract.KindAborted {
			return rr, abortErr(ctx, res.Err)
		}

		item := domain.ItemResult{URL: link.URL, Text: link.Text}
		switch res.Kind {
		case extract.KindOK:
			item.Status = domain.StatusOK
			fresh = append(fresh, res.Record)
			writeSnapshot(deps.Cache, link.URL, res.HTML, log)
			if res.Record.IsPlaceholder() {
				log.Warn("详情页没有解析出任何字段，页面结构可能已变化", "url", link.URL)
			}
		case extract.KindDegraded:
			item.Status = domain.StatusDegraded
			item.ErrorCode = extract.ErrorCode(res.Err)
			item.ErrorMsg = res.Err.Error()
			fresh = append(fresh, res.Record)
			log.Warn("详情页等待超时，记录为占位值", "url", link.URL, "err", res.Err)
		default:
			item.Status = domain.StatusSkipped
			item.ErrorCode = extract.ErrorCode(res.Err)
			item.ErrorMsg = res.Err.Error()
			writeSnapshot(deps.Cache, link.URL, res.HTML, log)
			log.Error("详情页抓取失败，已跳过", "url", link.URL, "code", item.ErrorCode, "err", res.Err)
		}
		rr.Items = append(rr.Items, item)

		if obs != nil {
			obs.OnItemDone(i+1, len(links), link, item, time.Since(itemStarted))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("extract", map[string]any{
			"records": len(fresh),
		}, time.Since(extractStarted))
	}

	// 3) 合并 -> 追加报告 -> 落盘数据集。
	// 报告先于数据集写入：报告失败时数据集不变，新记录留到下一次 run 再报告。
	persistStarted := time.Now()
	merged, err := deps.Reconciler.Merge(fresh)
	if err != nil {
		return rr, &PersistError{Target: deps.Reconciler.Store.Path, Err: err}
	}

	if merged.Added > 0 && len(merged.New) > 0 && deps.Sink != nil {
		if err := deps.Sink.Append(now(), merged.New); err != nil {
			return rr, &PersistError{Target: "report", Err: err}
		}
		log.Info("报告已更新", "new", len(merged.New))
	}
	if err := deps.Reconciler.Commit(merged); err != nil {
		return rr, &PersistError{Target: deps.Reconciler.Store.Path, Err: err}
	}
	rr.Total = len(merged.Merged)
	rr.Added = merged.Added
	rr.NewShows = merged.New

	log.Info("抓取完成", "total", rr.Total, "added", rr.Added,
		"discovered", rr.Discovered, "processed", rr.Processed)

	if deps.Ledger != nil {
		snapshot := rr
		snapshot.FinishedAt = now().UTC()
		snapshot.Finalize()
		if err := deps.Ledger.Record(ctx, snapshot); err != nil {
			return rr, &PersistError{Target: "run ledger", Err: err}
		}
	}
	if obs != nil {
		obs.OnPhaseDone("persist", map[string]any{
			"total": rr.Total,
			"added": rr.Added,
		}, time.Since(persistStarted))
	}
	return rr, nil
}

func discoverLinks(ctx context.Context, deps Deps, opts Options, log *slog.Logger) ([]domain.DiscoveredLink, error) {
	page, err := deps.Fetcher.Fetch(ctx, fetch.Request{
		URL:         opts.ListingURL,
		Settle:      opts.SettleDelay,
		Scrolls:     opts.ScrollTimes,
		ScrollPause: opts.ScrollPause,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("列表页抓取失败，本次按空集合处理", "url", opts.ListingURL,
			"code", domain.ErrCodeDiscoverFailed, "err", err)
		return []domain.DiscoveredLink{}, nil
	}

	links, err := deps.Discoverer.Discover(page.HTML)
	if err != nil {
		log.Error("列表页解析失败，本次按空集合处理", "url", opts.ListingURL,
			"code", domain.ErrCodeDiscoverFailed, "err", err)
		return []domain.DiscoveredLink{}, nil
	}
	log.Info("发现详情页链接", "count", len(links))
	return links, nil
}

func writeSnapshot(c PageCache, pageURL string, html []byte, log *slog.Logger) {
	if c == nil || len(html) == 0 {
		return
	}
	if err := c.WritePage(pageURL, html); err != nil {
		log.Warn("写入页面快照失败", "url", pageURL, "err", err)
	}
}

func abortErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
