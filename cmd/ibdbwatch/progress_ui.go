package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/ibdbwatch/internal/app/run"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：列表页滚动与详情页等待都可能很久，长时间无输出时定期打印一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	phase    string
	total    int
	done     int
	ok       int
	degraded int
	skipped  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 15 * time.Second,
		tickerInterval:     5 * time.Second,
	}
}

func (p *progressUI) OnStart(opts run.Options) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.phase = "discover"

	limit := "off"
	if opts.Limit > 0 {
		limit = fmt.Sprintf("%d", opts.Limit)
	}
	fmt.Fprintf(p.w, "[%s] ibdbwatch run\n", now.Format("15:04:05"))
	fmt.Fprintf(p.w, "  listing: %s\n", opts.ListingURL)
	fmt.Fprintf(p.w, "  scroll: %d x %s (settle %s)\n", opts.ScrollTimes, opts.ScrollPause, opts.SettleDelay)
	fmt.Fprintf(p.w, "  wait_timeout: %s\n", opts.WaitTimeout)
	fmt.Fprintf(p.w, "  limit: %s\n\n", limit)

	p.lastPrinted = time.Now()
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "discover":
		p.total = intField(fields, "processing")
		p.phase = "extract"
		fmt.Fprintf(p.w, "发现: links=%d processing=%d (%s)\n",
			intField(fields, "discovered"), p.total, formatShortDuration(dur),
		)
	case "extract":
		p.phase = "persist"
		fmt.Fprintf(p.w, "抽取: records=%d (%s)\n", intField(fields, "records"), formatShortDuration(dur))
	case "persist":
		p.phase = "done"
		fmt.Fprintf(p.w, "落盘: total=%d added=%d (%s)\n",
			intField(fields, "total"), intField(fields, "added"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, link domain.DiscoveredLink, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	label := strings.TrimSpace(link.Text)
	if label == "" {
		label = link.URL
	}

	switch res.Status {
	case domain.StatusOK:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] OK %s (%s)\n", idx, total, truncate(label, 80), formatShortDuration(dur))
	case domain.StatusDegraded:
		p.degraded++
		fmt.Fprintf(p.w, "[%d/%d] DEGRADED %s %s (%s)\n",
			idx, total, truncate(label, 80), res.ErrorCode, formatShortDuration(dur),
		)
	default:
		p.skipped++
		fmt.Fprintf(p.w, "[%d/%d] SKIP %s %s: %s (%s)\n",
			idx, total, truncate(label, 80), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnDone(rr domain.RunReport, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 先停 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
	p.phase = "done"

	if err != nil {
		fmt.Fprintf(p.w, "失败：%v (elapsed=%s)\n", err, formatElapsed(time.Since(p.startedAt)))
		return
	}
	fmt.Fprintf(p.w, "完成：total=%d added=%d ok=%d degraded=%d skipped=%d (elapsed=%s)\n",
		rr.Total, rr.Added, rr.Summary.OK, rr.Summary.Degraded, rr.Summary.Skipped,
		formatElapsed(time.Since(p.startedAt)),
	)
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 15 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: phase=%s done=%d/%d ok=%d degraded=%d skipped=%d elapsed=%s\n",
						p.phase, p.done, p.total, p.ok, p.degraded, p.skipped, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

// truncate 按字符（rune）截断，避免把多字节剧名切成半个字符。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
