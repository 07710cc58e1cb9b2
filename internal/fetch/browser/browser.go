package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/John-Robertt/ibdbwatch/internal/fetch"
)

const (
	defaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	defaultNavigateTimeout = 60 * time.Second
	scrollToBottomJS       = `window.scrollTo(0, document.body.scrollHeight);`
)

var _ fetch.Fetcher = (*Session)(nil)

type Options struct {
	Headless  bool
	UserAgent string
	ProxyURL  string

	// NavigateTimeout 限制单次 Fetch 的总时长（导航 + 滚动 + 等待）。0 表示默认 60s，
	// 但不会截断显式配置的滚动预算。
	NavigateTimeout time.Duration
}

// Session 是一个长生命周期的 Chrome 会话（一个浏览器进程，按请求开 tab）。
//
// 约束：
// - Start 在进程启动时调用一次；跨 run 复用
// - Close 由宿主在进程退出时调用；Close 之后 Fetch 返回错误
type Session struct {
	opts Options

	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Start 启动浏览器并确认可用（第一次 Run 会真正拉起 Chrome）。
func Start(ctx context.Context, opts Options) (*Session, error) {
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
	)
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(p))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &Session{
		opts:          opts,
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Fetch 打开新 tab 导航到 req.URL；可选：固定等待、滚动到底若干次、等待元素出现。
// 返回整页 outerHTML。
func (s *Session) Fetch(ctx context.Context, req fetch.Request) (fetch.Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fetch.Page{}, errors.New("browser: session 已关闭")
	}
	if strings.TrimSpace(req.URL) == "" {
		return fetch.Page{}, errors.New("browser: url 不能为空")
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	tabCtx, cancelBudget := context.WithTimeout(tabCtx, s.budget(req))
	defer cancelBudget()

	// 调用方取消时同步关闭 tab（chromedp 的 ctx 来自浏览器会话，而不是调用方）。
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	actions := []chromedp.Action{chromedp.Navigate(req.URL)}
	if req.Settle > 0 {
		actions = append(actions, chromedp.Sleep(req.Settle))
	}
	for i := 0; i < req.Scrolls; i++ {
		actions = append(actions, chromedp.Evaluate(scrollToBottomJS, nil))
		if req.ScrollPause > 0 {
			actions = append(actions, chromedp.Sleep(req.ScrollPause))
		}
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return fetch.Page{}, callerErr(ctx, err)
	}

	if sel := strings.TrimSpace(req.WaitSelector); sel != "" {
		wait := req.WaitTimeout
		if wait <= 0 {
			wait = 10 * time.Second
		}
		waitCtx, cancelWait := context.WithTimeout(tabCtx, wait)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fetch.Page{}, &fetch.WaitTimeoutError{URL: req.URL, Selector: sel, After: wait}
			}
			return fetch.Page{}, callerErr(ctx, err)
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return fetch.Page{}, callerErr(ctx, err)
	}

	var loc string
	_ = chromedp.Run(tabCtx, chromedp.Location(&loc))
	if strings.TrimSpace(loc) == "" {
		loc = req.URL
	}
	return fetch.Page{URL: loc, HTML: []byte(html)}, nil
}

// Close 关闭 tab 上下文与浏览器进程；可重复调用。
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}

func (s *Session) budget(req fetch.Request) time.Duration {
	b := s.opts.NavigateTimeout
	if b <= 0 {
		b = defaultNavigateTimeout
	}
	// 滚动与等待是显式预算，叠加在导航超时之上。
	b += req.Settle + time.Duration(req.Scrolls)*req.ScrollPause + req.WaitTimeout
	return b
}

// callerErr 优先返回调用方的取消原因，便于上层区分“被取消”与“抓取失败”。
func callerErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
