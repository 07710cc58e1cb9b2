package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/fetch"
)

// DefaultWaitTimeout 是等待标题元素出现的预算。
const DefaultWaitTimeout = 10 * time.Second

// Kind 描述单条抽取的结局；run 循环据此决定继续还是中止。
type Kind string

const (
	// KindOK：抓取与解析都成功。
	KindOK Kind = "ok"
	// KindDegraded：等待超时，记录为全哨兵值（仍计入结果）。
	KindDegraded Kind = "degraded"
	// KindSkipped：其它抓取/解析错误，该条丢弃，run 继续。
	KindSkipped Kind = "skipped"
	// KindAborted：调用方 ctx 已取消，run 应停止。
	KindAborted Kind = "aborted"
)

// Result 是一次抽取的显式结果（不 panic、不向上抛错）。
type Result struct {
	Record domain.ShowRecord
	Kind   Kind
	Err    error

	// HTML 是抓取到的页面（仅 KindOK / 解析失败时非空），供页面快照使用。
	HTML []byte
}

// Kept 报告该结果是否应进入本次 run 的新鲜记录集合。
func (r Result) Kept() bool { return r.Kind == KindOK || r.Kind == KindDegraded }

// Error 是抽取阶段的可追溯错误（stage 为 "fetch" 或 "parse"）。
type Error struct {
	URL   string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage=%s url=%s: %v", e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor 抓取并解析单个详情页。
type Extractor struct {
	Fetcher     fetch.Fetcher
	Origin      string
	WaitTimeout time.Duration
}

// Extract 抓取 url 并解析；所有失败都折叠为 Result.Kind，不会越过边界。
func (e Extractor) Extract(ctx context.Context, url string) Result {
	url = strings.TrimSpace(url)
	if e.Fetcher == nil {
		return Result{Kind: KindSkipped, Err: &Error{URL: url, Stage: "fetch", Err: errors.New("fetcher 不能为空")}}
	}

	wait := e.WaitTimeout
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}

	page, err := e.Fetcher.Fetch(ctx, fetch.Request{
		URL:          url,
		WaitSelector: SelTitle,
		WaitTimeout:  wait,
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Result{Kind: KindAborted, Err: ctx.Err()}
		case fetch.IsWaitTimeout(err):
			return Result{Record: domain.Placeholder(url), Kind: KindDegraded, Err: &Error{URL: url, Stage: "fetch", Err: err}}
		default:
			return Result{Kind: KindSkipped, Err: &Error{URL: url, Stage: "fetch", Err: err}}
		}
	}

	rec, err := Parse(page.HTML, url, e.Origin)
	if err != nil {
		return Result{Kind: KindSkipped, Err: &Error{URL: url, Stage: "parse", Err: err}, HTML: page.HTML}
	}
	return Result{Record: rec, Kind: KindOK, HTML: page.HTML}
}

// ErrorCode 把抽取错误映射为稳定的 error_code。
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if fetch.IsWaitTimeout(err) {
		return domain.ErrCodeFetchTimeout
	}
	var e *Error
	if errors.As(err, &e) && e.Stage == "parse" {
		return domain.ErrCodeParseFailed
	}
	return domain.ErrCodeFetchFailed
}
