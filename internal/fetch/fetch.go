package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrWaitTimeout 表示页面在预算时间内没有出现期望的元素（视为“未渲染完成”）。
// 这是可恢复的单条失败：调用方用哨兵值记录代替。
var ErrWaitTimeout = errors.New("fetch: wait timeout")

// Request 描述一次页面抓取。
//
// 约束：
// - WaitSelector 为空时不等待任何元素
// - Scrolls/ScrollPause 只对支持渲染的实现有意义（静态 HTTP 实现忽略）
type Request struct {
	URL string

	WaitSelector string
	WaitTimeout  time.Duration

	// Settle 是导航完成后、滚动前的固定等待。
	Settle      time.Duration
	Scrolls     int
	ScrollPause time.Duration
}

// Page 是抓取到的（渲染后）页面内容。
type Page struct {
	URL  string
	HTML []byte
}

// Fetcher 把“怎么拿到渲染后的页面”与解析逻辑隔离。
//
// 实现持有一个长生命周期资源（浏览器会话或 HTTP client），由宿主在进程启动时获取、
// 退出时 Close；pipeline 只借用，不负责释放。
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Page, error)
	Close() error
}

// WaitTimeoutError 携带超时的选择器与 URL，errors.Is(err, ErrWaitTimeout) 为 true。
type WaitTimeoutError struct {
	URL      string
	Selector string
	After    time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("等待元素 %q 超时（%s）：%s", e.Selector, e.After, e.URL)
}

func (e *WaitTimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

// IsWaitTimeout 判断 err 是否为等待超时。
func IsWaitTimeout(err error) bool { return errors.Is(err, ErrWaitTimeout) }

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}
