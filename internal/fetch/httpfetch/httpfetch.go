package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/John-Robertt/ibdbwatch/internal/fetch"
	"github.com/John-Robertt/ibdbwatch/internal/infra/httpx"
)

var _ fetch.Fetcher = (*Client)(nil)

// Client 用普通 HTTP GET 抓取页面（不执行 JS，不滚动）。
//
// 适用于服务端已渲染的页面，或作为浏览器不可用时的降级实现。
// WaitSelector 在返回的 HTML 上检查一次：不存在即视为等待超时。
type Client struct {
	r *resty.Client
}

// New 基于 httpx 的 UA 池 + 有界重试 transport 构造 resty client。
func New(proxyURL string) (*Client, error) {
	hc, err := httpx.NewClient(proxyURL)
	if err != nil {
		return nil, err
	}
	return &Client{r: resty.NewWithClient(hc)}, nil
}

func (c *Client) Fetch(ctx context.Context, req fetch.Request) (fetch.Page, error) {
	if strings.TrimSpace(req.URL) == "" {
		return fetch.Page{}, errors.New("httpfetch: url 不能为空")
	}

	resp, err := c.r.R().
		SetContext(ctx).
		SetHeader("User-Agent", httpx.UserAgent()).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return fetch.Page{}, ctx.Err()
		}
		return fetch.Page{}, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fetch.Page{}, &fetch.HTTPStatusError{
			URL:        req.URL,
			StatusCode: resp.StatusCode(),
			Location:   resp.Header().Get("Location"),
		}
	}

	body := resp.Body()
	if sel := strings.TrimSpace(req.WaitSelector); sel != "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return fetch.Page{}, err
		}
		if doc.Find(sel).Length() == 0 {
			return fetch.Page{}, &fetch.WaitTimeoutError{URL: req.URL, Selector: sel, After: req.WaitTimeout}
		}
	}

	pageURL := req.URL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		pageURL = raw.Request.URL.String()
	}
	return fetch.Page{URL: pageURL, HTML: body}, nil
}

// Close 释放空闲连接。
func (c *Client) Close() error {
	c.r.GetClient().CloseIdleConnections()
	return nil
}
