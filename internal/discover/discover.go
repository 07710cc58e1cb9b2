package discover

import (
	"bytes"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

// Discoverer 从已渲染（已滚动到底）的列表页中提取详情页链接。
//
// 约束：
// - 只读取传入的 HTML，不做任何网络请求
// - 只匹配 href 以 PathPrefix 开头的 <a>；绝对 URL = Origin + href
// - 按 (URL, 去空白后的文本) 去重；同一 URL 不同文本视为不同条目
type Discoverer struct {
	Origin     string
	PathPrefix string
}

// Default 返回 IBDB 站点的 Discoverer。
func Default() Discoverer {
	return Discoverer{Origin: domain.SiteOrigin, PathPrefix: domain.DetailPathPrefix}
}

// Discover 返回去重后的链接集合，按 (URL, Text) 排序以保证输出确定。
// 没有匹配的 <a> 时返回空切片（不是错误）。
func (d Discoverer) Discover(html []byte) ([]domain.DiscoveredLink, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return []domain.DiscoveredLink{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	return d.FromDocument(doc), nil
}

// FromDocument 与 Discover 相同，但接收已解析的文档。
func (d Discoverer) FromDocument(doc *goquery.Document) []domain.DiscoveredLink {
	origin := strings.TrimRight(d.origin(), "/")
	prefix := d.prefix()

	seen := make(map[domain.DiscoveredLink]struct{})
	out := make([]domain.DiscoveredLink, 0, 64)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasPrefix(href, prefix) {
			return
		}
		l := domain.DiscoveredLink{
			URL:  origin + href,
			Text: strings.TrimSpace(a.Text()),
		}
		if _, ok := seen[l]; ok {
			return
		}
		seen[l] = struct{}{}
		out = append(out, l)
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Text < out[j].Text
	})
	return out
}

func (d Discoverer) origin() string {
	if strings.TrimSpace(d.Origin) == "" {
		return domain.SiteOrigin
	}
	return strings.TrimSpace(d.Origin)
}

func (d Discoverer) prefix() string {
	if d.PathPrefix == "" {
		return domain.DetailPathPrefix
	}
	return d.PathPrefix
}
