package extract

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

// IBDB 详情页选择器。
const (
	SelTitle        = "h3.title-label"
	SelHeaderDate   = "div.xt-main-title"
	SelLogo         = "img#logo-img"
	SelLogoIcon     = "img#logo-img-ico"
	SelVenueLink    = "div#venues a"
	SelVenueRange   = "div#venues i"
	SelTagBlock     = "div.tag-block-compact"
	SelTagBlockMark = "i"
)

// Parse 把详情页 HTML 解析为 ShowRecord（纯函数：相同输入 => 相同输出）。
//
// 字段规则：
// - Title：标题元素文本
// - Date：头部日期；若 venues 区存在日期区间元素，则以它覆盖（去掉外层括号）
// - Theatre：venues 区第一个链接的文本
// - ImageURL：logo 图 src；否则 icon 图 src（相对路径基于 origin 变为绝对）
// - ShowType：tag 区第一个标记元素的文本
// 任何解析不到的字段落为哨兵值；DetailLink 恒为 pageURL。
func Parse(html []byte, pageURL, origin string) (domain.ShowRecord, error) {
	if len(html) == 0 {
		return domain.ShowRecord{}, errors.New("html 为空")
	}
	if strings.TrimSpace(pageURL) == "" {
		return domain.ShowRecord{}, errors.New("pageURL 不能为空")
	}
	if strings.TrimSpace(origin) == "" {
		origin = domain.SiteOrigin
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.ShowRecord{}, err
	}

	rec := domain.ShowRecord{
		Title:      firstText(doc.Selection, SelTitle),
		Date:       firstText(doc.Selection, SelHeaderDate),
		Theatre:    firstText(doc.Selection, SelVenueLink),
		ImageURL:   imageURL(doc, origin),
		ShowType:   firstText(doc.Find(SelTagBlock).First(), SelTagBlockMark),
		DetailLink: strings.TrimSpace(pageURL),
	}

	// 日期区间（例如 "(Aug 06, 2015 - Present)"）优先于头部日期。
	if r := doc.Find(SelVenueRange).First(); r.Length() > 0 {
		rec.Date = stripParens(r.Text())
	}

	return rec.Normalize(), nil
}

func imageURL(doc *goquery.Document, origin string) string {
	if src, ok := doc.Find(SelLogo).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	if src, ok := doc.Find(SelLogoIcon).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return resolveURL(strings.TrimRight(origin, "/")+"/", src)
	}
	return ""
}

func firstText(s *goquery.Selection, sel string) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	return normSpace(s.Find(sel).First().Text())
}

func stripParens(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "()"))
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
