package domain

import "strings"

// 哨兵值：字段无法解析时的固定占位符。
const (
	NotAvailable = "N/A"
	UnknownType  = "Unknown"
)

// 站点常量（IBDB）。
const (
	SiteOrigin       = "https://www.ibdb.com"
	ListingURL       = SiteOrigin + "/shows"
	DetailPathPrefix = "/broadway-production/"
)

// ShowRecord 是一个详情页对应的一条剧目记录。
//
// 不变量：
// - DetailLink 是身份键（详情页的绝对 URL），在主数据集中唯一
// - 其余字段永不为空：解析不到时分别填 NotAvailable / UnknownType
type ShowRecord struct {
	Title      string `json:"title"`
	Date       string `json:"date"`
	Theatre    string `json:"theatre"`
	ImageURL   string `json:"image_url"`
	ShowType   string `json:"show_type"`
	DetailLink string `json:"detail_link"`
}

// Placeholder 返回“全部哨兵值”的记录，只保留 DetailLink。
// 用于详情页等待超时等可恢复失败。
func Placeholder(detailLink string) ShowRecord {
	return ShowRecord{
		Title:      NotAvailable,
		Date:       NotAvailable,
		Theatre:    NotAvailable,
		ImageURL:   NotAvailable,
		ShowType:   UnknownType,
		DetailLink: detailLink,
	}
}

// Normalize 把空白字段替换为对应的哨兵值（去首尾空白）。
func (r ShowRecord) Normalize() ShowRecord {
	r.Title = orSentinel(r.Title, NotAvailable)
	r.Date = orSentinel(r.Date, NotAvailable)
	r.Theatre = orSentinel(r.Theatre, NotAvailable)
	r.ImageURL = orSentinel(r.ImageURL, NotAvailable)
	r.ShowType = orSentinel(r.ShowType, UnknownType)
	r.DetailLink = strings.TrimSpace(r.DetailLink)
	return r
}

// IsPlaceholder 报告记录是否除 DetailLink 外全部为哨兵值。
func (r ShowRecord) IsPlaceholder() bool {
	return r == Placeholder(r.DetailLink)
}

func orSentinel(s, sentinel string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return sentinel
	}
	return s
}

// DiscoveredLink 是列表页上发现的 (详情 URL, 链接文本) 对；只在单次 run 内存在。
type DiscoveredLink struct {
	URL  string
	Text string
}
