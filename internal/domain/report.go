package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusSkipped  = "skipped"
)

const (
	ErrCodeFetchTimeout   = "fetch_timeout"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeDiscoverFailed = "discover_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是单次 run 的结构化摘要（控制台、run log 与 run ledger 共用）。
type RunReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Discovered 是列表页发现的链接数；Processed 是实际尝试抽取的条数（受 limit 限制）。
	Discovered int `json:"discovered"`
	Processed  int `json:"processed"`

	// Total 是合并后主数据集的记录数；Added = len(merged) - len(existing)。
	Total int `json:"total"`
	Added int `json:"added"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`

	// NewShows 是本次 run 新发现的记录（按抽取顺序）。
	NewShows []ShowRecord `json:"new_shows"`
}

type ReportSummary struct {
	OK       int `json:"ok"`
	Degraded int `json:"degraded"`
	Skipped  int `json:"skipped"`
}

type ItemResult struct {
	URL  string `json:"url"`
	Text string `json:"text"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：失败条目（skipped/degraded）排在最后，组内保持抽取顺序
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		return statusRank(r.Items[i].Status) < statusRank(r.Items[j].Status)
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusOK:
			s.OK++
		case StatusDegraded:
			s.Degraded++
		case StatusSkipped:
			s.Skipped++
		}
	}
	r.Summary = s
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	if r.NewShows == nil {
		r.NewShows = []ShowRecord{}
	}
}

func statusRank(s string) int {
	switch s {
	case StatusOK:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
