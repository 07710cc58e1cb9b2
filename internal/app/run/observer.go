package run

import (
	"time"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何终端输出（展示由 CLI 决定）。
// - 事件在调用 Execute 的 goroutine 上按顺序发出；实现若自带 ticker，需自行加锁。
type Observer interface {
	// OnStart 在 Execute 开始时调用（早于列表页抓取，保证用户立即看到输出）。
	OnStart(opts Options)
	// OnPhaseDone 在阶段结束时调用：discover / extract / persist。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某个详情页处理完成时调用（idx 从 1 开始）。
	OnItemDone(idx, total int, link domain.DiscoveredLink, res domain.ItemResult, dur time.Duration)
	// OnDone 在 Execute 返回前调用；err 非空表示本次 run 失败或被中止。
	OnDone(rr domain.RunReport, err error)
}
