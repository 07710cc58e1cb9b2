package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job 是一次调度执行；返回的错误交给 Every 的 onErr，不会中断调度。
type Job func(ctx context.Context) error

// Every 立即执行一次 job，然后每隔 interval 执行一次，直到 ctx 结束。
//
// 约束：
// - 同一时刻最多一个 job 在执行（SkipIfStillRunning）
// - job 执行时间超过 interval 时，错过的触发被丢弃而不是补跑
// - interval 按 cron 的 @every 语义取整到秒，最小 1s
// - ctx 结束后等待正在执行的 job 返回，然后返回 ctx.Err()
func Every(ctx context.Context, interval time.Duration, job Job, onErr func(error)) error {
	if interval <= 0 {
		return errors.New("schedule: interval 必须大于 0")
	}
	if job == nil {
		return errors.New("schedule: job 不能为空")
	}

	runOnce := func() {
		// 取消优先：已排队的触发不再执行。
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil && ctx.Err() == nil && onErr != nil {
			onErr(err)
		}
	}

	runOnce()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	logger := cronLogger{log: slog.Default()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc("@every "+interval.String(), runOnce); err != nil {
		return fmt.Errorf("schedule: 注册周期任务失败：%w", err)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// cronLogger 把 cron 的日志转给 slog。
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
