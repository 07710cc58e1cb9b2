package runlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/John-Robertt/ibdbwatch/internal/infra/fsx"
)

// TimeLayout 是 run log 每行的时间戳格式。
const TimeLayout = "2006-01-02 15:04:05"

// Log 是进程级日志：同一行同时写入 console 与追加式 run log 文件。
type Log struct {
	*slog.Logger
	f *os.File
}

// Open 以追加模式打开 path；console 为 nil 时只写文件。
func Open(path string, console io.Writer, level slog.Level) (*Log, error) {
	f, err := fsx.OpenAppend(path)
	if err != nil {
		return nil, err
	}
	var w io.Writer = f
	if console != nil {
		w = io.MultiWriter(console, f)
	}
	return &Log{Logger: slog.New(NewHandler(w, level)), f: f}, nil
}

// NewHandler 返回单行文本 handler，time 字段使用本地时间 TimeLayout。
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(TimeLayout))
			}
			return a
		},
	})
}

func (l *Log) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}
