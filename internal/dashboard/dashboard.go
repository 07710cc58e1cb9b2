package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/John-Robertt/ibdbwatch/internal/dataset"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

// TopTheatres 是剧院柱状图最多展示的条目数。
const TopTheatres = 15

// Count 是一个分组计数。
type Count struct {
	Name  string
	Value int
}

// CountBy 按 key 分组计数；结果按数量降序、名称升序排列。
func CountBy(recs []domain.ShowRecord, key func(domain.ShowRecord) string) []Count {
	m := make(map[string]int)
	for _, r := range recs {
		m[key(r)]++
	}
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Handler 提供：
// - /        主数据集的图表（剧目类型饼图 + 剧院柱状图）
// - /report  累积的新剧目报告
//
// 每次请求都重新读取数据集，scheduler 写入的新数据无需重启即可看到。
func Handler(store dataset.Store, reportPath string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		recs, _, err := store.Load()
		if err != nil {
			slog.Error("读取数据集失败", "path", store.Path, "err", err)
			http.Error(w, "读取数据集失败", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := renderPage(recs).Render(w); err != nil {
			slog.Error("渲染图表失败", "err", err)
		}
	})
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(reportPath); err != nil {
			http.Error(w, "报告尚未生成", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, reportPath)
	})
	return mux
}

func renderPage(recs []domain.ShowRecord) *components.Page {
	page := components.NewPage()
	page.PageTitle = "IBDB Broadway Dashboard"

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Show Types",
			Link:     "/report",
			Subtitle: "点击标题查看新剧目报告",
		}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)
	var pieItems []opts.PieData
	for _, c := range CountBy(recs, func(r domain.ShowRecord) string { return r.ShowType }) {
		pieItems = append(pieItems, opts.PieData{Name: c.Name, Value: c.Value})
	}
	pie.AddSeries("Shows", pieItems)

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Theatres"}))
	theatres := CountBy(recs, func(r domain.ShowRecord) string { return r.Theatre })
	if len(theatres) > TopTheatres {
		theatres = theatres[:TopTheatres]
	}
	var barX []string
	var barY []opts.BarData
	for _, c := range theatres {
		barX = append(barX, c.Name)
		barY = append(barY, opts.BarData{Value: c.Value})
	}
	bar.SetXAxis(barX).AddSeries("Shows", barY)

	page.AddCharts(pie, bar)
	return page
}

// Serve 在 addr 上提供 h，直到 ctx 结束后优雅关闭。
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
