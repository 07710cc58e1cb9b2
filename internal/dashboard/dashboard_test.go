package dashboard

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/ibdbwatch/internal/dataset"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

func rec(slug, theatre, typ string) domain.ShowRecord {
	return domain.ShowRecord{
		Title:      slug,
		Date:       domain.NotAvailable,
		Theatre:    theatre,
		ImageURL:   domain.NotAvailable,
		ShowType:   typ,
		DetailLink: domain.SiteOrigin + domain.DetailPathPrefix + slug,
	}
}

func TestCountBy_SortedByValueThenName(t *testing.T) {
	recs := []domain.ShowRecord{
		rec("a", "Majestic", "Musical"),
		rec("b", "Gershwin", "Play"),
		rec("c", "Majestic", "Musical"),
		rec("d", "Booth", "Musical"),
	}
	got := CountBy(recs, func(r domain.ShowRecord) string { return r.Theatre })
	want := []Count{{"Majestic", 2}, {"Booth", 1}, {"Gershwin", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("CountBy 结果不符合预期 (-want +got):\n%s", diff)
	}
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, path, nil))
	b, _ := io.ReadAll(rw.Result().Body)
	return rw.Code, string(b)
}

func TestHandler_RendersChartsAndReport(t *testing.T) {
	dir := t.TempDir()
	store := dataset.New(filepath.Join(dir, "shows.csv"))
	if err := store.Save([]domain.ShowRecord{
		rec("hamilton-499521", "Richard Rodgers Theatre", "Musical"),
		rec("wicked-13412", "Gershwin Theatre", "Musical"),
	}); err != nil {
		t.Fatalf("写入数据集失败：%v", err)
	}
	reportPath := filepath.Join(dir, "dashboard.html")
	h := Handler(store, reportPath)

	code, body := get(t, h, "/")
	if code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", code)
	}
	for _, want := range []string{"IBDB Broadway Dashboard", "Richard Rodgers Theatre", "Musical", "/report", "westeros"} {
		if !strings.Contains(body, want) {
			t.Fatalf("页面应包含 %q", want)
		}
	}

	if code, _ := get(t, h, "/report"); code != http.StatusNotFound {
		t.Fatalf("报告不存在时期望 404，实际 %d", code)
	}
	if err := os.WriteFile(reportPath, []byte("<html>report</html>"), 0o644); err != nil {
		t.Fatalf("写入报告失败：%v", err)
	}
	code, body = get(t, h, "/report")
	if code != http.StatusOK || !strings.Contains(body, "report") {
		t.Fatalf("期望返回报告内容：code=%d body=%q", code, body)
	}

	if code, _ := get(t, h, "/nope"); code != http.StatusNotFound {
		t.Fatalf("未知路径期望 404，实际 %d", code)
	}
}

func TestHandler_MissingDatasetRendersEmptyCharts(t *testing.T) {
	dir := t.TempDir()
	h := Handler(dataset.New(filepath.Join(dir, "shows.csv")), filepath.Join(dir, "dashboard.html"))
	if code, _ := get(t, h, "/"); code != http.StatusOK {
		t.Fatalf("数据集不存在时也应返回 200，实际 %d", code)
	}
}

func TestHandler_CorruptDatasetIs500(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shows.csv")
	if err := os.WriteFile(path, []byte("Nope\n\"unterminated"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	h := Handler(dataset.New(path), filepath.Join(dir, "dashboard.html"))
	if code, _ := get(t, h, "/"); code != http.StatusInternalServerError {
		t.Fatalf("数据集损坏时期望 500，实际 %d", code)
	}
}
