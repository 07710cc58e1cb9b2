package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

func show(slug, title string) domain.ShowRecord {
	r := domain.Placeholder("https://www.ibdb.com/broadway-production/" + slug)
	r.Title = title
	r.ShowType = "Musical"
	return r
}

func TestAppend_CreatesScaffoldThenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "dashboard.html")
	s := New(path)

	t1 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local)
	t2 := t1.Add(24 * time.Hour)

	if err := s.Append(t1, []domain.ShowRecord{show("a-1", "Alpha")}); err != nil {
		t.Fatalf("第一次 Append 失败：%v", err)
	}
	if err := s.Append(t2, []domain.ShowRecord{show("b-2", "Beta"), show("c-3", "Gamma")}); err != nil {
		t.Fatalf("第二次 Append 失败：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败：%v", err)
	}
	html := string(b)

	if !strings.HasPrefix(html, "<!DOCTYPE html>") || !strings.Contains(html, "<h1>IBDB Broadway Scraper Dashboard</h1>") {
		t.Fatalf("缺少骨架：%s", html)
	}
	if strings.Count(html, "<h2>New Shows Detected at") != 2 {
		t.Fatalf("期望 2 个 section：%s", html)
	}
	i1 := strings.Index(html, "New Shows Detected at 2026-10-19 09:00:00")
	i2 := strings.Index(html, "New Shows Detected at 2026-10-20 09:00:00")
	if i1 < 0 || i2 < 0 || i1 > i2 {
		t.Fatalf("section 顺序不符合追加语义：i1=%d i2=%d", i1, i2)
	}
	if !strings.HasSuffix(strings.TrimSpace(html), "</body>\n</html>") {
		t.Fatalf("section 应插入到 </body> 之前：%s", html)
	}
	if !strings.Contains(html, `<a href="https://www.ibdb.com/broadway-production/b-2" target="_blank">Link</a>`) {
		t.Fatalf("缺少可点击链接：%s", html)
	}
	if strings.Contains(html, "Image URL") {
		t.Fatalf("报告不应包含图片列：%s", html)
	}
}

func TestAppend_EmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	if err := New(path).Append(time.Now(), nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("空记录不应创建报告，Stat err=%v", err)
	}
}

func TestRenderSection_EscapesFields(t *testing.T) {
	r := show("x-1", `<script>alert(1)</script>`)
	b, err := RenderSection(time.Now(), []domain.ShowRecord{r})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if strings.Contains(string(b), "<script>") {
		t.Fatalf("字段必须转义：%s", string(b))
	}
}

func TestAppend_ExistingWithoutBodyAppendsAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	if err := os.WriteFile(path, []byte("<p>legacy</p>\n"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := New(path).Append(time.Now(), []domain.ShowRecord{show("a-1", "Alpha")}); err != nil {
		t.Fatalf("Append 失败：%v", err)
	}
	b, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(b), "<p>legacy</p>\n<h2>") {
		t.Fatalf("无 </body> 时应追加到末尾：%q", string(b))
	}
}
