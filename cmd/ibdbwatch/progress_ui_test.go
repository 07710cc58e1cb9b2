package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/ibdbwatch/internal/app/run"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

func TestProgressUI_PrintsEvents(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(run.Options{ListingURL: domain.ListingURL, Limit: 2, ScrollTimes: 10})
	p.OnPhaseDone("discover", map[string]any{"discovered": 5, "processing": 2}, time.Second)
	p.OnItemDone(1, 2, domain.DiscoveredLink{URL: "u1", Text: "Hamilton"},
		domain.ItemResult{Status: domain.StatusOK}, time.Second)
	p.OnItemDone(2, 2, domain.DiscoveredLink{URL: "u2"},
		domain.ItemResult{Status: domain.StatusSkipped, ErrorCode: domain.ErrCodeFetchFailed, ErrorMsg: "reset"}, time.Second)
	p.OnDone(domain.RunReport{Total: 9, Added: 1, Summary: domain.ReportSummary{OK: 1, Skipped: 1}}, nil)

	out := buf.String()
	for _, want := range []string{
		"limit: 2",
		"发现: links=5 processing=2",
		"[1/2] OK Hamilton",
		"[2/2] SKIP u2 fetch_failed: reset",
		"完成：total=9 added=1 ok=1 degraded=0 skipped=1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出应包含 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("OnDone 之后 ticker 应已停止")
	}
}

func TestProgressUI_DoneWithError(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	p.OnStart(run.Options{})
	p.OnDone(domain.RunReport{}, errors.New("disk full"))

	if !strings.Contains(buf.String(), "失败：disk full") {
		t.Fatalf("输出应包含失败信息：\n%s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate 结果不符合预期：%q", got)
	}
	if got := truncate("Les Misérables 悲惨世界", 16); got != "Les Misérable..." || !utf8.ValidString(got) {
		t.Fatalf("truncate 应按字符截断：%q", got)
	}
	if got := truncate("悲惨世界", 2); got != "悲惨" {
		t.Fatalf("truncate 应按字符截断：%q", got)
	}
	if got := truncate("  abc ", 10); got != "abc" {
		t.Fatalf("truncate 应 trim：%q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("formatElapsed 结果不符合预期：%q", got)
	}
}
