package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

func sampleRecords() []domain.ShowRecord {
	return []domain.ShowRecord{
		{
			Title:      "Hamilton",
			Date:       "Aug 06, 2015 - Present",
			Theatre:    "Richard Rodgers Theatre",
			ImageURL:   "https://www.ibdb.com/images/logo/hamilton.jpg",
			ShowType:   "Musical",
			DetailLink: "https://www.ibdb.com/broadway-production/hamilton-499521",
		},
		domain.Placeholder("https://www.ibdb.com/broadway-production/x-1"),
		{
			Title:      `Quote "Me", Comma`,
			Date:       "Jan 1, 2020",
			Theatre:    "Lyceum",
			ImageURL:   domain.NotAvailable,
			ShowType:   "Play",
			DetailLink: "https://www.ibdb.com/broadway-production/quote-2",
		},
	}
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "shows.csv"))
	recs, exists, err := s.Load()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if exists || len(recs) != 0 {
		t.Fatalf("文件不存在时应为空数据集：exists=%v recs=%v", exists, recs)
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "shows.csv")
	s := New(path)
	want := sampleRecords()

	if err := s.Save(want); err != nil {
		t.Fatalf("Save 失败：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	firstLine := strings.SplitN(string(b), "\n", 2)[0]
	if firstLine != "Title,Date,Theatre,Image URL,Show Type,Detail Link" {
		t.Fatalf("表头不符合契约：%q", firstLine)
	}

	got, exists, err := s.Load()
	if err != nil || !exists {
		t.Fatalf("Load 失败：exists=%v err=%v", exists, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("读回内容不一致 (-want +got):\n%s", diff)
	}
}

func TestDecode_ReorderedColumnsAndBOM(t *testing.T) {
	in := "\uFEFFDetail Link,Title,Date,Theatre,Image URL,Show Type\n" +
		"https://www.ibdb.com/broadway-production/a-1,A,,,,\n" +
		",NoLink,,,,\n"
	got, err := Decode(strings.NewReader(in), "mem")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.ShowRecord{{
		Title:      "A",
		Date:       domain.NotAvailable,
		Theatre:    domain.NotAvailable,
		ImageURL:   domain.NotAvailable,
		ShowType:   domain.UnknownType,
		DetailLink: "https://www.ibdb.com/broadway-production/a-1",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("解析结果不符合预期 (-want +got):\n%s", diff)
	}
}

func TestDecode_MissingColumn(t *testing.T) {
	_, err := Decode(strings.NewReader("Title,Date\nA,B\n"), "mem")
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("期望 FormatError，实际：%T %v", err, err)
	}
}

func TestDecode_EmptyFile(t *testing.T) {
	got, err := Decode(strings.NewReader(""), "mem")
	if err != nil || len(got) != 0 {
		t.Fatalf("空文件应为空数据集：got=%v err=%v", got, err)
	}
}
