package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

func TestRenderNewShows(t *testing.T) {
	var buf bytes.Buffer
	renderNewShows(&buf, []domain.ShowRecord{{
		Title:      "Hamilton",
		Date:       "Aug 06, 2015 - Present",
		Theatre:    "Richard Rodgers Theatre",
		ImageURL:   domain.NotAvailable,
		ShowType:   "Musical",
		DetailLink: "https://www.ibdb.com/broadway-production/hamilton-499521",
	}})

	out := buf.String()
	for _, want := range []string{"Hamilton", "Richard Rodgers Theatre", "Musical", "hamilton-499521", "╭"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出应包含 %q：\n%s", want, out)
		}
	}
}
