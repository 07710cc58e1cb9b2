package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
	"github.com/John-Robertt/ibdbwatch/internal/history"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderNewShows(w io.Writer, shows []domain.ShowRecord) {
	t := newTable(w)
	t.SetTitle("New Shows")
	t.AppendHeader(table.Row{"Title", "Date", "Theatre", "Show Type", "Detail Link"})
	for _, s := range shows {
		t.AppendRow(table.Row{s.Title, s.Date, s.Theatre, s.ShowType, s.DetailLink})
	}
	t.Render()
}

func renderRuns(w io.Writer, runs []history.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Started", "Took", "Discovered", "OK", "Degraded", "Skipped", "Total", "Added"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatElapsed(r.FinishedAt.Sub(r.StartedAt)),
			r.Discovered,
			r.OK,
			r.Degraded,
			r.Skipped,
			r.Total,
			r.Added,
		})
	}
	t.Render()
}

func renderRecord(w io.Writer, rec domain.ShowRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Title", rec.Title},
		{"Date", rec.Date},
		{"Theatre", rec.Theatre},
		{"Image URL", rec.ImageURL},
		{"Show Type", rec.ShowType},
		{"Detail Link", rec.DetailLink},
	})
	t.Render()
}
