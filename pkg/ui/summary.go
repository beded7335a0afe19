package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"bilagscraper/internal/downloader"
	"bilagscraper/pkg/manifest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RunTotals is the header of a summary table
type RunTotals struct {
	Listed   int
	Skipped  int
	Duration time.Duration
}

// RenderSummary writes the end-of-run tables: one row per outcome seen,
// then every document that was not downloaded
func RenderSummary(w io.Writer, totals RunTotals, results []downloader.Result) {
	counts := downloader.Tally(results)

	t := newTable(w)
	t.SetTitle("Run summary")
	t.AppendHeader(table.Row{"Outcome", "Documents"})
	t.AppendRow(table.Row{"listed", totals.Listed})
	t.AppendRow(table.Row{"skipped rows", totals.Skipped})
	t.AppendSeparator()
	for _, o := range downloader.Outcomes {
		if counts[o] == 0 {
			continue
		}
		t.AppendRow(table.Row{string(o), counts[o]})
	}
	t.AppendFooter(table.Row{"elapsed", totals.Duration.Round(time.Millisecond).String()})
	t.Render()

	var failed []downloader.Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return
	}

	ft := newTable(w)
	ft.SetTitle("Not downloaded")
	ft.AppendHeader(table.Row{"#", "Document", "Outcome", "Status", "Detail"})
	for _, r := range failed {
		ft.AppendRow(table.Row{r.Index + 1, r.ID, string(r.Outcome), statusCell(r.StatusCode), errorCell(r.Err)})
	}
	ft.Render()
}

// RenderManifest writes a stored run as a table
func RenderManifest(w io.Writer, mf *manifest.Manifest) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Last run %s (%s)", mf.FinishedAt.Local().Format("2006-01-02 15:04"), mf.Email))
	t.AppendHeader(table.Row{"#", "Document", "Outcome", "Status", "Size", "Detail"})
	for i, it := range mf.Items {
		t.AppendRow(table.Row{i + 1, it.ID, it.Outcome, statusCell(it.StatusCode), sizeCell(it.Size), it.Error})
	}

	parts := make([]string, 0, len(mf.Counts))
	for _, o := range downloader.Outcomes {
		if n := mf.Counts[string(o)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", o, n))
		}
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("listed %d, skipped %d", mf.Listed, mf.Skipped), "", "", strings.Join(parts, ", ")})
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	if colorOff.Load() {
		t.Style().Color = table.ColorOptions{}
	}
	return t
}

func statusCell(code int) string {
	if code == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", code)
}

func sizeCell(n int) string {
	switch {
	case n == 0:
		return "-"
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func errorCell(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
