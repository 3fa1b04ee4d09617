package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"screener/internal/pipeline"
)

// RenderSummary formats per-asset run reports as a console table.
func RenderSummary(reports []pipeline.AssetReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"symbol", "bars", "new", "points", "skipped", "status", "took"})
	for _, rep := range reports {
		status := "ok"
		if rep.Err != nil {
			status = rep.Err.Error()
		} else if len(rep.Degraded) > 0 {
			status = "degraded: " + strings.Join(rep.Degraded, ",")
		}
		t.AppendRow(table.Row{
			rep.Symbol,
			rep.Bars,
			rep.NewBars,
			rep.Points,
			skippedCell(rep),
			status,
			rep.Duration.Round(time.Millisecond),
		})
	}
	return t.Render()
}

func skippedCell(rep pipeline.AssetReport) string {
	if len(rep.Skipped) == 0 {
		return "-"
	}
	names := make([]string, 0, len(rep.Skipped))
	for _, d := range rep.Skipped {
		names = append(names, d.Family)
	}
	return fmt.Sprintf("%d (%s)", len(names), strings.Join(names, ","))
}
