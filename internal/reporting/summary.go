package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/xkilldash9x/klassi-cli/internal/results"
)

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// WriteSummary prints one row per scenario and a totals footer.
func WriteSummary(w io.Writer, title string, records []results.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Feature", "Scenario", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Feature", AutoMerge: true},
		{Name: "Scenario", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	var total time.Duration
	counts := map[results.Status]int{}
	for _, r := range records {
		t.AppendRow(table.Row{r.Scenario.URI, r.Scenario.Name, formatDuration(r.Duration), string(r.Status)})
		total += r.Duration
		counts[r.Status]++
	}

	switch {
	case counts[results.StatusFailed] > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case len(records) > counts[results.StatusPassed]:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d other",
			counts[results.StatusPassed], counts[results.StatusFailed],
			len(records)-counts[results.StatusPassed]-counts[results.StatusFailed]),
		formatDuration(total),
		overallStatus(counts, len(records)),
	})
	t.Render()
}

func overallStatus(counts map[results.Status]int, total int) string {
	switch {
	case counts[results.StatusFailed] > 0:
		return "FAIL"
	case total > counts[results.StatusPassed]:
		return "INCOMPLETE"
	default:
		return "PASS"
	}
}
