package harness

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/rpc-harness/runner"
	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

const maxErrorWidth = 80

// printResultsTable writes one row per test run and a totals footer.
func printResultsTable(out io.Writer, results []*runner.Result, duration time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("RPC Collection Results (%s)", formatDuration(duration)))

	t.AppendHeader(table.Row{
		"Test", "Folder", "Duration", "Success", "Failure", "Skipped", "Reports", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Success", Align: text.AlignRight},
		{Name: "Failure", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Reports", Align: text.AlignRight},
		{Name: "Error", WidthMax: maxErrorWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	var success, failure, skipped, reports int
	status := types.TestStatusPass
	for _, r := range results {
		s, f, sk := 0, 0, 0
		if r.Aggregation != nil {
			s, f, sk = r.Aggregation.Success.Total(), r.Aggregation.Failure.Total(), r.Aggregation.Skipped
		}
		success += s
		failure += f
		skipped += sk
		reports += len(r.Written)
		status = worstStatus(status, r.Status)

		t.AppendRow(table.Row{
			r.Test.Name,
			r.Test.Folder,
			formatDuration(r.Duration),
			s,
			f,
			sk,
			len(r.Written),
			getResultString(r.Status),
			firstLine(r.Error),
		})
	}

	switch status {
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.TestStatusFail:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", formatDuration(duration), success, failure, skipped, reports, getResultString(status), "",
	})
	t.Render()
}

func worstStatus(a, b types.TestStatus) types.TestStatus {
	rank := map[types.TestStatus]int{
		types.TestStatusPass:  0,
		types.TestStatusFail:  1,
		types.TestStatusError: 2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// getResultString returns a marked string representing the run status
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusFail:
		return "✗ fail"
	default:
		return "✗ error"
	}
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}

// formatDuration formats the duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
