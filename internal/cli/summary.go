package cli

import (
	"cropstudy/internal/coordinator"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// printSummary renders the totals of a finished run.
func printSummary(w io.Writer, res *coordinator.Result) error {
	r := res.Report

	table := tablewriter.NewWriter(w)
	table.Header("Item", "Value")
	table.Append("Run", r.RunID)
	table.Append("Study", r.Title)
	table.Append("Jobs", fmt.Sprintf("%d", len(r.Entries)))
	table.Append("OK", fmt.Sprintf("%d", r.OK))
	table.Append("Failed", fmt.Sprintf("%d", r.Failed))
	table.Append("Results", fmt.Sprintf("%d", r.Results))
	if r.Skipped > 0 {
		table.Append("Skipped items", fmt.Sprintf("%d", r.Skipped))
	}
	table.Append("Duration", res.Duration.Round(time.Millisecond).String())
	table.Append("Report", res.ReportPath)
	table.Append("States", res.StatesPath)
	return table.Render()
}
