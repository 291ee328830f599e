package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/syrupdata/dqaudit/internal/audit"
)

// RenderSummaryTable prints the per-model aggregates to the console after a
// run, alongside any models that could not be audited.
func RenderSummaryTable(w io.Writer, summaries []audit.Summary, failures []*audit.ModelError) {
	if len(summaries) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)

		t.AppendHeader(table.Row{"Model", "Tests", "Passed", "Failed", "Errors", "Defects", "Worst Severity"})
		for _, s := range summaries {
			worst := string(s.WorstSeverity)
			if worst == "" {
				worst = "-"
			}
			t.AppendRow(table.Row{s.ModelName, s.TotalTests, s.Passed, s.Failed, s.Errors, s.TotalDefects, worst})
		}
		t.Render()
	}

	if len(failures) > 0 {
		fmt.Fprintln(w, "\nModels that could not be audited:")
		for _, failure := range failures {
			fmt.Fprintf(w, "  - %s: %v\n", failure.Model, failure.Err)
		}
	}
}

// RenderColumnTable prints column metadata for the inspect command.
func RenderColumnTable(w io.Writer, columns []Column) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "Column", "Type", "Nullable", "Nulls", "Distinct"})
	for _, c := range columns {
		nullable := "NO"
		if c.IsNullable {
			nullable = "YES"
		}
		t.AppendRow(table.Row{c.Position, c.Name, c.DataType, nullable, c.NullCount, c.DistinctCount})
	}
	t.Render()
}

// Column is the joined metadata/statistics view rendered by inspect.
type Column struct {
	Position      int
	Name          string
	DataType      string
	IsNullable    bool
	NullCount     int64
	DistinctCount int64
}
