package crosstab

import (
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

func FormatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render writes the table to w as a bordered text grid with the column
// keys as a two row header.
func (t *Table) Render(w io.Writer) {
	out := table.NewWriter()
	out.SetOutputMirror(w)

	variables := table.Row{"", ""}
	values := table.Row{"", ""}
	for _, c := range t.Columns {
		variables = append(variables, c.Variable)
		values = append(values, c.Value)
	}
	out.AppendHeader(variables, table.RowConfig{AutoMerge: true})
	out.AppendHeader(values)

	for i, k := range t.Rows {
		row := table.Row{k.Variable, k.Value}
		for _, v := range t.Data[i] {
			row = append(row, FormatCell(v))
		}
		out.AppendRow(row)
	}

	out.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	out.SetStyle(table.StyleRounded)
	out.Render()
}
