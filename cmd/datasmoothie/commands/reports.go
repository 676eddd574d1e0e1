package commands

import (
	"fmt"

	"datasmoothie-client/lib/platforms/datasmoothie"
	"datasmoothie-client/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	chartType   *string
	chartTitle  *string
	chartY      *string
	chartViews  *string
	chartEach   *bool
	chartPerRow *int
)

func init() {
	chartType = addChartCmd.Flags().String("type", "", "Chart type, e.g. bar or pie.")
	chartTitle = addChartCmd.Flags().String("title", "", "Chart title, defaults to the question text of a single x variable.")
	chartY = addChartCmd.Flags().String("y", "", "Comma separated y variables.")
	chartViews = addChartCmd.Flags().String("views", "", "Comma separated statistics.")
	chartEach = addChartCmd.Flags().Bool("each", false, "Add one chart per x variable.")
	chartPerRow = addChartCmd.Flags().Int("per-row", 1, "Charts per row when adding one chart per variable.")

	reportCmd.AddCommand(getReportCmd)
	reportCmd.AddCommand(createReportCmd)
	reportCmd.AddCommand(deleteReportCmd)
	reportCmd.AddCommand(addChartCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(reportCmd)
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Lists the reports of the account.",
	Run: func(cmd *cobra.Command, args []string) {
		list, err := client.ListReports(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list reports", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Pk", "Title", "Datasource", "Template"})
		for _, r := range list.Results {
			datasource := ""
			if r.Datasource != nil {
				datasource = fmt.Sprint(*r.Datasource)
			}
			t.AppendRow(table.Row{r.Pk, r.Title, datasource, r.Template})
		}
		t.Render()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reads and edits a single report.",
}

var getReportCmd = &cobra.Command{
	Use:   "get <report>",
	Short: "Prints the metadata and elements of a report.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report, err := client.GetReport(cmd.Context(), parsePk(args[0]))
		if err != nil {
			serviceutil.Fatal("failed to get report", err)
		}

		fmt.Printf("%s (%d)\n", report.Meta.Title, report.Pk())
		t := newTable()
		t.AppendHeader(table.Row{"#", "Id", "Type", "Title"})
		for i, el := range report.Elements() {
			title := ""
			if options, ok := el["options"].(map[string]any); ok {
				title, _ = options["title"].(string)
			}
			t.AppendRow(table.Row{i, el["i"], el["type"], title})
		}
		t.Render()
	},
}

var createReportCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Creates an empty report.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report, err := client.CreateReport(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to create report", err)
		}
		cmd.Printf("created report %d\n", report.Pk())
	},
}

var deleteReportCmd = &cobra.Command{
	Use:   "delete <report>",
	Short: "Deletes a report.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		report, err := client.GetReport(ctx, parsePk(args[0]))
		if err != nil {
			serviceutil.Fatal("failed to get report", err)
		}
		err = report.Delete(ctx)
		if err != nil {
			serviceutil.Fatal("failed to delete report", err)
		}
	},
}

var addChartCmd = &cobra.Command{
	Use:   "add-chart <report> <datasource> <x> [x...]",
	Short: "Adds a chart of the x variables to a report.",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		report, err := client.GetReport(ctx, parsePk(args[0]))
		if err != nil {
			serviceutil.Fatal("failed to get report", err)
		}
		ds := loadDatasource(ctx, parsePk(args[1]))
		defer saveDatasource(ctx, ds)

		base := datasmoothie.ChartOptions{
			Datasource: ds,
			Y:          splitList(*chartY),
			ChartType:  *chartType,
			Views:      splitList(*chartViews),
			Title:      *chartTitle,
			Language:   config.Language,
		}

		if !*chartEach {
			base.X = args[2:]
			chart, err := report.AddChart(ctx, base)
			if err != nil {
				serviceutil.Fatal("failed to add chart", err)
			}
			cmd.Printf("added chart %v\n", chart["i"])
			return
		}

		charts := make([]datasmoothie.ChartOptions, 0, len(args)-2)
		for _, x := range args[2:] {
			opts := base
			opts.X = []string{x}
			charts = append(charts, opts)
		}
		added, err := report.AddCharts(ctx, charts, *chartPerRow)
		if err != nil {
			serviceutil.Fatal("failed to add charts", err)
		}
		cmd.Printf("added %d charts\n", len(added))
	},
}
