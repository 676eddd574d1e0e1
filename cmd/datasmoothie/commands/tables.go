package commands

import (
	"fmt"
	"log/slog"
	"os"

	"datasmoothie-client/lib/crosstab"
	"datasmoothie-client/lib/platforms/datasmoothie"
	"datasmoothie-client/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	tablesStub   *string
	tablesBanner *string
	tablesViews  *string
	tablesWeight *string
	tablesRaw    *bool

	setStubs   *[]string
	setBanners *[]string
	setViews   *string
	setXlsx    *string

	crosstabView *string
)

func init() {
	tablesStub = tablesCmd.Flags().String("stub", "", "Comma separated row variables.")
	tablesBanner = tablesCmd.Flags().String("banner", "@", "Comma separated column variables.")
	tablesViews = tablesCmd.Flags().String("views", "counts,c%", "Comma separated statistics.")
	tablesWeight = tablesCmd.Flags().String("weight", "", "Weight variable.")
	tablesRaw = tablesCmd.Flags().Bool("raw", false, "Print every view on its own without labels.")
	_ = tablesCmd.MarkFlagRequired("stub")
	rootCmd.AddCommand(tablesCmd)

	setStubs = tableSetCmd.Flags().StringArray("stub", nil, "A comma separated group of row variables, repeatable.")
	setBanners = tableSetCmd.Flags().StringArray("banner", []string{"@"}, "A comma separated group of column variables, repeatable.")
	setViews = tableSetCmd.Flags().String("views", "counts,c%", "Comma separated statistics.")
	setXlsx = tableSetCmd.Flags().String("xlsx", "", "Write the tables to this Excel workbook instead of printing them.")
	_ = tableSetCmd.MarkFlagRequired("stub")
	rootCmd.AddCommand(tableSetCmd)

	crosstabView = crosstabCmd.Flags().String("view", crosstab.ViewCounts, "The statistic to compute.")
	rootCmd.AddCommand(crosstabCmd)
}

var tablesCmd = &cobra.Command{
	Use:   "tables <datasource> --stub <vars> [--banner <vars>] [--views <views>]",
	Short: "Computes and prints a combined table of the given views.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ds := loadDatasource(ctx, parsePk(args[0]))

		result, err := ds.GetTables(ctx, datasmoothie.TablesRequest{
			Stub:     splitList(*tablesStub),
			Banner:   splitList(*tablesBanner),
			Views:    splitList(*tablesViews),
			Weight:   *tablesWeight,
			Combine:  !*tablesRaw,
			Language: config.Language,
		})
		if err != nil {
			serviceutil.Fatal("failed to get tables", err)
		}
		saveDatasource(ctx, ds)

		for _, view := range result.Missing {
			slog.Warn("view not returned by the server", "view", view)
		}
		if result.Combined != nil {
			result.Combined.Render(os.Stdout)
			return
		}
		for _, view := range result.Order {
			fmt.Println(view)
			result.Views[view].Render(os.Stdout)
		}
	},
}

var tableSetCmd = &cobra.Command{
	Use:   "table-set <datasource> --stub <vars> [--stub <vars>...] [--banner <vars>...] [--xlsx <file>]",
	Short: "Computes a combined table for every stub and banner pair.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ds := loadDatasource(ctx, parsePk(args[0]))

		tables, err := ds.GetTableSet(ctx, splitGroups(*setStubs), splitGroups(*setBanners), splitList(*setViews), config.Language)
		if err != nil {
			serviceutil.Fatal("failed to get table set", err)
		}
		saveDatasource(ctx, ds)

		if *setXlsx != "" {
			err = ds.TableSetToExcel(tables, *setXlsx)
			if err != nil {
				serviceutil.Fatal("failed to write workbook", err)
			}
			slog.Info("wrote table set", "file", *setXlsx, "tables", len(tables))
			return
		}
		for i, t := range tables {
			fmt.Println(crosstab.SheetName(i))
			t.Render(os.Stdout)
		}
	},
}

var crosstabCmd = &cobra.Command{
	Use:   "crosstab <datasource> <x> [y] [--view <view>]",
	Short: "Crosses a single row variable with a single column variable.",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ds := loadDatasource(ctx, parsePk(args[0]))

		req := datasmoothie.CrosstabRequest{
			X:        args[1],
			View:     *crosstabView,
			Language: config.Language,
		}
		if len(args) == 3 {
			req.Y = args[2]
		}
		table, err := ds.GetCrosstab(ctx, req)
		if err != nil {
			serviceutil.Fatal("failed to get crosstab", err)
		}
		saveDatasource(ctx, ds)
		table.Render(os.Stdout)
	},
}
