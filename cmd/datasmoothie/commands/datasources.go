package commands

import (
	"slices"

	"datasmoothie-client/lib/textutil"
	"datasmoothie-client/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	createDescription *string
	metaRefresh       *bool
	metaSearch        *[]string
)

func init() {
	createDescription = createDatasourceCmd.Flags().String("description", "", "Description of the new datasource.")
	metaRefresh = metaCmd.Flags().Bool("refresh", false, "Ignore the cache and fetch the metadata again.")
	metaSearch = metaCmd.Flags().StringSlice("search", nil, "Only list variables whose name or text contains one of these terms.")

	datasourcesCmd.AddCommand(createDatasourceCmd)
	rootCmd.AddCommand(datasourcesCmd)
	rootCmd.AddCommand(metaCmd)
}

var datasourcesCmd = &cobra.Command{
	Use:   "datasources",
	Short: "Lists the datasources of the account.",
	Run: func(cmd *cobra.Command, args []string) {
		list, err := client.ListDatasources(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list datasources", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Pk", "Name", "Description", "Modified"})
		for _, ds := range list.Results {
			t.AppendRow(table.Row{ds.Pk, ds.Name, ds.Description, ds.Modified})
		}
		t.AppendFooter(table.Row{"", "Total", list.Count})
		t.Render()
	},
}

var createDatasourceCmd = &cobra.Command{
	Use:   "create <name> [--description <text>]",
	Short: "Creates an empty datasource.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ds, err := client.CreateDatasource(cmd.Context(), args[0], *createDescription)
		if err != nil {
			serviceutil.Fatal("failed to create datasource", err)
		}
		cmd.Printf("created datasource %d\n", ds.Pk())
	},
}

var metaCmd = &cobra.Command{
	Use:   "meta <datasource> [--refresh] [--search <terms>]",
	Short: "Lists the variables of a datasource with their labels.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		pk := parsePk(args[0])
		if *metaRefresh {
			forgetDatasource(ctx, pk)
		}
		ds := loadDatasource(ctx, pk)
		if *metaRefresh {
			ds.Invalidate()
		}
		meta, err := ds.Meta(ctx)
		if err != nil {
			serviceutil.Fatal("failed to get metadata", err)
		}
		saveDatasource(ctx, ds)

		names := make([]string, 0, len(meta.Columns))
		for name := range meta.Columns {
			names = append(names, name)
		}
		slices.Sort(names)

		t := newTable()
		t.AppendHeader(table.Row{"Variable", "Type", "Text", "Values"})
		for _, name := range names {
			text := meta.VariableText(name, config.Language)
			if !textutil.MatchAny([]string{name, text}, *metaSearch) {
				continue
			}
			values, _ := meta.Values(name)
			t.AppendRow(table.Row{
				name,
				meta.Columns[name].Type,
				text,
				len(values),
			})
		}
		t.Render()
	},
}
