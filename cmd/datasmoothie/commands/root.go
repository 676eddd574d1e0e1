package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"datasmoothie-client/lib/platforms/datasmoothie"
	"datasmoothie-client/lib/restyutil"
	"datasmoothie-client/lib/surveycache"
	"datasmoothie-client/lib/telemetry"
	"datasmoothie-client/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	verbose    *bool
	configPath *string
	dumpDir    *string
	language   *string
)

var (
	config Config
	client *datasmoothie.Client
	cache  *surveycache.Store
	tel    telemetry.Telemetry
)

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log requests and other debug output.")
	configPath = rootCmd.PersistentFlags().String("config", "datasmoothie.json5", "The config file, looked up from the working directory upwards.")
	dumpDir = rootCmd.PersistentFlags().String("dump", "", "Write every http request/response pair into this directory.")
	language = rootCmd.PersistentFlags().String("language", "", "Label language, overrides the config.")
}

var rootCmd = &cobra.Command{
	Use:   "datasmoothie",
	Short: "datasmoothie is a CLI for the Datasmoothie survey analytics API.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "datasmoothie-cli")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}

		config, err = LoadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if *language != "" {
			config.Language = *language
		}

		opts := datasmoothie.ClientOptions{
			ApiKey:     config.ApiKey,
			BaseUrl:    config.BaseUrl,
			MetaMaxAge: config.metaMaxAge(),
		}
		if *dumpDir != "" {
			output, err := restyutil.NewFilesystemOutput(*dumpDir)
			if err != nil {
				serviceutil.Fatal("failed to create dump directory", err)
			}
			opts.Messages = output
		}
		client, err = datasmoothie.NewClient(opts)
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cache != nil {
			err := cache.Close()
			if err != nil {
				slog.Warn("failed to close survey cache", "err", err)
			}
		}
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
