package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"pharmasync/cmd/client/cmd/cli"
	"pharmasync/cmd/client/cmd/record"
	"pharmasync/cmd/client/cmd/sale"
	"pharmasync/cmd/client/cmd/sync"
	"pharmasync/internal/app/client"
	"pharmasync/internal/app/client/config"
	"pharmasync/internal/utils/logger"
	"pharmasync/internal/utils/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

var (
	serverURL  string
	dataDir    string
	apiToken   string
	debug      bool
	jsonOutput bool
	yamlOutput bool
	offline    bool

	tel *telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "pharmasync",
	Short: "Offline-first point of sale client",
	Long: `pharmasync keeps a local copy of the pharmacy's catalogue, customers
and sales. Changes made offline are queued and pushed to the server on the
next sync, after which the local collections are refreshed.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Fail("error:"), err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if apiToken != "" {
		cfg.APIToken = apiToken
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	log := logger.NewWithLevel(cfg.Env, level)

	format := cli.FormatText
	switch {
	case jsonOutput && yamlOutput:
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	case jsonOutput:
		format = cli.FormatJSON
	case yamlOutput:
		format = cli.FormatYAML
	}
	out := cmd.OutOrStdout()
	cli.SetupColor(out, format)

	tel, err = telemetry.New(cmd.Context(), telemetry.Config{
		ServiceName: "pharmasync-client",
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
	}, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	app, err := client.New(cmd.Context(), cfg, log, client.Options{Offline: offline})
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	cmd.SetContext(cli.WithEnv(cmd.Context(), &cli.Env{
		App:    app,
		Log:    log,
		Format: format,
		Out:    out,
	}))
	return nil
}

func closeApp(cmd *cobra.Command, _ []string) error {
	var errs []error
	if env, err := cli.FromContext(cmd.Context()); err == nil {
		errs = append(errs, env.App.Close())
	}
	if tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		errs = append(errs, tel.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", "", "server URL (overrides SERVER_ADDRESS)")
	flags.StringVar(&dataDir, "data-dir", "", "directory of the local store (overrides DATA_DIR)")
	flags.StringVar(&apiToken, "token", "", "API token (overrides API_TOKEN)")
	flags.BoolVar(&debug, "debug", false, "log debug output to stderr")
	flags.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	flags.BoolVar(&yamlOutput, "yaml", false, "print results as YAML")
	flags.BoolVar(&offline, "offline", false, "never contact the server")

	rootCmd.AddCommand(initCmd, statusCmd, changesCmd, watchCmd)
	rootCmd.AddCommand(record.RecordCmd, sale.SaleCmd, sync.SyncCmd)
}
