package commands

import (
	"context"
	"fmt"
	"os"

	"posheet/internal/components/chrono"
	"posheet/internal/components/telemetry"
	"posheet/internal/config"
	"posheet/internal/scrapers/marketplace"
	"posheet/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
)

// globals are initialized before any subcommand runs.
var globals struct {
	cfg   config.Config
	clock chrono.API
	tel   telemetry.API
	otel  telemetry.Telemetry
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", config.FileName, "The config file to read, searched for in parent directories too.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
}

var rootCmd = &cobra.Command{
	Use:           "posheet",
	Short:         "posheet generates purchase order spreadsheets with product photos.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(os.Stderr, *verbose)

		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		clock, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
		otel, err := telemetry.Setup(cmd.Context(), "posheet", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}

		globals.cfg = cfg
		globals.clock = clock
		globals.tel = telemetry.SlogAPI{}
		globals.otel = otel
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return globals.otel.Shutdown(context.Background())
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("posheet failed", err)
	}
}

func newClient() (*marketplace.Client, error) {
	opts, err := globals.cfg.MarketplaceOptions()
	if err != nil {
		return nil, fmt.Errorf("marketplace options: %w", err)
	}
	return marketplace.NewClient(opts, globals.tel), nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
