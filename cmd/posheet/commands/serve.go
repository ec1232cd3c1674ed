package commands

import (
	"fmt"

	"posheet/internal/components/chrono"
	"posheet/internal/components/telemetry"
	"posheet/internal/pipeline"
	"posheet/internal/webform"
	"posheet/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var listenAddr *string

func init() {
	listenAddr = serveCmd.Flags().String("listen", "", "The address to serve the form on, defaults to the configured one.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--listen <addr>]",
	Short: "Serves the upload form that generates purchase orders.",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := *listenAddr
		if addr == "" {
			addr = globals.cfg.Listen
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if spec := globals.cfg.Marketplace.CachePurgeCron; spec != "" {
			cron := chrono.NewStandardCron(globals.clock.Location(), globals.tel)
			defer cron.Stop()
			err = cron.Cron(spec, client.PurgeCache)
			if err != nil {
				return fmt.Errorf("cache purge schedule: %w", err)
			}
		}

		service := pipeline.NewService(client, globals.clock, globals.tel)

		server, err := webform.NewServer(service, globals.cfg.PipelineOptions(), globals.clock, globals.tel)
		if err != nil {
			return err
		}

		if globals.cfg.Telemetry.Enabled() {
			telemetry.InstrumentPerfStats(cmd.Context())
		}
		return serviceutil.StartHttpServer(cmd.Context(), addr, server)
	},
}
