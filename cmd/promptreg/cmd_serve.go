package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgast/promptreg/internal/metrics"
	"github.com/cgast/promptreg/internal/server"
	"github.com/cgast/promptreg/pkg/events"
	"github.com/cgast/promptreg/pkg/provider"
	"github.com/cgast/promptreg/pkg/runner"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with live run events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}

			bus := events.NewMemoryBus(0)
			rec := metrics.New()
			r := runner.New(provider.NewFactory(a.cfg.Credentials(), a.logger),
				runner.WithLogger(a.logger),
				runner.WithEvents(bus),
				runner.WithRecorder(rec))

			srv := server.New(a.store, r, bus,
				server.WithLogger(a.logger),
				server.WithMetrics(rec.Handler()))
			defer srv.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s serving on http://localhost:%d\n", styles.Title.Render("promptreg"), port)
			return srv.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	return cmd
}
