package cmd

import (
	"broker-fee-reconciler/cmd/feerecon/config"
	"broker-fee-reconciler/internal/history"
	"broker-fee-reconciler/internal/reconciler"
	"broker-fee-reconciler/internal/server"

	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the statement upload API",
		Long: `Serve starts an HTTP server accepting statement uploads on
POST /api/statements and exposing the parsed statements, their filtered
positions, daily fee series, top expensive symbols and the historical
comparison. Uploaded statements are kept in memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverConfig, err := config.CreateServerConfig(a.v, addr)
			if err != nil {
				return err
			}
			historyConfig, err := config.CreateHistoryConfig(a.v)
			if err != nil {
				return err
			}
			serviceConfig, err := config.CreateServiceConfig(a.v, "")
			if err != nil {
				return err
			}
			service, err := reconciler.NewService(serviceConfig)
			if err != nil {
				return err
			}

			srv, err := server.New(serverConfig, service, history.NewStore(historyConfig), a.logger)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return serveCmd
}
