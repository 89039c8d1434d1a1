package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/server"
	"github.com/jackzampolin/vbpl/internal/server/endpoints"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vbpl server",
	Long: `Start the vbpl HTTP server.

The server opens the store in the home directory and keeps the provider
registry in sync with config.yaml and stored settings.

The server provides:
  - /health   - Basic server health check
  - /ready    - Readiness check (includes the store)
  - /metrics  - Prometheus metrics
  - /swagger  - API documentation
  - /api/...  - Document processing, articles, settings, prompts, LLM calls

Examples:
  vbpl serve                    # Start on default port 8080
  vbpl serve --port 3000        # Start on custom port
  vbpl serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		svcs.Config.WatchConfig()

		srv, err := server.New(server.Config{
			Host:            serveHost,
			Port:            servePort,
			Services:        svcs,
			Gatherer:        prometheus.DefaultGatherer,
			SwaggerSpecPath: endpoints.SwaggerSpecPath(),
			Logger:          svcs.Logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
