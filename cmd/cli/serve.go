package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/api"
	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the netsweep API server in the foreground.

The server streams scans over server-sent events and WebSocket, serves the
scan history and CSV exports, and exposes Prometheus metrics at /metrics.
It shuts down gracefully on SIGINT or SIGTERM.`,
	Example: `  netsweep serve
  netsweep serve --host 0.0.0.0 --port 9000
  NETSWEEP_DATABASE_PATH=/var/lib/netsweep/history.db netsweep serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Override server host")
	serveCmd.Flags().Int("port", 0, "Override server port")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promMetrics := metrics.GetGlobalMetrics()
	orchestrator := newOrchestrator(cfg, newEngine(cfg), promMetrics)
	defer func() { _ = orchestrator.Limiter().Close() }()

	return withHistory(ctx, cfg, promMetrics, func(ctx context.Context, repo *db.HistoryRepository) error {
		server, err := api.New(cfg, api.Dependencies{
			Scanner: orchestrator,
			Store:   repo,
			Limiter: orchestrator.Limiter(),
			Metrics: promMetrics,
			Logger:  logging.Default(),
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "netsweep listening on http://%s\n", cfg.GetAPIAddress())
		return server.Start(ctx)
	})
}
