package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/resolver"
	"github.com/anstrom/netsweep/internal/scanning"
)

// HistoryOperation represents a function that operates on the scan history.
type HistoryOperation func(ctx context.Context, repo *db.HistoryRepository) error

// withHistory connects to the configured database, applies pending
// migrations and runs operation against the history repository.
func withHistory(ctx context.Context, cfg *config.Config, collector metrics.Collector, operation HistoryOperation) error {
	database, err := db.ConnectAndMigrate(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	repo := db.NewHistoryRepository(database,
		db.WithHistoryMetrics(collector),
		db.WithHistoryLogger(logging.Default().WithComponent("history")))
	return operation(ctx, repo)
}

// newEngine builds the nmap engine. A missing nmap binary yields an engine
// whose scans fail with ENGINE_UNAVAILABLE rather than an error here, so the
// API can still serve the history.
func newEngine(cfg *config.Config) scanning.Engine {
	var opts []scanning.EngineOption
	if cfg.Engine.DNSServer != "" {
		opts = append(opts, scanning.WithResolver(resolver.New(cfg.Engine.DNSServer, cfg.Engine.DNSTimeout)))
	}
	opts = append(opts, scanning.WithEngineLogger(logging.Default().WithComponent("nmap")))

	engine, err := scanning.NewNmapEngine(cfg.NmapConfig(), opts...)
	if err != nil {
		logging.Warn("Scan engine unavailable, scans will fail", "error", err)
		return scanning.UnavailableEngine{Err: err}
	}
	logging.Debug("Scan engine ready", "nmap", engine.BinaryPath())
	return engine
}

// newOrchestrator wires the engine, run limiter and metrics together.
func newOrchestrator(cfg *config.Config, engine scanning.Engine, collector metrics.Collector) *scanning.Orchestrator {
	return scanning.NewOrchestrator(engine, cfg.OrchestratorConfig(),
		scanning.WithLimiter(scanning.NewLimiter(cfg.Scanning.MaxConcurrentScans)),
		scanning.WithMetrics(collector),
		scanning.WithLogger(logging.Default().WithComponent("orchestrator")))
}
