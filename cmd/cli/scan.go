package cli

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/export"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/stream"
)

var scanNoSave bool

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target and print results as they arrive",
	Long: `Run a two-phase scan in-process: discover the live hosts of the target,
then run a detailed service scan against each one. Progress is printed as it
happens and a table of open ports is shown at the end.

The completed scan is saved to the history unless --no-save is given. An
interrupted scan is never saved.`,
	Example: `  netsweep scan 192.168.1.0/24
  netsweep scan scanme.nmap.org --no-save`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanNoSave, "no-save", false, "Do not save the scan to the history")
}

type scanStreamer interface {
	Stream(ctx context.Context, target string) iter.Seq[scanning.Event]
}

type scanAppender interface {
	Append(ctx context.Context, target string, timestamp time.Time, results []scanning.HostResult) (*db.ScanRecord, error)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	target := strings.TrimSpace(args[0])
	if target == "" {
		return errors.ErrValidation("target", "No target specified")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.Nop{}
	orchestrator := newOrchestrator(cfg, newEngine(cfg), collector)
	out := cmd.OutOrStdout()

	if scanNoSave {
		return streamScan(ctx, out, orchestrator, nil, target)
	}
	return withHistory(ctx, cfg, collector, func(ctx context.Context, repo *db.HistoryRepository) error {
		return streamScan(ctx, out, orchestrator, repo, target)
	})
}

// streamScan prints each event of one scan, saves the outcome through store
// when it is non-nil and renders the result table.
func streamScan(ctx context.Context, out io.Writer, scanner scanStreamer, store scanAppender, target string) error {
	printer := stream.SinkFunc(func(event scanning.Event) error {
		_, err := fmt.Fprintln(out, event.String())
		return err
	})

	summary, err := stream.Relay(scanner.Stream(ctx, target), printer)
	if err != nil {
		return fmt.Errorf("failed to print scan events: %w", err)
	}
	if !summary.Completed {
		return fmt.Errorf("scan of %s interrupted", target)
	}
	if summary.Failed && len(summary.Results) == 0 {
		return fmt.Errorf("scan of %s failed", target)
	}
	if len(summary.Results) == 0 {
		return nil
	}

	record := &db.ScanRecord{Target: target, Timestamp: time.Now().UTC(), Results: summary.Results}
	if store != nil && summary.Persistable() {
		saved, err := store.Append(context.WithoutCancel(ctx), target, record.Timestamp, summary.Results)
		if err != nil {
			return fmt.Errorf("failed to save scan: %w", err)
		}
		record = saved
		fmt.Fprintf(out, "Saved as scan %d\n", saved.ID)
	}

	fmt.Fprintln(out)
	return export.RenderTable(out, record)
}
