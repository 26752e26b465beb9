package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/export"
	"github.com/anstrom/netsweep/internal/metrics"
)

var (
	historyShowJSON bool
	historyOutput   string
)

// historyCmd represents the history command and its subcommands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved scans",
	Long:  "List, show, delete and export the scans saved in the history.",
	Example: `  netsweep history list
  netsweep history show 3
  netsweep history export 3 -o scan_3.csv
  netsweep history delete 3`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHistory(cmd.Context(), appConfig, metrics.Nop{},
			func(ctx context.Context, repo *db.HistoryRepository) error {
				records, err := repo.List(ctx)
				if err != nil {
					return err
				}
				return renderHistory(cmd.OutOrStdout(), records)
			})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the results of a saved scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseScanID(args[0])
		if err != nil {
			return err
		}
		return withHistory(cmd.Context(), appConfig, metrics.Nop{},
			func(ctx context.Context, repo *db.HistoryRepository) error {
				record, err := repo.GetByID(ctx, id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if historyShowJSON {
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(record)
				}

				fmt.Fprintf(out, "Scan %d: %s at %s\n\n", record.ID, record.Target,
					record.Timestamp.UTC().Format(export.TimestampLayout))
				return export.RenderTable(out, record)
			})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseScanID(args[0])
		if err != nil {
			return err
		}
		return withHistory(cmd.Context(), appConfig, metrics.Nop{},
			func(ctx context.Context, repo *db.HistoryRepository) error {
				if err := repo.DeleteByID(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted scan %d\n", id)
				return nil
			})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a saved scan as CSV",
	Long:  "Write the CSV export of a saved scan to a file, or to stdout when --output is omitted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseScanID(args[0])
		if err != nil {
			return err
		}
		return withHistory(cmd.Context(), appConfig, metrics.Nop{},
			func(ctx context.Context, repo *db.HistoryRepository) error {
				record, err := repo.GetByID(ctx, id)
				if err != nil {
					return err
				}
				return writeExport(cmd.OutOrStdout(), historyOutput, record)
			})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyShowCmd.Flags().BoolVar(&historyShowJSON, "json", false, "Print the stored record as JSON")
	historyExportCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "Output file (default stdout)")
}

func parseScanID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid scan id %q", raw)
	}
	return id, nil
}

// renderHistory prints one summary line per scan.
func renderHistory(w io.Writer, records []*db.ScanRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No saved scans.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Target", "Timestamp", "Hosts", "Ports")
	for _, record := range records {
		ports := 0
		for _, host := range record.Results {
			ports += host.PortCount()
		}
		if err := table.Append([]string{
			strconv.FormatInt(record.ID, 10),
			record.Target,
			record.Timestamp.UTC().Format(export.TimestampLayout),
			strconv.Itoa(len(record.Results)),
			strconv.Itoa(ports),
		}); err != nil {
			return fmt.Errorf("error rendering row: %w", err)
		}
	}
	return table.Render()
}

// writeExport writes the CSV of record to path, or to stdout when path is
// empty.
func writeExport(stdout io.Writer, path string, record *db.ScanRecord) error {
	if path == "" {
		return export.WriteCSV(stdout, record)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := export.WriteCSV(file, record); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	fmt.Fprintf(stdout, "Exported scan %d to %s\n", record.ID, path)
	return nil
}
