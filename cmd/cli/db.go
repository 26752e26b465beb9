package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/db"
)

// dbCmd represents the db command and its subcommands.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
	Long: `Maintain the history database. Migrations are applied automatically by
every command that opens the database; these commands run or inspect them
explicitly.`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		database, err := db.Connect(cmd.Context(), &appConfig.Database)
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}
		defer func() { _ = database.Close() }()

		if err := db.NewMigrator(database).Up(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		database, err := db.Connect(cmd.Context(), &appConfig.Database)
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}
		defer func() { _ = database.Close() }()

		statuses, err := db.NewMigrator(database).Status(cmd.Context())
		if err != nil {
			return err
		}
		return renderMigrations(cmd.OutOrStdout(), database.Driver(), statuses)
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
}

func renderMigrations(w io.Writer, driver string, statuses []db.MigrationStatus) error {
	fmt.Fprintf(w, "Driver: %s\n", driver)

	table := tablewriter.NewWriter(w)
	table.Header("Migration", "Status", "Applied At")
	for _, s := range statuses {
		state, appliedAt := "pending", ""
		if s.Applied {
			state = "applied"
			appliedAt = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		if err := table.Append([]string{s.Name, state, appliedAt}); err != nil {
			return fmt.Errorf("error rendering row: %w", err)
		}
	}
	return table.Render()
}
