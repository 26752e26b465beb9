package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migration is a row of schema_migrations. AppliedAt is stored as text in
// the same layout as scan timestamps so both drivers agree on the format.
type Migration struct {
	Name      string `db:"name"`
	AppliedAt string `db:"applied_at"`
	Checksum  string `db:"checksum"`
}

// MigrationStatus reports whether an embedded migration has been applied.
type MigrationStatus struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded migrations for the connected driver.
type Migrator struct {
	db     *DB
	logger *logging.Logger
}

// NewMigrator creates a new migrator instance.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{
		db:     db,
		logger: logging.Default().WithComponent("migrator"),
	}
}

// ensureMigrationsTable creates the migrations tracking table if it doesn't exist.
func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       VARCHAR(255) PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum   VARCHAR(64) NOT NULL
		)`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "Failed to create migrations table", err)
	}
	return nil
}

// getAppliedMigrations returns already applied migrations keyed by name.
func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]Migration, error) {
	var migrations []Migration
	query := `SELECT name, applied_at, checksum FROM schema_migrations ORDER BY name`

	if err := m.db.SelectContext(ctx, &migrations, query); err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "Failed to get applied migrations", err)
	}

	applied := make(map[string]Migration, len(migrations))
	for _, migration := range migrations {
		applied[migration.Name] = migration
	}
	return applied, nil
}

// getMigrationFiles returns the sorted migration files for the driver.
func (m *Migrator) getMigrationFiles() ([]string, error) {
	dir := path.Join("migrations", m.db.Driver())
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration,
			fmt.Sprintf("No migrations for driver %q", m.db.Driver()), err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func migrationName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".sql")
}

// calculateChecksum calculates a SHA-256 checksum for migration content.
func calculateChecksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// splitStatements splits a migration script on statement-terminating
// semicolons. Migrations must not embed semicolons in literals.
func splitStatements(script string) []string {
	var statements []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// executeMigration applies a single migration file in one transaction.
func (m *Migrator) executeMigration(ctx context.Context, file string) error {
	content, err := migrationFiles.ReadFile(file)
	if err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration,
			fmt.Sprintf("Failed to read migration %s", file), err)
	}
	script := string(content)

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.WrapDatabaseError(errors.CodeDatabaseMigration,
				fmt.Sprintf("Failed to execute migration %s", migrationName(file)), err)
		}
	}

	insert := m.db.Rebind(`INSERT INTO schema_migrations (name, applied_at, checksum) VALUES (?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, migrationName(file), FormatTimestamp(time.Now()), calculateChecksum(script)); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration,
			fmt.Sprintf("Failed to record migration %s", migrationName(file)), err)
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseMigration,
			fmt.Sprintf("Failed to commit migration %s", migrationName(file)), err)
	}
	return nil
}

// Up runs all pending migrations. An applied migration whose embedded
// content has changed is reported as an error instead of being re-run.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	files, err := m.getMigrationFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		name := migrationName(file)

		if migration, exists := applied[name]; exists {
			content, err := migrationFiles.ReadFile(file)
			if err != nil {
				return errors.WrapDatabaseError(errors.CodeDatabaseMigration,
					fmt.Sprintf("Failed to read migration %s", file), err)
			}
			if calculateChecksum(string(content)) != migration.Checksum {
				return errors.NewDatabaseError(errors.CodeDatabaseMigration,
					fmt.Sprintf("Migration %s was modified after it was applied", name))
			}
			m.logger.Debug("Migration already applied", "migration", name)
			continue
		}

		m.logger.Info("Applying migration", "migration", name, "driver", m.db.Driver())
		if err := m.executeMigration(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	files, err := m.getMigrationFiles()
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, 0, len(files))
	for _, file := range files {
		name := migrationName(file)
		s := MigrationStatus{Name: name}
		if migration, exists := applied[name]; exists {
			s.Applied = true
			s.AppliedAt, _ = ParseTimestamp(migration.AppliedAt)
		}
		status = append(status, s)
	}
	return status, nil
}
