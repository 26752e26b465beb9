package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/errors"
)

func connectMemory(t *testing.T) *DB {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Path = ":memory:"

	database, err := Connect(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestSplitStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (id INTEGER);

-- second
CREATE INDEX idx_a ON a (id);
`
	assert.Equal(t, []string{
		"CREATE TABLE a (id INTEGER)",
		"CREATE INDEX idx_a ON a (id)",
	}, splitStatements(script))

	assert.Empty(t, splitStatements("-- nothing here\n\n"))
}

func TestCalculateChecksum(t *testing.T) {
	a := calculateChecksum("CREATE TABLE a (id INTEGER);")
	b := calculateChecksum("CREATE TABLE b (id INTEGER);")

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, calculateChecksum("CREATE TABLE a (id INTEGER);"))
}

func TestMigrationFilesPerDriver(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres} {
		m := &Migrator{db: &DB{driver: driver}}
		files, err := m.getMigrationFiles()
		require.NoError(t, err, driver)
		require.NotEmpty(t, files, driver)
		assert.Equal(t, "001_scan_history", migrationName(files[0]))
	}

	m := &Migrator{db: &DB{driver: "mysql"}}
	_, err := m.getMigrationFiles()
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseMigration))
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	database := connectMemory(t)
	ctx := context.Background()
	m := NewMigrator(database)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx))

	var count int
	require.NoError(t, database.GetContext(ctx, &count, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, count)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, "001_scan_history", status[0].Name)
	assert.True(t, status[0].Applied)
	assert.False(t, status[0].AppliedAt.IsZero())
}

func TestMigrator_StatusBeforeUp(t *testing.T) {
	database := connectMemory(t)

	status, err := NewMigrator(database).Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.False(t, status[0].Applied)
}

func TestMigrator_DetectsModifiedMigration(t *testing.T) {
	database := connectMemory(t)
	ctx := context.Background()
	m := NewMigrator(database)

	require.NoError(t, m.Up(ctx))
	_, err := database.ExecContext(ctx, `UPDATE schema_migrations SET checksum = 'stale'`)
	require.NoError(t, err)

	err = m.Up(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseMigration))
	assert.Contains(t, err.Error(), "modified after it was applied")
}
