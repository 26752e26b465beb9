// Package db provides the scan history store for netsweep.
// It handles connections to SQLite or PostgreSQL, schema migrations and
// the repository that persists completed scans.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	// Default database configuration values.
	defaultSQLitePath      = "netsweep.db"
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
	sqliteBusyTimeoutMs    = 5000
)

// sanitizeDBError converts raw database errors into coded errors that don't
// expose SQL details or credentials to API clients. The original error is
// kept in the Cause field for logging.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
	}
	if stderrors.Is(err, context.Canceled) {
		dbErr := errors.WrapDatabaseError(errors.CodeCanceled, "Database operation was canceled", err)
		dbErr.Operation = operation
		return dbErr
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Required field is missing")
		case "23514": // check_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Data validation failed")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "57P01": // admin_shutdown
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection lost")
		case "08000", "08003", "08006":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
				fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr := errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("Database operation failed: %s", operation))
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}

// DB wraps sqlx.DB with the driver it was opened with.
type DB struct {
	*sqlx.DB
	driver string
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Config holds database configuration. Path applies to SQLite only; the
// connection fields apply to PostgreSQL only.
type Config struct {
	Driver          string        `yaml:"driver" json:"driver" mapstructure:"driver"`
	Path            string        `yaml:"path" json:"path" mapstructure:"path"`
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	Port            int           `yaml:"port" json:"port" mapstructure:"port"`
	Database        string        `yaml:"database" json:"database" mapstructure:"database"`
	Username        string        `yaml:"username" json:"username" mapstructure:"username"`
	Password        string        `yaml:"password" json:"password" mapstructure:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration: a SQLite file
// in the working directory.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		Path:            defaultSQLitePath,
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// Validate checks that the configuration names a usable database.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errors.ErrConfigInvalid("database.path", c.Path)
		}
	case DriverPostgres:
		if c.Host == "" {
			return errors.ErrConfigInvalid("database.host", c.Host)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return errors.ErrConfigInvalid("database.port", c.Port)
		}
		if c.Database == "" {
			return errors.ErrConfigInvalid("database.database", c.Database)
		}
		if c.Username == "" {
			return errors.ErrConfigInvalid("database.username", c.Username)
		}
	default:
		return errors.ErrConfigInvalid("database.driver", c.Driver)
	}
	return nil
}

// dsn builds the driver-specific data source name.
func (c *Config) dsn() string {
	if c.Driver == DriverPostgres {
		// lib/pq escapes values in key=value form.
		return fmt.Sprintf(
			"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
		)
	}
	if c.Path == ":memory:" {
		return fmt.Sprintf(":memory:?_pragma=busy_timeout(%d)", sqliteBusyTimeoutMs)
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", c.Path, sqliteBusyTimeoutMs)
}

// Connect opens the configured database and verifies the connection.
// Returned errors never include the DSN.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Driver == DriverSQLite && config.Path != ":memory:" {
		if dir := filepath.Dir(config.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, errors.ErrDatabaseConnection(err)
			}
		}
	}

	db, err := sqlx.Open(config.Driver, config.dsn())
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	if config.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection also keeps an
		// in-memory database alive for the lifetime of the pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Warn("Failed to close database after ping failure", "driver", config.Driver)
		}
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Failed to verify database connection", err)
	}

	if config.Driver == DriverPostgres {
		logging.Info("Connected to database", "driver", config.Driver,
			"host", config.Host, "port", config.Port, "database", config.Database)
	} else {
		logging.Info("Connected to database", "driver", config.Driver, "path", config.Path)
	}
	return &DB{DB: db, driver: config.Driver}, nil
}

// ConnectAndMigrate connects to the database and applies pending migrations.
func ConnectAndMigrate(ctx context.Context, config *Config) (*DB, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := NewMigrator(db).Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
