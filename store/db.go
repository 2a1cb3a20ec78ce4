package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "github.com/lib/pq"              // postgres database/sql driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 database/sql driver
)

// Dialect identifies the SQL flavour behind a *sql.DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

const connectionTimeout = 5 * time.Second

// Config selects and tunes the database connection.
type Config struct {
	// Driver is one of "pgx", "postgres" or "sqlite3".
	Driver string `yaml:"driver"`
	// DSN is the driver connection string. For sqlite3 a plain file path is accepted.
	DSN string `yaml:"dsn"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// BusyTimeout applies to sqlite3 only.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	// AutoMigrate runs the embedded migrations on Open.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// DB is a *sql.DB tagged with its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Dialect returns the SQL flavour of db.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects, pings and, when cfg.AutoMigrate is set, migrates.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	driver := strings.ToLower(cfg.Driver)
	dsn := cfg.DSN
	switch dialect {
	case DialectSQLite:
		driver = "sqlite3"
		dsn, err = sqliteDSN(cfg)
		if err != nil {
			return nil, err
		}
	case DialectPostgres:
		if driver == "postgresql" {
			driver = "postgres"
		}
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dialect == DialectSQLite {
		// single writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	db := &DB{DB: sqlDB, dialect: dialect}
	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return db, nil
}

// Wrap tags an already-open *sql.DB with a dialect.
func Wrap(sqlDB *sql.DB, dialect Dialect) *DB {
	return &DB{DB: sqlDB, dialect: dialect}
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func sqliteDSN(cfg Config) (string, error) {
	dsn := cfg.DSN
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "?") {
		return dsn, nil
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		dsn, busy.Milliseconds()), nil
}
