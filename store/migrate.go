package store

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending embedded migration for db's dialect.
func Migrate(ctx context.Context, db *DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir := "migrations/postgres"
	dialect := "postgres"
	if db.dialect == DialectSQLite {
		dir = "migrations/sqlite"
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
