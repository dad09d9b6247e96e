package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/frahmantamala/employee-onboarding/db"
	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/pressly/goose/v3"
)

const migrationsTable = "schema_migrations"

// MigrationDirection selects what Migrate does with the schema.
type MigrationDirection string

const (
	MigrateUp     MigrationDirection = "up"
	MigrateDown   MigrationDirection = "down"
	MigrateStatus MigrationDirection = "status"
)

// SQLDriverName is the database/sql driver registered for a storage driver.
func SQLDriverName(driver string) (string, error) {
	switch driver {
	case internal.StorageDriverPostgres:
		return "pgx", nil
	case internal.StorageDriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("storage driver %q has no SQL backend", driver)
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case internal.StorageDriverPostgres:
		return "postgres", nil
	case internal.StorageDriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("storage driver %q has no SQL backend", driver)
}

// Migrate applies the embedded migrations, or the ones in dir when it is
// not empty.
func Migrate(ctx context.Context, conn *sql.DB, driver string, direction MigrationDirection, dir string) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	goose.SetTableName(migrationsTable)

	var source fs.FS = db.Migrations
	if dir == "" {
		dir = db.MigrationsDir
	} else {
		source = nil
	}
	goose.SetBaseFS(source)
	defer goose.SetBaseFS(nil)

	switch direction {
	case MigrateUp:
		err = goose.UpContext(ctx, conn, dir)
	case MigrateDown:
		err = goose.DownContext(ctx, conn, dir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, conn, dir)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil {
		return fmt.Errorf("%w: goose %s: %w", ErrIO, direction, err)
	}
	return nil
}

// SchemaVersion reports the newest applied migration, creating the
// version table when it is missing.
func SchemaVersion(ctx context.Context, conn *sql.DB, driver string) (int64, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return 0, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("goose dialect: %w", err)
	}
	goose.SetTableName(migrationsTable)
	return goose.GetDBVersionContext(ctx, conn)
}
