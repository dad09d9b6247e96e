package cmd

import (
	"context"
	"log"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	_ "gorm.io/driver/sqlite"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations directory",
	}
	migrateRollback bool
	migrateStatus   bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.Flags().BoolVarP(&migrateStatus, "status", "s", false, "to print the applied and pending migrations")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "", "sql migrations directory, defaults to the embedded migrations")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Storage.Driver == internal.StorageDriverJSON {
		log.Fatal("migrate: storage.driver is json, nothing to migrate")
	}

	driverName, err := storage.SQLDriverName(cfg.Storage.Driver)
	if err != nil {
		log.Fatal(err)
	}
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.Database.Source)
	if err != nil {
		log.Fatalf("migrate: failed to open DB: %v\n", err)
	}
	defer db.Close()

	direction := storage.MigrateUp
	switch {
	case migrateStatus:
		direction = storage.MigrateStatus
	case migrateRollback:
		direction = storage.MigrateDown
	}

	if err := storage.Migrate(ctx, db.DB, cfg.Storage.Driver, direction, migrateDir); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}

	version, err := storage.SchemaVersion(ctx, db.DB, cfg.Storage.Driver)
	if err != nil {
		log.Fatalf("migrate: read version: %v", err)
	}
	log.Printf("migrate %s done, schema version %d", direction, version)
	return nil
}
