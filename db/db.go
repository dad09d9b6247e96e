// Package db holds the SQL schema for the postgres and sqlite backends.
package db

import "embed"

// Migrations contains the goose migration files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
