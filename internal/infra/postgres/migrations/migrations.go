package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema change, registered by the init functions of
// the numbered files in this package.
var Migrations = migrate.NewMigrations()
