// Package migrations embeds the goose SQL migrations of the billing database.
package migrations

import "embed"

// FS holds the migration files at its root; pass "." as the directory to pg.Migrate.
//
//go:embed *.sql
var FS embed.FS
