// Package migrations embeds the goose SQL migrations that create the
// project-store schema. All DDL is idempotent (IF NOT EXISTS) so running the
// migrations against an existing database is safe.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
