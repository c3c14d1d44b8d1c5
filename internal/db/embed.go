package db

import "embed"

// EmbedMigrations holds the audit store migration files applied by
// RunMigrations at startup.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
