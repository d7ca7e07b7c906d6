// Package db carries the embedded database migrations.
package db

import "embed"

// Migrations holds the goose SQL migration files compiled into the binary,
// so deployments never depend on a migrations directory being present.
//
//go:embed migrations/*.sql
var Migrations embed.FS
