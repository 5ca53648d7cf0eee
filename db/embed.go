// Package db provides embedded database migrations and seed data.
package db

import "embed"

// Migrations holds the DDL files applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
