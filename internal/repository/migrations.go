package repository

import "embed"

// Migrations holds the versioned SQL schema for the stays table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that golang-migrate reads.
const MigrationsDir = "migrations"
