package database

import (
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
)

// driverNames maps the configured engine to its database/sql driver
// registration.
var driverNames = map[string]string{
	"sqlite":   "sqlite3",
	"duckdb":   "duckdb",
	"postgres": "pgx",
}
