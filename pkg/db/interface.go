package db

import "database/sql"

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// PostgresClient and SupabaseClient satisfy it; SQLHandle wraps any other
// database/sql driver.
type DBProvider interface {
	DB() *sql.DB
}

// SQLHandle adapts an already opened *sql.DB to DBProvider. Run EnsureSchema
// on the handle before mirroring into it.
type SQLHandle struct {
	Handle *sql.DB
}

// DB returns the wrapped handle.
func (h SQLHandle) DB() *sql.DB {
	return h.Handle
}
