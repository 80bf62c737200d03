package store

import "database/sql"

// DBTX is the query surface shared by *sql.DB and *sql.Tx. Stores are
// constructed over it so webhook processing can run multiple writes in one
// transaction while everything else binds stores to the pool directly.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
