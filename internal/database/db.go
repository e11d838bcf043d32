// Package database is the SQL surface the job store runs on. Drivers report
// an empty single-row result as ErrNoRows, whatever their native error is.
package database

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNoRows = errors.New("database: no rows in result set")

type DB interface {
	Ping(ctx context.Context) error
	Close() error

	// Exec returns the number of rows affected.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	// SQLDB is the database/sql view of the same pool, used by migrations.
	SQLDB() *sql.DB
}

type Rows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}
