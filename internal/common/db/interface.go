package db

import "context"

// Querier is the statement surface repositories depend on.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Database is a pooled connection.
type Database interface {
	Querier
	Ping(ctx context.Context) error
	Close() error
}

// Row is a single-row query result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
