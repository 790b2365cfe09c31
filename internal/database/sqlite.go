package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/sqlite/schema.sql
var sqliteSchema string

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)"

// SQLiteDatabase implements the Database interface for SQLite.
type SQLiteDatabase struct {
	db *sql.DB
}

// NewSQLiteDatabase opens (or creates) the SQLite database at path and applies the schema.
// SQLite allows a single writer, so the pool is limited to one connection.
func NewSQLiteDatabase(ctx context.Context, path string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to check database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteDatabase{
		db: db,
	}, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?" + sqlitePragmas
}

// ExecContext executes a query that doesn't return rows.
func (sdb *SQLiteDatabase) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return sdb.db.ExecContext(ctx, query, args...)
}

// QueryRowContext retrieves a single row.
func (sdb *SQLiteDatabase) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	return sdb.db.QueryRowContext(ctx, query, args...), nil
}

// QueryContext executes a query that returns multiple rows.
func (sdb *SQLiteDatabase) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return sdb.db.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (sdb *SQLiteDatabase) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return sdb.db.BeginTx(ctx, opts)
}

// PingContext verifies the database file is usable.
func (sdb *SQLiteDatabase) PingContext(ctx context.Context) error {
	return sdb.db.PingContext(ctx)
}

// Dialect returns DialectSQLite.
func (sdb *SQLiteDatabase) Dialect() Dialect {
	return DialectSQLite
}

// Close closes the database connection.
func (sdb *SQLiteDatabase) Close() error {
	if err := sdb.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
