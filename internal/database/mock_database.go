package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrMockNotConfigured is returned by MockDatabase methods that have no function set.
var ErrMockNotConfigured = errors.New("mock database: method not configured")

// MockDatabase is a mock implementation of the Database interface for testing.
type MockDatabase struct {
	ExecContextFn     func(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContextFn func(ctx context.Context, query string, args ...any) (*sql.Row, error)
	QueryContextFn    func(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTxFn         func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContextFn     func(ctx context.Context) error
	CloseFn           func() error
	DialectValue      Dialect
}

// NewMockDatabase creates a new instance of MockDatabase.
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{DialectValue: DialectSQLite}
}

// ExecContext is a mock implementation of ExecContext method.
func (mdb *MockDatabase) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if mdb.ExecContextFn != nil {
		return mdb.ExecContextFn(ctx, query, args...)
	}
	return nil, ErrMockNotConfigured
}

// QueryRowContext is a mock implementation of QueryRowContext method.
func (mdb *MockDatabase) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if mdb.QueryRowContextFn != nil {
		return mdb.QueryRowContextFn(ctx, query, args...)
	}
	return nil, ErrMockNotConfigured
}

// QueryContext is a mock implementation of QueryContext method.
func (mdb *MockDatabase) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if mdb.QueryContextFn != nil {
		return mdb.QueryContextFn(ctx, query, args...)
	}
	return nil, ErrMockNotConfigured
}

// BeginTx is a mock implementation of BeginTx method.
func (mdb *MockDatabase) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if mdb.BeginTxFn != nil {
		return mdb.BeginTxFn(ctx, opts)
	}
	return nil, ErrMockNotConfigured
}

// PingContext is a mock implementation of PingContext method.
func (mdb *MockDatabase) PingContext(ctx context.Context) error {
	if mdb.PingContextFn != nil {
		return mdb.PingContextFn(ctx)
	}
	return nil
}

// Dialect returns DialectValue.
func (mdb *MockDatabase) Dialect() Dialect {
	return mdb.DialectValue
}

// Close is a mock implementation of Close method.
func (mdb *MockDatabase) Close() error {
	if mdb.CloseFn != nil {
		return mdb.CloseFn()
	}
	return nil
}
