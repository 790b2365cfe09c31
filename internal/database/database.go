package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour spoken by a Database.
type Dialect string

const (
	// DialectPostgres uses $n placeholders.
	DialectPostgres Dialect = "postgres"
	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = "sqlite"
)

// Rebind rewrites the ? placeholders of query into the dialect's placeholder syntax.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// Database is the pooled SQL handle repositories run their queries on.
// Every call acquires a connection for its own duration only.
type Database interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
	Dialect() Dialect
	Close() error
}
