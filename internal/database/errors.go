package database

import (
	"errors"

	"github.com/lib/pq"
	"github.com/ncruces/go-sqlite3"
)

const pqUniqueViolation = "23505"

// UniqueViolation reports whether err is a unique or primary key violation.
// The returned string identifies the violated constraint the way the driver reports it:
// the constraint name for PostgreSQL, the error message (naming table.column) for SQLite.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == pqUniqueViolation {
			return pqErr.Constraint, true
		}
		return "", false
	}

	var liteErr *sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode() {
		case sqlite3.CONSTRAINT_PRIMARYKEY, sqlite3.CONSTRAINT_UNIQUE:
			return liteErr.Error(), true
		}
	}

	return "", false
}
