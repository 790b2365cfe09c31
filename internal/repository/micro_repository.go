package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MSSkowron/MicroURL/internal/database"
	"github.com/MSSkowron/MicroURL/internal/model"
)

var (
	// ErrMicroCollision is returned when a micro with the same code already exists, live or not yet swept.
	ErrMicroCollision = errors.New("micro with the provided code already exists")
	// ErrMicroNotFound is returned when a micro is absent or expired.
	ErrMicroNotFound = errors.New("micro not found")
	// ErrDestinationTaken is returned when a live micro already points to the destination being inserted.
	ErrDestinationTaken = errors.New("destination is already registered")
	// ErrStoreUnavailable is returned when the underlying store fails. Callers may retry.
	ErrStoreUnavailable = errors.New("micro store unavailable")
)

// MicroRepository is an interface that defines the methods required for micro storage.
// Expiry is evaluated against the repository clock: an entry is live while now <= ExpiresAt.
type MicroRepository interface {
	// FindByDestination returns the code of the live micro registered for destination.
	FindByDestination(ctx context.Context, destination string) (code string, found bool, err error)

	// Insert stores a new micro. It fails with ErrMicroCollision if the code is taken
	// and with ErrDestinationTaken if a live micro already holds the destination.
	Insert(ctx context.Context, entry *model.MicroEntry) error

	// Lookup returns the live micro with the given code or ErrMicroNotFound.
	Lookup(ctx context.Context, code string) (*model.MicroEntry, error)

	// IncrementHit atomically increments the hit count of a live micro or returns ErrMicroNotFound.
	IncrementHit(ctx context.Context, code string) error

	// TopByHits returns up to limit live public micros ordered by hit count, oldest first on ties.
	TopByHits(ctx context.Context, limit int) ([]*model.MicroEntry, error)

	// MostRecent returns up to limit live public micros, newest first.
	MostRecent(ctx context.Context, limit int) ([]*model.MicroEntry, error)

	// DeleteExpired removes every micro with ExpiresAt before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// Opt configures a repository.
type Opt func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the function repositories use to read the current time.
func WithClock(now func() time.Time) Opt {
	return func(o *options) {
		o.now = now
	}
}

func applyOpts(opts []Opt) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

const microColumns = `code, destination, created_at, expires_at, public, hit_count`

// MicroRepositoryImpl implements the MicroRepository interface on top of a SQL database.
type MicroRepositoryImpl struct {
	db  database.Database
	now func() time.Time
}

// NewMicroRepository creates a new MicroRepositoryImpl instance with the provided database.
func NewMicroRepository(db database.Database, opts ...Opt) *MicroRepositoryImpl {
	o := applyOpts(opts)
	return &MicroRepositoryImpl{
		db:  db,
		now: o.now,
	}
}

func (mr *MicroRepositoryImpl) FindByDestination(ctx context.Context, destination string) (string, bool, error) {
	query := mr.rebind(`SELECT code FROM micros WHERE destination = ? AND expires_at >= ? ORDER BY created_at DESC LIMIT 1`)

	row, err := mr.db.QueryRowContext(ctx, query, destination, mr.now().Unix())
	if err != nil {
		return "", false, storeError("find micro by destination", err)
	}

	var code string
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, storeError("find micro by destination", err)
	}

	return code, true, nil
}

func (mr *MicroRepositoryImpl) Insert(ctx context.Context, entry *model.MicroEntry) (err error) {
	tx, err := mr.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin insert transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Serializes concurrent registrations of one destination until commit.
	if mr.db.Dialect() == database.DialectPostgres {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.Destination); err != nil {
			return storeError("lock destination", err)
		}
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		mr.rebind(`SELECT code FROM micros WHERE destination = ? AND expires_at >= ? LIMIT 1`),
		entry.Destination, mr.now().Unix(),
	).Scan(&existing)
	switch {
	case err == nil:
		return ErrDestinationTaken
	case !errors.Is(err, sql.ErrNoRows):
		return storeError("check destination", err)
	}

	_, err = tx.ExecContext(ctx,
		mr.rebind(`INSERT INTO micros (`+microColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		entry.Code, entry.Destination, entry.CreatedAt.Unix(), entry.ExpiresAt.Unix(), entry.Public, entry.HitCount,
	)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return ErrMicroCollision
		}
		return storeError("insert micro", err)
	}

	if err = tx.Commit(); err != nil {
		return storeError("commit insert transaction", err)
	}

	return nil
}

func (mr *MicroRepositoryImpl) Lookup(ctx context.Context, code string) (*model.MicroEntry, error) {
	query := mr.rebind(`SELECT ` + microColumns + ` FROM micros WHERE code = ? AND expires_at >= ?`)

	row, err := mr.db.QueryRowContext(ctx, query, code, mr.now().Unix())
	if err != nil {
		return nil, storeError("lookup micro", err)
	}

	entry, err := scanMicro(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMicroNotFound
		}
		return nil, storeError("lookup micro", err)
	}

	return entry, nil
}

func (mr *MicroRepositoryImpl) IncrementHit(ctx context.Context, code string) error {
	query := mr.rebind(`UPDATE micros SET hit_count = hit_count + 1 WHERE code = ? AND expires_at >= ?`)

	result, err := mr.db.ExecContext(ctx, query, code, mr.now().Unix())
	if err != nil {
		return storeError("increment hit count", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return storeError("increment hit count", err)
	}
	if affected == 0 {
		return ErrMicroNotFound
	}

	return nil
}

func (mr *MicroRepositoryImpl) TopByHits(ctx context.Context, limit int) ([]*model.MicroEntry, error) {
	return mr.listPublic(ctx, "list top micros", `ORDER BY hit_count DESC, created_at ASC, code ASC`, limit)
}

func (mr *MicroRepositoryImpl) MostRecent(ctx context.Context, limit int) ([]*model.MicroEntry, error) {
	return mr.listPublic(ctx, "list recent micros", `ORDER BY created_at DESC, code ASC`, limit)
}

func (mr *MicroRepositoryImpl) listPublic(ctx context.Context, op, orderBy string, limit int) ([]*model.MicroEntry, error) {
	entries := make([]*model.MicroEntry, 0)
	if limit <= 0 {
		return entries, nil
	}

	query := mr.rebind(`SELECT ` + microColumns + ` FROM micros WHERE public = ? AND expires_at >= ? ` + orderBy + ` LIMIT ?`)

	rows, err := mr.db.QueryContext(ctx, query, true, mr.now().Unix(), limit)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanMicro(rows)
		if err != nil {
			return nil, storeError(op, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}

	return entries, nil
}

func (mr *MicroRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := mr.db.ExecContext(ctx, mr.rebind(`DELETE FROM micros WHERE expires_at < ?`), now.Unix())
	if err != nil {
		return 0, storeError("delete expired micros", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("delete expired micros", err)
	}

	return deleted, nil
}

func (mr *MicroRepositoryImpl) Ping(ctx context.Context) error {
	if err := mr.db.PingContext(ctx); err != nil {
		return storeError("ping store", err)
	}
	return nil
}

func (mr *MicroRepositoryImpl) rebind(query string) string {
	return mr.db.Dialect().Rebind(query)
}

func scanMicro(scanner interface{ Scan(...any) error }) (*model.MicroEntry, error) {
	var (
		entry     model.MicroEntry
		createdAt int64
		expiresAt int64
	)
	if err := scanner.Scan(&entry.Code, &entry.Destination, &createdAt, &expiresAt, &entry.Public, &entry.HitCount); err != nil {
		return nil, err
	}

	entry.CreatedAt = time.Unix(createdAt, 0).UTC()
	entry.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	return &entry, nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}

var _ MicroRepository = (*MicroRepositoryImpl)(nil)
