// Package sqlite stores sealed documents and audit records in SQLite.
// Reads go straight to the pool; every write goes through the db.Worker.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
	dbpkg "github.com/BrandonDHaskell/Carguard/server/internal/db"
)

const scanPageSize = 100

type Backend struct {
	db     *sql.DB
	writer *dbpkg.Worker
	ownsDB bool
}

var _ store.Backend = (*Backend)(nil)

// New wraps an existing connection and writer. Close stops the writer but
// leaves db open for its owner.
func New(db *sql.DB, writer *dbpkg.Worker) *Backend {
	return &Backend{db: db, writer: writer}
}

// Open opens (and migrates) the database at path and starts a writer.
func Open(ctx context.Context, path string) (*Backend, error) {
	conn, err := dbpkg.Open(ctx, dbpkg.Config{Path: path})
	if err != nil {
		return nil, err
	}
	b := New(conn, dbpkg.NewWorker(conn))
	b.ownsDB = true
	return b, nil
}

func (b *Backend) Close() error {
	b.writer.Close()
	if b.ownsDB {
		return b.db.Close()
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `
SELECT payload FROM documents WHERE resource_id = ?;
`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get %s: %w", key, err)
	}
	return payload, nil
}

func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	nowMs := time.Now().UTC().UnixMilli()

	return b.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO documents(resource_id, payload, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(resource_id) DO UPDATE SET
  payload = excluded.payload,
  updated_at_ms = excluded.updated_at_ms;
`, key, data, nowMs); err != nil {
			return fmt.Errorf("Put %s: %w", key, err)
		}
		return nil
	})
}

func (b *Backend) Append(ctx context.Context, stream string, data []byte) error {
	nowMs := time.Now().UTC().UnixMilli()

	return b.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO log_records(stream, payload, appended_at_ms) VALUES (?, ?, ?);
`, stream, data, nowMs); err != nil {
			return fmt.Errorf("Append %s: %w", stream, err)
		}
		return nil
	})
}

// Scan pages backwards by id. Each page is fully read and the rows closed
// before fn runs, so fn may call back into the backend.
func (b *Backend) Scan(ctx context.Context, stream string, fn func(data []byte) bool) error {
	var before int64 = -1

	for {
		page, lastID, err := b.scanPage(ctx, stream, before)
		if err != nil {
			return err
		}
		for _, rec := range page {
			if !fn(rec) {
				return nil
			}
		}
		if len(page) < scanPageSize {
			return nil
		}
		before = lastID
	}
}

func (b *Backend) scanPage(ctx context.Context, stream string, before int64) ([][]byte, int64, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if before < 0 {
		rows, err = b.db.QueryContext(ctx, `
SELECT id, payload FROM log_records
WHERE stream = ?
ORDER BY id DESC LIMIT ?;
`, stream, scanPageSize)
	} else {
		rows, err = b.db.QueryContext(ctx, `
SELECT id, payload FROM log_records
WHERE stream = ? AND id < ?
ORDER BY id DESC LIMIT ?;
`, stream, before, scanPageSize)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("Scan %s: %w", stream, err)
	}
	defer rows.Close()

	var (
		page   [][]byte
		lastID int64
	)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&lastID, &payload); err != nil {
			return nil, 0, fmt.Errorf("Scan %s row: %w", stream, err)
		}
		page = append(page, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("Scan %s: %w", stream, err)
	}
	return page, lastID, nil
}
