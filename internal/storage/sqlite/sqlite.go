// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// HOW DOCUMENTS FIT IN A TABLE:
// ─────────────────────────────
// Student records have no fixed schema (an update may add any field),
// so each document is kept as JSON text in one generic table:
//
//	documents(collection TEXT, key TEXT, data TEXT)  PRIMARY KEY (collection, key)
//
// The collection column plays the role of a document-store collection
// ("alunos"); the key column is the document id (the CPF).
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/aanand-mishra/alunos-api/internal/storage"
	"github.com/aanand-mishra/alunos-api/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// busyTimeoutMS is how long a connection waits for another writer's lock
// before SQLite gives up with "database is locked".
const busyTimeoutMS = 5000

// SQLite is the concrete implementation of storage.Storage.
// A single *sql.DB is a connection pool and is safe for concurrent use
// by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path, creates the documents table if
// it does not already exist, and returns a ready-to-use *SQLite.
//
// path ":memory:" opens a private in-memory database (used by tests).
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// An in-memory database lives and dies with its connection, so the
	// pool must never open a second one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       TEXT NOT NULL,
			PRIMARY KEY (collection, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// dsn builds the go-sqlite3 data source name for a file database.
//
// CONCURRENT WRITERS:
// ───────────────────
// A default (DEFERRED) transaction takes its write lock only on the
// first write. Two Update calls that both read first would then both
// hold SHARED locks and neither could upgrade: SQLite answers one of
// them with SQLITE_BUSY at once, without waiting. The options below
// avoid that:
//
//	_txlock=immediate   BEGIN takes the write lock up front; a second
//	                    writer waits at BEGIN instead of deadlocking
//	_busy_timeout       how long that wait may last
//	_journal_mode=WAL   readers keep reading while a writer commits
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", fmt.Sprint(busyTimeoutMS))
	q.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + q.Encode()
}

// ─────────────────────────────────────────────────────────────────────────────
// Get fetches one document by key.
//
// Returns storage.ErrNotFound when no row matches; QueryRow reports that
// as sql.ErrNoRows, but only once Scan is called.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Get(ctx context.Context, collection, key string) (types.Document, error) {
	if err := storage.CheckKey(key); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return getDocument(ctx, s.Db, collection, key)
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so Get and Update
// share one lookup.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q queryer, collection, key string) (types.Document, error) {
	var data string
	err := q.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND key = ? LIMIT 1",
		collection, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: scan: %w", err)
	}

	var doc types.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("Get: decode %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Set stores doc under key, replacing any document already there.
//
// INSERT ... ON CONFLICT DO UPDATE is SQLite's upsert: one statement
// either creates the row or overwrites its data column.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Set(ctx context.Context, collection, key string, doc types.Document) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	if err := storage.CheckFields(doc); err != nil {
		return fmt.Errorf("Set: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}

	_, err = s.Db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data
	`, collection, key, string(data))
	if err != nil {
		return fmt.Errorf("Set: exec: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update merges fields into the stored document.
//
// The JSON column cannot be patched in place, so this reads the row,
// merges in Go and writes it back, all inside one transaction. With
// _txlock=immediate (see dsn) concurrent updates queue up at BEGIN
// instead of failing with "database is locked".
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Update(ctx context.Context, collection, key string, fields types.Document) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if err := storage.CheckFields(fields); err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Update: begin: %w", err)
	}
	// Rollback after a successful Commit is a no-op (sql.ErrTxDone).
	defer tx.Rollback()

	doc, err := getDocument(ctx, tx, collection, key)
	if err != nil {
		return err
	}
	doc.Merge(fields)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Update: encode: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE documents SET data = ? WHERE collection = ? AND key = ?",
		string(data), collection, key,
	)
	if err != nil {
		return fmt.Errorf("Update: exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Update: commit: %w", err)
	}
	return nil
}

// Delete removes the row for key. A missing row is not an error.
func (s *SQLite) Delete(ctx context.Context, collection, key string) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	_, err := s.Db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND key = ?",
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("Delete: exec: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// List returns every document in collection.
//
// Query returns a cursor (*sql.Rows); rows.Next() advances it and
// rows.Err() reports anything that went wrong while iterating. The
// slice is pre-allocated so an empty collection encodes as [] not null.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) List(ctx context.Context, collection string) ([]types.Document, error) {
	rows, err := s.Db.QueryContext(ctx,
		"SELECT data FROM documents WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("List: query: %w", err)
	}
	defer rows.Close()

	docs := make([]types.Document, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("List: scan row: %w", err)
		}

		var doc types.Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("List: decode: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows iteration: %w", err)
	}
	return docs, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}
