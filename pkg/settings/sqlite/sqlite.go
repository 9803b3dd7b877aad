// Package sqlite provides a settings.Store in a local SQLite file, for
// single-node deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/settings"
)

const schema = `
CREATE TABLE IF NOT EXISTS voxorder_settings (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const upsertSQL = `
INSERT INTO voxorder_settings (id, doc, updated_at) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`

// Store keeps settings in a SQLite database file.
type Store struct {
	db *sql.DB
}

var _ settings.Store = (*Store)(nil)

// New opens (creating if needed) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; Update relies on this to serialize.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Store{db: db}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func current(ctx context.Context, q queryRower) (*settings.Settings, error) {
	var doc, updatedAt string
	err := q.QueryRowContext(ctx, "SELECT doc, updated_at FROM voxorder_settings WHERE id = 1").Scan(&doc, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var st settings.Settings
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		st.UpdatedAt = ts
	}
	return &st, nil
}

// Current loads the settings document.
func (s *Store) Current(ctx context.Context) (*settings.Settings, error) {
	return current(ctx, s.db)
}

// Save replaces the settings document.
func (s *Store) Save(ctx context.Context, st *settings.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, upsertSQL, string(doc), now); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	debug.Log("settings", "settings saved", "store", "sqlite")
	return nil
}

// Update applies fn inside a transaction.
func (s *Store) Update(ctx context.Context, fn func(*settings.Settings) error) (*settings.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	next, err := current(ctx, tx)
	if errors.Is(err, settings.ErrNotFound) {
		next = settings.Default()
	} else if err != nil {
		return nil, err
	}

	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, string(doc), next.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing settings: %w", err)
	}
	debug.Log("settings", "settings updated", "store", "sqlite")
	return next, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
