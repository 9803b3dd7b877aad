// Package postgres provides a PostgreSQL settings.Store. The settings
// document is kept as JSONB in a single-row table.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/settings"
	pgstore "github.com/rhuss/voxorder/pkg/storage/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// updateLockKey serializes Update calls across server replicas.
const updateLockKey = 0x766f78

const upsertSQL = `
INSERT INTO voxorder_settings (id, doc, updated_at) VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`

// Store is a PostgreSQL-backed settings store.
type Store struct {
	pool *pgxpool.Pool
}

var _ settings.Store = (*Store)(nil)

// New connects using cfg and applies migrations when cfg.MigrateOnStart
// is set.
func New(ctx context.Context, cfg pgstore.Config) (*Store, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	pool, err := pgstore.Open(ctx, cfg, sub)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Current loads the settings document.
func (s *Store) Current(ctx context.Context) (*settings.Settings, error) {
	return current(ctx, s.pool)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func current(ctx context.Context, q querier) (*settings.Settings, error) {
	var doc []byte
	var updatedAt time.Time
	err := q.QueryRow(ctx, "SELECT doc, updated_at FROM voxorder_settings WHERE id = 1").Scan(&doc, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var st settings.Settings
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	st.UpdatedAt = updatedAt.UTC()
	return &st, nil
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
	if _, err := s.pool.Exec(ctx, upsertSQL, doc, time.Now().UTC()); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	debug.Log("settings", "settings saved", "store", "postgres")
	return nil
}

// Update runs fn inside a transaction holding an advisory lock, so
// concurrent read-modify-write cycles do not lose changes.
func (s *Store) Update(ctx context.Context, fn func(*settings.Settings) error) (*settings.Settings, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", updateLockKey); err != nil {
		return nil, fmt.Errorf("locking settings: %w", err)
	}

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
	if _, err := tx.Exec(ctx, upsertSQL, doc, next.UpdatedAt); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing settings: %w", err)
	}
	debug.Log("settings", "settings updated", "store", "postgres")
	return next, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
