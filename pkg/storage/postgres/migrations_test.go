package postgres

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/rhuss/voxorder/pkg/storage/postgres/pgtest"
)

func TestMigrateAppliesOnce(t *testing.T) {
	dsn := pgtest.Start(t, pgtest.ImagePostgres)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"901_create_t.sql": {Data: []byte(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)},
		"902_seed_t.sql":   {Data: []byte(`INSERT INTO t (id) VALUES (1)`)},
		"README.md":        {Data: []byte("ignored")},
		"notes.sql":        {Data: []byte("not a migration")},
	}

	pool, err := Open(ctx, Config{DSN: dsn, MigrateOnStart: true}, fsys)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	// A second run must not re-apply the seed (it would violate the key).
	if err := Migrate(ctx, pool, fsys); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var n int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM t").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	var versions int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM schema_migrations WHERE version IN (901, 902)").Scan(&versions); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versions != 2 {
		t.Errorf("recorded versions = %d, want 2", versions)
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{DSN: "://not a dsn"}, nil); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}
