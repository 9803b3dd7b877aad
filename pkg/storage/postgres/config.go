package postgres

import (
	"errors"
	"time"
)

// Config describes one connection pool. The settings store and the pgvector
// searcher each open their own pool, possibly against the same database.
type Config struct {
	DSN string

	// Pool sizing. Zero values fall back to 10 max, 1 min.
	MaxConns int32
	MinConns int32

	// MaxConnLifetime recycles connections; zero means 5 minutes.
	MaxConnLifetime time.Duration

	// ApplicationName is reported to the server in pg_stat_activity.
	// Empty means "voxorder".
	ApplicationName string

	MigrateOnStart bool
}

var errNoDSN = errors.New("postgres: dsn is required")

func (c *Config) withDefaults() (Config, error) {
	out := *c
	if out.DSN == "" {
		return out, errNoDSN
	}
	if out.MaxConns <= 0 {
		out.MaxConns = 10
	}
	if out.MinConns <= 0 {
		out.MinConns = 1
	}
	if out.MinConns > out.MaxConns {
		out.MinConns = out.MaxConns
	}
	if out.MaxConnLifetime <= 0 {
		out.MaxConnLifetime = 5 * time.Minute
	}
	if out.ApplicationName == "" {
		out.ApplicationName = "voxorder"
	}
	return out, nil
}
