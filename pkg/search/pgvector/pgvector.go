// Package pgvector searches products stored in PostgreSQL by cosine
// distance between the query embedding and each product's embedding,
// using the pgvector extension.
package pgvector

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/search"
	"github.com/rhuss/voxorder/pkg/storage/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const searchSQL = `
SELECT id, name, units_per_package, main_unit_desc, unit2_desc, category_name, brand_name,
       1 - (embedding <=> $1::text::vector) AS score
FROM products
WHERE published AND embedding IS NOT NULL
ORDER BY embedding <=> $1::text::vector
LIMIT $2`

const sampleSQL = `
SELECT id, name, units_per_package, main_unit_desc, unit2_desc, category_name, brand_name
FROM products
WHERE published
ORDER BY random()
LIMIT $1`

const upsertSQL = `
INSERT INTO products (id, name, units_per_package, main_unit_desc, unit2_desc, category_name, brand_name, published, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text::vector)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    units_per_package = EXCLUDED.units_per_package,
    main_unit_desc = EXCLUDED.main_unit_desc,
    unit2_desc = EXCLUDED.unit2_desc,
    category_name = EXCLUDED.category_name,
    brand_name = EXCLUDED.brand_name,
    published = EXCLUDED.published,
    embedding = EXCLUDED.embedding`

// Searcher runs vector similarity queries against the products table.
type Searcher struct {
	pool     *pgxpool.Pool
	embedder search.Embedder
}

var (
	_ search.Searcher = (*Searcher)(nil)
	_ search.Sampler  = (*Searcher)(nil)
)

// New opens a pool for cfg and returns a searcher that embeds queries
// with embedder.
func New(ctx context.Context, cfg postgres.Config, embedder search.Embedder) (*Searcher, error) {
	if embedder == nil {
		return nil, errors.New("pgvector: embedder is required")
	}
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	pool, err := postgres.Open(ctx, cfg, sub)
	if err != nil {
		return nil, err
	}
	return &Searcher{pool: pool, embedder: embedder}, nil
}

// Search embeds query and returns the nearest published products.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]search.Product, error) {
	limit = search.ClampLimit(limit)

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, searchSQL, pgv.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var out []search.Product
	for rows.Next() {
		var p search.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitsPerPackage, &p.MainUnitDesc,
			&p.Unit2Desc, &p.CategoryName, &p.BrandName, &p.Score); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	debug.Log("search", "pgvector search", "query", query, "limit", limit, "hits", len(out))
	return out, nil
}

// Sample returns up to n published products in random order.
func (s *Searcher) Sample(ctx context.Context, n int) ([]search.Product, error) {
	rows, err := s.pool.Query(ctx, sampleSQL, max(n, 0))
	if err != nil {
		return nil, fmt.Errorf("sampling products: %w", err)
	}
	defer rows.Close()

	var out []search.Product
	for rows.Next() {
		var p search.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitsPerPackage, &p.MainUnitDesc,
			&p.Unit2Desc, &p.CategoryName, &p.BrandName); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a product and its embedding.
func (s *Searcher) Upsert(ctx context.Context, p search.Product, published bool, embedding []float32) error {
	_, err := s.pool.Exec(ctx, upsertSQL,
		p.ID, p.Name, p.UnitsPerPackage, p.MainUnitDesc, p.Unit2Desc,
		p.CategoryName, p.BrandName, published, pgv.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", p.ID, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Searcher) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Searcher) Close() {
	s.pool.Close()
}

// Index embeds each product and upserts it as published. It stops at the
// first failure and reports how many products were stored before it.
func (s *Searcher) Index(ctx context.Context, products []search.Product) (int, error) {
	for i, p := range products {
		vec, err := s.embedder.Embed(ctx, EmbeddingText(p))
		if err != nil {
			return i, fmt.Errorf("embedding product %s: %w", p.ID, err)
		}
		if err := s.Upsert(ctx, p, true, vec); err != nil {
			return i, err
		}
		debug.Log("search", "indexed product", "id", p.ID)
	}
	return len(products), nil
}

// EmbeddingText is the text a product is embedded from: its name followed
// by brand, category and unit when present.
func EmbeddingText(p search.Product) string {
	parts := []string{p.Name}
	for _, s := range []string{p.BrandName, p.CategoryName, p.MainUnitDesc} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
