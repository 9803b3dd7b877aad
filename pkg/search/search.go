// Package search defines the product search capability the searchProducts
// tool calls. Implementations live in the memory, pgvector and mcpsearch
// subpackages.
package search

import "context"

// MaxLimit is the largest result count any searcher returns.
const MaxLimit = 100

// Product is one catalog record as the model sees it in a tool result.
type Product struct {
	ID              string  `json:"id" yaml:"id"`
	Name            string  `json:"name" yaml:"name"`
	UnitsPerPackage string  `json:"units_per_package,omitempty" yaml:"units_per_package"`
	MainUnitDesc    string  `json:"main_unit_desc,omitempty" yaml:"main_unit_desc"`
	Unit2Desc       string  `json:"unit2_desc,omitempty" yaml:"unit2_desc"`
	CategoryName    string  `json:"category_name,omitempty" yaml:"category_name"`
	BrandName       string  `json:"brand_name,omitempty" yaml:"brand_name"`
	Score           float64 `json:"score,omitempty" yaml:"-"`
}

// Searcher returns up to limit products ranked by relevance to query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Product, error)
}

// Sampler returns up to n catalog products picked at random. Backends that
// cannot enumerate their catalog do not implement it.
type Sampler interface {
	Sample(ctx context.Context, n int) ([]Product, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, limit int) ([]Product, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	return f(ctx, query, limit)
}

// Dedup drops products whose ID was already seen, keeping first-seen order.
// The input slice is not modified.
func Dedup(products []Product) []Product {
	seen := make(map[string]struct{}, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ClampLimit bounds limit to [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
