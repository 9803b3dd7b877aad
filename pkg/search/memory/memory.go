// Package memory provides an in-process product searcher over a catalog
// held in memory, typically loaded from a YAML file. It ranks by token
// overlap and is meant for development, tests and small deployments.
package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/search"
)

// Catalog is the on-disk catalog layout.
type Catalog struct {
	Products []search.Product `yaml:"products"`
}

// Searcher ranks catalog products against the query. It is immutable after
// construction and safe for concurrent use.
type Searcher struct {
	products []indexed
}

type indexed struct {
	product search.Product
	name    map[string]struct{}
	extra   map[string]struct{}
}

var (
	_ search.Searcher = (*Searcher)(nil)
	_ search.Sampler  = (*Searcher)(nil)
)

// New indexes products. The slice is copied.
func New(products []search.Product) *Searcher {
	s := &Searcher{products: make([]indexed, 0, len(products))}
	for _, p := range products {
		s.products = append(s.products, indexed{
			product: p,
			name:    tokenSet(p.Name),
			extra:   tokenSet(p.BrandName + " " + p.CategoryName + " " + p.MainUnitDesc),
		})
	}
	return s
}

// Load reads a YAML catalog file.
func Load(path string) (*Searcher, error) {
	c, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return New(c.Products), nil
}

// Parse decodes a YAML catalog. Every product needs an id and a name.
func Parse(data []byte) (*Searcher, error) {
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	return New(c.Products), nil
}

// LoadCatalog reads and validates a YAML catalog file without indexing it.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	for i, p := range c.Products {
		if p.ID == "" || p.Name == "" {
			return Catalog{}, fmt.Errorf("catalog products[%d]: id and name are required", i)
		}
	}
	return c, nil
}

// Len returns the number of catalog products.
func (s *Searcher) Len() int { return len(s.products) }

// Search scores every product by the number of query tokens found in its
// name (weight 2) and in its brand, category and unit (weight 1). Products
// with no match are left out; ties keep catalog order.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]search.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = search.ClampLimit(limit)
	terms := tokens(query)

	type hit struct {
		product search.Product
		score   int
	}
	var hits []hit
	for _, ix := range s.products {
		score := 0
		for _, term := range terms {
			if _, ok := ix.name[term]; ok {
				score += 2
			} else if _, ok := ix.extra[term]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{product: ix.product, score: score})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int { return b.score - a.score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]search.Product, len(hits))
	for i, h := range hits {
		out[i] = h.product
		out[i].Score = float64(h.score) / float64(2*len(terms))
	}
	debug.Log("search", "memory search", "query", query, "limit", limit, "hits", len(out))
	return out, nil
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

// Sample returns up to n distinct products in random order.
func (s *Searcher) Sample(ctx context.Context, n int) ([]search.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n = min(max(n, 0), len(s.products))
	out := make([]search.Product, 0, n)
	for _, i := range rand.Perm(len(s.products))[:n] {
		out = append(out, s.products[i].product)
	}
	return out, nil
}
