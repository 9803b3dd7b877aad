package pgvector

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/voxorder/pkg/search"
	"github.com/rhuss/voxorder/pkg/storage/postgres"
	"github.com/rhuss/voxorder/pkg/storage/postgres/pgtest"
)

// fixedEmbedder maps known queries to vectors.
type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := f[text]
	if !ok {
		return nil, errors.New("no embedding for " + text)
	}
	return v, nil
}

func setupSearcher(t *testing.T, emb search.Embedder) *Searcher {
	t.Helper()
	dsn := pgtest.Start(t, pgtest.ImagePgvector)

	s, err := New(context.Background(), postgres.Config{DSN: dsn, MigrateOnStart: true}, emb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSearchOrdersByCosineDistance(t *testing.T) {
	emb := fixedEmbedder{"soap": {1, 0, 0}}
	s := setupSearcher(t, emb)
	ctx := context.Background()

	seed := []struct {
		p         search.Product
		published bool
		vec       []float32
	}{
		{search.Product{ID: "1", Name: "Hand Soap", BrandName: "Acme"}, true, []float32{0.9, 0.1, 0}},
		{search.Product{ID: "2", Name: "Sponge"}, true, []float32{0, 1, 0}},
		{search.Product{ID: "3", Name: "Bar Soap"}, true, []float32{1, 0, 0}},
		{search.Product{ID: "4", Name: "Old Soap"}, false, []float32{1, 0, 0}},
	}
	for _, row := range seed {
		if err := s.Upsert(ctx, row.p, row.published, row.vec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	got, err := s.Search(ctx, "soap", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products, want 2", len(got))
	}
	if got[0].ID != "3" || got[1].ID != "1" {
		t.Errorf("order = [%s %s], want [3 1]", got[0].ID, got[1].ID)
	}
	if got[1].BrandName != "Acme" {
		t.Errorf("brand not scanned: %+v", got[1])
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %v %v", got[0].Score, got[1].Score)
	}
}

func TestSearchEmbeddingFailure(t *testing.T) {
	s := setupSearcher(t, fixedEmbedder{})
	if _, err := s.Search(context.Background(), "unknown", 5); err == nil {
		t.Fatal("expected embedding error")
	}
}

func TestIndexEmbedsAndStoresProducts(t *testing.T) {
	emb := fixedEmbedder{
		"Hand Soap Acme Cleaning": {1, 0, 0},
		"Sponge":                  {0, 1, 0},
		"soap":                    {1, 0, 0},
	}
	s := setupSearcher(t, emb)
	ctx := context.Background()

	n, err := s.Index(ctx, []search.Product{
		{ID: "1", Name: "Hand Soap", BrandName: "Acme", CategoryName: "Cleaning"},
		{ID: "2", Name: "Sponge"},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed %d, want 2", n)
	}

	got, err := s.Search(ctx, "soap", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("Search = %+v, want product 1", got)
	}

	n, err = s.Index(ctx, []search.Product{{ID: "3", Name: "Unknown"}})
	if err == nil {
		t.Fatal("expected embedding error")
	}
	if n != 0 {
		t.Errorf("indexed %d before failure, want 0", n)
	}
}

func TestSampleSkipsUnpublished(t *testing.T) {
	s := setupSearcher(t, fixedEmbedder{})
	ctx := context.Background()

	for i, published := range []bool{true, true, false} {
		p := search.Product{ID: string(rune('a' + i)), Name: "Product"}
		if err := s.Upsert(ctx, p, published, []float32{1, 0}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	got, err := s.Sample(ctx, 10)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products, want 2", len(got))
	}
	for _, p := range got {
		if p.ID == "c" {
			t.Errorf("unpublished product sampled: %+v", p)
		}
	}

	if got, _ := s.Sample(ctx, 1); len(got) != 1 {
		t.Errorf("Sample(1) = %d products", len(got))
	}
}

func TestEmbeddingText(t *testing.T) {
	tests := []struct {
		p    search.Product
		want string
	}{
		{search.Product{Name: "Sponge"}, "Sponge"},
		{search.Product{Name: "Hand Soap", BrandName: "Acme", MainUnitDesc: "bottle"}, "Hand Soap Acme bottle"},
		{search.Product{Name: "Gloves", CategoryName: "Safety"}, "Gloves Safety"},
	}
	for _, tt := range tests {
		if got := EmbeddingText(tt.p); got != tt.want {
			t.Errorf("EmbeddingText(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestNewRequiresEmbedder(t *testing.T) {
	if _, err := New(context.Background(), postgres.Config{DSN: "postgres://x"}, nil); err == nil {
		t.Fatal("expected error without embedder")
	}
}
