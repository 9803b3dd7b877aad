// Command catalog-import embeds a YAML product catalog and stores it in the
// pgvector products table used by the pgvector search type.
//
// It reads the server configuration (--config, VOXORDER_CONFIG, ./config.yaml
// or /etc/voxorder/config.yaml), which must select search.type "pgvector".
// The catalog comes from --catalog or search.catalog_file. Products are
// upserted by id, so re-running an import refreshes names and embeddings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhuss/voxorder/pkg/config"
	"github.com/rhuss/voxorder/pkg/search"
	searchmem "github.com/rhuss/voxorder/pkg/search/memory"
	"github.com/rhuss/voxorder/pkg/search/pgvector"
	pgstore "github.com/rhuss/voxorder/pkg/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	catalogPath := flag.String("catalog", "", "YAML catalog to import (default: search.catalog_file)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := run(ctx, *configPath, *catalogPath)
	if err != nil {
		slog.Error("catalog import failed", "imported", n, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog imported", "products", n)
}

// run imports the catalog and returns the number of stored products.
func run(ctx context.Context, configPath, catalogPath string) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Search.Type != "pgvector" {
		return 0, fmt.Errorf(`search.type must be "pgvector", got %q`, cfg.Search.Type)
	}
	if catalogPath == "" {
		catalogPath = cfg.Search.CatalogFile
	}
	if catalogPath == "" {
		return 0, errors.New("no catalog: pass --catalog or set search.catalog_file")
	}

	catalog, err := searchmem.LoadCatalog(catalogPath)
	if err != nil {
		return 0, err
	}

	key, baseURL := cfg.Embedding()
	embedder, err := search.NewOpenAIEmbedder(search.OpenAIEmbedderConfig{
		BaseURL: baseURL,
		APIKey:  key,
		Model:   cfg.Search.Pgvector.EmbeddingModel,
	})
	if err != nil {
		return 0, fmt.Errorf("creating embedder: %w", err)
	}

	pv := cfg.Search.Pgvector.Postgres
	s, err := pgvector.New(ctx, pgstore.Config{
		DSN:            pv.DSN,
		MaxConns:       pv.MaxConns,
		MigrateOnStart: true,
	}, embedder)
	if err != nil {
		return 0, fmt.Errorf("opening pgvector search: %w", err)
	}
	defer s.Close()

	slog.Info("importing catalog", "file", catalogPath, "products", len(catalog.Products))
	return s.Index(ctx, catalog.Products)
}
