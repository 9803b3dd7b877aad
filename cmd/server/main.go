// Command server runs the voxorder chat orchestration API.
//
// Configuration is read from a YAML file (--config, VOXORDER_CONFIG,
// ./config.yaml or /etc/voxorder/config.yaml) with environment overrides:
//
//	OPENAI_API_KEY, ANTHROPIC_API_KEY  - vendor credentials (at least one)
//	OPENAI_BASE_URL, ANTHROPIC_BASE_URL - vendor endpoints
//	VOXORDER_PORT                      - listen port (default: 8080)
//	VOXORDER_SETTINGS_TYPE             - memory, postgres or sqlite
//	VOXORDER_SEARCH_TYPE               - memory, pgvector or mcp
//	VOXORDER_DEBUG                     - debug categories, e.g. engine,providers
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/config"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/engine"
	"github.com/rhuss/voxorder/pkg/ordergen"
	"github.com/rhuss/voxorder/pkg/pricing"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/provider/anthropic"
	"github.com/rhuss/voxorder/pkg/provider/openai"
	"github.com/rhuss/voxorder/pkg/search"
	"github.com/rhuss/voxorder/pkg/search/mcpsearch"
	searchmem "github.com/rhuss/voxorder/pkg/search/memory"
	"github.com/rhuss/voxorder/pkg/search/pgvector"
	"github.com/rhuss/voxorder/pkg/settings"
	settingsmem "github.com/rhuss/voxorder/pkg/settings/memory"
	settingspg "github.com/rhuss/voxorder/pkg/settings/postgres"
	settingssqlite "github.com/rhuss/voxorder/pkg/settings/sqlite"
	pgstore "github.com/rhuss/voxorder/pkg/storage/postgres"
	"github.com/rhuss/voxorder/pkg/tools"
	"github.com/rhuss/voxorder/pkg/transport"
	transporthttp "github.com/rhuss/voxorder/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()
	if cats := debug.Categories(); len(cats) > 0 {
		logger.Info("debug categories enabled", "categories", strings.Join(cats, ","))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newSettingsStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Settings.SeedOnStart {
		seed := cfg.Settings.Defaults
		if seed == nil {
			seed = settings.Default()
		}
		seeded, err := settings.Seed(ctx, store, seed)
		if err != nil {
			return fmt.Errorf("seeding settings: %w", err)
		}
		if seeded {
			logger.Info("settings seeded", "type", cfg.Settings.Type)
		}
	}

	searcher, checks, closeSearch, err := newSearcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSearch()

	providers, err := newProviders(cfg)
	if err != nil {
		return err
	}

	dispatcher, err := tools.NewDispatcher(tools.NewSearchProducts(searcher))
	if err != nil {
		return fmt.Errorf("creating tool dispatcher: %w", err)
	}

	eng, err := engine.New(providers, store, dispatcher, newPriceTable(cfg), engine.Config{
		MaxToolRounds:      cfg.Engine.MaxToolRounds,
		StructuredOutput:   cfg.Engine.StructuredOutput,
		DefaultSearchLimit: settings.DefaultSearchLimit,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	orders := newOrderGenerator(cfg, providers, searcher, logger)

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.Addr = fmt.Sprintf(":%d", cfg.Server.Port)
	adapterCfg.MaxBodySize = cfg.Server.MaxBodySize
	adapterCfg.CORSOrigins = cfg.Server.CORSOrigins
	adapterCfg.CompareParallelism = cfg.Server.CompareParallelism
	adapterCfg.Metrics = cfg.Observability.Metrics.Enabled

	srv := transporthttp.NewServer(
		transporthttp.Deps{
			Chat:     transport.Timeout(cfg.Engine.RequestTimeout)(eng),
			Settings: store,
			Searcher: searcher,
			Orders:   orders,
			Checks:   checks,
		},
		transporthttp.WithAdapterConfig(adapterCfg),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	styles := make([]string, 0, len(providers))
	for s := range providers {
		styles = append(styles, string(s))
	}
	logger.Info("voxorder configured",
		"styles", strings.Join(styles, ","),
		"settings", cfg.Settings.Type,
		"search", cfg.Search.Type,
		"max_tool_rounds", cfg.Engine.MaxToolRounds,
	)

	return srv.Run(ctx)
}

// newOrderGenerator returns nil, leaving the route at 501, when there is no
// OpenAI provider or the search backend cannot sample its catalog.
func newOrderGenerator(cfg *config.Config, providers map[api.Style]provider.Provider, searcher search.Searcher, logger *slog.Logger) transporthttp.OrderGenerator {
	p, ok := providers[api.StyleOpenAI]
	if !ok {
		logger.Info("order generation disabled: no openai provider")
		return nil
	}
	sampler, ok := searcher.(search.Sampler)
	if !ok {
		logger.Info("order generation disabled: search backend cannot sample", "search", cfg.Search.Type)
		return nil
	}
	g, err := ordergen.New(p, sampler, ordergen.Config{
		Model:    cfg.GenerateOrder.Model,
		Language: cfg.GenerateOrder.Language,
	})
	if err != nil {
		logger.Warn("order generation disabled", "error", err)
		return nil
	}
	return g
}

func newSettingsStore(ctx context.Context, cfg *config.Config) (settings.Store, error) {
	switch cfg.Settings.Type {
	case "postgres":
		pg := cfg.Settings.Postgres
		store, err := settingspg.New(ctx, pgstore.Config{
			DSN:            pg.DSN,
			MaxConns:       pg.MaxConns,
			MigrateOnStart: pg.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres settings store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := settingssqlite.New(ctx, cfg.Settings.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite settings store: %w", err)
		}
		return store, nil
	default:
		return settingsmem.New(), nil
	}
}

// newSearcher builds the configured search capability, its readiness
// checks and a release function.
func newSearcher(ctx context.Context, cfg *config.Config) (search.Searcher, map[string]transporthttp.Checker, func(), error) {
	noop := func() {}
	switch cfg.Search.Type {
	case "pgvector":
		pv := cfg.Search.Pgvector
		key, baseURL := cfg.Embedding()
		embedder, err := search.NewOpenAIEmbedder(search.OpenAIEmbedderConfig{
			BaseURL: baseURL,
			APIKey:  key,
			Model:   pv.EmbeddingModel,
		})
		if err != nil {
			return nil, nil, noop, fmt.Errorf("creating embedder: %w", err)
		}
		s, err := pgvector.New(ctx, pgstore.Config{
			DSN:            pv.Postgres.DSN,
			MaxConns:       pv.Postgres.MaxConns,
			MigrateOnStart: pv.Postgres.MigrateOnStart,
		}, embedder)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("opening pgvector search: %w", err)
		}
		return s, map[string]transporthttp.Checker{"search": s.Ping}, s.Close, nil

	case "mcp":
		m := cfg.Search.MCP
		s, err := mcpsearch.New(ctx, mcpsearch.Config{
			URL:       m.URL,
			Transport: m.Transport,
			Tool:      m.Tool,
			Headers:   m.Headers,
		})
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connecting to MCP search: %w", err)
		}
		return s, nil, func() { _ = s.Close() }, nil

	default:
		var (
			s   *searchmem.Searcher
			err error
		)
		if cfg.Search.CatalogFile != "" {
			s, err = searchmem.Load(cfg.Search.CatalogFile)
			if err != nil {
				return nil, nil, noop, fmt.Errorf("loading catalog: %w", err)
			}
		} else {
			slog.Warn("search.catalog_file not set, product search starts empty")
			s = searchmem.New(nil)
		}
		slog.Info("catalog loaded", "products", s.Len())
		return s, nil, noop, nil
	}
}

func newProviders(cfg *config.Config) (map[api.Style]provider.Provider, error) {
	providers := make(map[api.Style]provider.Provider)

	if p := cfg.Providers.OpenAI; p.APIKey != "" {
		adapter, err := openai.New(openai.Config{
			BaseURL:     p.BaseURL,
			APIKey:      p.APIKey,
			Temperature: p.Temperature,
			Timeout:     p.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating openai provider: %w", err)
		}
		providers[api.StyleOpenAI] = adapter
	}
	if p := cfg.Providers.Anthropic; p.APIKey != "" {
		adapter, err := anthropic.New(anthropic.Config{
			BaseURL:     p.BaseURL,
			APIKey:      p.APIKey,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Timeout:     p.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating anthropic provider: %w", err)
		}
		providers[api.StyleAnthropic] = adapter
	}
	return providers, nil
}

func newPriceTable(cfg *config.Config) *pricing.Table {
	overrides := make(map[string]pricing.Rate, len(cfg.Pricing))
	for model, p := range cfg.Pricing {
		overrides[model] = pricing.PerMillion(p.InputPerMillion, p.OutputPerMillion)
	}
	return pricing.NewTable(overrides)
}
