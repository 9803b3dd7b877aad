// Package config provides unified configuration for the voxorder server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (VOXORDER_ prefix plus the vendor
//     SDK variables OPENAI_* and ANTHROPIC_*)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/voxorder/pkg/settings"
)

// Config holds all configuration for the voxorder server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Settings      SettingsConfig      `yaml:"settings"`
	Search        SearchConfig        `yaml:"search"`
	GenerateOrder GenerateOrderConfig `yaml:"generate_order"`
	Pricing       map[string]Price    `yaml:"pricing"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int           `yaml:"port"`                // default: 8080
	MaxBodySize        int64         `yaml:"max_body_size"`       // default: 1 MiB
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`    // default: 30s
	CORSOrigins        []string      `yaml:"cors_origins"`        // optional
	CompareParallelism int           `yaml:"compare_parallelism"` // default: 4
}

// EngineConfig holds orchestration settings.
type EngineConfig struct {
	MaxToolRounds    int           `yaml:"max_tool_rounds"`   // default: 5
	StructuredOutput bool          `yaml:"structured_output"` // default: false
	RequestTimeout   time.Duration `yaml:"request_timeout"`   // default: 120s
}

// ProvidersConfig holds one section per vendor. A vendor without an API
// key is not registered and its chat route answers 400.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
}

// ProviderConfig holds the settings of one vendor adapter.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"` // anthropic only, default: 1024
	Timeout     time.Duration `yaml:"timeout"`    // default: 60s
}

// SettingsConfig selects and configures the settings store.
type SettingsConfig struct {
	Type        string             `yaml:"type"` // "memory", "postgres" or "sqlite", default: "memory"
	Postgres    PostgresConfig     `yaml:"postgres"`
	SQLite      SQLiteConfig       `yaml:"sqlite"`
	SeedOnStart bool               `yaml:"seed_on_start"` // default: true
	Defaults    *settings.Settings `yaml:"defaults"`      // seed; nil uses settings.Default()
}

// SQLiteConfig holds the sqlite settings store location.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "voxorder.db"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// SearchConfig selects and configures the product search capability.
type SearchConfig struct {
	Type        string          `yaml:"type"`         // "memory", "pgvector" or "mcp", default: "memory"
	CatalogFile string          `yaml:"catalog_file"` // memory search catalog
	Pgvector    PgvectorConfig  `yaml:"pgvector"`
	MCP         MCPSearchConfig `yaml:"mcp"`
}

// PgvectorConfig holds the vector search database and embedding settings.
type PgvectorConfig struct {
	Postgres       PostgresConfig `yaml:"postgres"`
	EmbeddingModel string         `yaml:"embedding_model"` // default: text-embedding-3-large
	// Embedding calls use providers.openai credentials unless these are set.
	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	EmbeddingAPIKey  string `yaml:"embedding_api_key"`
}

// MCPSearchConfig describes the MCP server that serves product search.
type MCPSearchConfig struct {
	URL       string            `yaml:"url"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	Tool      string            `yaml:"tool"`      // default: search_products
	Headers   map[string]string `yaml:"headers"`
}

// GenerateOrderConfig configures POST /products/generate-order. The route
// uses the OpenAI provider and needs a memory or pgvector catalog.
type GenerateOrderConfig struct {
	Model    string `yaml:"model"`    // default: gpt-4o-2024-08-06
	Language string `yaml:"language"` // default: Greek
}

// Price overrides or adds one row of the pricing table, in USD per
// million tokens.
type Price struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error; default: info
	Format string `yaml:"format"` // text or json; default: text
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:               8080,
			MaxBodySize:        1 << 20,
			ShutdownTimeout:    30 * time.Second,
			CompareParallelism: 4,
		},
		Engine: EngineConfig{
			MaxToolRounds:  5,
			RequestTimeout: 120 * time.Second,
		},
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{Timeout: 60 * time.Second},
			Anthropic: ProviderConfig{Timeout: 60 * time.Second, MaxTokens: 1024},
		},
		Settings: SettingsConfig{
			Type:        "memory",
			SeedOnStart: true,
			Postgres:    PostgresConfig{MaxConns: 10, MigrateOnStart: true},
			SQLite:      SQLiteConfig{Path: "voxorder.db"},
		},
		Search: SearchConfig{
			Type: "memory",
			Pgvector: PgvectorConfig{
				Postgres:       PostgresConfig{MaxConns: 10, MigrateOnStart: true},
				EmbeddingModel: "text-embedding-3-large",
			},
			MCP: MCPSearchConfig{Transport: "streamable-http", Tool: "search_products"},
		},
		GenerateOrder: GenerateOrderConfig{
			Model:    "gpt-4o-2024-08-06",
			Language: "Greek",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

// Embedding returns the key and base URL for embedding calls, falling back
// to the OpenAI provider credentials.
func (c *Config) Embedding() (apiKey, baseURL string) {
	apiKey, baseURL = c.Search.Pgvector.EmbeddingAPIKey, c.Search.Pgvector.EmbeddingBaseURL
	if apiKey == "" {
		apiKey = c.Providers.OpenAI.APIKey
	}
	if baseURL == "" {
		baseURL = c.Providers.OpenAI.BaseURL
	}
	return apiKey, baseURL
}
