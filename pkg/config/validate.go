package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All failures are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}
	if c.Engine.MaxToolRounds < 1 {
		errs = append(errs, fmt.Errorf("engine.max_tool_rounds must be >= 1, got %d", c.Engine.MaxToolRounds))
	}

	if c.Providers.OpenAI.APIKey == "" && c.Providers.Anthropic.APIKey == "" {
		errs = append(errs, errors.New("at least one of providers.openai.api_key or providers.anthropic.api_key is required"))
	}
	for name, p := range map[string]ProviderConfig{"openai": c.Providers.OpenAI, "anthropic": c.Providers.Anthropic} {
		if p.BaseURL != "" {
			if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, fmt.Errorf("providers.%s.base_url must be an absolute URL, got %q", name, p.BaseURL))
			}
		}
	}

	switch c.Settings.Type {
	case "memory":
	case "postgres":
		if c.Settings.Postgres.DSN == "" && c.Settings.Postgres.DSNFile == "" {
			errs = append(errs, errors.New(`settings.postgres.dsn or settings.postgres.dsn_file is required when settings.type is "postgres"`))
		}
	case "sqlite":
		if c.Settings.SQLite.Path == "" {
			errs = append(errs, errors.New(`settings.sqlite.path is required when settings.type is "sqlite"`))
		}
	default:
		errs = append(errs, fmt.Errorf(`settings.type must be "memory", "postgres" or "sqlite", got %q`, c.Settings.Type))
	}
	if c.Settings.Defaults != nil {
		if err := c.Settings.Defaults.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("settings.defaults: %w", err))
		}
	}

	switch c.Search.Type {
	case "memory":
	case "pgvector":
		if c.Search.Pgvector.Postgres.DSN == "" && c.Search.Pgvector.Postgres.DSNFile == "" {
			errs = append(errs, errors.New(`search.pgvector.postgres.dsn is required when search.type is "pgvector"`))
		}
		if c.Search.Pgvector.EmbeddingAPIKey == "" && c.Providers.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("search.pgvector needs an embedding key: set search.pgvector.embedding_api_key or providers.openai.api_key"))
		}
	case "mcp":
		if c.Search.MCP.URL == "" {
			errs = append(errs, errors.New(`search.mcp.url is required when search.type is "mcp"`))
		}
		switch c.Search.MCP.Transport {
		case "", "sse", "streamable-http":
		default:
			errs = append(errs, fmt.Errorf(`search.mcp.transport must be "sse" or "streamable-http", got %q`, c.Search.MCP.Transport))
		}
	default:
		errs = append(errs, fmt.Errorf(`search.type must be "memory", "pgvector" or "mcp", got %q`, c.Search.Type))
	}

	for model, p := range c.Pricing {
		if p.InputPerMillion < 0 || p.OutputPerMillion < 0 {
			errs = append(errs, fmt.Errorf("pricing.%s: prices must not be negative", model))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf(`logging.format must be "text" or "json", got %q`, c.Logging.Format))
	}

	return errors.Join(errs...)
}
