package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/voxorder/pkg/settings"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, VOXORDER_CONFIG env, ./config.yaml, /etc/voxorder/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	fillSeedDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// fillSeedDefaults gives a partial settings.defaults block the default
// search limit so a file that only sets prompts is valid.
func fillSeedDefaults(cfg *Config) {
	if seed := cfg.Settings.Defaults; seed != nil && seed.VectorSearchResultLimit == 0 {
		seed.VectorSearchResultLimit = settings.DefaultSearchLimit
	}
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. VOXORDER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/voxorder/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("VOXORDER_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/voxorder/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Unlike
// string variables, a malformed number is an error rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"VOXORDER_LOG_LEVEL":       &cfg.Logging.Level,
		"VOXORDER_LOG_FORMAT":      &cfg.Logging.Format,
		"VOXORDER_DEBUG":           &cfg.Logging.Debug,
		"OPENAI_API_KEY":           &cfg.Providers.OpenAI.APIKey,
		"OPENAI_BASE_URL":          &cfg.Providers.OpenAI.BaseURL,
		"ANTHROPIC_API_KEY":        &cfg.Providers.Anthropic.APIKey,
		"ANTHROPIC_BASE_URL":       &cfg.Providers.Anthropic.BaseURL,
		"VOXORDER_SETTINGS_TYPE":   &cfg.Settings.Type,
		"VOXORDER_SETTINGS_DSN":    &cfg.Settings.Postgres.DSN,
		"VOXORDER_SETTINGS_PATH":   &cfg.Settings.SQLite.Path,
		"VOXORDER_SEARCH_TYPE":     &cfg.Search.Type,
		"VOXORDER_SEARCH_DSN":      &cfg.Search.Pgvector.Postgres.DSN,
		"VOXORDER_CATALOG_FILE":    &cfg.Search.CatalogFile,
		"VOXORDER_MCP_URL":         &cfg.Search.MCP.URL,
		"VOXORDER_EMBEDDING_MODEL": &cfg.Search.Pgvector.EmbeddingModel,
	}
	for name, field := range str {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"VOXORDER_PORT":            &cfg.Server.Port,
		"VOXORDER_MAX_TOOL_ROUNDS": &cfg.Engine.MaxToolRounds,
	}
	for name, field := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", name, v)
		}
		*field = n
	}

	if v := os.Getenv("VOXORDER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	// VOXORDER_MCP_HEADERS: JSON object of extra MCP request headers.
	if v := os.Getenv("VOXORDER_MCP_HEADERS"); v != "" {
		headers, err := parseHeadersJSON(v)
		if err != nil {
			return err
		}
		cfg.Search.MCP.Headers = headers
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeadersJSON parses a JSON object of header names to values.
func parseHeadersJSON(jsonStr string) (map[string]string, error) {
	var headers map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &headers); err != nil {
		return nil, fmt.Errorf("parsing MCP headers JSON: %w", err)
	}
	return headers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"providers.openai.api_key_file", cfg.Providers.OpenAI.APIKeyFile, &cfg.Providers.OpenAI.APIKey},
		{"providers.anthropic.api_key_file", cfg.Providers.Anthropic.APIKeyFile, &cfg.Providers.Anthropic.APIKey},
		{"settings.postgres.dsn_file", cfg.Settings.Postgres.DSNFile, &cfg.Settings.Postgres.DSN},
		{"search.pgvector.postgres.dsn_file", cfg.Search.Pgvector.Postgres.DSNFile, &cfg.Search.Pgvector.Postgres.DSN},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
