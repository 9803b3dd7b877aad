// Package mcpsearch delegates product search to a tool on a remote MCP
// server. The tool receives {"text", "limit"} and answers with a JSON array
// of products in its first text content.
package mcpsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/search"
)

// DefaultTool is the remote tool name used when none is configured.
const DefaultTool = "search_products"

// Config describes the MCP server connection.
type Config struct {
	// URL is the MCP server endpoint.
	URL string

	// Transport is "streamable-http" (default) or "sse".
	Transport string

	// Tool is the remote tool name (default: search_products).
	Tool string

	// Headers are added to every HTTP request, typically for API keys.
	Headers map[string]string
}

// Searcher calls the remote search tool over one MCP client session.
type Searcher struct {
	cfg     Config
	session *mcp.ClientSession
}

var _ search.Searcher = (*Searcher)(nil)

// New connects to the MCP server described by cfg.
func New(ctx context.Context, cfg Config) (*Searcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("mcpsearch: url is required")
	}
	transport, err := createTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(ctx, cfg, transport)
}

// NewWithTransport connects over an already built transport.
func NewWithTransport(ctx context.Context, cfg Config, transport mcp.Transport) (*Searcher, error) {
	if cfg.Tool == "" {
		cfg.Tool = DefaultTool
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "voxorder", Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %s: %w", cfg.URL, err)
	}
	return &Searcher{cfg: cfg, session: session}, nil
}

func createTransport(cfg Config) (mcp.Transport, error) {
	var httpClient *http.Client
	if len(cfg.Headers) > 0 {
		httpClient = &http.Client{Transport: &headerTransport{base: http.DefaultTransport, headers: cfg.Headers}}
	}

	switch cfg.Transport {
	case "sse":
		t := &mcp.SSEClientTransport{Endpoint: cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case "streamable-http", "":
		t := &mcp.StreamableClientTransport{Endpoint: cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	default:
		return nil, fmt.Errorf("mcpsearch: unsupported transport %q", cfg.Transport)
	}
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// Search calls the remote tool and decodes its product list.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]search.Product, error) {
	limit = search.ClampLimit(limit)
	debug.Log("search", "mcp search", "tool", s.cfg.Tool, "query", query, "limit", limit)

	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      s.cfg.Tool,
		Arguments: map[string]any{"text": query, "limit": limit},
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", s.cfg.Tool, err)
	}

	text := firstText(result)
	if result.IsError {
		return nil, fmt.Errorf("%s failed: %s", s.cfg.Tool, text)
	}
	if text == "" {
		return nil, nil
	}

	var products []search.Product
	if err := json.Unmarshal([]byte(text), &products); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", s.cfg.Tool, err)
	}
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// Close ends the MCP session.
func (s *Searcher) Close() error {
	return s.session.Close()
}

func firstText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
