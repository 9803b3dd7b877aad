// Command catalog-mcp serves a product catalog as an MCP "search_products"
// tool over streamable HTTP. It backs the mcp search type during local
// development and testing.
//
// Configuration:
//
//	PORT         - Listen port (default: 8081)
//	CATALOG_FILE - YAML or JSON product catalog (required)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/voxorder/pkg/search"
	searchmem "github.com/rhuss/voxorder/pkg/search/memory"
)

// SearchInput is the argument shape of the search_products tool.
type SearchInput struct {
	Text  string `json:"text" jsonschema:"free-text product description"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of products to return"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	path := os.Getenv("CATALOG_FILE")
	if path == "" {
		log.Fatal("CATALOG_FILE is required")
	}

	catalog, err := searchmem.Load(path)
	if err != nil {
		log.Fatalf("Loading catalog: %v", err)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", newHandler(catalog))
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: httpMux, ReadHeaderTimeout: 10 * time.Second}
	log.Printf("catalog MCP server starting on :%s with %d products", port, catalog.Len())
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func newHandler(searcher search.Searcher) http.Handler {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "voxorder-catalog", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_products",
		Description: "Searches the product catalog and returns matching products as a JSON array",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		products, err := searcher.Search(ctx, input.Text, limit)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, nil, nil
		}
		if products == nil {
			products = []search.Product{}
		}
		data, err := json.Marshal(products)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding products: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil, nil
	})

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
