package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/search"
)

// SearchProductsName is the tool name models call to look up products.
const SearchProductsName = "searchProducts"

var searchProductsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "text": {"type": "string", "description": "Product name, brand or description to look for"},
    "limit": {"type": "number", "description": "Maximum number of products to return"}
  },
  "required": ["text"]
}`)

type searchArgs struct {
	Text  string `mapstructure:"text"`
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

type searchProducts struct {
	searcher search.Searcher
}

// NewSearchProducts returns the searchProducts tool backed by searcher.
func NewSearchProducts(searcher search.Searcher) Tool {
	return &searchProducts{searcher: searcher}
}

func (s *searchProducts) Definition() api.ToolDefinition {
	return api.ToolDefinition{
		Name:        SearchProductsName,
		Description: "Search for products in the catalog",
		Parameters:  searchProductsSchema,
	}
}

// Invoke searches with the configured limit, lowered by a smaller positive
// limit from the model, and returns the deduplicated products as a JSON
// array.
func (s *searchProducts) Invoke(ctx context.Context, raw json.RawMessage, limit int) (string, error) {
	args, err := decodeSearchArgs(raw)
	if err != nil {
		return "", err
	}

	effective := limit
	if args.Limit > 0 && args.Limit < effective {
		effective = args.Limit
	}
	effective = search.ClampLimit(effective)

	products, err := s.searcher.Search(ctx, args.Text, effective)
	if err != nil {
		return "", fmt.Errorf("product search failed: %w", err)
	}

	products = search.Dedup(products)
	if len(products) > effective {
		products = products[:effective]
	}

	data, err := json.Marshal(products)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSearchArgs(raw json.RawMessage) (searchArgs, error) {
	var args searchArgs
	if len(raw) == 0 {
		return args, &ArgumentError{Tool: SearchProductsName, Reason: "text is required"}
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return args, &ArgumentError{Tool: SearchProductsName, Reason: "arguments must be a JSON object"}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &args,
	})
	if err != nil {
		return args, err
	}
	if err := dec.Decode(m); err != nil {
		var me *mapstructure.Error
		if errors.As(err, &me) && len(me.Errors) > 0 {
			return args, &ArgumentError{Tool: SearchProductsName, Reason: me.Errors[0]}
		}
		return args, &ArgumentError{Tool: SearchProductsName, Reason: err.Error()}
	}

	if strings.TrimSpace(args.Text) == "" {
		args.Text = args.Query
	}
	args.Text = strings.TrimSpace(args.Text)
	if args.Text == "" {
		return args, &ArgumentError{Tool: SearchProductsName, Reason: "text is required"}
	}
	return args, nil
}
