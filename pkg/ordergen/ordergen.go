// Package ordergen phrases synthetic restock orders. It samples catalog
// products and asks a model to word an order for them the way a store
// employee would say it, which gives test utterances for voice datasets.
package ordergen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/search"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gpt-4o-2024-08-06"
	// DefaultLanguage is used when Config.Language is empty.
	DefaultLanguage = "Greek"
)

const systemPrompt = `You are a helpful assistant that generates orders based on a list of products.
You have the role of an employee that works in a sales point and you are
making an order to restock the store.`

// Greek examples match the catalog the generator was first used with.
const userPrompt = `Generate the order for the following products in %s: %s
Use the bare minimum information of the product name to formulate the order.

Examples:
3 τεμάχια IQOS BAGS LARGE και 4 κούτερ MALBORO RED ΣΚΛΗΡΟ.
Πέντε HEETS RUSSET, τρία HEETS AMBER και 10 ASSOS SLIM ΧΡΥΣΟ

Respond only with the order, no other text or comments.`

// Config configures a Generator.
type Config struct {
	Model    string
	Language string
}

// Generator samples products and asks a provider to phrase an order.
type Generator struct {
	provider provider.Provider
	sampler  search.Sampler
	model    string
	language string
}

// New creates a Generator.
func New(p provider.Provider, sampler search.Sampler, cfg Config) (*Generator, error) {
	if p == nil {
		return nil, errors.New("ordergen: provider is required")
	}
	if sampler == nil {
		return nil, errors.New("ordergen: sampler is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Generator{provider: p, sampler: sampler, model: cfg.Model, language: cfg.Language}, nil
}

// Generate samples count products, or a random 1..MaxGeneratedItems when
// count is 0, and makes one provider call to phrase the order.
func (g *Generator) Generate(ctx context.Context, count int) (*api.GeneratedOrder, error) {
	if count < 0 || count > api.MaxGeneratedItems {
		return nil, api.NewInvalidRequestError("count",
			fmt.Sprintf("count must be between 1 and %d", api.MaxGeneratedItems))
	}
	if count == 0 {
		count = rand.IntN(api.MaxGeneratedItems) + 1
	}

	products, err := g.sampler.Sample(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("sampling products: %w", err)
	}
	if len(products) == 0 {
		return nil, api.NewNotFoundError("no products found in catalog")
	}
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}

	reply, err := g.provider.Send(ctx, &provider.Request{
		Model:  g.model,
		System: systemPrompt,
		Messages: []conversation.Message{
			conversation.TextMessage(conversation.RoleUser,
				fmt.Sprintf(userPrompt, g.language, strings.Join(names, ", "))),
		},
	})
	if err != nil {
		return nil, err
	}
	order := strings.TrimSpace(reply.RawContent)
	if order == "" {
		return nil, provider.ErrEmptyReply
	}

	debug.Log("engine", "synthetic order generated", "provider", g.provider.Name(), "products", len(names))
	return &api.GeneratedOrder{Order: order, Products: names}, nil
}
