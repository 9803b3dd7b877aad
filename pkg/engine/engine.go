package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/normalize"
	"github.com/rhuss/voxorder/pkg/observability"
	"github.com/rhuss/voxorder/pkg/pricing"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/settings"
	"github.com/rhuss/voxorder/pkg/tools"
)

// Engine turns chat requests into normalized order results.
type Engine struct {
	providers  map[api.Style]provider.Provider
	store      settings.Store
	dispatcher *tools.Dispatcher
	prices     *pricing.Table
	normalizer *normalize.Normalizer
	cfg        Config
}

// New creates an Engine. providers maps each supported style to its
// adapter; a style without an adapter is rejected per request. A nil
// prices table uses pricing.Default().
func New(providers map[api.Style]provider.Provider, store settings.Store, dispatcher *tools.Dispatcher, prices *pricing.Table, cfg Config) (*Engine, error) {
	if len(providers) == 0 {
		return nil, errors.New("engine: at least one provider is required")
	}
	if store == nil {
		return nil, errors.New("engine: settings store must not be nil")
	}
	if dispatcher == nil {
		return nil, errors.New("engine: dispatcher must not be nil")
	}
	if prices == nil {
		prices = pricing.Default()
	}
	return &Engine{
		providers:  providers,
		store:      store,
		dispatcher: dispatcher,
		prices:     prices,
		normalizer: normalize.New(cfg.logger()),
		cfg:        cfg,
	}, nil
}

// Complete runs one request to completion. A failed run never returns a
// partial result.
func (e *Engine) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
	start := time.Now()

	st, err := e.store.Current(ctx)
	if errors.Is(err, settings.ErrNotFound) {
		return nil, &SettingsMissingError{Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	p, ok := e.providers[req.Style]
	if !ok {
		return nil, api.NewInvalidRequestError("style", fmt.Sprintf("no provider configured for %q style", req.Style))
	}

	conv, err := conversation.New(req.Messages...)
	if err != nil {
		return nil, api.NewInvalidRequestError("messages", err.Error())
	}

	prompts := st.PromptsFor(req.ModelID)
	if err := conv.Append(conversation.TextMessage(conversation.RoleUser,
		renderUserTurn(prompts.UserPromptTemplate, req.Query, req.CurrentCart))); err != nil {
		return nil, fmt.Errorf("appending user turn: %w", err)
	}

	limit := st.VectorSearchResultLimit
	if limit <= 0 {
		limit = e.cfg.DefaultSearchLimit
	}

	base := provider.Request{
		Model:   req.ModelID,
		System:  prompts.SystemPrompt,
		Tools:   e.dispatcher.Definitions(),
		Prefill: prompts.AssistantPrefill,
	}
	if e.cfg.StructuredOutput {
		base.ResponseSchema = normalize.ResponseSchema()
	}

	l := &loop{
		provider:   p,
		dispatcher: e.dispatcher,
		conv:       conv,
		base:       base,
		maxRounds:  e.cfg.maxRounds(),
		limit:      limit,
	}
	debug.Log("engine", "run start", "provider", p.Name(), "model", req.ModelID, "history", len(req.Messages), "limit", limit)

	reply, err := l.run(ctx)
	if err != nil {
		return nil, err
	}

	norm := e.normalizer.Normalize(reply.RawContent)

	cost := e.prices.Cost(req.ModelID, l.usage.PromptTokens, l.usage.CompletionTokens)
	if _, known := e.prices.Lookup(req.ModelID); !known {
		debug.Log("engine", "no price for model, cost reported as 0", "model", req.ModelID)
	}
	observability.OrderCostTotal.WithLabelValues(req.ModelID).Add(cost)

	elapsed := time.Since(start)
	debug.Log("engine", "run done", "model", req.ModelID, "calls", l.calls, "rounds", l.rounds,
		"shape", norm.Shape, "lines", len(norm.Order), "elapsed", elapsed)

	return &api.ChatResult{
		ResponseText:     norm.ResponseText,
		Order:            norm.Order,
		OrderStatus:      norm.OrderStatus,
		PromptTokens:     l.usage.PromptTokens,
		CompletionTokens: l.usage.CompletionTokens,
		TotalTokens:      l.usage.Total(),
		Cost:             cost,
		ResponseTimeMs:   elapsed.Milliseconds(),
		Messages:         conv.Messages(),
	}, nil
}
