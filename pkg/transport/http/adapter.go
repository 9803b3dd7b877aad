package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/observability"
	"github.com/rhuss/voxorder/pkg/search"
	"github.com/rhuss/voxorder/pkg/settings"
	"github.com/rhuss/voxorder/pkg/transport"
)

// Checker reports whether a dependency is usable. Used by /readyz.
type Checker func(ctx context.Context) error

// Deps are the collaborators the adapter serves. Chat and Settings are
// required; a nil Searcher disables POST /products/search.
type Deps struct {
	Chat     transport.ChatCompleter
	Settings settings.Store
	Searcher search.Searcher

	// Orders phrases synthetic restock orders. Nil answers 501.
	Orders OrderGenerator

	// Checks are extra readiness probes keyed by name. The settings store
	// is always probed.
	Checks map[string]Checker
}

// OrderGenerator samples catalog products and phrases an order for them.
type OrderGenerator interface {
	Generate(ctx context.Context, count int) (*api.GeneratedOrder, error)
}

// Adapter serves the voice-ordering API over HTTP.
type Adapter struct {
	chat     transport.ChatCompleter
	settings settings.Store
	searcher search.Searcher
	orders   OrderGenerator
	checks   map[string]Checker
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr               string
	MaxBodySize        int64
	CORSOrigins        []string
	CompareParallelism int
	Metrics            bool
	Validation         api.ValidationConfig
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		MaxBodySize:        1 << 20, // 1 MB
		CompareParallelism: transport.DefaultCompareParallelism,
		Metrics:            true,
		Validation:         api.DefaultValidationConfig(),
	}
}

// NewAdapter creates an HTTP adapter. Middleware is applied to deps.Chat in
// the given order, so it also wraps every run of a compare request.
func NewAdapter(deps Deps, cfg Config, middlewares ...transport.Middleware) *Adapter {
	chat := deps.Chat
	if len(middlewares) > 0 {
		chat = transport.Chain(middlewares...)(chat)
	}

	a := &Adapter{
		chat:     chat,
		settings: deps.Settings,
		searcher: deps.Searcher,
		orders:   deps.Orders,
		checks:   deps.Checks,
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /chat/completion-openai-style", a.chatHandler(api.StyleOpenAI))
	a.mux.HandleFunc("POST /chat/completion-anthropic-style", a.chatHandler(api.StyleAnthropic))
	a.mux.HandleFunc("POST /chat/compare", a.handleCompare)

	a.mux.HandleFunc("GET /settings", a.handleGetSettings)
	a.mux.HandleFunc("PUT /settings/models/{modelId}", a.handlePutModelPrompts)
	a.mux.HandleFunc("PUT /settings/vector-search", a.handlePutVectorSearch)

	a.mux.HandleFunc("POST /products/search", a.handleProductSearch)
	a.mux.HandleFunc("POST /products/generate-order", a.handleGenerateOrder)

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	if cfg.Metrics {
		a.mux.Handle("GET /metrics", promhttp.Handler())
	}

	return a
}

// Handler returns the http.Handler for this adapter, including CORS,
// request ID propagation and request metrics.
func (a *Adapter) Handler() http.Handler {
	return corsMiddleware(a.config.CORSOrigins, httpRequestIDMiddleware(observability.MetricsMiddleware(a.mux)))
}

// httpRequestIDMiddleware propagates X-Request-ID into the context,
// generating one when the client sent none, and echoes it on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = api.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// corsMiddleware answers preflight requests and sets CORS headers for
// allowed origins. "*" allows any origin. No origins disables CORS.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}
	wildcard := slices.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || slices.Contains(origins, origin)) {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Adapter) chatHandler(style api.Style) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		if !a.decode(w, r, &req) {
			return
		}
		req.Style = style
		if apiErr := api.ValidateChatRequest(&req, a.config.Validation); apiErr != nil {
			transport.WriteAPIError(w, apiErr)
			return
		}

		res, err := a.chat.Complete(r.Context(), &req)
		if err != nil {
			transport.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (a *Adapter) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req api.CompareRequest
	if !a.decode(w, r, &req) {
		return
	}
	if apiErr := api.ValidateCompareRequest(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, transport.Compare(r.Context(), a.chat, &req, a.config.CompareParallelism))
}

func (a *Adapter) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := settings.CurrentOrDefault(r.Context(), a.settings)
	if err != nil {
		transport.WriteError(w, fmt.Errorf("loading settings: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *Adapter) handlePutModelPrompts(w http.ResponseWriter, r *http.Request) {
	modelID := strings.TrimSpace(r.PathValue("modelId"))
	if modelID == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("modelId", "modelId is required"))
		return
	}
	var patch settings.PromptsPatch
	if !a.decode(w, r, &patch) {
		return
	}
	if patch.Empty() {
		transport.WriteAPIError(w, api.NewInvalidRequestError("body",
			"at least one of systemPrompt, userPromptTemplate, assistantPrefill is required"))
		return
	}

	s, err := a.settings.Update(r.Context(), func(s *settings.Settings) error {
		s.PatchModel(modelID, patch)
		return nil
	})
	if err != nil {
		a.writeSettingsError(w, err)
		return
	}
	debug.Log("settings", "model prompts updated", "model", modelID)
	writeJSON(w, http.StatusOK, s)
}

func (a *Adapter) handlePutVectorSearch(w http.ResponseWriter, r *http.Request) {
	body, ok := a.readBody(w, r)
	if !ok {
		return
	}
	n, apiErr := parseNumProducts(body)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	s, err := a.settings.Update(r.Context(), func(s *settings.Settings) error {
		s.VectorSearchResultLimit = n
		return nil
	})
	if err != nil {
		a.writeSettingsError(w, err)
		return
	}
	debug.Log("settings", "vector search limit updated", "limit", n)
	writeJSON(w, http.StatusOK, s)
}

// parseNumProducts reads {"numProducts": N}, where N is an integer or a
// string holding one.
func parseNumProducts(body []byte) (int, *api.APIError) {
	if !gjson.ValidBytes(body) {
		return 0, api.NewInvalidRequestError("body", "invalid JSON")
	}
	outOfRange := api.NewInvalidRequestError("numProducts",
		fmt.Sprintf("numProducts must be between %d and %d", settings.MinSearchLimit, settings.MaxSearchLimit))

	v := gjson.GetBytes(body, "numProducts")
	var n int
	switch v.Type {
	case gjson.Number:
		if v.Num != math.Trunc(v.Num) {
			return 0, api.NewInvalidRequestError("numProducts", "numProducts must be an integer")
		}
		// Range check before the conversion; huge floats do not fit an int.
		if v.Num < settings.MinSearchLimit || v.Num > settings.MaxSearchLimit {
			return 0, outOfRange
		}
		n = int(v.Num)
	case gjson.String:
		parsed, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, api.NewInvalidRequestError("numProducts", "numProducts must be an integer")
		}
		n = parsed
	default:
		return 0, api.NewInvalidRequestError("numProducts", "numProducts is required")
	}
	if n < settings.MinSearchLimit || n > settings.MaxSearchLimit {
		return 0, outOfRange
	}
	return n, nil
}

// productSearchResponse is the body of POST /products/search.
type productSearchResponse struct {
	Query    string           `json:"query"`
	Count    int              `json:"count"`
	Products []search.Product `json:"products"`
}

func (a *Adapter) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if a.searcher == nil {
		transport.WriteErrorResponse(w,
			api.NewServerError("product search is not configured"), http.StatusNotImplemented)
		return
	}
	var req api.ProductSearchRequest
	if !a.decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("text", "text is required"))
		return
	}

	var limit int
	if req.Limit != nil {
		if apiErr := api.ValidateSearchLimit(*req.Limit); apiErr != nil {
			transport.WriteAPIError(w, apiErr)
			return
		}
		limit = *req.Limit
	} else {
		s, err := settings.CurrentOrDefault(r.Context(), a.settings)
		if err != nil {
			transport.WriteError(w, fmt.Errorf("loading settings: %w", err))
			return
		}
		limit = search.ClampLimit(s.VectorSearchResultLimit)
	}

	products, err := a.searcher.Search(r.Context(), text, limit)
	if err != nil {
		apiErr := transport.ErrorFromDomain(err)
		if apiErr.Type == api.ErrorTypeServerError && apiErr.Code == "" {
			apiErr = api.NewUpstreamError(http.StatusBadGateway, "product search failed: "+err.Error())
		}
		transport.WriteAPIError(w, apiErr)
		return
	}
	products = search.Dedup(products)
	if len(products) > limit {
		products = products[:limit]
	}
	writeJSON(w, http.StatusOK, productSearchResponse{Query: text, Count: len(products), Products: products})
}

// handleGenerateOrder accepts an empty body or {"count": n}.
func (a *Adapter) handleGenerateOrder(w http.ResponseWriter, r *http.Request) {
	if a.orders == nil {
		transport.WriteErrorResponse(w,
			api.NewServerError("order generation is not configured"), http.StatusNotImplemented)
		return
	}
	body, ok := a.readBody(w, r)
	if !ok {
		return
	}
	var req api.GenerateOrderRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
			return
		}
	}
	count := 0
	if req.Count != nil {
		if *req.Count < 1 {
			transport.WriteAPIError(w, api.NewInvalidRequestError("count",
				fmt.Sprintf("count must be between 1 and %d", api.MaxGeneratedItems)))
			return
		}
		count = *req.Count
	}

	order, err := a.orders.Generate(r.Context(), count)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failed := map[string]string{}
	if _, err := a.settings.Current(ctx); err != nil && !errors.Is(err, settings.ErrNotFound) {
		failed["settings"] = err.Error()
	}
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeSettingsError maps a failed settings update. Validation failures
// are client errors.
func (a *Adapter) writeSettingsError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if errors.Is(err, settings.ErrInvalid) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", err.Error()))
		return
	}
	transport.WriteError(w, fmt.Errorf("saving settings: %w", err))
}

// readBody checks the Content-Type and reads the size-limited body. It
// writes the error response and returns false on failure.
func (a *Adapter) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return nil, false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return nil, false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "reading body: "+err.Error()))
		return nil, false
	}
	return body, true
}

// decode reads the body into v. It writes the error response and returns
// false on failure.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := a.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// writeJSON encodes v before touching the response, so an encoding failure
// still reaches the client as a structured 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding response failed", "error", err)
		transport.WriteAPIError(w, api.NewServerError("encoding response failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
