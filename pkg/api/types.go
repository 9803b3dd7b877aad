package api

import (
	"encoding/json"

	"github.com/rhuss/voxorder/pkg/conversation"
)

// Style selects the vendor wire protocol a chat request is sent with.
type Style string

const (
	StyleOpenAI    Style = "openai"
	StyleAnthropic Style = "anthropic"
)

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	return s == StyleOpenAI || s == StyleAnthropic
}

// OrderStatusUnknown is reported when the model reply carries no status.
const OrderStatusUnknown = "unknown"

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// OrderLine is one product line of an order.
type OrderLine struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int    `json:"quantity"`
}

// ChatRequest is the body of both chat completion routes. Style is taken
// from the route, not the body.
type ChatRequest struct {
	ModelID     string                 `json:"modelId"`
	Query       string                 `json:"query"`
	Messages    []conversation.Message `json:"messages"`
	CurrentCart []OrderLine            `json:"currentCart,omitempty"`

	Style Style `json:"-"`
}

// Clone returns a deep copy of the request. Compare runs each get their own
// copy so no two runs share message slices.
func (r *ChatRequest) Clone() *ChatRequest {
	cp := *r
	if r.Messages != nil {
		c, err := conversation.New(r.Messages...)
		if err == nil {
			cp.Messages = c.Messages()
		} else {
			cp.Messages = append([]conversation.Message(nil), r.Messages...)
		}
	}
	cp.CurrentCart = append([]OrderLine(nil), r.CurrentCart...)
	return &cp
}

// ChatResult is the normalized, vendor independent result of one run.
type ChatResult struct {
	ResponseText     string                 `json:"responseText"`
	Order            []OrderLine            `json:"order"`
	OrderStatus      string                 `json:"orderStatus"`
	PromptTokens     int                    `json:"promptTokens"`
	CompletionTokens int                    `json:"completionTokens"`
	TotalTokens      int                    `json:"totalTokens"`
	Cost             float64                `json:"cost"`
	ResponseTimeMs   int64                  `json:"responseTimeMs"`
	Messages         []conversation.Message `json:"messages,omitempty"`
}

// MarshalJSON keeps order an array even when empty.
func (r ChatResult) MarshalJSON() ([]byte, error) {
	type alias ChatResult
	a := alias(r)
	if a.Order == nil {
		a.Order = []OrderLine{}
	}
	return json.Marshal(a)
}

// CompareTarget names one model in a compare request.
type CompareTarget struct {
	ModelID string `json:"modelId"`
	Style   Style  `json:"style"`
}

// CompareRequest runs the same query against several models.
type CompareRequest struct {
	Models      []CompareTarget        `json:"models"`
	Query       string                 `json:"query"`
	Messages    []conversation.Message `json:"messages"`
	CurrentCart []OrderLine            `json:"currentCart,omitempty"`
}

// ChatRequestFor builds the single-model request for one compare target.
func (r *CompareRequest) ChatRequestFor(t CompareTarget) *ChatRequest {
	req := &ChatRequest{
		ModelID:     t.ModelID,
		Query:       r.Query,
		Messages:    r.Messages,
		CurrentCart: r.CurrentCart,
		Style:       t.Style,
	}
	return req.Clone()
}

// CompareEntry is the outcome of one compare target. Exactly one of Result
// and Error is set.
type CompareEntry struct {
	ModelID string      `json:"modelId"`
	Style   Style       `json:"style"`
	Result  *ChatResult `json:"result,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// CompareResult lists entries in request order.
type CompareResult struct {
	Results []CompareEntry `json:"results"`
}

// ProductSearchRequest is the body of the direct product search route.
type ProductSearchRequest struct {
	Text  string `json:"text"`
	Limit *int   `json:"limit,omitempty"`
}

// GenerateOrderRequest is the optional body of the synthetic order route.
// Without Count a random size between 1 and MaxGeneratedItems is used.
type GenerateOrderRequest struct {
	Count *int `json:"count,omitempty"`
}

// MaxGeneratedItems bounds the product sample of a synthetic order.
const MaxGeneratedItems = 10

// GeneratedOrder is a model-phrased restock order and the product names it
// was built from.
type GeneratedOrder struct {
	Order    string   `json:"order"`
	Products []string `json:"products"`
}
