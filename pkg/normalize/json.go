package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rhuss/voxorder/pkg/api"
)

func parseJSON(raw, body string) Result {
	if !gjson.Valid(body) {
		res := fallback(raw, ShapeJSON)
		res.warn("invalid JSON")
		return res
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		res := fallback(raw, ShapeJSON)
		res.warn("JSON payload is not an object")
		return res
	}

	res := Result{Shape: ShapeJSON, Order: []api.OrderLine{}}

	if r := doc.Get("response"); r.Type == gjson.String {
		res.ResponseText = r.String()
	} else {
		res.ResponseText = raw
		res.warn("missing response field")
	}
	res.OrderStatus = normalizeStatus(first(doc, "order_status", "orderStatus").String())

	order := doc.Get("order")
	if order.Exists() && !order.IsArray() {
		res.warn("order is not an array")
		return res
	}
	for i, item := range order.Array() {
		line, reason := jsonLine(item)
		if reason != "" {
			res.warn("line %d dropped: %s", i, reason)
			continue
		}
		res.Order = append(res.Order, line)
	}
	return res
}

func jsonLine(item gjson.Result) (api.OrderLine, string) {
	if !item.IsObject() {
		return api.OrderLine{}, "not an object"
	}
	id := strings.TrimSpace(first(item, "product_id", "productId", "id").String())
	if id == "" {
		return api.OrderLine{}, "missing product id"
	}

	var qty int
	q := item.Get("quantity")
	switch q.Type {
	case gjson.Number:
		if q.Num != math.Trunc(q.Num) {
			return api.OrderLine{}, "fractional quantity " + q.Raw
		}
		qty = int(q.Int())
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(q.Str))
		if err != nil {
			return api.OrderLine{}, "non-numeric quantity " + strconv.Quote(q.Str)
		}
		qty = n
	default:
		return api.OrderLine{}, "missing quantity"
	}
	if qty <= 0 {
		return api.OrderLine{}, "non-positive quantity " + strconv.Itoa(qty)
	}

	return api.OrderLine{
		ProductID:   id,
		ProductName: first(item, "product_name", "productName", "name").String(),
		Quantity:    qty,
	}, ""
}

func first(doc gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := doc.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

type structuredLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
}

type structured struct {
	Response    string           `json:"response"`
	Order       []structuredLine `json:"order"`
	OrderStatus string           `json:"order_status"`
}

// Structured renders r in the canonical {response, order, order_status}
// form. Normalizing the output yields the same fields.
func Structured(r Result) ([]byte, error) {
	s := structured{
		Response:    r.ResponseText,
		Order:       make([]structuredLine, 0, len(r.Order)),
		OrderStatus: r.OrderStatus,
	}
	for _, l := range r.Order {
		s.Order = append(s.Order, structuredLine(l))
	}
	return json.Marshal(s)
}

// ResponseSchema is the strict JSON schema vendors with structured output
// support are asked to follow.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"response": map[string]any{
				"type":        "string",
				"description": "Reply read back to the customer",
			},
			"order": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"product_id":   map[string]any{"type": "string"},
						"product_name": map[string]any{"type": "string"},
						"quantity":     map[string]any{"type": "integer"},
					},
					"required":             []string{"product_id", "product_name", "quantity"},
					"additionalProperties": false,
				},
			},
			"order_status": map[string]any{
				"type":        "string",
				"description": "unknown, in_progress, confirmed or cancelled",
			},
		},
		"required":             []string{"response", "order", "order_status"},
		"additionalProperties": false,
	}
}
