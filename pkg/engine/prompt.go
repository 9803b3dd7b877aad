package engine

import (
	"encoding/json"
	"strings"

	"github.com/rhuss/voxorder/pkg/api"
)

// Placeholders recognized in a user prompt template.
const (
	placeholderQuery = "{{query}}"
	placeholderCart  = "{{cart}}"
)

// renderUserTurn builds the user message for the query. A template
// without {{query}} gets the query appended; a non-empty cart the
// template does not place is appended as a JSON block.
func renderUserTurn(tmpl, query string, cart []api.OrderLine) string {
	cartJSON := renderCart(cart)

	if tmpl == "" {
		if len(cart) == 0 {
			return query
		}
		return query + cartBlock(cartJSON)
	}

	out := strings.NewReplacer(placeholderQuery, query, placeholderCart, cartJSON).Replace(tmpl)
	if !strings.Contains(tmpl, placeholderQuery) {
		out += "\n\n" + query
	}
	if len(cart) > 0 && !strings.Contains(tmpl, placeholderCart) {
		out += cartBlock(cartJSON)
	}
	return out
}

func cartBlock(cartJSON string) string {
	return "\n\nCurrent cart:\n```json\n" + cartJSON + "\n```"
}

func renderCart(cart []api.OrderLine) string {
	if len(cart) == 0 {
		return "[]"
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return "[]"
	}
	return string(data)
}
