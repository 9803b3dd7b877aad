// Package pricing converts token usage into a monetary cost using a static
// per-model rate table.
//
// Models missing from the table cost zero. This keeps experimental models
// usable, but their spend is not accounted. Callers that care can check
// [Table.Lookup].
package pricing

import "maps"

// Rate is the USD price of a single token.
type Rate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// PerMillion builds a Rate from the per-million-token prices vendors
// publish.
func PerMillion(input, output float64) Rate {
	return Rate{InputPerToken: input / 1e6, OutputPerToken: output / 1e6}
}

var builtin = map[string]Rate{
	"gpt-4o-2024-08-06":          PerMillion(2.5, 10),
	"gpt-4o":                     PerMillion(2.5, 10),
	"gpt-4o-mini":                PerMillion(0.15, 0.6),
	"gpt-4.1":                    PerMillion(2, 8),
	"gpt-4.1-mini":               PerMillion(0.4, 1.6),
	"claude-3-5-sonnet-20241022": PerMillion(3, 15),
	"claude-3-5-haiku-20241022":  PerMillion(0.8, 4),
	"claude-3-haiku-20240307":    PerMillion(0.25, 1.25),
	"claude-sonnet-4-5-20250929": PerMillion(3, 15),
	"claude-haiku-4-5-20251001":  PerMillion(1, 5),
}

// Table is an immutable model id to Rate mapping.
type Table struct {
	rates map[string]Rate
}

// NewTable builds a table from the built-in rows, then applies overrides.
func NewTable(overrides map[string]Rate) *Table {
	rates := maps.Clone(builtin)
	maps.Copy(rates, overrides)
	return &Table{rates: rates}
}

// Default returns a table with only the built-in rows.
func Default() *Table {
	return NewTable(nil)
}

// Lookup returns the rate for model.
func (t *Table) Lookup(model string) (Rate, bool) {
	r, ok := t.rates[model]
	return r, ok
}

// Cost returns prompt*input + completion*output for model. Negative token
// counts count as zero and unknown models cost nothing.
func (t *Table) Cost(model string, promptTokens, completionTokens int) float64 {
	r, ok := t.rates[model]
	if !ok {
		return 0
	}
	return float64(max(promptTokens, 0))*r.InputPerToken +
		float64(max(completionTokens, 0))*r.OutputPerToken
}

// Models returns the number of priced models.
func (t *Table) Models() int {
	return len(t.rates)
}
