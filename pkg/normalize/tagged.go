package normalize

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/rhuss/voxorder/pkg/api"
)

type tag struct {
	open  *regexp.Regexp
	close *regexp.Regexp
}

func newTag(name string) tag {
	return tag{
		open:  regexp.MustCompile(`(?i)<\s*` + name + `(?:\s[^>]*)?>`),
		close: regexp.MustCompile(`(?i)<\s*/\s*` + name + `\s*>`),
	}
}

var (
	responseTag    = newTag("response")
	orderTag       = newTag("order")
	orderStatusTag = newTag("order_status")

	productBlock = regexp.MustCompile(`(?is)<\s*product(?:\s[^>]*)?>(.*?)<\s*/\s*product\s*>`)
	productOpen  = regexp.MustCompile(`(?i)<\s*product(?:\s[^>]*)?>`)

	idFields       = []tag{newTag("id"), newTag("product_id")}
	nameFields     = []tag{newTag("name"), newTag("product_name")}
	quantityFields = []tag{newTag("quantity")}
)

// span finds the first element of t in s. open reports whether an opening
// tag exists, closed whether a closing tag follows it.
func (t tag) span(s string) (inner string, open, closed bool) {
	o := t.open.FindStringIndex(s)
	if o == nil {
		return "", false, false
	}
	rest := s[o[1]:]
	c := t.close.FindStringIndex(rest)
	if c == nil {
		return "", true, false
	}
	return rest[:c[0]], true, true
}

func hasAnyTag(s string) bool {
	return responseTag.open.MatchString(s) || orderTag.open.MatchString(s) || orderStatusTag.open.MatchString(s)
}

func parseTagged(raw string) Result {
	orderInner, orderOpen, orderClosed := orderTag.span(raw)
	if orderOpen && !orderClosed {
		res := fallback(raw, ShapeTagged)
		res.warn("unterminated order tag")
		return res
	}

	res := Result{Shape: ShapeTagged, Order: []api.OrderLine{}}

	if text, open, closed := responseTag.span(raw); closed {
		res.ResponseText = strings.TrimSpace(text)
	} else {
		res.ResponseText = raw
		if open {
			res.warn("unterminated response tag")
		}
	}

	// Without an order there is nothing for a status to describe.
	res.OrderStatus = api.OrderStatusUnknown
	if !orderOpen {
		return res
	}
	if status, _, closed := orderStatusTag.span(raw); closed {
		res.OrderStatus = normalizeStatus(status)
	}

	blocks := productBlock.FindAllStringSubmatch(orderInner, -1)
	if opened := len(productOpen.FindAllStringIndex(orderInner, -1)); opened > len(blocks) {
		res.warn("%d unterminated product tag(s)", opened-len(blocks))
	}
	for i, b := range blocks {
		line, reason := parseProduct(b[1])
		if reason != "" {
			res.warn("product %d dropped: %s", i, reason)
			continue
		}
		res.Order = append(res.Order, line)
	}
	return res
}

func parseProduct(body string) (api.OrderLine, string) {
	id := field(body, idFields)
	if id == "" {
		return api.OrderLine{}, "missing id"
	}
	qtyText := field(body, quantityFields)
	qty, err := strconv.Atoi(qtyText)
	if err != nil {
		return api.OrderLine{}, "non-numeric quantity " + strconv.Quote(qtyText)
	}
	if qty <= 0 {
		return api.OrderLine{}, "non-positive quantity " + qtyText
	}
	return api.OrderLine{
		ProductID:   id,
		ProductName: field(body, nameFields),
		Quantity:    qty,
	}, ""
}

// field returns the trimmed, unescaped text of the first alias present.
func field(body string, aliases []tag) string {
	for _, t := range aliases {
		if v, _, closed := t.span(body); closed {
			return html.UnescapeString(strings.TrimSpace(v))
		}
	}
	return ""
}
