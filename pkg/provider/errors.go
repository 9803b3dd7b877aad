package provider

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrEmptyReply is returned when a vendor answers successfully but the
// reply holds no choice or content.
var ErrEmptyReply = errors.New("vendor returned an empty reply")

// maxErrorBody bounds how much of a vendor error body is kept.
const maxErrorBody = 4096

// VendorHTTPError is returned when a vendor answers with a non-2xx status.
type VendorHTTPError struct {
	Provider string
	Status   int
	Body     string
}

// NewVendorHTTPError truncates body to a bounded size.
func NewVendorHTTPError(provider string, status int, body string) *VendorHTTPError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &VendorHTTPError{Provider: provider, Status: status, Body: body}
}

func (e *VendorHTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Message())
}

// Message extracts error.message from the vendor body. Both vendors use that
// envelope, though SDKs sometimes hand over only the inner object. The raw body is returned when it is missing.
func (e *VendorHTTPError) Message() string {
	if gjson.Valid(e.Body) {
		for _, path := range []string{"error.message", "message"} {
			if m := gjson.Get(e.Body, path); m.Type == gjson.String && m.Str != "" {
				return m.Str
			}
		}
	}
	if e.Body == "" {
		return "no response body"
	}
	return e.Body
}

// EmptyReply wraps ErrEmptyReply with the provider name.
func EmptyReply(provider string) error {
	return fmt.Errorf("%s: %w", provider, ErrEmptyReply)
}
