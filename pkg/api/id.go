package api

import (
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDPrefix = "req_"
	toolUseIDPrefix = "call_"
)

// NewRequestID returns a request identifier used when the client sends no
// X-Request-ID header.
func NewRequestID() string {
	return requestIDPrefix + compactUUID()
}

// NewToolUseID returns an identifier for a synthesized tool invocation.
func NewToolUseID() string {
	return toolUseIDPrefix + compactUUID()
}

// ValidateRequestID reports whether id looks like an identifier produced by
// NewRequestID.
func ValidateRequestID(id string) bool {
	rest, ok := strings.CutPrefix(id, requestIDPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
