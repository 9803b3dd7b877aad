package api

import (
	"fmt"
	"strings"

	"github.com/rhuss/voxorder/pkg/conversation"
)

// MaxSearchLimit bounds every product search, whether requested by a
// client, a model or the settings document.
const MaxSearchLimit = 100

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQueryBytes    int
	MaxMessages      int
	MaxCartLines     int
	MaxCompareModels int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQueryBytes:    8 * 1024,
		MaxMessages:      200,
		MaxCartLines:     200,
		MaxCompareModels: 8,
	}
}

// ValidateChatRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.ModelID) == "" {
		return NewInvalidRequestError("modelId", "modelId is required")
	}
	if req.Style != "" && !req.Style.Valid() {
		return NewInvalidRequestError("style", fmt.Sprintf("unknown style %q", req.Style))
	}
	return validateTurn(req.Query, req.Messages, req.CurrentCart, cfg)
}

// ValidateCompareRequest checks a CompareRequest. Targets are validated in
// order and the first failure is reported with its index.
func ValidateCompareRequest(req *CompareRequest, cfg ValidationConfig) *APIError {
	if len(req.Models) == 0 {
		return NewInvalidRequestError("models", "models must contain at least one entry")
	}
	if cfg.MaxCompareModels > 0 && len(req.Models) > cfg.MaxCompareModels {
		return NewInvalidRequestError("models",
			fmt.Sprintf("models exceeds maximum of %d", cfg.MaxCompareModels))
	}
	for i, m := range req.Models {
		if strings.TrimSpace(m.ModelID) == "" {
			return NewInvalidRequestError(fmt.Sprintf("models[%d].modelId", i), "modelId is required")
		}
		if !m.Style.Valid() {
			return NewInvalidRequestError(fmt.Sprintf("models[%d].style", i),
				fmt.Sprintf("style must be %q or %q", StyleOpenAI, StyleAnthropic))
		}
	}
	return validateTurn(req.Query, req.Messages, req.CurrentCart, cfg)
}

func validateTurn(query string, messages []conversation.Message, cart []OrderLine, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(query) == "" {
		return NewInvalidRequestError("query", "query is required")
	}
	if cfg.MaxQueryBytes > 0 && len(query) > cfg.MaxQueryBytes {
		return NewInvalidRequestError("query",
			fmt.Sprintf("query exceeds maximum of %d bytes", cfg.MaxQueryBytes))
	}
	if cfg.MaxMessages > 0 && len(messages) > cfg.MaxMessages {
		return NewInvalidRequestError("messages",
			fmt.Sprintf("messages exceeds maximum of %d", cfg.MaxMessages))
	}
	if _, err := conversation.New(messages...); err != nil {
		return NewInvalidRequestError("messages", err.Error())
	}
	if cfg.MaxCartLines > 0 && len(cart) > cfg.MaxCartLines {
		return NewInvalidRequestError("currentCart",
			fmt.Sprintf("currentCart exceeds maximum of %d lines", cfg.MaxCartLines))
	}
	for i, line := range cart {
		if line.ProductID == "" {
			return NewInvalidRequestError(fmt.Sprintf("currentCart[%d].productId", i), "productId is required")
		}
		if line.Quantity < 0 {
			return NewInvalidRequestError(fmt.Sprintf("currentCart[%d].quantity", i), "quantity must not be negative")
		}
	}
	return nil
}

// ValidateSearchLimit checks a client supplied product search limit.
func ValidateSearchLimit(limit int) *APIError {
	if limit < 1 || limit > MaxSearchLimit {
		return NewInvalidRequestError("limit",
			fmt.Sprintf("limit must be a number between 1 and %d", MaxSearchLimit))
	}
	return nil
}
