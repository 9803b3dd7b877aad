// Package provider defines the vendor independent contract for one LLM call.
// Each adapter (openai, anthropic) builds its own wire request from a
// [Request] and reports the outcome as a [Reply], a [*VendorHTTPError] or
// [ErrEmptyReply]. Adapters never retry and never mutate the conversation
// they are given.
package provider
