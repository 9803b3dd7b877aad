// Package api defines the wire types of the voxorder HTTP surface: chat and
// compare requests, the normalized chat result, order lines, tool
// definitions and structured errors.
//
// The package performs no I/O. JSON field names are camelCase to match the
// web client.
//
// Core types:
//   - [ChatRequest]: one query against one model, with caller history
//   - [ChatResult]: normalized reply text, order lines, status, usage and cost
//   - [CompareRequest]: the same query against several models
//   - [APIError]: structured error with type, code, param, and message
package api
