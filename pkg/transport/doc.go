// Package transport defines the handler contract and middleware chain that
// sit between the HTTP adapter and the orchestration engine.
//
// # Handler Interface
//
// [ChatCompleter] is the one operation every chat route needs: turn a
// validated [api.ChatRequest] into an [api.ChatResult]. The engine
// implements it; middleware wraps it.
//
// # Middleware
//
// [Chain] composes [Middleware] values. Built-in middleware provides panic
// recovery, request ID assignment (X-Request-ID), and structured logging
// via log/slog.
//
// # Errors
//
// [ErrorFromDomain] is the single place where domain errors from the
// engine, the provider adapters and the tool dispatcher become
// [api.APIError] values with an HTTP status.
//
// # Compare
//
// [Compare] fans one query out to several models with bounded parallelism
// and collects per-model outcomes in request order.
package transport
