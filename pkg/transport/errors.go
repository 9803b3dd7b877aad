package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/engine"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/tools"
)

// HTTPStatusFromError maps an APIError to its HTTP status. An explicit
// Status on the error wins over the status derived from Type.
// Transport-level errors (body too large, unsupported content type) are
// handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	if err.Status >= 400 && err.Status <= 599 {
		return err.Status
	}
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFromDomain converts any error returned by the engine, the provider
// adapters, the tool dispatcher or a search backend into an APIError.
func ErrorFromDomain(err error) *api.APIError {
	var (
		apiErr      *api.APIError
		settingsErr *engine.SettingsMissingError
		loopErr     *engine.ToolLoopExceededError
		vendorErr   *provider.VendorHTTPError
		toolErr     *tools.UnknownToolError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &settingsErr):
		return api.NewInvalidRequestError("settings", "no settings have been saved; PUT /settings first")
	case errors.As(err, &vendorErr):
		status := vendorErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		e := api.NewUpstreamError(status, vendorErr.Provider+": "+vendorErr.Message())
		return e
	case errors.Is(err, provider.ErrEmptyReply):
		return api.NewUpstreamError(http.StatusBadGateway, err.Error())
	case errors.As(err, &toolErr):
		e := api.NewServerError(err.Error())
		e.Code = "unknown_tool"
		return e
	case errors.As(err, &loopErr):
		e := api.NewServerError(err.Error())
		e.Code = "tool_loop_exceeded"
		return e
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewTimeoutError("upstream call timed out")
	case errors.Is(err, context.Canceled):
		e := api.NewServerError("request canceled")
		e.Code = "canceled"
		return e
	default:
		return api.NewServerError(err.Error())
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError maps err with ErrorFromDomain and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, ErrorFromDomain(err))
}
