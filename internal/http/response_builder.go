// Package http serves the ledger as a JSON API.
//
// This file implements the builder for the result envelope every endpoint
// returns: {"success": true, "data": ...} or
// {"success": false, "error": {"kind": ..., "message": ...}}.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"carteira/internal/core"
	"carteira/internal/log"
)

// Error kinds produced by the HTTP layer itself, next to the ledger kinds.
const (
	KindBadRequest       = "bad_request"
	KindUnauthorized     = "unauthorized"
	KindRateLimited      = "rate_limited"
	KindMethodNotAllowed = "method_not_allowed"
	KindRouteNotFound    = "route_not_found"
	KindInternal         = "internal"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building API responses.
type JSONResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewJSONResponse creates a successful response with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Success: true},
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.envelope.Data = data
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Fail turns the response into an error envelope.
func (b *JSONResponseBuilder) Fail(code int, kind, message string) *JSONResponseBuilder {
	b.statusCode = code
	b.envelope = Envelope{Success: false, Error: &ErrorDetail{Kind: kind, Message: message}}
	return b
}

func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := json.Marshal(b.envelope)
	if err != nil {
		log.ForComponent(log.ComponentHTTP).Error("Failed to encode response", log.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"kind":"internal","message":"failed to encode response"}}`))
		return
	}

	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// StatusForKind maps a ledger error kind onto an HTTP status.
func StatusForKind(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConsistency:
		return http.StatusConflict
	case core.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse builds the error envelope for err. Untagged errors are not
// echoed to the caller.
func ErrorResponse(err error) *JSONResponseBuilder {
	kind := core.KindOf(err)
	if kind == "" {
		return InternalServerError()
	}
	return NewJSONResponse().Fail(StatusForKind(kind), string(kind), core.Message(err))
}

func DataResponse(data any) *JSONResponseBuilder {
	return NewJSONResponse().Data(data)
}

func CreatedResponse(data any) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Data(data)
}

// NoContentResponse still carries the envelope so clients can always parse
// the body.
func NoContentResponse() *JSONResponseBuilder {
	return NewJSONResponse()
}

func BadRequestError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Fail(http.StatusBadRequest, KindBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Header("WWW-Authenticate", `Bearer realm="carteira"`).
		Fail(http.StatusUnauthorized, KindUnauthorized, message)
}

func InternalServerError() *JSONResponseBuilder {
	return NewJSONResponse().Fail(http.StatusInternalServerError, KindInternal, "internal error")
}

func NotFoundError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Fail(http.StatusNotFound, KindRouteNotFound, message)
}

func MethodNotAllowedError() *JSONResponseBuilder {
	return NewJSONResponse().Fail(http.StatusMethodNotAllowed, KindMethodNotAllowed, "method not allowed")
}

func RateLimitedError() *JSONResponseBuilder {
	return NewJSONResponse().Fail(http.StatusTooManyRequests, KindRateLimited, "rate limit exceeded, try again later")
}

// IsClientError reports whether err is the caller's fault, which decides
// between Warn and Error logging.
func IsClientError(err error) bool {
	kind := core.KindOf(err)
	return kind == core.KindValidation || kind == core.KindNotFound || errors.Is(err, errBadRequest)
}
