package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"carteira/internal/core"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, w.Body.String())
	}
	return env
}

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "yes").
		Data(map[string]string{"id": "w1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Test") != "yes" {
		t.Error("custom header not set")
	}

	env := decodeEnvelope(t, w)
	if !env.Success || env.Error != nil {
		t.Errorf("envelope = %+v, want success", env)
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["id"] != "w1" {
		t.Errorf("Data = %v, want id w1", env.Data)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantKind    string
		wantMessage string
	}{
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity, "validation", "invalid amount"},
		{"wrapped not found", fmt.Errorf("lookup: %w", core.ErrGoalNotFound), http.StatusNotFound, "not_found", "goal not found"},
		{"consistency", core.Consistency("apply", errors.New("constraint")), http.StatusConflict, "consistency", "atomic update failed"},
		{"unavailable", core.Unavailable("list", errors.New("dial tcp")), http.StatusServiceUnavailable, "store_unavailable", "store unavailable"},
		{"untagged is not echoed", errors.New("secret internals"), http.StatusInternalServerError, KindInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorResponse(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, w)
			if env.Success {
				t.Error("Success = true, want false")
			}
			if env.Error == nil {
				t.Fatal("Error detail missing")
			}
			if env.Error.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", env.Error.Kind, tt.wantKind)
			}
			if env.Error.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", env.Error.Message, tt.wantMessage)
			}
		})
	}
}

func TestConvenienceResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantOK     bool
	}{
		{"data", DataResponse([]int{1}), http.StatusOK, true},
		{"created", CreatedResponse(nil), http.StatusCreated, true},
		{"no content", NoContentResponse(), http.StatusOK, true},
		{"bad request", BadRequestError("bad"), http.StatusBadRequest, false},
		{"unauthorized", UnauthorizedError("no token"), http.StatusUnauthorized, false},
		{"not found", NotFoundError("nope"), http.StatusNotFound, false},
		{"method", MethodNotAllowedError(), http.StatusMethodNotAllowed, false},
		{"rate limited", RateLimitedError(), http.StatusTooManyRequests, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.builder.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.builder.StatusCode(), tt.wantStatus)
			}
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if env := decodeEnvelope(t, w); env.Success != tt.wantOK {
				t.Errorf("Success = %v, want %v", env.Success, tt.wantOK)
			}
		})
	}
}

func TestUnauthorizedError_ChallengeHeader(t *testing.T) {
	w := httptest.NewRecorder()
	UnauthorizedError("missing bearer token").Write(w)
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header not set")
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(core.ErrTxNotFound) {
		t.Error("not found should be a client error")
	}
	if !IsClientError(fmt.Errorf("%w: empty body", errBadRequest)) {
		t.Error("bad request should be a client error")
	}
	if IsClientError(core.Unavailable("op", errors.New("down"))) {
		t.Error("store unavailable should not be a client error")
	}
}
