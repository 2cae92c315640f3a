package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFromContext_Default(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("FromContext() component = %q, want unknown", got)
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf})

	var seen *Logger
	handler := Middleware(logger)(
		RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
			ComponentMiddleware(ComponentGoals)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					seen = FromContext(r.Context())
					seen.InfoContext(r.Context(), "handled")
				}))))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/goals", nil))

	if seen == nil || seen.Component() != ComponentGoals {
		t.Fatalf("handler logger = %+v, want component %s", seen, ComponentGoals)
	}
	line := buf.String()
	if !strings.Contains(line, "component=goals") || !strings.Contains(line, "request_id=req-1") {
		t.Errorf("log line = %q, want component and request id", line)
	}
}

func TestStructuredLogger_ComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Component: ComponentTrace, Output: &buf}))
	r := httptest.NewRequest(http.MethodGet, "/api/v1/goals?active=false", nil)
	ctx := context.Background()

	sl.LogHTTPStart(ctx, r, "203.0.113.7")
	sl.LogHTTPEnd(ctx, r, http.StatusNotFound, 3, "203.0.113.7")
	sl.LogRejected(ctx, "Request rejected", context.Canceled, "validation", NewFields())
	sl.LogError(ctx, "Request failed", context.Canceled, "list_goals", NewFields())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("logged %d lines, want 4:\n%s", len(lines), buf.String())
	}
	for _, line := range lines {
		if n := strings.Count(line, "component="); n != 1 {
			t.Errorf("line has %d component attributes, want 1: %s", n, line)
		}
		if !strings.Contains(line, "component=trace") {
			t.Errorf("line = %q, want component=trace", line)
		}
	}
	if !strings.Contains(lines[1], "level=WARN") {
		t.Errorf("404 end line = %q, want WARN level", lines[1])
	}
}
