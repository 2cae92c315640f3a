package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carteira/internal/core"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, OutcomeOK},
		{"validation", core.ErrInvalidAmount, "validation"},
		{"not found", core.ErrGoalNotFound, "not_found"},
		{"untagged", errors.New("boom"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordOperation(t *testing.T) {
	m := New()
	m.RecordOperation("apply_transaction", nil)
	m.RecordOperation("apply_transaction", nil)
	m.RecordOperation("apply_transaction", core.ErrWalletNotFound)

	if got := testutil.ToFloat64(m.LedgerOperations.WithLabelValues("apply_transaction", OutcomeOK)); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LedgerOperations.WithLabelValues("apply_transaction", "not_found")); got != 1 {
		t.Errorf("not_found count = %v, want 1", got)
	}
}

func TestObserveRequestAndHandler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/v1/goals", 200, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `carteira_http_requests_total{method="GET",route="/api/v1/goals",status="200"} 1`) {
		t.Errorf("exposition missing request counter:\n%s", rec.Body.String())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
	m.RecordOperation("x", nil)
	m.RecordEvent("transactions", nil)
}
