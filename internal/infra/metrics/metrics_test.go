//go:build !integration

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterTo_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterTo(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	IncSubmission("Accepted")
	ObserveSearch("ok", 42, true)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"advisor_submissions_total", "search_requests_total", "search_latency_ms"} {
		if !found[name] {
			t.Fatalf("metric %s not gathered", name)
		}
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	SetSessions(2)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "advisor_sessions 2") {
		t.Fatalf("advisor_sessions not exposed")
	}
}
