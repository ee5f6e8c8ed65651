package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"guardians/internal/domain"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestWriteAndRetryCounters(t *testing.T) {
	r := New()
	r.ObserveWrite(domain.ActionCreate, "", 2)
	r.ObserveWrite(domain.ActionUpdate, domain.KindTransient, 3)
	r.ObserveRetry("register")

	out := scrape(t, r)
	for _, want := range []string{
		`guardians_registry_writes_total{action="create",outcome="success"} 1`,
		`guardians_registry_writes_total{action="update",outcome="transient_network_error"} 1`,
		`guardians_registry_retries_total{operation="register"} 1`,
		`guardians_registry_write_attempts_count{action="create"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in scrape output", want)
		}
	}
}

func TestHTTPCounters(t *testing.T) {
	r := New()
	r.ObserveHTTP(http.MethodGet, "/v1/verify/:contentCid", http.StatusOK, 5*time.Millisecond)
	r.ObserveHTTP(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	out := scrape(t, r)
	if !strings.Contains(out, `guardians_http_requests_total{method="GET",route="/v1/verify/:contentCid",status="200"} 1`) {
		t.Fatalf("missing route counter")
	}
	if !strings.Contains(out, `route="unmatched",status="404"`) {
		t.Fatalf("missing unmatched counter")
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveWrite(domain.ActionCreate, "", 1)
	r.ObserveRetry("register")
	r.ObserveHTTP(http.MethodGet, "/", http.StatusOK, 0)
}
