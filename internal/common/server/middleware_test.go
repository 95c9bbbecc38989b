package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NovaFleet/inspection-service/internal/common/logger"
	"github.com/NovaFleet/inspection-service/internal/common/metrics"
	"github.com/NovaFleet/inspection-service/internal/common/middleware"
)

func testLog(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.NewLogrusLogger("error", "text", "stdout", "")
	if err != nil {
		t.Fatalf("NewLogrusLogger: %v", err)
	}
	return log
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("a"), nil, mw("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "handler" {
		t.Fatalf("unexpected execution order: %v", order)
	}
}

func TestRecoveryHandlesPanic(t *testing.T) {
	h := Recovery(testLog(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/inspections", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", w.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	m := metrics.NewMetrics(nil)
	h := RateLimit(middleware.NewTokenBucket(1, 0), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/inspections", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/inspections", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", w.Code)
	}
}

func TestRoutePattern(t *testing.T) {
	cases := map[string]string{
		"/api/inspections":                   "/api/inspections",
		"/api/inspections/abc-123":           "/api/inspections/{id}",
		"/api/inspections/abc-123/reschedule": "/api/inspections/{id}/reschedule",
		"/api/inspections/abc-123/history":   "/api/inspections/{id}/history",
		"/healthz":                           "/healthz",
	}
	for in, want := range cases {
		if got := routePattern(in); got != want {
			t.Fatalf("routePattern(%q): expected %q, got %q", in, want, got)
		}
	}
}
