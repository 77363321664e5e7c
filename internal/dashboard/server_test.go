package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ratewatch/internal/metrics"
	"ratewatch/internal/poller"
)

type stubProvider struct {
	status poller.Status
}

func (s stubProvider) Status() poller.Status { return s.status }

func testServer() *Server {
	reg := metrics.NewRegistry()
	return NewServer("ratewatch", "1.0.0", "localhost:0", time.Second, reg, []StatusProvider{
		stubProvider{status: poller.Status{Site: "bitflyer", Running: true, Cycles: 3}},
		stubProvider{status: poller.Status{Site: "bitflyer_account", Running: true, Cycles: 1}},
	})
}

func TestHandleHealth(t *testing.T) {
	s := testServer()
	rec := httptest.NewRecorder()

	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	s := testServer()
	s.started = time.Now().Add(-time.Minute)
	rec := httptest.NewRecorder()

	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var payload statusPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if payload.Name != "ratewatch" || payload.Version != "1.0.0" {
		t.Fatalf("identity = %q %q", payload.Name, payload.Version)
	}
	if len(payload.Pollers) != 2 {
		t.Fatalf("pollers = %d, want 2", len(payload.Pollers))
	}
	if payload.Pollers[0].Site != "bitflyer" || payload.Pollers[0].Cycles != 3 {
		t.Fatalf("first poller = %+v", payload.Pollers[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := httptest.NewRecorder()

	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected runtime collector output")
	}
}
