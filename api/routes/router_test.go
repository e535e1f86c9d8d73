package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	syncsvc "github.com/avollmer/propsync-backend/internal/sync"
	"github.com/avollmer/propsync-backend/pkg/config"
	"github.com/avollmer/propsync-backend/pkg/logger"
	"github.com/avollmer/propsync-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSyncService struct {
	result syncsvc.Result
	err    error
}

func (s stubSyncService) Sync(context.Context, syncsvc.Event) (syncsvc.Result, error) {
	return s.result, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "test", Port: "0"},
		Webhook: config.WebhookConfig{SigningSecret: "secret"},
	}
}

func newTestRouter(cfg *config.Config, dbP, redisP stubPinger, registry *prometheus.Registry) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, dbP, redisP, registry, stubSyncService{})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	if got := resp.Header().Get("X-PropSync-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestHealthReadyChecksBackends(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when backends answer got %d", resp.Code)
	}

	router = newTestRouter(testConfig(), stubPinger{err: errors.New("connection refused")}, stubPinger{}, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when db is down got %d", resp.Code)
	}

	router = newTestRouter(testConfig(), stubPinger{}, stubPinger{err: errors.New("connection refused")}, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when redis is down got %d", resp.Code)
	}
}

func TestMetricsEndpointExposesSyncSeries(t *testing.T) {
	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)
	syncMetrics.ObserveAttempt("signed", "succeeded", 50*time.Millisecond)

	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{}, registry)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
	if body := resp.Body.String(); !strings.Contains(body, "sync_attempts_total") {
		t.Fatalf("expected sync series in scrape, got:\n%s", body)
	}
}

func TestMetricsEndpointAbsentWithoutRegistry(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{}, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a registry got %d", resp.Code)
	}
}

func TestWebhookRouteRequiresSignature(t *testing.T) {
	router := newTestRouter(testConfig(), stubPinger{}, stubPinger{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/proposals", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned webhook got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Request-Id"); got == "" {
		t.Fatal("expected request id header from middleware chain")
	}
}
