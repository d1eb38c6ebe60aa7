package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/services"
)

type stubSystemService struct {
	report  services.SystemHealthReport
	diag    services.Diagnostics
	err     error
	diagErr error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func (s *stubSystemService) Diagnostics(context.Context) (services.Diagnostics, error) {
	return s.diag, s.diagErr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v (%s)", err, rr.Body.String())
	}
	return body
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "1.0.0" || body["commitSha"] != "abc123" || body["environment"] != "prod" {
		t.Fatalf("unexpected build info %v", body)
	}
	if body["uptime"] != "30s" {
		t.Fatalf("expected uptime 30s, got %v", body["uptime"])
	}
}

func TestHealthHandlersReadyzSuccess(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	svc := &stubSystemService{
		report: services.SystemHealthReport{
			Status:  domain.HealthStatusOK,
			Version: "1.0.0",
			Uptime:  time.Minute,
			Checks: map[string]domain.SystemHealthCheck{
				"dictionary": {Status: domain.HealthStatusOK, Latency: 3 * time.Millisecond, CheckedAt: now},
			},
			GeneratedAt: now,
		},
	}
	handlers := NewHealthHandlers(
		WithHealthClock(func() time.Time { return now }),
		WithHealthSystemService(svc),
	)

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks map, got %T", body["checks"])
	}
	dict, ok := checks["dictionary"].(map[string]any)
	if !ok || dict["status"] != "ok" {
		t.Fatalf("expected dictionary check ok, got %v", checks["dictionary"])
	}
	if dict["latencyMs"] != float64(3) {
		t.Fatalf("expected latency 3ms, got %v", dict["latencyMs"])
	}
	if _, exists := body["details"]; exists {
		t.Fatalf("expected no details, got %v", body["details"])
	}
}

func TestHealthHandlersReadyzDegraded(t *testing.T) {
	svc := &stubSystemService{
		report: services.SystemHealthReport{
			Status: domain.HealthStatusDegraded,
			Checks: map[string]domain.SystemHealthCheck{
				"dictionary": {Status: domain.HealthStatusOK},
				"kanjiapi":   {Status: domain.HealthStatusDegraded, Error: "connection refused"},
			},
		},
	}
	handlers := NewHealthHandlers(WithHealthSystemService(svc))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "degraded" {
		t.Fatalf("expected degraded, got %v", body["status"])
	}
	details, ok := body["details"].([]any)
	if !ok || len(details) != 1 || details[0] != "kanjiapi: connection refused" {
		t.Fatalf("unexpected details %v", body["details"])
	}
}

func TestHealthHandlersReadyzServiceError(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("boom")}))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "error" {
		t.Fatalf("expected error status, got %v", body["status"])
	}
}

func TestHealthHandlersDiag(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	svc := &stubSystemService{diag: services.Diagnostics{
		HasAIKey:       true,
		AIKeyPreview:   "sk-ant-a…",
		GoVersion:      "go1.22.0",
		DictionarySize: 2136,
		CachedStrokes:  4,
		Now:            now,
	}}
	handlers := NewHealthHandlers(WithHealthSystemService(svc))

	rr := httptest.NewRecorder()
	handlers.Diag(rr, httptest.NewRequest(http.MethodGet, "/api/diag", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["ok"] != true || body["has_ai_key"] != true {
		t.Fatalf("unexpected flags %v", body)
	}
	if body["ai_key_preview"] != "sk-ant-a…" {
		t.Fatalf("unexpected preview %v", body["ai_key_preview"])
	}
	if body["now"] != "2025-03-04T05:06:07Z" {
		t.Fatalf("unexpected now %v", body["now"])
	}
	if body["dictionary_size"] != float64(2136) {
		t.Fatalf("unexpected dictionary size %v", body["dictionary_size"])
	}
}

func TestHealthHandlersDiagWithoutKey(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthSystemService(&stubSystemService{diag: services.Diagnostics{GoVersion: "go1.22.0"}}))

	rr := httptest.NewRecorder()
	handlers.Diag(rr, httptest.NewRequest(http.MethodGet, "/api/diag", nil))

	body := decodeBody(t, rr)
	if body["has_ai_key"] != false {
		t.Fatalf("expected has_ai_key false, got %v", body["has_ai_key"])
	}
	preview, exists := body["ai_key_preview"]
	if !exists || preview != nil {
		t.Fatalf("expected null preview, got %v (present=%v)", preview, exists)
	}
}
