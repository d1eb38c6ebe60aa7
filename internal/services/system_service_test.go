package services

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/strokes"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"strokes_dictionary": {Status: domain.HealthStatusOK},
				"kanjiapi":           {Status: domain.HealthStatusDegraded},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.2.3",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "1.2.3" || report.CommitSHA != "abc123" || report.Environment != "prod" {
		t.Fatalf("expected build metadata, got %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected uptime 5m, got %s", report.Uptime)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected derived degraded status, got %s", report.Status)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestSystemServiceHealthReportPropagatesErrors(t *testing.T) {
	repo := &stubHealthRepository{err: errors.New("boom")}
	svc, _ := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if repo.calls != 1 {
		t.Fatalf("expected one collect call, got %d", repo.calls)
	}
}

func TestSystemServiceDiagnostics(t *testing.T) {
	now := time.Date(2025, 2, 2, 2, 2, 2, 0, time.UTC)
	dict := strokes.NewDictionary(map[string]int{"山": 3, "田": 5})
	cache := strokes.NewCache(16)
	cache.Put("凰", 11)

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{},
		Resolver:         strokes.NewResolver(dict, cache),
		AIKey:            "sk-ant-api03-secret",
		Clock:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	diag, err := svc.Diagnostics(context.Background())
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if !diag.HasAIKey || diag.AIKeyPreview != "sk-ant-a…" {
		t.Fatalf("unexpected key preview %+v", diag)
	}
	if diag.GoVersion != runtime.Version() || !diag.Now.Equal(now) {
		t.Fatalf("unexpected runtime fields %+v", diag)
	}
	if diag.DictionarySize != 2 || diag.CachedStrokes != 1 {
		t.Fatalf("unexpected stroke stats %+v", diag)
	}

	svc, _ = NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{}})
	diag, _ = svc.Diagnostics(context.Background())
	if diag.HasAIKey || diag.AIKeyPreview != "" {
		t.Fatalf("expected no key, got %+v", diag)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error without health repository")
	}
}
