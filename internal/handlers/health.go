package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/platform/httpx"
	"github.com/Seezoo1225/naming-story/internal/services"
)

// HealthHandlers serves liveness, readiness and diagnostic endpoints.
type HealthHandlers struct {
	build  services.BuildInfo
	clock  func() time.Time
	system services.SystemService
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs the handlers. Without a system service readiness always reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

// WithHealthBuildInfo sets the build metadata echoed by /healthz and /readyz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the clock used for timestamps and uptime.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthSystemService wires the service providing dependency checks and diagnostics.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessResponse struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version,omitempty"`
	CommitSHA   string                    `json:"commitSha,omitempty"`
	Environment string                    `json:"environment,omitempty"`
	Uptime      string                    `json:"uptime,omitempty"`
	GeneratedAt string                    `json:"generatedAt"`
	Checks      map[string]readinessCheck `json:"checks"`
	Details     []string                  `json:"details,omitempty"`
}

// Healthz reports liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      string(domain.HealthStatusOK),
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      uptime(now, h.build.StartedAt),
		Timestamp:   now.Format(time.RFC3339),
	})
}

// Readyz probes dependencies through the system service and returns 503 unless every check is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	resp := readinessResponse{
		Status:      string(domain.HealthStatusOK),
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      uptime(now, h.build.StartedAt),
		GeneratedAt: now.Format(time.RFC3339),
		Checks:      map[string]readinessCheck{},
	}

	if h.system != nil {
		report, err := h.system.HealthReport(r.Context())
		if err != nil {
			resp.Status = string(domain.HealthStatusError)
			resp.Details = []string{fmt.Sprintf("system: %v", err)}
			httpx.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp = h.fromReport(resp, report)
	}

	status := http.StatusOK
	if resp.Status != string(domain.HealthStatusOK) {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *HealthHandlers) fromReport(resp readinessResponse, report services.SystemHealthReport) readinessResponse {
	if report.Status != "" {
		resp.Status = string(report.Status)
	}
	resp.Version = firstNonEmpty(report.Version, resp.Version)
	resp.CommitSHA = firstNonEmpty(report.CommitSHA, resp.CommitSHA)
	resp.Environment = firstNonEmpty(report.Environment, resp.Environment)
	if report.Uptime > 0 {
		resp.Uptime = report.Uptime.Truncate(time.Second).String()
	}
	if !report.GeneratedAt.IsZero() {
		resp.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := report.Checks[name]
		entry := readinessCheck{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if !check.CheckedAt.IsZero() {
			entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		resp.Checks[name] = entry
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			resp.Details = append(resp.Details, fmt.Sprintf("%s: %s", name, check.Error))
		}
	}
	return resp
}

type diagResponse struct {
	OK             bool    `json:"ok"`
	HasAIKey       bool    `json:"has_ai_key"`
	AIKeyPreview   *string `json:"ai_key_preview"`
	GoVersion      string  `json:"go_version"`
	DictionarySize int     `json:"dictionary_size"`
	CachedStrokes  int     `json:"cached_strokes"`
	Now            string  `json:"now"`
}

// Diag returns the operator diagnostics snapshot. The AI key itself is never echoed.
func (h *HealthHandlers) Diag(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "diagnostics not configured", http.StatusServiceUnavailable))
		return
	}
	diag, err := h.system.Diagnostics(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("diagnostics_failed", err.Error(), status))
		return
	}

	resp := diagResponse{
		OK:             true,
		HasAIKey:       diag.HasAIKey,
		GoVersion:      diag.GoVersion,
		DictionarySize: diag.DictionarySize,
		CachedStrokes:  diag.CachedStrokes,
		Now:            diag.Now.UTC().Format(time.RFC3339),
	}
	if diag.HasAIKey && diag.AIKeyPreview != "" {
		preview := diag.AIKeyPreview
		resp.AIKeyPreview = &preview
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func uptime(now, started time.Time) string {
	if started.IsZero() || now.Before(started) {
		return ""
	}
	return now.Sub(started).Truncate(time.Second).String()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
