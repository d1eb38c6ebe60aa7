package domain

import "time"

// HealthStatus is the coarse state of a dependency or of the whole service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthCheck is the outcome of probing one dependency.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates every dependency probe plus build metadata.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// Diagnostics is the operator facing snapshot served by the diag endpoint.
type Diagnostics struct {
	HasAIKey       bool
	AIKeyPreview   string
	GoVersion      string
	DictionarySize int
	CachedStrokes  int
	Now            time.Time
}
