package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Fatalf("expected port %s, got %s", defaultPort, cfg.Server.Port)
	}
	if cfg.AI.MaxCandidates != 3 {
		t.Fatalf("expected 3 candidates, got %d", cfg.AI.MaxCandidates)
	}
	if cfg.Strokes.CacheSize != 4096 {
		t.Fatalf("expected cache size 4096, got %d", cfg.Strokes.CacheSize)
	}
	if cfg.Strokes.UpstreamHints {
		t.Fatalf("expected upstream hints disabled by default")
	}
	if !cfg.KanjiAPI.Enabled || cfg.KanjiAPI.BaseURL != "https://kanjiapi.dev" {
		t.Fatalf("unexpected kanjiapi config %+v", cfg.KanjiAPI)
	}
	if cfg.Feedback.Store != FeedbackStoreNone {
		t.Fatalf("expected feedback store none, got %s", cfg.Feedback.Store)
	}
	if cfg.Feedback.MaxMessageRunes != 500 || cfg.Feedback.MaxAgentRunes != 160 {
		t.Fatalf("unexpected feedback limits %+v", cfg.Feedback)
	}
	if cfg.Security.Environment != "local" {
		t.Fatalf("expected environment local, got %s", cfg.Security.Environment)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "export PORT=9000\nAI_MAX_CANDIDATES=5\nSTROKES_CACHE_SIZE='128'\n# comment\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(envFile),
		WithEnvMap(map[string]string{
			"PORT":                    "9100",
			"GOOGLE_CLOUD_PROJECT":    "naming-dev",
			"KANJIAPI_BASE_URL":       "http://localhost:9999/",
			"SERVER_REQUEST_TIMEOUT":  "5s",
			"STROKES_UPSTREAM_HINTS":  "yes",
			"FEEDBACK_STORE":          "FIRESTORE",
			"TELEMETRY_OTLP_ENDPOINT": "localhost:4318",
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Fatalf("expected env map to win, got port %s", cfg.Server.Port)
	}
	if cfg.AI.MaxCandidates != 5 {
		t.Fatalf("expected .env value 5, got %d", cfg.AI.MaxCandidates)
	}
	if cfg.Strokes.CacheSize != 128 {
		t.Fatalf("expected quoted .env value 128, got %d", cfg.Strokes.CacheSize)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Fatalf("expected request timeout 5s, got %s", cfg.Server.RequestTimeout)
	}
	if !cfg.Strokes.UpstreamHints {
		t.Fatalf("expected upstream hints enabled")
	}
	if cfg.KanjiAPI.BaseURL != "http://localhost:9999" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.KanjiAPI.BaseURL)
	}
	if cfg.Firestore.ProjectID != "naming-dev" || cfg.PubSub.ProjectID != "naming-dev" {
		t.Fatalf("expected project id to default from GOOGLE_CLOUD_PROJECT, got %+v %+v", cfg.Firestore, cfg.PubSub)
	}
	if cfg.Feedback.Store != FeedbackStoreFirestore {
		t.Fatalf("expected firestore store, got %s", cfg.Feedback.Store)
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4318" {
		t.Fatalf("expected otlp endpoint, got %s", cfg.Telemetry.OTLPEndpoint)
	}
}

func TestLoadResolvesSecrets(t *testing.T) {
	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		if ref != "secret://anthropic_api_key" {
			t.Fatalf("unexpected ref %s", ref)
		}
		return " sk-ant-test \n", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{"AI_API_KEY": "secret://anthropic_api_key"}),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.APIKey != "sk-ant-test" {
		t.Fatalf("expected resolved key, got %q", cfg.AI.APIKey)
	}
}

func TestLoadSecretFailure(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{"AI_API_KEY": "sm://anthropic_api_key"}),
	)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "sm://anthropic_api_key" {
		t.Fatalf("expected ref preserved, got %s", secretErr.Ref)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"AI_MAX_CANDIDATES":         "0",
			"AI_TEMPERATURE":            "1.5",
			"FEEDBACK_STORE":            "redis",
			"STROKES_DICTIONARY_OBJECT": "s3://bucket/strokes.json",
			"PUBSUB_FEEDBACK_TOPIC":     "feedback",
		}),
	)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := map[string]bool{
		"AI.MaxCandidates":         true,
		"AI.Temperature":           true,
		"Feedback.Store":           true,
		"Strokes.DictionaryObject": true,
		"PubSub.ProjectID":         true,
	}
	fields := validation.Fields()
	if len(fields) != len(want) {
		t.Fatalf("expected %d invalid fields, got %v", len(want), fields)
	}
	for _, field := range fields {
		if !want[field] {
			t.Fatalf("unexpected invalid field %s", field)
		}
	}
}

func TestLookup(t *testing.T) {
	value, err := Lookup("SECRET_PROJECT_ID", WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{"SECRET_PROJECT_ID": " naming-prod "}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "naming-prod" {
		t.Fatalf("expected naming-prod, got %q", value)
	}
}

func TestLoadRejectsCacheSmallerThanBatch(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"AI_MAX_CANDIDATES":  "3",
			"STROKES_CACHE_SIZE": "59",
		}),
	)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := validation.Fields(); len(fields) != 1 || fields[0] != "Strokes.CacheSize" {
		t.Fatalf("expected only Strokes.CacheSize invalid, got %v", fields)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"AI_MAX_CANDIDATES":  "3",
			"STROKES_CACHE_SIZE": "60",
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Strokes.CacheSize != 60 {
		t.Fatalf("expected cache size 60, got %d", cfg.Strokes.CacheSize)
	}
}
