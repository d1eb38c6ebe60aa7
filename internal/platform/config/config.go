package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 90 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultRequestTimeout     = 60 * time.Second
	defaultIdempotencyTTL     = 10 * time.Minute
	defaultIdempotencyEntries = 1024
	defaultEnvironment        = "local"
	defaultFeedbackCollection = "feedback"
	defaultAIModel            = "claude-sonnet-4-20250514"
	defaultAIMaxTokens        = 4096
	defaultAITemperature      = 0.8
	defaultAITimeout          = 45 * time.Second
	defaultAIMaxRetries       = 2
	defaultAIMaxCandidates    = 3
	defaultStrokesCacheSize   = 4096
	defaultKanjiAPIBaseURL    = "https://kanjiapi.dev"
	defaultKanjiAPITimeout    = 5 * time.Second
	defaultKanjiAPIWorkers    = 4
	defaultKanjiAPIAttempts   = 3
	defaultFeedbackMessageMax = 500
	defaultFeedbackAgentMax   = 160
	defaultSQLitePath         = "feedback.db"
	defaultServiceName        = "naming-story-api"
	defaultSecretsFile        = ".secrets.local"

	// One generation batch must fit in the resolution cache.
	minCacheRunesPerCandidate = 20

	// FeedbackStoreNone disables feedback persistence.
	FeedbackStoreNone = "none"
	// FeedbackStoreFirestore persists feedback to Firestore.
	FeedbackStoreFirestore = "firestore"
	// FeedbackStoreSQLite persists feedback to a local SQLite file.
	FeedbackStoreSQLite = "sqlite"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Storage   StorageConfig
	AI        AIConfig
	Strokes   StrokesConfig
	KanjiAPI  KanjiAPIConfig
	Feedback  FeedbackConfig
	Telemetry TelemetryConfig
	Security  SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	// IdempotencyTTL is how long POST responses stay replayable by Idempotency-Key.
	IdempotencyTTL     time.Duration
	IdempotencyEntries int
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	FeedbackCollection string
}

// PubSubConfig configures feedback fan-out.
type PubSubConfig struct {
	ProjectID     string
	FeedbackTopic string
}

// StorageConfig configures Cloud Storage access.
type StorageConfig struct {
	Endpoint string
}

// AIConfig configures the generative model used for candidates.
type AIConfig struct {
	APIKey        string
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	MaxRetries    int
	MaxCandidates int
}

// StrokesConfig configures the stroke dictionary and resolver.
type StrokesConfig struct {
	DictionaryPath   string
	DictionaryObject string
	CacheSize        int
	UpstreamHints    bool
}

// KanjiAPIConfig configures the auxiliary stroke lookup.
type KanjiAPIConfig struct {
	Enabled     bool
	BaseURL     string
	Timeout     time.Duration
	Concurrency int
	MaxAttempts int
}

// FeedbackConfig configures feedback persistence.
type FeedbackConfig struct {
	Store           string
	SQLitePath      string
	MaxMessageRunes int
	MaxAgentRunes   int
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
	SampleRatio  float64
}

// SecurityConfig groups secret handling settings.
type SecurityConfig struct {
	Environment     string
	SecretProjectID string
	SecretsFile     string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map. Values in the map take precedence over system
// environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Lookup returns a single effective value using the same precedence as Load. It is used to
// bootstrap dependencies, such as the secret fetcher, that Load itself needs.
func Lookup(key string, opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookupFunc()
	if err != nil {
		return "", err
	}
	value, _ := lookup(key)
	return strings.TrimSpace(value), nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, explicit maps and secret lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := options.lookupFunc()
	if err != nil {
		return Config{}, err
	}

	projectID := stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")

	cfg := Config{
		Server: ServerConfig{
			Port:               stringWithDefault(lookup, "PORT", defaultPort),
			ReadTimeout:        durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:       durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:        durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:     durationWithDefault(lookup, "SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			IdempotencyTTL:     durationWithDefault(lookup, "SERVER_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			IdempotencyEntries: intWithDefault(lookup, "SERVER_IDEMPOTENCY_ENTRIES", defaultIdempotencyEntries),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", projectID),
			EmulatorHost:       stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
			FeedbackCollection: stringWithDefault(lookup, "FIRESTORE_FEEDBACK_COLLECTION", defaultFeedbackCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:     stringWithDefault(lookup, "PUBSUB_PROJECT_ID", projectID),
			FeedbackTopic: stringWithDefault(lookup, "PUBSUB_FEEDBACK_TOPIC", ""),
		},
		Storage: StorageConfig{
			Endpoint: stringWithDefault(lookup, "STORAGE_ENDPOINT", ""),
		},
		AI: AIConfig{
			APIKey:        stringWithDefault(lookup, "AI_API_KEY", ""),
			Model:         stringWithDefault(lookup, "AI_MODEL", defaultAIModel),
			MaxTokens:     intWithDefault(lookup, "AI_MAX_TOKENS", defaultAIMaxTokens),
			Temperature:   floatWithDefault(lookup, "AI_TEMPERATURE", defaultAITemperature),
			Timeout:       durationWithDefault(lookup, "AI_TIMEOUT", defaultAITimeout),
			MaxRetries:    intWithDefault(lookup, "AI_MAX_RETRIES", defaultAIMaxRetries),
			MaxCandidates: intWithDefault(lookup, "AI_MAX_CANDIDATES", defaultAIMaxCandidates),
		},
		Strokes: StrokesConfig{
			DictionaryPath:   stringWithDefault(lookup, "STROKES_DICTIONARY_PATH", ""),
			DictionaryObject: stringWithDefault(lookup, "STROKES_DICTIONARY_OBJECT", ""),
			CacheSize:        intWithDefault(lookup, "STROKES_CACHE_SIZE", defaultStrokesCacheSize),
			UpstreamHints:    boolWithDefault(lookup, "STROKES_UPSTREAM_HINTS", false),
		},
		KanjiAPI: KanjiAPIConfig{
			Enabled:     boolWithDefault(lookup, "KANJIAPI_ENABLED", true),
			BaseURL:     strings.TrimRight(stringWithDefault(lookup, "KANJIAPI_BASE_URL", defaultKanjiAPIBaseURL), "/"),
			Timeout:     durationWithDefault(lookup, "KANJIAPI_TIMEOUT", defaultKanjiAPITimeout),
			Concurrency: intWithDefault(lookup, "KANJIAPI_CONCURRENCY", defaultKanjiAPIWorkers),
			MaxAttempts: intWithDefault(lookup, "KANJIAPI_MAX_ATTEMPTS", defaultKanjiAPIAttempts),
		},
		Feedback: FeedbackConfig{
			Store:           strings.ToLower(stringWithDefault(lookup, "FEEDBACK_STORE", FeedbackStoreNone)),
			SQLitePath:      stringWithDefault(lookup, "FEEDBACK_SQLITE_PATH", defaultSQLitePath),
			MaxMessageRunes: intWithDefault(lookup, "FEEDBACK_MAX_MESSAGE", defaultFeedbackMessageMax),
			MaxAgentRunes:   intWithDefault(lookup, "FEEDBACK_MAX_USER_AGENT", defaultFeedbackAgentMax),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: stringWithDefault(lookup, "TELEMETRY_OTLP_ENDPOINT", ""),
			ServiceName:  stringWithDefault(lookup, "TELEMETRY_SERVICE_NAME", defaultServiceName),
			SampleRatio:  floatWithDefault(lookup, "TELEMETRY_SAMPLE_RATIO", 1),
		},
		Security: SecurityConfig{
			Environment:     strings.ToLower(stringWithDefault(lookup, "ENVIRONMENT", defaultEnvironment)),
			SecretProjectID: stringWithDefault(lookup, "SECRET_PROJECT_ID", projectID),
			SecretsFile:     stringWithDefault(lookup, "SECRETS_FALLBACK_FILE", defaultSecretsFile),
		},
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"AI.APIKey", &cfg.AI.APIKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", target.name, err)
		}
		*target.field = strings.TrimSpace(resolved)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		}),
	}
}

// lookupFunc layers the sources: explicit map, then process environment, then the .env file.
func (o loaderOptions) lookupFunc() (func(string) (string, bool), error) {
	dotEnvValues, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := strings.TrimSpace(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.RequestTimeout <= 0 {
		invalid = append(invalid, "Server.RequestTimeout")
	}
	if cfg.Server.IdempotencyTTL <= 0 {
		invalid = append(invalid, "Server.IdempotencyTTL")
	}
	if cfg.Server.IdempotencyEntries <= 0 {
		invalid = append(invalid, "Server.IdempotencyEntries")
	}
	if cfg.AI.MaxCandidates <= 0 {
		invalid = append(invalid, "AI.MaxCandidates")
	}
	if cfg.AI.MaxTokens <= 0 {
		invalid = append(invalid, "AI.MaxTokens")
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 1 {
		invalid = append(invalid, "AI.Temperature")
	}
	if cfg.AI.MaxRetries < 0 {
		invalid = append(invalid, "AI.MaxRetries")
	}
	if cfg.Strokes.CacheSize <= 0 || (cfg.AI.MaxCandidates > 0 && cfg.Strokes.CacheSize < cfg.AI.MaxCandidates*minCacheRunesPerCandidate) {
		invalid = append(invalid, "Strokes.CacheSize")
	}
	if cfg.Strokes.DictionaryObject != "" && !strings.HasPrefix(cfg.Strokes.DictionaryObject, "gs://") {
		invalid = append(invalid, "Strokes.DictionaryObject")
	}
	if cfg.KanjiAPI.Enabled {
		if cfg.KanjiAPI.BaseURL == "" {
			invalid = append(invalid, "KanjiAPI.BaseURL")
		}
		if cfg.KanjiAPI.Concurrency <= 0 {
			invalid = append(invalid, "KanjiAPI.Concurrency")
		}
		if cfg.KanjiAPI.MaxAttempts <= 0 {
			invalid = append(invalid, "KanjiAPI.MaxAttempts")
		}
	}
	switch cfg.Feedback.Store {
	case FeedbackStoreNone:
	case FeedbackStoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case FeedbackStoreSQLite:
		if strings.TrimSpace(cfg.Feedback.SQLitePath) == "" {
			invalid = append(invalid, "Feedback.SQLitePath")
		}
	default:
		invalid = append(invalid, "Feedback.Store")
	}
	if cfg.Feedback.MaxMessageRunes <= 0 {
		invalid = append(invalid, "Feedback.MaxMessageRunes")
	}
	if cfg.Feedback.MaxAgentRunes <= 0 {
		invalid = append(invalid, "Feedback.MaxAgentRunes")
	}
	if cfg.PubSub.FeedbackTopic != "" && cfg.PubSub.ProjectID == "" {
		invalid = append(invalid, "PubSub.ProjectID")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		invalid = append(invalid, "Telemetry.SampleRatio")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
