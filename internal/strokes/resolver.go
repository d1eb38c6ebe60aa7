package strokes

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/Seezoo1225/naming-story/internal/domain"
)

const instrumentationName = "github.com/Seezoo1225/naming-story/internal/strokes"

// StrokeLookup resolves stroke counts for characters missing from the dictionary. Implementations
// return whatever subset they could resolve; characters absent from the map stay unknown.
type StrokeLookup interface {
	LookupStrokes(ctx context.Context, chars []string) (map[string]int, error)
}

// StrokeLookupFunc adapts a function into a StrokeLookup.
type StrokeLookupFunc func(ctx context.Context, chars []string) (map[string]int, error)

// LookupStrokes implements StrokeLookup.
func (f StrokeLookupFunc) LookupStrokes(ctx context.Context, chars []string) (map[string]int, error) {
	return f(ctx, chars)
}

// ResolveMode selects which characters EnsureResolved sends to the lookup.
type ResolveMode string

const (
	// ResolveMissing requests only characters found in neither the dictionary nor the cache.
	ResolveMissing ResolveMode = "missing"
	// ResolveAll re-requests every character that is not a dictionary hit.
	ResolveAll ResolveMode = "all"
)

// ParseResolveMode maps a user supplied value onto a mode, defaulting to ResolveMissing.
func ParseResolveMode(value string) ResolveMode {
	if ResolveMode(value) == ResolveAll {
		return ResolveAll
	}
	return ResolveMissing
}

// ResolutionReport summarises a single EnsureResolved pass.
type ResolutionReport struct {
	Requested  []string
	Resolved   []string
	Unresolved []string
	CacheHits  int
	Err        error

	// Counts holds every non-dictionary count known at the end of the pass, whether it came
	// from the cache or the lookup. It stays valid after the cache evicts those entries.
	Counts map[string]int
}

// LookedUp reports whether the pass issued a lookup call.
func (r ResolutionReport) LookedUp() bool {
	return len(r.Requested) > 0
}

// Resolver maps characters to stroke counts: dictionary first, then the resolution cache.
type Resolver struct {
	dict          *Dictionary
	cache         *Cache
	lookup        StrokeLookup
	logger        *zap.Logger
	upstreamHints bool
	metrics       resolverMetrics
	now           func() time.Time
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithLookup installs the auxiliary lookup used by EnsureResolved.
func WithLookup(lookup StrokeLookup) ResolverOption {
	return func(r *Resolver) {
		r.lookup = lookup
	}
}

// WithLogger sets the logger used for lookup failures and gaps.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMeter records lookup metrics on the supplied meter instead of the global provider.
func WithMeter(meter metric.Meter) ResolverOption {
	return func(r *Resolver) {
		if meter != nil {
			r.metrics = newResolverMetrics(meter)
		}
	}
}

// WithUpstreamHints lets ResolveWithHints fill remaining gaps from producer supplied counts.
func WithUpstreamHints(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.upstreamHints = enabled
	}
}

// WithClock overrides the clock used for latency measurements.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a resolver over the supplied dictionary and cache. A nil cache gets a
// private one of DefaultCacheSize.
func NewResolver(dict *Dictionary, cache *Cache, opts ...ResolverOption) *Resolver {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	r := &Resolver{
		dict:   dict,
		cache:  cache,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.metrics.requests == nil {
		r.metrics = newResolverMetrics(otel.GetMeterProvider().Meter(instrumentationName))
	}
	return r
}

// Dictionary exposes the dictionary backing the resolver.
func (r *Resolver) Dictionary() *Dictionary {
	return r.dict
}

// Cache exposes the resolution cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve produces a breakdown for chars using the dictionary and the cache only.
func (r *Resolver) Resolve(chars []string) domain.NameBreakdown {
	return r.ResolveWithHints(chars, nil)
}

// ResolveWithHints behaves like Resolve, additionally filling gaps from hints when upstream hints
// are enabled. Hints never override the dictionary or the cache and are never cached.
func (r *Resolver) ResolveWithHints(chars []string, hints []domain.StrokeHint) domain.NameBreakdown {
	return r.resolveWith(chars, hints, nil)
}

// ResolveReported behaves like ResolveWithHints, consulting the counts gathered by an earlier
// EnsureResolved pass before the cache.
func (r *Resolver) ResolveReported(chars []string, hints []domain.StrokeHint, report ResolutionReport) domain.NameBreakdown {
	return r.resolveWith(chars, hints, report.Counts)
}

func (r *Resolver) resolveWith(chars []string, hints []domain.StrokeHint, known map[string]int) domain.NameBreakdown {
	var hinted map[string]int
	if r.upstreamHints && len(hints) > 0 {
		hinted = make(map[string]int, len(hints))
		for _, hint := range hints {
			if hint.Count <= 0 || hint.Char == "" {
				continue
			}
			if _, exists := hinted[hint.Char]; !exists {
				hinted[hint.Char] = hint.Count
			}
		}
	}

	out := make([]domain.CharacterStroke, 0, len(chars))
	for _, char := range chars {
		out = append(out, r.resolveChar(char, known, hinted))
	}
	return domain.NameBreakdown{Chars: out}
}

func (r *Resolver) resolveChar(char string, known, hinted map[string]int) domain.CharacterStroke {
	if count, ok := r.dict.Lookup(char); ok {
		return domain.CharacterStroke{Char: char, Count: count, Source: domain.StrokeSourceDictionary}
	}
	if count, ok := known[char]; ok {
		return domain.CharacterStroke{Char: char, Count: count, Source: domain.StrokeSourceExternal}
	}
	if count, ok := r.cache.Get(char); ok {
		return domain.CharacterStroke{Char: char, Count: count, Source: domain.StrokeSourceExternal}
	}
	if count, ok := hinted[char]; ok {
		return domain.CharacterStroke{Char: char, Count: count, Source: domain.StrokeSourceUpstream}
	}
	return domain.CharacterStroke{Char: char, Source: domain.StrokeSourceUnknown}
}

// EnsureResolved warms the cache for chars with at most one lookup call. Lookup failures leave
// the affected characters unresolved and are reported, never returned.
func (r *Resolver) EnsureResolved(ctx context.Context, chars []string, mode ResolveMode) ResolutionReport {
	report := ResolutionReport{Counts: make(map[string]int)}

	seen := make(map[string]struct{}, len(chars))
	pending := make([]string, 0, len(chars))
	for _, char := range chars {
		if char == "" {
			continue
		}
		if _, dup := seen[char]; dup {
			continue
		}
		seen[char] = struct{}{}

		if _, ok := r.dict.Lookup(char); ok {
			continue
		}
		if count, ok := r.cache.Get(char); ok {
			report.Counts[char] = count
			if mode != ResolveAll {
				report.CacheHits++
				continue
			}
		}
		pending = append(pending, char)
	}

	if report.CacheHits > 0 {
		r.metrics.cacheHits.Add(ctx, int64(report.CacheHits))
	}
	if len(pending) == 0 {
		return report
	}

	if r.lookup == nil {
		report.Unresolved = stillUnknown(pending, report.Counts)
		r.logger.Debug("strokes: no lookup configured",
			zap.Strings("unresolved", report.Unresolved),
		)
		return report
	}

	report.Requested = pending
	attrs := metric.WithAttributes(attribute.String("mode", string(normalizeMode(mode))))
	r.metrics.requests.Add(ctx, 1, attrs)
	r.metrics.characters.Add(ctx, int64(len(pending)), attrs)

	started := r.now()
	found, err := r.lookup.LookupStrokes(ctx, pending)
	r.metrics.latency.Record(ctx, r.now().Sub(started).Seconds(), attrs)

	if err != nil {
		report.Err = err
		r.logger.Warn("strokes: lookup failed",
			zap.Error(err),
			zap.Int("requested", len(pending)),
		)
	}

	var rejected []string
	for _, char := range pending {
		count, ok := found[char]
		if !ok {
			continue
		}
		if count <= 0 {
			rejected = append(rejected, char)
			continue
		}
		r.cache.Put(char, count)
		report.Counts[char] = count
		report.Resolved = append(report.Resolved, char)
	}
	if len(rejected) > 0 {
		r.logger.Warn("strokes: lookup returned non-positive counts", zap.Strings("chars", rejected))
	}

	report.Unresolved = stillUnknown(pending, report.Counts)
	if len(report.Unresolved) > 0 {
		r.logger.Info("strokes: characters left unresolved", zap.Strings("chars", report.Unresolved))
	}
	return report
}

// Characters re-resolved under ResolveAll keep their earlier cached value when the lookup fails.
func stillUnknown(chars []string, known map[string]int) []string {
	var out []string
	for _, char := range chars {
		if _, ok := known[char]; !ok {
			out = append(out, char)
		}
	}
	return out
}

func normalizeMode(mode ResolveMode) ResolveMode {
	if mode == ResolveAll {
		return ResolveAll
	}
	return ResolveMissing
}

type resolverMetrics struct {
	requests   metric.Int64Counter
	characters metric.Int64Counter
	cacheHits  metric.Int64Counter
	latency    metric.Float64Histogram
}

func newResolverMetrics(meter metric.Meter) resolverMetrics {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)
	var m resolverMetrics
	var err error
	if m.requests, err = meter.Int64Counter("strokes.lookup.requests",
		metric.WithDescription("Bulk stroke lookups issued")); err != nil || m.requests == nil {
		m.requests, _ = fallback.Int64Counter("strokes.lookup.requests")
	}
	if m.characters, err = meter.Int64Counter("strokes.lookup.characters",
		metric.WithDescription("Characters sent to the stroke lookup")); err != nil || m.characters == nil {
		m.characters, _ = fallback.Int64Counter("strokes.lookup.characters")
	}
	if m.cacheHits, err = meter.Int64Counter("strokes.cache.hits",
		metric.WithDescription("Characters served from the resolution cache")); err != nil || m.cacheHits == nil {
		m.cacheHits, _ = fallback.Int64Counter("strokes.cache.hits")
	}
	if m.latency, err = meter.Float64Histogram("strokes.lookup.latency",
		metric.WithDescription("Stroke lookup latency"),
		metric.WithUnit("s")); err != nil || m.latency == nil {
		m.latency, _ = fallback.Float64Histogram("strokes.lookup.latency")
	}
	return m
}
