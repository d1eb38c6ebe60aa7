package kanjiapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2"
)

type fakeKanjiAPI struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string]int
	hits     map[string]int
}

func (f *fakeKanjiAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	char := strings.TrimPrefix(r.URL.Path, "/v1/kanji/")
	f.mu.Lock()
	f.hits[char]++
	remaining := f.failures[char]
	if remaining > 0 {
		f.failures[char] = remaining - 1
	}
	body, ok := f.bodies[char]
	f.mu.Unlock()

	if remaining > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeKanjiAPI) hitCount(char string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[char]
}

func newTestClient(t *testing.T, api http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	base := []Option{
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithBackoff(gax.Backoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}),
	}
	return New(append(base, opts...)...)
}

func TestLookupStrokesResolvesAndSkipsUnknown(t *testing.T) {
	api := &fakeKanjiAPI{
		bodies: map[string]string{
			"凰": `{"kanji":"凰","stroke_count":11}`,
			"翔": `{"kanji":"翔","stroke_count":12}`,
			"半": `{"kanji":"半","stroke_count":7.5}`,
			"零": `{"kanji":"零","stroke_count":0}`,
			"字": `{"kanji":"字","stroke_count":"6"}`,
			"壊": `not json`,
		},
		failures: map[string]int{},
		hits:     map[string]int{},
	}
	client := newTestClient(t, api)

	got, err := client.LookupStrokes(context.Background(), []string{"凰", "翔", "凰", "半", "零", "字", "壊", "☃"})
	if err != nil {
		t.Fatalf("LookupStrokes: %v", err)
	}
	if len(got) != 2 || got["凰"] != 11 || got["翔"] != 12 {
		t.Fatalf("unexpected result %#v", got)
	}
	if hits := api.hitCount("凰"); hits != 1 {
		t.Fatalf("expected duplicate characters to be fetched once, got %d", hits)
	}
}

func TestLookupStrokesRetriesTransientFailures(t *testing.T) {
	api := &fakeKanjiAPI{
		bodies:   map[string]string{"凰": `{"stroke_count":11}`},
		failures: map[string]int{"凰": 2},
		hits:     map[string]int{},
	}
	client := newTestClient(t, api, WithMaxAttempts(3))

	got, err := client.LookupStrokes(context.Background(), []string{"凰"})
	if err != nil {
		t.Fatalf("LookupStrokes: %v", err)
	}
	if got["凰"] != 11 {
		t.Fatalf("expected 11, got %#v", got)
	}
	if hits := api.hitCount("凰"); hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
}

func TestLookupStrokesReportsExhaustedRetries(t *testing.T) {
	api := &fakeKanjiAPI{
		bodies:   map[string]string{"凰": `{"stroke_count":11}`, "翔": `{"stroke_count":12}`},
		failures: map[string]int{"凰": 10},
		hits:     map[string]int{},
	}
	client := newTestClient(t, api, WithMaxAttempts(2))

	got, err := client.LookupStrokes(context.Background(), []string{"凰", "翔"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "http 503") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if got["翔"] != 12 {
		t.Fatalf("expected partial result for 翔, got %#v", got)
	}
	if _, ok := got["凰"]; ok {
		t.Fatal("expected 凰 to stay unresolved")
	}
	if hits := api.hitCount("凰"); hits != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits)
	}
}

func TestLookupStrokesEmptyInputSendsNoRequests(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	got, err := client.LookupStrokes(context.Background(), nil)
	if err != nil {
		t.Fatalf("LookupStrokes: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no requests, got %d", calls.Load())
	}
}

func TestLookupStrokesRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		for {
			old := peak.Load()
			if current <= old || peak.CompareAndSwap(old, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte(`{"stroke_count":3}`))
	}), WithConcurrency(2))

	chars := []string{"一", "二", "三", "四", "五", "六"}
	got, err := client.LookupStrokes(context.Background(), chars)
	if err != nil {
		t.Fatalf("LookupStrokes: %v", err)
	}
	if len(got) != len(chars) {
		t.Fatalf("expected %d results, got %d", len(chars), len(got))
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent requests, got %d", peak.Load())
	}
}
