package kanjiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL     = "https://kanjiapi.dev"
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 4
	defaultMaxAttempts = 3
	maxBodyBytes       = 1 << 20
)

// Client fetches stroke counts from kanjiapi.dev (KANJIDIC2 data), one request per character.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	concurrency int
	maxAttempts int
	backoff     gax.Backoff
	logger      *zap.Logger
}

// Option customises the Client.
type Option func(*Client)

// WithBaseURL points the client at another host, typically a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithConcurrency bounds the number of in-flight requests per lookup.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxAttempts bounds attempts per character, including the first.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff overrides the retry pauses.
func WithBackoff(backoff gax.Backoff) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// WithLogger sets the logger used for per-character failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Client with production defaults.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		concurrency: defaultConcurrency,
		maxAttempts: defaultMaxAttempts,
		backoff: gax.Backoff{
			Initial:    500 * time.Millisecond,
			Max:        2 * time.Second,
			Multiplier: 2,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// LookupStrokes resolves every character it can. Characters the API does not know, or reports
// with a non-integer or non-positive count, are simply absent from the result. The returned error
// joins per-character transport failures; the map is still valid alongside it.
func (c *Client) LookupStrokes(ctx context.Context, chars []string) (map[string]int, error) {
	out := make(map[string]int, len(chars))
	if len(chars) == 0 {
		return out, nil
	}

	var (
		mu    sync.Mutex
		errs  []error
		group errgroup.Group
		seen  = make(map[string]struct{}, len(chars))
	)
	group.SetLimit(c.concurrency)

	for _, char := range chars {
		if char == "" {
			continue
		}
		if _, dup := seen[char]; dup {
			continue
		}
		seen[char] = struct{}{}

		group.Go(func() error {
			count, ok, err := c.StrokeCount(ctx, char)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("kanjiapi: %s: %w", char, err))
			case ok:
				out[char] = count
			}
			return nil
		})
	}
	_ = group.Wait()

	if len(errs) > 0 {
		c.logger.Warn("kanjiapi: lookup incomplete",
			zap.Int("requested", len(seen)),
			zap.Int("resolved", len(out)),
			zap.Int("failed", len(errs)),
		)
		return out, errors.Join(errs...)
	}
	return out, nil
}

// StrokeCount fetches a single character. ok is false when the API has no usable count.
func (c *Client) StrokeCount(ctx context.Context, char string) (int, bool, error) {
	endpoint := c.baseURL + "/v1/kanji/" + url.PathEscape(char)

	var (
		count int
		ok    bool
	)
	retryer := &attemptRetryer{backoff: c.backoff, remaining: c.maxAttempts - 1}
	err := gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		var callErr error
		count, ok, callErr = c.fetch(ctx, endpoint)
		return callErr
	}, gax.WithRetry(func() gax.Retryer { return retryer }))
	if err != nil {
		return 0, false, err
	}
	return count, ok, nil
}

type kanjiResponse struct {
	Kanji       string          `json:"kanji"`
	StrokeCount json.RawMessage `json:"stroke_count"`
}

func (c *Client) fetch(ctx context.Context, endpoint string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return 0, false, &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return 0, false, &retryableError{err: fmt.Errorf("http %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return 0, false, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, false, &retryableError{err: err}
	}
	var payload kanjiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Debug("kanjiapi: undecodable response", zap.String("url", endpoint), zap.Error(err))
		return 0, false, nil
	}
	count, ok := parseStrokeCount(payload.StrokeCount)
	return count, ok, nil
}

func parseStrokeCount(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if n <= 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// attemptRetryer retries transient failures with backoff until the attempt budget runs out.
type attemptRetryer struct {
	backoff   gax.Backoff
	remaining int
}

func (r *attemptRetryer) Retry(err error) (time.Duration, bool) {
	var transient *retryableError
	if !errors.As(err, &transient) || r.remaining <= 0 {
		return 0, false
	}
	r.remaining--
	return r.backoff.Pause(), true
}
