package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Seezoo1225/naming-story/internal/services"
)

const (
	defaultModel       = "claude-sonnet-4-20250514"
	defaultMaxTokens   = 4096
	defaultTemperature = 0.8
	defaultCount       = 3
)

// AnthropicMessager is the subset of the Messages API the generator calls.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config configures the Anthropic generator.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// AnthropicGenerator proposes candidates with Claude.
type AnthropicGenerator struct {
	messages    AnthropicMessager
	model       string
	maxTokens   int64
	temperature float64
}

var _ services.CandidateGenerator = (*AnthropicGenerator)(nil)

// NewAnthropicGenerator builds a generator backed by the Anthropic SDK client. Retries and the
// per-request timeout are handled by the SDK.
func NewAnthropicGenerator(cfg Config) (*AnthropicGenerator, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("llm: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicGeneratorWithMessager(&client.Messages, cfg), nil
}

// NewAnthropicGeneratorWithMessager wires an existing Messages client.
func NewAnthropicGeneratorWithMessager(messages AnthropicMessager, cfg Config) *AnthropicGenerator {
	g := &AnthropicGenerator{
		messages:    messages,
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
	if g.model == "" {
		g.model = defaultModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.temperature <= 0 {
		g.temperature = defaultTemperature
	}
	return g
}

// Model reports the configured model name.
func (g *AnthropicGenerator) Model() string {
	return g.model
}

// GenerateCandidates implements services.CandidateGenerator.
func (g *AnthropicGenerator) GenerateCandidates(ctx context.Context, req services.CandidateRequest) (services.CandidateBatch, error) {
	count := req.Count
	if count <= 0 {
		count = defaultCount
	}

	resp, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: buildSystemPrompt(count)}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(req)))},
		Temperature: anthropic.Float(g.temperature),
	})
	if err != nil {
		return services.CandidateBatch{}, fmt.Errorf("llm: messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return services.CandidateBatch{}, errors.New("llm: empty response")
	}
	return decodeResponse(text)
}
