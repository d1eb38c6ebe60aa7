package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Seezoo1225/naming-story/internal/services"
)

type mockMessager struct {
	response *anthropic.Message
	err      error
	params   []anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = append(m.params, params)
	return m.response, m.err
}

func newMockMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

const sampleResponse = `{
  "candidates": [
    {
      "name": "山田 太志",
      "reading": "たいし",
      "copy": "大きな志を抱いて",
      "story": "物語",
      "strokes": {
        "surname": {"total": 8, "breakdown": [["山", 3], ["田", 5]]},
        "given": {"total": 7, "breakdown": [{"char": "太", "count": 4}, ["志", 3]]},
        "total": 15
      },
      "fortune": {
        "tenkaku": 8,
        "jinkaku": {"value": 9, "grade": "大吉"},
        "chikaku": "吉",
        "grades": {"tenkaku": "中吉", "jinkaku": "凶"},
        "luck": {"overall": "吉", "work": "大吉", "love": "中吉", "health": "吉"},
        "note": "補足",
        "lucky_color": "藍"
      },
      "tags": ["力強い"]
    }
  ],
  "policy": {"ryuha": "五格法（新字体・霊数なし）", "notes": "現代的"}
}`

func TestGenerateCandidatesDecodesResponse(t *testing.T) {
	mock := &mockMessager{response: newMockMessage(sampleResponse)}
	gen := NewAnthropicGeneratorWithMessager(mock, Config{Model: "claude-test", MaxTokens: 2048, Temperature: 0.5})

	batch, err := gen.GenerateCandidates(context.Background(), services.CandidateRequest{
		Surname: "山田", Gender: "male", Concept: "志", Count: 3,
	})
	if err != nil {
		t.Fatalf("GenerateCandidates: %v", err)
	}

	if len(mock.params) != 1 {
		t.Fatalf("expected one call, got %d", len(mock.params))
	}
	params := mock.params[0]
	if string(params.Model) != "claude-test" || params.MaxTokens != 2048 {
		t.Fatalf("unexpected params model=%s maxTokens=%d", params.Model, params.MaxTokens)
	}
	if !strings.Contains(params.System[0].Text, "候補は3つ") {
		t.Fatalf("expected candidate count in system prompt")
	}

	if len(batch.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(batch.Candidates))
	}
	c := batch.Candidates[0]
	if c.Name != "山田 太志" || c.Reading != "たいし" || c.Copy != "大きな志を抱いて" {
		t.Fatalf("unexpected text fields %+v", c)
	}
	if len(c.StrokeHints) != 4 || c.StrokeHints[2].Char != "太" || c.StrokeHints[2].Count != 4 || c.StrokeHints[3].Count != 3 {
		t.Fatalf("unexpected hints %+v", c.StrokeHints)
	}
	labels := c.Fortune.GradeLabels
	if labels["tenkaku"] != "中吉" || labels["jinkaku"] != "凶" || labels["chikaku"] != "吉" {
		t.Fatalf("unexpected grade labels %#v", labels)
	}
	if _, ok := labels["soukaku"]; ok {
		t.Fatalf("expected no soukaku label, got %#v", labels)
	}
	if c.Fortune.Luck.Work != "大吉" || c.Fortune.Note != "補足" {
		t.Fatalf("unexpected fortune %+v", c.Fortune)
	}
	if c.Fortune.Extra["lucky_color"] != "藍" {
		t.Fatalf("expected unknown fortune fields preserved, got %#v", c.Fortune.Extra)
	}
	if _, ok := c.Extra["tags"]; !ok {
		t.Fatalf("expected unknown candidate fields preserved, got %#v", c.Extra)
	}
	if batch.Policy.Ryuha != "五格法（新字体・霊数なし）" || batch.Policy.Notes != "現代的" {
		t.Fatalf("unexpected policy %+v", batch.Policy)
	}
}

func TestGenerateCandidatesToleratesFencesAndProse(t *testing.T) {
	cases := map[string]string{
		"fenced": "```json\n{\"candidates\":[{\"name\":\"山田 凛\"}]}\n```",
		"prose":  "以下が候補です。\n{\"candidates\":[{\"name\":\"山田 凛\"}]}\nよろしくお願いします。",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			gen := NewAnthropicGeneratorWithMessager(&mockMessager{response: newMockMessage(text)}, Config{})
			batch, err := gen.GenerateCandidates(context.Background(), services.CandidateRequest{Surname: "山田"})
			if err != nil {
				t.Fatalf("GenerateCandidates: %v", err)
			}
			if len(batch.Candidates) != 1 || batch.Candidates[0].Name != "山田 凛" {
				t.Fatalf("unexpected batch %+v", batch)
			}
			if batch.Policy.Ryuha != "" {
				t.Fatalf("expected empty policy, got %+v", batch.Policy)
			}
		})
	}
}

func TestGenerateCandidatesErrors(t *testing.T) {
	gen := NewAnthropicGeneratorWithMessager(&mockMessager{err: errors.New("529 overloaded")}, Config{})
	if _, err := gen.GenerateCandidates(context.Background(), services.CandidateRequest{}); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected transport error, got %v", err)
	}

	gen = NewAnthropicGeneratorWithMessager(&mockMessager{response: &anthropic.Message{}}, Config{})
	if _, err := gen.GenerateCandidates(context.Background(), services.CandidateRequest{}); err == nil {
		t.Fatal("expected error for empty response")
	}

	gen = NewAnthropicGeneratorWithMessager(&mockMessager{response: newMockMessage("申し訳ありません")}, Config{})
	if _, err := gen.GenerateCandidates(context.Background(), services.CandidateRequest{}); !errors.Is(err, errNoJSONObject) {
		t.Fatalf("expected errNoJSONObject, got %v", err)
	}
}

func TestNewAnthropicGeneratorRequiresKey(t *testing.T) {
	if _, err := NewAnthropicGenerator(Config{APIKey: " "}); err == nil {
		t.Fatal("expected error without api key")
	}
	gen, err := NewAnthropicGenerator(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewAnthropicGenerator: %v", err)
	}
	if gen.Model() != defaultModel {
		t.Fatalf("expected default model, got %s", gen.Model())
	}
}
