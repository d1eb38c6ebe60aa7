package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/services"
)

var errNoJSONObject = errors.New("llm: response contains no json object")

var gradeKeys = map[string]struct{}{
	"tenkaku": {},
	"jinkaku": {},
	"chikaku": {},
	"gaikaku": {},
	"soukaku": {},
}

type responseEnvelope struct {
	Candidates []map[string]json.RawMessage `json:"candidates"`
	Policy     *struct {
		Ryuha string `json:"ryuha"`
		Notes string `json:"notes"`
	} `json:"policy"`
}

// decodeResponse parses the model text into a candidate batch, tolerating code fences and prose
// around the outermost JSON object.
func decodeResponse(text string) (services.CandidateBatch, error) {
	var envelope responseEnvelope
	clean := stripCodeFences(text)
	if err := json.Unmarshal([]byte(clean), &envelope); err != nil {
		object, extractErr := outermostObject(clean)
		if extractErr != nil {
			return services.CandidateBatch{}, extractErr
		}
		if err := json.Unmarshal([]byte(object), &envelope); err != nil {
			return services.CandidateBatch{}, fmt.Errorf("llm: decode response: %w", err)
		}
	}

	batch := services.CandidateBatch{
		Candidates: make([]domain.RawCandidate, 0, len(envelope.Candidates)),
	}
	for _, fields := range envelope.Candidates {
		batch.Candidates = append(batch.Candidates, decodeCandidate(fields))
	}
	if envelope.Policy != nil {
		batch.Policy = domain.NamingPolicy{
			Ryuha: strings.TrimSpace(envelope.Policy.Ryuha),
			Notes: strings.TrimSpace(envelope.Policy.Notes),
		}
	}
	return batch, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

func outermostObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}

func decodeCandidate(fields map[string]json.RawMessage) domain.RawCandidate {
	raw := domain.RawCandidate{
		Name:    stringField(fields["name"]),
		Reading: stringField(fields["reading"]),
		Copy:    stringField(fields["copy"]),
		Story:   stringField(fields["story"]),
	}
	if value, ok := fields["strokes"]; ok {
		raw.StrokeHints = decodeStrokeHints(value)
	}
	if value, ok := fields["fortune"]; ok {
		raw.Fortune = decodeFortune(value)
	}

	for key, value := range fields {
		switch key {
		case "name", "reading", "copy", "story", "strokes", "fortune":
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			continue
		}
		if raw.Extra == nil {
			raw.Extra = make(map[string]any)
		}
		raw.Extra[key] = decoded
	}
	return raw
}

func stringField(value json.RawMessage) string {
	var s string
	if len(value) == 0 || json.Unmarshal(value, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

type strokesPayload struct {
	Surname struct {
		Breakdown []json.RawMessage `json:"breakdown"`
	} `json:"surname"`
	Given struct {
		Breakdown []json.RawMessage `json:"breakdown"`
	} `json:"given"`
}

func decodeStrokeHints(value json.RawMessage) []domain.StrokeHint {
	var payload strokesPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil
	}
	var hints []domain.StrokeHint
	for _, entry := range append(payload.Surname.Breakdown, payload.Given.Breakdown...) {
		if hint, ok := decodeBreakdownEntry(entry); ok {
			hints = append(hints, hint)
		}
	}
	return hints
}

// Entries arrive as ["字", 6] pairs or {"char": "字", "count": 6} objects.
func decodeBreakdownEntry(entry json.RawMessage) (domain.StrokeHint, bool) {
	var pair []json.RawMessage
	if err := json.Unmarshal(entry, &pair); err == nil {
		if len(pair) != 2 {
			return domain.StrokeHint{}, false
		}
		return makeHint(stringField(pair[0]), pair[1])
	}
	var object struct {
		Char  string          `json:"char"`
		Count json.RawMessage `json:"count"`
	}
	if err := json.Unmarshal(entry, &object); err != nil {
		return domain.StrokeHint{}, false
	}
	return makeHint(strings.TrimSpace(object.Char), object.Count)
}

func makeHint(char string, count json.RawMessage) (domain.StrokeHint, bool) {
	var n float64
	if char == "" || json.Unmarshal(count, &n) != nil || n <= 0 || n != float64(int(n)) {
		return domain.StrokeHint{}, false
	}
	return domain.StrokeHint{Char: char, Count: int(n)}, true
}

func decodeFortune(value json.RawMessage) domain.Fortune {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(value, &fields); err != nil {
		return domain.Fortune{}
	}

	var fortune domain.Fortune
	setLabel := func(key, label string) {
		if label == "" {
			return
		}
		if fortune.GradeLabels == nil {
			fortune.GradeLabels = make(map[string]string)
		}
		// An explicit grades map takes precedence.
		if _, exists := fortune.GradeLabels[key]; !exists {
			fortune.GradeLabels[key] = label
		}
	}

	for key, raw := range fields {
		switch {
		case key == "note":
			fortune.Note = stringField(raw)
		case key == "luck":
			var luck struct {
				Overall string `json:"overall"`
				Work    string `json:"work"`
				Love    string `json:"love"`
				Health  string `json:"health"`
			}
			if json.Unmarshal(raw, &luck) == nil {
				fortune.Luck = domain.Luck(luck)
			}
		case key == "grades":
			var labels map[string]json.RawMessage
			if json.Unmarshal(raw, &labels) == nil {
				for gradeKey, label := range labels {
					text := stringField(label)
					if !isGradeKey(gradeKey) || text == "" {
						continue
					}
					if fortune.GradeLabels == nil {
						fortune.GradeLabels = make(map[string]string)
					}
					fortune.GradeLabels[gradeKey] = text
				}
			}
		case isGradeKey(key):
			// Numeric guesses are discarded; {value, grade} objects and bare strings carry a label.
			var object struct {
				Grade string `json:"grade"`
			}
			if json.Unmarshal(raw, &object) == nil {
				setLabel(key, strings.TrimSpace(object.Grade))
				continue
			}
			setLabel(key, stringField(raw))
		default:
			var decoded any
			if json.Unmarshal(raw, &decoded) != nil {
				continue
			}
			if fortune.Extra == nil {
				fortune.Extra = make(map[string]any)
			}
			fortune.Extra[key] = decoded
		}
	}
	return fortune
}

func isGradeKey(key string) bool {
	_, ok := gradeKeys[key]
	return ok
}
