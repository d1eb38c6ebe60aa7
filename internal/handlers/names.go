package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/platform/httpx"
	"github.com/Seezoo1225/naming-story/internal/services"
	"github.com/Seezoo1225/naming-story/internal/strokes"
)

const maxGenerateBodySize = 8 * 1024

// NamingHandlers exposes the name generation endpoint.
type NamingHandlers struct {
	names services.NamingService
}

// NewNamingHandlers constructs the naming handlers.
func NewNamingHandlers(names services.NamingService) *NamingHandlers {
	return &NamingHandlers{names: names}
}

// Routes registers POST /generate against the provided router.
func (h *NamingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/generate", h.generate)
}

type generateRequest struct {
	Surname string `json:"surname"`
	Gender  string `json:"gender"`
	Concept string `json:"concept"`
}

func (h *NamingHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.names == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "naming service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxGenerateBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "surname and concept are required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		}
		return
	}

	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be a JSON object", http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	generation, err := h.names.GenerateNames(ctx, services.NameGenerationCommand{
		Surname:    req.Surname,
		Gender:     req.Gender,
		Concept:    req.Concept,
		Debug:      parseFlag(query.Get("debug")),
		StrokeMode: strokes.ParseResolveMode(strings.ToLower(strings.TrimSpace(query.Get("strokes")))),
	})
	if err != nil {
		writeNamingError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, buildGenerationPayload(generation))
}

func writeNamingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNamingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", strings.TrimPrefix(err.Error(), services.ErrNamingInvalidInput.Error()+": "), http.StatusBadRequest))
	case errors.Is(err, services.ErrNamingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "name generation is not configured", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrNamingUpstream):
		httpx.WriteError(ctx, w, httpx.NewError("upstream_error", "candidate generation failed", http.StatusBadGateway))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "name generation timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to generate names", http.StatusInternalServerError))
	}
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func buildGenerationPayload(gen services.NameGeneration) map[string]any {
	candidates := make([]map[string]any, 0, len(gen.Candidates))
	for _, candidate := range gen.Candidates {
		candidates = append(candidates, buildCandidatePayload(candidate))
	}
	return map[string]any{
		"generation_id": gen.ID,
		"source":        gen.Source,
		"candidates":    candidates,
		"policy": map[string]any{
			"ryuha": gen.Policy.Ryuha,
			"notes": gen.Policy.Notes,
		},
	}
}

// Producer supplied extra keys pass through; recomputed fields always win.
func buildCandidatePayload(c domain.Candidate) map[string]any {
	out := make(map[string]any, len(c.Extra)+9)
	for key, value := range c.Extra {
		out[key] = value
	}
	out["name"] = c.Name
	out["reading"] = c.Reading
	out["copy"] = c.Copy
	out["story"] = c.Story
	out["fortune"] = buildFortunePayload(c.Fortune, c.Grades)
	out["strokes"] = map[string]any{
		"surname": buildBreakdownPayload(c.Surname),
		"given":   buildBreakdownPayload(c.Given),
		"total":   c.Grades.Total,
	}
	out["segmentation"] = string(c.Segmentation)
	out["fully_resolved"] = c.FullyResolved
	return out
}

func buildFortunePayload(f domain.Fortune, grades domain.FiveGrades) map[string]any {
	out := make(map[string]any, len(f.Extra)+8)
	for key, value := range f.Extra {
		out[key] = value
	}
	out["tenkaku"] = grades.Heaven
	out["jinkaku"] = grades.Human
	out["chikaku"] = grades.Earth
	out["gaikaku"] = grades.External
	out["soukaku"] = grades.Total
	if len(f.GradeLabels) > 0 {
		labels := make(map[string]string, len(f.GradeLabels))
		for key, label := range f.GradeLabels {
			labels[key] = label
		}
		out["grades"] = labels
	}
	out["luck"] = map[string]string{
		"overall": f.Luck.Overall,
		"work":    f.Luck.Work,
		"love":    f.Luck.Love,
		"health":  f.Luck.Health,
	}
	out["note"] = f.Note
	return out
}

// Unresolved characters serialise as [char, null].
func buildBreakdownPayload(b domain.NameBreakdown) map[string]any {
	pairs := make([][]any, 0, len(b.Chars))
	for _, char := range b.Chars {
		var count any
		if char.Resolved() {
			count = char.Count
		}
		pairs = append(pairs, []any{char.Char, count})
	}
	return map[string]any{
		"total":     b.Total(),
		"breakdown": pairs,
	}
}
