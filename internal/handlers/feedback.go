package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Seezoo1225/naming-story/internal/platform/httpx"
	"github.com/Seezoo1225/naming-story/internal/services"
)

const maxFeedbackBodySize = 16 * 1024

// FeedbackHandlers exposes the visitor feedback endpoint.
type FeedbackHandlers struct {
	feedback services.FeedbackService
}

// NewFeedbackHandlers constructs the feedback handlers.
func NewFeedbackHandlers(feedback services.FeedbackService) *FeedbackHandlers {
	return &FeedbackHandlers{feedback: feedback}
}

// Routes registers POST /feedback.
func (h *FeedbackHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/feedback", h.submit)
}

type feedbackRequest struct {
	Message string `json:"message"`
	UA      string `json:"ua"`
}

func (h *FeedbackHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feedback == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "feedback service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxFeedbackBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("empty", "message is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		}
		return
	}

	var req feedbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be a JSON object", http.StatusBadRequest))
		return
	}

	ua := req.UA
	if ua == "" {
		ua = r.UserAgent()
	}
	fb, err := h.feedback.Submit(ctx, services.FeedbackCommand{Message: req.Message, UserAgent: ua})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFeedbackInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("empty", "message is required", http.StatusBadRequest))
		case errors.Is(err, services.ErrFeedbackUnavailable):
			httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "feedback store unavailable", http.StatusServiceUnavailable))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to record feedback", http.StatusInternalServerError))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "id": fb.ID})
}
