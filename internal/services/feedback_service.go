package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Seezoo1225/naming-story/internal/platform/textutil"
	"github.com/Seezoo1225/naming-story/internal/repositories"
)

// ErrFeedbackInvalidInput indicates the submission was empty after trimming.
var ErrFeedbackInvalidInput = errors.New("feedback: invalid input")

// ErrFeedbackUnavailable indicates the feedback store could not be reached.
var ErrFeedbackUnavailable = errors.New("feedback: store unavailable")

const (
	defaultFeedbackMessageRunes = 500
	defaultFeedbackAgentRunes   = 160
	feedbackIDPrefix            = "fb_"

	// FeedbackEventSubmitted is published for every stored submission.
	FeedbackEventSubmitted = "feedback.submitted"
)

// FeedbackEvent is the message fanned out after a submission is stored.
type FeedbackEvent struct {
	Type        string    `json:"type"`
	FeedbackID  string    `json:"feedbackId"`
	Message     string    `json:"message"`
	UserAgent   string    `json:"userAgent,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// FeedbackPublisher fans feedback events out to downstream consumers.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, event FeedbackEvent) (string, error)
}

// FeedbackServiceDeps wires persistence and fan-out for feedback submissions. Both are optional.
type FeedbackServiceDeps struct {
	Repository      repositories.FeedbackRepository
	Publisher       FeedbackPublisher
	MaxMessageRunes int
	MaxAgentRunes   int
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(context.Context, string, map[string]any)
}

type feedbackService struct {
	repo       repositories.FeedbackRepository
	publisher  FeedbackPublisher
	maxMessage int
	maxAgent   int
	now        func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

var _ FeedbackService = (*feedbackService)(nil)

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(deps FeedbackServiceDeps) FeedbackService {
	svc := &feedbackService{
		repo:       deps.Repository,
		publisher:  deps.Publisher,
		maxMessage: deps.MaxMessageRunes,
		maxAgent:   deps.MaxAgentRunes,
		now:        deps.Clock,
		newID:      deps.IDGenerator,
		logger:     deps.Logger,
	}
	if svc.maxMessage <= 0 {
		svc.maxMessage = defaultFeedbackMessageRunes
	}
	if svc.maxAgent <= 0 {
		svc.maxAgent = defaultFeedbackAgentRunes
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = func(context.Context, string, map[string]any) {}
	}
	return svc
}

func (s *feedbackService) Submit(ctx context.Context, cmd FeedbackCommand) (Feedback, error) {
	message := textutil.Clip(strings.TrimSpace(cmd.Message), s.maxMessage)
	if message == "" {
		return Feedback{}, fmt.Errorf("%w: message is required", ErrFeedbackInvalidInput)
	}

	feedback := Feedback{
		ID:        feedbackIDPrefix + s.newID(),
		Message:   message,
		UserAgent: textutil.Clip(strings.TrimSpace(cmd.UserAgent), s.maxAgent),
		CreatedAt: s.now().UTC(),
	}

	if s.repo != nil {
		if err := s.repo.Insert(ctx, feedback); err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
				return Feedback{}, fmt.Errorf("%w: %v", ErrFeedbackUnavailable, err)
			}
			return Feedback{}, fmt.Errorf("feedback: store: %w", err)
		}
	}

	fields := map[string]any{
		"feedback_id": feedback.ID,
		"runes":       textutil.RuneLen(feedback.Message),
		"persisted":   s.repo != nil,
	}

	if s.publisher != nil {
		messageID, err := s.publisher.PublishFeedback(ctx, FeedbackEvent{
			Type:        FeedbackEventSubmitted,
			FeedbackID:  feedback.ID,
			Message:     feedback.Message,
			UserAgent:   feedback.UserAgent,
			SubmittedAt: feedback.CreatedAt,
		})
		if err != nil {
			fields["publish_error"] = err.Error()
		} else {
			fields["message_id"] = messageID
		}
	}

	s.logger(ctx, "feedback.submitted", fields)
	return feedback, nil
}
