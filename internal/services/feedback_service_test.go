package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Seezoo1225/naming-story/internal/domain"
)

type stubFeedbackRepository struct {
	inserted []domain.Feedback
	err      error
}

func (s *stubFeedbackRepository) Insert(_ context.Context, feedback domain.Feedback) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, feedback)
	return nil
}

func (s *stubFeedbackRepository) FindByID(context.Context, string) (domain.Feedback, error) {
	return domain.Feedback{}, errors.New("not implemented")
}

type stubFeedbackPublisher struct {
	events []FeedbackEvent
	err    error
}

func (s *stubFeedbackPublisher) PublishFeedback(_ context.Context, event FeedbackEvent) (string, error) {
	s.events = append(s.events, event)
	return "msg-1", s.err
}

type unavailableError struct{}

func (unavailableError) Error() string       { return "backend down" }
func (unavailableError) IsNotFound() bool    { return false }
func (unavailableError) IsConflict() bool    { return false }
func (unavailableError) IsUnavailable() bool { return true }

func TestFeedbackServiceSubmit(t *testing.T) {
	now := time.Date(2025, time.July, 7, 7, 7, 7, 0, time.UTC)
	repo := &stubFeedbackRepository{}
	publisher := &stubFeedbackPublisher{}
	recorder := &eventRecorder{}

	svc := NewFeedbackService(FeedbackServiceDeps{
		Repository:  repo,
		Publisher:   publisher,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01JFEED" },
		Logger:      recorder.log,
	})

	longMessage := "  " + strings.Repeat("あ", 600) + "  "
	fb, err := svc.Submit(context.Background(), FeedbackCommand{
		Message:   longMessage,
		UserAgent: strings.Repeat("u", 300),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if fb.ID != "fb_01JFEED" {
		t.Fatalf("expected fb_ prefixed id, got %q", fb.ID)
	}
	if got := len([]rune(fb.Message)); got != defaultFeedbackMessageRunes {
		t.Fatalf("expected message clipped to %d runes, got %d", defaultFeedbackMessageRunes, got)
	}
	if got := len(fb.UserAgent); got != defaultFeedbackAgentRunes {
		t.Fatalf("expected user agent clipped to %d, got %d", defaultFeedbackAgentRunes, got)
	}
	if !fb.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %s, got %s", now, fb.CreatedAt)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].ID != fb.ID {
		t.Fatalf("expected feedback persisted, got %+v", repo.inserted)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if evt := publisher.events[0]; evt.Type != FeedbackEventSubmitted || evt.FeedbackID != fb.ID || !evt.SubmittedAt.Equal(now) {
		t.Fatalf("unexpected event %+v", evt)
	}
	event, ok := recorder.find("feedback.submitted")
	if !ok || event.fields["message_id"] != "msg-1" {
		t.Fatalf("expected logged submission with message id, got %#v", event.fields)
	}
}

func TestFeedbackServiceRejectsEmpty(t *testing.T) {
	repo := &stubFeedbackRepository{}
	svc := NewFeedbackService(FeedbackServiceDeps{Repository: repo})
	if _, err := svc.Submit(context.Background(), FeedbackCommand{Message: " \n\t "}); !errors.Is(err, ErrFeedbackInvalidInput) {
		t.Fatalf("expected ErrFeedbackInvalidInput, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatal("expected nothing persisted")
	}
}

func TestFeedbackServicePublishFailureIsNotFatal(t *testing.T) {
	recorder := &eventRecorder{}
	svc := NewFeedbackService(FeedbackServiceDeps{
		Publisher: &stubFeedbackPublisher{err: errors.New("topic missing")},
		Logger:    recorder.log,
	})
	if _, err := svc.Submit(context.Background(), FeedbackCommand{Message: "ok"}); err != nil {
		t.Fatalf("expected publish failure to be swallowed, got %v", err)
	}
	event, _ := recorder.find("feedback.submitted")
	if event.fields["publish_error"] != "topic missing" || event.fields["persisted"] != false {
		t.Fatalf("unexpected event fields %#v", event.fields)
	}
}

func TestFeedbackServiceStoreErrors(t *testing.T) {
	svc := NewFeedbackService(FeedbackServiceDeps{Repository: &stubFeedbackRepository{err: unavailableError{}}})
	if _, err := svc.Submit(context.Background(), FeedbackCommand{Message: "hi"}); !errors.Is(err, ErrFeedbackUnavailable) {
		t.Fatalf("expected ErrFeedbackUnavailable, got %v", err)
	}

	svc = NewFeedbackService(FeedbackServiceDeps{Repository: &stubFeedbackRepository{err: errors.New("disk full")}})
	_, err := svc.Submit(context.Background(), FeedbackCommand{Message: "hi"})
	if err == nil || errors.Is(err, ErrFeedbackUnavailable) {
		t.Fatalf("expected generic store error, got %v", err)
	}
}
