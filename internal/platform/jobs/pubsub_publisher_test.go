package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Seezoo1225/naming-story/internal/services"
)

func TestPubSubFeedbackPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "naming-feedback")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	defer topic.Stop()

	publisher, err := NewPubSubFeedbackPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubFeedbackPublisher: %v", err)
	}

	event := services.FeedbackEvent{
		Type:        services.FeedbackEventSubmitted,
		FeedbackID:  "fb_test",
		Message:     "候補がとても良かったです",
		UserAgent:   "Mozilla/5.0",
		SubmittedAt: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishFeedback(ctx, event); err != nil {
		t.Fatalf("PublishFeedback: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.FeedbackEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.FeedbackID != event.FeedbackID || payload.Message != event.Message {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["feedbackId"]; attr != "fb_test" {
		t.Fatalf("expected feedback id attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["eventType"]; attr != services.FeedbackEventSubmitted {
		t.Fatalf("expected event type attribute, got %q", attr)
	}
}

func TestNewPubSubFeedbackPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubFeedbackPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
