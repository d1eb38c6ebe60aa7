package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/Seezoo1225/naming-story/internal/services"
)

// PubSubFeedbackPublisher fans submitted feedback out to a Pub/Sub topic.
type PubSubFeedbackPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubFeedbackPublisher constructs a Pub/Sub backed feedback publisher.
func NewPubSubFeedbackPublisher(topic *pubsub.Topic) (*PubSubFeedbackPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub feedback publisher: topic is required")
	}
	return &PubSubFeedbackPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishFeedback publishes the event and waits for the server assigned message id.
func (p *PubSubFeedbackPublisher) PublishFeedback(ctx context.Context, event services.FeedbackEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub feedback publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal feedback event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "feedbackId", event.FeedbackID)
	setAttr(attrs, "eventType", event.Type)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish feedback event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
