package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Seezoo1225/naming-story/internal/domain"
	pfirestore "github.com/Seezoo1225/naming-story/internal/platform/firestore"
	"github.com/Seezoo1225/naming-story/internal/repositories"
)

const defaultFeedbackCollection = "feedback"

// FeedbackRepository stores visitor feedback documents keyed by feedback ID.
type FeedbackRepository struct {
	coll *pfirestore.Collection[domain.Feedback]
}

var _ repositories.FeedbackRepository = (*FeedbackRepository)(nil)

type feedbackDocument struct {
	Message   string    `firestore:"message"`
	UserAgent string    `firestore:"ua"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// NewFeedbackRepository constructs a Firestore-backed feedback repository.
func NewFeedbackRepository(provider *pfirestore.Provider, collection string) (*FeedbackRepository, error) {
	if provider == nil {
		return nil, errors.New("feedback repository: firestore provider is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultFeedbackCollection
	}

	encode := func(value domain.Feedback) (any, error) {
		return feedbackDocument{
			Message:   value.Message,
			UserAgent: value.UserAgent,
			CreatedAt: value.CreatedAt.UTC(),
		}, nil
	}
	decode := func(snap *firestore.DocumentSnapshot) (domain.Feedback, error) {
		var doc feedbackDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Feedback{}, err
		}
		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = snap.CreateTime
		}
		return domain.Feedback{
			ID:        snap.Ref.ID,
			Message:   doc.Message,
			UserAgent: doc.UserAgent,
			CreatedAt: createdAt,
		}, nil
	}

	return &FeedbackRepository{
		coll: pfirestore.NewCollection[domain.Feedback](provider, collection, encode, decode),
	}, nil
}

// Insert creates the feedback document; an existing ID yields a conflict error.
func (r *FeedbackRepository) Insert(ctx context.Context, feedback domain.Feedback) error {
	if r == nil || r.coll == nil {
		return errors.New("feedback repository not initialised")
	}
	id := strings.TrimSpace(feedback.ID)
	if id == "" {
		return errors.New("feedback repository: id is required")
	}
	_, err := r.coll.Create(ctx, id, feedback)
	return err
}

// FindByID loads a feedback entry.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	if r == nil || r.coll == nil {
		return domain.Feedback{}, errors.New("feedback repository not initialised")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Feedback{}, errors.New("feedback repository: id is required")
	}
	doc, err := r.coll.Get(ctx, id)
	if err != nil {
		return domain.Feedback{}, err
	}
	return doc.Data, nil
}
