package repositories

import (
	"context"

	"github.com/Seezoo1225/naming-story/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// FeedbackRepository persists visitor feedback.
type FeedbackRepository interface {
	Insert(ctx context.Context, feedback domain.Feedback) error
	FindByID(ctx context.Context, id string) (domain.Feedback, error)
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
