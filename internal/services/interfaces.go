package services

import (
	"context"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/strokes"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	NameGeneration     = domain.NameGeneration
	Feedback           = domain.Feedback
	Diagnostics        = domain.Diagnostics
	SystemHealthReport = domain.SystemHealthReport
)

// NamingService generates name candidates with authoritative stroke counts and five grades.
type NamingService interface {
	GenerateNames(ctx context.Context, cmd NameGenerationCommand) (NameGeneration, error)
}

// FeedbackService records visitor feedback.
type FeedbackService interface {
	Submit(ctx context.Context, cmd FeedbackCommand) (Feedback, error)
}

// SystemService exposes health and diagnostic information about the running process.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	Diagnostics(ctx context.Context) (Diagnostics, error)
}

// NameGenerationCommand carries a naming request.
type NameGenerationCommand struct {
	Surname string
	Gender  string
	Concept string
	// Debug selects the fixture generator instead of the model.
	Debug      bool
	StrokeMode strokes.ResolveMode
}

// FeedbackCommand carries a feedback submission.
type FeedbackCommand struct {
	Message   string
	UserAgent string
}
