package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/platform/textutil"
	"github.com/Seezoo1225/naming-story/internal/strokes"
)

// ErrNamingInvalidInput indicates the caller provided invalid data.
var ErrNamingInvalidInput = errors.New("naming: invalid input")

// ErrNamingUnavailable indicates no candidate generator is configured.
var ErrNamingUnavailable = errors.New("naming: generator unavailable")

// ErrNamingUpstream indicates the candidate generator failed.
var ErrNamingUpstream = errors.New("naming: generator failed")

const (
	maxNamingSurnameRunes = 20
	maxNamingConceptRunes = 200
	defaultMaxCandidates  = 3

	namingSourceModel   = "model"
	namingSourceFixture = "fixture"
)

var supportedNamingGenders = map[string]struct{}{
	"male":    {},
	"female":  {},
	"unknown": {},
}

// NamingServiceDeps wires the generators and the stroke normalizer.
type NamingServiceDeps struct {
	Normalizer *strokes.Normalizer
	// Generator is the model backed producer; nil leaves only debug generation available.
	Generator     CandidateGenerator
	Fixtures      CandidateGenerator
	MaxCandidates int
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(context.Context, string, map[string]any)
}

type namingService struct {
	normalizer    *strokes.Normalizer
	generator     CandidateGenerator
	fixtures      CandidateGenerator
	maxCandidates int
	now           func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

var _ NamingService = (*namingService)(nil)

// NewNamingService constructs a NamingService.
func NewNamingService(deps NamingServiceDeps) (NamingService, error) {
	if deps.Normalizer == nil {
		return nil, errors.New("naming service: normalizer is required")
	}

	svc := &namingService{
		normalizer:    deps.Normalizer,
		generator:     deps.Generator,
		fixtures:      deps.Fixtures,
		maxCandidates: deps.MaxCandidates,
		now:           deps.Clock,
		newID:         deps.IDGenerator,
		logger:        deps.Logger,
	}
	if svc.fixtures == nil {
		svc.fixtures = FixtureGenerator{}
	}
	if svc.maxCandidates <= 0 {
		svc.maxCandidates = defaultMaxCandidates
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
	return svc, nil
}

func (s *namingService) GenerateNames(ctx context.Context, cmd NameGenerationCommand) (NameGeneration, error) {
	surname := strings.TrimSpace(cmd.Surname)
	concept := strings.TrimSpace(cmd.Concept)
	gender := strings.ToLower(strings.TrimSpace(cmd.Gender))
	if gender == "" {
		gender = "unknown"
	}

	switch {
	case surname == "" || concept == "":
		return NameGeneration{}, fmt.Errorf("%w: surname and concept are required", ErrNamingInvalidInput)
	case utf8.RuneCountInString(surname) > maxNamingSurnameRunes:
		return NameGeneration{}, fmt.Errorf("%w: surname must be at most %d characters", ErrNamingInvalidInput, maxNamingSurnameRunes)
	case utf8.RuneCountInString(concept) > maxNamingConceptRunes:
		return NameGeneration{}, fmt.Errorf("%w: concept must be at most %d characters", ErrNamingInvalidInput, maxNamingConceptRunes)
	}
	if _, ok := supportedNamingGenders[gender]; !ok {
		return NameGeneration{}, fmt.Errorf("%w: unsupported gender %q", ErrNamingInvalidInput, cmd.Gender)
	}

	generator, source := s.generator, namingSourceModel
	if cmd.Debug {
		generator, source = s.fixtures, namingSourceFixture
	}
	if generator == nil {
		return NameGeneration{}, ErrNamingUnavailable
	}

	batch, err := generator.GenerateCandidates(ctx, CandidateRequest{
		Surname: surname,
		Gender:  gender,
		Concept: concept,
		Count:   s.maxCandidates,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return NameGeneration{}, ctxErr
		}
		s.logger(ctx, "naming.generator_failed", map[string]any{
			"source": source,
			"error":  err.Error(),
		})
		return NameGeneration{}, fmt.Errorf("%w: %v", ErrNamingUpstream, err)
	}

	raws := batch.Candidates
	if len(raws) > s.maxCandidates {
		raws = raws[:s.maxCandidates]
	}
	for i := range raws {
		raws[i].Copy = textutil.StripMarkup(raws[i].Copy)
		raws[i].Story = textutil.StripMarkup(raws[i].Story)
		raws[i].Fortune.Note = textutil.StripMarkup(raws[i].Fortune.Note)
	}

	candidates, report := s.normalizer.NormalizeCandidatesWithReport(ctx, raws, surname, cmd.StrokeMode)

	policy := batch.Policy
	if strings.TrimSpace(policy.Ryuha) == "" {
		policy.Ryuha = DefaultRyuha
		if strings.TrimSpace(policy.Notes) == "" {
			policy.Notes = DefaultPolicyNotes
		}
	}

	generation := NameGeneration{
		ID:         s.newID(),
		Surname:    surname,
		Gender:     gender,
		Concept:    concept,
		Source:     source,
		Candidates: candidates,
		Policy:     policy,
		CreatedAt:  s.now().UTC(),
	}

	fields := map[string]any{
		"generation_id":   generation.ID,
		"source":          source,
		"candidates":      len(candidates),
		"unresolved":      unresolvedChars(candidates),
		"lookup_requests": len(report.Requested),
		"cache_hits":      report.CacheHits,
	}
	if report.Err != nil {
		fields["lookup_error"] = report.Err.Error()
	}
	s.logger(ctx, "naming.generated", fields)

	return generation, nil
}

func unresolvedChars(candidates []domain.Candidate) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, candidate := range candidates {
		for _, char := range append(candidate.Surname.Unresolved(), candidate.Given.Unresolved()...) {
			if _, dup := seen[char]; dup {
				continue
			}
			seen[char] = struct{}{}
			out = append(out, char)
		}
	}
	return out
}
