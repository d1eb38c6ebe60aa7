package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/strokes"
)

type stubGenerator struct {
	batch CandidateBatch
	err   error
	reqs  []CandidateRequest
}

func (s *stubGenerator) GenerateCandidates(_ context.Context, req CandidateRequest) (CandidateBatch, error) {
	s.reqs = append(s.reqs, req)
	return s.batch, s.err
}

type recordedEvent struct {
	name   string
	fields map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) log(_ context.Context, name string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: name, fields: fields})
}

func (r *eventRecorder) find(name string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e, true
		}
	}
	return recordedEvent{}, false
}

func testNormalizer(lookup strokes.StrokeLookup) *strokes.Normalizer {
	dict := strokes.NewDictionary(map[string]int{
		"山": 3, "田": 5, "未": 5, "来": 7, "志": 7, "翔": 12, "光": 6, "太": 4,
	})
	opts := []strokes.ResolverOption{}
	if lookup != nil {
		opts = append(opts, strokes.WithLookup(lookup))
	}
	return strokes.NewNormalizer(strokes.NewResolver(dict, nil, opts...))
}

func TestNamingServiceFixtureGeneration(t *testing.T) {
	now := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.FixedZone("JST", 9*3600))
	recorder := &eventRecorder{}
	svc, err := NewNamingService(NamingServiceDeps{
		Normalizer:  testNormalizer(nil),
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01JTESTGEN" },
		Logger:      recorder.log,
	})
	if err != nil {
		t.Fatalf("NewNamingService: %v", err)
	}

	gen, err := svc.GenerateNames(context.Background(), NameGenerationCommand{
		Surname: " 山田 ",
		Concept: "未来へ進む",
		Debug:   true,
	})
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}

	if gen.ID != "01JTESTGEN" || gen.Source != namingSourceFixture || gen.Gender != "unknown" {
		t.Fatalf("unexpected generation metadata %+v", gen)
	}
	if !gen.CreatedAt.Equal(now) || gen.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC createdAt, got %s", gen.CreatedAt)
	}
	if len(gen.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(gen.Candidates))
	}
	if gen.Policy.Ryuha != DefaultRyuha || gen.Policy.Notes != DefaultPolicyNotes {
		t.Fatalf("unexpected policy %+v", gen.Policy)
	}

	first := gen.Candidates[0]
	want := domain.FiveGrades{Heaven: 8, Earth: 19, Human: 10, Total: 27, External: 17}
	if first.Grades != want {
		t.Fatalf("expected grades %+v, got %+v", want, first.Grades)
	}
	if first.Segmentation != domain.SegmentOutcomeSegmented || !first.FullyResolved {
		t.Fatalf("expected segmented and resolved candidate, got %+v", first)
	}
	if first.Fortune.Luck.Overall != "吉" || first.Fortune.Note != "debug fallback" {
		t.Fatalf("expected fixture fortune preserved, got %+v", first.Fortune)
	}
	// 光 is 6 in the dictionary even though the fixture hints 3.
	if got := gen.Candidates[2].Given.Chars[2]; got.Char != "光" || got.Count != 6 {
		t.Fatalf("expected dictionary count for 光, got %+v", got)
	}

	event, ok := recorder.find("naming.generated")
	if !ok {
		t.Fatal("expected naming.generated event")
	}
	if event.fields["candidates"] != 3 || event.fields["source"] != namingSourceFixture {
		t.Fatalf("unexpected event fields %#v", event.fields)
	}
}

func TestNamingServiceModelGeneration(t *testing.T) {
	var lookups int
	lookup := strokes.StrokeLookupFunc(func(_ context.Context, chars []string) (map[string]int, error) {
		lookups++
		return map[string]int{"凰": 11}, nil
	})
	raw := func(name string) domain.RawCandidate {
		return domain.RawCandidate{
			Name:        name,
			Copy:        "<b>大きな</b>志",
			Story:       "<script>alert(1)</script>物語",
			StrokeHints: []domain.StrokeHint{{Char: "太", Count: 99}},
			Fortune:     domain.Fortune{Note: "<i>注</i>", GradeLabels: map[string]string{"soukaku": "大吉"}},
			Extra:       map[string]any{"tags": []any{"和"}},
		}
	}
	generator := &stubGenerator{batch: CandidateBatch{Candidates: []domain.RawCandidate{
		raw("山田 太志"), raw("山田 凰"), raw("山田 光"), raw("山田 翔"),
	}}}

	svc, err := NewNamingService(NamingServiceDeps{
		Normalizer: testNormalizer(lookup),
		Generator:  generator,
	})
	if err != nil {
		t.Fatalf("NewNamingService: %v", err)
	}

	gen, err := svc.GenerateNames(context.Background(), NameGenerationCommand{
		Surname: "山田",
		Gender:  "Female",
		Concept: "強く優しく",
	})
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}

	if len(generator.reqs) != 1 {
		t.Fatalf("expected one generator call, got %d", len(generator.reqs))
	}
	if req := generator.reqs[0]; req.Gender != "female" || req.Count != defaultMaxCandidates {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(gen.Candidates) != defaultMaxCandidates {
		t.Fatalf("expected candidates capped at %d, got %d", defaultMaxCandidates, len(gen.Candidates))
	}
	if lookups != 1 {
		t.Fatalf("expected a single lookup for the batch, got %d", lookups)
	}

	first := gen.Candidates[0]
	if first.Copy != "大きな志" || first.Story != "物語" || first.Fortune.Note != "注" {
		t.Fatalf("expected markup stripped, got copy=%q story=%q note=%q", first.Copy, first.Story, first.Fortune.Note)
	}
	if first.Given.Chars[0].Count != 4 {
		t.Fatalf("expected dictionary to win over hint, got %+v", first.Given.Chars[0])
	}
	if first.Fortune.GradeLabels["soukaku"] != "大吉" || first.Extra["tags"] == nil {
		t.Fatalf("expected qualitative fields preserved, got %+v", first)
	}
	if got := gen.Candidates[1].Given.Chars[0]; got.Count != 11 || got.Source != domain.StrokeSourceExternal {
		t.Fatalf("expected 凰 resolved externally, got %+v", got)
	}
	if gen.Policy.Ryuha != DefaultRyuha {
		t.Fatalf("expected default policy, got %+v", gen.Policy)
	}
}

func TestNamingServiceKeepsGeneratorPolicy(t *testing.T) {
	generator := &stubGenerator{batch: CandidateBatch{
		Policy: domain.NamingPolicy{Ryuha: "五格法", Notes: ""},
	}}
	svc, _ := NewNamingService(NamingServiceDeps{Normalizer: testNormalizer(nil), Generator: generator})

	gen, err := svc.GenerateNames(context.Background(), NameGenerationCommand{Surname: "山田", Concept: "海"})
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if gen.Policy.Ryuha != "五格法" || gen.Policy.Notes != "" {
		t.Fatalf("expected generator policy kept, got %+v", gen.Policy)
	}
	if len(gen.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(gen.Candidates))
	}
}

func TestNamingServiceValidation(t *testing.T) {
	svc, _ := NewNamingService(NamingServiceDeps{Normalizer: testNormalizer(nil), Generator: &stubGenerator{}})

	cases := []NameGenerationCommand{
		{Surname: "", Concept: "海"},
		{Surname: "山田", Concept: "   "},
		{Surname: strings.Repeat("山", maxNamingSurnameRunes+1), Concept: "海"},
		{Surname: "山田", Concept: strings.Repeat("海", maxNamingConceptRunes+1)},
		{Surname: "山田", Concept: "海", Gender: "robot"},
	}
	for _, cmd := range cases {
		if _, err := svc.GenerateNames(context.Background(), cmd); !errors.Is(err, ErrNamingInvalidInput) {
			t.Fatalf("expected ErrNamingInvalidInput for %+v, got %v", cmd, err)
		}
	}
}

func TestNamingServiceGeneratorErrors(t *testing.T) {
	svc, _ := NewNamingService(NamingServiceDeps{Normalizer: testNormalizer(nil)})
	if _, err := svc.GenerateNames(context.Background(), NameGenerationCommand{Surname: "山田", Concept: "海"}); !errors.Is(err, ErrNamingUnavailable) {
		t.Fatalf("expected ErrNamingUnavailable, got %v", err)
	}

	recorder := &eventRecorder{}
	svc, _ = NewNamingService(NamingServiceDeps{
		Normalizer: testNormalizer(nil),
		Generator:  &stubGenerator{err: errors.New("overloaded")},
		Logger:     recorder.log,
	})
	_, err := svc.GenerateNames(context.Background(), NameGenerationCommand{Surname: "山田", Concept: "海"})
	if !errors.Is(err, ErrNamingUpstream) {
		t.Fatalf("expected ErrNamingUpstream, got %v", err)
	}
	if _, ok := recorder.find("naming.generator_failed"); !ok {
		t.Fatal("expected generator failure to be logged")
	}
}

func TestNewNamingServiceRequiresNormalizer(t *testing.T) {
	if _, err := NewNamingService(NamingServiceDeps{}); err == nil {
		t.Fatal("expected error without normalizer")
	}
}
