package strokes

import (
	"context"

	"github.com/Seezoo1225/naming-story/internal/domain"
)

// Normalizer rewrites raw candidates into candidates whose stroke breakdowns and grades are
// recomputed from the resolver. Qualitative fields are carried over untouched.
type Normalizer struct {
	resolver *Resolver
}

// NewNormalizer wraps the resolver. A nil resolver gets one backed by an empty dictionary.
func NewNormalizer(resolver *Resolver) *Normalizer {
	if resolver == nil {
		resolver = NewResolver(nil, nil)
	}
	return &Normalizer{resolver: resolver}
}

// Resolver returns the resolver used for stroke lookups.
func (n *Normalizer) Resolver() *Resolver {
	return n.resolver
}

// NormalizeCandidates warms the resolver once for the union of every candidate's characters and
// then normalizes each candidate, preserving input order.
func (n *Normalizer) NormalizeCandidates(ctx context.Context, raws []domain.RawCandidate, surname string, mode ResolveMode) []domain.Candidate {
	candidates, _ := n.NormalizeCandidatesWithReport(ctx, raws, surname, mode)
	return candidates
}

// NormalizeCandidatesWithReport is NormalizeCandidates that also returns the resolution report.
func (n *Normalizer) NormalizeCandidatesWithReport(ctx context.Context, raws []domain.RawCandidate, surname string, mode ResolveMode) ([]domain.Candidate, ResolutionReport) {
	if len(raws) == 0 {
		return []domain.Candidate{}, ResolutionReport{}
	}

	normalizedSurname := NormalizeScript(surname)
	var chars []string
	for _, raw := range raws {
		chars = append(chars, Segment(normalizedSurname, NormalizeScript(raw.Name)).Chars()...)
	}
	report := n.resolver.EnsureResolved(ctx, chars, mode)

	out := make([]domain.Candidate, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.normalize(raw, surname, report))
	}
	return out, report
}

// NormalizeCandidate normalizes a single candidate against the current cache state. It performs
// no lookups; call NormalizeCandidates to warm the cache first.
func (n *Normalizer) NormalizeCandidate(raw domain.RawCandidate, surname string) domain.Candidate {
	return n.normalize(raw, surname, ResolutionReport{})
}

func (n *Normalizer) normalize(raw domain.RawCandidate, surname string, report ResolutionReport) domain.Candidate {
	name := NormalizeScript(raw.Name)
	reading := NormalizeScript(raw.Reading)

	seg := Segment(NormalizeScript(surname), name)
	surnameBreakdown := n.resolver.ResolveReported(seg.Surname, raw.StrokeHints, report)
	givenBreakdown := n.resolver.ResolveReported(seg.Given, raw.StrokeHints, report)

	return domain.Candidate{
		Name:          name,
		Reading:       reading,
		Copy:          raw.Copy,
		Story:         raw.Story,
		Fortune:       copyFortune(raw.Fortune),
		Surname:       surnameBreakdown,
		Given:         givenBreakdown,
		Grades:        ComputeGrades(surnameBreakdown, givenBreakdown),
		Segmentation:  seg.Outcome,
		FullyResolved: surnameBreakdown.Resolved() && givenBreakdown.Resolved(),
		Extra:         copyExtra(raw.Extra),
	}
}

func copyFortune(f domain.Fortune) domain.Fortune {
	out := domain.Fortune{
		Luck:  f.Luck,
		Note:  f.Note,
		Extra: copyExtra(f.Extra),
	}
	if len(f.GradeLabels) > 0 {
		out.GradeLabels = make(map[string]string, len(f.GradeLabels))
		for k, v := range f.GradeLabels {
			out.GradeLabels[k] = v
		}
	}
	return out
}

func copyExtra(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
