package strokes

import "github.com/Seezoo1225/naming-story/internal/domain"

// ComputeGrades derives the five grades from the surname and given-name breakdowns. Unresolved
// characters count as zero and External is clamped at zero.
func ComputeGrades(surname, given domain.NameBreakdown) domain.FiveGrades {
	heaven := surname.Total()
	earth := given.Total()
	human := lastCount(surname) + firstCount(given)
	total := heaven + earth

	external := total - human
	if external < 0 {
		external = 0
	}

	return domain.FiveGrades{
		Heaven:   heaven,
		Earth:    earth,
		Human:    human,
		Total:    total,
		External: external,
	}
}

func lastCount(b domain.NameBreakdown) int {
	if len(b.Chars) == 0 {
		return 0
	}
	return resolvedCount(b.Chars[len(b.Chars)-1])
}

func firstCount(b domain.NameBreakdown) int {
	if len(b.Chars) == 0 {
		return 0
	}
	return resolvedCount(b.Chars[0])
}

func resolvedCount(c domain.CharacterStroke) int {
	if !c.Resolved() {
		return 0
	}
	return c.Count
}
