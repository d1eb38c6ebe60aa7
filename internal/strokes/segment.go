package strokes

import (
	"strings"
	"unicode"

	"github.com/Seezoo1225/naming-story/internal/domain"
)

// Segmentation is the result of splitting a full name. Outcome distinguishes a genuine split from
// the fallback taken when the full name lacks the expected surname prefix.
type Segmentation struct {
	Outcome domain.SegmentOutcome
	Surname []string
	Given   []string
}

// Segment splits fullName into surname and given-name characters using the known input surname.
// Whitespace is removed from both arguments first.
func Segment(surname, fullName string) Segmentation {
	cleanSurname := stripSpace(surname)
	cleanName := stripSpace(fullName)

	if strings.HasPrefix(cleanName, cleanSurname) {
		return Segmentation{
			Outcome: domain.SegmentOutcomeSegmented,
			Surname: splitChars(cleanSurname),
			Given:   splitChars(strings.TrimPrefix(cleanName, cleanSurname)),
		}
	}
	return Segmentation{
		Outcome: domain.SegmentOutcomeSurnameMismatch,
		Surname: nil,
		Given:   splitChars(cleanName),
	}
}

// Chars returns every character of the segmentation in reading order.
func (s Segmentation) Chars() []string {
	out := make([]string, 0, len(s.Surname)+len(s.Given))
	out = append(out, s.Surname...)
	return append(out, s.Given...)
}

func stripSpace(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}

func splitChars(value string) []string {
	if value == "" {
		return nil
	}
	out := make([]string, 0, len(value)/3+1)
	for _, r := range value {
		out = append(out, string(r))
	}
	return out
}
